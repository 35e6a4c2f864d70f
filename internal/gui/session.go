package gui

import (
	"context"
	"sync"

	"angioscan/internal/logger"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const (
	AppName = "Angioscan"
	AppID   = "com.angioscan.review"
)

// Session owns the single review window. The fyne event loop must run on
// the main goroutine, so batch work runs beside it and talks to the window
// through fyne.Do.
type Session struct {
	app    fyne.App
	window fyne.Window
	status *widget.Label
	logger logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSession creates the application and its window. It must be called on
// the main goroutine.
func NewSession(log logger.Logger) *Session {
	fyneApp := app.NewWithID(AppID)
	window := fyneApp.NewWindow(AppName)
	window.Resize(fyne.NewSize(1024, 768))
	window.CenterOnScreen()

	status := widget.NewLabel("Loading images...")
	window.SetContent(container.NewCenter(status))

	s := &Session{
		app:    fyneApp,
		window: window,
		status: status,
		logger: log,
	}

	// Closing the window stops the whole batch.
	window.SetCloseIntercept(func() {
		s.logger.Info("GUISession", "window close requested", nil)
		s.stop()
	})

	return s
}

// Run executes work while the event loop owns the calling goroutine. The
// window closes when work returns or ctx is cancelled; work sees a cancelled
// context when the user closes the window.
func (s *Session) Run(ctx context.Context, work func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	var workErr error
	done := make(chan struct{})

	go func() {
		defer close(done)
		workErr = work(ctx)
		fyne.Do(s.app.Quit)
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info("GUISession", "context cancelled, closing window", nil)
			fyne.Do(s.app.Quit)
		case <-done:
		}
	}()

	s.window.Show()
	s.app.Run()

	cancel()
	<-done
	return workErr
}

func (s *Session) stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		return
	}
	s.app.Quit()
}

// showStatus replaces the window content with a message.
func (s *Session) showStatus(message string) {
	fyne.Do(func() {
		s.status.SetText(message)
		s.window.SetTitle(AppName)
		s.window.Canvas().SetOnTypedKey(nil)
		s.window.SetContent(container.NewCenter(s.status))
	})
}

// await blocks until the user answers or ctx ends. Answers arriving after
// the first are dropped.
func await[T any](ctx context.Context, answers <-chan T) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case answer := <-answers:
		return answer, nil
	}
}

func offer[T any](answers chan<- T, answer T) {
	select {
	case answers <- answer:
	default:
	}
}
