package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"angioscan/internal/logger"
)

const defaultTimeout = 10 * time.Second

// Shutdownable releases a resource when the process stops.
type Shutdownable interface {
	Shutdown()
}

// Func adapts a plain function to Shutdownable.
type Func func()

func (f Func) Shutdown() { f() }

type registration struct {
	name      string
	component Shutdownable
}

// Manager cancels a shared context on SIGINT/SIGTERM or an explicit
// Shutdown, then releases registered components in reverse order.
type Manager struct {
	components []registration
	logger     logger.Logger
	timeout    time.Duration
	mu         sync.Mutex
	done       chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	stopSignal func()
}

func NewManager(parent context.Context, log logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(parent)

	return &Manager{
		logger:  log,
		timeout: defaultTimeout,
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetTimeout bounds how long a single component may take to shut down.
func (m *Manager) SetTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
}

func (m *Manager) Register(name string, component Shutdownable) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.components = append(m.components, registration{name: name, component: component})
}

// Listen starts shutdown on the first interrupt. A second interrupt is left
// to the default handler and kills the process.
func (m *Manager) Listen() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	m.mu.Lock()
	m.stopSignal = func() { signal.Stop(sigChan) }
	m.mu.Unlock()

	go func() {
		select {
		case sig := <-sigChan:
			signal.Stop(sigChan)
			m.logger.Info("ShutdownManager", "shutdown signal received", map[string]interface{}{
				"signal": sig.String(),
			})
			m.Shutdown()
		case <-m.done:
		}
	}()
}

// Shutdown cancels the context and releases every component. Only the first
// call has an effect.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.done:
		return
	default:
		close(m.done)
	}

	if m.stopSignal != nil {
		m.stopSignal()
	}

	m.logger.Info("ShutdownManager", "shutdown sequence initiated", map[string]interface{}{
		"components": len(m.components),
	})

	m.cancel()

	for i := len(m.components) - 1; i >= 0; i-- {
		reg := m.components[i]

		done := make(chan struct{})
		go func() {
			defer close(done)
			reg.component.Shutdown()
		}()

		select {
		case <-done:
			m.logger.Debug("ShutdownManager", "component stopped", map[string]interface{}{
				"component": reg.name,
			})
		case <-time.After(m.timeout):
			m.logger.Warning("ShutdownManager", "component shutdown timeout", map[string]interface{}{
				"component": reg.name,
				"timeout":   m.timeout.String(),
			})
		}
	}

	m.logger.Info("ShutdownManager", "shutdown sequence completed", nil)
}

// Context is cancelled as soon as shutdown starts.
func (m *Manager) Context() context.Context {
	return m.ctx
}

func (m *Manager) Done() <-chan struct{} {
	return m.done
}
