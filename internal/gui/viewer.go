package gui

import (
	"context"
	"fmt"

	apperrors "angioscan/internal/errors"
	"angioscan/internal/models"
	"angioscan/internal/opencv/conversion"
	"angioscan/internal/opencv/safe"
	"angioscan/internal/pipeline"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

var _ pipeline.ResultViewer = (*Session)(nil)

var viewerImageSize = fyne.NewSize(800, 560)

// ShowResult displays every kept step of result in its own tab, with the
// annotated output selected, and returns when the user presses Next or Q.
func (s *Session) ShowResult(ctx context.Context, name string, result *models.BlockageResult) error {
	tabs, err := resultTabs(result)
	if err != nil {
		return fmt.Errorf("failed to prepare %s for display: %w", name, err)
	}

	answers := make(chan struct{}, 1)
	summary := fmt.Sprintf("**%s**: %s (%d detections, %d sites)",
		name, result.Verdict, result.DetectionCount, result.SiteCount)

	fyne.Do(func() {
		appTabs := container.NewAppTabs()
		for _, tab := range tabs {
			appTabs.Append(container.NewTabItem(tab.title, tab.content()))
		}
		appTabs.SetTabLocation(container.TabLocationLeading)
		appTabs.SelectIndex(len(tabs) - 1)

		next := widget.NewButton("Next", func() {
			offer(answers, struct{}{})
		})
		next.Importance = widget.HighImportance

		s.window.SetTitle(fmt.Sprintf("%s - %s - %s", AppName, name, result.Verdict))
		s.window.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
			if ev.Name == fyne.KeyQ || ev.Name == fyne.KeyReturn || ev.Name == fyne.KeyEnter {
				offer(answers, struct{}{})
			}
		})
		s.window.SetContent(container.NewBorder(
			widget.NewRichTextFromMarkdown(summary),
			container.NewHBox(layout.NewSpacer(), next),
			nil, nil,
			appTabs,
		))
	})

	if _, err := await(ctx, answers); err != nil {
		return apperrors.NewCancelledError("result review", err)
	}

	s.showStatus("Loading next image...")
	return nil
}

type resultTab struct {
	title string
	image *canvas.Image
}

func (t resultTab) content() fyne.CanvasObject {
	return container.NewScroll(t.image)
}

// resultTabs converts the kept steps and the annotated output into
// displayable images, numbered in pipeline order.
func resultTabs(result *models.BlockageResult) ([]resultTab, error) {
	steps := append([]models.Step(nil), result.Steps...)
	if result.Step(pipeline.StepOutput) == nil && result.Annotated != nil {
		steps = append(steps, models.Step{Name: pipeline.StepOutput, Image: result.Annotated})
	}

	tabs := make([]resultTab, 0, len(steps))
	for i, step := range steps {
		img, err := displayImage(step.Image)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", step.Name, err)
		}
		tabs = append(tabs, resultTab{
			title: fmt.Sprintf("%d. %s", i+1, step.Name),
			image: img,
		})
	}
	return tabs, nil
}

func displayImage(mat *safe.Mat) (*canvas.Image, error) {
	img, err := conversion.MatToImage(mat)
	if err != nil {
		return nil, err
	}

	picture := canvas.NewImageFromImage(img)
	picture.FillMode = canvas.ImageFillContain
	picture.ScaleMode = canvas.ImageScaleSmooth
	picture.SetMinSize(viewerImageSize)
	return picture, nil
}
