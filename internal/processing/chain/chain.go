package chain

import (
	"context"
	"fmt"

	"angioscan/internal/opencv/safe"
)

// ProcessingStep transforms one Mat into a new Mat. Steps never modify
// their input.
type ProcessingStep interface {
	Apply(ctx context.Context, input *safe.Mat) (*safe.Mat, error)
	Name() string
	ShouldExecute() bool
}

// StepOutput is the image produced by one executed step.
type StepOutput struct {
	Name  string
	Image *safe.Mat
}

type ProcessingChain struct {
	steps []ProcessingStep
}

func NewProcessingChain(steps ...ProcessingStep) *ProcessingChain {
	return &ProcessingChain{
		steps: steps,
	}
}

// Execute runs every enabled step in order. The final image is returned;
// intermediate images are closed unless keep is set, in which case every
// step output is returned in order and owned by the caller. The input is
// never closed.
func (pc *ProcessingChain) Execute(ctx context.Context, input *safe.Mat, keep bool) (*safe.Mat, []StepOutput, error) {
	current := input
	var outputs []StepOutput

	release := func() {
		for _, out := range outputs {
			out.Image.Close()
		}
		if !keep && current != input {
			current.Close()
		}
	}

	for _, step := range pc.steps {
		select {
		case <-ctx.Done():
			release()
			return nil, nil, ctx.Err()
		default:
		}

		if !step.ShouldExecute() {
			continue
		}

		result, err := step.Apply(ctx, current)
		if err != nil {
			release()
			return nil, nil, fmt.Errorf("step %s failed: %w", step.Name(), err)
		}

		if keep {
			outputs = append(outputs, StepOutput{Name: step.Name(), Image: result})
		} else if current != input {
			current.Close()
		}

		current = result
	}

	if current == input {
		clone, err := input.Clone()
		if err != nil {
			release()
			return nil, nil, fmt.Errorf("chain produced no output: %w", err)
		}
		return clone, outputs, nil
	}

	if keep {
		// The last output doubles as the result; hand it out once.
		outputs = outputs[:len(outputs)-1]
	}

	return current, outputs, nil
}

func (pc *ProcessingChain) StepCount() int {
	return len(pc.steps)
}

func (pc *ProcessingChain) GetStepNames() []string {
	names := make([]string, 0, len(pc.steps))
	for _, step := range pc.steps {
		if step.ShouldExecute() {
			names = append(names, step.Name())
		}
	}
	return names
}
