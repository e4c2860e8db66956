package chain

import (
	"context"
	"fmt"
	"time"

	"colony-counter/internal/config"
	"colony-counter/internal/logger"
	"colony-counter/internal/opencv/safe"
)

type ProcessingStep interface {
	Apply(ctx context.Context, input *safe.Mat, params config.Pipeline) (*safe.Mat, error)
	Name() string
	ShouldExecute(params config.Pipeline) bool
}

// ProcessingChain runs steps in order. Intermediate results are closed as
// soon as the next step has consumed them; the caller's input is never closed.
type ProcessingChain struct {
	steps  []ProcessingStep
	logger logger.Logger
}

func NewProcessingChain(steps []ProcessingStep, log logger.Logger) *ProcessingChain {
	if log == nil {
		log = logger.Nop()
	}
	return &ProcessingChain{
		steps:  steps,
		logger: log,
	}
}

func (pc *ProcessingChain) Execute(ctx context.Context, input *safe.Mat, params config.Pipeline) (*safe.Mat, error) {
	current := input

	release := func() {
		if current != input {
			current.Close()
		}
	}

	for _, step := range pc.steps {
		select {
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		default:
		}

		if !step.ShouldExecute(params) {
			pc.logger.Debug("ProcessingChain", "step skipped", map[string]interface{}{
				"step": step.Name(),
			})
			continue
		}

		start := time.Now()
		result, err := step.Apply(ctx, current, params)
		if err != nil {
			release()
			return nil, fmt.Errorf("step %s failed: %w", step.Name(), err)
		}

		pc.logger.Debug("ProcessingChain", "step completed", map[string]interface{}{
			"step":     step.Name(),
			"duration": time.Since(start).String(),
		})

		release()
		current = result
	}

	if current == input {
		return input.CloneAs("chain_output")
	}

	return current, nil
}

func (pc *ProcessingChain) GetStepNames() []string {
	names := make([]string, len(pc.steps))
	for i, step := range pc.steps {
		names[i] = step.Name()
	}
	return names
}
