package ascent

import (
	"context"
	"math"

	"github.com/copyleftdev/STEEPR/internal/optimization"
	"github.com/copyleftdev/STEEPR/internal/optimization/vector"
)

// Engine drives steepest ascent to completion. It implements
// optimization.Optimizer.
type Engine struct {
	// Configuration
	config optimization.Config

	// Observer, if set, is invoked with every iteration state before the
	// run continues. It must not affect the numeric trajectory. Set it
	// before calling Optimize.
	Observer func(State)

	// Best solution found
	bestSolution *optimization.Solution

	// History of iterations
	history []optimization.Evaluation

	// For cancellation
	cancel context.CancelFunc
}

// New creates an Engine for the given run configuration. Zero values in the
// config select the package defaults; a negative or non-finite step size is
// rejected here, at the driver boundary.
func New(config optimization.Config) (*Engine, error) {
	cfg, err := withDefaults(config)
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:  cfg,
		history: make([]optimization.Evaluation, 0, cfg.MaxIterations+1),
	}, nil
}

func withDefaults(config optimization.Config) (optimization.Config, error) {
	if config.StepSize == 0 {
		config.StepSize = DefaultStepSize
	}
	if config.StepSize < 0 || math.IsNaN(config.StepSize) || math.IsInf(config.StepSize, 0) {
		return config, optimization.WrapErrorf(optimization.ErrBadStepSize, "got %v", config.StepSize).
			WithComponent("ascent").WithOperation("New")
	}
	if config.MaxIterations < 1 {
		config.MaxIterations = MaxIterations
	}
	if config.GradLimit <= 0 {
		config.GradLimit = GradLimit
	}
	return config, nil
}

// Optimize runs steepest ascent until the gradient norm falls below the
// configured limit or the iteration cap is reached. The cap doubles as a
// hard loop bound, so the run terminates for any field. Cancellation is
// checked between iterations; each iteration is an atomic unit of N+3
// field evaluations.
func (e *Engine) Optimize(ctx context.Context, config optimization.Config) (*optimization.Result, error) {
	// Update config if provided
	if config.Field != nil {
		cfg, err := withDefaults(config)
		if err != nil {
			return nil, err
		}
		e.config = cfg
	}
	if e.config.Field == nil {
		return nil, optimization.WrapError(optimization.ErrNoField, "cannot start run").
			WithComponent("ascent").WithOperation("Optimize")
	}
	if e.config.Seed.Dim() == 0 {
		return nil, optimization.WrapError(optimization.ErrNoSeed, "cannot start run").
			WithComponent("ascent").WithOperation("Optimize")
	}

	ctx, e.cancel = context.WithCancel(ctx)
	defer e.cancel()

	state := AtPoint(e.config.Seed, e.config.Field, e.config.StepSize, 0)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !state.Finite() {
			return nil, optimization.WrapErrorf(optimization.ErrNumericFailure,
				"at iteration %d, point %v", state.Index, state.Current.Vector).
				WithComponent("ascent").WithOperation("Optimize")
		}

		e.record(state)
		if state.done(e.config.MaxIterations, e.config.GradLimit) {
			break
		}
		state = Next(state, e.config.Field)
	}

	return &optimization.Result{
		Final: &optimization.Solution{
			Vector: state.Current.Vector,
			Value:  state.Current.Value,
		},
		Best:       e.bestSolution,
		History:    e.history,
		Iterations: state.Index,
		Converged:  state.CurrentGrad.Norm() < e.config.GradLimit,
	}, nil
}

// GetBestSolution returns the best solution found so far
func (e *Engine) GetBestSolution() *optimization.Solution {
	return e.bestSolution
}

// GetHistory returns the history of iterations
func (e *Engine) GetHistory() []optimization.Evaluation {
	return e.history
}

// Stop stops the optimization process
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// record appends the state to the history, updates the best solution and
// notifies the observer.
func (e *Engine) record(state State) {
	if e.bestSolution == nil || state.Current.Value > e.bestSolution.Value {
		e.bestSolution = &optimization.Solution{
			Vector: state.Current.Vector.Clone(),
			Value:  state.Current.Value,
		}
	}

	e.history = append(e.history, optimization.Evaluation{
		Iteration: state.Index,
		StepSize:  state.StepSize,
		Solution: &optimization.Solution{
			Vector: state.Current.Vector,
			Value:  state.Current.Value,
		},
		GradNorm: state.CurrentGrad.Norm(),
		Next: &optimization.Solution{
			Vector: state.Next.Vector,
			Value:  state.Next.Value,
		},
		Test: &optimization.Solution{
			Vector: state.Test.Vector,
			Value:  state.Test.Value,
		},
	})

	if e.Observer != nil {
		e.Observer(state)
	}
}

// Maximize is the plain driver entry point: it runs steepest ascent from
// seed with the given initial step size (zero selects the default of 1.0)
// and returns the accepted point of the terminal iteration. It is
// deterministic given a deterministic field.
func Maximize(seed vector.Vector, field optimization.Field, startStepSize float64) (vector.Vector, error) {
	engine, err := New(optimization.Config{
		Field:    field,
		Seed:     seed,
		StepSize: startStepSize,
	})
	if err != nil {
		return vector.Vector{}, err
	}

	result, err := engine.Optimize(context.Background(), optimization.Config{})
	if err != nil {
		return vector.Vector{}, err
	}
	return result.Final.Vector, nil
}
