// Package ascent implements steepest ascent with adaptive step-size control.
//
// The algorithm maximizes a scalar field. Each iteration evaluates the field
// and its forward-difference gradient at the current point, proposes one
// candidate a full step along the gradient and one at double the step, and
// keeps whichever strictly improves the objective. If neither does, the step
// size is halved and the point stays put. The step relation is a pure
// function State -> State.
package ascent

import (
	"math"

	"github.com/copyleftdev/STEEPR/internal/optimization"
	"github.com/copyleftdev/STEEPR/internal/optimization/vector"
)

const (
	// MaxIterations is the default hard cap on iteration count.
	MaxIterations = 25

	// GradLimit is the default gradient-norm threshold. A run whose
	// gradient norm falls below it is converged. The one-sided gradient
	// estimator carries O(H) error, so the threshold cannot be pushed
	// much tighter without a smaller H.
	GradLimit = 1e-4

	// DefaultStepSize is the initial step size when none is configured.
	DefaultStepSize = 1.0
)

// Point pairs a location in the search space with the field value there.
// The value is computed once at construction and never recomputed.
type Point struct {
	Vector vector.Vector `json:"vector"`
	Value  float64       `json:"value"`
}

// PointAt evaluates field at x and returns the resulting Point.
func PointAt(x vector.Vector, field optimization.Field) Point {
	return Point{Vector: x, Value: field(x)}
}

// State is the unit of progress of one optimization run.
//
// Next and Test are always derived from Current and CurrentGrad:
//
//	Next.Vector = Current.Vector + StepSize*CurrentGrad
//	Test.Vector = Current.Vector + 2*StepSize*CurrentGrad
//
// StepSize is positive and Index increases by exactly one per transition.
type State struct {
	// Index is the iteration counter, starting at 0.
	Index int `json:"index"`

	// StepSize is the step size of this iteration.
	StepSize float64 `json:"step_size"`

	// Current is the accepted point of this iteration.
	Current Point `json:"current"`

	// CurrentGrad is the gradient estimate at Current.
	CurrentGrad vector.Vector `json:"current_grad"`

	// Next is the candidate one step along the gradient.
	Next Point `json:"next"`

	// Test is the candidate at double step size.
	Test Point `json:"test"`
}

// AtPoint evaluates a full iteration state at x: the field value, the
// gradient, and both candidate points. It costs N+3 field evaluations for an
// N-dimensional x (shared baseline, N gradient probes, next, test).
func AtPoint(x vector.Vector, field optimization.Field, stepSize float64, index int) State {
	base := field(x)
	grad := x.GradientAt(field, base)

	return State{
		Index:       index,
		StepSize:    stepSize,
		Current:     Point{Vector: x, Value: base},
		CurrentGrad: grad,
		Next:        PointAt(x.AddScaled(stepSize, grad), field),
		Test:        PointAt(x.AddScaled(2*stepSize, grad), field),
	}
}

// UseNext reports whether stepping forward strictly improves the objective.
func (s State) UseNext() bool {
	return s.Next.Value > s.Current.Value
}

// UseTest reports whether doubling the step improves further still. It can
// only hold when UseNext holds.
func (s State) UseTest() bool {
	return s.UseNext() && s.Test.Value > s.Next.Value
}

// Next derives the following iteration state. If the doubled step improves
// on the full step, the step size doubles and the run continues from Test.
// If only the full step improves, the step size is kept and the run
// continues from Next. Otherwise the step size halves and the point stays.
func Next(prev State, field optimization.Field) State {
	var stepSize float64
	var x vector.Vector

	switch {
	case prev.UseTest():
		stepSize = prev.StepSize * 2
		x = prev.Test.Vector
	case prev.UseNext():
		stepSize = prev.StepSize
		x = prev.Next.Vector
	default:
		// Retry from the same point with a smaller step.
		stepSize = prev.StepSize / 2
		x = prev.Current.Vector
	}

	return AtPoint(x, field, stepSize, prev.Index+1)
}

// Done reports whether the run is terminal under the default limits: the
// iteration cap is reached or the gradient norm fell below GradLimit.
// Termination is evaluated on the already accepted point, so a run that
// only ever shrinks its step can exhaust the cap without converging.
func (s State) Done() bool {
	return s.done(MaxIterations, GradLimit)
}

func (s State) done(maxIterations int, gradLimit float64) bool {
	return s.Index == maxIterations || s.CurrentGrad.Norm() < gradLimit
}

// Finite reports whether the accepted value and its gradient are finite.
func (s State) Finite() bool {
	return !math.IsNaN(s.Current.Value) && !math.IsInf(s.Current.Value, 0) &&
		s.CurrentGrad.AllFinite()
}
