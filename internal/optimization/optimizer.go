package optimization

import (
	"context"

	"github.com/copyleftdev/STEEPR/internal/optimization/vector"
)

// Optimizer defines the interface for optimization algorithms
type Optimizer interface {
	// Optimize runs the optimization process
	Optimize(ctx context.Context, config Config) (*Result, error)

	// GetBestSolution returns the best solution found so far
	GetBestSolution() *Solution

	// GetHistory returns the history of iterations
	GetHistory() []Evaluation

	// Stop gracefully stops the optimization process
	Stop()
}

// Field assigns a scalar value to an N-dimensional vector. It is the
// objective being maximized. Any callable works, including closures over
// captured state; implementations must be pure with respect to their input.
type Field func(x vector.Vector) float64

// Config contains configuration for an optimization run
type Config struct {
	// Field is the objective function to maximize
	Field Field

	// Seed is the starting point of the run
	Seed vector.Vector

	// StepSize is the initial step size. Zero selects the default.
	StepSize float64

	// MaxIterations caps the number of iterations. Zero selects the default.
	MaxIterations int

	// GradLimit is the gradient-norm threshold below which the run is
	// considered converged. Zero selects the default.
	GradLimit float64
}

// Solution pairs a point in the search space with the field value there
type Solution struct {
	Vector vector.Vector `json:"vector"`
	Value  float64       `json:"value"`
}

// Evaluation records one accepted iteration of an optimization run,
// including the candidate points a display shell needs.
type Evaluation struct {
	Iteration int       `json:"iteration"`
	StepSize  float64   `json:"step_size"`
	Solution  *Solution `json:"solution"`
	GradNorm  float64   `json:"grad_norm"`
	Next      *Solution `json:"next,omitempty"`
	Test      *Solution `json:"test,omitempty"`
}

// Result contains the outcome of an optimization run
type Result struct {
	// Final is the accepted point of the terminal iteration
	Final *Solution

	// Best is the best solution observed during the run
	Best *Solution

	// History holds one Evaluation per iteration
	History []Evaluation

	// Iterations is the index of the terminal iteration
	Iterations int

	// Converged reports whether the gradient norm fell below the limit
	// (as opposed to exhausting the iteration cap)
	Converged bool
}
