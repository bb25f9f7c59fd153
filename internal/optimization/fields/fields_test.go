package fields

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/STEEPR/internal/optimization"
	"github.com/copyleftdev/STEEPR/internal/optimization/vector"
)

func TestSinCos(t *testing.T) {
	// f(0, 0) = sin(0) + sin(0) + cos(0) = 1
	assert.Equal(t, 1.0, SinCos(vector.Of(0, 0)))

	// f(pi/2, 0) = sin(0) + 1 + 1 = 2
	assert.InDelta(t, 2.0, SinCos(vector.Of(math.Pi/2, 0)), 1e-12)
}

func TestQuadratic(t *testing.T) {
	// g(0, 0, 0) = 0
	assert.Equal(t, 0.0, Quadratic(vector.Of(0, 0, 0)))

	// The analytic maximum is g(1, 1, 2) = 5 with vanishing gradient.
	assert.Equal(t, 5.0, Quadratic(vector.Of(1, 1, 2)))
	grad := vector.Of(1, 1, 2).Gradient(Quadratic)
	assert.Less(t, grad.Norm(), 1e-5)
}

func TestQuadraticIsConcave(t *testing.T) {
	// Every point away from the maximum has a strictly smaller value.
	max := Quadratic(vector.Of(1, 1, 2))
	for _, x := range []vector.Vector{
		vector.Of(0, 0, 0),
		vector.Of(2, 1, 2),
		vector.Of(1, 0, 2),
		vector.Of(-1, 4, 0),
	} {
		assert.Less(t, Quadratic(x), max)
	}
}

func TestLookup(t *testing.T) {
	spec, err := Lookup("sincos")
	require.NoError(t, err)
	assert.Equal(t, 2, spec.Dim)
	assert.Equal(t, 1.0, spec.StepSize)
	assert.Equal(t, []float64{0.2, -2.1}, spec.Seed.Components())

	spec, err = Lookup("quadratic")
	require.NoError(t, err)
	assert.Equal(t, 3, spec.Dim)
	assert.Equal(t, 0.1, spec.StepSize)

	_, err = Lookup("nope")
	assert.ErrorIs(t, err, optimization.ErrUnknownField)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"quadratic", "sincos"}, Names())
}
