package vector

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstruction(t *testing.T) {
	t.Run("new is zero", func(t *testing.T) {
		v := New(3)
		assert.Equal(t, 3, v.Dim())
		for i := 0; i < 3; i++ {
			assert.Zero(t, v.At(i))
		}
	})

	t.Run("of keeps components", func(t *testing.T) {
		v := Of(0.2, -2.1)
		assert.Equal(t, 2, v.Dim())
		assert.Equal(t, 0.2, v.At(0))
		assert.Equal(t, -2.1, v.At(1))
	})

	t.Run("of copies its arguments", func(t *testing.T) {
		src := []float64{1, 2}
		v := Of(src...)
		src[0] = 99
		assert.Equal(t, 1.0, v.At(0))
	})

	t.Run("invalid dimension panics", func(t *testing.T) {
		assert.Panics(t, func() { New(0) })
		assert.Panics(t, func() { Of() })
	})
}

func TestIndexAccess(t *testing.T) {
	v := Of(1, 2, 3)

	v.SetAt(1, 7)
	assert.Equal(t, 7.0, v.At(1))

	assert.Panics(t, func() { v.At(-1) })
	assert.Panics(t, func() { v.At(3) })
	assert.Panics(t, func() { v.SetAt(3, 0) })
}

func TestClone(t *testing.T) {
	v := Of(1, 2)
	c := v.Clone()
	c.SetAt(0, 42)

	assert.Equal(t, 1.0, v.At(0), "clone must not alias the original")
	assert.Equal(t, 42.0, c.At(0))
}

func TestNorm(t *testing.T) {
	assert.Equal(t, 5.0, Of(3, 4).Norm())
	assert.Equal(t, 0.0, New(4).Norm())
	assert.Equal(t, 2.0, Of(-2).Norm())
}

func TestArithmetic(t *testing.T) {
	a := Of(1, 2)
	b := Of(3, -1)

	t.Run("scale", func(t *testing.T) {
		got := a.Scale(2)
		assert.Equal(t, 2.0, got.At(0))
		assert.Equal(t, 4.0, got.At(1))
		assert.Equal(t, 1.0, a.At(0), "operand must stay unmodified")
	})

	t.Run("add", func(t *testing.T) {
		got := a.Add(b)
		assert.Equal(t, 4.0, got.At(0))
		assert.Equal(t, 1.0, got.At(1))
	})

	t.Run("add scaled", func(t *testing.T) {
		got := a.AddScaled(0.5, b)
		assert.Equal(t, 2.5, got.At(0))
		assert.Equal(t, 1.5, got.At(1))
	})

	t.Run("dimension mismatch panics", func(t *testing.T) {
		c := Of(1, 2, 3)
		assert.Panics(t, func() { a.Add(c) })
		assert.Panics(t, func() { a.AddScaled(1, c) })
	})
}

func TestGradient(t *testing.T) {
	square := func(x Vector) float64 { return x.At(0) * x.At(0) }

	// d/dx x^2 = 2x, estimated within O(H).
	for _, a := range []float64{0, 1, -3.5} {
		grad := Of(a).Gradient(square)
		assert.InDelta(t, 2*a, grad.At(0), 1e-5, "gradient of x^2 at %v", a)
	}
}

func TestGradientSharedBaseline(t *testing.T) {
	calls := 0
	field := func(x Vector) float64 {
		calls++
		return x.At(0) + 2*x.At(1) + 3*x.At(2)
	}

	v := Of(1, 1, 1)
	grad := v.Gradient(field)

	// One baseline plus one probe per dimension.
	assert.Equal(t, 4, calls)
	assert.InDelta(t, 1.0, grad.At(0), 1e-6)
	assert.InDelta(t, 2.0, grad.At(1), 1e-6)
	assert.InDelta(t, 3.0, grad.At(2), 1e-6)
}

func TestGradientLeavesInputUnmodified(t *testing.T) {
	v := Of(1, 2)
	_ = v.Gradient(func(x Vector) float64 { return x.At(0) })
	assert.Equal(t, 1.0, v.At(0))
	assert.Equal(t, 2.0, v.At(1))
}

func TestAllFinite(t *testing.T) {
	assert.True(t, Of(1, -2, 0).AllFinite())
	assert.False(t, Of(1, math.NaN()).AllFinite())
	assert.False(t, Of(math.Inf(1), 0).AllFinite())
	assert.False(t, Of(0, math.Inf(-1)).AllFinite())
}

func TestString(t *testing.T) {
	assert.Equal(t, "Vector{1, -2.5}", Of(1, -2.5).String())
}

func TestJSONRoundTrip(t *testing.T) {
	v := Of(0.2, -2.1)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, "[0.2, -2.1]", string(data))

	var got Vector
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, v.Components(), got.Components())

	assert.Error(t, json.Unmarshal([]byte("[]"), &got), "empty component list")
}
