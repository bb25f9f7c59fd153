package optimization

import (
	"math"
	"testing"

	"github.com/copyleftdev/STEEPR/internal/optimization/vector"
)

// Paraboloid is a concave test field with its maximum at the origin:
// f(x) = -sum(x_i^2). Shared by the engine and field tests.
func Paraboloid(x vector.Vector) float64 {
	sum := 0.0
	for i := 0; i < x.Dim(); i++ {
		v := x.At(i)
		sum += v * v
	}
	return -sum
}

// CountingField wraps a field and counts its evaluations.
func CountingField(field Field) (Field, *int) {
	count := new(int)
	return func(x vector.Vector) float64 {
		*count++
		return field(x)
	}, count
}

// AssertVectorsEqual checks that two vectors agree componentwise within tol.
func AssertVectorsEqual(t testing.TB, got, want vector.Vector, tol float64) {
	t.Helper()

	if got.Dim() != want.Dim() {
		t.Fatalf("dimension mismatch: got %d, want %d", got.Dim(), want.Dim())
	}

	for i := 0; i < got.Dim(); i++ {
		if math.Abs(got.At(i)-want.At(i)) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got.At(i), want.At(i), tol)
		}
	}
}
