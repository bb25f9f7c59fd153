// Package vector provides the fixed-dimension coordinate type used by the
// steepest-ascent engine, including the forward-difference gradient estimator.
package vector

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// H is the perturbation used by the forward-difference gradient estimator.
// Smaller values trade truncation error for floating-point cancellation error.
const H = 1e-7

// Vector is an ordered tuple of float64 components. The dimension is fixed
// at construction and never changes.
//
// Arithmetic methods (Scale, Add, AddScaled, Gradient) return new Vectors and
// leave their operands untouched. SetAt mutates in place; callers that share
// a Vector should Clone before mutating.
type Vector struct {
	elems []float64
}

// New returns a zero vector of the given dimension.
func New(dim int) Vector {
	if dim < 1 {
		panic(fmt.Sprintf("vector: invalid dimension %d", dim))
	}
	return Vector{elems: make([]float64, dim)}
}

// Of constructs a vector from explicit components.
func Of(values ...float64) Vector {
	if len(values) == 0 {
		panic("vector: need at least one component")
	}
	return Vector{elems: append([]float64(nil), values...)}
}

// Dim returns the dimension of the vector.
func (v Vector) Dim() int {
	return len(v.elems)
}

// At returns component i. It panics if i is out of range.
func (v Vector) At(i int) float64 {
	v.check(i)
	return v.elems[i]
}

// SetAt writes component i in place. It panics if i is out of range.
func (v Vector) SetAt(i int, val float64) {
	v.check(i)
	v.elems[i] = val
}

func (v Vector) check(i int) {
	if i < 0 || i >= len(v.elems) {
		panic(fmt.Sprintf("vector: index %d out of range [0,%d)", i, len(v.elems)))
	}
}

// Clone returns an independent copy of the vector.
func (v Vector) Clone() Vector {
	return Vector{elems: append([]float64(nil), v.elems...)}
}

// Components returns a copy of the underlying components.
func (v Vector) Components() []float64 {
	return append([]float64(nil), v.elems...)
}

// Norm returns the Euclidean norm of the vector. It is never negative and
// zero only for the zero vector.
func (v Vector) Norm() float64 {
	return floats.Norm(v.elems, 2)
}

// Scale returns s*v as a new vector.
func (v Vector) Scale(s float64) Vector {
	out := make([]float64, len(v.elems))
	floats.ScaleTo(out, s, v.elems)
	return Vector{elems: out}
}

// Add returns v+other as a new vector. It panics on dimension mismatch.
func (v Vector) Add(other Vector) Vector {
	v.checkDim(other)
	out := make([]float64, len(v.elems))
	floats.AddTo(out, v.elems, other.elems)
	return Vector{elems: out}
}

// AddScaled returns v + s*other as a new vector. It panics on dimension
// mismatch.
func (v Vector) AddScaled(s float64, other Vector) Vector {
	v.checkDim(other)
	out := make([]float64, len(v.elems))
	floats.AddScaledTo(out, v.elems, s, other.elems)
	return Vector{elems: out}
}

func (v Vector) checkDim(other Vector) {
	if len(v.elems) != len(other.elems) {
		panic(fmt.Sprintf("vector: dimension mismatch %d != %d", len(v.elems), len(other.elems)))
	}
}

// Gradient estimates the gradient of field at v by one-sided forward
// differences: component i is (field(v with elems[i]+H) - field(v)) / H.
// It costs one baseline evaluation plus one evaluation per dimension.
//
// The estimator is first-order accurate and biased in the direction of the
// perturbation. It is deliberately not a centered difference.
func (v Vector) Gradient(field func(Vector) float64) Vector {
	return v.GradientAt(field, field(v))
}

// GradientAt is Gradient with the baseline value field(v) already known,
// saving one field evaluation.
func (v Vector) GradientAt(field func(Vector) float64, base float64) Vector {
	grad := make([]float64, len(v.elems))
	for i := range v.elems {
		probe := v.Clone()
		probe.elems[i] += H
		grad[i] = (field(probe) - base) / H
	}
	return Vector{elems: grad}
}

// AllFinite reports whether every component is finite (neither NaN nor Inf).
func (v Vector) AllFinite() bool {
	for _, e := range v.elems {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return false
		}
	}
	return true
}

// String formats the vector as Vector{c0, c1, ...}.
func (v Vector) String() string {
	var b strings.Builder
	b.WriteString("Vector{")
	for i, e := range v.elems {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%g", e)
	}
	b.WriteString("}")
	return b.String()
}

// MarshalJSON encodes the vector as a JSON array of components.
func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.elems)
}

// UnmarshalJSON decodes a JSON array of components.
func (v *Vector) UnmarshalJSON(data []byte) error {
	var elems []float64
	if err := json.Unmarshal(data, &elems); err != nil {
		return err
	}
	if len(elems) == 0 {
		return fmt.Errorf("vector: empty component list")
	}
	v.elems = elems
	return nil
}
