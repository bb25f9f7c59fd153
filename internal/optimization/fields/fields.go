// Package fields holds the built-in objective fields and their reference
// run parameters, addressable by name so the server can resolve objectives
// from requests.
package fields

import (
	"math"
	"sort"

	"github.com/copyleftdev/STEEPR/internal/optimization"
	"github.com/copyleftdev/STEEPR/internal/optimization/vector"
)

// SinCos is a 2-D field combining sine and cosine terms:
//
//	f(x, y) = sin(x*y) + sin(x) + cos(y)
//
// Its reference run converges within the default iteration cap.
func SinCos(x vector.Vector) float64 {
	xv, yv := x.At(0), x.At(1)
	return math.Sin(xv*yv) + math.Sin(xv) + math.Cos(yv)
}

// Quadratic is a concave 3-D quadratic form:
//
//	g(x, y, z) = -(2x² - 2xy + y² + z² - 2x - 4z)
//
// Its unique maximum is at (1, 1, 2).
func Quadratic(x vector.Vector) float64 {
	x1, x2, x3 := x.At(0), x.At(1), x.At(2)
	return -(2*x1*x1 - 2*x1*x2 + x2*x2 + x3*x3 - 2*x1 - 4*x3)
}

// Spec describes a registered field together with its reference run.
type Spec struct {
	Name     string
	Dim      int
	Field    optimization.Field
	Seed     vector.Vector
	StepSize float64
}

var registry = map[string]Spec{
	"sincos": {
		Name:     "sincos",
		Dim:      2,
		Field:    SinCos,
		Seed:     vector.Of(0.2, -2.1),
		StepSize: 1.0,
	},
	"quadratic": {
		Name:     "quadratic",
		Dim:      3,
		Field:    Quadratic,
		Seed:     vector.Of(0, 0, 0),
		StepSize: 0.1,
	},
}

// Lookup resolves a field by name.
func Lookup(name string) (Spec, error) {
	spec, ok := registry[name]
	if !ok {
		return Spec{}, optimization.WrapErrorf(optimization.ErrUnknownField, "%q", name).
			WithComponent("fields").WithOperation("Lookup")
	}
	return spec, nil
}

// Names returns the registered field names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
