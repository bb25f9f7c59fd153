package fields

import (
	"github.com/copyleftdev/STEEPR/internal/optimization"
	"github.com/copyleftdev/STEEPR/internal/optimization/vector"
)

const (
	// DefaultResolution is the default number of samples per grid axis.
	DefaultResolution = 64

	// DefaultTick is the default coordinate distance between samples.
	DefaultTick = 1.0 / 20.0
)

// Grid holds field samples over an axis-aligned square region, row-major
// with Values[i][j] at (OriginX + i*Tick, OriginY + j*Tick). Display shells
// render it as a heatmap.
type Grid struct {
	OriginX    float64     `json:"origin_x"`
	OriginY    float64     `json:"origin_y"`
	Tick       float64     `json:"tick"`
	Resolution int         `json:"resolution"`
	Values     [][]float64 `json:"values"`
}

// Sample evaluates a 2-D field over a resolution x resolution grid centered
// on the given point. Zero resolution or tick select the defaults.
func Sample(field optimization.Field, center vector.Vector, resolution int, tick float64) (*Grid, error) {
	if center.Dim() != 2 {
		return nil, optimization.NewErrorf("grid sampling needs a 2-D center, got %d-D", center.Dim()).
			WithComponent("fields").WithOperation("Sample")
	}
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	if tick <= 0 {
		tick = DefaultTick
	}

	half := float64(resolution) / 2
	grid := &Grid{
		OriginX:    center.At(0) - half*tick,
		OriginY:    center.At(1) - half*tick,
		Tick:       tick,
		Resolution: resolution,
		Values:     make([][]float64, resolution),
	}

	for i := 0; i < resolution; i++ {
		row := make([]float64, resolution)
		x := grid.OriginX + float64(i)*tick
		for j := 0; j < resolution; j++ {
			y := grid.OriginY + float64(j)*tick
			row[j] = field(vector.Of(x, y))
		}
		grid.Values[i] = row
	}

	return grid, nil
}
