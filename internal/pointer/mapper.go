// Package pointer maps sensor color-space points to screen coordinates.
package pointer

import (
	"errors"
	"fmt"
	"math"
)

// Defaults for the color stream the tracker reports in.
const (
	DefaultZoom         = 2.5
	DefaultSourceWidth  = 1920
	DefaultSourceHeight = 1080
)

// MaxCoordinate bounds every mapped coordinate. Points further out are
// clamped to it so later arithmetic on them stays finite.
const MaxCoordinate = 1 << 30

// ErrInvalidMapper is returned by Validate for unusable mapper settings.
var ErrInvalidMapper = errors.New("invalid pointer mapper")

// Point is a 2D point in either color space or screen space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pixel is an integer screen position.
type Pixel struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Mapper zooms a color-space point around the frame centre and rescales it
// to the target screen.
type Mapper struct {
	Zoom   float64
	Source Size
	Target Size
}

// NewMapper returns a Mapper with the default zoom and source frame for the
// given screen size.
func NewMapper(screenWidth, screenHeight int) Mapper {
	return Mapper{
		Zoom:   DefaultZoom,
		Source: Size{Width: DefaultSourceWidth, Height: DefaultSourceHeight},
		Target: Size{Width: float64(screenWidth), Height: float64(screenHeight)},
	}
}

// Validate checks that the mapper can produce finite output.
func (m Mapper) Validate() error {
	if m.Zoom <= 0 || math.IsNaN(m.Zoom) || math.IsInf(m.Zoom, 0) {
		return fmt.Errorf("%w: zoom %v", ErrInvalidMapper, m.Zoom)
	}
	if m.Source.Width <= 0 || m.Source.Height <= 0 {
		return fmt.Errorf("%w: source %vx%v", ErrInvalidMapper, m.Source.Width, m.Source.Height)
	}
	if m.Target.Width <= 0 || m.Target.Height <= 0 {
		return fmt.Errorf("%w: target %vx%v", ErrInvalidMapper, m.Target.Width, m.Target.Height)
	}
	return nil
}

// Map converts a color-space point to screen space.
// Non-finite coordinates are treated as 0 before the zoom is applied, and
// the result is clamped to ±MaxCoordinate.
func (m Mapper) Map(p Point) Point {
	return Point{
		X: Clamp(m.axis(Sanitize(p.X), m.Source.Width, m.Target.Width)),
		Y: Clamp(m.axis(Sanitize(p.Y), m.Source.Height, m.Target.Height)),
	}
}

func (m Mapper) axis(v, source, target float64) float64 {
	zoomed := source/2 + (v-source/2)*m.Zoom
	return Remap(zoomed, 0, source, 0, target)
}

// Remap linearly maps v from the range [a, b] to the range [c, d].
func Remap(v, a, b, c, d float64) float64 {
	return (v-a)/(b-a)*(d-c) + c
}

// Sanitize replaces NaN and infinities with 0.
func Sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Clamp limits v to ±MaxCoordinate. Infinities clamp to the matching bound
// and NaN becomes 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-MaxCoordinate, math.Min(MaxCoordinate, v))
}

// Floor truncates a screen point toward negative infinity. Coordinates are
// clamped first, so the conversion to int is always defined.
func Floor(p Point) Pixel {
	return Pixel{X: int(math.Floor(Clamp(p.X))), Y: int(math.Floor(Clamp(p.Y)))}
}

// Distance is the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
