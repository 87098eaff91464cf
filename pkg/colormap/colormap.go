// Package colormap provides color schemes for heatmap visualization.
package colormap

import (
	"fmt"
	"image/color"
)

// Colormap maps normalized values [0, 1] to colors.
type Colormap interface {
	At(t float64) color.Color
	AtIndex(i int) color.Color
}

// LinearColormap is a linear interpolation colormap.
type LinearColormap struct {
	colors []color.RGBA
}

// At returns the color at position t (0-1).
func (c LinearColormap) At(t float64) color.Color {
	if t <= 0 {
		return c.colors[0]
	}
	if t >= 1 {
		return c.colors[len(c.colors)-1]
	}

	idx := t * float64(len(c.colors)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(c.colors) {
		upper = len(c.colors) - 1
	}

	frac := idx - float64(lower)
	return interpolate(c.colors[lower], c.colors[upper], frac)
}

// AtIndex returns color at index i (wraps around).
func (c LinearColormap) AtIndex(i int) color.Color {
	return c.colors[i%len(c.colors)]
}

func interpolate(c1, c2 color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c1.R) + t*(float64(c2.R)-float64(c1.R))),
		G: uint8(float64(c1.G) + t*(float64(c2.G)-float64(c1.G))),
		B: uint8(float64(c1.B) + t*(float64(c2.B)-float64(c1.B))),
		A: 255,
	}
}

// CategoricalColormap provides distinct colors for categories.
type CategoricalColormap struct {
	colors []color.RGBA
}

// At returns color at position t.
func (c CategoricalColormap) At(t float64) color.Color {
	idx := int(t * float64(len(c.colors)))
	if idx >= len(c.colors) {
		idx = len(c.colors) - 1
	}
	return c.colors[idx]
}

// AtIndex returns color at index.
func (c CategoricalColormap) AtIndex(i int) color.Color {
	return c.colors[i%len(c.colors)]
}

// Pattern holds one fixed color per 3-bit expression pattern, indexed by the
// pattern code (000 -> 0 ... 111 -> 7). The palette must stay in code order so
// that grid cells, legends and exports agree on pattern colors.
var Pattern = CategoricalColormap{
	colors: []color.RGBA{
		{102, 194, 165, 255}, // #66c2a5 code 000
		{252, 141, 98, 255},  // #fc8d62 code 001
		{141, 160, 203, 255}, // #8da0cb code 010
		{231, 138, 195, 255}, // #e78ac3 code 011
		{166, 216, 84, 255},  // #a6d854 code 100
		{255, 217, 47, 255},  // #ffd92f code 101
		{229, 196, 148, 255}, // #e5c494 code 110
		{179, 179, 179, 255}, // #b3b3b3 code 111
	},
}

// Fill colors for the per-stage call cells.
var (
	// Expressed is the fill for a stage call of true.
	Expressed = color.RGBA{33, 102, 172, 255}
	// Unexpressed is the fill for a stage call of false.
	Unexpressed = color.RGBA{247, 247, 247, 255}
)

// Expression is a light-gray to red ramp for value-based coloring.
var Expression = LinearColormap{
	colors: []color.RGBA{
		{211, 211, 211, 255},
		{255, 0, 0, 255},
	},
}

// Hex formats a color as a #rrggbb string for SVG and JSON payloads.
func Hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", uint8(r>>8), uint8(g>>8), uint8(b>>8))
}
