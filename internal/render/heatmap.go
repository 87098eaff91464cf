// Package render draws heatmap results as raster and vector images using
// fogleman/gg, and exports the underlying table.
package render

import (
	"bytes"
	"errors"
	"image/color"
	"image/png"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/stageheat/server/internal/data/expr"
	"github.com/stageheat/server/internal/heatmap"
	"github.com/stageheat/server/pkg/colormap"
)

// ErrEmptyResult is returned when a result with zero rows reaches an export.
// Callers must report the unresolved list instead of exporting.
var ErrEmptyResult = errors.New("heatmap result has no rows")

// Config contains renderer configuration.
type Config struct {
	// CellSize is the pixel edge of one grid cell.
	CellSize int
	// Margin is the outer padding in pixels.
	Margin int
}

// DefaultConfig returns the default render settings.
func DefaultConfig() Config {
	return Config{CellSize: 24, Margin: 12}
}

// Renderer renders heatmap results. Rendering is a pure function of the
// result, so repeated exports of the same result are byte-identical.
type Renderer struct {
	config     Config
	bufferPool sync.Pool
}

// NewRenderer creates a renderer.
func NewRenderer(cfg Config) *Renderer {
	if cfg.CellSize <= 0 {
		cfg.CellSize = DefaultConfig().CellSize
	}
	if cfg.Margin <= 0 {
		cfg.Margin = DefaultConfig().Margin
	}
	return &Renderer{
		config: cfg,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
	}
}

const (
	charWidth  = 7  // basicfont.Face7x13 advance
	lineHeight = 13 // basicfont.Face7x13 height
	columnGap  = 6  // gap before the pattern column
	legendGap  = 24 // gap between grid and legend
)

// layout is the computed pixel geometry for one result.
type layout struct {
	cell         int
	margin       int
	labelWidth   int // widest gene label
	headerHeight int
	gridLeft     int
	gridTop      int
	gridWidth    int // three stage cells plus the pattern cell
	legendLeft   int
	legendWidth  int
	width        int
	height       int
}

func (r *Renderer) layoutFor(res *heatmap.Result) layout {
	cell := r.config.CellSize
	margin := r.config.Margin

	maxLabel := 0
	for _, row := range res.Rows {
		if n := len(row.Gene); n > maxLabel {
			maxLabel = n
		}
	}

	maxLegend := 0
	for _, p := range heatmap.Patterns() {
		if n := len(legendText(p)); n > maxLegend {
			maxLegend = n
		}
	}

	l := layout{
		cell:         cell,
		margin:       margin,
		labelWidth:   maxLabel*charWidth + 8,
		headerHeight: lineHeight + 8,
	}
	l.gridLeft = margin + l.labelWidth
	l.gridTop = margin + l.headerHeight
	l.gridWidth = expr.NumStages*cell + columnGap + cell
	l.legendLeft = l.gridLeft + l.gridWidth + legendGap
	l.legendWidth = cell + 6 + maxLegend*charWidth
	l.width = l.legendLeft + l.legendWidth + margin

	gridHeight := len(res.Rows) * cell
	legendHeight := heatmap.NumPatterns * (cell + 4)
	body := gridHeight
	if legendHeight > body {
		body = legendHeight
	}
	l.height = l.gridTop + body + margin
	return l
}

func legendText(p heatmap.Pattern) string {
	return p.Label() + " " + p.Bits() + " " + p.Description()
}

// PNG renders the result grid as a PNG image: one row per gene, one column
// per stage plus a pattern column, with stage headers, gene labels and a
// pattern legend.
func (r *Renderer) PNG(res *heatmap.Result) ([]byte, error) {
	if len(res.Rows) == 0 {
		return nil, ErrEmptyResult
	}

	l := r.layoutFor(res)
	dc := gg.NewContext(l.width, l.height)
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(color.White)
	dc.Clear()

	// Stage headers plus the pattern column header.
	dc.SetColor(color.Black)
	for _, stage := range expr.Stages {
		x := float64(l.gridLeft + int(stage)*l.cell + l.cell/2)
		dc.DrawStringAnchored(stage.String(), x, float64(l.margin+lineHeight/2), 0.5, 0.35)
	}
	patX := float64(l.gridLeft + expr.NumStages*l.cell + columnGap + l.cell/2)
	dc.DrawStringAnchored("pat", patX, float64(l.margin+lineHeight/2), 0.5, 0.35)

	// Rows.
	for i, row := range res.Rows {
		y := l.gridTop + i*l.cell

		dc.SetColor(color.Black)
		dc.DrawStringAnchored(row.Gene, float64(l.gridLeft-8), float64(y+l.cell/2), 1, 0.35)

		for _, stage := range expr.Stages {
			x := l.gridLeft + int(stage)*l.cell
			if row.Calls[stage] {
				dc.SetColor(colormap.Expressed)
			} else {
				dc.SetColor(colormap.Unexpressed)
			}
			dc.DrawRectangle(float64(x), float64(y), float64(l.cell), float64(l.cell))
			dc.Fill()
			r.strokeCell(dc, x, y, l.cell)
		}

		px := l.gridLeft + expr.NumStages*l.cell + columnGap
		dc.SetColor(colormap.Pattern.AtIndex(row.Pattern.Code()))
		dc.DrawRectangle(float64(px), float64(y), float64(l.cell), float64(l.cell))
		dc.Fill()
		r.strokeCell(dc, px, y, l.cell)

		dc.SetColor(color.Black)
		dc.DrawStringAnchored(row.Pattern.Label(), float64(px+l.cell/2), float64(y+l.cell/2), 0.5, 0.35)
	}

	// Legend: one swatch per pattern in code order.
	for i, p := range heatmap.Patterns() {
		y := l.gridTop + i*(l.cell+4)
		dc.SetColor(colormap.Pattern.AtIndex(p.Code()))
		dc.DrawRectangle(float64(l.legendLeft), float64(y), float64(l.cell), float64(l.cell))
		dc.Fill()
		r.strokeCell(dc, l.legendLeft, y, l.cell)

		dc.SetColor(color.Black)
		dc.DrawStringAnchored(legendText(p), float64(l.legendLeft+l.cell+6), float64(y+l.cell/2), 0, 0.35)
	}

	return r.encodeContext(dc)
}

func (r *Renderer) strokeCell(dc *gg.Context, x, y, size int) {
	dc.SetColor(color.RGBA{200, 200, 200, 255})
	dc.SetLineWidth(1)
	dc.DrawRectangle(float64(x), float64(y), float64(size), float64(size))
	dc.Stroke()
}

func (r *Renderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused).
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
