package render

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/stageheat/server/internal/data/expr"
	"github.com/stageheat/server/internal/heatmap"
	"github.com/stageheat/server/pkg/colormap"
)

// SVG renders the same grid as PNG in vector form. Output is deterministic:
// rows and legend entries are emitted in a fixed order.
func (r *Renderer) SVG(res *heatmap.Result) ([]byte, error) {
	if len(res.Rows) == 0 {
		return nil, ErrEmptyResult
	}

	l := r.layoutFor(res)
	var b strings.Builder

	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		l.width, l.height, l.width, l.height)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#ffffff"/>`+"\n", l.width, l.height)
	fmt.Fprintf(&b, `<g font-family="monospace" font-size="%d">`+"\n", lineHeight-1)

	// Stage headers plus the pattern column header.
	for _, stage := range expr.Stages {
		x := l.gridLeft + int(stage)*l.cell + l.cell/2
		svgText(&b, x, l.margin+lineHeight, "middle", stage.String())
	}
	svgText(&b, l.gridLeft+expr.NumStages*l.cell+columnGap+l.cell/2, l.margin+lineHeight, "middle", "pat")

	// Rows.
	for i, row := range res.Rows {
		y := l.gridTop + i*l.cell
		svgText(&b, l.gridLeft-8, y+l.cell/2+lineHeight/3, "end", row.Gene)

		for _, stage := range expr.Stages {
			x := l.gridLeft + int(stage)*l.cell
			fill := colormap.Unexpressed
			if row.Calls[stage] {
				fill = colormap.Expressed
			}
			svgCell(&b, x, y, l.cell, fill)
		}

		px := l.gridLeft + expr.NumStages*l.cell + columnGap
		svgCell(&b, px, y, l.cell, colormap.Pattern.AtIndex(row.Pattern.Code()))
		svgText(&b, px+l.cell/2, y+l.cell/2+lineHeight/3, "middle", row.Pattern.Label())
	}

	// Legend.
	for i, p := range heatmap.Patterns() {
		y := l.gridTop + i*(l.cell+4)
		svgCell(&b, l.legendLeft, y, l.cell, colormap.Pattern.AtIndex(p.Code()))
		svgText(&b, l.legendLeft+l.cell+6, y+l.cell/2+lineHeight/3, "start", legendText(p))
	}

	b.WriteString("</g>\n</svg>\n")
	return []byte(b.String()), nil
}

func svgCell(b *strings.Builder, x, y, size int, fill color.Color) {
	fmt.Fprintf(b, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s" stroke="#c8c8c8" stroke-width="1"/>`+"\n",
		x, y, size, size, colormap.Hex(fill))
}

func svgText(b *strings.Builder, x, y int, anchor, s string) {
	fmt.Fprintf(b, `<text x="%d" y="%d" text-anchor="%s">%s</text>`+"\n", x, y, anchor, svgEscape(s))
}

func svgEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
