// Package export renders simulation artifacts to SVG for inspection
// outside the terminal.
package export

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/electrostatic"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/field"
)

// TracesToSVG renders test charge trajectories as polylines with the
// charges marked as circles. The viewport is fitted to the union of all
// points with a small margin; y grows upward.
func TracesToSVG(traces [][]r2.Vec, charges []electrostatic.Charge, width, height int) string {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	grow := func(p r2.Vec) {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	for _, tr := range traces {
		for _, p := range tr {
			grow(p)
		}
	}
	for _, c := range charges {
		grow(c.Pos)
	}
	if math.IsInf(minX, 1) {
		return ""
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX, rangeY = maxX-minX, maxY-minY

	toPx := func(p r2.Vec) (float64, float64) {
		x := (p.X - minX) / rangeX * float64(width)
		y := float64(height) - (p.Y-minY)/rangeY*float64(height)
		return x, y
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for _, tr := range traces {
		if len(tr) < 2 {
			continue
		}
		sb.WriteString(`<path fill="none" stroke="#00ff00" stroke-width="1.5" d="M`)
		for i, p := range tr {
			x, y := toPx(p)
			if i == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString("\"/>\n")
	}

	for _, c := range charges {
		x, y := toPx(c.Pos)
		fill := "#ffffff"
		if c.Q < 0 {
			fill = "#888888"
		}
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="4" fill="%s"/>
`, x, y, fill))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// HeatmapToSVG renders a snapshot's per-cell magnitude as a grid of
// rects, square root scaled against the frame peak. Cells below the
// opacity floor are skipped to keep the file small.
func HeatmapToSVG(g *field.Grid, scale float64) string {
	if g == nil || g.W == 0 || g.H == 0 {
		return ""
	}
	if scale <= 0 {
		scale = 1
	}

	mags := make([]float64, g.W*g.H)
	peak := 0.0
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			v := g.Vec3At(x, y)
			mag := math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z))
			mags[y*g.W+x] = mag
			if mag > peak {
				peak = mag
			}
		}
	}

	width := float64(g.W) * scale
	height := float64(g.H) * scale

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="#00ff00">
`, width, height, width, height))

	if peak > 0 {
		for y := 0; y < g.H; y++ {
			for x := 0; x < g.W; x++ {
				opacity := math.Sqrt(mags[y*g.W+x] / peak)
				if opacity < 1.0/255 {
					continue
				}
				sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" opacity="%.3f"/>
`, float64(x)*scale, float64(y)*scale, scale, scale, opacity))
			}
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}
