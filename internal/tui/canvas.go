package tui

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/electrostatic"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// Canvas is a braille dot canvas. Cells are runes; each holds a 2x4
// dot block, so the drawable area is (Width*2) x (Height*4) dots.
type Canvas struct {
	Width, Height int
	cells         []rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		cells:  make([]rune, w*h),
	}
	c.Clear()
	return c
}

// Set turns on the dot at (x, y) in dot coordinates.
func (c *Canvas) Set(x, y int) {
	col, row := x/2, y/4
	if x < 0 || y < 0 || col >= c.Width || row >= c.Height {
		return
	}
	c.cells[row*c.Width+col] |= pixelMap[y%4][x%2]
}

// Unset turns off the dot at (x, y).
func (c *Canvas) Unset(x, y int) {
	col, row := x/2, y/4
	if x < 0 || y < 0 || col >= c.Width || row >= c.Height {
		return
	}
	c.cells[row*c.Width+col] &^= pixelMap[y%4][x%2]
	if c.cells[row*c.Width+col] < 0x2800 {
		c.cells[row*c.Width+col] = 0x2800
	}
}

// Clear resets every cell to the empty braille rune.
func (c *Canvas) Clear() {
	for i := range c.cells {
		c.cells[i] = 0x2800
	}
}

// DrawLine draws a line in dot coordinates using Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for row := 0; row < c.Height; row++ {
		b.WriteString(string(c.cells[row*c.Width : (row+1)*c.Width]))
		b.WriteByte('\n')
	}
	return b.String()
}

// PlotTraces renders test charge trajectories onto a braille canvas of
// w x h character cells. The viewport is fitted to the union of all
// trace points and charge positions with a small margin; y grows
// upward as on paper. Charges are marked with a cross, positive or
// negative alike.
func PlotTraces(traces [][]r2.Vec, charges []electrostatic.Charge, w, h int) string {
	c := NewCanvas(w, h)
	dotsW, dotsH := w*2, h*4

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
	for _, q := range charges {
		grow(q.Pos)
	}
	if math.IsInf(minX, 1) {
		return c.String()
	}

	spanX := maxX - minX
	spanY := maxY - minY
	if spanX == 0 {
		spanX = 1
	}
	if spanY == 0 {
		spanY = 1
	}
	minX -= spanX * 0.05
	maxX += spanX * 0.05
	minY -= spanY * 0.05
	maxY += spanY * 0.05
	spanX, spanY = maxX-minX, maxY-minY

	toDot := func(p r2.Vec) (int, int) {
		x := int((p.X - minX) / spanX * float64(dotsW-1))
		y := int((maxY - p.Y) / spanY * float64(dotsH-1))
		return x, y
	}

	for _, tr := range traces {
		for i := 1; i < len(tr); i++ {
			x0, y0 := toDot(tr[i-1])
			x1, y1 := toDot(tr[i])
			c.DrawLine(x0, y0, x1, y1)
		}
	}

	for _, q := range charges {
		x, y := toDot(q.Pos)
		c.Set(x, y)
		c.Set(x-1, y)
		c.Set(x+1, y)
		c.Set(x, y-1)
		c.Set(x, y+1)
	}

	return c.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
