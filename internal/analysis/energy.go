package analysis

import (
	"math"

	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/field"
)

// FieldEnergy sums (|E|² + |H|²)/2 over a matching snapshot pair. In a
// lossless closed domain the value should hold roughly steady once the
// source has faded; steady growth means the stepping is unstable.
func FieldEnergy(electric, magnetic *field.Grid) float64 {
	total := 0.0
	for _, v := range electric.Data {
		total += float64(v) * float64(v)
	}
	for _, v := range magnetic.Data {
		total += float64(v) * float64(v)
	}
	return total / 2
}

// Diverged scans a snapshot for NaN or infinite components and reports
// the first offending cell.
func Diverged(g *field.Grid) (x, y int, diverged bool) {
	for i, v := range g.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			cell := i / g.Comps
			return cell % g.W, cell / g.W, true
		}
	}
	return 0, 0, false
}
