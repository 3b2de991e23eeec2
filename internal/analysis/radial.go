package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/field"
)

// RadialProfile holds mean field magnitude binned into unit-width rings
// around a center cell. Ring k collects cells whose distance rounds to k.
type RadialProfile struct {
	CenterX, CenterY int
	Radii            []float64
	Mean             []float64
}

// GenerateRadialProfile bins a snapshot's field magnitude by distance
// from (cx, cy) out to maxR cells. Empty rings are dropped.
func GenerateRadialProfile(g *field.Grid, cx, cy, maxR int) *RadialProfile {
	sums := make([]float64, maxR+1)
	counts := make([]int, maxR+1)

	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			dx := float64(x - cx)
			dy := float64(y - cy)
			ring := int(math.Round(math.Sqrt(dx*dx + dy*dy)))
			if ring > maxR {
				continue
			}
			sums[ring] += float64(g.Vec3At(x, y).Magnitude())
			counts[ring]++
		}
	}

	p := &RadialProfile{CenterX: cx, CenterY: cy}
	for r := 1; r <= maxR; r++ {
		if counts[r] == 0 {
			continue
		}
		p.Radii = append(p.Radii, float64(r))
		p.Mean = append(p.Mean, sums[r]/float64(counts[r]))
	}
	return p
}

// DecayExponent fits mean ≈ c·r^b over the profile's nonzero rings and
// returns b. The second result reports whether at least two rings were
// usable; a radiating point source in 2D sits near b = -1.
func DecayExponent(p *RadialProfile) (float64, bool) {
	logR := make([]float64, 0, len(p.Radii))
	logM := make([]float64, 0, len(p.Mean))

	for i, m := range p.Mean {
		if m <= 0 {
			continue
		}
		logR = append(logR, math.Log(p.Radii[i]))
		logM = append(logM, math.Log(m))
	}
	if len(logR) < 2 {
		return 0, false
	}

	_, slope := stat.LinearRegression(logR, logM, nil, false)
	return slope, true
}
