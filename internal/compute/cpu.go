package compute

import (
	"runtime"
	"sync"
)

// Passes over fewer cells than this run on the calling goroutine; fan-out
// overhead dominates for small grids.
const serialThreshold = 4096

// openMargin is the absorbing band width in cells for BoundaryOpen.
const openMargin = 2

type CPUBackend struct {
	workers int
}

func NewCPUBackend() *CPUBackend {
	return &CPUBackend{
		workers: runtime.NumCPU(),
	}
}

func (c *CPUBackend) Name() string    { return "cpu" }
func (c *CPUBackend) Available() bool { return true }
func (c *CPUBackend) Cleanup()        {}

func (c *CPUBackend) parallelFor(n int, fn func(start, end int)) {
	if n <= serialThreshold || c.workers <= 1 {
		fn(0, n)
		return
	}

	workers := c.workers
	if n/serialThreshold < workers {
		workers = n / serialThreshold
	}
	if workers < 1 {
		workers = 1
	}
	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}

		go func(s, e int) {
			defer wg.Done()
			if s < e {
				fn(s, e)
			}
		}(start, end)
	}

	wg.Wait()
}

func (c *CPUBackend) Coefficients(material, coeffs []float32, d Dims, dt, cellSize float32) error {
	if err := checkGrid("coefficients", d, matComps, material); err != nil {
		return err
	}
	if err := checkGrid("coefficients", d, coeffComps, coeffs); err != nil {
		return err
	}

	c.parallelFor(d.Cells(), func(start, end int) {
		for i := start; i < end; i++ {
			mu := material[i*matComps]
			eps := material[i*matComps+1]
			sigma := material[i*matComps+2]

			cE := sigma * dt / (2 * mu)
			dE := 1 / (1 + cE)
			cM := sigma * dt / (2 * eps)
			dM := 1 / (1 + cM)

			o := i * coeffComps
			coeffs[o] = (1 - cE) * dE
			coeffs[o+1] = dt / (mu * cellSize) * dE
			coeffs[o+2] = (1 - cM) * dM
			coeffs[o+3] = dt / (eps * cellSize) * dM
		}
	})
	return nil
}

func (c *CPUBackend) Inject(prevElectric, prevSource, electric []float32, d Dims, dt float32) error {
	if err := checkGrid("inject", d, fieldComps, prevElectric, prevSource, electric); err != nil {
		return err
	}

	c.parallelFor(d.Cells()*fieldComps, func(start, end int) {
		for i := start; i < end; i++ {
			electric[i] = prevElectric[i] + dt*prevSource[i]
		}
	})
	return nil
}

func (c *CPUBackend) Decay(prevSource, source []float32, d Dims, factor float32) error {
	if err := checkGrid("decay", d, fieldComps, prevSource, source); err != nil {
		return err
	}

	c.parallelFor(d.Cells()*fieldComps, func(start, end int) {
		for i := start; i < end; i++ {
			source[i] = prevSource[i] * factor
		}
	})
	return nil
}

func (c *CPUBackend) Stamp(prevSource, source []float32, d Dims, m Mask, value [3]float32, keep float32) error {
	if err := checkGrid("stamp", d, fieldComps, prevSource, source); err != nil {
		return err
	}

	w := d.W
	c.parallelFor(d.Cells(), func(start, end int) {
		for i := start; i < end; i++ {
			o := i * fieldComps
			if m.Inside(i%w, i/w) {
				source[o] = value[0] + keep*prevSource[o]
				source[o+1] = value[1] + keep*prevSource[o+1]
				source[o+2] = value[2] + keep*prevSource[o+2]
			} else {
				source[o] = prevSource[o]
				source[o+1] = prevSource[o+1]
				source[o+2] = prevSource[o+2]
			}
		}
	})
	return nil
}

func (c *CPUBackend) UpdateElectric(prevElectric, magnetic, coeffs, electric []float32, d Dims, b Boundary) error {
	if err := checkGrid("electric", d, fieldComps, prevElectric, magnetic, electric); err != nil {
		return err
	}
	if err := checkGrid("electric", d, coeffComps, coeffs); err != nil {
		return err
	}

	w, h := d.W, d.H
	c.parallelFor(d.Cells(), func(start, end int) {
		for i := start; i < end; i++ {
			x, y := i%w, i/w
			o := i * fieldComps

			if b == BoundaryOpen {
				if sx, sy, band := openBandSource(x, y, w, h); band {
					so := (sy*w + sx) * fieldComps
					electric[o] = prevElectric[so]
					electric[o+1] = prevElectric[so+1]
					electric[o+2] = prevElectric[so+2]
					continue
				}
			}

			xm, ym := x-1, y-1
			if xm < 0 {
				xm = 0
			}
			if ym < 0 {
				ym = 0
			}
			ox := (y*w + xm) * fieldComps
			oy := (ym*w + x) * fieldComps

			co := i * coeffComps
			aE, bE := coeffs[co], coeffs[co+1]
			electric[o] = aE*prevElectric[o] + bE*(magnetic[o+2]-magnetic[oy+2])
			electric[o+1] = aE*prevElectric[o+1] + bE*(magnetic[ox+2]-magnetic[o+2])
			electric[o+2] = aE*prevElectric[o+2] + bE*((magnetic[o+1]-magnetic[ox+1])-(magnetic[o]-magnetic[oy]))
		}
	})
	return nil
}

func (c *CPUBackend) UpdateMagnetic(prevMagnetic, electric, coeffs, magnetic []float32, d Dims, b Boundary) error {
	if err := checkGrid("magnetic", d, fieldComps, prevMagnetic, electric, magnetic); err != nil {
		return err
	}
	if err := checkGrid("magnetic", d, coeffComps, coeffs); err != nil {
		return err
	}

	w, h := d.W, d.H
	c.parallelFor(d.Cells(), func(start, end int) {
		for i := start; i < end; i++ {
			x, y := i%w, i/w
			o := i * fieldComps

			if b == BoundaryOpen {
				if sx, sy, band := openBandSource(x, y, w, h); band {
					so := (sy*w + sx) * fieldComps
					magnetic[o] = prevMagnetic[so]
					magnetic[o+1] = prevMagnetic[so+1]
					magnetic[o+2] = prevMagnetic[so+2]
					continue
				}
			}

			xp, yp := x+1, y+1
			if xp > w-1 {
				xp = w - 1
			}
			if yp > h-1 {
				yp = h - 1
			}
			ox := (y*w + xp) * fieldComps
			oy := (yp*w + x) * fieldComps

			co := i * coeffComps
			aM, bM := coeffs[co+2], coeffs[co+3]
			magnetic[o] = aM*prevMagnetic[o] - bM*(electric[oy+2]-electric[o+2])
			magnetic[o+1] = aM*prevMagnetic[o+1] - bM*(electric[o+2]-electric[ox+2])
			magnetic[o+2] = aM*prevMagnetic[o+2] - bM*((electric[ox+1]-electric[o+1])-(electric[oy]-electric[o]))
		}
	})
	return nil
}

// openBandSource maps an edge-band cell to the interior cell it copies from
// under BoundaryOpen, reporting whether (x, y) lies in the band at all.
func openBandSource(x, y, w, h int) (sx, sy int, band bool) {
	sx, sy = x, y
	if x < openMargin {
		sx, band = x+openMargin, true
	} else if x >= w-openMargin {
		sx, band = x-openMargin, true
	}
	if y < openMargin {
		sy, band = y+openMargin, true
	} else if y >= h-openMargin {
		sy, band = y-openMargin, true
	}
	// Grids narrower than two bands would otherwise map outside the domain.
	if sx < 0 {
		sx = 0
	} else if sx >= w {
		sx = w - 1
	}
	if sy < 0 {
		sy = 0
	} else if sy >= h {
		sy = h - 1
	}
	return sx, sy, band
}
