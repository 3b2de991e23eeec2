package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// PowerSpectrum returns the magnitude of each positive-frequency bin of
// a uniformly sampled probe series.
func PowerSpectrum(series []float64) []float64 {
	bins := fft.FFTReal(series)
	ps := make([]float64, len(bins)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(bins[i])
	}
	return ps
}

// DominantFrequency returns the strongest nonzero frequency in a probe
// series sampled every dt, and its spectral magnitude. The DC bin is
// excluded so a constant offset does not win.
func DominantFrequency(series []float64, dt float64) (freq, power float64) {
	if dt <= 0 {
		return 0, 0
	}
	ps := PowerSpectrum(series)
	if len(ps) < 2 {
		return 0, 0
	}

	best := 1
	for i := 2; i < len(ps); i++ {
		if ps[i] > ps[best] {
			best = i
		}
	}
	return float64(best) / (float64(len(series)) * dt), ps[best]
}
