// Package analysis provides diagnostics over field snapshots and probe
// time series.
//
// The package includes tools for characterizing a simulated field:
//
//   - [GenerateRadialProfile]: mean field magnitude in rings around a cell
//   - [DecayExponent]: least-squares falloff exponent of a radial profile
//   - [FieldEnergy]: total energy over an electric/magnetic snapshot pair
//   - [Diverged]: NaN and infinity scan over a snapshot
//   - [PowerSpectrum], [DominantFrequency]: probe series spectra
//
// # Stability Checking
//
// A diverged snapshot almost always means the timestep exceeded the
// stability limit for the cell size:
//
//	if x, y, bad := analysis.Diverged(snap); bad {
//	    // Reduce dt or enlarge cells
//	}
package analysis
