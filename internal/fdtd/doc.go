// Package fdtd implements the 2D finite-difference time-domain field solver.
//
// A Simulation owns double-buffered electric, magnetic and source grids plus
// a static material grid and its derived update coefficients, and advances
// them with a leapfrog (Yee-style) update:
//
//   - [Simulation.Step]: inject and decay sources, then run the electric and
//     magnetic half-steps
//   - [Simulation.InjectSource]: stamp an elliptical excitation into the
//     source grid
//   - [Simulation.SampleFieldAt]: read one cell's field back to the host
//   - [Simulation.Snapshot]: clone a whole grid once queued work has run
//
// Step submits compute passes to the command queue and returns without
// waiting, so a fixed stepping cadence survives accelerator backlog. Kernel
// failures surface on [Simulation.Errors] rather than panicking a render
// loop.
//
// # Example
//
//	sim, err := fdtd.New(fdtd.DefaultParams(), compute.AutoSelect())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sim.Close()
//
//	sim.InjectSource(0.5, 0.5, 1.0/128, 1.0/128, field.Vec3{Z: 1}, false)
//	sim.Step()
//	sample, _ := sim.SampleFieldAt(ctx, 0.5, 0.5)
//
// # Thread Safety
//
// One goroutine owns stepping. SampleFieldAt and Snapshot may be called from
// other goroutines; both serialize through the command queue. The solver
// never checks the Courant condition; callers pick dt and cellSize that keep
// the scheme stable.
package fdtd
