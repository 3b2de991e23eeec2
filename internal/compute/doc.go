// Package compute provides the grid-compute backends and the command queue
// that orders their passes.
//
// A Backend runs one embarrassingly parallel pass over every cell of a grid:
//
//   - Coefficients: derive per-cell update coefficients from material values
//   - Inject / Decay / Stamp: source excitation bookkeeping
//   - UpdateElectric / UpdateMagnetic: the leapfrog half-steps
//
// Cells within a pass carry no ordering guarantee; ordering between passes is
// the Queue's job. Commands submitted to one Queue execute strictly in
// submission order, so pass N's writes are visible to pass N+1's reads, while
// submission itself never waits:
//
//	q := compute.NewQueue(0, onError)
//	q.Submit("electric", func() error { return be.UpdateElectric(...) })
//	<-q.Fence()
//
// The CPU backend fans each pass out across runtime.NumCPU() workers. An
// OpenCL backend is available behind a build tag:
//
//	go build -tags opencl ./...
//
// AutoSelect picks OpenCL when the build includes it and a device is present,
// falling back to the CPU backend.
package compute
