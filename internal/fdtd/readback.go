package fdtd

import (
	"context"

	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/field"
)

// Sample is one cell's electric field with its precomputed magnitude.
type Sample struct {
	Ex, Ey, Ez float32
	Magnitude  float32
}

// Readback single-flight states.
const (
	sampleIdle int32 = iota
	sampleInFlight
	sampleReady
)

// SampleFieldAt reads the electric field at normalized coordinates (u, v)
// once every previously queued pass has executed. At most one sample may be
// in flight: a call arriving while another is pending returns the zero
// Sample immediately with no error. Out-of-range coordinates clamp to the
// nearest cell. The channel is meant for sparse diagnostic queries, not
// per-frame polling.
func (s *Simulation) SampleFieldAt(ctx context.Context, u, v float32) (Sample, error) {
	if s.closed.Load() {
		return Sample{}, ErrClosed
	}
	if !s.sample.CompareAndSwap(sampleIdle, sampleInFlight) {
		return Sample{}, nil
	}

	s.mu.Lock()
	grid := s.store.View(field.Electric)
	s.mu.Unlock()
	x := cellIndex(u, grid.W)
	y := cellIndex(v, grid.H)

	out := new(Sample)
	ready := make(chan struct{})
	err := s.queue.Submit("readback", func() error {
		vec := grid.Vec3At(x, y)
		*out = Sample{
			Ex:        vec.X,
			Ey:        vec.Y,
			Ez:        vec.Z,
			Magnitude: vec.Magnitude(),
		}
		// The task owns the slot reset; an abandoned waiter cannot wedge it.
		// Idle is restored before waiters wake so a back-to-back sequential
		// caller is not spuriously rejected.
		s.sample.Store(sampleReady)
		s.sample.Store(sampleIdle)
		close(ready)
		return nil
	})
	if err != nil {
		s.sample.Store(sampleIdle)
		return Sample{}, err
	}

	select {
	case <-ready:
		return *out, nil
	case <-ctx.Done():
		return Sample{}, ctx.Err()
	}
}
