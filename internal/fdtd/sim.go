package fdtd

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/compute"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/field"
)

// Params configure a Simulation. Grid dimensions are fixed for the lifetime
// of the instance; resizing means creating a new Simulation.
type Params struct {
	Width  int
	Height int

	// CellSize is the physical extent of one cell; Dt the timestep.
	CellSize float32
	Dt       float32

	// Boundary selects the edge treatment, reflecting by default.
	Boundary compute.Boundary

	// DecayDecades is how many orders of magnitude the source field drops
	// per unit of simulated time with no re-injection.
	DecayDecades float32

	// QueueDepth bounds pending compute commands; 0 selects the default.
	QueueDepth int
}

// DefaultParams mirror the reference scene: a 128x128 grid with
// cellSize=0.01 and dt=0.001.
func DefaultParams() Params {
	return Params{
		Width:        128,
		Height:       128,
		CellSize:     0.01,
		Dt:           0.001,
		Boundary:     compute.BoundaryReflect,
		DecayDecades: 3,
	}
}

// CourantNumber returns dt/cellSize, the stability number for a unit wave
// speed. The solver never enforces it; a value much above 1/sqrt(2) will
// diverge and that risk belongs to the caller.
func (p Params) CourantNumber() float64 {
	return float64(p.Dt) / float64(p.CellSize)
}

func (p Params) validate() error {
	if p.Width < 1 || p.Height < 1 {
		return fmt.Errorf("%w: grid %dx%d", ErrInvalidParams, p.Width, p.Height)
	}
	if !(p.Dt > 0) {
		return fmt.Errorf("%w: dt %v", ErrInvalidParams, p.Dt)
	}
	if !(p.CellSize > 0) {
		return fmt.Errorf("%w: cell size %v", ErrInvalidParams, p.CellSize)
	}
	if p.DecayDecades < 0 {
		return fmt.Errorf("%w: decay decades %v", ErrInvalidParams, p.DecayDecades)
	}
	return nil
}

// Region is a rectangle in normalized grid coordinates; both corner cells
// are included.
type Region struct {
	U0, V0, U1, V1 float32
}

// Simulation drives the solver. It owns its grids, the compute backend and
// the command queue. Step and the mutating calls submit passes and return;
// kernel failures surface on Errors.
type Simulation struct {
	params Params
	dims   compute.Dims

	// mu guards buffer roles and the dt/material bookkeeping, all read at
	// submission time. Queued passes only touch buffers captured under it.
	mu       sync.Mutex
	store    *field.Store
	dt       float32
	coeffDt  float32
	matDirty bool

	backend compute.Backend
	queue   *compute.Queue

	clock  atomic.Uint64 // float64 bits of simulated time
	sample atomic.Int32  // readback single-flight state
	errs   chan error
	closed atomic.Bool
}

// New allocates all grids (vacuum material, zero fields), computes the
// initial coefficients synchronously, and starts the command queue. The
// simulation takes ownership of the backend and releases it on Close.
func New(p Params, be compute.Backend) (*Simulation, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if be == nil || !be.Available() {
		return nil, ErrBackendUnavailable
	}

	s := &Simulation{
		params:  p,
		dims:    compute.Dims{W: p.Width, H: p.Height},
		store:   field.NewStore(p.Width, p.Height),
		dt:      p.Dt,
		backend: be,
		errs:    make(chan error, 16),
	}

	// Coefficients must exist before any pass reads them. A failure here is
	// fatal; once stepping starts, failures go to the error channel instead.
	if err := be.Coefficients(s.store.Material.Data, s.store.Coeffs.Data, s.dims, p.Dt, p.CellSize); err != nil {
		be.Cleanup()
		return nil, &StageError{Stage: "coefficients", Wrapped: err}
	}
	s.coeffDt = p.Dt

	s.queue = compute.NewQueue(p.QueueDepth, s.reportError)
	return s, nil
}

// Step advances the simulation by one full dt: source injection and decay,
// the electric half-step, then the magnetic half-step. It enqueues the
// passes and returns without waiting for them to execute.
func (s *Simulation) Step() {
	if s.closed.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dt := s.dt
	decay := float32(math.Exp(-math.Ln10 * float64(s.params.DecayDecades) * float64(dt)))

	if s.matDirty || dt != s.coeffDt {
		material := s.store.Material.Data
		coeffs := s.store.Coeffs.Data
		s.submit("coefficients", func() error {
			return s.backend.Coefficients(material, coeffs, s.dims, dt, s.params.CellSize)
		})
		s.matDirty = false
		s.coeffDt = dt
	}

	// Every write pass is preceded by a swap of the grid it writes: the pass
	// reads the previous role and never aliases its own output.
	s.store.Source.Swap()
	s.store.Electric.Swap()
	prevE := s.store.Electric.Previous.Data
	prevS := s.store.Source.Previous.Data
	injE := s.store.Electric.Current.Data
	curS := s.store.Source.Current.Data
	s.submit("inject", func() error {
		return s.backend.Inject(prevE, prevS, injE, s.dims, dt)
	})
	s.submit("decay", func() error {
		return s.backend.Decay(prevS, curS, s.dims, decay)
	})

	// The electric update consumes the injected buffer as its previous value.
	s.store.Electric.Swap()
	prevInj := s.store.Electric.Previous.Data
	curE := s.store.Electric.Current.Data
	h := s.store.Magnetic.Current.Data
	coeffs := s.store.Coeffs.Data
	boundary := s.params.Boundary
	s.submit("electric", func() error {
		return s.backend.UpdateElectric(prevInj, h, coeffs, curE, s.dims, boundary)
	})
	s.submit("clock", s.advanceClock(float64(dt)/2))

	s.store.Magnetic.Swap()
	prevH := s.store.Magnetic.Previous.Data
	curH := s.store.Magnetic.Current.Data
	s.submit("magnetic", func() error {
		return s.backend.UpdateMagnetic(prevH, curE, coeffs, curH, s.dims, boundary)
	})
	s.submit("clock", s.advanceClock(float64(dt)/2))
}

// InjectSource stamps an elliptical excitation into the source grid. u and v
// are normalized grid coordinates, halfExtentU/V the mask half-extents in
// the same units (at least one cell is always covered). additive keeps the
// old source value under the mask; otherwise the mask replaces it. The stamp
// is queued like any other pass and lands before the next Step's injection.
func (s *Simulation) InjectSource(u, v, halfExtentU, halfExtentV float32, value field.Vec3, additive bool) {
	if s.closed.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := compute.Mask{
		CX: float32(cellIndex(u, s.params.Width)),
		CY: float32(cellIndex(v, s.params.Height)),
		RX: maskRadius(halfExtentU, s.params.Width),
		RY: maskRadius(halfExtentV, s.params.Height),
	}
	keep := float32(0)
	if additive {
		keep = 1
	}

	s.store.Source.Swap()
	prevS := s.store.Source.Previous.Data
	curS := s.store.Source.Current.Data
	val := [3]float32{value.X, value.Y, value.Z}
	s.submit("stamp", func() error {
		return s.backend.Stamp(prevS, curS, s.dims, m, val, keep)
	})
}

// SetMaterial writes (permeability, permittivity, conductivity) into every
// cell of the region, clamped to the normalized [0,1] range the coefficient
// stage expects. Coefficients recompute on the next Step. Zero permeability
// or permittivity yields non-finite coefficients; that risk stays with the
// caller, like the Courant condition.
func (s *Simulation) SetMaterial(r Region, permeability, permittivity, conductivity float32) {
	if s.closed.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	x0, x1 := cellIndex(r.U0, s.params.Width), cellIndex(r.U1, s.params.Width)
	y0, y1 := cellIndex(r.V0, s.params.Height), cellIndex(r.V1, s.params.Height)
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	value := field.Vec3{X: clamp01(permeability), Y: clamp01(permittivity), Z: clamp01(conductivity)}

	material := s.store.Material
	s.submit("material", func() error {
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				material.SetVec3(x, y, value)
			}
		}
		return nil
	})
	s.matDirty = true
}

// SetTimestep changes dt for subsequent steps. Coefficients memoize the dt
// they were built with, so the next Step recomputes them.
func (s *Simulation) SetTimestep(dt float32) error {
	if !(dt > 0) || math.IsInf(float64(dt), 0) {
		return fmt.Errorf("%w: dt %v", ErrInvalidParams, dt)
	}
	s.mu.Lock()
	s.dt = dt
	s.mu.Unlock()
	return nil
}

// Reset zeroes every field grid and the clock; material and coefficients
// survive. Queued like a pass so it cannot tear an in-flight update.
func (s *Simulation) Reset() {
	if s.closed.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bufs := [][]float32{
		s.store.Electric.Current.Data, s.store.Electric.Previous.Data,
		s.store.Magnetic.Current.Data, s.store.Magnetic.Previous.Data,
		s.store.Source.Current.Data, s.store.Source.Previous.Data,
	}
	s.submit("reset", func() error {
		for _, b := range bufs {
			for i := range b {
				b[i] = 0
			}
		}
		s.clock.Store(0)
		return nil
	})
}

// Time returns the simulated clock. It advances by dt/2 after the electric
// half-step and dt/2 after the magnetic one, so a backlog deep enough to
// straddle a step exposes the half-step value.
func (s *Simulation) Time() float64 {
	return math.Float64frombits(s.clock.Load())
}

// GridView returns the grid currently holding name's latest values. The
// view is live: the solver keeps writing it as passes execute. Readers that
// need a consistent frame use Snapshot.
func (s *Simulation) GridView(name field.GridName) *field.Grid {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.View(name)
}

// Snapshot clones name's grid after every previously queued pass has
// executed, giving transports and tests a tear-free frame.
func (s *Simulation) Snapshot(ctx context.Context, name field.GridName) (*field.Grid, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.Lock()
	g := s.store.View(name)
	s.mu.Unlock()

	var out *field.Grid
	done := make(chan struct{})
	if err := s.queue.Submit("snapshot", func() error {
		out = g.Clone()
		close(done)
		return nil
	}); err != nil {
		return nil, err
	}

	select {
	case <-done:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Errors delivers per-step compute failures. The channel is never closed
// and drops when full; drain it opportunistically.
func (s *Simulation) Errors() <-chan error {
	return s.errs
}

// Params returns the construction parameters.
func (s *Simulation) Params() Params {
	return s.params
}

// Dt returns the timestep the next Step will use.
func (s *Simulation) Dt() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dt
}

// Backend names the compute backend in use.
func (s *Simulation) Backend() string {
	return s.backend.Name()
}

// Close drains the queue, releases the backend, and turns every subsequent
// operation into a no-op. Safe to call more than once.
func (s *Simulation) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.queue.Close()
	s.backend.Cleanup()
}

func (s *Simulation) submit(stage string, fn func() error) {
	if err := s.queue.Submit(stage, fn); err != nil {
		s.reportError(stage, err)
	}
}

func (s *Simulation) reportError(stage string, err error) {
	se := &StageError{Stage: stage, Time: s.Time(), Wrapped: err}
	// The dispatcher must never block on a full channel.
	select {
	case s.errs <- se:
	default:
	}
}

func (s *Simulation) advanceClock(half float64) func() error {
	return func() error {
		s.clock.Store(math.Float64bits(math.Float64frombits(s.clock.Load()) + half))
		return nil
	}
}

func cellIndex(u float32, n int) int {
	i := int(u * float32(n))
	if i < 0 {
		i = 0
	}
	if i > n-1 {
		i = n - 1
	}
	return i
}

// maskRadius converts a normalized half-extent to cells, at least one cell
// so a stamp always lands somewhere.
func maskRadius(halfExtent float32, n int) float32 {
	r := halfExtent * float32(n)
	if r < 1 {
		r = 1
	}
	return r
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
