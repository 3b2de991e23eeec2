package compute

import "fmt"

// Per-cell component counts. Field and material grids carry 3 floats per
// cell, the coefficient grid carries 4 (alphaE, betaE, alphaM, betaM).
const (
	fieldComps = 3
	matComps   = 3
	coeffComps = 4
)

// Dims is the extent of the grid a pass runs over.
type Dims struct {
	W, H int
}

// Cells returns the number of cells in the grid.
func (d Dims) Cells() int { return d.W * d.H }

// Boundary selects the edge treatment for the update stencils.
type Boundary int

const (
	// BoundaryReflect clamps neighbor reads at the domain edge, so outgoing
	// energy reflects back in (closed box, the default).
	BoundaryReflect Boundary = iota

	// BoundaryOpen replaces the stencil inside a band of openMargin cells at
	// each edge with a copy from one band-width inward. A crude outflow
	// approximation that bleeds energy out instead of reflecting it; not a
	// perfectly matched layer.
	BoundaryOpen
)

func (b Boundary) String() string {
	switch b {
	case BoundaryReflect:
		return "reflect"
	case BoundaryOpen:
		return "open"
	default:
		return fmt.Sprintf("boundary(%d)", int(b))
	}
}

// ParseBoundary maps a config string onto a Boundary mode.
func ParseBoundary(s string) (Boundary, error) {
	switch s {
	case "reflect", "":
		return BoundaryReflect, nil
	case "open":
		return BoundaryOpen, nil
	default:
		return BoundaryReflect, fmt.Errorf("compute: unknown boundary mode %q", s)
	}
}

// Mask is the elliptical footprint of a point injection, in cell units.
type Mask struct {
	CX, CY float32
	RX, RY float32
}

// Inside reports whether cell (x, y) falls within the ellipse. RX and RY
// must be positive.
func (m Mask) Inside(x, y int) bool {
	dx := (float32(x) - m.CX) / m.RX
	dy := (float32(y) - m.CY) / m.RY
	return dx*dx+dy*dy <= 1
}

// Backend executes the solver's per-cell grid passes. Implementations run
// the cells of one pass in parallel with no ordering between them; callers
// serialize passes through a Queue. Every buffer is row-major with the
// component counts above, and an output buffer is never also an input.
type Backend interface {
	Name() string
	Available() bool

	// Coefficients derives (alphaE, betaE, alphaM, betaM) per cell from the
	// material values (permeability, permittivity, conductivity) and the
	// timestep.
	Coefficients(material, coeffs []float32, d Dims, dt, cellSize float32) error

	// Inject adds the dt-scaled source field into the previous electric
	// field, writing the current one.
	Inject(prevElectric, prevSource, electric []float32, d Dims, dt float32) error

	// Decay scales the previous source field by a constant factor.
	Decay(prevSource, source []float32, d Dims, factor float32) error

	// Stamp writes value into the source cells inside the mask, keeping
	// keep*previous of what was there; cells outside carry the previous
	// value through unchanged.
	Stamp(prevSource, source []float32, d Dims, m Mask, value [3]float32, keep float32) error

	// UpdateElectric advances the electric half-step from the previous
	// electric field and the current magnetic field.
	UpdateElectric(prevElectric, magnetic, coeffs, electric []float32, d Dims, b Boundary) error

	// UpdateMagnetic advances the magnetic half-step from the previous
	// magnetic field and the just-updated electric field.
	UpdateMagnetic(prevMagnetic, electric, coeffs, magnetic []float32, d Dims, b Boundary) error

	Cleanup()
}

// AutoSelect returns the OpenCL backend when the build includes it and a
// device is present, falling back to the CPU backend. The caller owns the
// returned backend and must Cleanup it when done.
func AutoSelect() Backend {
	if be, err := NewOpenCLBackend(); err == nil {
		return be
	}
	return NewCPUBackend()
}

func checkGrid(pass string, d Dims, comps int, bufs ...[]float32) error {
	want := d.Cells() * comps
	for _, b := range bufs {
		if len(b) != want {
			return fmt.Errorf("compute: %s pass wants %d floats per buffer for a %dx%d grid, got %d", pass, want, d.W, d.H, len(b))
		}
	}
	return nil
}
