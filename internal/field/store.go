package field

import "fmt"

// GridName identifies one of the solver's observable grids.
type GridName int

const (
	Electric GridName = iota
	Magnetic
	Source
	Material
	Coefficients
)

func (n GridName) String() string {
	switch n {
	case Electric:
		return "electric"
	case Magnetic:
		return "magnetic"
	case Source:
		return "source"
	case Material:
		return "material"
	case Coefficients:
		return "coefficients"
	default:
		return fmt.Sprintf("grid(%d)", int(n))
	}
}

// Store owns every grid of one simulation: the three double-buffered field
// grids plus the static material grid and its derived update coefficients.
// Dimensions are fixed for the store's lifetime.
type Store struct {
	W, H int

	Electric Ping
	Magnetic Ping
	Source   Ping
	Material *Grid // μr, εr, σ per cell, normalized to [0,1]
	Coeffs   *Grid // αE, βE, αM, βM per cell
}

// NewStore allocates all grids zeroed, with the material grid set to vacuum
// (permeability 1, permittivity 1, conductivity 0).
func NewStore(w, h int) *Store {
	s := &Store{
		W:        w,
		H:        h,
		Electric: NewPing(w, h, 3),
		Magnetic: NewPing(w, h, 3),
		Source:   NewPing(w, h, 3),
		Material: NewGrid(w, h, 3),
		Coeffs:   NewGrid(w, h, 4),
	}
	s.Material.Fill(1, 1, 0)
	return s
}

// View returns the named grid; for double-buffered grids this is the
// current role, holding the most recently computed values.
func (s *Store) View(name GridName) *Grid {
	switch name {
	case Electric:
		return s.Electric.Current
	case Magnetic:
		return s.Magnetic.Current
	case Source:
		return s.Source.Current
	case Material:
		return s.Material
	case Coefficients:
		return s.Coeffs
	default:
		return nil
	}
}

// ZeroFields clears both buffers of every double-buffered grid. Material
// and coefficients are left untouched.
func (s *Store) ZeroFields() {
	for _, p := range []*Ping{&s.Electric, &s.Magnetic, &s.Source} {
		p.Current.Zero()
		p.Previous.Zero()
	}
}
