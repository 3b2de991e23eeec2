// Package electrostatic evaluates the instantaneous field of point charges
// on the unit plane. Unlike the time-domain solver, everything here is
// closed form: the field at a point is the Coulomb sum over all charges.
package electrostatic

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Charge is a point charge at a fixed position.
type Charge struct {
	Pos r2.Vec
	Q   float64
}

// Field is a static charge configuration. K is the Coulomb constant in
// simulation units; Softening bounds the singularity at charge positions.
type Field struct {
	Charges   []Charge
	K         float64
	Softening float64
}

func NewField(charges []Charge) *Field {
	return &Field{
		Charges:   charges,
		K:         1.0,
		Softening: 0.01,
	}
}

// At returns the electric field vector at p.
func (f *Field) At(p r2.Vec) r2.Vec {
	var e r2.Vec
	eps2 := f.Softening * f.Softening

	for _, c := range f.Charges {
		d := r2.Sub(p, c.Pos)
		rr := r2.Norm2(d) + eps2
		rInv := 1.0 / math.Sqrt(rr)
		e = r2.Add(e, r2.Scale(f.K*c.Q*rInv*rInv*rInv, d))
	}
	return e
}

// Potential returns the scalar potential at p.
func (f *Field) Potential(p r2.Vec) float64 {
	phi := 0.0
	eps2 := f.Softening * f.Softening

	for _, c := range f.Charges {
		d := r2.Sub(p, c.Pos)
		phi += f.K * c.Q / math.Sqrt(r2.Norm2(d)+eps2)
	}
	return phi
}

// Energy returns the total mechanical energy of a test charge in the
// field, kinetic plus potential. Conserved by the exact dynamics, so its
// drift measures integrator error.
func (f *Field) Energy(tc TestCharge) float64 {
	return 0.5*tc.M*r2.Norm2(tc.Vel) + tc.Q*f.Potential(tc.Pos)
}
