package electrostatic

import "gonum.org/v1/gonum/spatial/r2"

// TestCharge is a probe particle moving through a static field. It feels
// the field but does not contribute to it.
type TestCharge struct {
	Pos r2.Vec
	Vel r2.Vec
	Q   float64
	M   float64
}

// Stepper advances a test charge through a static field by dt.
type Stepper interface {
	Step(f *Field, tc TestCharge, dt float64) TestCharge
}

func accel(f *Field, tc TestCharge, p r2.Vec) r2.Vec {
	return r2.Scale(tc.Q/tc.M, f.At(p))
}

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(f *Field, tc TestCharge, dt float64) TestCharge {
	a := accel(f, tc, tc.Pos)
	tc.Pos = r2.Add(tc.Pos, r2.Scale(dt, tc.Vel))
	tc.Vel = r2.Add(tc.Vel, r2.Scale(dt, a))
	return tc
}

type RK4 struct{}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Step(f *Field, tc TestCharge, dt float64) TestCharge {
	k1p := tc.Vel
	k1v := accel(f, tc, tc.Pos)

	k2p := r2.Add(tc.Vel, r2.Scale(0.5*dt, k1v))
	k2v := accel(f, tc, r2.Add(tc.Pos, r2.Scale(0.5*dt, k1p)))

	k3p := r2.Add(tc.Vel, r2.Scale(0.5*dt, k2v))
	k3v := accel(f, tc, r2.Add(tc.Pos, r2.Scale(0.5*dt, k2p)))

	k4p := r2.Add(tc.Vel, r2.Scale(dt, k3v))
	k4v := accel(f, tc, r2.Add(tc.Pos, r2.Scale(dt, k3p)))

	sixth := dt / 6.0
	tc.Pos = r2.Add(tc.Pos, r2.Scale(sixth, r2.Add(r2.Add(k1p, r2.Scale(2, k2p)), r2.Add(r2.Scale(2, k3p), k4p))))
	tc.Vel = r2.Add(tc.Vel, r2.Scale(sixth, r2.Add(r2.Add(k1v, r2.Scale(2, k2v)), r2.Add(r2.Scale(2, k3v), k4v))))
	return tc
}

// Trace integrates a test charge for n steps and returns the visited
// positions, the start included. The path has n+1 points.
func Trace(f *Field, s Stepper, tc TestCharge, dt float64, n int) []r2.Vec {
	path := make([]r2.Vec, 0, n+1)
	path = append(path, tc.Pos)
	for i := 0; i < n; i++ {
		tc = s.Step(f, tc, dt)
		path = append(path, tc.Pos)
	}
	return path
}
