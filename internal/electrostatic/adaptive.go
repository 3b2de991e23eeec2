package electrostatic

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Dormand-Prince coefficients (RK45)
var (
	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// phase is a test charge's integration state.
type phase struct {
	p, v r2.Vec
}

// axpy returns s advanced by dt times the weighted sum of the slopes.
func axpy(s phase, dt float64, ks []phase, ws []float64) phase {
	for i, w := range ws {
		s.p = r2.Add(s.p, r2.Scale(dt*w, ks[i].p))
		s.v = r2.Add(s.v, r2.Scale(dt*w, ks[i].v))
	}
	return s
}

// RK45 is a fifth order stepper with an embedded error estimate. Step
// always advances by the full dt; StepAdaptive additionally suggests the
// next step size, shrinking near charges where the field stiffens and
// growing again in open space.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (r *RK45) Step(f *Field, tc TestCharge, dt float64) TestCharge {
	next, _ := r.StepAdaptive(f, tc, dt, 1e-8)
	return next
}

func (r *RK45) StepAdaptive(f *Field, tc TestCharge, dt, tol float64) (TestCharge, float64) {
	deriv := func(s phase) phase {
		return phase{p: s.v, v: accel(f, tc, s.p)}
	}

	s := phase{p: tc.Pos, v: tc.Vel}

	var k [7]phase
	k[0] = deriv(s)
	k[1] = deriv(axpy(s, dt, k[:1], []float64{b21}))
	k[2] = deriv(axpy(s, dt, k[:2], []float64{b31, b32}))
	k[3] = deriv(axpy(s, dt, k[:3], []float64{b41, b42, b43}))
	k[4] = deriv(axpy(s, dt, k[:4], []float64{b51, b52, b53, b54}))
	k[5] = deriv(axpy(s, dt, k[:5], []float64{b61, b62, b63, b64, b65}))

	slopes := []phase{k[0], k[2], k[3], k[4], k[5]}
	next := axpy(s, dt, slopes, []float64{c1, c3, c4, c5, c6})
	k[6] = deriv(next)

	errEst := axpy(phase{}, dt,
		[]phase{k[0], k[2], k[3], k[4], k[5], k[6]},
		[]float64{dc1, dc3, dc4, dc5, dc6, dc7})

	errMax := 0.0
	for _, c := range [4][3]float64{
		{errEst.p.X, s.p.X, k[0].p.X},
		{errEst.p.Y, s.p.Y, k[0].p.Y},
		{errEst.v.X, s.v.X, k[0].v.X},
		{errEst.v.Y, s.v.Y, k[0].v.Y},
	} {
		scale := math.Abs(c[1]) + math.Abs(dt*c[2]) + 1e-10
		if e := math.Abs(c[0]) / scale; e > errMax {
			errMax = e
		}
	}

	errRatio := errMax / tol
	var dtNext float64
	switch {
	case errRatio > 1:
		dtNext = dt * math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
	case errRatio > 0:
		dtNext = dt * math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
	default:
		dtNext = dt * r.maxScale
	}

	return TestCharge{Pos: next.p, Vel: next.v, Q: tc.Q, M: tc.M}, dtNext
}
