package compute

import (
	"math"
	"testing"
)

func vacuumMaterial(d Dims) []float32 {
	m := make([]float32, d.Cells()*matComps)
	for i := 0; i < d.Cells(); i++ {
		m[i*matComps] = 1
		m[i*matComps+1] = 1
		m[i*matComps+2] = 0
	}
	return m
}

func vacuumCoeffs(t *testing.T, be Backend, d Dims, dt, cellSize float32) []float32 {
	t.Helper()
	coeffs := make([]float32, d.Cells()*coeffComps)
	if err := be.Coefficients(vacuumMaterial(d), coeffs, d, dt, cellSize); err != nil {
		t.Fatalf("coefficients failed: %v", err)
	}
	return coeffs
}

func TestCoefficientsVacuum(t *testing.T) {
	be := NewCPUBackend()
	d := Dims{W: 2, H: 2}

	// Vacuum with dt=0.001, cellSize=0.01: alpha=1, beta=dt/cellSize=0.1.
	coeffs := vacuumCoeffs(t, be, d, 0.001, 0.01)

	for i := 0; i < d.Cells(); i++ {
		o := i * coeffComps
		if math.Abs(float64(coeffs[o])-1) > 1e-6 {
			t.Errorf("cell %d: alphaE = %v, want 1", i, coeffs[o])
		}
		if math.Abs(float64(coeffs[o+1])-0.1) > 1e-6 {
			t.Errorf("cell %d: betaE = %v, want 0.1", i, coeffs[o+1])
		}
		if math.Abs(float64(coeffs[o+2])-1) > 1e-6 {
			t.Errorf("cell %d: alphaM = %v, want 1", i, coeffs[o+2])
		}
		if math.Abs(float64(coeffs[o+3])-0.1) > 1e-6 {
			t.Errorf("cell %d: betaM = %v, want 0.1", i, coeffs[o+3])
		}
	}
}

func TestCoefficientsLossyMaterial(t *testing.T) {
	be := NewCPUBackend()
	d := Dims{W: 1, H: 1}

	material := []float32{0.5, 0.25, 0.8}
	coeffs := make([]float32, coeffComps)
	if err := be.Coefficients(material, coeffs, d, 0.001, 0.01); err != nil {
		t.Fatalf("coefficients failed: %v", err)
	}

	cE := 0.8 * 0.001 / (2 * 0.5)
	cM := 0.8 * 0.001 / (2 * 0.25)
	tests := []struct {
		name string
		idx  int
		want float64
	}{
		{"alphaE", 0, (1 - cE) / (1 + cE)},
		{"betaE", 1, 0.001 / (0.5 * 0.01) / (1 + cE)},
		{"alphaM", 2, (1 - cM) / (1 + cM)},
		{"betaM", 3, 0.001 / (0.25 * 0.01) / (1 + cM)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(float64(coeffs[tt.idx])-tt.want) > 1e-5 {
				t.Errorf("got %v, want %v", coeffs[tt.idx], tt.want)
			}
		})
	}
}

func TestCoefficientsIdempotent(t *testing.T) {
	be := NewCPUBackend()
	d := Dims{W: 3, H: 3}

	material := make([]float32, d.Cells()*matComps)
	for i := 0; i < d.Cells(); i++ {
		material[i*matComps] = 0.9
		material[i*matComps+1] = 0.7
		material[i*matComps+2] = 0.1 * float32(i)
	}

	first := make([]float32, d.Cells()*coeffComps)
	second := make([]float32, d.Cells()*coeffComps)
	if err := be.Coefficients(material, first, d, 0.002, 0.01); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if err := be.Coefficients(material, second, d, 0.002, 0.01); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}

	for i := range first {
		if math.Float32bits(first[i]) != math.Float32bits(second[i]) {
			t.Fatalf("coefficient %d differs between passes: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestInjectAddsScaledSource(t *testing.T) {
	be := NewCPUBackend()
	d := Dims{W: 2, H: 2}

	prevE := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	prevS := []float32{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2}
	e := make([]float32, len(prevE))

	if err := be.Inject(prevE, prevS, e, d, 0.5); err != nil {
		t.Fatalf("inject failed: %v", err)
	}

	for i := range e {
		want := prevE[i] + 1
		if e[i] != want {
			t.Errorf("component %d: got %v, want %v", i, e[i], want)
		}
	}
}

func TestDecayScalesSource(t *testing.T) {
	be := NewCPUBackend()
	d := Dims{W: 2, H: 2}

	prev := []float32{4, -4, 8, 0, 1, 2, 3, 4, 5, 6, 7, 8}
	out := make([]float32, len(prev))

	if err := be.Decay(prev, out, d, 0.25); err != nil {
		t.Fatalf("decay failed: %v", err)
	}

	for i := range out {
		if out[i] != prev[i]*0.25 {
			t.Errorf("component %d: got %v, want %v", i, out[i], prev[i]*0.25)
		}
	}
}

func TestDecayLargeGridParallel(t *testing.T) {
	be := NewCPUBackend()
	d := Dims{W: 256, H: 256}

	prev := make([]float32, d.Cells()*fieldComps)
	for i := range prev {
		prev[i] = 2
	}
	out := make([]float32, len(prev))

	if err := be.Decay(prev, out, d, 0.25); err != nil {
		t.Fatalf("decay failed: %v", err)
	}

	for i := 0; i < len(out); i += 997 {
		if out[i] != 0.5 {
			t.Fatalf("component %d: got %v, want 0.5", i, out[i])
		}
	}
	if out[len(out)-1] != 0.5 {
		t.Fatalf("last component: got %v, want 0.5", out[len(out)-1])
	}
}

func TestStampEllipse(t *testing.T) {
	be := NewCPUBackend()
	d := Dims{W: 8, H: 8}

	prev := make([]float32, d.Cells()*fieldComps)
	for i := range prev {
		prev[i] = 0.5
	}
	m := Mask{CX: 4, CY: 4, RX: 1, RY: 1}

	t.Run("replace", func(t *testing.T) {
		out := make([]float32, len(prev))
		if err := be.Stamp(prev, out, d, m, [3]float32{0, 0, 2}, 0); err != nil {
			t.Fatalf("stamp failed: %v", err)
		}

		inside := [][2]int{{4, 4}, {3, 4}, {5, 4}, {4, 3}, {4, 5}}
		for _, c := range inside {
			o := (c[1]*d.W + c[0]) * fieldComps
			if out[o+2] != 2 {
				t.Errorf("cell (%d,%d): z = %v, want 2", c[0], c[1], out[o+2])
			}
			if out[o] != 0 {
				t.Errorf("cell (%d,%d): x = %v, want 0 under replace", c[0], c[1], out[o])
			}
		}

		outside := [][2]int{{0, 0}, {3, 3}, {7, 7}}
		for _, c := range outside {
			o := (c[1]*d.W + c[0]) * fieldComps
			if out[o+2] != 0.5 {
				t.Errorf("cell (%d,%d): z = %v, want carried 0.5", c[0], c[1], out[o+2])
			}
		}
	})

	t.Run("additive", func(t *testing.T) {
		out := make([]float32, len(prev))
		if err := be.Stamp(prev, out, d, m, [3]float32{0, 0, 2}, 1); err != nil {
			t.Fatalf("stamp failed: %v", err)
		}

		o := (4*d.W + 4) * fieldComps
		if out[o+2] != 2.5 {
			t.Errorf("center z = %v, want 2.5", out[o+2])
		}
	})
}

func TestUpdateElectricFromPointMagnetic(t *testing.T) {
	be := NewCPUBackend()
	d := Dims{W: 4, H: 4}
	coeffs := vacuumCoeffs(t, be, d, 0.001, 0.01)

	prevE := make([]float32, d.Cells()*fieldComps)
	h := make([]float32, d.Cells()*fieldComps)
	h[(2*d.W+2)*fieldComps+2] = 1 // Hz spike at (2,2)

	e := make([]float32, len(prevE))
	if err := be.UpdateElectric(prevE, h, coeffs, e, d, BoundaryReflect); err != nil {
		t.Fatalf("electric update failed: %v", err)
	}

	tests := []struct {
		name    string
		x, y    int
		comp    int
		want    float64
	}{
		{"Ex at spike", 2, 2, 0, 0.1},
		{"Ex above spike", 2, 3, 0, -0.1},
		{"Ey at spike", 2, 2, 1, -0.1},
		{"Ey right of spike", 3, 2, 1, 0.1},
		{"Ez at spike", 2, 2, 2, 0},
		{"Ex far away", 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := float64(e[(tt.y*d.W+tt.x)*fieldComps+tt.comp])
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpdateElectricCarriesPrevious(t *testing.T) {
	be := NewCPUBackend()
	d := Dims{W: 4, H: 4}
	coeffs := vacuumCoeffs(t, be, d, 0.001, 0.01)

	prevE := make([]float32, d.Cells()*fieldComps)
	for i := range prevE {
		prevE[i] = float32(i) * 0.125
	}
	h := make([]float32, len(prevE))
	e := make([]float32, len(prevE))

	if err := be.UpdateElectric(prevE, h, coeffs, e, d, BoundaryReflect); err != nil {
		t.Fatalf("electric update failed: %v", err)
	}

	// Vacuum alphaE is 1 and the curl is 0, so the field passes through.
	for i := range e {
		if math.Abs(float64(e[i]-prevE[i])) > 1e-6 {
			t.Fatalf("component %d: got %v, want %v", i, e[i], prevE[i])
		}
	}
}

func TestUpdateMagneticFromPointElectric(t *testing.T) {
	be := NewCPUBackend()
	d := Dims{W: 4, H: 4}
	coeffs := vacuumCoeffs(t, be, d, 0.001, 0.01)

	prevH := make([]float32, d.Cells()*fieldComps)
	e := make([]float32, d.Cells()*fieldComps)
	e[(2*d.W+2)*fieldComps+2] = 1 // Ez spike at (2,2)

	h := make([]float32, len(prevH))
	if err := be.UpdateMagnetic(prevH, e, coeffs, h, d, BoundaryReflect); err != nil {
		t.Fatalf("magnetic update failed: %v", err)
	}

	tests := []struct {
		name string
		x, y int
		comp int
		want float64
	}{
		{"Hx at spike", 2, 2, 0, 0.1},
		{"Hx below spike", 2, 1, 0, -0.1},
		{"Hy at spike", 2, 2, 1, -0.1},
		{"Hy left of spike", 1, 2, 1, 0.1},
		{"Hz at spike", 2, 2, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := float64(h[(tt.y*d.W+tt.x)*fieldComps+tt.comp])
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpdateElectricReflectClampsEdges(t *testing.T) {
	be := NewCPUBackend()
	d := Dims{W: 3, H: 3}
	coeffs := vacuumCoeffs(t, be, d, 0.001, 0.01)

	prevE := make([]float32, d.Cells()*fieldComps)
	h := make([]float32, d.Cells()*fieldComps)
	h[2] = 1 // Hz at (0,0)

	e := make([]float32, len(prevE))
	if err := be.UpdateElectric(prevE, h, coeffs, e, d, BoundaryReflect); err != nil {
		t.Fatalf("electric update failed: %v", err)
	}

	// The corner's backward neighbors clamp to itself, so its curl is zero.
	if e[0] != 0 || e[1] != 0 {
		t.Errorf("corner cell: Ex=%v Ey=%v, want 0 for both", e[0], e[1])
	}
}

func TestUpdateElectricOpenBoundaryCopiesInward(t *testing.T) {
	be := NewCPUBackend()
	d := Dims{W: 8, H: 8}
	coeffs := vacuumCoeffs(t, be, d, 0.001, 0.01)

	prevE := make([]float32, d.Cells()*fieldComps)
	prevE[(3*d.W+3)*fieldComps] = 0.7 // (3,3), inward of band cell (3,1)
	prevE[(3*d.W+4)*fieldComps] = 0.3 // (4,3), inward of band cell (6,3)
	h := make([]float32, len(prevE))

	e := make([]float32, len(prevE))
	if err := be.UpdateElectric(prevE, h, coeffs, e, d, BoundaryOpen); err != nil {
		t.Fatalf("electric update failed: %v", err)
	}

	if got := e[(1*d.W+3)*fieldComps]; got != 0.7 {
		t.Errorf("band cell (3,1): got %v, want copied 0.7", got)
	}
	if got := e[(3*d.W+6)*fieldComps]; got != 0.3 {
		t.Errorf("band cell (6,3): got %v, want copied 0.3", got)
	}
	if got := e[(3*d.W+3)*fieldComps]; got != 0.7 {
		t.Errorf("interior cell (3,3): got %v, want stencil result 0.7", got)
	}
}

func TestBackendRejectsMismatchedBuffers(t *testing.T) {
	be := NewCPUBackend()
	d := Dims{W: 4, H: 4}

	short := make([]float32, 3)
	full := make([]float32, d.Cells()*fieldComps)

	if err := be.Decay(short, full, d, 0.5); err == nil {
		t.Error("expected error for undersized buffer, got nil")
	}
}
