package field

import (
	"math"
	"testing"
)

func TestGridIndexing(t *testing.T) {
	g := NewGrid(4, 3, 3)

	if len(g.Data) != 4*3*3 {
		t.Fatalf("data length = %d, want %d", len(g.Data), 36)
	}

	g.SetVec3(2, 1, Vec3{1, 2, 3})

	got := g.Vec3At(2, 1)
	if got != (Vec3{1, 2, 3}) {
		t.Errorf("Vec3At(2,1) = %v, want {1 2 3}", got)
	}

	// Row-major layout: cell (2,1) starts at (1*4+2)*3 = 18.
	if g.Index(2, 1) != 18 {
		t.Errorf("Index(2,1) = %d, want 18", g.Index(2, 1))
	}
	if g.Data[18] != 1 || g.Data[19] != 2 || g.Data[20] != 3 {
		t.Errorf("raw layout = %v, want [1 2 3]", g.Data[18:21])
	}
}

func TestGridAtAliases(t *testing.T) {
	g := NewGrid(2, 2, 4)

	cell := g.At(1, 1)
	if len(cell) != 4 {
		t.Fatalf("cell width = %d, want 4", len(cell))
	}

	cell[2] = 7.5
	if g.Data[g.Index(1, 1)+2] != 7.5 {
		t.Error("At should alias grid storage")
	}
}

func TestGridFill(t *testing.T) {
	g := NewGrid(3, 3, 3)
	g.Fill(1, 1, 0)

	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			if v := g.Vec3At(x, y); v != (Vec3{1, 1, 0}) {
				t.Fatalf("cell (%d,%d) = %v after fill", x, y, v)
			}
		}
	}
}

func TestGridCloneIndependent(t *testing.T) {
	g := NewGrid(2, 2, 3)
	g.SetVec3(0, 0, Vec3{1, 2, 3})

	c := g.Clone()
	c.SetVec3(0, 0, Vec3{9, 9, 9})

	if g.Vec3At(0, 0) != (Vec3{1, 2, 3}) {
		t.Error("clone mutation leaked into source grid")
	}
}

func TestPingSwap(t *testing.T) {
	p := NewPing(2, 2, 3)

	a, b := p.Current, p.Previous
	p.Swap()

	if p.Current != b || p.Previous != a {
		t.Error("swap should exchange roles without reallocating")
	}

	p.Swap()
	if p.Current != a || p.Previous != b {
		t.Error("double swap should restore original roles")
	}
}

func TestPingSwapKeepsData(t *testing.T) {
	p := NewPing(2, 2, 3)
	p.Current.SetVec3(1, 1, Vec3{4, 5, 6})

	p.Swap()

	if p.Previous.Vec3At(1, 1) != (Vec3{4, 5, 6}) {
		t.Error("data written before swap should be readable as previous")
	}
}

func TestStoreVacuumDefaults(t *testing.T) {
	s := NewStore(8, 8)

	if v := s.Material.Vec3At(3, 3); v != (Vec3{1, 1, 0}) {
		t.Errorf("material default = %v, want vacuum {1 1 0}", v)
	}
	if v := s.Electric.Current.Vec3At(3, 3); v != (Vec3{}) {
		t.Errorf("electric field starts at %v, want zero", v)
	}
}

func TestStoreView(t *testing.T) {
	s := NewStore(4, 4)

	tests := []struct {
		name  GridName
		comps int
	}{
		{Electric, 3},
		{Magnetic, 3},
		{Source, 3},
		{Material, 3},
		{Coefficients, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name.String(), func(t *testing.T) {
			g := s.View(tt.name)
			if g == nil {
				t.Fatal("nil view")
			}
			if g.Comps != tt.comps {
				t.Errorf("comps = %d, want %d", g.Comps, tt.comps)
			}
		})
	}

	if s.View(Electric) != s.Electric.Current {
		t.Error("electric view should be the current role")
	}
	s.Electric.Swap()
	if s.View(Electric) != s.Electric.Current {
		t.Error("view should follow the role, not the buffer")
	}
}

func TestZeroFields(t *testing.T) {
	s := NewStore(4, 4)
	s.Electric.Current.SetVec3(1, 1, Vec3{1, 1, 1})
	s.Magnetic.Previous.SetVec3(2, 2, Vec3{2, 2, 2})
	s.Source.Current.SetVec3(3, 3, Vec3{3, 3, 3})

	s.ZeroFields()

	for _, p := range []Ping{s.Electric, s.Magnetic, s.Source} {
		for _, g := range []*Grid{p.Current, p.Previous} {
			for _, v := range g.Data {
				if v != 0 {
					t.Fatal("field grid not zeroed")
				}
			}
		}
	}
	if s.Material.Vec3At(0, 0) != (Vec3{1, 1, 0}) {
		t.Error("material should survive a field reset")
	}
}

func TestVec3Magnitude(t *testing.T) {
	v := Vec3{3, 4, 0}
	if got := v.Magnitude(); math.Abs(float64(got)-5) > 1e-6 {
		t.Errorf("magnitude = %v, want 5", got)
	}

	if !(Vec3{1, 2, 3}).IsFinite() {
		t.Error("finite vector reported as non-finite")
	}
	if (Vec3{float32(math.NaN()), 0, 0}).IsFinite() {
		t.Error("NaN vector reported as finite")
	}
}
