package field

// Component indices into 3-component material cells.
const (
	MatPermeability = 0
	MatPermittivity = 1
	MatConductivity = 2
)

// Component indices into 4-component coefficient cells.
const (
	CoeffAlphaE = 0
	CoeffBetaE  = 1
	CoeffAlphaM = 2
	CoeffBetaM  = 3
)

// Grid is a dense W×H field where every cell holds Comps float32 values,
// stored row-major with cell components adjacent.
type Grid struct {
	W, H  int
	Comps int
	Data  []float32
}

func NewGrid(w, h, comps int) *Grid {
	return &Grid{
		W:     w,
		H:     h,
		Comps: comps,
		Data:  make([]float32, w*h*comps),
	}
}

// Index returns the offset of cell (x,y)'s first component.
func (g *Grid) Index(x, y int) int {
	return (y*g.W + x) * g.Comps
}

// At returns the components of cell (x,y) as a slice aliasing the grid.
func (g *Grid) At(x, y int) []float32 {
	i := g.Index(x, y)
	return g.Data[i : i+g.Comps]
}

func (g *Grid) Vec3At(x, y int) Vec3 {
	i := g.Index(x, y)
	return Vec3{g.Data[i], g.Data[i+1], g.Data[i+2]}
}

func (g *Grid) SetVec3(x, y int, v Vec3) {
	i := g.Index(x, y)
	g.Data[i] = v.X
	g.Data[i+1] = v.Y
	g.Data[i+2] = v.Z
}

// Fill writes the same component pattern into every cell. The number of
// values must equal Comps.
func (g *Grid) Fill(values ...float32) {
	if len(values) != g.Comps {
		panic("field: fill pattern length does not match cell width")
	}
	for i := 0; i < len(g.Data); i += g.Comps {
		copy(g.Data[i:i+g.Comps], values)
	}
}

func (g *Grid) Zero() {
	for i := range g.Data {
		g.Data[i] = 0
	}
}

func (g *Grid) Clone() *Grid {
	c := NewGrid(g.W, g.H, g.Comps)
	copy(c.Data, g.Data)
	return c
}

// Cells returns the number of cells (not components).
func (g *Grid) Cells() int {
	return g.W * g.H
}
