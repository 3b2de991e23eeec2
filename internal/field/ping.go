package field

// Ping is a double-buffered grid pair. Writes go to Current, reads of the
// prior state come from Previous, and Swap exchanges the roles in O(1)
// without copying cell data. A write pass swaps first, then reads Previous
// and writes Current, so writes never alias in-flight reads.
type Ping struct {
	Current  *Grid
	Previous *Grid
}

func NewPing(w, h, comps int) Ping {
	return Ping{
		Current:  NewGrid(w, h, comps),
		Previous: NewGrid(w, h, comps),
	}
}

func (p *Ping) Swap() {
	p.Current, p.Previous = p.Previous, p.Current
}
