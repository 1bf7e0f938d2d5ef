package systems

// Grid stores a square matrix of cells in row-major order.
type Grid struct {
	N     int
	cells []Cell
}

// NewGrid allocates an all-Empty grid with side n.
func NewGrid(n int) *Grid {
	if n < 0 {
		n = 0
	}
	return &Grid{N: n, cells: make([]Cell, n*n)}
}

// GridFromRows builds a grid from equally sized rows. It panics if rows is not square.
func GridFromRows(rows [][]Cell) *Grid {
	g := NewGrid(len(rows))
	for r, row := range rows {
		if len(row) != g.N {
			panic("systems: GridFromRows needs a square matrix")
		}
		copy(g.cells[r*g.N:], row)
	}
	return g
}

// Cells exposes the backing slice.
func (g *Grid) Cells() []Cell { return g.cells }

// Index returns the linear slice index for (row, col).
func (g *Grid) Index(row, col int) int { return row*g.N + col }

// InBounds reports whether (row, col) lies on the grid.
func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.N && col >= 0 && col < g.N
}

// At returns the cell at (row, col).
func (g *Grid) At(row, col int) Cell { return g.cells[row*g.N+col] }

// Set writes the cell at (row, col).
func (g *Grid) Set(row, col int, c Cell) { g.cells[row*g.N+col] = c }

// Fill sets every cell to c.
func (g *Grid) Fill(c Cell) {
	for i := range g.cells {
		g.cells[i] = c
	}
}

// Clone returns an independent copy.
func (g *Grid) Clone() *Grid {
	out := &Grid{N: g.N, cells: make([]Cell, len(g.cells))}
	copy(out.cells, g.cells)
	return out
}

// Rows returns the grid as a fresh 2D slice.
func (g *Grid) Rows() [][]Cell {
	rows := make([][]Cell, g.N)
	for r := range rows {
		rows[r] = make([]Cell, g.N)
		copy(rows[r], g.cells[r*g.N:(r+1)*g.N])
	}
	return rows
}

// Count tallies every state on the grid.
func (g *Grid) Count() CellCounts {
	var cc CellCounts
	for _, c := range g.cells {
		cc.Add(c)
	}
	return cc
}

// FindNeighbor scans the Chebyshev neighbourhood of (row, col) in row-major
// offset order and returns the offset to the first cell in state want.
func (g *Grid) FindNeighbor(row, col, radius int, want Cell) (dRow, dCol int, ok bool) {
	for di := -radius; di <= radius; di++ {
		r := row + di
		if r < 0 || r >= g.N {
			continue
		}
		base := r * g.N
		for dj := -radius; dj <= radius; dj++ {
			if di == 0 && dj == 0 {
				continue
			}
			c := col + dj
			if c < 0 || c >= g.N {
				continue
			}
			if g.cells[base+c] == want {
				return di, dj, true
			}
		}
	}
	return 0, 0, false
}
