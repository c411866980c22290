// Package mesh provides the structured quadrilateral meshes the solver core
// consumes: an initial nx x ny subdivision of a rectangle, quadtree
// refinement/coarsening with 1-irregularity enforcement, stable cell
// identities across adaptation, and boundary markers on the outer faces
// (0=left, 1=right, 2=bottom, 3=top).
package mesh

import (
	"fmt"
	"sort"
)

type Point struct {
	X, Y float64
}

// Face indices and the matching boundary markers.
const (
	FaceLeft = iota
	FaceRight
	FaceBottom
	FaceTop
	NumFaces
)

// Cell is one quadtree node. Its ID is the index in the mesh arena and is
// never reused; refinement retires nothing, coarsening retires the children.
// A cell is active when it has no children and has not been retired.
type Cell struct {
	ID     int
	Level  int
	I, J   int // Integer coordinates in the level's (nx*2^l) x (ny*2^l) grid
	Parent int // -1 for level-0 cells
	// Children in the order (2i,2j), (2i+1,2j), (2i,2j+1), (2i+1,2j+1);
	// all -1 while the cell is a leaf.
	Children [4]int
	Retired  bool

	FlagRefine  bool
	FlagCoarsen bool
}

func (c *Cell) IsLeaf() bool   { return c.Children[0] == -1 }
func (c *Cell) IsActive() bool { return c.IsLeaf() && !c.Retired }

type gridKey struct {
	level, i, j int
}

// Mesh owns the cell arena. Geometry is implicit: a cell at (level, i, j)
// spans [i*hx, (i+1)*hx] x [j*hy, (j+1)*hy] with hx = Width/(NX*2^level).
type Mesh struct {
	NX, NY        int
	Width, Height float64
	Cells         []Cell
	lookup        map[gridKey]int
}

// NewRectangle builds the level-0 grid of an axis-aligned channel.
func NewRectangle(nx, ny int, width, height float64) (m *Mesh) {
	if nx < 1 || ny < 1 || width <= 0 || height <= 0 {
		panic(fmt.Sprintf("invalid rectangle mesh: %dx%d, %v x %v", nx, ny, width, height))
	}
	m = &Mesh{
		NX:     nx,
		NY:     ny,
		Width:  width,
		Height: height,
		lookup: make(map[gridKey]int),
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			m.addCell(0, i, j, -1)
		}
	}
	return
}

func (m *Mesh) addCell(level, i, j, parent int) int {
	id := len(m.Cells)
	m.Cells = append(m.Cells, Cell{
		ID:       id,
		Level:    level,
		I:        i,
		J:        j,
		Parent:   parent,
		Children: [4]int{-1, -1, -1, -1},
	})
	m.lookup[gridKey{level, i, j}] = id
	return id
}

// ActiveCells returns the IDs of all leaves in ascending ID order, the
// deterministic iteration order every loop in the core relies on.
func (m *Mesh) ActiveCells() (ids []int) {
	for k := range m.Cells {
		if m.Cells[k].IsActive() {
			ids = append(ids, k)
		}
	}
	sort.Ints(ids)
	return
}

func (m *Mesh) Cell(id int) *Cell {
	return &m.Cells[id]
}

// Extent returns the lower-left corner and the cell sizes.
func (m *Mesh) Extent(id int) (x0, y0, hx, hy float64) {
	c := &m.Cells[id]
	scale := 1 << uint(c.Level)
	hx = m.Width / float64(m.NX*scale)
	hy = m.Height / float64(m.NY*scale)
	x0 = float64(c.I) * hx
	y0 = float64(c.J) * hy
	return
}

func (m *Mesh) Center(id int) Point {
	x0, y0, hx, hy := m.Extent(id)
	return Point{x0 + hx/2, y0 + hy/2}
}

// Vertex returns corner v of a cell: 0=ll, 1=lr, 2=ul, 3=ur.
func (m *Mesh) Vertex(id, v int) Point {
	x0, y0, hx, hy := m.Extent(id)
	return Point{x0 + float64(v&1)*hx, y0 + float64(v>>1)*hy}
}

// BoundaryID returns the boundary marker of a cell face, or -1 for interior
// faces.
func (m *Mesh) BoundaryID(id, face int) int {
	c := &m.Cells[id]
	scale := 1 << uint(c.Level)
	switch face {
	case FaceLeft:
		if c.I == 0 {
			return FaceLeft
		}
	case FaceRight:
		if c.I == m.NX*scale-1 {
			return FaceRight
		}
	case FaceBottom:
		if c.J == 0 {
			return FaceBottom
		}
	case FaceTop:
		if c.J == m.NY*scale-1 {
			return FaceTop
		}
	default:
		panic(fmt.Sprintf("face index out of range: %d", face))
	}
	return -1
}

// Neighbor describes what lies across a face of an active cell. Exactly one
// case holds: a boundary, a same-level active cell, a coarser active cell, or
// two finer active cells (never more, by 1-irregularity).
type Neighbor struct {
	Boundary int    // Boundary marker, or -1
	Same     int    // Same-level active neighbor ID, or -1
	Coarser  int    // Coarser active neighbor ID, or -1
	Finer    [2]int // Finer active neighbor IDs in ascending (i,j), or {-1,-1}
}

func (m *Mesh) NeighborAcross(id, face int) (nb Neighbor) {
	nb = Neighbor{Boundary: -1, Same: -1, Coarser: -1, Finer: [2]int{-1, -1}}
	if b := m.BoundaryID(id, face); b >= 0 {
		nb.Boundary = b
		return
	}
	c := &m.Cells[id]
	ni, nj := c.I, c.J
	switch face {
	case FaceLeft:
		ni--
	case FaceRight:
		ni++
	case FaceBottom:
		nj--
	case FaceTop:
		nj++
	}
	if idx, ok := m.lookup[gridKey{c.Level, ni, nj}]; ok && !m.Cells[idx].Retired {
		n := &m.Cells[idx]
		if n.IsLeaf() {
			nb.Same = idx
			return
		}
		// Refined neighbor: the two children touching the shared face.
		switch face {
		case FaceLeft:
			nb.Finer = [2]int{n.Children[1], n.Children[3]}
		case FaceRight:
			nb.Finer = [2]int{n.Children[0], n.Children[2]}
		case FaceBottom:
			nb.Finer = [2]int{n.Children[2], n.Children[3]}
		case FaceTop:
			nb.Finer = [2]int{n.Children[0], n.Children[1]}
		}
		return
	}
	if c.Level == 0 {
		panic(fmt.Sprintf("level-0 cell %d has no neighbor across interior face %d", id, face))
	}
	idx, ok := m.lookup[gridKey{c.Level - 1, ni / 2, nj / 2}]
	if !ok || !m.Cells[idx].IsActive() {
		panic(fmt.Sprintf("cell %d face %d: coarser neighbor missing, 1-irregularity broken", id, face))
	}
	nb.Coarser = idx
	return
}

// FindCell locates the active cell containing a point, descending the
// quadtree from the root grid. Points on shared edges resolve to the cell
// whose closed extent contains them with the lowest descent path.
func (m *Mesh) FindCell(p Point) int {
	if p.X < 0 || p.X > m.Width || p.Y < 0 || p.Y > m.Height {
		panic(fmt.Sprintf("point (%v,%v) outside mesh extents", p.X, p.Y))
	}
	hx := m.Width / float64(m.NX)
	hy := m.Height / float64(m.NY)
	i := int(p.X / hx)
	if i >= m.NX {
		i = m.NX - 1
	}
	j := int(p.Y / hy)
	if j >= m.NY {
		j = m.NY - 1
	}
	id := m.lookup[gridKey{0, i, j}]
	for !m.Cells[id].IsLeaf() {
		x0, y0, cx, cy := m.Extent(id)
		ci, cj := 0, 0
		if p.X > x0+cx/2 {
			ci = 1
		}
		if p.Y > y0+cy/2 {
			cj = 1
		}
		id = m.Cells[id].Children[ci+2*cj]
	}
	return id
}
