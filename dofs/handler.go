// Package dofs owns the degree-of-freedom layout of the Taylor-Hood pair on
// an adaptively refined quad mesh: block-wise global numbering (velocity
// before pressure), per-cell dof lists, and the constraint machinery for
// Dirichlet and hanging-node conditions.
package dofs

import (
	"fmt"
	"math"

	"github.com/Tatha911/OpenIFEM/element"
	"github.com/Tatha911/OpenIFEM/mesh"
)

// Dim is the spatial dimension of every vector unknown and tensor record in
// the solver. The mesh provider is two-dimensional; the configuration layer
// rejects anything else at startup.
const Dim = 2

// pointKey dedupes support points shared between cells. Coordinates are
// exact binary fractions of the mesh extents, so a fixed rounding is enough
// to merge the different evaluation orders.
type pointKey [2]int64

func keyOf(x, y float64) pointKey {
	const scale = 1e10
	return pointKey{int64(math.Round(x * scale)), int64(math.Round(y * scale))}
}

// Handler numbers the dofs of one velocity/pressure element pair over the
// active cells of a mesh. Numbering is rebuilt from scratch after every
// refinement event; cell IDs are the only identity that survives.
type Handler struct {
	Mesh   *mesh.Mesh
	VelFE  *element.Lagrange
	PresFE *element.Lagrange

	NU, NP int // Block sizes; NU counts both velocity components

	velPts  []mesh.Point
	presPts []mesh.Point

	velIndex  map[pointKey]int
	presIndex map[pointKey]int

	cellVelPts  map[int][]int
	cellPresPts map[int][]int
}

func NewHandler(m *mesh.Mesh, velDegree, presDegree int) (h *Handler) {
	if velDegree <= presDegree {
		panic(fmt.Sprintf("Taylor-Hood requires velocity degree %d > pressure degree %d",
			velDegree, presDegree))
	}
	h = &Handler{
		Mesh:   m,
		VelFE:  element.NewLagrange(velDegree),
		PresFE: element.NewLagrange(presDegree),
	}
	return
}

// Distribute assigns global numbers to every support point of every active
// cell, in ascending cell-ID order so the layout is deterministic.
func (h *Handler) Distribute() {
	h.velPts = h.velPts[:0]
	h.presPts = h.presPts[:0]
	h.velIndex = make(map[pointKey]int)
	h.presIndex = make(map[pointKey]int)
	h.cellVelPts = make(map[int][]int)
	h.cellPresPts = make(map[int][]int)

	for _, id := range h.Mesh.ActiveCells() {
		x0, y0, hx, hy := h.Mesh.Extent(id)
		vel := make([]int, h.VelFE.NumNodes())
		for n := 0; n < h.VelFE.NumNodes(); n++ {
			sp := h.VelFE.SupportPoint(n)
			p := mesh.Point{X: x0 + sp.X*hx, Y: y0 + sp.Y*hy}
			vel[n] = h.internVel(p)
		}
		h.cellVelPts[id] = vel

		pres := make([]int, h.PresFE.NumNodes())
		for n := 0; n < h.PresFE.NumNodes(); n++ {
			sp := h.PresFE.SupportPoint(n)
			p := mesh.Point{X: x0 + sp.X*hx, Y: y0 + sp.Y*hy}
			pres[n] = h.internPres(p)
		}
		h.cellPresPts[id] = pres
	}
	h.NU = Dim * len(h.velPts)
	h.NP = len(h.presPts)
}

func (h *Handler) internVel(p mesh.Point) int {
	k := keyOf(p.X, p.Y)
	if idx, ok := h.velIndex[k]; ok {
		return idx
	}
	idx := len(h.velPts)
	h.velPts = append(h.velPts, p)
	h.velIndex[k] = idx
	return idx
}

func (h *Handler) internPres(p mesh.Point) int {
	k := keyOf(p.X, p.Y)
	if idx, ok := h.presIndex[k]; ok {
		return idx
	}
	idx := len(h.presPts)
	h.presPts = append(h.presPts, p)
	h.presIndex[k] = idx
	return idx
}

func (h *Handler) NumDofs() int { return h.NU + h.NP }

// DofsPerBlock reports the velocity and pressure block sizes.
func (h *Handler) DofsPerBlock() (nu, np int) { return h.NU, h.NP }

// VelDof maps a velocity support-point index and component to its global dof.
func (h *Handler) VelDof(pt, comp int) int { return Dim*pt + comp }

// PresDof maps a pressure support-point index to its global dof.
func (h *Handler) PresDof(pt int) int { return h.NU + pt }

// CellDofs lists the global dofs of a cell in local order: for each velocity
// support point its Dim components, then the pressure points.
func (h *Handler) CellDofs(cellID int) (dofs []int) {
	vel, ok := h.cellVelPts[cellID]
	if !ok {
		panic(fmt.Sprintf("CellDofs: cell %d not distributed", cellID))
	}
	for _, pt := range vel {
		for c := 0; c < Dim; c++ {
			dofs = append(dofs, h.VelDof(pt, c))
		}
	}
	for _, pt := range h.cellPresPts[cellID] {
		dofs = append(dofs, h.PresDof(pt))
	}
	return
}

// DofsPerCell is the local system size of one cell.
func (h *Handler) DofsPerCell() int {
	return Dim*h.VelFE.NumNodes() + h.PresFE.NumNodes()
}

// VelPoint and PresPoint return support-point coordinates by block index.
func (h *Handler) VelPoint(pt int) mesh.Point  { return h.velPts[pt] }
func (h *Handler) PresPoint(pt int) mesh.Point { return h.presPts[pt] }

func (h *Handler) NumVelPoints() int { return len(h.velPts) }

// lookupVel finds an existing velocity point by coordinate; the boolean
// reports whether the point is part of the current numbering.
func (h *Handler) lookupVel(p mesh.Point) (int, bool) {
	idx, ok := h.velIndex[keyOf(p.X, p.Y)]
	return idx, ok
}

func (h *Handler) lookupPres(p mesh.Point) (int, bool) {
	idx, ok := h.presIndex[keyOf(p.X, p.Y)]
	return idx, ok
}

// BoundaryVelDofs collects the velocity dofs whose support points lie on a
// boundary marker, with their points, for Dirichlet constraint construction.
type BoundaryDof struct {
	Dof   int
	Comp  int
	Point mesh.Point
}

func (h *Handler) BoundaryVelDofs(marker int) (out []BoundaryDof) {
	const tol = 1e-12
	onMarker := func(p mesh.Point) bool {
		switch marker {
		case mesh.FaceLeft:
			return math.Abs(p.X) < tol
		case mesh.FaceRight:
			return math.Abs(p.X-h.Mesh.Width) < tol
		case mesh.FaceBottom:
			return math.Abs(p.Y) < tol
		case mesh.FaceTop:
			return math.Abs(p.Y-h.Mesh.Height) < tol
		}
		panic(fmt.Sprintf("unknown boundary marker %d", marker))
	}
	for pt, p := range h.velPts {
		if onMarker(p) {
			for c := 0; c < Dim; c++ {
				out = append(out, BoundaryDof{Dof: h.VelDof(pt, c), Comp: c, Point: p})
			}
		}
	}
	return
}
