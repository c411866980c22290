package dofs

import (
	"fmt"
	"sort"

	"github.com/Tatha911/OpenIFEM/mesh"
	"github.com/Tatha911/OpenIFEM/utils"
)

// Entry couples a constrained dof to one of its masters.
type Entry struct {
	Col   int
	Coeff float64
}

type line struct {
	inhom   float64
	entries []Entry
}

// Constraints holds affine constraint lines x_k = inhom_k + sum c_i x_{m_i}
// covering Dirichlet conditions (no entries, just an inhomogeneity) and
// hanging nodes (interpolation entries, zero inhomogeneity). The nonzero and
// zero sets of a solver are two Constraints built over the same topology,
// differing only in the inhomogeneities.
type Constraints struct {
	lines  map[int]*line
	closed bool
}

func NewConstraints() *Constraints {
	return &Constraints{lines: make(map[int]*line)}
}

// AddLine registers dof as constrained with the given inhomogeneity.
// Re-adding an existing line keeps the first registration, mirroring the
// "one authoritative value per constrained unknown" invariant.
func (c *Constraints) AddLine(dof int, inhom float64) {
	c.mustBeOpen()
	if _, ok := c.lines[dof]; ok {
		return
	}
	c.lines[dof] = &line{inhom: inhom}
}

func (c *Constraints) AddEntry(dof, col int, coeff float64) {
	c.mustBeOpen()
	l, ok := c.lines[dof]
	if !ok {
		panic(fmt.Sprintf("AddEntry before AddLine for dof %d", dof))
	}
	l.entries = append(l.entries, Entry{Col: col, Coeff: coeff})
}

func (c *Constraints) mustBeOpen() {
	if c.closed {
		panic("constraint set already closed")
	}
}

// Close resolves chains (a master that is itself constrained) so every line
// references only unconstrained dofs. Cycles are a programming error.
func (c *Constraints) Close() {
	if c.closed {
		return
	}
	resolved := make(map[int]bool)
	var resolve func(dof int, seen map[int]bool)
	resolve = func(dof int, seen map[int]bool) {
		if resolved[dof] {
			return
		}
		if seen[dof] {
			panic(fmt.Sprintf("cyclic constraint through dof %d", dof))
		}
		seen[dof] = true
		l := c.lines[dof]
		var flat []Entry
		for _, e := range l.entries {
			ml, constrained := c.lines[e.Col]
			if !constrained {
				flat = append(flat, e)
				continue
			}
			resolve(e.Col, seen)
			l.inhom += e.Coeff * ml.inhom
			for _, me := range ml.entries {
				flat = append(flat, Entry{Col: me.Col, Coeff: e.Coeff * me.Coeff})
			}
		}
		// Merge duplicate masters.
		sort.Slice(flat, func(a, b int) bool { return flat[a].Col < flat[b].Col })
		merged := flat[:0]
		for _, e := range flat {
			if n := len(merged); n > 0 && merged[n-1].Col == e.Col {
				merged[n-1].Coeff += e.Coeff
			} else {
				merged = append(merged, e)
			}
		}
		l.entries = merged
		resolved[dof] = true
	}
	for dof := range c.lines {
		resolve(dof, map[int]bool{})
	}
	c.closed = true
}

func (c *Constraints) IsConstrained(dof int) bool {
	_, ok := c.lines[dof]
	return ok
}

func (c *Constraints) NumConstraints() int { return len(c.lines) }

// ConstrainedDofs returns the constrained indices in ascending order; the
// nonzero and zero sets of one solver must agree on this list exactly.
func (c *Constraints) ConstrainedDofs() (dofs []int) {
	for d := range c.lines {
		dofs = append(dofs, d)
	}
	sort.Ints(dofs)
	return
}

func (c *Constraints) Inhomogeneity(dof int) float64 {
	if l, ok := c.lines[dof]; ok {
		return l.inhom
	}
	return 0
}

func (c *Constraints) Entries(dof int) []Entry {
	if l, ok := c.lines[dof]; ok {
		return l.entries
	}
	return nil
}

// resolveRow expands a global dof into its master rows with coefficients;
// an unconstrained dof resolves to itself.
func (c *Constraints) resolveRow(dof int) []Entry {
	if l, ok := c.lines[dof]; ok {
		return l.entries
	}
	return []Entry{{Col: dof, Coeff: 1}}
}

// DistributeLocalToGlobal scatters one cell's local matrix and rhs into the
// global system, eliminating constrained rows and columns symmetrically and
// carrying inhomogeneities to the right-hand side. Constrained dofs keep a
// diagonal entry scaled from the local diagonal so the solved value equals
// the prescribed one.
func (c *Constraints) DistributeLocalToGlobal(localMat utils.Matrix, localRhs []float64,
	cellDofs []int, mat *utils.BlockDOK, rhs utils.BlockVector) {
	c.mustBeClosed()
	n := len(cellDofs)
	for i := 0; i < n; i++ {
		gi := cellDofs[i]
		ri := c.resolveRow(gi)
		if localRhs != nil {
			for _, ei := range ri {
				rhs.AddAt(ei.Col, ei.Coeff*localRhs[i])
			}
		}
		if mat == nil {
			continue
		}
		for j := 0; j < n; j++ {
			gj := cellDofs[j]
			v := localMat.At(i, j)
			if v == 0 {
				continue
			}
			rj := c.resolveRow(gj)
			for _, ei := range ri {
				for _, ej := range rj {
					mat.Add(ei.Col, ej.Col, ei.Coeff*ej.Coeff*v)
				}
			}
			// A constrained column carries its prescribed value to the rhs.
			if lj, ok := c.lines[gj]; ok && lj.inhom != 0 && rhs.Len() != 0 {
				for _, ei := range ri {
					rhs.AddAt(ei.Col, -ei.Coeff*v*lj.inhom)
				}
			}
		}
		// Keep constrained rows solvable: diagonal from the local diagonal,
		// rhs chosen so the solve returns the prescribed value.
		if li, ok := c.lines[gi]; ok && mat != nil {
			d := localMat.At(i, i)
			mat.Add(gi, gi, d)
			if rhs.Len() != 0 && li.inhom != 0 {
				rhs.AddAt(gi, li.inhom*d)
			}
		}
	}
}

// DistributeLocalRhs is the rhs-only path used when the system matrix is
// being reused. Inhomogeneous couplings need the local matrix, so this path
// is only valid for homogeneous (zero) constraint sets.
func (c *Constraints) DistributeLocalRhs(localRhs []float64, cellDofs []int,
	rhs utils.BlockVector) {
	c.mustBeClosed()
	for i, gi := range cellDofs {
		for _, ei := range c.resolveRow(gi) {
			rhs.AddAt(ei.Col, ei.Coeff*localRhs[i])
		}
	}
}

// Distribute re-imposes the constraints on a solved vector: every
// constrained dof is overwritten by its inhomogeneity plus the master
// combination.
func (c *Constraints) Distribute(v utils.BlockVector) {
	c.mustBeClosed()
	for dof, l := range c.lines {
		val := l.inhom
		for _, e := range l.entries {
			val += e.Coeff * v.At(e.Col)
		}
		v.SetAt(dof, val)
	}
}

func (c *Constraints) mustBeClosed() {
	if !c.closed {
		panic("constraint set must be closed first")
	}
}

// MakeHangingNodeConstraints adds the interpolation lines of every refined
// face: fine-side dofs at points absent from the coarse side are constrained
// to the coarse edge's basis evaluated at their edge parameter. For Q2
// velocity that yields the (3/8, 3/4, -1/8) weights, for Q1 pressure the
// midpoint average.
func (h *Handler) MakeHangingNodeConstraints(c *Constraints) {
	for _, id := range h.Mesh.ActiveCells() {
		for face := 0; face < mesh.NumFaces; face++ {
			nb := h.Mesh.NeighborAcross(id, face)
			if nb.Finer[0] < 0 {
				continue
			}
			a, b := h.faceEndpoints(id, face)
			h.constrainEdge(c, h.VelFE.Degree, a, b, true)
			h.constrainEdge(c, h.PresFE.Degree, a, b, false)
		}
	}
}

func (h *Handler) faceEndpoints(id, face int) (a, b mesh.Point) {
	x0, y0, hx, hy := h.Mesh.Extent(id)
	switch face {
	case mesh.FaceLeft:
		return mesh.Point{X: x0, Y: y0}, mesh.Point{X: x0, Y: y0 + hy}
	case mesh.FaceRight:
		return mesh.Point{X: x0 + hx, Y: y0}, mesh.Point{X: x0 + hx, Y: y0 + hy}
	case mesh.FaceBottom:
		return mesh.Point{X: x0, Y: y0}, mesh.Point{X: x0 + hx, Y: y0}
	case mesh.FaceTop:
		return mesh.Point{X: x0, Y: y0 + hy}, mesh.Point{X: x0 + hx, Y: y0 + hy}
	}
	panic("bad face")
}

// constrainEdge walks the fine-side points of a refined edge. Fine points at
// parameter j/(2d) with odd j have no coarse counterpart and get constraint
// lines against the coarse edge dofs at k/d.
func (h *Handler) constrainEdge(c *Constraints, degree int, a, b mesh.Point, velocity bool) {
	var fe = h.VelFE
	if !velocity {
		fe = h.PresFE
	}
	at := func(t float64) mesh.Point {
		return mesh.Point{X: a.X + t*(b.X-a.X), Y: a.Y + t*(b.Y-a.Y)}
	}
	// Coarse edge dof points.
	masters := make([]int, degree+1)
	for k := 0; k <= degree; k++ {
		p := at(float64(k) / float64(degree))
		var idx int
		var ok bool
		if velocity {
			idx, ok = h.lookupVel(p)
		} else {
			idx, ok = h.lookupPres(p)
		}
		if !ok {
			panic(fmt.Sprintf("coarse edge dof point (%v,%v) not in numbering", p.X, p.Y))
		}
		masters[k] = idx
	}
	for j := 1; j < 2*degree; j += 2 {
		t := float64(j) / float64(2*degree)
		p := at(t)
		var pt int
		var ok bool
		if velocity {
			pt, ok = h.lookupVel(p)
		} else {
			pt, ok = h.lookupPres(p)
		}
		if !ok {
			panic(fmt.Sprintf("hanging dof point (%v,%v) not in numbering", p.X, p.Y))
		}
		if velocity {
			for comp := 0; comp < Dim; comp++ {
				dof := h.VelDof(pt, comp)
				if c.IsConstrained(dof) {
					continue
				}
				c.AddLine(dof, 0)
				for k := 0; k <= degree; k++ {
					w := fe.Value1D(k, t)
					if w != 0 {
						c.AddEntry(dof, h.VelDof(masters[k], comp), w)
					}
				}
			}
		} else {
			dof := h.PresDof(pt)
			if c.IsConstrained(dof) {
				continue
			}
			c.AddLine(dof, 0)
			for k := 0; k <= degree; k++ {
				w := fe.Value1D(k, t)
				if w != 0 {
					c.AddEntry(dof, h.PresDof(masters[k]), w)
				}
			}
		}
	}
}
