package fluid

import (
	"sort"

	"github.com/Tatha911/OpenIFEM/dofs"
	"github.com/Tatha911/OpenIFEM/element"
	"github.com/Tatha911/OpenIFEM/mesh"
)

// Refinement fractions: cells in the top share of the error ranking refine,
// the bottom share coarsens, subject to the level bounds.
const (
	refineFraction  = 0.6
	coarsenFraction = 0.4
)

// fieldRec holds one cell's nodal coefficients for solution transfer across
// an adaptation pass.
type fieldRec struct {
	vel  [dofs.Dim][]float64
	pres []float64
}

// velGradient evaluates the real-space velocity gradient of the present
// solution at a physical point inside a cell.
func (s *InsIMEX) velGradient(id int, p mesh.Point) (g [dofs.Dim][dofs.Dim]float64) {
	var (
		x0, y0, hx, hy = s.Mesh.Extent(id)
		ref            = element.QPoint{X: (p.X - x0) / hx, Y: (p.Y - y0) / hy}
		cellDofs       = s.handler.CellDofs(id)
		nv             = s.handler.VelFE.NumNodes()
		coeffs         = make([]float64, nv)
	)
	for c := 0; c < dofs.Dim; c++ {
		for node := 0; node < nv; node++ {
			coeffs[node] = s.presentSolution.At(cellDofs[dofs.Dim*node+c])
		}
		gx, gy := element.GradAt(s.handler.VelFE, coeffs, ref)
		g[c][0] = gx / hx
		g[c][1] = gy / hy
	}
	return
}

func faceNormal(face int) (nx, ny float64) {
	switch face {
	case mesh.FaceLeft:
		return -1, 0
	case mesh.FaceRight:
		return 1, 0
	case mesh.FaceBottom:
		return 0, -1
	case mesh.FaceTop:
		return 0, 1
	}
	panic("bad face")
}

func (s *InsIMEX) faceMidpoint(id, face int) mesh.Point {
	x0, y0, hx, hy := s.Mesh.Extent(id)
	switch face {
	case mesh.FaceLeft:
		return mesh.Point{X: x0, Y: y0 + hy/2}
	case mesh.FaceRight:
		return mesh.Point{X: x0 + hx, Y: y0 + hy/2}
	case mesh.FaceBottom:
		return mesh.Point{X: x0 + hx/2, Y: y0}
	case mesh.FaceTop:
		return mesh.Point{X: x0 + hx/2, Y: y0 + hy}
	}
	panic("bad face")
}

// EstimateError ranks the active cells by a Kelly-style indicator: the
// squared jump of the velocity normal derivative across each face, sampled at
// the face midpoints and scaled by the face length and the cell size.
func (s *InsIMEX) EstimateError() map[int]float64 {
	eta := make(map[int]float64)
	for _, id := range s.Mesh.ActiveCells() {
		var (
			_, _, hx, hy = s.Mesh.Extent(id)
			h            = (hx + hy) / 2
			sum          float64
		)
		for face := 0; face < mesh.NumFaces; face++ {
			nb := s.Mesh.NeighborAcross(id, face)
			if nb.Boundary >= 0 {
				continue
			}
			nx, ny := faceNormal(face)
			faceLen := hy
			if face == mesh.FaceBottom || face == mesh.FaceTop {
				faceLen = hx
			}
			jumpAt := func(p mesh.Point, other int) {
				ga := s.velGradient(id, p)
				gb := s.velGradient(other, p)
				for c := 0; c < dofs.Dim; c++ {
					j := (ga[c][0]-gb[c][0])*nx + (ga[c][1]-gb[c][1])*ny
					sum += j * j * faceLen
				}
			}
			switch {
			case nb.Same >= 0:
				jumpAt(s.faceMidpoint(id, face), nb.Same)
			case nb.Coarser >= 0:
				jumpAt(s.faceMidpoint(id, face), nb.Coarser)
			default:
				// Two finer neighbors: sample at their face midpoints. The
				// opposite face of the fine cell lies on the shared edge.
				opposite := [mesh.NumFaces]int{
					mesh.FaceLeft:   mesh.FaceRight,
					mesh.FaceRight:  mesh.FaceLeft,
					mesh.FaceBottom: mesh.FaceTop,
					mesh.FaceTop:    mesh.FaceBottom,
				}
				for _, fid := range nb.Finer {
					jumpAt(s.faceMidpoint(fid, opposite[face]), fid)
				}
			}
		}
		eta[id] = h / 24 * sum
	}
	return eta
}

// cellRecord captures a cell's nodal values for transfer.
func (s *InsIMEX) cellRecord(id int) (rec fieldRec) {
	var (
		cellDofs = s.handler.CellDofs(id)
		nv       = s.handler.VelFE.NumNodes()
		npn      = s.handler.PresFE.NumNodes()
	)
	for c := 0; c < dofs.Dim; c++ {
		rec.vel[c] = make([]float64, nv)
		for node := 0; node < nv; node++ {
			rec.vel[c][node] = s.presentSolution.At(cellDofs[dofs.Dim*node+c])
		}
	}
	rec.pres = make([]float64, npn)
	for node := 0; node < npn; node++ {
		rec.pres[node] = s.presentSolution.At(cellDofs[dofs.Dim*nv+node])
	}
	return
}

// RefineMesh runs one full adaptation pass: estimate, flag within the level
// bounds, transfer the solution and the coupling cache across the mesh
// mutation, and rebuild the dof layout, constraints and system containers.
// The next step reassembles the matrices from scratch.
func (s *InsIMEX) RefineMesh(minLevel, maxLevel int) {
	s.AdaptWithIndicator(s.EstimateError(), minLevel, maxLevel)
}

// AdaptWithIndicator flags, mutates and transfers for a given per-cell error
// ranking. The distributed solver supplies an all-reduced indicator here so
// every rank executes the identical mutation.
func (s *InsIMEX) AdaptWithIndicator(eta map[int]float64, minLevel, maxLevel int) {
	ids := s.Mesh.ActiveCells()
	sort.Slice(ids, func(a, b int) bool { return eta[ids[a]] > eta[ids[b]] })
	nRefine := int(refineFraction * float64(len(ids)))
	nCoarsen := int(coarsenFraction * float64(len(ids)))
	for k, id := range ids {
		c := s.Mesh.Cell(id)
		switch {
		case k < nRefine && c.Level < maxLevel:
			s.Mesh.FlagForRefinement(id)
		case k >= len(ids)-nCoarsen && c.Level > minLevel:
			s.Mesh.FlagForCoarsening(id)
		}
	}
	_, toCoarsen := s.Mesh.PrepareCoarseningAndRefinement()

	// Record the field and cache of every current leaf before the mutation.
	records := make(map[int]fieldRec)
	props := make(map[int][]CellProperty)
	for _, id := range s.Mesh.ActiveCells() {
		records[id] = s.cellRecord(id)
		props[id] = append([]CellProperty(nil), s.CellRecords(id)...)
	}
	// Parents about to reactivate get their nodal values by evaluating the
	// children at the parent support points, and a merged coupling record.
	for _, parent := range toCoarsen {
		records[parent] = s.coarsenedRecord(parent, records)
		props[parent] = s.mergedProperty(parent, props)
	}

	s.Mesh.ExecuteCoarseningAndRefinement()

	s.SetupDoFs()
	s.MakeConstraints()
	s.InitializeSystem()

	// Install the transferred field on the new layout. Surviving cells carry
	// their values verbatim; fresh children interpolate the parent record.
	for _, id := range s.Mesh.ActiveCells() {
		if rec, ok := records[id]; ok {
			s.installRecord(id, rec, nil)
			continue
		}
		c := s.Mesh.Cell(id)
		rec, ok := records[c.Parent]
		if !ok {
			panic("no transfer record for refined cell's parent")
		}
		s.installRecord(id, rec, c)
	}
	// Hanging dofs interpolate the transferred field from their current
	// masters; the closed nonzero set would instead substitute the boundary
	// data for any Dirichlet master folded into a constraint chain,
	// polluting interior points next to the boundary. Re-impose the boundary
	// values afterwards, on the boundary dofs alone.
	hanging := dofs.NewConstraints()
	s.handler.MakeHangingNodeConstraints(hanging)
	hanging.Close()
	hanging.Distribute(s.presentSolution)
	boundary := dofs.NewConstraints()
	s.eachBoundaryValue(func(dof int, value float64) { boundary.AddLine(dof, value) })
	boundary.Close()
	boundary.Distribute(s.presentSolution)

	// Cache transfer: children inherit copies of the parent's quadrature
	// records, indicator included.
	s.cellProperty = make(map[int][]CellProperty)
	for _, id := range s.Mesh.ActiveCells() {
		old, ok := props[id]
		if !ok {
			old = props[s.Mesh.Cell(id).Parent]
		}
		s.cellProperty[id] = append([]CellProperty(nil), old...)
	}

	s.systemDirty = true
}

// coarsenedRecord evaluates the four children of a parent at the parent's
// support points. Points on internal family edges agree from either child.
func (s *InsIMEX) coarsenedRecord(parent int, records map[int]fieldRec) (rec fieldRec) {
	var (
		p      = s.Mesh.Cell(parent)
		velFE  = s.handler.VelFE
		presFE = s.handler.PresFE
	)
	childAt := func(x, y float64) (child int, ref element.QPoint) {
		ci, cj := 0, 0
		if x >= 0.5 {
			ci = 1
		}
		if y >= 0.5 {
			cj = 1
		}
		child = p.Children[ci+2*cj]
		ref = element.QPoint{X: 2*x - float64(ci), Y: 2*y - float64(cj)}
		return
	}
	for c := 0; c < dofs.Dim; c++ {
		rec.vel[c] = make([]float64, velFE.NumNodes())
	}
	for node := 0; node < velFE.NumNodes(); node++ {
		sp := velFE.SupportPoint(node)
		child, ref := childAt(sp.X, sp.Y)
		for c := 0; c < dofs.Dim; c++ {
			rec.vel[c][node] = element.ValueAt(velFE, records[child].vel[c], ref)
		}
	}
	rec.pres = make([]float64, presFE.NumNodes())
	for node := 0; node < presFE.NumNodes(); node++ {
		sp := presFE.SupportPoint(node)
		child, ref := childAt(sp.X, sp.Y)
		rec.pres[node] = element.ValueAt(presFE, records[child].pres, ref)
	}
	return
}

// mergedProperty folds the children's quadrature records point-by-point: an
// indicator-1 point in any child keeps the parent point marked, forcing
// samples average.
func (s *InsIMEX) mergedProperty(parent int, props map[int][]CellProperty) (merged []CellProperty) {
	p := s.Mesh.Cell(parent)
	merged = make([]CellProperty, len(props[p.Children[0]]))
	for _, ch := range p.Children {
		for q, cp := range props[ch] {
			if cp.Indicator > merged[q].Indicator {
				merged[q].Indicator = cp.Indicator
			}
			for c := 0; c < dofs.Dim; c++ {
				merged[q].FsiAcceleration[c] += cp.FsiAcceleration[c] / 4
				for d := 0; d < dofs.Dim; d++ {
					merged[q].FsiStress[c][d] += cp.FsiStress[c][d] / 4
				}
			}
		}
	}
	return
}

// installRecord writes a transfer record into the present solution at the
// cell's support points. For a fresh child (c != nil) the record belongs to
// the parent and is evaluated at the child's points mapped into the parent.
func (s *InsIMEX) installRecord(id int, rec fieldRec, c *mesh.Cell) {
	var (
		cellDofs = s.handler.CellDofs(id)
		velFE    = s.handler.VelFE
		presFE   = s.handler.PresFE
		nv       = velFE.NumNodes()
	)
	toParent := func(p element.QPoint) element.QPoint {
		if c == nil {
			return p
		}
		return element.QPoint{
			X: (p.X + float64(c.I%2)) / 2,
			Y: (p.Y + float64(c.J%2)) / 2,
		}
	}
	for node := 0; node < nv; node++ {
		ref := toParent(velFE.SupportPoint(node))
		for comp := 0; comp < dofs.Dim; comp++ {
			var v float64
			if c == nil {
				v = rec.vel[comp][node]
			} else {
				v = element.ValueAt(velFE, rec.vel[comp], ref)
			}
			s.presentSolution.SetAt(cellDofs[dofs.Dim*node+comp], v)
		}
	}
	for node := 0; node < presFE.NumNodes(); node++ {
		var v float64
		if c == nil {
			v = rec.pres[node]
		} else {
			v = element.ValueAt(presFE, rec.pres, toParent(presFE.SupportPoint(node)))
		}
		s.presentSolution.SetAt(cellDofs[dofs.Dim*nv+node], v)
	}
}
