package fluid

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/Tatha911/OpenIFEM/dofs"
)

// OutputResults writes the velocity and pressure fields to a legacy-VTK file
// named after the run title and the step counter. Disabled entirely when no
// output interval is configured.
func (s *InsIMEX) OutputResults(step int) error {
	if s.Time.OutputInterval <= 0 {
		return nil
	}
	name := fmt.Sprintf("%s-%04d.vtk", s.Params.Title, step)
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err = s.writeVTK(w); err != nil {
		return err
	}
	return w.Flush()
}

// writeVTK emits the active cells as VTK quads with per-vertex velocity and
// pressure. Corner vertices are duplicated between cells, which legacy VTK
// accepts and which keeps the writer independent of the dof numbering.
func (s *InsIMEX) writeVTK(w io.Writer) error {
	var (
		ids = s.Mesh.ActiveCells()
		nc  = len(ids)
		// Tensor corner nodes of the elements, reordered counterclockwise
		// for VTK_QUAD.
		vd          = s.handler.VelFE.Degree
		pd          = s.handler.PresFE.Degree
		velCorners  = [4]int{0, vd, (vd+1)*(vd+1) - 1, vd * (vd + 1)}
		presCorners = [4]int{0, pd, (pd+1)*(pd+1) - 1, pd * (pd + 1)}
		nv          = s.handler.VelFE.NumNodes()
	)
	if _, err := fmt.Fprintf(w, "# vtk DataFile Version 3.0\n%s\nASCII\nDATASET UNSTRUCTURED_GRID\n",
		s.Params.Title); err != nil {
		return err
	}
	fmt.Fprintf(w, "POINTS %d double\n", 4*nc)
	for _, id := range ids {
		for v := 0; v < 4; v++ {
			// Vertex order ll, lr, ur, ul.
			p := s.Mesh.Vertex(id, [4]int{0, 1, 3, 2}[v])
			fmt.Fprintf(w, "%g %g 0\n", p.X, p.Y)
		}
	}
	fmt.Fprintf(w, "CELLS %d %d\n", nc, 5*nc)
	for k := range ids {
		fmt.Fprintf(w, "4 %d %d %d %d\n", 4*k, 4*k+1, 4*k+2, 4*k+3)
	}
	fmt.Fprintf(w, "CELL_TYPES %d\n", nc)
	for range ids {
		fmt.Fprintln(w, 9)
	}

	fmt.Fprintf(w, "POINT_DATA %d\n", 4*nc)
	fmt.Fprintln(w, "VECTORS velocity double")
	for _, id := range ids {
		cellDofs := s.handler.CellDofs(id)
		for _, corner := range velCorners {
			ux := s.presentSolution.At(cellDofs[dofs.Dim*corner])
			uy := s.presentSolution.At(cellDofs[dofs.Dim*corner+1])
			fmt.Fprintf(w, "%g %g 0\n", ux, uy)
		}
	}
	fmt.Fprintln(w, "SCALARS pressure double 1")
	fmt.Fprintln(w, "LOOKUP_TABLE default")
	for _, id := range ids {
		cellDofs := s.handler.CellDofs(id)
		for _, corner := range presCorners {
			fmt.Fprintf(w, "%g\n", s.presentSolution.At(cellDofs[dofs.Dim*nv+corner]))
		}
	}
	return nil
}
