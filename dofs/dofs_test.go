package dofs

import (
	"testing"

	"github.com/Tatha911/OpenIFEM/mesh"
	"github.com/Tatha911/OpenIFEM/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributeUniformMesh(t *testing.T) {
	// 2x1 grid of Q2/Q1 cells: velocity points 5x3, pressure points 3x2.
	m := mesh.NewRectangle(2, 1, 2, 1)
	h := NewHandler(m, 2, 1)
	h.Distribute()

	assert.Equal(t, 15, h.NumVelPoints())
	assert.Equal(t, Dim*15, h.NU)
	assert.Equal(t, 6, h.NP)
	assert.Equal(t, Dim*15+6, h.NumDofs())

	// Local system: 9 velocity points x 2 components + 4 pressure points.
	assert.Equal(t, 22, h.DofsPerCell())
	for _, id := range m.ActiveCells() {
		assert.Len(t, h.CellDofs(id), 22)
	}
}

func TestBlockNumbering(t *testing.T) {
	m := mesh.NewRectangle(1, 1, 1, 1)
	h := NewHandler(m, 2, 1)
	h.Distribute()

	// Velocity dofs fill [0, NU), pressure dofs [NU, NU+NP).
	seen := make(map[int]bool)
	for _, d := range h.CellDofs(m.ActiveCells()[0]) {
		assert.False(t, seen[d])
		seen[d] = true
		assert.Less(t, d, h.NumDofs())
	}
	assert.Len(t, seen, h.NumDofs())
	assert.Equal(t, h.NU, h.PresDof(0))
	assert.Equal(t, 0, h.VelDof(0, 0))
	assert.Equal(t, 1, h.VelDof(0, 1))
}

func TestSharedEdgeDofsIdentified(t *testing.T) {
	m := mesh.NewRectangle(2, 1, 2, 1)
	h := NewHandler(m, 2, 1)
	h.Distribute()

	cells := m.ActiveCells()
	left, right := h.CellDofs(cells[0]), h.CellDofs(cells[1])
	shared := 0
	inLeft := make(map[int]bool)
	for _, d := range left {
		inLeft[d] = true
	}
	for _, d := range right {
		if inLeft[d] {
			shared++
		}
	}
	// Shared edge carries 3 velocity points x 2 components + 2 pressure points.
	assert.Equal(t, 8, shared)
}

func TestBoundaryVelDofs(t *testing.T) {
	m := mesh.NewRectangle(2, 2, 2, 2)
	h := NewHandler(m, 2, 1)
	h.Distribute()

	// Left boundary of a 2x2 Q2 mesh has 5 velocity points.
	left := h.BoundaryVelDofs(mesh.FaceLeft)
	assert.Len(t, left, 5*Dim)
	for _, bd := range left {
		assert.InDelta(t, 0.0, bd.Point.X, 1e-14)
	}
	top := h.BoundaryVelDofs(mesh.FaceTop)
	assert.Len(t, top, 5*Dim)
	for _, bd := range top {
		assert.InDelta(t, 2.0, bd.Point.Y, 1e-14)
	}
}

func refineOneCell(t *testing.T, m *mesh.Mesh) {
	t.Helper()
	m.FlagForRefinement(m.ActiveCells()[0])
	m.PrepareCoarseningAndRefinement()
	m.ExecuteCoarseningAndRefinement()
}

func TestHangingNodeWeightsQ2(t *testing.T) {
	m := mesh.NewRectangle(2, 1, 2, 1)
	refineOneCell(t, m)
	h := NewHandler(m, 2, 1)
	h.Distribute()

	c := NewConstraints()
	h.MakeHangingNodeConstraints(c)
	c.Close()
	require.Greater(t, c.NumConstraints(), 0)

	// Hanging velocity points sit on the shared edge x=1 at y=1/4 and y=3/4.
	pt, ok := h.lookupVel(mesh.Point{X: 1, Y: 0.25})
	require.True(t, ok)
	dof := h.VelDof(pt, 0)
	require.True(t, c.IsConstrained(dof))
	weights := map[float64]float64{}
	for _, e := range c.Entries(dof) {
		// Identify masters by their y coordinate on the coarse edge.
		mp := h.VelPoint(e.Col / Dim)
		weights[mp.Y] = e.Coeff
	}
	assert.InDelta(t, 3.0/8.0, weights[0.0], 1e-14)
	assert.InDelta(t, 3.0/4.0, weights[0.5], 1e-14)
	assert.InDelta(t, -1.0/8.0, weights[1.0], 1e-14)
	assert.Equal(t, 0.0, c.Inhomogeneity(dof))
}

func TestHangingNodeWeightsQ1(t *testing.T) {
	m := mesh.NewRectangle(2, 1, 2, 1)
	refineOneCell(t, m)
	h := NewHandler(m, 2, 1)
	h.Distribute()

	c := NewConstraints()
	h.MakeHangingNodeConstraints(c)
	c.Close()

	// Pressure hanging point at the edge midpoint is the average of the ends.
	pt, ok := h.lookupPres(mesh.Point{X: 1, Y: 0.5})
	require.True(t, ok)
	dof := h.PresDof(pt)
	require.True(t, c.IsConstrained(dof))
	entries := c.Entries(dof)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.InDelta(t, 0.5, e.Coeff, 1e-14)
	}
}

func TestCloseResolvesChains(t *testing.T) {
	c := NewConstraints()
	// x2 = 0.5 x1, x1 = 2 + x0  ==>  x2 = 1 + 0.5 x0.
	c.AddLine(2, 0)
	c.AddEntry(2, 1, 0.5)
	c.AddLine(1, 2)
	c.AddEntry(1, 0, 1)
	c.Close()

	entries := c.Entries(2)
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].Col)
	assert.InDelta(t, 0.5, entries[0].Coeff, 1e-14)
	assert.InDelta(t, 1.0, c.Inhomogeneity(2), 1e-14)
}

func TestAddLineFirstRegistrationWins(t *testing.T) {
	c := NewConstraints()
	c.AddLine(3, 1.5)
	c.AddLine(3, 9)
	c.Close()
	assert.Equal(t, 1.5, c.Inhomogeneity(3))
}

func TestDistributeLocalToGlobalDirichlet(t *testing.T) {
	// Two-dof toy system with dof 0 fixed at g: assembled rows must solve to
	// x0 = g exactly while dof 1 sees the eliminated coupling on the rhs.
	const g = 2.0
	c := NewConstraints()
	c.AddLine(0, g)
	c.Close()

	local := utils.NewMatrix(2, 2)
	local.Set(0, 0, 4)
	local.Set(0, 1, -1)
	local.Set(1, 0, -1)
	local.Set(1, 1, 4)
	localRhs := []float64{1, 1}

	mat := utils.NewBlockDOK(2, 0)
	rhs := utils.NewBlockVector(2, 0)
	c.DistributeLocalToGlobal(local, localRhs, []int{0, 1}, &mat, rhs)
	csr := mat.ToCSR()

	// Constrained row keeps only the scaled diagonal.
	assert.Equal(t, 4.0, csr.B[0][0].M.At(0, 0))
	assert.Equal(t, 0.0, csr.B[0][0].M.At(0, 1))
	assert.Equal(t, 0.0, csr.B[0][0].M.At(1, 0))
	assert.Equal(t, 4.0, csr.B[0][0].M.At(1, 1))

	// rhs: row 0 returns g on solve, row 1 absorbs -(-1)*g from the column.
	assert.InDelta(t, g*4, rhs.At(0), 1e-14)
	assert.InDelta(t, 1+g, rhs.At(1), 1e-14)

	x0 := rhs.At(0) / csr.B[0][0].M.At(0, 0)
	assert.InDelta(t, g, x0, 1e-14)
}

func TestDistributeReimposesConstraints(t *testing.T) {
	c := NewConstraints()
	c.AddLine(0, 3)
	c.AddLine(2, 0)
	c.AddEntry(2, 1, 0.5)
	c.Close()

	v := utils.NewBlockVector(3, 0)
	v.SetAt(0, -7)
	v.SetAt(1, 4)
	v.SetAt(2, -7)
	c.Distribute(v)

	assert.Equal(t, 3.0, v.At(0))
	assert.Equal(t, 4.0, v.At(1))
	assert.Equal(t, 2.0, v.At(2))
}

func TestConstrainedSolutionContinuous(t *testing.T) {
	// After Distribute, a linear field evaluated from the fine side of a
	// refined edge must match the coarse side value at the hanging point.
	m := mesh.NewRectangle(2, 1, 2, 1)
	refineOneCell(t, m)
	h := NewHandler(m, 2, 1)
	h.Distribute()

	c := NewConstraints()
	h.MakeHangingNodeConstraints(c)
	c.Close()

	v := utils.NewBlockVector(h.NU, h.NP)
	for pt := 0; pt < h.NumVelPoints(); pt++ {
		p := h.VelPoint(pt)
		v.SetAt(h.VelDof(pt, 0), p.X+2*p.Y)
	}
	// Corrupt the hanging dofs, then let Distribute repair them.
	for _, d := range c.ConstrainedDofs() {
		v.SetAt(d, 1e6)
	}
	c.Distribute(v)
	for pt := 0; pt < h.NumVelPoints(); pt++ {
		p := h.VelPoint(pt)
		assert.InDelta(t, p.X+2*p.Y, v.At(h.VelDof(pt, 0)), 1e-12)
	}
}
