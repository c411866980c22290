package utils

import (
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// DOK wraps the dictionary-of-keys sparse format used during assembly, where
// entries arrive cell by cell in random order.
type DOK struct {
	M *sparse.DOK
}

func NewDOK(nr, nc int) (R DOK) {
	R = DOK{sparse.NewDOK(nr, nc)}
	return
}

// Dims and At minimally satisfy the mat.Matrix interface.
func (m DOK) Dims() (r, c int)    { return m.M.Dims() }
func (m DOK) At(i, j int) float64 { return m.M.At(i, j) }
func (m DOK) T() mat.Matrix       { return m.M.T() }

func (m DOK) Set(i, j int, val float64) { m.M.Set(i, j, val) }

// Add accumulates into an entry, the operation assembly loops live on.
func (m DOK) Add(i, j int, val float64) {
	if val == 0 {
		return
	}
	m.M.Set(i, j, m.M.At(i, j)+val)
}

func (m DOK) NNZ() int { return m.M.NNZ() }

func (m DOK) ToCSR() CSR {
	return CSR{M: m.M.ToCSR()}
}

// CSR wraps the compressed-sparse-row format used for all repeated
// matrix-vector products once assembly has closed.
type CSR struct {
	M *sparse.CSR
}

// Dims and At minimally satisfy the mat.Matrix interface.
func (m CSR) Dims() (r, c int)    { return m.M.Dims() }
func (m CSR) At(i, j int) float64 { return m.M.At(i, j) }
func (m CSR) T() mat.Matrix       { return m.M.T() }

func (m CSR) NNZ() int { return m.M.NNZ() }

func (m CSR) IsEmpty() bool { return m.M == nil }

// MulVecTo computes y = M*x on raw slices.
func (m CSR) MulVecTo(x, y []float64) {
	var (
		nr, nc = m.Dims()
	)
	if len(x) != nc || len(y) != nr {
		panic(fmt.Errorf("sparse MulVecTo dimension mismatch: %dx%d with len(x)=%d len(y)=%d",
			nr, nc, len(x), len(y)))
	}
	// MulMatRawVec accumulates into y; clear it so the contract matches the
	// dense Matrix.MulVecTo.
	for i := range y {
		y[i] = 0
	}
	sparse.MulMatRawVec(m.M, x, y)
}

// Diagonal returns a copy of the main diagonal.
func (m CSR) Diagonal() (d []float64) {
	var (
		nr, _ = m.Dims()
	)
	d = make([]float64, nr)
	m.M.DoNonZero(func(i, j int, v float64) {
		if i == j {
			d[i] = v
		}
	})
	return
}

// Extract pulls the matrix out into plain CSR arrays with each row sorted by
// column, the layout the ILU factorization and the Schur product work on.
func (m CSR) Extract() (ia []int, ja []int, vals []float64) {
	var (
		nr, _ = m.Dims()
	)
	type entry struct {
		j int
		v float64
	}
	rows := make([][]entry, nr)
	m.M.DoNonZero(func(i, j int, v float64) {
		rows[i] = append(rows[i], entry{j, v})
	})
	ia = make([]int, nr+1)
	for i := 0; i < nr; i++ {
		sort.Slice(rows[i], func(a, b int) bool { return rows[i][a].j < rows[i][b].j })
		ia[i+1] = ia[i] + len(rows[i])
	}
	ja = make([]int, ia[nr])
	vals = make([]float64, ia[nr])
	for i := 0; i < nr; i++ {
		for k, e := range rows[i] {
			ja[ia[i]+k] = e.j
			vals[ia[i]+k] = e.v
		}
	}
	return
}
