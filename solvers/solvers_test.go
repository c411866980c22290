package solvers

import (
	"math/rand"
	"testing"

	"github.com/Tatha911/OpenIFEM/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// laplace1D builds the standard tridiagonal [-1 2 -1] matrix, an SPD test
// case with known behavior.
func laplace1D(n int) utils.CSR {
	d := utils.NewDOK(n, n)
	for i := 0; i < n; i++ {
		d.Set(i, i, 2)
		if i > 0 {
			d.Set(i, i-1, -1)
		}
		if i < n-1 {
			d.Set(i, i+1, -1)
		}
	}
	return d.ToCSR()
}

func applyOf(m utils.CSR) func(x, y []float64) {
	return func(x, y []float64) { m.MulVecTo(x, y) }
}

func TestCGSolvesSPDSystem(t *testing.T) {
	const n = 50
	A := laplace1D(n)
	b := make([]float64, n)
	for i := range b {
		b[i] = 1
	}
	x := make([]float64, n)
	res := CG(applyOf(A), Identity{}, b, x, 1e-12, 1000)
	require.True(t, res.Converged, "CG did not converge: %+v", res)

	// Verify the residual independently.
	r := make([]float64, n)
	A.MulVecTo(x, r)
	for i := range r {
		r[i] -= b[i]
	}
	assert.InDelta(t, 0.0, norm2(r), 1e-10)
}

func TestCGWithJacobi(t *testing.T) {
	const n = 30
	A := laplace1D(n)
	b := make([]float64, n)
	b[n/2] = 1
	x := make([]float64, n)
	res := CG(applyOf(A), NewJacobi(A.Diagonal()), b, x, 1e-12, 1000)
	assert.True(t, res.Converged)
}

func TestFGMRESSolvesNonsymmetricSystem(t *testing.T) {
	// Convection-diffusion style: diffusion plus an upwind shift.
	const n = 40
	d := utils.NewDOK(n, n)
	for i := 0; i < n; i++ {
		d.Set(i, i, 3)
		if i > 0 {
			d.Set(i, i-1, -2)
		}
		if i < n-1 {
			d.Set(i, i+1, -0.5)
		}
	}
	A := d.ToCSR()
	b := make([]float64, n)
	for i := range b {
		b[i] = float64(i%3) - 1
	}
	x := make([]float64, n)
	res := FGMRES(applyOf(A), NewILU0(A), b, x, 1e-11, 500, 30)
	require.True(t, res.Converged, "FGMRES did not converge: %+v", res)

	r := make([]float64, n)
	A.MulVecTo(x, r)
	for i := range r {
		r[i] -= b[i]
	}
	assert.InDelta(t, 0.0, norm2(r), 1e-9)
}

func TestFGMRESZeroMaxIteration(t *testing.T) {
	const n = 10
	A := laplace1D(n)
	b := make([]float64, n)
	for i := range b {
		b[i] = float64(i + 1)
	}
	x := make([]float64, n)
	res := FGMRES(applyOf(A), Identity{}, b, x, 1e-12, 0, 30)
	assert.Equal(t, 0, res.Iterations)
	assert.InDelta(t, norm2(b), res.Residual, 1e-14)
	assert.False(t, res.Converged)
	for i := range x {
		assert.Equal(t, 0.0, x[i], "x must be untouched")
	}
}

func TestFGMRESIdempotentOnRepeat(t *testing.T) {
	const n = 25
	A := laplace1D(n)
	b := make([]float64, n)
	for i := range b {
		b[i] = rand.New(rand.NewSource(7)).Float64()
	}
	run := func() Result {
		x := make([]float64, n)
		return FGMRES(applyOf(A), NewJacobi(A.Diagonal()), b, x, 1e-10, 200, 20)
	}
	r1, r2 := run(), run()
	assert.Equal(t, r1.Iterations, r2.Iterations)
	assert.Equal(t, r1.Residual, r2.Residual)
}

func TestILU0IsExactForTriangularPattern(t *testing.T) {
	// For a lower+upper bidiagonal matrix the ILU(0) pattern holds the full
	// factorization, so the preconditioner is an exact solve.
	const n = 12
	A := laplace1D(n)
	ilu := NewILU0(A)
	b := make([]float64, n)
	for i := range b {
		b[i] = float64(i) - 3
	}
	x := make([]float64, n)
	ilu.Apply(b, x)
	r := make([]float64, n)
	A.MulVecTo(x, r)
	for i := range r {
		assert.InDelta(t, b[i], r[i], 1e-10)
	}
}

func TestJacobiApply(t *testing.T) {
	p := NewJacobi([]float64{2, 4, 8})
	dst := make([]float64, 3)
	p.Apply([]float64{2, 4, 8}, dst)
	assert.Equal(t, []float64{1, 1, 1}, dst)
}
