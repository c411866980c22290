// Package solvers carries the Krylov methods and inner preconditioners the
// block solver is built from: preconditioned CG, restarted flexible GMRES,
// ILU(0) and Jacobi. Everything operates on flat float64 slices; the caller
// supplies the operator as a matrix-vector closure so distributed variants
// can plug in their own.
package solvers

import (
	"fmt"
	"math"
)

// Preconditioner applies an approximate inverse: dst = M^{-1} src.
type Preconditioner interface {
	Apply(src, dst []float64)
}

// Identity is the do-nothing preconditioner.
type Identity struct{}

func (Identity) Apply(src, dst []float64) {
	copy(dst, src)
}

// Jacobi preconditions with the inverted matrix diagonal.
type Jacobi struct {
	invDiag []float64
}

func NewJacobi(diag []float64) (p *Jacobi) {
	p = &Jacobi{invDiag: make([]float64, len(diag))}
	for i, d := range diag {
		if d == 0 {
			panic(fmt.Sprintf("Jacobi preconditioner: zero diagonal at row %d", i))
		}
		p.invDiag[i] = 1 / d
	}
	return
}

func (p *Jacobi) Apply(src, dst []float64) {
	for i, v := range src {
		dst[i] = v * p.invDiag[i]
	}
}

// Result reports how an iterative solve went. Non-convergence is not an
// error here; the caller decides whether to proceed or abort.
type Result struct {
	Iterations int
	Residual   float64
	Converged  bool
}

func norm2(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}
