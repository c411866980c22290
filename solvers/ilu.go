package solvers

import (
	"fmt"

	"github.com/Tatha911/OpenIFEM/utils"
)

// ILU0 is the incomplete LU factorization on the sparsity pattern of the
// matrix, the workhorse inner preconditioner for the velocity block and the
// approximated Schur complement. The factors overwrite a private copy of the
// CSR arrays; L has unit diagonal.
type ILU0 struct {
	n    int
	ia   []int
	ja   []int
	vals []float64
	diag []int // Position of the diagonal entry in each row
}

func NewILU0(m utils.CSR) (p *ILU0) {
	nr, nc := m.Dims()
	if nr != nc {
		panic(fmt.Sprintf("ILU0 needs a square matrix, got %dx%d", nr, nc))
	}
	ia, ja, vals := m.Extract()
	p = &ILU0{n: nr, ia: ia, ja: ja, vals: vals, diag: make([]int, nr)}
	p.factorize()
	return
}

func (p *ILU0) factorize() {
	// Column position lookup for the current row, reset after each row.
	pos := make([]int, p.n)
	for i := range pos {
		pos[i] = -1
	}
	for i := 0; i < p.n; i++ {
		p.diag[i] = -1
		for idx := p.ia[i]; idx < p.ia[i+1]; idx++ {
			pos[p.ja[idx]] = idx
			if p.ja[idx] == i {
				p.diag[i] = idx
			}
		}
		if p.diag[i] == -1 {
			panic(fmt.Sprintf("ILU0: missing diagonal in row %d", i))
		}
		for idx := p.ia[i]; idx < p.ia[i+1]; idx++ {
			k := p.ja[idx]
			if k >= i {
				break
			}
			dk := p.vals[p.diag[k]]
			if dk == 0 {
				panic(fmt.Sprintf("ILU0: zero pivot in row %d", k))
			}
			piv := p.vals[idx] / dk
			p.vals[idx] = piv
			for idx2 := p.diag[k] + 1; idx2 < p.ia[k+1]; idx2++ {
				if at := pos[p.ja[idx2]]; at >= 0 {
					p.vals[at] -= piv * p.vals[idx2]
				}
			}
		}
		for idx := p.ia[i]; idx < p.ia[i+1]; idx++ {
			pos[p.ja[idx]] = -1
		}
	}
}

// Apply solves LU dst = src by forward and backward substitution.
func (p *ILU0) Apply(src, dst []float64) {
	copy(dst, src)
	for i := 0; i < p.n; i++ {
		for idx := p.ia[i]; idx < p.diag[i]; idx++ {
			dst[i] -= p.vals[idx] * dst[p.ja[idx]]
		}
	}
	for i := p.n - 1; i >= 0; i-- {
		for idx := p.diag[i] + 1; idx < p.ia[i+1]; idx++ {
			dst[i] -= p.vals[idx] * dst[p.ja[idx]]
		}
		dst[i] /= p.vals[p.diag[i]]
	}
}
