package parfluid

import (
	"github.com/Tatha911/OpenIFEM/solvers"
	"github.com/Tatha911/OpenIFEM/utils"
)

// blockJacobiSchur is the rank-local flavor of the block Schur
// preconditioner: the pressure update uses diagonal (Jacobi) approximations
// of both Schur solves, the velocity update an ILU(0) of the rank's owned
// diagonal sub-block. Weaker than the serial preconditioner but fully local
// apart from the segment gathers, which is the block-Jacobi trade.
type blockJacobiSchur struct {
	w *worker

	viscosity, gamma, dt float64

	iluU      *solvers.ILU0 // owned velocity diagonal sub-block
	schurDiag []float64     // full-length diag of B diag(Mu)^{-1} Bt
	mpDiag    []float64     // full-length diag of Mp, owned rows valid
}

func (w *worker) newPreconditioner() (p *blockJacobiSchur) {
	p = &blockJacobiSchur{
		w:         w,
		viscosity: w.par.Params.Viscosity,
		gamma:     w.par.Params.Gamma,
		dt:        w.s.Time.DeltaT,
	}
	var (
		uLo, uHi = w.pmU.GetBucketRange(w.rank)
		_, np    = w.s.Handler().DofsPerBlock()
	)
	p.iluU = solvers.NewILU0(ownedSquareBlock(w.system.B[0][0], uLo, uHi))
	p.mpDiag = w.mass.B[1][1].Diagonal()

	// diag(Mu) assembled row-partitioned; the Schur diagonal needs it at
	// every owned velocity row, and the reduction sums the disjoint per-rank
	// column contributions.
	dMu := w.mass.B[0][0].Diagonal()
	contrib := make([]float64, np)
	ia, ja, vals := w.system.B[0][1].Extract()
	for k := uLo; k < uHi; k++ {
		if dMu[k] == 0 {
			panic("velocity mass diagonal vanished on an owned row")
		}
		for idx := ia[k]; idx < ia[k+1]; idx++ {
			contrib[ja[idx]] += vals[idx] * vals[idx] / dMu[k]
		}
	}
	p.schurDiag = w.par.comm.AllReduceSum(contrib...)
	// Constrained pressure rows have no B column; keep their diagonal regular.
	for j := range p.schurDiag {
		if p.schurDiag[j] == 0 {
			p.schurDiag[j] = 1
		}
	}
	return
}

// ownedSquareBlock cuts the square sub-block of the owned rows restricted to
// the owned column range, shifted to local indices.
func ownedSquareBlock(a utils.CSR, lo, hi int) utils.CSR {
	var (
		ia, ja, vals = a.Extract()
		out          = utils.NewDOK(hi-lo, hi-lo)
	)
	for i := lo; i < hi; i++ {
		for k := ia[i]; k < ia[i+1]; k++ {
			if j := ja[k]; j >= lo && j < hi {
				out.Set(i-lo, j-lo, vals[k])
			}
		}
	}
	return out.ToCSR()
}

// Apply expects a full replicated source and leaves a full replicated
// destination: owned segments are computed locally and gathered.
func (p *blockJacobiSchur) Apply(src, dst []float64) {
	var (
		w        = p.w
		nu, _    = w.s.Handler().DofsPerBlock()
		sv       = utils.WrapBlockVector(src, nu)
		dv       = utils.WrapBlockVector(dst, nu)
		uLo, uHi = w.pmU.GetBucketRange(w.rank)
		pLo, pHi = w.pmP.GetBucketRange(w.rank)
	)
	for j := pLo; j < pHi; j++ {
		dv.P[j] = -sv.P[j]/p.schurDiag[j]/p.dt -
			(p.viscosity+p.gamma)*sv.P[j]/p.mpDiag[j]
	}
	copy(dv.P, w.par.comm.AllGather(w.rank, dv.P[pLo:pHi]))

	// Velocity residual corrected by the pressure update, then the local
	// ILU solve on the owned sub-block.
	utmp := make([]float64, nu)
	w.system.B[0][1].MulVecTo(dv.P, utmp)
	for i := uLo; i < uHi; i++ {
		utmp[i] = sv.U[i] - utmp[i]
	}
	out := make([]float64, uHi-uLo)
	p.iluU.Apply(utmp[uLo:uHi], out)
	copy(dv.U, w.par.comm.AllGather(w.rank, out))
}
