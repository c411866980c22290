package fluid

import (
	"math"

	"github.com/Tatha911/OpenIFEM/solvers"
	"github.com/Tatha911/OpenIFEM/utils"
)

// BlockSchurPreconditioner approximates the inverse of the coupled system
//
//	[ A   Bt ]
//	[ B   0  ]
//
// through an approximated Schur complement
//
//	S~^{-1} = -(mu + gamma) Mp^{-1} - (1/dt) [B diag(Mu)^{-1} Bt]^{-1}
//
// where Mp and Mu are the pressure and velocity mass matrices. The convection
// contribution to the Schur complement is ignored; the explicit treatment of
// convection keeps A symmetric, so all inner solves run CG. The product
// B diag(Mu)^{-1} Bt is built explicitly so it can carry an ILU(0).
type BlockSchurPreconditioner struct {
	gamma, viscosity, rho, dt float64

	system *utils.BlockCSR
	mass   *utils.BlockCSR

	massSchur utils.CSR

	iluVelocity *solvers.ILU0
	iluSchur    *solvers.ILU0
	jacobiMp    *solvers.Jacobi

	tol     float64
	maxIter int
	nu, np  int
}

func NewBlockSchurPreconditioner(gamma, viscosity, rho, dt float64,
	system, mass *utils.BlockCSR, tol float64, maxIter int) (p *BlockSchurPreconditioner) {
	nu, _ := system.B[0][0].Dims()
	np, _ := system.B[1][0].Dims()
	p = &BlockSchurPreconditioner{
		gamma:     gamma,
		viscosity: viscosity,
		rho:       rho,
		dt:        dt,
		system:    system,
		mass:      mass,
		tol:       tol,
		maxIter:   maxIter,
		nu:        nu,
		np:        np,
	}
	p.massSchur = schurProduct(system.B[0][1], mass.B[0][0].Diagonal(), np)
	p.iluVelocity = solvers.NewILU0(system.B[0][0])
	p.iluSchur = solvers.NewILU0(p.massSchur)
	p.jacobiMp = solvers.NewJacobi(mass.B[1][1].Diagonal())
	return
}

// schurProduct forms B diag^{-1} Bt from the (0,1) block. The system is
// symmetric, so B's row k appears as Bt's column k; accumulating the outer
// product of every velocity row of Bt against itself yields the np x np
// result without a transpose pass.
func schurProduct(bt utils.CSR, diag []float64, np int) utils.CSR {
	var (
		ia, ja, vals = bt.Extract()
		out          = utils.NewDOK(np, np)
	)
	for k := range diag {
		var (
			start, end = ia[k], ia[k+1]
			inv        = 1 / diag[k]
		)
		for a := start; a < end; a++ {
			for b := start; b < end; b++ {
				out.Add(ja[a], ja[b], vals[a]*inv*vals[b])
			}
		}
	}
	// Constrained pressure rows were eliminated from B and leave empty rows;
	// a unit diagonal keeps the factorization regular. Their residual entries
	// are zero, so the value never matters.
	for j := 0; j < np; j++ {
		if out.At(j, j) == 0 {
			out.Set(j, j, 1)
		}
	}
	return out.ToCSR()
}

// VMult applies the preconditioner block-wise: first the pressure update from
// the two Schur solves, then the velocity update from the inner solve of A
// on the corrected velocity residual.
func (p *BlockSchurPreconditioner) VMult(src, dst utils.BlockVector) {
	var (
		tmpSchur = make([]float64, p.np)
		tmpMp    = make([]float64, p.np)
	)
	solvers.CG(func(x, y []float64) { p.massSchur.MulVecTo(x, y) },
		p.iluSchur, src.P, tmpSchur, p.innerTol(src.P), p.maxIter)
	solvers.CG(func(x, y []float64) { p.mass.B[1][1].MulVecTo(x, y) },
		p.jacobiMp, src.P, tmpMp, p.innerTol(src.P), p.maxIter)
	for i := range dst.P {
		dst.P[i] = -tmpSchur[i]/p.dt - (p.viscosity+p.gamma)*tmpMp[i]
	}

	utmp := make([]float64, p.nu)
	p.system.B[0][1].MulVecTo(dst.P, utmp)
	for i := range utmp {
		utmp[i] = src.U[i] - utmp[i]
	}
	for i := range dst.U {
		dst.U[i] = 0
	}
	solvers.CG(func(x, y []float64) { p.system.B[0][0].MulVecTo(x, y) },
		p.iluVelocity, utmp, dst.U, p.innerTol(utmp), p.maxIter)
}

// innerTol scales the inner solve tolerance with the block residual so the
// inner work tracks the outer progress.
func (p *BlockSchurPreconditioner) innerTol(r []float64) float64 {
	var s float64
	for _, v := range r {
		s += v * v
	}
	if s == 0 {
		return p.tol
	}
	return 1e-6 * math.Sqrt(s)
}

// Apply adapts VMult to the flat-slice preconditioner interface of the outer
// FGMRES.
func (p *BlockSchurPreconditioner) Apply(src, dst []float64) {
	p.VMult(utils.WrapBlockVector(src, p.nu), utils.WrapBlockVector(dst, p.nu))
}
