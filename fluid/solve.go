package fluid

import (
	"github.com/Tatha911/OpenIFEM/solvers"
	"github.com/Tatha911/OpenIFEM/utils"
)

// Solve runs the outer FGMRES on the assembled system for the solution
// increment, starting from zero. resetPrecond rebuilds the block Schur
// preconditioner, which is required whenever the matrices changed. The
// tolerance is relative to the right-hand side norm; non-convergence is
// reported through the returned flag, not fatal.
func (s *InsIMEX) Solve(useNonzero, resetPrecond bool) (iterations int, residual float64, converged bool) {
	if resetPrecond || s.precond == nil {
		s.precond = NewBlockSchurPreconditioner(
			s.Params.Gamma, s.Params.Viscosity, s.Params.Rho, s.Time.DeltaT,
			&s.systemMatrix, &s.massMatrix,
			s.Params.Tolerance, s.Params.MaxIteration)
	}
	var (
		nu, _ = s.handler.DofsPerBlock()
		tol   = s.Params.Tolerance * s.systemRHS.Norm()
		apply = func(x, y []float64) {
			s.systemMatrix.MulVecTo(utils.WrapBlockVector(x, nu),
				utils.WrapBlockVector(y, nu))
		}
	)
	if tol == 0 {
		tol = s.Params.Tolerance
	}
	s.solutionIncrement.Zero()
	res := solvers.FGMRES(apply, s.precond, s.systemRHS.Data,
		s.solutionIncrement.Data, tol, s.Params.MaxIteration, 30)

	constraints := s.zeroConstraints
	if useNonzero {
		constraints = s.nonzeroConstraints
	}
	constraints.Distribute(s.solutionIncrement)
	return res.Iterations, res.Residual, res.Converged
}
