package parfluid

import (
	"math"

	"github.com/Tatha911/OpenIFEM/utils"
)

// solve runs the distributed flexible GMRES for the increment. The Krylov
// vectors are replicated; the operator application uses each rank's owned
// matrix rows followed by a segment gather, and every inner product is
// all-reduced, so all ranks walk the identical recurrence. With
// MaxIteration = 0 the initial residual is reported and the increment left
// zero.
func (w *worker) solve(useNonzero, resetPrecond bool) (iterations int, residual float64, converged bool) {
	if resetPrecond || w.pre == nil {
		w.pre = w.newPreconditioner()
	}
	var (
		nu, np  = w.s.Handler().DofsPerBlock()
		maxIter = w.par.Params.MaxIteration
		restart = 30

		apply = func(x, y utils.BlockVector) {
			w.system.MulVecTo(x, y)
			w.gatherFull(y)
		}
		newVec = func() utils.BlockVector { return utils.NewBlockVector(nu, np) }

		r = newVec()
	)
	w.increment.Zero()

	norm := func(v utils.BlockVector) float64 { return math.Sqrt(w.dot(v, v)) }
	computeResidual := func() {
		apply(w.increment, r)
		r.Scale(-1)
		r.Add(1, w.rhs)
	}

	tol := w.par.Params.Tolerance * norm(w.rhs)
	if tol == 0 {
		tol = w.par.Params.Tolerance
	}
	computeResidual()
	residual = norm(r)
	converged = residual <= tol
	if maxIter == 0 || converged {
		w.distributeIncrement(useNonzero)
		return
	}

	var (
		V  = make([]utils.BlockVector, restart+1)
		Z  = make([]utils.BlockVector, restart)
		H  = make([][]float64, restart+1)
		cs = make([]float64, restart)
		sn = make([]float64, restart)
		g  = make([]float64, restart+1)
		zt = newVec()
	)
	for i := range V {
		V[i] = newVec()
	}
	for i := range Z {
		Z[i] = newVec()
	}
	for i := range H {
		H[i] = make([]float64, restart)
	}

	for iterations < maxIter {
		computeResidual()
		beta := norm(r)
		residual = beta
		if beta <= tol {
			break
		}
		for i := range g {
			g[i] = 0
		}
		g[0] = beta
		V[0].CopyFrom(r)
		V[0].Scale(1 / beta)

		j := 0
		for ; j < restart && iterations < maxIter; j++ {
			w.pre.Apply(V[j].Data, Z[j].Data)
			apply(Z[j], zt)
			for i := 0; i <= j; i++ {
				H[i][j] = w.dot(zt, V[i])
				zt.Add(-H[i][j], V[i])
			}
			H[j+1][j] = norm(zt)
			if H[j+1][j] != 0 {
				V[j+1].CopyFrom(zt)
				V[j+1].Scale(1 / H[j+1][j])
			}
			for i := 0; i < j; i++ {
				t := cs[i]*H[i][j] + sn[i]*H[i+1][j]
				H[i+1][j] = -sn[i]*H[i][j] + cs[i]*H[i+1][j]
				H[i][j] = t
			}
			denom := math.Hypot(H[j][j], H[j+1][j])
			if denom == 0 {
				cs[j], sn[j] = 1, 0
			} else {
				cs[j] = H[j][j] / denom
				sn[j] = H[j+1][j] / denom
			}
			H[j][j] = cs[j]*H[j][j] + sn[j]*H[j+1][j]
			H[j+1][j] = 0
			g[j+1] = -sn[j] * g[j]
			g[j] = cs[j] * g[j]

			iterations++
			residual = math.Abs(g[j+1])
			if residual <= tol {
				j++
				break
			}
		}
		y := make([]float64, j)
		for i := j - 1; i >= 0; i-- {
			y[i] = g[i]
			for k := i + 1; k < j; k++ {
				y[i] -= H[i][k] * y[k]
			}
			y[i] /= H[i][i]
		}
		for i := 0; i < j; i++ {
			w.increment.Add(y[i], Z[i])
		}
		if residual <= tol {
			break
		}
	}

	converged = residual <= tol
	w.distributeIncrement(useNonzero)
	return
}

// distributeIncrement re-imposes the step's constraint set on the solved
// increment, identically on every replica.
func (w *worker) distributeIncrement(useNonzero bool) {
	constraints := w.s.ZeroConstraints()
	if useNonzero {
		constraints = w.s.NonzeroConstraints()
	}
	constraints.Distribute(w.increment)
}
