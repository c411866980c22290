package solvers

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// FGMRES runs restarted flexible GMRES on apply(x) = b, overwriting x. The
// flexible variant stores the preconditioned directions explicitly, which
// admits preconditioners that are themselves inner iterative solves — the
// block Schur preconditioner is exactly that. With maxIter = 0 the initial
// residual is reported and x is left untouched.
func FGMRES(apply func(x, y []float64), pre Preconditioner, b, x []float64,
	tol float64, maxIter, restart int) (res Result) {
	var (
		n = len(b)
		r = make([]float64, n)
		w = make([]float64, n)
	)
	if restart < 1 {
		restart = 30
	}
	apply(x, r)
	floats.Scale(-1, r)
	floats.Add(r, b)
	res.Residual = norm2(r)
	if res.Residual <= tol {
		res.Converged = true
		return
	}
	if maxIter == 0 {
		return
	}

	var (
		// Arnoldi basis, preconditioned directions and Hessenberg column
		// storage for one restart cycle.
		V  = make([][]float64, restart+1)
		Z  = make([][]float64, restart)
		H  = make([][]float64, restart+1) // H[i][j], row i, column j
		cs = make([]float64, restart)
		sn = make([]float64, restart)
		g  = make([]float64, restart+1)
	)
	for i := range V {
		V[i] = make([]float64, n)
	}
	for i := range Z {
		Z[i] = make([]float64, n)
	}
	for i := range H {
		H[i] = make([]float64, restart)
	}

	for res.Iterations < maxIter {
		// Start (or restart) with the true residual.
		apply(x, r)
		floats.Scale(-1, r)
		floats.Add(r, b)
		beta := norm2(r)
		res.Residual = beta
		if beta <= tol {
			res.Converged = true
			return
		}
		for i := range g {
			g[i] = 0
		}
		g[0] = beta
		copy(V[0], r)
		floats.Scale(1/beta, V[0])

		j := 0
		for ; j < restart && res.Iterations < maxIter; j++ {
			pre.Apply(V[j], Z[j])
			apply(Z[j], w)
			// Modified Gram-Schmidt.
			for i := 0; i <= j; i++ {
				H[i][j] = floats.Dot(w, V[i])
				floats.AddScaled(w, -H[i][j], V[i])
			}
			H[j+1][j] = norm2(w)
			if H[j+1][j] != 0 {
				copy(V[j+1], w)
				floats.Scale(1/H[j+1][j], V[j+1])
			}
			// Apply the accumulated Givens rotations, then form a new one.
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

			res.Iterations++
			res.Residual = math.Abs(g[j+1])
			if res.Residual <= tol {
				j++
				break
			}
		}
		// Solve the triangular system and update x from the flexible basis.
		y := make([]float64, j)
		for i := j - 1; i >= 0; i-- {
			y[i] = g[i]
			for k := i + 1; k < j; k++ {
				y[i] -= H[i][k] * y[k]
			}
			y[i] /= H[i][i]
		}
		for i := 0; i < j; i++ {
			floats.AddScaled(x, y[i], Z[i])
		}
		if res.Residual <= tol {
			res.Converged = true
			return
		}
	}
	return
}
