package solvers

import "gonum.org/v1/gonum/floats"

// CG runs preconditioned conjugate gradients on apply(x) = b, overwriting x
// with the solution. The operator must be symmetric positive definite; all
// inner solves of the block preconditioner satisfy that because convection
// never enters the left-hand side. With maxIter = 0 the initial residual is
// reported and x is left untouched.
func CG(apply func(x, y []float64), pre Preconditioner, b, x []float64,
	tol float64, maxIter int) (res Result) {
	var (
		n = len(b)
		r = make([]float64, n)
		z = make([]float64, n)
		p = make([]float64, n)
		q = make([]float64, n)
	)
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
	pre.Apply(r, z)
	copy(p, z)
	rz := floats.Dot(r, z)
	for it := 1; it <= maxIter; it++ {
		apply(p, q)
		pq := floats.Dot(p, q)
		if pq == 0 {
			// Breakdown; report the current residual.
			res.Iterations = it
			return
		}
		alpha := rz / pq
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, q)
		res.Iterations = it
		res.Residual = norm2(r)
		if res.Residual <= tol {
			res.Converged = true
			return
		}
		pre.Apply(r, z)
		rzNew := floats.Dot(r, z)
		beta := rzNew / rz
		rz = rzNew
		for i := range p {
			p[i] = z[i] + beta*p[i]
		}
	}
	return
}
