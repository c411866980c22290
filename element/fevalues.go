package element

// FEValues caches the reference-space basis values at the quadrature points
// of one element and maps them to a concrete axis-aligned cell on Reinit.
// The mapping is affine with a diagonal Jacobian, so gradients scale per
// direction and JxW is the scaled quadrature weight.
type FEValues struct {
	FE   *Lagrange
	Quad Quadrature

	refVal  [][]float64    // [q][n]
	refGrad [][][2]float64 // [q][n][2]

	// Set by Reinit.
	x0, y0, hx, hy float64
}

func NewFEValues(fe *Lagrange, quad Quadrature) (fv *FEValues) {
	fv = &FEValues{FE: fe, Quad: quad}
	for q := 0; q < quad.Len(); q++ {
		vals := make([]float64, fe.NumNodes())
		grads := make([][2]float64, fe.NumNodes())
		for n := 0; n < fe.NumNodes(); n++ {
			vals[n] = fe.Value(n, quad.Points[q])
			gx, gy := fe.Grad(n, quad.Points[q])
			grads[n] = [2]float64{gx, gy}
		}
		fv.refVal = append(fv.refVal, vals)
		fv.refGrad = append(fv.refGrad, grads)
	}
	return
}

// Reinit binds the values to a cell given by its lower-left corner and sizes.
func (fv *FEValues) Reinit(x0, y0, hx, hy float64) {
	fv.x0, fv.y0, fv.hx, fv.hy = x0, y0, hx, hy
}

func (fv *FEValues) NumQuadPoints() int { return fv.Quad.Len() }
func (fv *FEValues) DofsPerCell() int   { return fv.FE.NumNodes() }

func (fv *FEValues) JxW(q int) float64 {
	return fv.Quad.Weights[q] * fv.hx * fv.hy
}

// QuadPoint returns the real-space location of quadrature point q.
func (fv *FEValues) QuadPoint(q int) (x, y float64) {
	return fv.x0 + fv.Quad.Points[q].X*fv.hx, fv.y0 + fv.Quad.Points[q].Y*fv.hy
}

func (fv *FEValues) ShapeValue(n, q int) float64 {
	return fv.refVal[q][n]
}

// ShapeGrad returns the real-space gradient of shape function n at point q.
func (fv *FEValues) ShapeGrad(n, q int) (gx, gy float64) {
	return fv.refGrad[q][n][0] / fv.hx, fv.refGrad[q][n][1] / fv.hy
}

// ValueAt evaluates a finite-element function with local coefficients at an
// arbitrary reference point; used by solution transfer and the estimator.
func ValueAt(fe *Lagrange, coeffs []float64, p QPoint) (v float64) {
	for n := 0; n < fe.NumNodes(); n++ {
		v += coeffs[n] * fe.Value(n, p)
	}
	return
}

// GradAt evaluates the reference gradient of a finite-element function at an
// arbitrary reference point; callers divide by the cell sizes to map it.
func GradAt(fe *Lagrange, coeffs []float64, p QPoint) (gx, gy float64) {
	for n := 0; n < fe.NumNodes(); n++ {
		dx, dy := fe.Grad(n, p)
		gx += coeffs[n] * dx
		gy += coeffs[n] * dy
	}
	return
}
