package element

import "fmt"

// Lagrange is the tensor-product Lagrange element Q_d on the reference
// square, with equispaced support points. Node n sits at
// (ix/d, iy/d) where n = ix + (d+1)*iy.
type Lagrange struct {
	Degree int
	nodes  []float64 // 1D support points 0, 1/d, ..., 1
}

func NewLagrange(degree int) (l *Lagrange) {
	if degree < 1 {
		panic(fmt.Sprintf("Lagrange degree must be at least 1, got %d", degree))
	}
	l = &Lagrange{Degree: degree}
	for i := 0; i <= degree; i++ {
		l.nodes = append(l.nodes, float64(i)/float64(degree))
	}
	return
}

func (l *Lagrange) NumNodes() int { return (l.Degree + 1) * (l.Degree + 1) }

func (l *Lagrange) SupportPoint(n int) QPoint {
	ix, iy := l.split(n)
	return QPoint{l.nodes[ix], l.nodes[iy]}
}

func (l *Lagrange) split(n int) (ix, iy int) {
	per := l.Degree + 1
	if n < 0 || n >= per*per {
		panic(fmt.Sprintf("node index out of range: %d", n))
	}
	return n % per, n / per
}

// Value1D evaluates the 1D Lagrange basis polynomial for node i at x; the
// hanging-node interpolation weights on refined faces come from here.
func (l *Lagrange) Value1D(i int, x float64) float64 {
	return l.value1D(i, x)
}

// value1D evaluates the 1D Lagrange basis polynomial for node i at x.
func (l *Lagrange) value1D(i int, x float64) float64 {
	v := 1.0
	xi := l.nodes[i]
	for k, xk := range l.nodes {
		if k == i {
			continue
		}
		v *= (x - xk) / (xi - xk)
	}
	return v
}

// deriv1D evaluates the derivative of the 1D basis polynomial for node i.
func (l *Lagrange) deriv1D(i int, x float64) float64 {
	xi := l.nodes[i]
	sum := 0.0
	for m, xm := range l.nodes {
		if m == i {
			continue
		}
		term := 1.0 / (xi - xm)
		for k, xk := range l.nodes {
			if k == i || k == m {
				continue
			}
			term *= (x - xk) / (xi - xk)
		}
		sum += term
	}
	return sum
}

// Value evaluates shape function n at a reference point.
func (l *Lagrange) Value(n int, p QPoint) float64 {
	ix, iy := l.split(n)
	return l.value1D(ix, p.X) * l.value1D(iy, p.Y)
}

// Grad evaluates the reference gradient of shape function n.
func (l *Lagrange) Grad(n int, p QPoint) (gx, gy float64) {
	ix, iy := l.split(n)
	gx = l.deriv1D(ix, p.X) * l.value1D(iy, p.Y)
	gy = l.value1D(ix, p.X) * l.deriv1D(iy, p.Y)
	return
}
