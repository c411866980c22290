// Package element carries the finite-element capability the assembler
// consumes: Gauss quadrature and tensor-product Lagrange bases on the
// reference square [0,1]^2, plus the mapped values/gradients/JxW on an
// axis-aligned cell. It is deliberately thin; the solver core treats it as
// "evaluate basis functions and gradients at quadrature points of a cell".
package element

import (
	"fmt"
	"math"
)

// gauss1D returns the n-point Gauss-Legendre rule on [-1,1].
func gauss1D(n int) (x, w []float64) {
	switch n {
	case 1:
		return []float64{0}, []float64{2}
	case 2:
		a := 1 / math.Sqrt(3)
		return []float64{-a, a}, []float64{1, 1}
	case 3:
		a := math.Sqrt(3.0 / 5.0)
		return []float64{-a, 0, a}, []float64{5.0 / 9.0, 8.0 / 9.0, 5.0 / 9.0}
	case 4:
		a := math.Sqrt(3.0/7.0 - 2.0/7.0*math.Sqrt(6.0/5.0))
		b := math.Sqrt(3.0/7.0 + 2.0/7.0*math.Sqrt(6.0/5.0))
		wa := (18 + math.Sqrt(30)) / 36
		wb := (18 - math.Sqrt(30)) / 36
		return []float64{-b, -a, a, b}, []float64{wb, wa, wa, wb}
	case 5:
		a := 1.0 / 3.0 * math.Sqrt(5.0-2.0*math.Sqrt(10.0/7.0))
		b := 1.0 / 3.0 * math.Sqrt(5.0+2.0*math.Sqrt(10.0/7.0))
		wa := (322 + 13*math.Sqrt(70)) / 900
		wb := (322 - 13*math.Sqrt(70)) / 900
		return []float64{-b, -a, 0, a, b},
			[]float64{wb, wa, 128.0 / 225.0, wa, wb}
	}
	panic(fmt.Sprintf("unsupported Gauss rule order: %d", n))
}

// QPoint is a quadrature point on the reference square.
type QPoint struct {
	X, Y float64
}

// Quadrature is a tensorized Gauss rule on [0,1]^2.
type Quadrature struct {
	Points  []QPoint
	Weights []float64
}

// NewGauss builds the n x n tensor rule, exact for polynomials of degree
// 2n-1 per direction.
func NewGauss(n int) (q Quadrature) {
	x, w := gauss1D(n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			q.Points = append(q.Points, QPoint{(x[i] + 1) / 2, (x[j] + 1) / 2})
			q.Weights = append(q.Weights, w[i]*w[j]/4)
		}
	}
	return
}

func (q Quadrature) Len() int { return len(q.Points) }
