package element

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGaussWeightsSumToArea(t *testing.T) {
	for n := 1; n <= 5; n++ {
		q := NewGauss(n)
		sum := 0.0
		for _, w := range q.Weights {
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-14, "order %d", n)
	}
}

func TestGaussIntegratesPolynomials(t *testing.T) {
	// 3-point rule is exact through degree 5: integral of x^4*y over
	// [0,1]^2 is 1/10.
	q := NewGauss(3)
	sum := 0.0
	for k, p := range q.Points {
		sum += q.Weights[k] * p.X * p.X * p.X * p.X * p.Y
	}
	assert.InDelta(t, 0.1, sum, 1e-14)
}

func TestLagrangePartitionOfUnity(t *testing.T) {
	for _, degree := range []int{1, 2, 3} {
		fe := NewLagrange(degree)
		probes := []QPoint{{0.3, 0.7}, {0, 0}, {1, 0.5}, {0.25, 0.25}}
		for _, p := range probes {
			sum, gx, gy := 0.0, 0.0, 0.0
			for n := 0; n < fe.NumNodes(); n++ {
				sum += fe.Value(n, p)
				dx, dy := fe.Grad(n, p)
				gx += dx
				gy += dy
			}
			assert.InDelta(t, 1.0, sum, 1e-12)
			assert.InDelta(t, 0.0, gx, 1e-11)
			assert.InDelta(t, 0.0, gy, 1e-11)
		}
	}
}

func TestLagrangeKroneckerProperty(t *testing.T) {
	fe := NewLagrange(2)
	for n := 0; n < fe.NumNodes(); n++ {
		for m := 0; m < fe.NumNodes(); m++ {
			v := fe.Value(n, fe.SupportPoint(m))
			if n == m {
				assert.InDelta(t, 1.0, v, 1e-13)
			} else {
				assert.InDelta(t, 0.0, v, 1e-13)
			}
		}
	}
}

func TestFEValuesMappedGradients(t *testing.T) {
	// A linear function x + 2y has constant gradient (1, 2); its FE
	// interpolation on Q1 must reproduce it on a stretched cell.
	fe := NewLagrange(1)
	fv := NewFEValues(fe, NewGauss(2))
	fv.Reinit(1.0, 2.0, 0.5, 0.25)

	coeffs := make([]float64, fe.NumNodes())
	for n := 0; n < fe.NumNodes(); n++ {
		sp := fe.SupportPoint(n)
		x, y := 1.0+sp.X*0.5, 2.0+sp.Y*0.25
		coeffs[n] = x + 2*y
	}
	for q := 0; q < fv.NumQuadPoints(); q++ {
		gx, gy := 0.0, 0.0
		for n := 0; n < fe.NumNodes(); n++ {
			dx, dy := fv.ShapeGrad(n, q)
			gx += coeffs[n] * dx
			gy += coeffs[n] * dy
		}
		assert.InDelta(t, 1.0, gx, 1e-12)
		assert.InDelta(t, 2.0, gy, 1e-12)
	}
}

func TestFEValuesJxWSumsToCellArea(t *testing.T) {
	fv := NewFEValues(NewLagrange(2), NewGauss(3))
	fv.Reinit(0, 0, 0.5, 0.25)
	sum := 0.0
	for q := 0; q < fv.NumQuadPoints(); q++ {
		sum += fv.JxW(q)
	}
	require.InDelta(t, 0.125, sum, 1e-14)
}
