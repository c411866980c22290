package fluid

import (
	"github.com/Tatha911/OpenIFEM/dofs"
	"github.com/Tatha911/OpenIFEM/mesh"
)

// BoundaryFunction evaluates one velocity component of prescribed Dirichlet
// data at a boundary point.
type BoundaryFunction interface {
	Value(p mesh.Point, comp int) float64
}

// Constant prescribes the same velocity vector everywhere on a boundary. The
// zero value is the no-slip condition.
type Constant [dofs.Dim]float64

func (c Constant) Value(p mesh.Point, comp int) float64 { return c[comp] }

// ParabolicInflow prescribes a streamwise parabola with peak UMax at
// mid-height and zero at the walls.
type ParabolicInflow struct {
	UMax   float64
	Height float64
}

func (b ParabolicInflow) Value(p mesh.Point, comp int) float64 {
	if comp != 0 {
		return 0
	}
	return 4 * b.UMax * p.Y * (b.Height - p.Y) / (b.Height * b.Height)
}

// BoundaryValues maps boundary markers to their Dirichlet data. Markers
// absent from the map carry no velocity constraint.
type BoundaryValues map[int]BoundaryFunction

// ChannelBoundary is the plane-channel configuration: parabolic inflow on the
// left, no-slip walls top and bottom, open outflow on the right.
func ChannelBoundary(umax, height float64) BoundaryValues {
	return BoundaryValues{
		mesh.FaceLeft:   ParabolicInflow{UMax: umax, Height: height},
		mesh.FaceBottom: Constant{},
		mesh.FaceTop:    Constant{},
	}
}

// MakeConstraints builds the paired constraint sets: the nonzero set carries
// the boundary data, the zero set the same lines with zero inhomogeneity.
// Both include the hanging-node lines, so their constrained index sets are
// identical. Markers are visited in fixed order; the first registration of a
// shared corner dof wins.
func (s *InsIMEX) MakeConstraints() {
	s.nonzeroConstraints = dofs.NewConstraints()
	s.zeroConstraints = dofs.NewConstraints()
	s.eachBoundaryValue(func(dof int, value float64) {
		s.nonzeroConstraints.AddLine(dof, value)
		s.zeroConstraints.AddLine(dof, 0)
	})
	s.handler.MakeHangingNodeConstraints(s.nonzeroConstraints)
	s.handler.MakeHangingNodeConstraints(s.zeroConstraints)
	s.nonzeroConstraints.Close()
	s.zeroConstraints.Close()
}

// eachBoundaryValue visits every constrained boundary velocity dof with its
// prescribed value, in fixed marker order.
func (s *InsIMEX) eachBoundaryValue(visit func(dof int, value float64)) {
	for marker := 0; marker < mesh.NumFaces; marker++ {
		fn, ok := s.boundary[marker]
		if !ok {
			continue
		}
		for _, bd := range s.handler.BoundaryVelDofs(marker) {
			visit(bd.Dof, fn.Value(bd.Point, bd.Comp))
		}
	}
}
