package fsi

import (
	"math"
	"testing"

	"github.com/Tatha911/OpenIFEM/config"
	"github.com/Tatha911/OpenIFEM/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDisk() RigidDisk {
	return RigidDisk{
		CenterX:   1,
		CenterY:   0.5,
		Radius:    0.2,
		Amplitude: 0.1,
		Frequency: 0.5,
	}
}

func fsiParams() *config.Parameters {
	p := config.Channel()
	p.NX, p.NY = 4, 2
	p.Viscosity = 0.5
	p.DeltaT = 0.02
	p.EndTime = 0.2
	p.SolidCenterX = 1
	p.SolidCenterY = 0.5
	// Wide enough to cover quadrature points of the coarse 4x2 test mesh.
	p.SolidRadius = 0.4
	p.SolidAmplitude = 0.1
	p.SolidFrequency = 0.5
	return p
}

func TestDiskKinematics(t *testing.T) {
	d := testDisk()

	// The velocity must be the time derivative of the center motion and the
	// acceleration the derivative of the velocity.
	const h = 1e-6
	for _, tt := range []float64{0, 0.3, 1.1} {
		dydt := (d.centerAt(tt+h).Y - d.centerAt(tt-h).Y) / (2 * h)
		assert.InDelta(t, dydt, d.Velocity(mesh.Point{}, tt)[1], 1e-6)
		dvdt := (d.Velocity(mesh.Point{}, tt+h)[1] - d.Velocity(mesh.Point{}, tt-h)[1]) / (2 * h)
		assert.InDelta(t, dvdt, d.Acceleration(mesh.Point{}, tt)[1], 1e-4)
	}
	assert.Equal(t, 0.0, d.Velocity(mesh.Point{}, 0.3)[0])
}

func TestDiskInsideFollowsMotion(t *testing.T) {
	d := testDisk()
	// At t with sin = 1 the disk has moved up by the full amplitude.
	tTop := 1 / (4 * d.Frequency)
	assert.True(t, d.Inside(mesh.Point{X: 1, Y: 0.5 + d.Amplitude}, tTop))
	assert.False(t, d.Inside(mesh.Point{X: 1, Y: 0.5 - d.Radius}, tTop))
	assert.True(t, d.Inside(mesh.Point{X: 1 + d.Radius, Y: 0.5}, 0))
	assert.False(t, d.Inside(mesh.Point{X: 1 + d.Radius + 1e-9, Y: 0.5}, 0))
}

func TestUpdateCellPropertiesClassifies(t *testing.T) {
	p := fsiParams()
	d := NewDriver(p, DiskFromParameters(p))
	s := d.Fluid
	s.SetupDoFs()
	s.MakeConstraints()
	s.InitializeSystem()
	s.SetupCellProperty()

	d.UpdateCellProperties()
	var (
		tNext  = s.Time.Current + s.Time.DeltaT
		vel, _ = s.QuadratureValues()

		inside, outside int
	)
	for _, id := range s.Mesh.ActiveCells() {
		recs := s.CellRecords(id)
		x0, y0, hx, hy := s.Mesh.Extent(id)
		vel.Reinit(x0, y0, hx, hy)
		for q, rec := range recs {
			px, py := vel.QuadPoint(q)
			if d.Solid.Inside(mesh.Point{X: px, Y: py}, tNext) {
				inside++
				assert.Equal(t, 1, rec.Indicator)
			} else {
				outside++
				assert.Equal(t, 0, rec.Indicator)
				assert.Equal(t, [2]float64{}, rec.FsiAcceleration)
			}
		}
	}
	require.Greater(t, inside, 0, "disk must cover at least one quadrature point")
	require.Greater(t, outside, 0)
}

func TestRecordsClearedWhenSolidMovesOn(t *testing.T) {
	p := fsiParams()
	d := NewDriver(p, DiskFromParameters(p))
	s := d.Fluid
	s.SetupDoFs()
	s.MakeConstraints()
	s.InitializeSystem()
	s.SetupCellProperty()

	// Mark everything, then classify: points away from the disk must be reset.
	for _, id := range s.Mesh.ActiveCells() {
		recs := s.CellRecords(id)
		for q := range recs {
			recs[q].Indicator = 1
		}
	}
	d.UpdateCellProperties()
	var (
		tNext  = s.Time.Current + s.Time.DeltaT
		vel, _ = s.QuadratureValues()
	)
	for _, id := range s.Mesh.ActiveCells() {
		recs := s.CellRecords(id)
		x0, y0, hx, hy := s.Mesh.Extent(id)
		vel.Reinit(x0, y0, hx, hy)
		for q, rec := range recs {
			px, py := vel.QuadPoint(q)
			if !d.Solid.Inside(mesh.Point{X: px, Y: py}, tNext) {
				assert.Equal(t, 0, rec.Indicator)
			}
		}
	}
}

func TestCoupledRunStable(t *testing.T) {
	p := fsiParams()
	d := NewDriver(p, DiskFromParameters(p))
	require.NoError(t, d.Run())

	// The coupled field must stay finite and keep the boundary data intact.
	s := d.Fluid
	v := s.GetCurrentSolution()
	for i := 0; i < v.Len(); i++ {
		require.False(t, math.IsNaN(v.At(i)) || math.IsInf(v.At(i), 0))
	}
	u := s.SampleVelocity(mesh.Point{X: 0, Y: p.Height / 2})
	assert.InDelta(t, p.UMax, u[0], 1e-9)
}
