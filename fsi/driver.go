package fsi

import (
	"github.com/Tatha911/OpenIFEM/config"
	"github.com/Tatha911/OpenIFEM/dofs"
	"github.com/Tatha911/OpenIFEM/fluid"
	"github.com/Tatha911/OpenIFEM/mesh"
)

// Driver alternates the solid and fluid advance. The solid is kinematic, so
// "advancing" it means evaluating it at the new time; the coupling happens by
// rewriting the fluid's quadrature cache before every fluid step through the
// explicit CellRecords interface.
type Driver struct {
	Fluid *fluid.InsIMEX
	Solid Solid

	// Fluid velocity at the quadrature points of the previous step, for the
	// time derivative part of the fluid acceleration. Keyed by cell ID;
	// entries of adapted-away cells are simply dropped.
	prevVel map[int][][dofs.Dim]float64
}

func NewDriver(params *config.Parameters, solid Solid) (d *Driver) {
	d = &Driver{
		Fluid:   fluid.NewInsIMEX(params),
		Solid:   solid,
		prevVel: make(map[int][][dofs.Dim]float64),
	}
	return
}

// UpdateCellProperties classifies every quadrature point of every active
// fluid cell against the solid at the target time of the upcoming step and
// writes the coupling records: indicator 1 and the forcing samples inside the
// body, a zeroed record outside. The acceleration record is the solid/fluid
// mismatch dv_s/dt - a_f; the assembler scales it with the fluid density.
func (d *Driver) UpdateCellProperties() {
	var (
		s      = d.Fluid
		dt     = s.Time.DeltaT
		t      = s.Time.Current + dt
		vel, _ = s.QuadratureValues()
	)
	for _, id := range s.Mesh.ActiveCells() {
		var (
			recs           = s.CellRecords(id)
			x0, y0, hx, hy = s.Mesh.Extent(id)
			prev           = d.prevVel[id]
		)
		vel.Reinit(x0, y0, hx, hy)
		for q := range recs {
			px, py := vel.QuadPoint(q)
			p := mesh.Point{X: px, Y: py}
			if !d.Solid.Inside(p, t) {
				recs[q] = fluid.CellProperty{}
				continue
			}
			var (
				u    = s.SampleVelocity(p)
				grad = s.SampleVelocityGradient(p)
				aS   = d.Solid.Acceleration(p, t)
			)
			recs[q].Indicator = 1
			for c := 0; c < dofs.Dim; c++ {
				aF := u[c] / dt
				if prev != nil {
					aF = (u[c] - prev[q][c]) / dt
				}
				for k := 0; k < dofs.Dim; k++ {
					aF += u[k] * grad[c][k]
				}
				recs[q].FsiAcceleration[c] = aS[c] - aF
			}
			recs[q].FsiStress = d.Solid.Stress(p, t)
		}
	}
}

// recordVelocities snapshots the quadrature-point fluid velocities after a
// step.
func (d *Driver) recordVelocities() {
	var (
		s      = d.Fluid
		vel, _ = s.QuadratureValues()
		nq     = vel.NumQuadPoints()
	)
	d.prevVel = make(map[int][][dofs.Dim]float64)
	for _, id := range s.Mesh.ActiveCells() {
		x0, y0, hx, hy := s.Mesh.Extent(id)
		vel.Reinit(x0, y0, hx, hy)
		us := make([][dofs.Dim]float64, nq)
		for q := 0; q < nq; q++ {
			px, py := vel.QuadPoint(q)
			us[q] = s.SampleVelocity(mesh.Point{X: px, Y: py})
		}
		d.prevVel[id] = us
	}
}

// RunOneStep performs one coupled advance: solid samples first, then the
// fluid step under the updated cache.
func (d *Driver) RunOneStep() (iterations int, residual float64) {
	d.UpdateCellProperties()
	iterations, residual = d.Fluid.RunOneStep()
	d.recordVelocities()
	return
}

// Run drives the coupled problem from a cold start to the end time with the
// fluid solver's output and refinement cadence.
func (d *Driver) Run() error {
	var (
		s      = d.Fluid
		params = s.Params
	)
	s.SetupDoFs()
	s.MakeConstraints()
	s.InitializeSystem()
	s.SetupCellProperty()
	if err := s.OutputResults(0); err != nil {
		return err
	}
	for !s.Time.IsEnd() {
		d.RunOneStep()
		if s.Time.TimeToOutput() {
			if err := s.OutputResults(s.Time.Step); err != nil {
				return err
			}
		}
		if s.Time.TimeToRefine() {
			s.RefineMesh(params.MinRefinementLevel, params.MaxRefinementLevel)
			d.recordVelocities()
		}
	}
	return nil
}

// DiskFromParameters builds the configured immersed disk.
func DiskFromParameters(params *config.Parameters) RigidDisk {
	return RigidDisk{
		CenterX:   params.SolidCenterX,
		CenterY:   params.SolidCenterY,
		Radius:    params.SolidRadius,
		Amplitude: params.SolidAmplitude,
		Frequency: params.SolidFrequency,
	}
}
