// Package fluid implements the serial incompressible Navier-Stokes solver:
// an IMEX scheme treating viscosity, grad-div stabilization and the pressure
// coupling implicitly and convection explicitly, solved per step with FGMRES
// under a block Schur-complement preconditioner, on an adaptively refined
// Taylor-Hood discretization.
package fluid

import (
	"fmt"

	"github.com/Tatha911/OpenIFEM/config"
	"github.com/Tatha911/OpenIFEM/dofs"
	"github.com/Tatha911/OpenIFEM/element"
	"github.com/Tatha911/OpenIFEM/mesh"
	"github.com/Tatha911/OpenIFEM/utils"
)

// InsIMEX advances one fluid field on one mesh. The zero value is not usable;
// construct with NewInsIMEX and drive either through Run or, for coupled
// problems, through the step-wise interface (SetupDoFs .. RunOneStep).
type InsIMEX struct {
	Params *config.Parameters
	Mesh   *mesh.Mesh
	Time   SimTime

	handler            *dofs.Handler
	zeroConstraints    *dofs.Constraints
	nonzeroConstraints *dofs.Constraints
	boundary           BoundaryValues

	velValues  *element.FEValues
	presValues *element.FEValues

	systemMatrix utils.BlockCSR
	massMatrix   utils.BlockCSR
	systemRHS    utils.BlockVector

	presentSolution   utils.BlockVector // u^n, p^n
	solutionIncrement utils.BlockVector

	precond      *BlockSchurPreconditioner
	cellProperty map[int][]CellProperty

	// systemDirty forces a full matrix assembly and a preconditioner rebuild
	// on the next step; set at startup and after every mesh adaptation.
	systemDirty bool
}

func NewInsIMEX(params *config.Parameters) (s *InsIMEX) {
	if err := params.Validate(); err != nil {
		panic(err)
	}
	s = &InsIMEX{
		Params: params,
		Mesh:   mesh.NewRectangle(params.NX, params.NY, params.Width, params.Height),
		Time: NewSimTime(params.EndTime, params.DeltaT,
			params.OutputInterval, params.RefinementInterval),
		boundary: ChannelBoundary(params.UMax, params.Height),
	}
	return
}

// SetupDoFs renumbers the unknowns over the current active cells and rebinds
// the quadrature caches. Must be followed by MakeConstraints and
// InitializeSystem before assembly.
func (s *InsIMEX) SetupDoFs() {
	velDegree := s.Params.Degree + 1
	if s.handler == nil {
		s.handler = dofs.NewHandler(s.Mesh, velDegree, s.Params.Degree)
	}
	s.handler.Distribute()
	quad := element.NewGauss(velDegree + 1)
	s.velValues = element.NewFEValues(s.handler.VelFE, quad)
	s.presValues = element.NewFEValues(s.handler.PresFE, quad)
}

// InitializeSystem sizes the vectors to the current dof layout and marks the
// matrices for reassembly. The present solution is zeroed; adaptation
// installs the transferred field afterwards.
func (s *InsIMEX) InitializeSystem() {
	nu, np := s.handler.DofsPerBlock()
	s.systemRHS = utils.NewBlockVector(nu, np)
	s.presentSolution = utils.NewBlockVector(nu, np)
	s.solutionIncrement = utils.NewBlockVector(nu, np)
	s.precond = nil
	s.systemDirty = true
}

// GetCurrentSolution exposes the converged field of the last completed step.
// The FSI driver reads velocities from it when building solid loads.
func (s *InsIMEX) GetCurrentSolution() utils.BlockVector {
	return s.presentSolution
}

func (s *InsIMEX) Handler() *dofs.Handler { return s.handler }

// ZeroConstraints and NonzeroConstraints expose the paired constraint sets
// for solvers layered on top of this one.
func (s *InsIMEX) ZeroConstraints() *dofs.Constraints    { return s.zeroConstraints }
func (s *InsIMEX) NonzeroConstraints() *dofs.Constraints { return s.nonzeroConstraints }

// QuadratureValues exposes the velocity and pressure quadrature caches.
func (s *InsIMEX) QuadratureValues() (vel, pres *element.FEValues) {
	return s.velValues, s.presValues
}

// SampleVelocityGradient evaluates the real-space velocity gradient at a
// physical point. The FSI driver uses it for the convective part of the
// fluid acceleration.
func (s *InsIMEX) SampleVelocityGradient(p mesh.Point) [dofs.Dim][dofs.Dim]float64 {
	return s.velGradient(s.Mesh.FindCell(p), p)
}

// SampleVelocity evaluates the velocity field at a physical point.
func (s *InsIMEX) SampleVelocity(p mesh.Point) (u [dofs.Dim]float64) {
	var (
		id             = s.Mesh.FindCell(p)
		x0, y0, hx, hy = s.Mesh.Extent(id)
		ref            = element.QPoint{X: (p.X - x0) / hx, Y: (p.Y - y0) / hy}
		cellDofs       = s.handler.CellDofs(id)
		nv             = s.handler.VelFE.NumNodes()
		coeffs         = make([]float64, nv)
	)
	for c := 0; c < dofs.Dim; c++ {
		for node := 0; node < nv; node++ {
			coeffs[node] = s.presentSolution.At(cellDofs[dofs.Dim*node+c])
		}
		u[c] = element.ValueAt(s.handler.VelFE, coeffs, ref)
	}
	return
}

// RunOneStep advances the field by one time step: assemble (the full system
// on the first step and after adaptation, otherwise the right-hand side
// only), solve for the increment, accumulate, re-impose boundary data.
func (s *InsIMEX) RunOneStep() (iterations int, residual float64) {
	var (
		assembleSystem = s.systemDirty
		// Boundary data enters through the increment only on the very first
		// step; adaptation re-imposes it on the present solution during the
		// transfer, so a rebuilt system still solves with the zeroed set.
		useNonzero = s.Time.Step == 0
	)
	s.Time.Increment()
	s.Assemble(useNonzero, assembleSystem)
	iterations, residual, converged := s.Solve(useNonzero, assembleSystem)
	s.systemDirty = false

	s.presentSolution.Add(1, s.solutionIncrement)
	s.nonzeroConstraints.Distribute(s.presentSolution)

	fmt.Printf("Time = %8.4f, step = %d, FGMRES its = %d, residual = %8.3e\n",
		s.Time.Current, s.Time.Step, iterations, residual)
	if !converged {
		fmt.Printf("  FGMRES did not converge in %d iterations\n", s.Params.MaxIteration)
	}
	return
}

// Run drives the solver from a cold start to the end time, refining and
// writing output at the configured cadence.
func (s *InsIMEX) Run() error {
	s.SetupDoFs()
	s.MakeConstraints()
	s.InitializeSystem()
	s.SetupCellProperty()
	if err := s.OutputResults(0); err != nil {
		return err
	}
	for !s.Time.IsEnd() {
		s.RunOneStep()
		if s.Time.TimeToOutput() {
			if err := s.OutputResults(s.Time.Step); err != nil {
				return err
			}
		}
		if s.Time.TimeToRefine() {
			s.RefineMesh(s.Params.MinRefinementLevel, s.Params.MaxRefinementLevel)
		}
	}
	return nil
}
