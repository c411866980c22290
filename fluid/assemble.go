package fluid

import (
	"github.com/Tatha911/OpenIFEM/dofs"
	"github.com/Tatha911/OpenIFEM/element"
	"github.com/Tatha911/OpenIFEM/utils"
)

// AssembleCell evaluates one cell's local system, mass and right-hand side
// contributions on reinitialized quadrature caches. The left-hand side is
// symmetric: viscosity, grad-div stabilization, the time-derivative mass term
// and the pressure coupling are implicit; convection is evaluated at the
// passed coefficients (the old solution) and lands on the right-hand side.
// FSI forcing enters at quadrature points whose coupling record carries
// indicator 1. The distributed solver shares this kernel and scatters the
// results its own way.
func AssembleCell(mu, gamma, rho, dt float64, vel, pres *element.FEValues,
	velCoeffs [dofs.Dim][]float64, presCoeffs []float64, props []CellProperty,
	localMat, localMass utils.Matrix, localRhs []float64, assembleSystem bool) {
	var (
		nv  = vel.DofsPerCell()
		npn = pres.DofsPerCell()
	)
	localMat.Zero()
	localMass.Zero()
	for i := range localRhs {
		localRhs[i] = 0
	}

	for q := 0; q < vel.NumQuadPoints(); q++ {
		var (
			jxw  = vel.JxW(q)
			prop = &props[q]

			uq    [dofs.Dim]float64
			gradU [dofs.Dim][dofs.Dim]float64
			pq    float64
		)
		for node := 0; node < nv; node++ {
			phi := vel.ShapeValue(node, q)
			gx, gy := vel.ShapeGrad(node, q)
			for c := 0; c < dofs.Dim; c++ {
				uq[c] += velCoeffs[c][node] * phi
				gradU[c][0] += velCoeffs[c][node] * gx
				gradU[c][1] += velCoeffs[c][node] * gy
			}
		}
		for node := 0; node < npn; node++ {
			pq += presCoeffs[node] * pres.ShapeValue(node, q)
		}
		divU := gradU[0][0] + gradU[1][1]

		for ni := 0; ni < nv; ni++ {
			var (
				phiI       = vel.ShapeValue(ni, q)
				giX, giY   = vel.ShapeGrad(ni, q)
				gradPhiI   = [dofs.Dim]float64{giX, giY}
				convection [dofs.Dim]float64
			)
			for c := 0; c < dofs.Dim; c++ {
				convection[c] = uq[0]*gradU[c][0] + uq[1]*gradU[c][1]
			}
			for ci := 0; ci < dofs.Dim; ci++ {
				i := dofs.Dim*ni + ci
				// Viscous, grad-div, explicit convection and old pressure
				// contributions of the velocity test function (ni, ci).
				r := -mu*(gradU[ci][0]*gradPhiI[0]+gradU[ci][1]*gradPhiI[1]) -
					gamma*divU*gradPhiI[ci] +
					pq*gradPhiI[ci] -
					rho*convection[ci]*phiI
				if prop.Indicator == 1 {
					r += rho*prop.FsiAcceleration[ci]*phiI +
						prop.FsiStress[ci][0]*gradPhiI[0] +
						prop.FsiStress[ci][1]*gradPhiI[1]
				}
				localRhs[i] += r * jxw

				if !assembleSystem {
					continue
				}
				for nj := 0; nj < nv; nj++ {
					var (
						phiJ     = vel.ShapeValue(nj, q)
						gjX, gjY = vel.ShapeGrad(nj, q)
						gradPhiJ = [dofs.Dim]float64{gjX, gjY}
					)
					for cj := 0; cj < dofs.Dim; cj++ {
						j := dofs.Dim*nj + cj
						v := gamma * gradPhiJ[cj] * gradPhiI[ci]
						if ci == cj {
							v += mu*(gradPhiJ[0]*gradPhiI[0]+gradPhiJ[1]*gradPhiI[1]) +
								rho/dt*phiJ*phiI
							localMass.AddAt(i, j, rho*phiJ*phiI*jxw)
						}
						localMat.AddAt(i, j, v*jxw)
					}
				}
				for nj := 0; nj < npn; nj++ {
					j := dofs.Dim*nv + nj
					psiJ := pres.ShapeValue(nj, q)
					// Pressure coupling, entered symmetrically.
					localMat.AddAt(i, j, -gradPhiI[ci]*psiJ*jxw)
					localMat.AddAt(j, i, -psiJ*gradPhiI[ci]*jxw)
				}
			}
		}
		for ni := 0; ni < npn; ni++ {
			i := dofs.Dim*nv + ni
			psiI := pres.ShapeValue(ni, q)
			localRhs[i] += psiI * divU * jxw
			if assembleSystem {
				for nj := 0; nj < npn; nj++ {
					j := dofs.Dim*nv + nj
					localMass.AddAt(i, j, psiI*pres.ShapeValue(nj, q)*jxw)
				}
			}
		}
	}
}

// LoadCellCoefficients pulls a cell's nodal values of a block vector into the
// per-component coefficient layout of the assembly kernel.
func LoadCellCoefficients(h *dofs.Handler, v utils.BlockVector, cellDofs []int,
	velCoeffs [dofs.Dim][]float64, presCoeffs []float64) {
	nv := h.VelFE.NumNodes()
	for node := 0; node < nv; node++ {
		for c := 0; c < dofs.Dim; c++ {
			velCoeffs[c][node] = v.At(cellDofs[dofs.Dim*node+c])
		}
	}
	for node := range presCoeffs {
		presCoeffs[node] = v.At(cellDofs[dofs.Dim*nv+node])
	}
}

// Assemble builds the right-hand side of the incremental system and, when
// assembleSystem is set, the system and mass matrices, scattering the cell
// kernel's output under the active constraint set.
func (s *InsIMEX) Assemble(useNonzero, assembleSystem bool) {
	if useNonzero && !assembleSystem {
		panic("nonzero constraints require a matrix assembly to carry inhomogeneities")
	}
	var (
		constraints = s.zeroConstraints

		nv  = s.handler.VelFE.NumNodes()
		npn = s.handler.PresFE.NumNodes()
		n   = s.handler.DofsPerCell()

		localMat  = utils.NewMatrix(n, n)
		localMass = utils.NewMatrix(n, n)
		localRhs  = make([]float64, n)

		sysDOK, massDOK utils.BlockDOK

		velCoeffs  [dofs.Dim][]float64
		presCoeffs = make([]float64, npn)
	)
	if useNonzero {
		constraints = s.nonzeroConstraints
	}
	for c := range velCoeffs {
		velCoeffs[c] = make([]float64, nv)
	}
	if assembleSystem {
		nu, np := s.handler.DofsPerBlock()
		sysDOK = utils.NewBlockDOK(nu, np)
		massDOK = utils.NewBlockDOK(nu, np)
	}
	s.systemRHS.Zero()

	for _, id := range s.Mesh.ActiveCells() {
		x0, y0, hx, hy := s.Mesh.Extent(id)
		s.velValues.Reinit(x0, y0, hx, hy)
		s.presValues.Reinit(x0, y0, hx, hy)

		cellDofs := s.handler.CellDofs(id)
		LoadCellCoefficients(s.handler, s.presentSolution, cellDofs, velCoeffs, presCoeffs)

		AssembleCell(s.Params.Viscosity, s.Params.Gamma, s.Params.Rho, s.Time.DeltaT,
			s.velValues, s.presValues, velCoeffs, presCoeffs, s.CellRecords(id),
			localMat, localMass, localRhs, assembleSystem)

		if assembleSystem {
			constraints.DistributeLocalToGlobal(localMat, localRhs, cellDofs,
				&sysDOK, s.systemRHS)
			constraints.DistributeLocalToGlobal(localMass, nil, cellDofs,
				&massDOK, utils.BlockVector{})
		} else {
			constraints.DistributeLocalRhs(localRhs, cellDofs, s.systemRHS)
		}
	}

	if assembleSystem {
		s.systemMatrix = sysDOK.ToCSR()
		s.massMatrix = massDOK.ToCSR()
	}
}
