package parfluid

import (
	"github.com/Tatha911/OpenIFEM/dofs"
	"github.com/Tatha911/OpenIFEM/fluid"
	"github.com/Tatha911/OpenIFEM/utils"
)

// assemble runs the shared cell kernel over this rank's owned cells and
// completes the distributed add: every contribution to a row owned by
// another rank travels through the mailboxes, then each rank folds what it
// received into its owned rows.
func (w *worker) assemble(useNonzero, assembleSystem bool) {
	if useNonzero && !assembleSystem {
		panic("nonzero constraints require a matrix assembly to carry inhomogeneities")
	}
	var (
		h           = w.s.Handler()
		nu, np      = h.DofsPerBlock()
		constraints = w.s.ZeroConstraints()

		nv  = h.VelFE.NumNodes()
		npn = h.PresFE.NumNodes()
		n   = h.DofsPerCell()

		localMat  = utils.NewMatrix(n, n)
		localMass = utils.NewMatrix(n, n)
		localRhs  = make([]float64, n)

		velCoeffs  [dofs.Dim][]float64
		presCoeffs = make([]float64, npn)

		// Rank-local scatter targets; routed to the row owners afterwards.
		scatterSys, scatterMass utils.BlockDOK
		scatterRhs              = utils.NewBlockVector(nu, np)

		vel, pres = w.s.QuadratureValues()
	)
	if useNonzero {
		constraints = w.s.NonzeroConstraints()
	}
	for c := range velCoeffs {
		velCoeffs[c] = make([]float64, nv)
	}
	if assembleSystem {
		scatterSys = utils.NewBlockDOK(nu, np)
		scatterMass = utils.NewBlockDOK(nu, np)
	}

	present := w.s.GetCurrentSolution()
	for _, id := range w.ownedCells() {
		x0, y0, hx, hy := w.s.Mesh.Extent(id)
		vel.Reinit(x0, y0, hx, hy)
		pres.Reinit(x0, y0, hx, hy)

		cellDofs := h.CellDofs(id)
		fluid.LoadCellCoefficients(h, present, cellDofs, velCoeffs, presCoeffs)

		fluid.AssembleCell(w.par.Params.Viscosity, w.par.Params.Gamma,
			w.par.Params.Rho, w.s.Time.DeltaT, vel, pres,
			velCoeffs, presCoeffs, w.s.CellRecords(id),
			localMat, localMass, localRhs, assembleSystem)

		if assembleSystem {
			constraints.DistributeLocalToGlobal(localMat, localRhs, cellDofs,
				&scatterSys, scatterRhs)
			constraints.DistributeLocalToGlobal(localMass, nil, cellDofs,
				&scatterMass, utils.BlockVector{})
		} else {
			constraints.DistributeLocalRhs(localRhs, cellDofs, scatterRhs)
		}
	}

	w.rhs.Zero()
	var ownedSys, ownedMass utils.BlockDOK
	if assembleSystem {
		ownedSys = utils.NewBlockDOK(nu, np)
		ownedMass = utils.NewBlockDOK(nu, np)
		w.routeMatrix(&scatterSys, &ownedSys, w.par.sysMB)
		w.routeMatrix(&scatterMass, &ownedMass, w.par.massMB)
	}
	w.routeVector(scatterRhs, w.rhs)

	w.par.comm.Barrier()
	if assembleSystem {
		w.foldMatrix(&ownedSys, w.par.sysMB)
		w.foldMatrix(&ownedMass, w.par.massMB)
	}
	w.foldVector(w.rhs)
	w.par.comm.Barrier()

	if assembleSystem {
		w.system = ownedSys.ToCSR()
		w.mass = ownedMass.ToCSR()
	}
	// Every rank needs the full right-hand side for the replicated Krylov
	// recurrence.
	w.gatherFull(w.rhs)
}

// routeMatrix keeps owned rows of the local scatter and posts the rest to
// their owners.
func (w *worker) routeMatrix(scatter, owned *utils.BlockDOK, mb *utils.MailBox[matEntry]) {
	nu := scatter.NU
	for bi := 0; bi < 2; bi++ {
		for bj := 0; bj < 2; bj++ {
			var (
				rowOff, colOff int
			)
			if bi == 1 {
				rowOff = nu
			}
			if bj == 1 {
				colOff = nu
			}
			ia, ja, vals := scatter.B[bi][bj].ToCSR().Extract()
			for i := 0; i < len(ia)-1; i++ {
				row := rowOff + i
				owner := w.rowOwner(row)
				for k := ia[i]; k < ia[i+1]; k++ {
					col := colOff + ja[k]
					if owner == w.rank {
						owned.Add(row, col, vals[k])
					} else {
						mb.PostMessage(w.rank, owner, matEntry{Row: row, Col: col, Val: vals[k]})
					}
				}
			}
		}
	}
	mb.DeliverMyMessages(w.rank)
}

func (w *worker) foldMatrix(owned *utils.BlockDOK, mb *utils.MailBox[matEntry]) {
	for _, e := range mb.ReceiveMyMessages(w.rank) {
		owned.Add(e.Row, e.Col, e.Val)
	}
}

// routeVector adds owned entries of the scatter into dst and mails the rest.
func (w *worker) routeVector(scatter, dst utils.BlockVector) {
	for g := 0; g < scatter.Len(); g++ {
		v := scatter.At(g)
		if v == 0 {
			continue
		}
		if owner := w.rowOwner(g); owner == w.rank {
			dst.AddAt(g, v)
		} else {
			w.par.rhsMB.PostMessage(w.rank, owner, vecEntry{Dof: g, Val: v})
		}
	}
	w.par.rhsMB.DeliverMyMessages(w.rank)
}

func (w *worker) foldVector(dst utils.BlockVector) {
	for _, e := range w.par.rhsMB.ReceiveMyMessages(w.rank) {
		dst.AddAt(e.Dof, e.Val)
	}
}
