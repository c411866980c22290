// Package parfluid is the distributed (SPMD) variant of the fluid solver:
// NumProcs rank goroutines advance the same time loop in lockstep. The mesh,
// dof layout and constraint sets are replicated per rank and mutated
// identically; matrices and vectors are partitioned by contiguous dof ranges,
// with off-owner assembly contributions travelling through mailboxes and all
// global reductions going through the collective operations.
package parfluid

import (
	"fmt"
	"sync"

	"github.com/Tatha911/OpenIFEM/config"
	"github.com/Tatha911/OpenIFEM/fluid"
	"github.com/Tatha911/OpenIFEM/utils"
)

// matEntry and vecEntry are the mailbox payloads of the distributed-add
// protocol: a contribution to a matrix entry or vector row owned by another
// rank.
type matEntry struct {
	Row, Col int
	Val      float64
}

type vecEntry struct {
	Dof int
	Val float64
}

// Solver owns the shared communication plumbing and one worker per rank.
type Solver struct {
	Params *config.Parameters
	NP     int

	comm   *utils.Comm
	sysMB  *utils.MailBox[matEntry]
	massMB *utils.MailBox[matEntry]
	rhsMB  *utils.MailBox[vecEntry]

	workers []*worker
}

func NewSolver(params *config.Parameters) (p *Solver) {
	np := params.NumProcs
	if np < 1 {
		np = 1
	}
	p = &Solver{
		Params: params,
		NP:     np,
		comm:   utils.NewComm(np),
		sysMB:  utils.NewMailBox[matEntry](np),
		massMB: utils.NewMailBox[matEntry](np),
		rhsMB:  utils.NewMailBox[vecEntry](np),
	}
	for rank := 0; rank < np; rank++ {
		p.workers = append(p.workers, &worker{
			rank: rank,
			par:  p,
			s:    fluid.NewInsIMEX(params),
		})
	}
	return
}

// Worker exposes a rank's replica for inspection after a run.
func (p *Solver) Worker(rank int) *fluid.InsIMEX { return p.workers[rank].s }

// worker is the per-rank state: a full replica of the serial solver for all
// replicated structures, plus the partition maps and owned-row matrices of
// the distributed pieces.
type worker struct {
	rank int
	par  *Solver
	s    *fluid.InsIMEX

	cellPM   *utils.PartitionMap // over the active cell list
	pmU, pmP *utils.PartitionMap // over the velocity and pressure blocks

	system, mass utils.BlockCSR    // owned rows, global columns
	rhs          utils.BlockVector // replicated after assembly exchange
	increment    utils.BlockVector

	pre         *blockJacobiSchur
	systemDirty bool
}

func (w *worker) setup() {
	w.s.SetupDoFs()
	w.s.MakeConstraints()
	w.s.InitializeSystem()
	w.s.SetupCellProperty()
	w.repartition()
}

// repartition rebuilds the partition maps and the partitioned vectors after
// every dof layout change. All ranks derive identical maps from identical
// replicas.
func (w *worker) repartition() {
	var (
		nCells = len(w.s.Mesh.ActiveCells())
		nu, np = w.s.Handler().DofsPerBlock()
	)
	w.cellPM = utils.NewPartitionMap(w.par.NP, nCells)
	w.pmU = utils.NewPartitionMap(w.par.NP, nu)
	w.pmP = utils.NewPartitionMap(w.par.NP, np)
	w.rhs = utils.NewBlockVector(nu, np)
	w.increment = utils.NewBlockVector(nu, np)
	w.pre = nil
	w.systemDirty = true
}

// ownedCells returns this rank's slice of the deterministic active cell list.
func (w *worker) ownedCells() []int {
	ids := w.s.Mesh.ActiveCells()
	lo, hi := w.cellPM.GetBucketRange(w.rank)
	return ids[lo:hi]
}

// rowOwner maps a global dof to the rank owning its matrix row and vector
// entry.
func (w *worker) rowOwner(g int) int {
	nu, _ := w.s.Handler().DofsPerBlock()
	if g < nu {
		rank, _, _ := w.pmU.GetBucket(g)
		return rank
	}
	rank, _, _ := w.pmP.GetBucket(g - nu)
	return rank
}

// gatherFull replaces a partitioned vector's content with the concatenation
// of all owned segments, leaving every rank with the identical full vector.
func (w *worker) gatherFull(v utils.BlockVector) {
	var (
		uLo, uHi = w.pmU.GetBucketRange(w.rank)
		pLo, pHi = w.pmP.GetBucketRange(w.rank)
	)
	copy(v.U, w.par.comm.AllGather(w.rank, v.U[uLo:uHi]))
	copy(v.P, w.par.comm.AllGather(w.rank, v.P[pLo:pHi]))
}

// dot is the distributed inner product: each rank contributes its owned
// segments, the reduction hands everyone the global value.
func (w *worker) dot(a, b utils.BlockVector) float64 {
	var (
		uLo, uHi = w.pmU.GetBucketRange(w.rank)
		pLo, pHi = w.pmP.GetBucketRange(w.rank)
		local    float64
	)
	for i := uLo; i < uHi; i++ {
		local += a.U[i] * b.U[i]
	}
	for i := pLo; i < pHi; i++ {
		local += a.P[i] * b.P[i]
	}
	return w.par.comm.AllReduceSum(local)[0]
}

// runOneStep mirrors the serial step under the distributed assembly/solve.
func (w *worker) runOneStep() (iterations int, residual float64, converged bool) {
	var (
		assembleSystem = w.systemDirty
		// Boundary data enters the increment only on the first step; the
		// adaptation transfer re-imposes it on every replica's present
		// solution, so rebuilt systems still solve with the zeroed set.
		useNonzero = w.s.Time.Step == 0
	)
	w.s.Time.Increment()
	w.assemble(useNonzero, assembleSystem)
	iterations, residual, converged = w.solve(useNonzero, assembleSystem)
	w.systemDirty = false

	present := w.s.GetCurrentSolution()
	present.Add(1, w.increment)
	w.s.NonzeroConstraints().Distribute(present)
	return
}

// refine executes the collective adaptation: owned-cell indicators are
// all-reduced into the full ranking, then every rank applies the identical
// mutation to its replica and repartitions.
func (w *worker) refine() {
	var (
		eta     = w.s.EstimateError()
		ids     = w.s.Mesh.ActiveCells()
		contrib = make([]float64, len(ids))
		lo, hi  = w.cellPM.GetBucketRange(w.rank)
	)
	for k := lo; k < hi; k++ {
		contrib[k] = eta[ids[k]]
	}
	full := w.par.comm.AllReduceSum(contrib...)
	reduced := make(map[int]float64, len(ids))
	for k, id := range ids {
		reduced[id] = full[k]
	}
	w.s.AdaptWithIndicator(reduced, w.par.Params.MinRefinementLevel,
		w.par.Params.MaxRefinementLevel)
	w.par.comm.Barrier()
	w.repartition()
}

func (w *worker) run() (err error) {
	w.setup()
	if w.rank == 0 {
		err = w.s.OutputResults(0)
	}
	for !w.s.Time.IsEnd() {
		its, res, ok := w.runOneStep()
		if w.rank == 0 {
			fmt.Printf("Time = %8.4f, step = %d, ranks = %d, FGMRES its = %d, residual = %8.3e\n",
				w.s.Time.Current, w.s.Time.Step, w.par.NP, its, res)
			if !ok {
				fmt.Printf("  FGMRES did not converge in %d iterations\n",
					w.par.Params.MaxIteration)
			}
		}
		if w.s.Time.TimeToOutput() && w.rank == 0 && err == nil {
			err = w.s.OutputResults(w.s.Time.Step)
		}
		if w.s.Time.TimeToRefine() {
			w.refine()
		}
	}
	return
}

// Run launches the rank goroutines and waits for the lockstep loop to reach
// the end time.
func (p *Solver) Run() error {
	var (
		wg   sync.WaitGroup
		errs = make([]error, p.NP)
	)
	for rank := 0; rank < p.NP; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			errs[rank] = p.workers[rank].run()
		}(rank)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
