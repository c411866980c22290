package mesh

import "sort"

// FlagForRefinement and FlagForCoarsening mark active cells for the next
// adaptation pass. Flags on inactive cells are ignored.
func (m *Mesh) FlagForRefinement(id int) {
	m.Cells[id].FlagRefine = true
}

func (m *Mesh) FlagForCoarsening(id int) {
	m.Cells[id].FlagCoarsen = true
}

// PrepareCoarseningAndRefinement finalizes the flags without mutating the
// mesh: refinement flags are closed under the 1-irregularity rule (a coarser
// neighbor of a cell being refined is refined too), and coarsening flags that
// would break irregularity or split a family are cancelled. It returns the
// cells that will be refined and the parents that will be reactivated, so
// callers can record transfer data before Execute invalidates the leaves.
func (m *Mesh) PrepareCoarseningAndRefinement() (toRefine, toCoarsen []int) {
	// A cell flagged both ways refines.
	for k := range m.Cells {
		c := &m.Cells[k]
		if !c.IsActive() {
			c.FlagRefine = false
			c.FlagCoarsen = false
			continue
		}
		if c.FlagRefine {
			c.FlagCoarsen = false
		}
	}

	// Close refinement over coarser neighbors until nothing changes.
	for changed := true; changed; {
		changed = false
		for k := range m.Cells {
			c := &m.Cells[k]
			if !c.IsActive() || !c.FlagRefine {
				continue
			}
			for face := 0; face < NumFaces; face++ {
				nb := m.NeighborAcross(k, face)
				if nb.Coarser >= 0 && !m.Cells[nb.Coarser].FlagRefine {
					m.Cells[nb.Coarser].FlagRefine = true
					m.Cells[nb.Coarser].FlagCoarsen = false
					changed = true
				}
			}
		}
	}

	// Collect coarsenable families: all four siblings active and flagged, no
	// child facing a finer cell or a cell about to be refined.
	coarsenOK := make(map[int]bool)
	for k := range m.Cells {
		c := &m.Cells[k]
		if c.IsLeaf() || c.Retired {
			continue
		}
		family := true
		for _, ch := range c.Children {
			cc := &m.Cells[ch]
			if !cc.IsActive() || !cc.FlagCoarsen {
				family = false
				break
			}
		}
		if !family {
			continue
		}
		safe := true
		for _, ch := range c.Children {
			for face := 0; face < NumFaces && safe; face++ {
				nb := m.NeighborAcross(ch, face)
				if nb.Finer[0] >= 0 {
					safe = false
				}
				if nb.Same >= 0 && m.Cells[nb.Same].FlagRefine {
					safe = false
				}
			}
		}
		if safe {
			coarsenOK[k] = true
		}
	}
	// Drop coarsening flags that did not make it into a full family.
	for k := range m.Cells {
		c := &m.Cells[k]
		if c.IsActive() && c.FlagCoarsen && !coarsenOK[c.Parent] {
			c.FlagCoarsen = false
		}
	}

	for k := range m.Cells {
		if m.Cells[k].IsActive() && m.Cells[k].FlagRefine {
			toRefine = append(toRefine, k)
		}
	}
	for k := range coarsenOK {
		toCoarsen = append(toCoarsen, k)
	}
	sort.Ints(toRefine)
	sort.Ints(toCoarsen)
	return
}

// ExecuteCoarseningAndRefinement mutates the mesh according to the prepared
// flags and clears them. Callers needing solution or cache transfer must have
// recorded the old leaves' data beforehand (the prepared lists say which).
func (m *Mesh) ExecuteCoarseningAndRefinement() (refined, coarsened []int) {
	toRefine, toCoarsen := m.PrepareCoarseningAndRefinement()

	// Coarser cells first so the arena grows in deterministic level order.
	sort.Slice(toRefine, func(a, b int) bool {
		ca, cb := &m.Cells[toRefine[a]], &m.Cells[toRefine[b]]
		if ca.Level != cb.Level {
			return ca.Level < cb.Level
		}
		return ca.ID < cb.ID
	})
	for _, id := range toRefine {
		m.refineCell(id)
		refined = append(refined, id)
	}

	for _, parent := range toCoarsen {
		p := &m.Cells[parent]
		for _, ch := range p.Children {
			c := &m.Cells[ch]
			c.Retired = true
			delete(m.lookup, gridKey{c.Level, c.I, c.J})
		}
		p.Children = [4]int{-1, -1, -1, -1}
		coarsened = append(coarsened, parent)
	}

	for k := range m.Cells {
		m.Cells[k].FlagRefine = false
		m.Cells[k].FlagCoarsen = false
	}
	sort.Ints(refined)
	sort.Ints(coarsened)
	return
}

func (m *Mesh) refineCell(id int) {
	c := &m.Cells[id]
	if !c.IsActive() {
		panic("refineCell on an inactive cell")
	}
	level, i, j := c.Level+1, 2*c.I, 2*c.J
	var children [4]int
	children[0] = m.addCell(level, i, j, id)
	children[1] = m.addCell(level, i+1, j, id)
	children[2] = m.addCell(level, i, j+1, id)
	children[3] = m.addCell(level, i+1, j+1, id)
	// addCell may grow the arena, re-take the pointer.
	m.Cells[id].Children = children
	m.Cells[id].FlagRefine = false
}

// RefineGlobal refines every active cell, n times over.
func (m *Mesh) RefineGlobal(n int) {
	for pass := 0; pass < n; pass++ {
		for _, id := range m.ActiveCells() {
			m.FlagForRefinement(id)
		}
		m.ExecuteCoarseningAndRefinement()
	}
}
