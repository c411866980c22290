package fluid

import (
	"fmt"

	"github.com/Tatha911/OpenIFEM/dofs"
)

// CellProperty is the coupling record of one quadrature point. The FSI driver
// writes it between solves; the assembler reads it. Indicator 1 marks a point
// covered by artificial fluid, which gates the FSI forcing terms.
type CellProperty struct {
	Indicator       int
	FsiAcceleration [dofs.Dim]float64
	FsiStress       [dofs.Dim][dofs.Dim]float64
}

// SetupCellProperty (re)creates the cache with one zeroed record per
// quadrature point of every active cell, keyed by cell ID. Called at startup;
// mesh adaptation transfers the records instead of recreating them.
func (s *InsIMEX) SetupCellProperty() {
	nq := s.velValues.NumQuadPoints()
	s.cellProperty = make(map[int][]CellProperty)
	for _, id := range s.Mesh.ActiveCells() {
		s.cellProperty[id] = make([]CellProperty, nq)
	}
}

// CellRecords exposes the mutable coupling records of an active cell, one per
// quadrature point. This is the only write path into the cache; a missing
// entry is a programming error (lookup of a retired or never-registered
// cell).
func (s *InsIMEX) CellRecords(cellID int) []CellProperty {
	p, ok := s.cellProperty[cellID]
	if !ok {
		panic(fmt.Sprintf("no coupling records for cell %d", cellID))
	}
	return p
}
