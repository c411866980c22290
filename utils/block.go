package utils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// BlockVector holds the velocity/pressure blocks of the saddle-point system.
// Block 0 is velocity, block 1 is pressure; the global numbering places all
// velocity unknowns before all pressure unknowns. U and P are views into one
// backing slice, so flat Krylov kernels and block operations share storage.
type BlockVector struct {
	Data []float64
	U, P []float64
}

func NewBlockVector(nu, np int) (R BlockVector) {
	data := make([]float64, nu+np)
	R = BlockVector{
		Data: data,
		U:    data[:nu:nu],
		P:    data[nu:],
	}
	return
}

// WrapBlockVector views an existing flat slice as a block vector.
func WrapBlockVector(data []float64, nu int) (R BlockVector) {
	R = BlockVector{
		Data: data,
		U:    data[:nu:nu],
		P:    data[nu:],
	}
	return
}

func (v BlockVector) Len() int { return len(v.U) + len(v.P) }

func (v BlockVector) Block(b int) []float64 {
	switch b {
	case 0:
		return v.U
	case 1:
		return v.P
	}
	panic(fmt.Errorf("block index out of range: %d", b))
}

// At reads by global index; velocity unknowns come first.
func (v BlockVector) At(i int) float64 {
	if i < len(v.U) {
		return v.U[i]
	}
	return v.P[i-len(v.U)]
}

func (v BlockVector) SetAt(i int, val float64) {
	if i < len(v.U) {
		v.U[i] = val
		return
	}
	v.P[i-len(v.U)] = val
}

func (v BlockVector) AddAt(i int, val float64) {
	if i < len(v.U) {
		v.U[i] += val
		return
	}
	v.P[i-len(v.U)] += val
}

func (v BlockVector) Zero() {
	for i := range v.U {
		v.U[i] = 0
	}
	for i := range v.P {
		v.P[i] = 0
	}
}

func (v BlockVector) Copy() (R BlockVector) {
	R = NewBlockVector(len(v.U), len(v.P))
	copy(R.U, v.U)
	copy(R.P, v.P)
	return
}

func (v BlockVector) CopyFrom(src BlockVector) {
	copy(v.U, src.U)
	copy(v.P, src.P)
}

// Add computes v += alpha*w in place.
func (v BlockVector) Add(alpha float64, w BlockVector) {
	floats.AddScaled(v.U, alpha, w.U)
	floats.AddScaled(v.P, alpha, w.P)
}

func (v BlockVector) Scale(alpha float64) {
	floats.Scale(alpha, v.U)
	floats.Scale(alpha, v.P)
}

func (v BlockVector) Dot(w BlockVector) float64 {
	return floats.Dot(v.U, w.U) + floats.Dot(v.P, w.P)
}

func (v BlockVector) Norm() float64 {
	return math.Hypot(floats.Norm(v.U, 2), floats.Norm(v.P, 2))
}

// BlockCSR is the 2x2 block sparse matrix of the coupled system:
//
//	[ A   Bt ]   block(0,0) block(0,1)
//	[ B   C  ]   block(1,0) block(1,1)
type BlockCSR struct {
	B [2][2]CSR
}

func (m *BlockCSR) Block(i, j int) CSR { return m.B[i][j] }

// MulVecTo computes dst = M*src over the block structure.
func (m *BlockCSR) MulVecTo(src, dst BlockVector) {
	var (
		tmp = make([]float64, len(dst.U))
	)
	m.B[0][0].MulVecTo(src.U, dst.U)
	m.B[0][1].MulVecTo(src.P, tmp)
	floats.Add(dst.U, tmp)

	tmpP := make([]float64, len(dst.P))
	m.B[1][0].MulVecTo(src.U, dst.P)
	if !m.B[1][1].IsEmpty() {
		m.B[1][1].MulVecTo(src.P, tmpP)
		floats.Add(dst.P, tmpP)
	}
}

// BlockDOK is the assembly-time counterpart of BlockCSR.
type BlockDOK struct {
	B  [2][2]DOK
	NU int // Velocity block size, the block boundary of the global numbering
}

func NewBlockDOK(nu, np int) (R BlockDOK) {
	R = BlockDOK{NU: nu}
	R.B[0][0] = NewDOK(nu, nu)
	R.B[0][1] = NewDOK(nu, np)
	R.B[1][0] = NewDOK(np, nu)
	R.B[1][1] = NewDOK(np, np)
	return
}

// Add accumulates by global row/column indices, routing into the right block.
func (m *BlockDOK) Add(i, j int, val float64) {
	if val == 0 {
		return
	}
	bi, li := m.split(i)
	bj, lj := m.split(j)
	m.B[bi][bj].Add(li, lj, val)
}

func (m *BlockDOK) split(i int) (block, local int) {
	if i < m.NU {
		return 0, i
	}
	return 1, i - m.NU
}

func (m *BlockDOK) ToCSR() (R BlockCSR) {
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			R.B[i][j] = m.B[i][j].ToCSR()
		}
	}
	return
}
