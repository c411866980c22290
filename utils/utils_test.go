package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockDOKRouting(t *testing.T) {
	m := NewBlockDOK(3, 2)
	m.Add(0, 0, 1.0)  // block (0,0)
	m.Add(2, 4, -2.0) // block (0,1) local (2,1)
	m.Add(3, 1, 3.0)  // block (1,0) local (0,1)
	m.Add(4, 4, 5.0)  // block (1,1) local (1,1)
	m.Add(0, 0, 1.0)  // accumulate

	A := m.ToCSR()
	assert.Equal(t, 2.0, A.Block(0, 0).At(0, 0))
	assert.Equal(t, -2.0, A.Block(0, 1).At(2, 1))
	assert.Equal(t, 3.0, A.Block(1, 0).At(0, 1))
	assert.Equal(t, 5.0, A.Block(1, 1).At(1, 1))
}

func TestBlockCSRMulVec(t *testing.T) {
	// [2 0 | 1]   [1]   [5]
	// [0 1 | 0] * [2] = [2]
	// [1 0 | 0]   [3]   [1]
	m := NewBlockDOK(2, 1)
	m.Add(0, 0, 2)
	m.Add(1, 1, 1)
	m.Add(0, 2, 1)
	m.Add(2, 0, 1)
	A := m.ToCSR()

	x := NewBlockVector(2, 1)
	x.U[0], x.U[1], x.P[0] = 1, 2, 3
	y := NewBlockVector(2, 1)
	A.MulVecTo(x, y)
	assert.InDelta(t, 5.0, y.U[0], 1e-14)
	assert.InDelta(t, 2.0, y.U[1], 1e-14)
	assert.InDelta(t, 1.0, y.P[0], 1e-14)
}

func TestCSRMulVecOverwrites(t *testing.T) {
	// [1 2]   [1]   [5]
	// [0 3] * [2] = [6]
	d := NewDOK(2, 2)
	d.Add(0, 0, 1)
	d.Add(0, 1, 2)
	d.Add(1, 1, 3)
	A := d.ToCSR()

	x := []float64{1, 2}
	y := []float64{-7, 11} // stale content must not leak into the product
	A.MulVecTo(x, y)
	assert.Equal(t, []float64{5, 6}, y)
	A.MulVecTo(x, y)
	assert.Equal(t, []float64{5, 6}, y)
}

func TestCSRExtractSortedRows(t *testing.T) {
	d := NewDOK(2, 3)
	d.Add(0, 2, 3)
	d.Add(0, 0, 1)
	d.Add(1, 1, 2)
	ia, ja, vals := d.ToCSR().Extract()
	require.Equal(t, []int{0, 2, 3}, ia)
	require.Equal(t, []int{0, 2, 1}, ja)
	require.Equal(t, []float64{1, 3, 2}, vals)
}

func TestPartitionMapCoversRange(t *testing.T) {
	pm := NewPartitionMap(3, 10)
	total := 0
	for n := 0; n < 3; n++ {
		min, max := pm.GetBucketRange(n)
		total += max - min
	}
	assert.Equal(t, 10, total)
	for i := 0; i < 10; i++ {
		rank, min, max := pm.GetBucket(i)
		assert.True(t, min <= i && i < max)
		assert.True(t, rank >= 0 && rank < 3)
	}
}

func TestCommCollectives(t *testing.T) {
	const np = 4
	c := NewComm(np)
	var wg sync.WaitGroup
	sums := make([]float64, np)
	maxes := make([]float64, np)
	for n := 0; n < np; n++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			c.Barrier()
			out := c.AllReduceSum(float64(rank + 1))
			sums[rank] = out[0]
			maxes[rank] = c.AllReduceMax(float64(rank))
			c.Barrier()
		}(n)
	}
	wg.Wait()
	for n := 0; n < np; n++ {
		assert.Equal(t, 10.0, sums[n])
		assert.Equal(t, 3.0, maxes[n])
	}
}

func TestAllGatherSurvivesLocalOverwrite(t *testing.T) {
	// Each rank gathers its owned segment and immediately clobbers the local
	// slice with the result, the way a segment gather into a shared vector
	// does. Slower ranks must still see the original segment values.
	const np = 4
	c := NewComm(np)
	pm := NewPartitionMap(np, 8)
	var wg sync.WaitGroup
	got := make([][]float64, np)
	for n := 0; n < np; n++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			full := make([]float64, 8)
			lo, hi := pm.GetBucketRange(rank)
			for i := lo; i < hi; i++ {
				full[i] = float64(i)
			}
			for round := 0; round < 3; round++ {
				copy(full, c.AllGather(rank, full[lo:hi]))
			}
			got[rank] = full
		}(n)
	}
	wg.Wait()
	want := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	for n := 0; n < np; n++ {
		assert.Equal(t, want, got[n])
	}
}

func TestMailBoxRoundTrip(t *testing.T) {
	const np = 2
	mb := NewMailBox[int](np)
	c := NewComm(np)
	var wg sync.WaitGroup
	got := make([][]int, np)
	for n := 0; n < np; n++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			mb.PostMessage(rank, 1-rank, rank*10)
			mb.DeliverMyMessages(rank)
			c.Barrier()
			got[rank] = mb.ReceiveMyMessages(rank)
		}(n)
	}
	wg.Wait()
	assert.Equal(t, []int{10}, got[0])
	assert.Equal(t, []int{0}, got[1])
}
