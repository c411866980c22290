package utils

import (
	"fmt"
	"sync"
)

// PartitionMap splits a contiguous index range [0, MaxIndex) into
// ParallelDegree pieces with a maximum imbalance of one item. Rank n owns
// the half-open range Partitions[n].
type PartitionMap struct {
	MaxIndex       int
	ParallelDegree int
	Partitions     [][2]int
}

func NewPartitionMap(parallelDegree, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: parallelDegree,
		Partitions:     make([][2]int, parallelDegree),
	}
	for n := 0; n < parallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

func (pm *PartitionMap) Split1D(rank int) (bucket [2]int) {
	var (
		nPart            = pm.MaxIndex / pm.ParallelDegree
		startAdd, endAdd int
		remainder        = pm.MaxIndex % pm.ParallelDegree
	)
	if remainder != 0 { // spread the remainder over the first chunks evenly
		if rank+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = rank
			endAdd = 1
		}
	}
	bucket[0] = rank*nPart + startAdd
	bucket[1] = bucket[0] + nPart + endAdd
	return
}

// GetBucket locates the rank owning a global index.
func (pm *PartitionMap) GetBucket(index int) (rank, min, max int) {
	if index < 0 || index >= pm.MaxIndex {
		panic(fmt.Sprintf("index %d outside partitioned range [0,%d)", index, pm.MaxIndex))
	}
	// Initial guess assumes near-uniform buckets, then walk to the owner.
	rank = pm.ParallelDegree * index / pm.MaxIndex
	for !(pm.Partitions[rank][0] <= index && index < pm.Partitions[rank][1]) {
		if pm.Partitions[rank][0] > index {
			rank--
		} else {
			rank++
		}
	}
	min, max = pm.Partitions[rank][0], pm.Partitions[rank][1]
	return
}

func (pm *PartitionMap) GetBucketRange(rank int) (min, max int) {
	min, max = pm.Partitions[rank][0], pm.Partitions[rank][1]
	return
}

func (pm *PartitionMap) GetBucketDimension(rank int) int {
	return pm.Partitions[rank][1] - pm.Partitions[rank][0]
}

// MailBox passes typed messages between SPMD rank goroutines. The pattern is:
// for range messages {Post}; Deliver; Barrier; Receive.
type MailBox[T any] struct {
	NP           int
	MessageChans []chan []T
	PostMsgQs    []map[int][]T // Per rank, keyed by target rank
	ReceiveMsgQs [][]T
}

func NewMailBox[T any](np int) *MailBox[T] {
	mb := &MailBox[T]{
		NP:           np,
		MessageChans: make([]chan []T, np),
		PostMsgQs:    make([]map[int][]T, np),
		ReceiveMsgQs: make([][]T, np),
	}
	for n := 0; n < np; n++ {
		mb.MessageChans[n] = make(chan []T, np) // Worst case is all-to-all
		mb.PostMsgQs[n] = make(map[int][]T)
	}
	return mb
}

func (mb *MailBox[T]) PostMessage(myRank, targetRank int, msg T) {
	if targetRank < 0 || targetRank > mb.NP-1 {
		panic(fmt.Sprintf("target rank %d out of bounds", targetRank))
	}
	mb.PostMsgQs[myRank][targetRank] = append(mb.PostMsgQs[myRank][targetRank], msg)
}

func (mb *MailBox[T]) DeliverMyMessages(myRank int) {
	for targetRank, msgs := range mb.PostMsgQs[myRank] {
		if len(msgs) != 0 {
			mb.MessageChans[targetRank] <- msgs
		}
		delete(mb.PostMsgQs[myRank], targetRank)
	}
}

func (mb *MailBox[T]) ReceiveMyMessages(myRank int) []T {
	for {
		select {
		case msgs := <-mb.MessageChans[myRank]:
			mb.ReceiveMsgQs[myRank] = append(mb.ReceiveMsgQs[myRank], msgs...)
		default:
			out := mb.ReceiveMsgQs[myRank]
			mb.ReceiveMsgQs[myRank] = nil
			return out
		}
	}
}

// Comm provides the collective operations of the SPMD run loop. Every rank
// must reach every collective exactly once per step; a rank with no local
// work still participates.
type Comm struct {
	NP      int
	mu      sync.Mutex
	cond    *sync.Cond
	arrived int
	phase   int
	sumBuf  []float64
	maxBuf  []float64
	gather  [][]float64
}

func NewComm(np int) (c *Comm) {
	c = &Comm{NP: np}
	c.cond = sync.NewCond(&c.mu)
	return
}

// arriveLocked completes one collective phase. The per-phase buffers are
// allocated fresh each phase and only ever read through headers captured
// before the wait, so late readers never see the next phase's writes.
func (c *Comm) arriveLocked() {
	phase := c.phase
	c.arrived++
	if c.arrived == c.NP {
		c.arrived = 0
		c.phase++
		c.sumBuf = nil
		c.maxBuf = nil
		c.gather = nil
		c.cond.Broadcast()
	} else {
		for phase == c.phase {
			c.cond.Wait()
		}
	}
}

// Barrier blocks until all NP ranks have arrived.
func (c *Comm) Barrier() {
	c.mu.Lock()
	c.arriveLocked()
	c.mu.Unlock()
}

// AllReduceSum sums the per-rank contributions element-wise; every rank gets
// the full result.
func (c *Comm) AllReduceSum(vals ...float64) []float64 {
	c.mu.Lock()
	if c.sumBuf == nil {
		c.sumBuf = make([]float64, len(vals))
	}
	if len(c.sumBuf) != len(vals) {
		c.mu.Unlock()
		panic("AllReduceSum called with mismatched lengths across ranks")
	}
	for i, v := range vals {
		c.sumBuf[i] += v
	}
	buf := c.sumBuf
	c.arriveLocked()
	out := make([]float64, len(buf))
	copy(out, buf)
	c.mu.Unlock()
	return out
}

// AllReduceMax reduces a scalar with max; every rank gets the result.
func (c *Comm) AllReduceMax(v float64) float64 {
	c.mu.Lock()
	if c.maxBuf == nil {
		c.maxBuf = []float64{v}
	} else if v > c.maxBuf[0] {
		c.maxBuf[0] = v
	}
	buf := c.maxBuf
	c.arriveLocked()
	out := buf[0]
	c.mu.Unlock()
	return out
}

// AllGather concatenates each rank's slice in rank order on every rank.
func (c *Comm) AllGather(myRank int, local []float64) []float64 {
	c.mu.Lock()
	if c.gather == nil {
		c.gather = make([][]float64, c.NP)
	}
	// Own a copy: the caller is free to overwrite local as soon as this rank
	// returns, while slower ranks are still concatenating.
	seg := make([]float64, len(local))
	copy(seg, local)
	c.gather[myRank] = seg
	g := c.gather
	c.arriveLocked()
	var out []float64
	for _, part := range g {
		out = append(out, part...)
	}
	c.mu.Unlock()
	return out
}
