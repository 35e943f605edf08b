package parallel

import (
	"fmt"
	"sync"
)

// Barrier is a reusable rendezvous for NRanks goroutines. The last arrival
// releases the cohort and resets the barrier for the next use.
type Barrier struct {
	n       int
	mu      sync.Mutex
	count   int
	release chan struct{}
}

func NewBarrier(n int) *Barrier {
	if n < 1 {
		panic(fmt.Sprintf("barrier size %d out of bounds", n))
	}
	return &Barrier{n: n, release: make(chan struct{})}
}

func (b *Barrier) Wait() {
	b.mu.Lock()
	release := b.release
	b.count++
	if b.count == b.n {
		b.count = 0
		b.release = make(chan struct{})
		b.mu.Unlock()
		close(release)
		return
	}
	b.mu.Unlock()
	<-release
}

// Comm carries the shared state for the blocking collectives. All ranks of
// one cohort must use the same Comm, and every rank must participate in
// every collective call in the same order; the collectives double as the
// only synchronization points between ranks.
type Comm struct {
	nranks  int
	slots   []interface{} // one contribution slot per rank
	barrier *Barrier
}

func NewComm(nranks int) *Comm {
	return &Comm{
		nranks:  nranks,
		slots:   make([]interface{}, nranks),
		barrier: NewBarrier(nranks),
	}
}

func (c *Comm) NRanks() int { return c.nranks }

// gather posts v into this rank's slot, waits for the cohort, builds the
// result from the full slot set, and waits again so no slot is reused by a
// following collective before every rank has read it. Contributions must not
// be mutated by their owners until gather returns.
func gather[R any](c *Comm, r Rank, v interface{}, build func([]interface{}) R) R {
	if r.NRanks != c.nranks {
		panic(fmt.Sprintf("rank cohort size %d does not match comm size %d",
			r.NRanks, c.nranks))
	}
	c.slots[r.ID] = v
	c.barrier.Wait()
	out := build(c.slots)
	c.barrier.Wait()
	return out
}

// Barrier blocks until every rank has entered it.
func (c *Comm) Barrier(r Rank) {
	gather(c, r, nil, func([]interface{}) int { return 0 })
}

// Allgather collects one value from each rank, returned in rank order on
// every rank.
func Allgather[T any](c *Comm, r Rank, v T) []T {
	return gather(c, r, v, func(slots []interface{}) []T {
		out := make([]T, len(slots))
		for i, x := range slots {
			out[i] = x.(T)
		}
		return out
	})
}

type vgather[T any] struct {
	All    []T
	Counts []int
}

// Allgatherv collects a variable-length slice from each rank and returns the
// concatenation in rank order, along with the per-rank counts. This is the
// count-then-displacement gather the refinement coordinator relies on.
func Allgatherv[T any](c *Comm, r Rank, vs []T) (all []T, counts []int) {
	g := gather(c, r, vs, func(slots []interface{}) vgather[T] {
		counts := make([]int, len(slots))
		total := 0
		for i, x := range slots {
			counts[i] = len(x.([]T))
			total += counts[i]
		}
		all := make([]T, 0, total)
		for _, x := range slots {
			all = append(all, x.([]T)...)
		}
		return vgather[T]{All: all, Counts: counts}
	})
	return g.All, g.Counts
}

// AllreduceMin returns the cohort-wide minimum of v on every rank.
func AllreduceMin(c *Comm, r Rank, v float64) float64 {
	return gather(c, r, v, func(slots []interface{}) float64 {
		min := slots[0].(float64)
		for _, x := range slots[1:] {
			if v := x.(float64); v < min {
				min = v
			}
		}
		return min
	})
}

// AllreduceSum returns the element-wise cohort sum of vs on every rank. All
// ranks must pass slices of the same length.
func AllreduceSum(c *Comm, r Rank, vs []float64) []float64 {
	return gather(c, r, vs, func(slots []interface{}) []float64 {
		out := make([]float64, len(vs))
		for _, x := range slots {
			contrib := x.([]float64)
			if len(contrib) != len(out) {
				panic(fmt.Sprintf("allreduce length mismatch: %d != %d",
					len(contrib), len(out)))
			}
			for i, v := range contrib {
				out[i] += v
			}
		}
		return out
	})
}
