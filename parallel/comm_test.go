package parallel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCohort launches fn on NP goroutines sharing one Comm and waits for all
// of them.
func runCohort(np int, fn func(r Rank, c *Comm)) {
	c := NewComm(np)
	var wg sync.WaitGroup
	for id := 0; id < np; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			fn(NewRank(id, np), c)
		}(id)
	}
	wg.Wait()
}

func TestAllgather(t *testing.T) {
	for _, np := range []int{1, 2, 5, 8} {
		var mu sync.Mutex
		results := make(map[int][]int)
		runCohort(np, func(r Rank, c *Comm) {
			got := Allgather(c, r, 10*r.ID)
			mu.Lock()
			results[r.ID] = got
			mu.Unlock()
		})
		require.Len(t, results, np)
		want := make([]int, np)
		for i := range want {
			want[i] = 10 * i
		}
		for id := 0; id < np; id++ {
			assert.Equal(t, want, results[id])
		}
	}
}

func TestAllgatherv(t *testing.T) {
	// Rank i contributes i values; every rank must see the concatenation in
	// rank order with matching counts.
	np := 4
	var mu sync.Mutex
	results := make(map[int][]int)
	counts := make(map[int][]int)
	runCohort(np, func(r Rank, c *Comm) {
		local := make([]int, r.ID)
		for i := range local {
			local[i] = 100*r.ID + i
		}
		all, cnt := Allgatherv(c, r, local)
		mu.Lock()
		results[r.ID] = all
		counts[r.ID] = cnt
		mu.Unlock()
	})
	want := []int{100, 200, 201, 300, 301, 302}
	for id := 0; id < np; id++ {
		assert.Equal(t, want, results[id])
		assert.Equal(t, []int{0, 1, 2, 3}, counts[id])
	}
}

func TestAllreduce(t *testing.T) {
	np := 6
	var mu sync.Mutex
	mins := make([]float64, np)
	sums := make([][]float64, np)
	runCohort(np, func(r Rank, c *Comm) {
		min := AllreduceMin(c, r, float64(10-r.ID))
		sum := AllreduceSum(c, r, []float64{1, float64(r.ID)})
		mu.Lock()
		mins[r.ID] = min
		sums[r.ID] = sum
		mu.Unlock()
	})
	for id := 0; id < np; id++ {
		assert.Equal(t, 5.0, mins[id])
		assert.Equal(t, []float64{6, 15}, sums[id])
	}
}

func TestBarrierReuse(t *testing.T) {
	// Repeated collectives on one Comm must not deadlock or cross phases.
	np := 3
	var mu sync.Mutex
	seen := make(map[int][][]int)
	runCohort(np, func(r Rank, c *Comm) {
		for round := 0; round < 50; round++ {
			got := Allgather(c, r, round*np+r.ID)
			mu.Lock()
			seen[r.ID] = append(seen[r.ID], got)
			mu.Unlock()
		}
	})
	for id := 0; id < np; id++ {
		require.Len(t, seen[id], 50)
		for round, got := range seen[id] {
			want := []int{round * np, round*np + 1, round*np + 2}
			assert.Equal(t, want, got)
		}
	}
}
