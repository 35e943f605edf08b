package mesh

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// LoadBalance assigns nb blocks to nranks ranks by walking the global id
// order backward and filling ranks greedily against a running cost target.
// Walking from the end leaves any slack on rank 0. Because blocks are taken
// in id order every rank owns one contiguous id range, returned as
// nslist (first gid per rank) and nblist (count per rank).
func LoadBalance(costs []float64, nranks int) (ranklist, nslist, nblist []int, err error) {
	nb := len(costs)
	if nb < nranks {
		return nil, nil, nil, configErrorf(
			"%d blocks cannot occupy %d ranks, every rank needs at least one block",
			nb, nranks)
	}
	ranklist = make([]int, nb)
	nslist = make([]int, nranks)
	nblist = make([]int, nranks)

	totalcost := floats.Sum(costs)
	j := nranks - 1
	targetcost := totalcost / float64(nranks)
	mycost := 0.0
	for i := nb - 1; i >= 0; i-- {
		if targetcost == 0.0 {
			return nil, nil, nil, configErrorf(
				"load balancing ran out of cost, at least one rank would receive no block")
		}
		mycost += costs[i]
		ranklist[i] = j
		if mycost >= targetcost && j > 0 {
			j--
			totalcost -= mycost
			mycost = 0.0
			targetcost = totalcost / float64(j+1)
		}
	}
	// The range derivation numbers ranks densely in sweep order. A cost
	// distribution extreme enough that the sweep drains its budget before
	// reaching rank 0 (one block outweighing all others combined) leaves
	// low ranks empty and the ranges out of step with ranklist; callers
	// must keep per-block costs within the same order of magnitude.
	nslist[0] = 0
	j = 0
	for i := 1; i < nb; i++ {
		if ranklist[i] != ranklist[i-1] {
			nblist[j] = i - nslist[j]
			j++
			nslist[j] = i
		}
	}
	nblist[j] = nb - nslist[j]
	return ranklist, nslist, nblist, nil
}

// warnUnevenBalance logs, once per cohort, when a uniform-cost static mesh
// cannot split evenly across the ranks. Adaptive meshes rebalance every
// refinement pass, so the condition is transient there and stays silent.
func (m *Mesh) warnUnevenBalance(nranks int) {
	if m.Adaptive || m.NBTotal%nranks == 0 {
		return
	}
	if floats.Max(m.costlist) != floats.Min(m.costlist) {
		return
	}
	m.Rank.RootLogf(
		"load balance: %d blocks over %d ranks does not divide evenly, performance may degrade",
		m.NBTotal, nranks)
}

// BalanceReport summarizes how evenly a rank assignment distributes cost.
type BalanceReport struct {
	MinRankCost  float64
	MaxRankCost  float64
	MeanRankCost float64
	StdDev       float64
	// Imbalance is MaxRankCost over MeanRankCost, 1.0 for a perfect split.
	Imbalance float64
}

// AnalyzeBalance computes per-rank cost statistics for a completed
// assignment.
func AnalyzeBalance(costs []float64, ranklist []int, nranks int) BalanceReport {
	perRank := make([]float64, nranks)
	for i, c := range costs {
		perRank[ranklist[i]] += c
	}
	rep := BalanceReport{
		MinRankCost:  floats.Min(perRank),
		MaxRankCost:  floats.Max(perRank),
		MeanRankCost: stat.Mean(perRank, nil),
		StdDev:       math.Sqrt(stat.Variance(perRank, nil)),
	}
	if rep.MeanRankCost > 0 {
		rep.Imbalance = rep.MaxRankCost / rep.MeanRankCost
	}
	return rep
}
