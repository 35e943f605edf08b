package mesh

import (
	"sort"

	"github.com/notargets/gamr/parallel"
)

// RefinementStats reports what one refinement pass changed.
type RefinementStats struct {
	Refined    int // blocks split
	Derefined  int // sibling groups collapsed
	OldNBTotal int
	NewNBTotal int
}

// Refine runs one collective refinement pass: every rank flags its own
// blocks, the flags are shared with the whole cohort, each rank applies the
// identical mutations to its replicated tree, and the block set is
// renumbered, rebalanced and rebuilt. All ranks must call Refine together;
// it is a synchronization point.
//
// A block is split when its owner flags it and it is below the level cap.
// A sibling group is collapsed only when all 2^dim members were flagged by
// their owners and the collapse keeps the two-neighbor level difference
// bounded. Collapses are applied finest level first so a cascade in one
// pass cannot produce an inconsistent tree.
func (m *Mesh) Refine() (RefinementStats, error) {
	stats := RefinementStats{OldNBTotal: m.NBTotal, NewNBTotal: m.NBTotal}
	if !m.Adaptive {
		return stats, nil
	}
	nleaf := 1 << uint(m.Dim)

	var lref, lderef []LogicalLocation
	for _, b := range m.Blocks {
		switch flag := m.Phys.RefineFlag(b); {
		case flag > 0 && b.Loc.Level < m.maxLevel:
			lref = append(lref, b.Loc)
		case flag < 0 && b.Loc.Level > m.rootLevel:
			lderef = append(lderef, b.Loc)
		}
	}

	allRef, _ := parallel.Allgatherv(m.Comm, m.Rank, lref)
	allDeref, _ := parallel.Allgatherv(m.Comm, m.Rank, lderef)
	if len(allRef) == 0 && len(allDeref) < nleaf {
		return stats, nil
	}

	for _, loc := range allRef {
		m.tree.Insert(loc.Child(0, 0, 0), m.BCs)
		stats.Refined++
	}

	// A group collapses only by unanimous consent of its members.
	votes := make(map[LogicalLocation]int)
	for _, loc := range allDeref {
		votes[loc.Parent()]++
	}
	var parents []LogicalLocation
	for p, n := range votes {
		if n == nleaf {
			parents = append(parents, p)
		}
	}
	sort.Slice(parents, func(i, j int) bool {
		return Greater(parents[i], parents[j])
	})
	for _, p := range parents {
		if m.tree.Derefine(p, m.BCs) {
			stats.Derefined++
		}
	}

	if stats.Refined == 0 && stats.Derefined == 0 {
		return stats, nil
	}
	if err := m.rebuildBlockList(); err != nil {
		return stats, err
	}
	stats.NewNBTotal = m.NBTotal
	return stats, m.Initialize(2)
}

// rebuildBlockList renumbers the leaves after a tree mutation, carries
// block costs across the change, rebalances and reconstructs this rank's
// blocks. A surviving block that stays on its rank keeps its field state.
func (m *Mesh) rebuildBlockList() error {
	oldCost := make(map[LogicalLocation]float64, m.NBTotal)
	for i, loc := range m.loclist {
		oldCost[loc] = m.costlist[i]
	}
	oldBlocks := make(map[LogicalLocation]*Block, len(m.Blocks))
	for _, b := range m.Blocks {
		oldBlocks[b.Loc] = b
	}

	m.loclist = m.tree.EnumerateLeaves()
	m.NBTotal = len(m.loclist)
	m.currentLevel = m.rootLevel
	for _, loc := range m.loclist {
		if loc.Level > m.currentLevel {
			m.currentLevel = loc.Level
		}
	}

	m.costlist = make([]float64, m.NBTotal)
	for i, loc := range m.loclist {
		if c, ok := oldCost[loc]; ok {
			m.costlist[i] = c // unchanged block
		} else if c, ok := oldCost[loc.Parent()]; ok {
			m.costlist[i] = c // new child of a split block
		} else {
			// collapsed group: the new leaf carries the group's total
			sum := 0.0
			for k := int64(0); k <= 1; k++ {
				for j := int64(0); j <= 1; j++ {
					for i2 := int64(0); i2 <= 1; i2++ {
						sum += oldCost[loc.Child(i2, j, k)]
					}
				}
			}
			if sum == 0.0 {
				sum = 1.0
			}
			m.costlist[i] = sum
		}
	}

	var err error
	m.ranklist, m.nslist, m.nblist, err = LoadBalance(m.costlist, m.Rank.NRanks)
	if err != nil {
		return err
	}

	ns := m.nslist[m.Rank.ID]
	nb := m.nblist[m.Rank.ID]
	m.Blocks = make([]*Block, 0, nb)
	for gid := ns; gid < ns+nb; gid++ {
		loc := m.loclist[gid]
		if ob, ok := oldBlocks[loc]; ok {
			ob.GID = gid
			ob.LID = gid - ns
			m.Blocks = append(m.Blocks, ob)
			continue
		}
		b, err := newBlock(m, gid, gid-ns, loc)
		if err != nil {
			return err
		}
		m.Blocks = append(m.Blocks, b)
	}
	for _, b := range m.Blocks {
		b.SearchAndSetNeighbors(m.tree, m.ranklist, m.nslist)
	}
	return nil
}
