package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noBCs = [6]BCFlag{BCOutflow, BCOutflow, BCOutflow, BCOutflow, BCOutflow, BCOutflow}

var periodicBCs = [6]BCFlag{BCPeriodic, BCPeriodic, BCPeriodic, BCPeriodic,
	BCPeriodic, BCPeriodic}

func TestRootGridLeafCount(t *testing.T) {
	for _, tc := range []struct {
		nrbx1, nrbx2, nrbx3 int64
		dim                 int
		rootLevel           int
	}{
		{4, 1, 1, 1, 2},
		{4, 4, 1, 2, 2},
		{4, 4, 4, 3, 2},
		{3, 2, 1, 2, 2}, // non-power-of-two root grid
		{8, 8, 8, 3, 3},
	} {
		tree, err := NewTree(tc.nrbx1, tc.nrbx2, tc.nrbx3, tc.rootLevel, tc.dim)
		require.NoError(t, err)
		assert.Equal(t, int(tc.nrbx1*tc.nrbx2*tc.nrbx3), tree.CountLeaves(),
			"root grid %dx%dx%d", tc.nrbx1, tc.nrbx2, tc.nrbx3)
	}
}

func TestNewTreeRejectsBadDimensions(t *testing.T) {
	_, err := NewTree(0, 1, 1, 0, 1)
	require.Error(t, err)
	_, err = NewTree(4, 4, 1, 2, 5)
	require.Error(t, err)
}

func TestInsertIdempotent(t *testing.T) {
	tree, err := NewTree(4, 4, 1, 2, 2)
	require.NoError(t, err)
	loc := LogicalLocation{Level: 3, LX1: 2, LX2: 2}
	tree.Insert(loc, noBCs)
	n1 := tree.CountLeaves()
	tree.Insert(loc, noBCs)
	assert.Equal(t, n1, tree.CountLeaves())
	require.NotNil(t, tree.Find(loc))
	assert.True(t, tree.Find(loc).Leaf())
}

func TestEnumerationStable(t *testing.T) {
	tree, err := NewTree(4, 4, 1, 2, 2)
	require.NoError(t, err)
	tree.Insert(LogicalLocation{Level: 3, LX1: 5, LX2: 5}, noBCs)
	first := tree.EnumerateLeaves()
	second := tree.EnumerateLeaves()
	require.Equal(t, first, second)
	// ids follow enumeration order
	for gid, loc := range first {
		node := tree.Find(loc)
		require.NotNil(t, node)
		assert.Equal(t, gid, node.GID)
	}
}

// checkNesting asserts every leaf's neighbors are within one level.
func checkNesting(t *testing.T, tree *Tree, locs []LogicalLocation, dim int,
	bcs [6]BCFlag) {
	t.Helper()
	o2, o3 := 0, 0
	if dim >= 2 {
		o2 = 1
	}
	if dim == 3 {
		o3 = 1
	}
	for _, loc := range locs {
		for oz := -o3; oz <= o3; oz++ {
			for oy := -o2; oy <= o2; oy++ {
				for ox := -1; ox <= 1; ox++ {
					if ox == 0 && oy == 0 && oz == 0 {
						continue
					}
					nb := tree.FindNeighbor(loc, ox, oy, oz, bcs)
					if nb == nil {
						continue
					}
					if nb.Leaf() {
						assert.GreaterOrEqual(t, nb.Loc.Level, loc.Level-1,
							"leaf %v dir (%d,%d,%d)", loc, ox, oy, oz)
						continue
					}
					// internal at loc's level: the children facing this
					// block are one level finer and must be leaves
					faces := func(o, f int) bool {
						return o == 0 || (o == 1 && f == 0) || (o == -1 && f == 1)
					}
					for _, c := range nb.Children() {
						f1, f2, f3 := c.Loc.Octant()
						if faces(ox, f1) && faces(oy, f2) && faces(oz, f3) {
							assert.True(t, c.Leaf(),
								"neighbor of %v two levels finer", loc)
						}
					}
				}
			}
		}
	}
}

func TestInsertEnforcesProperNesting(t *testing.T) {
	tree, err := NewTree(4, 4, 1, 2, 2)
	require.NoError(t, err)
	// jump two levels down in one corner; nesting must refine the ring
	tree.Insert(LogicalLocation{Level: 4, LX1: 0, LX2: 0}, noBCs)
	locs := tree.EnumerateLeaves()
	checkNesting(t, tree, locs, 2, noBCs)
	// the far corner stays at the root level
	n := tree.Find(LogicalLocation{Level: 2, LX1: 3, LX2: 3})
	require.NotNil(t, n)
	assert.True(t, n.Leaf())
}

func TestNeighborSymmetry(t *testing.T) {
	tree, err := NewTree(4, 4, 4, 2, 3)
	require.NoError(t, err)
	locs := tree.EnumerateLeaves()
	for _, loc := range locs {
		for _, dir := range [][3]int{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 0}, {1, 1, 1}} {
			nb := tree.FindNeighbor(loc, dir[0], dir[1], dir[2], noBCs)
			if nb == nil || !nb.Leaf() || nb.Loc.Level != loc.Level {
				continue
			}
			back := tree.FindNeighbor(nb.Loc, -dir[0], -dir[1], -dir[2], noBCs)
			require.NotNil(t, back)
			assert.Equal(t, loc, back.Loc)
		}
	}
}

func TestPeriodicWrap(t *testing.T) {
	tree, err := NewTree(4, 4, 1, 2, 2)
	require.NoError(t, err)
	left := LogicalLocation{Level: 2, LX1: 0, LX2: 1}
	nb := tree.FindNeighbor(left, -1, 0, 0, periodicBCs)
	require.NotNil(t, nb)
	assert.Equal(t, LogicalLocation{Level: 2, LX1: 3, LX2: 1}, nb.Loc)
	// without periodic wrap the domain edge has no neighbor
	assert.Nil(t, tree.FindNeighbor(left, -1, 0, 0, noBCs))
}

func TestDerefineCollapsesGroup(t *testing.T) {
	tree, err := NewTree(4, 4, 1, 2, 2)
	require.NoError(t, err)
	parent := LogicalLocation{Level: 2, LX1: 1, LX2: 1}
	tree.Insert(parent.Child(0, 0, 0), noBCs)
	require.Equal(t, 16+3, tree.CountLeaves())

	require.True(t, tree.Derefine(parent, noBCs))
	assert.Equal(t, 16, tree.CountLeaves())
	n := tree.Find(parent)
	require.NotNil(t, n)
	assert.True(t, n.Leaf())
}

func TestDerefineRefusesNestingViolation(t *testing.T) {
	tree, err := NewTree(4, 4, 1, 2, 2)
	require.NoError(t, err)
	parent := LogicalLocation{Level: 2, LX1: 1, LX2: 1}
	tree.Insert(parent.Child(0, 0, 0), noBCs)
	// refine a child of the group one level further; collapsing the
	// neighbor group would then create a two-level jump
	tree.Insert(parent.Child(0, 0, 0).Child(0, 0, 0), noBCs)

	assert.False(t, tree.Derefine(parent, noBCs),
		"group with an internal child must not collapse")
}

func TestDerefineRefusesAgainstFinerNeighbor(t *testing.T) {
	tree, err := NewTree(4, 4, 1, 2, 2)
	require.NoError(t, err)
	// level-4 blocks right at the interface between root blocks (0,0) and
	// (1,0); collapsing (1,0) to level 2 would face them across two levels
	tree.Insert(LogicalLocation{Level: 4, LX1: 3, LX2: 0}, noBCs)

	parent := LogicalLocation{Level: 2, LX1: 1, LX2: 0}
	n := tree.Find(parent)
	require.NotNil(t, n)
	require.False(t, n.Leaf())
	for _, c := range n.Children() {
		require.True(t, c.Leaf())
	}
	assert.False(t, tree.Derefine(parent, noBCs))

	// a group away from the fine interface still collapses
	far := LogicalLocation{Level: 2, LX1: 3, LX2: 3}
	tree.Insert(far.Child(0, 0, 0), noBCs)
	assert.True(t, tree.Derefine(far, noBCs))
}
