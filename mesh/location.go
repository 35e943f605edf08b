// Package mesh implements the block-structured adaptive mesh: the oct-tree
// spatial index over fixed-size grid blocks, the cost-based domain
// decomposition across ranks, neighbor discovery between blocks of differing
// refinement levels, and the global refine/derefine cycle.
package mesh

// LogicalLocation is the integer address of a block in the tree. A block at
// level L occupies a cell of size 1/2^L of the root domain on each axis, so
// refining a block doubles its coordinates and adds one level. For a valid
// leaf every coordinate lies in [0, nrbx_i << (Level-rootLevel)).
type LogicalLocation struct {
	Level         int
	LX1, LX2, LX3 int64
}

// Greater orders locations level-major with finer levels first, then by
// coordinates within one level. Used to apply coarsening in a deterministic
// order, finest groups before coarser ones.
func Greater(a, b LogicalLocation) bool {
	if a.Level != b.Level {
		return a.Level > b.Level
	}
	if a.LX1 != b.LX1 {
		return a.LX1 > b.LX1
	}
	if a.LX2 != b.LX2 {
		return a.LX2 > b.LX2
	}
	return a.LX3 > b.LX3
}

// Parent returns the location of the block one level coarser that contains
// this one.
func (l LogicalLocation) Parent() LogicalLocation {
	return LogicalLocation{
		Level: l.Level - 1,
		LX1:   l.LX1 >> 1,
		LX2:   l.LX2 >> 1,
		LX3:   l.LX3 >> 1,
	}
}

// Child returns the location of the child in octant (i,j,k), each in {0,1}.
func (l LogicalLocation) Child(i, j, k int64) LogicalLocation {
	return LogicalLocation{
		Level: l.Level + 1,
		LX1:   l.LX1<<1 + i,
		LX2:   l.LX2<<1 + j,
		LX3:   l.LX3<<1 + k,
	}
}

// Octant returns the low bit of each coordinate: the block's position within
// its sibling group.
func (l LogicalLocation) Octant() (fx1, fx2, fx3 int) {
	return int(l.LX1 & 1), int(l.LX2 & 1), int(l.LX3 & 1)
}

// IsGroupAnchor reports whether this location is the all-even member of its
// sibling group, the representative used when testing derefinement
// eligibility.
func (l LogicalLocation) IsGroupAnchor() bool {
	return l.LX1&1 == 0 && l.LX2&1 == 0 && l.LX3&1 == 0
}
