package mesh

import "fmt"

// TreeNode is one node of the block tree. A leaf owns exactly one block; an
// internal node owns up to 2^dim children. Children are held by octant as
// [z][y][x]; a nil slot means that octant lies outside the root grid.
type TreeNode struct {
	Loc   LogicalLocation
	GID   int // global block id, assigned during leaf enumeration; -1 otherwise
	leaf  bool
	child [2][2][2]*TreeNode
}

// Leaf reports whether this node owns a block.
func (n *TreeNode) Leaf() bool { return n.leaf }

// GetLeaf returns the child in octant (ox,oy,oz). With proper nesting the
// returned child of an internal node at a neighbor query's target level is
// always a leaf.
func (n *TreeNode) GetLeaf(ox, oy, oz int) *TreeNode {
	return n.child[oz][oy][ox]
}

// Tree is the oct-tree spatial index over the mesh blocks. The root grid
// spans nrbx1 x nrbx2 x nrbx3 blocks at rootLevel; levels below rootLevel
// only partially cover the unit cube when the root block counts are not
// powers of two.
type Tree struct {
	root                *TreeNode
	nrbx1, nrbx2, nrbx3 int64
	rootLevel           int
	dim                 int
}

// NewTree builds the tree for an nrbx1 x nrbx2 x nrbx3 root grid of blocks
// at rootLevel. Every root block becomes a leaf.
func NewTree(nrbx1, nrbx2, nrbx3 int64, rootLevel, dim int) (*Tree, error) {
	if nrbx1 < 1 || nrbx2 < 1 || nrbx3 < 1 {
		return nil, configErrorf("root grid dimensions must be positive, got %dx%dx%d",
			nrbx1, nrbx2, nrbx3)
	}
	if dim < 1 || dim > 3 {
		return nil, configErrorf("dimensionality must be 1, 2 or 3, got %d", dim)
	}
	t := &Tree{
		root:      &TreeNode{GID: -1, leaf: true},
		nrbx1:     nrbx1,
		nrbx2:     nrbx2,
		nrbx3:     nrbx3,
		rootLevel: rootLevel,
		dim:       dim,
	}
	t.createRootGrid(t.root)
	return t, nil
}

func (t *Tree) RootLevel() int { return t.rootLevel }

// createRootGrid recursively subdivides down to rootLevel, creating only the
// octants whose coordinate range intersects the root grid.
func (t *Tree) createRootGrid(n *TreeNode) {
	if n.Loc.Level == t.rootLevel {
		return
	}
	sh := uint(t.rootLevel - n.Loc.Level - 1)
	for k := int64(0); k <= 1; k++ {
		if (n.Loc.LX3<<1+k)<<sh >= t.nrbx3 {
			continue
		}
		for j := int64(0); j <= 1; j++ {
			if (n.Loc.LX2<<1+j)<<sh >= t.nrbx2 {
				continue
			}
			for i := int64(0); i <= 1; i++ {
				if (n.Loc.LX1<<1+i)<<sh >= t.nrbx1 {
					continue
				}
				n.leaf = false
				n.GID = -1
				c := &TreeNode{Loc: n.Loc.Child(i, j, k), GID: -1, leaf: true}
				n.child[k][j][i] = c
				t.createRootGrid(c)
			}
		}
	}
}

// Insert descends toward loc, splitting any coarser leaf found on the path,
// until a leaf at loc exists. Splitting enforces proper nesting by also
// refining any neighbor more than one level coarser. Inserting an existing
// leaf is a no-op.
func (t *Tree) Insert(loc LogicalLocation, bcs [6]BCFlag) {
	n := t.root
	for n.Loc.Level < loc.Level {
		if n.leaf {
			t.splitLeaf(n, bcs)
		}
		sh := uint(loc.Level - n.Loc.Level - 1)
		next := n.child[(loc.LX3>>sh)&1][(loc.LX2>>sh)&1][(loc.LX1>>sh)&1]
		if next == nil {
			panic(fmt.Sprintf("block location %v outside the root grid", loc))
		}
		n = next
	}
}

// InsertWithoutRefine creates only the single path of nodes leading to loc,
// without splitting sibling octants or enforcing nesting. Used when
// reconstructing a tree from a complete leaf list, where every leaf will be
// inserted anyway.
func (t *Tree) InsertWithoutRefine(loc LogicalLocation) {
	n := t.root
	for n.Loc.Level < loc.Level {
		sh := uint(loc.Level - n.Loc.Level - 1)
		i, j, k := (loc.LX1>>sh)&1, (loc.LX2>>sh)&1, (loc.LX3>>sh)&1
		if n.child[k][j][i] == nil {
			n.leaf = false
			n.GID = -1
			n.child[k][j][i] = &TreeNode{Loc: n.Loc.Child(i, j, k), GID: -1, leaf: true}
		}
		n = n.child[k][j][i]
	}
}

// splitLeaf turns a leaf into an internal node with 2^dim leaf children and
// then refines any neighbor left more than one level coarser, preserving
// proper nesting.
func (t *Tree) splitLeaf(n *TreeNode, bcs [6]BCFlag) {
	if !n.leaf {
		return
	}
	kmax, jmax := int64(0), int64(0)
	if t.dim >= 2 {
		jmax = 1
	}
	if t.dim == 3 {
		kmax = 1
	}
	for k := int64(0); k <= kmax; k++ {
		for j := int64(0); j <= jmax; j++ {
			for i := int64(0); i <= 1; i++ {
				n.child[k][j][i] = &TreeNode{Loc: n.Loc.Child(i, j, k), GID: -1, leaf: true}
			}
		}
	}
	n.leaf = false
	n.GID = -1

	// The new children sit one level below n; every neighbor of n must now
	// be at least at n's level.
	ll := n.Loc.Level
	nx1max := t.nrbx1 << uint(ll-t.rootLevel)
	nx2max := t.nrbx2 << uint(ll-t.rootLevel)
	nx3max := t.nrbx3 << uint(ll-t.rootLevel)
	o3min, o3max := int64(0), int64(0)
	o2min, o2max := int64(0), int64(0)
	if t.dim >= 2 {
		o2min, o2max = -1, 1
	}
	if t.dim == 3 {
		o3min, o3max = -1, 1
	}
	for oz := o3min; oz <= o3max; oz++ {
		lx3 := n.Loc.LX3 + oz
		if lx3 < 0 {
			if bcs[InnerX3] != BCPeriodic {
				continue
			}
			lx3 = nx3max - 1
		} else if lx3 >= nx3max {
			if bcs[OuterX3] != BCPeriodic {
				continue
			}
			lx3 = 0
		}
		for oy := o2min; oy <= o2max; oy++ {
			lx2 := n.Loc.LX2 + oy
			if lx2 < 0 {
				if bcs[InnerX2] != BCPeriodic {
					continue
				}
				lx2 = nx2max - 1
			} else if lx2 >= nx2max {
				if bcs[OuterX2] != BCPeriodic {
					continue
				}
				lx2 = 0
			}
			for ox := int64(-1); ox <= 1; ox++ {
				if ox == 0 && oy == 0 && oz == 0 {
					continue
				}
				lx1 := n.Loc.LX1 + ox
				if lx1 < 0 {
					if bcs[InnerX1] != BCPeriodic {
						continue
					}
					lx1 = nx1max - 1
				} else if lx1 >= nx1max {
					if bcs[OuterX1] != BCPeriodic {
						continue
					}
					lx1 = 0
				}
				t.ensureLevel(LogicalLocation{Level: ll, LX1: lx1, LX2: lx2, LX3: lx3}, bcs)
			}
		}
	}
}

// ensureLevel refines coarser leaves on the path toward loc until a node at
// loc's level exists there. Recursion through splitLeaf terminates because
// each nested split works on a strictly coarser leaf.
func (t *Tree) ensureLevel(loc LogicalLocation, bcs [6]BCFlag) {
	n := t.root
	for n.Loc.Level < loc.Level {
		if n.leaf {
			t.splitLeaf(n, bcs)
		}
		sh := uint(loc.Level - n.Loc.Level - 1)
		n = n.child[(loc.LX3>>sh)&1][(loc.LX2>>sh)&1][(loc.LX1>>sh)&1]
		if n == nil {
			return // outside the root grid
		}
	}
}

// Find returns the node at exactly loc, or nil if the tree does not resolve
// that location.
func (t *Tree) Find(loc LogicalLocation) *TreeNode {
	n := t.root
	for n.Loc.Level < loc.Level {
		if n.leaf {
			return nil
		}
		sh := uint(loc.Level - n.Loc.Level - 1)
		n = n.child[(loc.LX3>>sh)&1][(loc.LX2>>sh)&1][(loc.LX1>>sh)&1]
		if n == nil {
			return nil
		}
	}
	return n
}

// Derefine collapses the sibling group under the internal node at parent
// back into a single leaf. It refuses (returning false) when the node is
// missing, is not the parent of a pure leaf group, or when collapsing would
// put a neighbor two levels finer next to the new leaf.
func (t *Tree) Derefine(parent LogicalLocation, bcs [6]BCFlag) bool {
	n := t.Find(parent)
	if n == nil || n.leaf {
		return false
	}
	for _, c := range n.Children() {
		if !c.leaf {
			return false
		}
	}

	o3, o2 := 0, 0
	if t.dim >= 2 {
		o2 = 1
	}
	if t.dim == 3 {
		o3 = 1
	}
	for oz := -o3; oz <= o3; oz++ {
		for oy := -o2; oy <= o2; oy++ {
			for ox := -1; ox <= 1; ox++ {
				if ox == 0 && oy == 0 && oz == 0 {
					continue
				}
				nb := t.FindNeighbor(parent, ox, oy, oz, bcs)
				if nb == nil || nb.leaf {
					continue
				}
				// nb holds blocks one level finer than the collapsed leaf;
				// any interface-facing grandchild would be two levels finer.
				if t.interfaceChildInternal(nb, ox, oy, oz) {
					return false
				}
			}
		}
	}

	n.child = [2][2][2]*TreeNode{}
	n.leaf = true
	n.GID = -1
	return true
}

// interfaceChildInternal reports whether any child of nb facing back along
// (-ox,-oy,-oz) is itself internal.
func (t *Tree) interfaceChildInternal(nb *TreeNode, ox, oy, oz int) bool {
	face := func(o, f int) bool {
		// child octant f faces the querying block when the offset points
		// back at it, or when the axis is perpendicular to the offset
		switch o {
		case 1:
			return f == 0
		case -1:
			return f == 1
		}
		return true
	}
	for k := 0; k <= 1; k++ {
		for j := 0; j <= 1; j++ {
			for i := 0; i <= 1; i++ {
				c := nb.child[k][j][i]
				if c == nil || c.leaf {
					continue
				}
				if face(ox, i) && face(oy, j) && face(oz, k) {
					return true
				}
			}
		}
	}
	return false
}

// Children returns the non-nil children in canonical (z,y,x) octant order.
func (n *TreeNode) Children() []*TreeNode {
	var out []*TreeNode
	for k := 0; k <= 1; k++ {
		for j := 0; j <= 1; j++ {
			for i := 0; i <= 1; i++ {
				if c := n.child[k][j][i]; c != nil {
					out = append(out, c)
				}
			}
		}
	}
	return out
}

// CountLeaves returns the number of leaves, i.e. the total block count.
func (t *Tree) CountLeaves() (nb int) {
	var walk func(n *TreeNode)
	walk = func(n *TreeNode) {
		if n.leaf {
			nb++
			return
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(t.root)
	return nb
}

// EnumerateLeaves traverses the tree in the fixed canonical order and
// assigns sequential global ids 0..N-1 to the leaves. The returned location
// list is the canonical block numbering: index == global id. Repeated calls
// on an unmodified tree yield identical results.
func (t *Tree) EnumerateLeaves() []LogicalLocation {
	list := make([]LogicalLocation, 0, t.CountLeaves())
	var walk func(n *TreeNode)
	walk = func(n *TreeNode) {
		if n.leaf {
			n.GID = len(list)
			list = append(list, n.Loc)
			return
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(t.root)
	return list
}

// FindNeighbor returns the tree node adjacent to loc in direction
// (ox1,ox2,ox3), applying the per-axis boundary policy when the candidate
// coordinate leaves the domain: periodic boundaries wrap, every other policy
// yields no neighbor. The result is a leaf at loc's level (same level), a
// leaf at a lower level (coarser), or an internal node at loc's level whose
// children are the finer neighbors; nil means no neighbor exists.
func (t *Tree) FindNeighbor(loc LogicalLocation, ox1, ox2, ox3 int, bcs [6]BCFlag) *TreeNode {
	ll := loc.Level
	sh := uint(ll - t.rootLevel)
	nx1max := t.nrbx1 << sh
	nx2max := t.nrbx2 << sh
	nx3max := t.nrbx3 << sh

	lx1 := loc.LX1 + int64(ox1)
	lx2 := loc.LX2 + int64(ox2)
	lx3 := loc.LX3 + int64(ox3)
	if lx1 < 0 {
		if bcs[InnerX1] != BCPeriodic {
			return nil
		}
		lx1 = nx1max - 1
	} else if lx1 >= nx1max {
		if bcs[OuterX1] != BCPeriodic {
			return nil
		}
		lx1 = 0
	}
	if lx2 < 0 {
		if bcs[InnerX2] != BCPeriodic {
			return nil
		}
		lx2 = nx2max - 1
	} else if lx2 >= nx2max {
		if bcs[OuterX2] != BCPeriodic {
			return nil
		}
		lx2 = 0
	}
	if lx3 < 0 {
		if bcs[InnerX3] != BCPeriodic {
			return nil
		}
		lx3 = nx3max - 1
	} else if lx3 >= nx3max {
		if bcs[OuterX3] != BCPeriodic {
			return nil
		}
		lx3 = 0
	}

	n := t.root
	for n.Loc.Level < ll {
		if n.leaf {
			return n // coarser neighbor
		}
		s := uint(ll - n.Loc.Level - 1)
		n = n.child[(lx3>>s)&1][(lx2>>s)&1][(lx1>>s)&1]
		if n == nil {
			return nil
		}
	}
	return n
}
