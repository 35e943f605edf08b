package mesh

// NGhost is the ghost-cell width on every block face. Two layers are
// required for prolongation at fine/coarse interfaces.
const NGhost = 2

// Block is one unit of the decomposed domain: a logically Cartesian patch
// of cells at a single refinement level, owned by exactly one rank.
type Block struct {
	GID int // global id, the Z-order position among all leaves
	LID int // local id on the owning rank

	Loc  LogicalLocation
	Size RegionSize
	BCs  [6]BCFlag
	Cost float64

	// Active-zone index bounds. Cells [IS..IE] x [JS..JE] x [KS..KE] are
	// interior; the surrounding NGhost layers belong to neighbors.
	IS, IE, JS, JE, KS, KE int

	Neighbors []NeighborBlock
	NBLevel   [3][3][3]int // refinement level of each surrounding sector, -1 if absent

	NewBlockDT float64
	TS         TaskState

	State FieldState
	BVals BoundaryValues

	mesh *Mesh
}

// newBlock derives a block's physical extent and face boundary flags from
// its logical location, then asks the physics for its state and boundary
// machinery.
func newBlock(m *Mesh, gid, lid int, loc LogicalLocation) (*Block, error) {
	b := &Block{
		GID:  gid,
		LID:  lid,
		Loc:  loc,
		Cost: 1.0,
		mesh: m,
	}
	m.setBlockSizeAndBoundaries(loc, &b.Size, &b.BCs)

	b.IS = NGhost
	b.IE = b.IS + b.Size.NX1 - 1
	if b.Size.NX2 > 1 {
		b.JS = NGhost
		b.JE = b.JS + b.Size.NX2 - 1
	}
	if b.Size.NX3 > 1 {
		b.KS = NGhost
		b.KE = b.KS + b.Size.NX3 - 1
	}

	if m.Phys != nil {
		st, err := m.Phys.NewState(b, m.Pin)
		if err != nil {
			return nil, err
		}
		b.State = st
		b.BVals = m.Phys.NewBoundaryValues(b)
	}
	return b, nil
}

// Dim returns the block's dimensionality, matching the mesh it belongs to.
func (b *Block) Dim() int {
	d := 1
	if b.Size.NX2 > 1 {
		d = 2
	}
	if b.Size.NX3 > 1 {
		d = 3
	}
	return d
}

// NCells counts the block's active zones.
func (b *Block) NCells() int64 {
	return int64(b.Size.NX1) * int64(b.Size.NX2) * int64(b.Size.NX3)
}

// Mesh returns the owning mesh.
func (b *Block) Mesh() *Mesh { return b.mesh }
