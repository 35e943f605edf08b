package mesh

import (
	"math"
	"strings"

	"github.com/notargets/gamr/InputParameters"
	"github.com/notargets/gamr/parallel"
)

// Mesh is the root object of the decomposed domain on one rank. Every rank
// of the cohort constructs its own Mesh from the same input; the global
// state (tree, block list, rank assignment) is replicated, while Blocks
// holds only the blocks this rank owns.
type Mesh struct {
	Rank parallel.Rank
	Comm *parallel.Comm
	Pin  *InputParameters.ParameterInput
	Phys Physics

	Size RegionSize
	BCs  [6]BCFlag
	Dim  int

	Multilevel bool
	Adaptive   bool
	FaceOnly   bool

	Time   float64
	DT     float64
	CFL    float64
	TLim   float64
	NCycle int
	NLim   int

	nrbx1, nrbx2, nrbx3          int64
	blockNX1, blockNX2, blockNX3 int
	rootLevel, maxLevel          int
	currentLevel                 int

	tree     *Tree
	bufTable *BufferTable

	NBTotal  int
	loclist  []LogicalLocation
	ranklist []int
	nslist   []int
	nblist   []int
	costlist []float64

	Blocks []*Block
}

func boundaryFlag(name string) (BCFlag, error) {
	switch strings.ToLower(name) {
	case "none":
		return BCNone, nil
	case "reflecting":
		return BCReflecting, nil
	case "outflow":
		return BCOutflow, nil
	case "user":
		return BCUser, nil
	case "periodic":
		return BCPeriodic, nil
	case "polar":
		return BCPolar, nil
	}
	return BCNone, configErrorf("unknown boundary condition %q", name)
}

// NewMesh builds the mesh from the input parameters: validates the domain
// and block geometry, constructs the root grid, applies any static
// refinement regions, numbers the blocks, balances them across the cohort
// and instantiates this rank's blocks with their neighbor descriptors.
// Construction is deterministic, so every rank arrives at the same global
// state without communicating.
func NewMesh(pin *InputParameters.ParameterInput, phys Physics,
	rank parallel.Rank, comm *parallel.Comm) (*Mesh, error) {
	m := &Mesh{
		Rank: rank,
		Comm: comm,
		Pin:  pin,
		Phys: phys,
		DT:   math.MaxFloat64,
	}

	m.CFL = pin.GetOrAddReal("time", "cfl_number", 0.3)
	m.TLim = pin.GetOrAddReal("time", "tlim", 1.0)
	m.NLim = pin.GetOrAddInteger("time", "nlim", -1)
	if m.CFL <= 0.0 || m.CFL > 1.0 {
		return nil, configErrorf("time/cfl_number must be in (0,1], got %g", m.CFL)
	}

	if err := m.readSize(pin); err != nil {
		return nil, err
	}
	if err := m.readBoundaries(pin); err != nil {
		return nil, err
	}
	if err := m.readBlockSize(pin); err != nil {
		return nil, err
	}

	m.nrbx1 = int64(m.Size.NX1 / m.blockNX1)
	m.nrbx2 = int64(m.Size.NX2 / m.blockNX2)
	m.nrbx3 = int64(m.Size.NX3 / m.blockNX3)

	// The smallest level whose uniform grid covers the widest root axis.
	nbmax := m.nrbx1
	if m.nrbx2 > nbmax {
		nbmax = m.nrbx2
	}
	if m.nrbx3 > nbmax {
		nbmax = m.nrbx3
	}
	for m.rootLevel = 0; (int64(1) << uint(m.rootLevel)) < nbmax; m.rootLevel++ {
	}
	m.currentLevel = m.rootLevel

	if err := m.readRefinement(pin); err != nil {
		return nil, err
	}

	var err error
	m.tree, err = NewTree(m.nrbx1, m.nrbx2, m.nrbx3, m.rootLevel, m.Dim)
	if err != nil {
		return nil, err
	}
	if m.Multilevel {
		if err = m.applyRefinementRegions(pin.Regions); err != nil {
			return nil, err
		}
	} else if len(pin.Regions) > 0 {
		return nil, configErrorf(
			"refinement regions given but mesh/refinement is not static or adaptive")
	}

	m.loclist = m.tree.EnumerateLeaves()
	m.NBTotal = len(m.loclist)
	for _, loc := range m.loclist {
		if loc.Level > m.currentLevel {
			m.currentLevel = loc.Level
		}
	}

	m.costlist = make([]float64, m.NBTotal)
	for i := range m.costlist {
		m.costlist[i] = 1.0
	}
	m.ranklist, m.nslist, m.nblist, err = LoadBalance(m.costlist, rank.NRanks)
	if err != nil {
		return nil, err
	}
	m.warnUnevenBalance(rank.NRanks)

	m.bufTable = NewBufferTable(m.Dim, m.Multilevel, m.FaceOnly)
	if err = m.buildLocalBlocks(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mesh) readSize(pin *InputParameters.ParameterInput) error {
	var err error
	if m.Size.NX1, err = pin.GetInteger("mesh", "nx1"); err != nil {
		return err
	}
	if m.Size.NX2, err = pin.GetInteger("mesh", "nx2"); err != nil {
		return err
	}
	if m.Size.NX3, err = pin.GetInteger("mesh", "nx3"); err != nil {
		return err
	}
	if m.Size.X1Min, err = pin.GetReal("mesh", "x1min"); err != nil {
		return err
	}
	if m.Size.X1Max, err = pin.GetReal("mesh", "x1max"); err != nil {
		return err
	}
	m.Size.X2Min = pin.GetOrAddReal("mesh", "x2min", 0.0)
	m.Size.X2Max = pin.GetOrAddReal("mesh", "x2max", 1.0)
	m.Size.X3Min = pin.GetOrAddReal("mesh", "x3min", 0.0)
	m.Size.X3Max = pin.GetOrAddReal("mesh", "x3max", 1.0)
	m.Size.X1Rat = pin.GetOrAddReal("mesh", "x1rat", 1.0)
	m.Size.X2Rat = pin.GetOrAddReal("mesh", "x2rat", 1.0)
	m.Size.X3Rat = pin.GetOrAddReal("mesh", "x3rat", 1.0)

	if m.Size.NX1 < 4 {
		return configErrorf("mesh nx1 must be at least 4, got %d", m.Size.NX1)
	}
	if m.Size.NX2 != 1 && m.Size.NX2 < 4 {
		return configErrorf("mesh nx2 must be 1 or at least 4, got %d", m.Size.NX2)
	}
	if m.Size.NX3 != 1 && m.Size.NX3 < 4 {
		return configErrorf("mesh nx3 must be 1 or at least 4, got %d", m.Size.NX3)
	}
	if m.Size.NX2 == 1 && m.Size.NX3 > 1 {
		return configErrorf("a 2D mesh must lie in the x1-x2 plane, nx2=1 with nx3=%d",
			m.Size.NX3)
	}
	if m.Size.X1Max <= m.Size.X1Min {
		return configErrorf("domain x1max %g must exceed x1min %g",
			m.Size.X1Max, m.Size.X1Min)
	}
	if m.Size.X2Max <= m.Size.X2Min {
		return configErrorf("domain x2max %g must exceed x2min %g",
			m.Size.X2Max, m.Size.X2Min)
	}
	if m.Size.X3Max <= m.Size.X3Min {
		return configErrorf("domain x3max %g must exceed x3min %g",
			m.Size.X3Max, m.Size.X3Min)
	}

	for axis, rat := range [3]float64{m.Size.X1Rat, m.Size.X2Rat, m.Size.X3Rat} {
		if rat < 0.9 || rat > 1.1 {
			return configErrorf("mesh x%drat %g outside the supported range [0.9,1.1]",
				axis+1, rat)
		}
	}

	m.Dim = 1
	if m.Size.NX2 > 1 {
		m.Dim = 2
	}
	if m.Size.NX3 > 1 {
		m.Dim = 3
	}
	return nil
}

func (m *Mesh) readBoundaries(pin *InputParameters.ParameterInput) error {
	names := [6]string{"ix1_bc", "ox1_bc", "ix2_bc", "ox2_bc", "ix3_bc", "ox3_bc"}
	for f, name := range names {
		s := pin.GetOrAddString("mesh", name, "none")
		flag, err := boundaryFlag(s)
		if err != nil {
			return err
		}
		m.BCs[f] = flag
	}
	for f := 0; f < 6; f += 2 {
		in, out := m.BCs[f], m.BCs[f+1]
		if (in == BCPeriodic) != (out == BCPeriodic) {
			return configErrorf(
				"periodic boundaries must be set on both sides of an axis (%s/%s)",
				names[f], names[f+1])
		}
	}
	return nil
}

func (m *Mesh) readBlockSize(pin *InputParameters.ParameterInput) error {
	m.blockNX1 = pin.GetOrAddInteger("meshblock", "nx1", m.Size.NX1)
	m.blockNX2 = pin.GetOrAddInteger("meshblock", "nx2", m.Size.NX2)
	m.blockNX3 = pin.GetOrAddInteger("meshblock", "nx3", m.Size.NX3)

	if m.blockNX1 < 4 {
		return configErrorf("block nx1 must be at least 4, got %d", m.blockNX1)
	}
	if m.Size.NX2 == 1 && m.blockNX2 != 1 {
		return configErrorf("block nx2 must be 1 on a 1D mesh, got %d", m.blockNX2)
	}
	if m.Size.NX2 > 1 && m.blockNX2 < 4 {
		return configErrorf("block nx2 must be at least 4, got %d", m.blockNX2)
	}
	if m.Size.NX3 == 1 && m.blockNX3 != 1 {
		return configErrorf("block nx3 must be 1 on a non-3D mesh, got %d", m.blockNX3)
	}
	if m.Size.NX3 > 1 && m.blockNX3 < 4 {
		return configErrorf("block nx3 must be at least 4, got %d", m.blockNX3)
	}
	if m.Size.NX1%m.blockNX1 != 0 || m.Size.NX2%m.blockNX2 != 0 ||
		m.Size.NX3%m.blockNX3 != 0 {
		return configErrorf(
			"the mesh (%dx%dx%d) must be divisible into whole blocks of %dx%dx%d",
			m.Size.NX1, m.Size.NX2, m.Size.NX3,
			m.blockNX1, m.blockNX2, m.blockNX3)
	}
	return nil
}

func (m *Mesh) readRefinement(pin *InputParameters.ParameterInput) error {
	ref := pin.GetOrAddString("mesh", "refinement", "none")
	switch strings.ToLower(ref) {
	case "none":
	case "static":
		m.Multilevel = true
	case "adaptive":
		m.Multilevel = true
		m.Adaptive = true
	default:
		return configErrorf("mesh/refinement must be none, static or adaptive, got %q", ref)
	}
	m.FaceOnly = pin.GetOrAddString("mesh", "face_only", "false") == "true"

	numlevel := pin.GetOrAddInteger("mesh", "numlevel", 1)
	if numlevel < 1 {
		return configErrorf("mesh/numlevel must be at least 1, got %d", numlevel)
	}
	m.maxLevel = m.rootLevel + numlevel - 1
	// Logical coordinates are int64; stay clear of the sign bit.
	if m.maxLevel > 62 {
		return configErrorf("refinement level %d exceeds the logical coordinate range",
			m.maxLevel)
	}
	if m.Multilevel {
		// restriction pairs cells, so refined blocks need even extents
		if m.blockNX1%2 == 1 || (m.blockNX2 > 1 && m.blockNX2%2 == 1) ||
			(m.blockNX3 > 1 && m.blockNX3%2 == 1) {
			return configErrorf(
				"block size %dx%dx%d must be even on every active axis when refinement is enabled",
				m.blockNX1, m.blockNX2, m.blockNX3)
		}
	}
	return nil
}

// applyRefinementRegions pre-refines the tree so every requested region is
// fully covered by blocks at its requested level. Logical bounds are
// rounded outward to even/odd pairs so complete sibling groups are created.
func (m *Mesh) applyRefinementRegions(regions []InputParameters.RefinementRegion) error {
	for _, reg := range regions {
		lev := m.rootLevel + reg.Level
		if reg.Level < 1 || lev > m.maxLevel {
			return configErrorf(
				"refinement region level %d outside the allowed range 1..%d",
				reg.Level, m.maxLevel-m.rootLevel)
		}
		if reg.X1Min < m.Size.X1Min || reg.X1Max > m.Size.X1Max ||
			reg.X1Min >= reg.X1Max {
			return configErrorf("refinement region x1 range [%g,%g] invalid",
				reg.X1Min, reg.X1Max)
		}
		if m.Dim >= 2 && (reg.X2Min < m.Size.X2Min || reg.X2Max > m.Size.X2Max ||
			reg.X2Min >= reg.X2Max) {
			return configErrorf("refinement region x2 range [%g,%g] invalid",
				reg.X2Min, reg.X2Max)
		}
		if m.Dim == 3 && (reg.X3Min < m.Size.X3Min || reg.X3Max > m.Size.X3Max ||
			reg.X3Min >= reg.X3Max) {
			return configErrorf("refinement region x3 range [%g,%g] invalid",
				reg.X3Min, reg.X3Max)
		}

		sh := uint(lev - m.rootLevel)
		lx1min, lx1max := m.logicalRange(reg.X1Min, reg.X1Max,
			MeshGeneratorX1, m.nrbx1<<sh)
		lx2min, lx2max := int64(0), int64(0)
		lx3min, lx3max := int64(0), int64(0)
		if m.Dim >= 2 {
			lx2min, lx2max = m.logicalRange(reg.X2Min, reg.X2Max,
				MeshGeneratorX2, m.nrbx2<<sh)
		}
		if m.Dim == 3 {
			lx3min, lx3max = m.logicalRange(reg.X3Min, reg.X3Max,
				MeshGeneratorX3, m.nrbx3<<sh)
		}
		for k := lx3min; k <= lx3max; k++ {
			for j := lx2min; j <= lx2max; j++ {
				for i := lx1min; i <= lx1max; i++ {
					m.tree.Insert(LogicalLocation{Level: lev, LX1: i, LX2: j, LX3: k},
						m.BCs)
				}
			}
		}
	}
	return nil
}

// logicalRange maps a physical interval to block indices at one level,
// rounded outward so the range starts even and ends odd.
func (m *Mesh) logicalRange(xmin, xmax float64,
	gen func(float64, RegionSize) float64, nmax int64) (lmin, lmax int64) {
	for lmin = 0; lmin < nmax-1; lmin++ {
		if gen(float64(lmin+1)/float64(nmax), m.Size) > xmin {
			break
		}
	}
	for lmax = lmin; lmax < nmax-1; lmax++ {
		if gen(float64(lmax+1)/float64(nmax), m.Size) >= xmax {
			break
		}
	}
	if lmin%2 == 1 {
		lmin--
	}
	if lmax%2 == 0 {
		lmax++
	}
	return lmin, lmax
}

// setBlockSizeAndBoundaries derives a block's physical extent and face
// policies from its logical location. Domain-edge faces inherit the mesh
// boundary flags; interior faces are marked BCInterior.
func (m *Mesh) setBlockSizeAndBoundaries(loc LogicalLocation,
	size *RegionSize, bcs *[6]BCFlag) {
	sh := uint(loc.Level - m.rootLevel)
	size.NX1 = m.blockNX1
	size.NX2 = m.blockNX2
	size.NX3 = m.blockNX3
	size.X1Rat = m.Size.X1Rat
	size.X2Rat = m.Size.X2Rat
	size.X3Rat = m.Size.X3Rat

	axis := func(lx, nrb int64, inner, outer int,
		gen func(float64, RegionSize) float64, xmin, xmax float64) (lo, hi float64) {
		n := nrb << sh
		if lx == 0 {
			lo = xmin
			bcs[inner] = m.BCs[inner]
		} else {
			lo = gen(float64(lx)/float64(n), m.Size)
			bcs[inner] = BCInterior
		}
		if lx == n-1 {
			hi = xmax
			bcs[outer] = m.BCs[outer]
		} else {
			hi = gen(float64(lx+1)/float64(n), m.Size)
			bcs[outer] = BCInterior
		}
		return lo, hi
	}

	size.X1Min, size.X1Max = axis(loc.LX1, m.nrbx1, InnerX1, OuterX1,
		MeshGeneratorX1, m.Size.X1Min, m.Size.X1Max)
	if m.Dim >= 2 {
		size.X2Min, size.X2Max = axis(loc.LX2, m.nrbx2, InnerX2, OuterX2,
			MeshGeneratorX2, m.Size.X2Min, m.Size.X2Max)
	} else {
		size.X2Min, size.X2Max = m.Size.X2Min, m.Size.X2Max
		bcs[InnerX2], bcs[OuterX2] = m.BCs[InnerX2], m.BCs[OuterX2]
	}
	if m.Dim == 3 {
		size.X3Min, size.X3Max = axis(loc.LX3, m.nrbx3, InnerX3, OuterX3,
			MeshGeneratorX3, m.Size.X3Min, m.Size.X3Max)
	} else {
		size.X3Min, size.X3Max = m.Size.X3Min, m.Size.X3Max
		bcs[InnerX3], bcs[OuterX3] = m.BCs[InnerX3], m.BCs[OuterX3]
	}
}

// buildLocalBlocks instantiates this rank's contiguous gid range and
// resolves every block's neighbors.
func (m *Mesh) buildLocalBlocks() error {
	ns := m.nslist[m.Rank.ID]
	nb := m.nblist[m.Rank.ID]
	m.Blocks = make([]*Block, 0, nb)
	for gid := ns; gid < ns+nb; gid++ {
		b, err := newBlock(m, gid, gid-ns, m.loclist[gid])
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

// Redistribute recomputes the rank assignment for a different cohort size
// without touching this rank's blocks. It exists for structure inspection
// (what would N ranks own); the local block list keeps its original
// ownership and must not be stepped afterwards.
func (m *Mesh) Redistribute(nranks int) error {
	rl, ns, nb, err := LoadBalance(m.costlist, nranks)
	if err != nil {
		return err
	}
	m.ranklist, m.nslist, m.nblist = rl, ns, nb
	m.warnUnevenBalance(nranks)
	return nil
}

// FindBlock returns the local block with the given global id, or nil when
// another rank owns it.
func (m *Mesh) FindBlock(gid int) *Block {
	ns := m.nslist[m.Rank.ID]
	if gid < ns || gid >= ns+m.nblist[m.Rank.ID] {
		return nil
	}
	return m.Blocks[gid-ns]
}

// Tree exposes the spatial index, mainly for structure reporting and tests.
func (m *Mesh) Tree() *Tree { return m.tree }

func (m *Mesh) RootLevel() int    { return m.rootLevel }
func (m *Mesh) MaxLevel() int     { return m.maxLevel }
func (m *Mesh) CurrentLevel() int { return m.currentLevel }

// LocList returns the canonical location of every block, indexed by gid.
func (m *Mesh) LocList() []LogicalLocation { return m.loclist }

// RankList returns the owning rank of every block, indexed by gid.
func (m *Mesh) RankList() []int { return m.ranklist }

// GetTotalCells counts the active zones over the whole mesh. All blocks
// share one resolution, so this is a multiplication, not a reduction.
func (m *Mesh) GetTotalCells() int64 {
	per := int64(m.blockNX1) * int64(m.blockNX2) * int64(m.blockNX3)
	return int64(m.NBTotal) * per
}

// Initialize runs problem setup and the first ghost-zone exchange.
// resFlag 0 is a fresh start (the problem generator fills each block),
// 1 is a restart (payloads were already read), 2 re-initializes after a
// refinement pass.
func (m *Mesh) Initialize(resFlag int) error {
	if resFlag == 0 && m.Phys != nil {
		for _, b := range m.Blocks {
			if err := m.Phys.ProblemGenerator(b); err != nil {
				return err
			}
		}
	}
	if m.Phys == nil {
		return nil
	}
	for _, b := range m.Blocks {
		b.BVals.StartReceiving()
	}
	for _, b := range m.Blocks {
		b.BVals.SendBoundaryBuffers()
	}
	pending := make(map[int]*Block, len(m.Blocks))
	for _, b := range m.Blocks {
		pending[b.GID] = b
	}
	for len(pending) > 0 {
		for gid, b := range pending {
			if b.BVals.ReceiveBoundaryBuffers() {
				delete(pending, gid)
			}
		}
	}
	for _, b := range m.Blocks {
		b.BVals.ApplyPhysicalBoundaries()
		b.BVals.ClearBoundary()
	}
	if resFlag != 1 {
		for _, b := range m.Blocks {
			b.NewBlockDT = b.State.NewBlockTimeStep(b)
		}
		m.NewTimeStep()
	}
	return nil
}

// NewTimeStep reduces the per-block stable time steps to the global dt.
// The step may at most double between cycles, and the final step is
// clamped to land exactly on the time limit.
func (m *Mesh) NewTimeStep() {
	minDT := math.MaxFloat64
	for _, b := range m.Blocks {
		if b.NewBlockDT < minDT {
			minDT = b.NewBlockDT
		}
	}
	gmin := parallel.AllreduceMin(m.Comm, m.Rank, minDT)
	dt := gmin * m.CFL
	if 2.0*m.DT < dt {
		dt = 2.0 * m.DT
	}
	m.DT = dt
	if m.Time < m.TLim && m.TLim-m.Time < m.DT {
		m.DT = m.TLim - m.Time
	}
}

// UpdateOneStep advances every local block through one task-list cycle.
// Blocks are polled round-robin; a block whose next task is waiting on a
// neighbor reports stuck and is revisited after the others get a chance to
// send, so one goroutine can drive many interdependent blocks without
// deadlock.
func (m *Mesh) UpdateOneStep() {
	tl := m.Phys.NewTaskList(m)
	ntasks := tl.NTasks()
	remaining := len(m.Blocks)
	for _, b := range m.Blocks {
		b.TS = TaskState{NumTasksLeft: ntasks}
		b.BVals.StartReceiving()
	}
	for remaining > 0 {
		for _, b := range m.Blocks {
			if b.TS.NumTasksLeft == 0 {
				continue
			}
			if tl.DoOneTask(b) == TaskComplete {
				remaining--
			}
		}
	}
	for _, b := range m.Blocks {
		b.BVals.ClearBoundary()
	}
	m.NCycle++
	m.Time += m.DT
}
