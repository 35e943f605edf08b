package mesh

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/notargets/gamr/InputParameters"
	"github.com/notargets/gamr/parallel"
)

// Restart record layout, all little-endian, no padding:
//
//	header: int32 nbtotal, int32 root_level, RegionSize, int32[6] bcs,
//	        float64 time, float64 dt, int32 ncycle
//	table:  nbtotal x (int32 gid, int32 level, int64 lx1, int64 lx2,
//	        int64 lx3, float64 cost, int64 offset)
//	body:   per block at its offset: RegionSize, int32[6] bcs, payload
//
// Payload presence and size follow the physics the file was written with;
// nothing in the file identifies it, so reader and writer must agree.

func writeRegionSize(w io.Writer, rs RegionSize) error {
	for _, v := range []float64{rs.X1Min, rs.X1Max, rs.X2Min, rs.X2Max,
		rs.X3Min, rs.X3Max, rs.X1Rat, rs.X2Rat, rs.X3Rat} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, v := range []int32{int32(rs.NX1), int32(rs.NX2), int32(rs.NX3)} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func readRegionSize(r io.Reader, rs *RegionSize) error {
	fs := []*float64{&rs.X1Min, &rs.X1Max, &rs.X2Min, &rs.X2Max,
		&rs.X3Min, &rs.X3Max, &rs.X1Rat, &rs.X2Rat, &rs.X3Rat}
	for _, p := range fs {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return err
		}
	}
	var n [3]int32
	for i := range n {
		if err := binary.Read(r, binary.LittleEndian, &n[i]); err != nil {
			return err
		}
	}
	rs.NX1, rs.NX2, rs.NX3 = int(n[0]), int(n[1]), int(n[2])
	return nil
}

func writeBCs(w io.Writer, bcs [6]BCFlag) error {
	for _, f := range bcs {
		if err := binary.Write(w, binary.LittleEndian, int32(f)); err != nil {
			return err
		}
	}
	return nil
}

func readBCs(r io.Reader, bcs *[6]BCFlag) error {
	for i := range bcs {
		var f int32
		if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
			return err
		}
		bcs[i] = BCFlag(f)
	}
	return nil
}

type restartSection struct {
	GID  int
	Data []byte
}

// blockSection serializes one block's body record.
func (b *Block) blockSection() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeRegionSize(&buf, b.Size); err != nil {
		return nil, err
	}
	if err := writeBCs(&buf, b.BCs); err != nil {
		return nil, err
	}
	if b.State != nil {
		if err := b.State.WritePayload(&buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// WriteRestart dumps the whole mesh to one file. Every rank contributes its
// blocks' sections through a collective gather and rank 0 writes; the call
// is collective and must be entered by the full cohort. The returned error
// is only meaningful on rank 0.
func (m *Mesh) WriteRestart(path string) error {
	local := make([]restartSection, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		data, err := b.blockSection()
		if err != nil {
			return fmt.Errorf("serializing block %d: %w", b.GID, err)
		}
		local = append(local, restartSection{GID: b.GID, Data: data})
	}
	all, _ := parallel.Allgatherv(m.Comm, m.Rank, local)
	if !m.Rank.Root() {
		return nil
	}
	sort.Slice(all, func(i, j int) bool { return all[i].GID < all[j].GID })
	if len(all) != m.NBTotal {
		return restartErrorf("gathered %d block sections, expected %d",
			len(all), m.NBTotal)
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(m.NBTotal))
	binary.Write(&buf, binary.LittleEndian, int32(m.rootLevel))
	if err := writeRegionSize(&buf, m.Size); err != nil {
		return err
	}
	if err := writeBCs(&buf, m.BCs); err != nil {
		return err
	}
	binary.Write(&buf, binary.LittleEndian, m.Time)
	binary.Write(&buf, binary.LittleEndian, m.DT)
	binary.Write(&buf, binary.LittleEndian, int32(m.NCycle))

	// table size is fixed, so body offsets are known before writing it
	const entryBytes = 4 + 4 + 3*8 + 8 + 8
	offset := int64(buf.Len()) + int64(m.NBTotal)*entryBytes
	for gid, loc := range m.loclist {
		binary.Write(&buf, binary.LittleEndian, int32(gid))
		binary.Write(&buf, binary.LittleEndian, int32(loc.Level))
		binary.Write(&buf, binary.LittleEndian, loc.LX1)
		binary.Write(&buf, binary.LittleEndian, loc.LX2)
		binary.Write(&buf, binary.LittleEndian, loc.LX3)
		binary.Write(&buf, binary.LittleEndian, m.costlist[gid])
		binary.Write(&buf, binary.LittleEndian, offset)
		offset += int64(len(all[gid].Data))
	}
	for _, sec := range all {
		buf.Write(sec.Data)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// NewMeshFromRestart reconstructs the mesh from a restart file. Every rank
// reads the file independently; block size and refinement policy still come
// from the input parameters and must match what the file was written with.
func NewMeshFromRestart(path string, pin *InputParameters.ParameterInput,
	phys Physics, rank parallel.Rank, comm *parallel.Comm) (*Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, restartErrorf("cannot read %s: %v", path, err)
	}
	r := bytes.NewReader(data)

	var nbtotal, rootLevel, ncycle int32
	var msize RegionSize
	var mbcs [6]BCFlag
	var tm, dt float64
	if err = binary.Read(r, binary.LittleEndian, &nbtotal); err != nil {
		return nil, restartErrorf("truncated header in %s", path)
	}
	if err = binary.Read(r, binary.LittleEndian, &rootLevel); err != nil {
		return nil, restartErrorf("truncated header in %s", path)
	}
	if err = readRegionSize(r, &msize); err != nil {
		return nil, restartErrorf("truncated mesh extent in %s", path)
	}
	if err = readBCs(r, &mbcs); err != nil {
		return nil, restartErrorf("truncated boundary tags in %s", path)
	}
	if err = binary.Read(r, binary.LittleEndian, &tm); err != nil {
		return nil, restartErrorf("truncated header in %s", path)
	}
	if err = binary.Read(r, binary.LittleEndian, &dt); err != nil {
		return nil, restartErrorf("truncated header in %s", path)
	}
	if err = binary.Read(r, binary.LittleEndian, &ncycle); err != nil {
		return nil, restartErrorf("truncated header in %s", path)
	}
	if nbtotal < 1 {
		return nil, restartErrorf("block count %d in %s", nbtotal, path)
	}

	locs := make([]LogicalLocation, nbtotal)
	costs := make([]float64, nbtotal)
	offsets := make([]int64, nbtotal)
	for i := 0; i < int(nbtotal); i++ {
		var gid, level int32
		if err = binary.Read(r, binary.LittleEndian, &gid); err != nil {
			return nil, restartErrorf("truncated block table in %s", path)
		}
		if err = binary.Read(r, binary.LittleEndian, &level); err != nil {
			return nil, restartErrorf("truncated block table in %s", path)
		}
		locs[i].Level = int(level)
		if err = binary.Read(r, binary.LittleEndian, &locs[i].LX1); err != nil {
			return nil, restartErrorf("truncated block table in %s", path)
		}
		if err = binary.Read(r, binary.LittleEndian, &locs[i].LX2); err != nil {
			return nil, restartErrorf("truncated block table in %s", path)
		}
		if err = binary.Read(r, binary.LittleEndian, &locs[i].LX3); err != nil {
			return nil, restartErrorf("truncated block table in %s", path)
		}
		if err = binary.Read(r, binary.LittleEndian, &costs[i]); err != nil {
			return nil, restartErrorf("truncated block table in %s", path)
		}
		if err = binary.Read(r, binary.LittleEndian, &offsets[i]); err != nil {
			return nil, restartErrorf("truncated block table in %s", path)
		}
		if int(gid) != i {
			return nil, restartErrorf("block table out of order in %s: entry %d carries gid %d",
				path, i, gid)
		}
	}

	// Geometry and policy still come from the input file; the restart file
	// supplies the tree, the clock, and the payloads.
	m := &Mesh{
		Rank: rank,
		Comm: comm,
		Pin:  pin,
		Phys: phys,
		Size: msize,
		BCs:  mbcs,
		Time: tm,
		DT:   dt,
	}
	m.NCycle = int(ncycle)
	m.CFL = pin.GetOrAddReal("time", "cfl_number", 0.3)
	m.TLim = pin.GetOrAddReal("time", "tlim", 1.0)
	m.NLim = pin.GetOrAddInteger("time", "nlim", -1)
	m.Dim = 1
	if m.Size.NX2 > 1 {
		m.Dim = 2
	}
	if m.Size.NX3 > 1 {
		m.Dim = 3
	}
	if err = m.readBlockSize(pin); err != nil {
		return nil, err
	}
	m.nrbx1 = int64(m.Size.NX1 / m.blockNX1)
	m.nrbx2 = int64(m.Size.NX2 / m.blockNX2)
	m.nrbx3 = int64(m.Size.NX3 / m.blockNX3)
	m.rootLevel = int(rootLevel)
	m.currentLevel = m.rootLevel
	if err = m.readRefinement(pin); err != nil {
		return nil, err
	}

	m.tree, err = NewTree(m.nrbx1, m.nrbx2, m.nrbx3, m.rootLevel, m.Dim)
	if err != nil {
		return nil, err
	}
	for _, loc := range locs {
		if loc.Level > m.rootLevel {
			m.tree.InsertWithoutRefine(loc)
		}
	}
	m.loclist = m.tree.EnumerateLeaves()
	m.NBTotal = len(m.loclist)
	if m.NBTotal != int(nbtotal) {
		return nil, restartErrorf(
			"tree reconstruction produced %d blocks, file records %d",
			m.NBTotal, nbtotal)
	}
	for _, loc := range m.loclist {
		if loc.Level > m.currentLevel {
			m.currentLevel = loc.Level
		}
	}

	// gid reassignment is canonical, so costs must be re-keyed by location
	costByLoc := make(map[LogicalLocation]float64, nbtotal)
	offByLoc := make(map[LogicalLocation]int64, nbtotal)
	for i, loc := range locs {
		costByLoc[loc] = costs[i]
		offByLoc[loc] = offsets[i]
	}
	m.costlist = make([]float64, m.NBTotal)
	for i, loc := range m.loclist {
		c, ok := costByLoc[loc]
		if !ok {
			return nil, restartErrorf(
				"re-enumerated block %v is absent from the restart table", loc)
		}
		m.costlist[i] = c
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

	for _, b := range m.Blocks {
		off := offByLoc[b.Loc]
		if off < 0 || off > int64(len(data)) {
			return nil, restartErrorf("block %d offset %d outside the file", b.GID, off)
		}
		br := bytes.NewReader(data[off:])
		if err = readRegionSize(br, &b.Size); err != nil {
			return nil, restartErrorf("truncated record for block %d", b.GID)
		}
		if err = readBCs(br, &b.BCs); err != nil {
			return nil, restartErrorf("truncated record for block %d", b.GID)
		}
		if b.State != nil {
			if err = b.State.ReadPayload(br); err != nil {
				return nil, restartErrorf("truncated payload for block %d: %v", b.GID, err)
			}
		}
	}
	return m, nil
}
