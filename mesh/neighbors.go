package mesh

// NeighborConnect classifies how two blocks touch.
type NeighborConnect int

const (
	NeighborFace NeighborConnect = iota
	NeighborEdge
	NeighborCorner
)

// NeighborBlock describes one adjacency of a block: who the neighbor is,
// where it sits relative to this block, and which communication slots the
// two sides use. BufID is the slot in this block's buffer table, TargetID
// the slot in the neighbor's, derived independently on both ranks from the
// shared canonical table.
type NeighborBlock struct {
	Rank     int
	Level    int
	GID      int
	LID      int
	OX1      int
	OX2      int
	OX3      int
	Type     NeighborConnect
	BufID    int
	TargetID int
	FI1      int
	FI2      int
	FID      int // face index when Type is NeighborFace
	EID      int // edge index when Type is NeighborEdge
}

func (nb *NeighborBlock) set(rank, level, gid, lid, ox1, ox2, ox3 int,
	typ NeighborConnect, bufid, targetid, fi1, fi2 int) {
	nb.Rank = rank
	nb.Level = level
	nb.GID = gid
	nb.LID = lid
	nb.OX1 = ox1
	nb.OX2 = ox2
	nb.OX3 = ox3
	nb.Type = typ
	nb.BufID = bufid
	nb.TargetID = targetid
	nb.FI1 = fi1
	nb.FI2 = fi2
	if typ == NeighborFace {
		switch {
		case ox1 == -1:
			nb.FID = InnerX1
		case ox1 == 1:
			nb.FID = OuterX1
		case ox2 == -1:
			nb.FID = InnerX2
		case ox2 == 1:
			nb.FID = OuterX2
		case ox3 == -1:
			nb.FID = InnerX3
		default:
			nb.FID = OuterX3
		}
	}
	if typ == NeighborEdge {
		switch {
		case ox3 == 0:
			nb.EID = ((ox1 + 1) >> 1) | ((ox2 + 1) & 2)
		case ox2 == 0:
			nb.EID = 4 + (((ox1 + 1) >> 1) | ((ox3 + 1) & 2))
		default:
			nb.EID = 8 + (((ox2 + 1) >> 1) | ((ox3 + 1) & 2))
		}
	}
}

// SearchAndSetNeighbors rebuilds the block's neighbor descriptors from the
// tree and the current block-to-rank assignment. The buffer-slot counter
// advances through the canonical table even for absent neighbors so that
// the two sides of every adjacency agree on slot numbers.
//
// An edge or corner neighbor at the same level or coarser is recorded only
// when it is not already reachable through a face exchange of some finer
// sibling; the parity test against this block's own octant keeps exactly
// one descriptor per physical adjacency.
func (b *Block) SearchAndSetNeighbors(tree *Tree, ranklist, nslist []int) {
	m := b.mesh
	bt := m.bufTable
	loc := b.Loc

	myox1 := int(loc.LX1&1)*2 - 1
	myox2, myox3 := 0, 0
	myfx1 := int(loc.LX1 & 1)
	myfx2 := int(loc.LX2 & 1)
	myfx3 := int(loc.LX3 & 1)
	if b.Size.NX2 > 1 {
		myox2 = int(loc.LX2&1)*2 - 1
	}
	if b.Size.NX3 > 1 {
		myox3 = int(loc.LX3&1)*2 - 1
	}

	nf1, nf2 := 1, 1
	if m.Multilevel {
		if b.Size.NX2 > 1 {
			nf1 = 2
		}
		if b.Size.NX3 > 1 {
			nf2 = 2
		}
	}

	b.Neighbors = make([]NeighborBlock, bt.MaxNeighbor())
	nn := 0
	bufid := 0
	for k := 0; k < 3; k++ {
		for j := 0; j < 3; j++ {
			for i := 0; i < 3; i++ {
				b.NBLevel[k][j][i] = -1
			}
		}
	}
	b.NBLevel[1][1][1] = loc.Level

	// x1 faces
	for n := -1; n <= 1; n += 2 {
		nt := tree.FindNeighbor(loc, n, 0, 0, b.BCs)
		if nt == nil {
			bufid += nf1 * nf2
			continue
		}
		if !nt.Leaf() { // finer
			fface := 1 - (n+1)/2
			b.NBLevel[1][1][n+1] = nt.Loc.Level + 1
			for f2 := 0; f2 < nf2; f2++ {
				for f1 := 0; f1 < nf1; f1++ {
					nl := nt.GetLeaf(fface, f1, f2)
					fid := nl.GID
					tbid := bt.FindBufferID(-n, 0, 0, 0, 0)
					b.Neighbors[nn].set(ranklist[fid], nl.Loc.Level, fid,
						fid-nslist[ranklist[fid]], n, 0, 0,
						NeighborFace, bufid, tbid, f1, f2)
					bufid++
					nn++
				}
			}
		} else { // same level or coarser
			nlevel := nt.Loc.Level
			nid := nt.GID
			b.NBLevel[1][1][n+1] = nlevel
			var tbid int
			if nlevel == loc.Level {
				tbid = bt.FindBufferID(-n, 0, 0, 0, 0)
			} else {
				tbid = bt.FindBufferID(-n, 0, 0, myfx2, myfx3)
			}
			b.Neighbors[nn].set(ranklist[nid], nlevel, nid,
				nid-nslist[ranklist[nid]], n, 0, 0,
				NeighborFace, bufid, tbid, 0, 0)
			bufid += nf1 * nf2
			nn++
		}
	}
	if b.Size.NX2 == 1 {
		b.Neighbors = b.Neighbors[:nn]
		return
	}

	// x2 faces
	for n := -1; n <= 1; n += 2 {
		nt := tree.FindNeighbor(loc, 0, n, 0, b.BCs)
		if nt == nil {
			bufid += nf1 * nf2
			continue
		}
		if !nt.Leaf() {
			fface := 1 - (n+1)/2
			b.NBLevel[1][n+1][1] = nt.Loc.Level + 1
			for f2 := 0; f2 < nf2; f2++ {
				for f1 := 0; f1 < nf1; f1++ {
					nl := nt.GetLeaf(f1, fface, f2)
					fid := nl.GID
					tbid := bt.FindBufferID(0, -n, 0, 0, 0)
					b.Neighbors[nn].set(ranklist[fid], nl.Loc.Level, fid,
						fid-nslist[ranklist[fid]], 0, n, 0,
						NeighborFace, bufid, tbid, f1, f2)
					bufid++
					nn++
				}
			}
		} else {
			nlevel := nt.Loc.Level
			nid := nt.GID
			b.NBLevel[1][n+1][1] = nlevel
			var tbid int
			if nlevel == loc.Level {
				tbid = bt.FindBufferID(0, -n, 0, 0, 0)
			} else {
				tbid = bt.FindBufferID(0, -n, 0, myfx1, myfx3)
			}
			b.Neighbors[nn].set(ranklist[nid], nlevel, nid,
				nid-nslist[ranklist[nid]], 0, n, 0,
				NeighborFace, bufid, tbid, 0, 0)
			bufid += nf1 * nf2
			nn++
		}
	}

	// x3 faces
	if b.Size.NX3 > 1 {
		for n := -1; n <= 1; n += 2 {
			nt := tree.FindNeighbor(loc, 0, 0, n, b.BCs)
			if nt == nil {
				bufid += nf1 * nf2
				continue
			}
			if !nt.Leaf() {
				fface := 1 - (n+1)/2
				b.NBLevel[n+1][1][1] = nt.Loc.Level + 1
				for f2 := 0; f2 < nf2; f2++ {
					for f1 := 0; f1 < nf1; f1++ {
						nl := nt.GetLeaf(f1, f2, fface)
						fid := nl.GID
						tbid := bt.FindBufferID(0, 0, -n, 0, 0)
						b.Neighbors[nn].set(ranklist[fid], nl.Loc.Level, fid,
							fid-nslist[ranklist[fid]], 0, 0, n,
							NeighborFace, bufid, tbid, f1, f2)
						bufid++
						nn++
					}
				}
			} else {
				nlevel := nt.Loc.Level
				nid := nt.GID
				b.NBLevel[n+1][1][1] = nlevel
				var tbid int
				if nlevel == loc.Level {
					tbid = bt.FindBufferID(0, 0, -n, 0, 0)
				} else {
					tbid = bt.FindBufferID(0, 0, -n, myfx1, myfx2)
				}
				b.Neighbors[nn].set(ranklist[nid], nlevel, nid,
					nid-nslist[ranklist[nid]], 0, 0, n,
					NeighborFace, bufid, tbid, 0, 0)
				bufid += nf1 * nf2
				nn++
			}
		}
	}

	if m.FaceOnly {
		b.Neighbors = b.Neighbors[:nn]
		return
	}

	// x1x2 edges
	for mo := -1; mo <= 1; mo += 2 {
		for n := -1; n <= 1; n += 2 {
			nt := tree.FindNeighbor(loc, n, mo, 0, b.BCs)
			if nt == nil {
				bufid += nf2
				continue
			}
			if !nt.Leaf() {
				ff1 := 1 - (n+1)/2
				ff2 := 1 - (mo+1)/2
				b.NBLevel[1][mo+1][n+1] = nt.Loc.Level + 1
				for f1 := 0; f1 < nf2; f1++ {
					nl := nt.GetLeaf(ff1, ff2, f1)
					fid := nl.GID
					tbid := bt.FindBufferID(-n, -mo, 0, 0, 0)
					b.Neighbors[nn].set(ranklist[fid], nl.Loc.Level, fid,
						fid-nslist[ranklist[fid]], n, mo, 0,
						NeighborEdge, bufid, tbid, f1, 0)
					bufid++
					nn++
				}
			} else {
				nlevel := nt.Loc.Level
				nid := nt.GID
				b.NBLevel[1][mo+1][n+1] = nlevel
				var tbid int
				if nlevel == loc.Level {
					tbid = bt.FindBufferID(-n, -mo, 0, 0, 0)
				} else {
					tbid = bt.FindBufferID(-n, -mo, 0, myfx3, 0)
				}
				if nlevel >= loc.Level || (myox1 == n && myox2 == mo) {
					b.Neighbors[nn].set(ranklist[nid], nlevel, nid,
						nid-nslist[ranklist[nid]], n, mo, 0,
						NeighborEdge, bufid, tbid, 0, 0)
					nn++
				}
				bufid += nf2
			}
		}
	}

	if b.Size.NX3 > 1 {
		// x1x3 edges
		for mo := -1; mo <= 1; mo += 2 {
			for n := -1; n <= 1; n += 2 {
				nt := tree.FindNeighbor(loc, n, 0, mo, b.BCs)
				if nt == nil {
					bufid += nf1
					continue
				}
				if !nt.Leaf() {
					ff1 := 1 - (n+1)/2
					ff2 := 1 - (mo+1)/2
					b.NBLevel[mo+1][1][n+1] = nt.Loc.Level + 1
					for f1 := 0; f1 < nf1; f1++ {
						nl := nt.GetLeaf(ff1, f1, ff2)
						fid := nl.GID
						tbid := bt.FindBufferID(-n, 0, -mo, 0, 0)
						b.Neighbors[nn].set(ranklist[fid], nl.Loc.Level, fid,
							fid-nslist[ranklist[fid]], n, 0, mo,
							NeighborEdge, bufid, tbid, f1, 0)
						bufid++
						nn++
					}
				} else {
					nlevel := nt.Loc.Level
					nid := nt.GID
					b.NBLevel[mo+1][1][n+1] = nlevel
					var tbid int
					if nlevel == loc.Level {
						tbid = bt.FindBufferID(-n, 0, -mo, 0, 0)
					} else {
						tbid = bt.FindBufferID(-n, 0, -mo, myfx2, 0)
					}
					if nlevel >= loc.Level || (myox1 == n && myox3 == mo) {
						b.Neighbors[nn].set(ranklist[nid], nlevel, nid,
							nid-nslist[ranklist[nid]], n, 0, mo,
							NeighborEdge, bufid, tbid, 0, 0)
						nn++
					}
					bufid += nf1
				}
			}
		}

		// x2x3 edges
		for mo := -1; mo <= 1; mo += 2 {
			for n := -1; n <= 1; n += 2 {
				nt := tree.FindNeighbor(loc, 0, n, mo, b.BCs)
				if nt == nil {
					bufid += nf1
					continue
				}
				if !nt.Leaf() {
					ff1 := 1 - (n+1)/2
					ff2 := 1 - (mo+1)/2
					b.NBLevel[mo+1][n+1][1] = nt.Loc.Level + 1
					for f1 := 0; f1 < nf1; f1++ {
						nl := nt.GetLeaf(f1, ff1, ff2)
						fid := nl.GID
						tbid := bt.FindBufferID(0, -n, -mo, 0, 0)
						b.Neighbors[nn].set(ranklist[fid], nl.Loc.Level, fid,
							fid-nslist[ranklist[fid]], 0, n, mo,
							NeighborEdge, bufid, tbid, f1, 0)
						bufid++
						nn++
					}
				} else {
					nlevel := nt.Loc.Level
					nid := nt.GID
					b.NBLevel[mo+1][n+1][1] = nlevel
					var tbid int
					if nlevel == loc.Level {
						tbid = bt.FindBufferID(0, -n, -mo, 0, 0)
					} else {
						tbid = bt.FindBufferID(0, -n, -mo, myfx1, 0)
					}
					if nlevel >= loc.Level || (myox2 == n && myox3 == mo) {
						b.Neighbors[nn].set(ranklist[nid], nlevel, nid,
							nid-nslist[ranklist[nid]], 0, n, mo,
							NeighborEdge, bufid, tbid, 0, 0)
						nn++
					}
					bufid += nf1
				}
			}
		}

		// corners
		for l := -1; l <= 1; l += 2 {
			for mo := -1; mo <= 1; mo += 2 {
				for n := -1; n <= 1; n += 2 {
					nt := tree.FindNeighbor(loc, n, mo, l, b.BCs)
					if nt == nil {
						bufid++
						continue
					}
					if !nt.Leaf() {
						ff1 := 1 - (n+1)/2
						ff2 := 1 - (mo+1)/2
						ff3 := 1 - (l+1)/2
						nt = nt.GetLeaf(ff1, ff2, ff3)
					}
					nlevel := nt.Loc.Level
					b.NBLevel[l+1][mo+1][n+1] = nlevel
					if nlevel >= loc.Level ||
						(myox1 == n && myox2 == mo && myox3 == l) {
						nid := nt.GID
						tbid := bt.FindBufferID(-n, -mo, -l, 0, 0)
						b.Neighbors[nn].set(ranklist[nid], nlevel, nid,
							nid-nslist[ranklist[nid]], n, mo, l,
							NeighborCorner, bufid, tbid, 0, 0)
						nn++
					}
					bufid++
				}
			}
		}
	}

	b.Neighbors = b.Neighbors[:nn]
}
