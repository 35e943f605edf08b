package solver

import (
	"github.com/notargets/gamr/mesh"
)

// BVals implements the ghost-zone exchange for the scalar field over the
// exchange board. First-order upwind advection only consumes face ghost
// zones, so only face neighbor descriptors participate; level jumps are
// bridged by averaging (fine to coarse) and piecewise-constant copying
// (coarse to fine).
type BVals struct {
	b     *mesh.Block
	s     *State
	board *ExchangeBoard

	pending []int // indices into b.Neighbors awaiting arrival
}

func newBVals(b *mesh.Block, s *State, board *ExchangeBoard) *BVals {
	return &BVals{b: b, s: s, board: board}
}

// box is a triple of inclusive per-axis index ranges.
type box [3][2]int

func (bx box) ext(a int) int { return bx[a][1] - bx[a][0] + 1 }

func halfRange(lo, hi, fi int) (int, int) {
	n := hi - lo + 1
	if fi == 0 {
		return lo, lo + n/2 - 1
	}
	return lo + n/2, hi
}

// active reports whether an axis carries more than one cell on this block.
func (bv *BVals) active(axis int) bool {
	switch axis {
	case 0:
		return true
	case 1:
		return bv.s.ncx2 > 1
	}
	return bv.s.ncx3 > 1
}

// faceBox builds the axis-aligned index box for one face exchange: the
// interior slab adjacent to the face (ghost=false) or the ghost slab
// outside it (ghost=true), depth cells deep along the normal. When half is
// set the tangential extents are restricted to the sub-face selected by the
// descriptor's sub-face indices.
func (bv *BVals) faceBox(nb *mesh.NeighborBlock, ghost bool, depth int, half bool) box {
	b := bv.b
	bx := box{{b.IS, b.IE}, {b.JS, b.JE}, {b.KS, b.KE}}
	naxis := nb.FID / 2
	outer := nb.FID%2 == 1
	switch {
	case outer && ghost:
		bx[naxis] = [2]int{bx[naxis][1] + 1, bx[naxis][1] + depth}
	case outer:
		bx[naxis] = [2]int{bx[naxis][1] - depth + 1, bx[naxis][1]}
	case ghost:
		bx[naxis] = [2]int{bx[naxis][0] - depth, bx[naxis][0] - 1}
	default:
		bx[naxis] = [2]int{bx[naxis][0], bx[naxis][0] + depth - 1}
	}
	if half {
		// sub-face index pair order follows the face orientation:
		// x1 faces split (x2,x3), x2 faces (x1,x3), x3 faces (x1,x2)
		var t1, t2 int
		switch naxis {
		case 0:
			t1, t2 = 1, 2
		case 1:
			t1, t2 = 0, 2
		default:
			t1, t2 = 0, 1
		}
		if bv.active(t1) {
			bx[t1][0], bx[t1][1] = halfRange(bx[t1][0], bx[t1][1], nb.FI1)
		}
		if bv.active(t2) {
			bx[t2][0], bx[t2][1] = halfRange(bx[t2][0], bx[t2][1], nb.FI2)
		}
	}
	return bx
}

func (bv *BVals) pack(bx box) []float64 {
	out := make([]float64, 0, bx.ext(0)*bx.ext(1)*bx.ext(2))
	for k := bx[2][0]; k <= bx[2][1]; k++ {
		for j := bx[1][0]; j <= bx[1][1]; j++ {
			for i := bx[0][0]; i <= bx[0][1]; i++ {
				out = append(out, bv.s.U[bv.s.Idx(i, j, k)])
			}
		}
	}
	return out
}

// unpack writes data into the target box. rel is the sender's level minus
// this block's: +1 means finer data to average down, -1 coarser data to
// duplicate up, 0 a direct copy.
func (bv *BVals) unpack(bx box, data []float64, rel int) {
	var f [3]int
	var dext [3]int
	for a := 0; a < 3; a++ {
		f[a] = 1
		if bv.active(a) && rel != 0 {
			f[a] = 2
		}
		switch rel {
		case 1:
			dext[a] = bx.ext(a) * f[a]
		case -1:
			dext[a] = (bx.ext(a) + f[a] - 1) / f[a]
		default:
			dext[a] = bx.ext(a)
		}
	}
	didx := func(i, j, k int) int { return (k*dext[1]+j)*dext[0] + i }

	for k := 0; k < bx.ext(2); k++ {
		for j := 0; j < bx.ext(1); j++ {
			for i := 0; i < bx.ext(0); i++ {
				var v float64
				switch rel {
				case 1: // average the covering fine cells
					n := 0
					for dk := 0; dk < f[2]; dk++ {
						for dj := 0; dj < f[1]; dj++ {
							for di := 0; di < f[0]; di++ {
								v += data[didx(i*f[0]+di, j*f[1]+dj, k*f[2]+dk)]
								n++
							}
						}
					}
					v /= float64(n)
				case -1: // one coarse value covers f cells
					v = data[didx(i/f[0], j/f[1], k/f[2])]
				default:
					v = data[didx(i, j, k)]
				}
				bv.s.U[bv.s.Idx(bx[0][0]+i, bx[1][0]+j, bx[2][0]+k)] = v
			}
		}
	}
}

func (bv *BVals) StartReceiving() {
	bv.pending = bv.pending[:0]
	for i := range bv.b.Neighbors {
		if bv.b.Neighbors[i].Type == mesh.NeighborFace {
			bv.pending = append(bv.pending, i)
		}
	}
}

func (bv *BVals) SendBoundaryBuffers() {
	for i := range bv.b.Neighbors {
		nb := &bv.b.Neighbors[i]
		if nb.Type != mesh.NeighborFace {
			continue
		}
		var bx box
		switch {
		case nb.Level == bv.b.Loc.Level:
			bx = bv.faceBox(nb, false, mesh.NGhost, false)
		case nb.Level < bv.b.Loc.Level:
			// the coarse side averages pairs, so it needs twice the depth
			bx = bv.faceBox(nb, false, 2*mesh.NGhost, false)
		default:
			// the fine side duplicates, half the depth and face suffice
			bx = bv.faceBox(nb, false, mesh.NGhost/2, true)
		}
		bv.board.Post(nb.GID, nb.TargetID, bv.pack(bx))
	}
}

func (bv *BVals) ReceiveBoundaryBuffers() bool {
	still := bv.pending[:0]
	for _, i := range bv.pending {
		nb := &bv.b.Neighbors[i]
		data, ok := bv.board.Take(bv.b.GID, nb.BufID)
		if !ok {
			still = append(still, i)
			continue
		}
		rel := nb.Level - bv.b.Loc.Level
		half := rel > 0 // a finer neighbor covers only half this face
		bv.unpack(bv.faceBox(nb, true, mesh.NGhost, half), data, rel)
	}
	bv.pending = still
	return len(bv.pending) == 0
}

// ApplyPhysicalBoundaries fills the ghost slabs on domain-edge faces.
// Reflecting mirrors the interior; every other physical policy degrades to
// zero-gradient outflow for a passive scalar. Faces are processed x1, x2,
// x3 with full tangential extents so edge and corner ghosts get consistent
// values.
func (bv *BVals) ApplyPhysicalBoundaries() {
	b := bv.b
	s := bv.s
	full := box{{0, s.ncx1 - 1}, {0, s.ncx2 - 1}, {0, s.ncx3 - 1}}
	lo := [3]int{b.IS, b.JS, b.KS}
	hi := [3]int{b.IE, b.JE, b.KE}
	for fid := 0; fid < 6; fid++ {
		bc := b.BCs[fid]
		if bc == mesh.BCInterior || bc == mesh.BCPeriodic {
			continue
		}
		naxis := fid / 2
		if !bv.active(naxis) {
			continue
		}
		bx := full
		outer := fid%2 == 1
		if outer {
			bx[naxis] = [2]int{hi[naxis] + 1, hi[naxis] + mesh.NGhost}
		} else {
			bx[naxis] = [2]int{lo[naxis] - mesh.NGhost, lo[naxis] - 1}
		}
		for k := bx[2][0]; k <= bx[2][1]; k++ {
			for j := bx[1][0]; j <= bx[1][1]; j++ {
				for i := bx[0][0]; i <= bx[0][1]; i++ {
					src := [3]int{i, j, k}
					if bc == mesh.BCReflecting {
						if outer {
							src[naxis] = 2*hi[naxis] + 1 - src[naxis]
						} else {
							src[naxis] = 2*lo[naxis] - 1 - src[naxis]
						}
					} else {
						if outer {
							src[naxis] = hi[naxis]
						} else {
							src[naxis] = lo[naxis]
						}
					}
					s.U[s.Idx(i, j, k)] = s.U[s.Idx(src[0], src[1], src[2])]
				}
			}
		}
	}
}

func (bv *BVals) ClearBoundary() {
	bv.pending = bv.pending[:0]
}
