package mesh

// The communication buffer numbering. Both endpoints of an adjacency must
// derive identical slot ids with no handshake, so the table below is built
// in one fixed canonical order: x1 faces, x2 faces, x3 faces, x1x2 edges,
// x1x3 edges, x2x3 edges, corners, with negative offsets before positive
// and finer sub-faces enumerated f2-major. Changing this order breaks the
// wire contract between ranks.

// CreateBufferID packs a neighbor direction and sub-face pair into a single
// comparable id.
func CreateBufferID(ox1, ox2, ox3, fi1, fi2 int) int {
	return ((ox1 + 1) << 6) | ((ox2 + 1) << 4) | ((ox3 + 1) << 2) | (fi1 << 1) | fi2
}

// BufferTable holds the canonical buffer-id ordering for a mesh's
// dimensionality and refinement mode. Its length is the per-block buffer
// count; the index of an id in the table is the matching slot.
type BufferTable struct {
	ids []int
}

// NewBufferTable enumerates every buffer id a block can use. With
// multilevel refinement each face carries nf1*nf2 sub-face slots and each
// edge nf1 (or nf2) slots for possibly-finer neighbors; faceOnly meshes
// skip edge and corner buffers entirely.
func NewBufferTable(dim int, multilevel, faceOnly bool) *BufferTable {
	nf1, nf2 := 1, 1
	if multilevel {
		if dim >= 2 {
			nf1 = 2
		}
		if dim == 3 {
			nf2 = 2
		}
	}
	bt := &BufferTable{}
	add := func(ox1, ox2, ox3, fi1, fi2 int) {
		bt.ids = append(bt.ids, CreateBufferID(ox1, ox2, ox3, fi1, fi2))
	}

	// x1 faces
	for n := -1; n <= 1; n += 2 {
		for f2 := 0; f2 < nf2; f2++ {
			for f1 := 0; f1 < nf1; f1++ {
				add(n, 0, 0, f1, f2)
			}
		}
	}
	if dim >= 2 { // x2 faces
		for n := -1; n <= 1; n += 2 {
			for f2 := 0; f2 < nf2; f2++ {
				for f1 := 0; f1 < nf1; f1++ {
					add(0, n, 0, f1, f2)
				}
			}
		}
	}
	if dim == 3 { // x3 faces
		for n := -1; n <= 1; n += 2 {
			for f2 := 0; f2 < nf2; f2++ {
				for f1 := 0; f1 < nf1; f1++ {
					add(0, 0, n, f1, f2)
				}
			}
		}
	}
	if faceOnly {
		return bt
	}
	if dim >= 2 { // x1x2 edges
		for m := -1; m <= 1; m += 2 {
			for n := -1; n <= 1; n += 2 {
				for f1 := 0; f1 < nf2; f1++ {
					add(n, m, 0, f1, 0)
				}
			}
		}
	}
	if dim == 3 {
		// x1x3 edges
		for m := -1; m <= 1; m += 2 {
			for n := -1; n <= 1; n += 2 {
				for f1 := 0; f1 < nf1; f1++ {
					add(n, 0, m, f1, 0)
				}
			}
		}
		// x2x3 edges
		for m := -1; m <= 1; m += 2 {
			for n := -1; n <= 1; n += 2 {
				for f1 := 0; f1 < nf1; f1++ {
					add(0, n, m, f1, 0)
				}
			}
		}
		// corners
		for l := -1; l <= 1; l += 2 {
			for m := -1; m <= 1; m += 2 {
				for n := -1; n <= 1; n += 2 {
					add(n, m, l, 0, 0)
				}
			}
		}
	}
	return bt
}

// MaxNeighbor returns the buffer count, the upper bound on a block's
// neighbor descriptors.
func (bt *BufferTable) MaxNeighbor() int { return len(bt.ids) }

// FindBufferID returns the slot of the given direction/sub-face pair, the
// id the remote side will have assigned for this adjacency. Panics on an
// unknown combination: both sides enumerate from the same table, so a miss
// is a programming error, not a data error.
func (bt *BufferTable) FindBufferID(ox1, ox2, ox3, fi1, fi2 int) int {
	bid := CreateBufferID(ox1, ox2, ox3, fi1, fi2)
	for i, id := range bt.ids {
		if id == bid {
			return i
		}
	}
	panic("buffer id not present in canonical table")
}
