package solver

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/notargets/gamr/mesh"
)

// State holds one block's scalar field including ghost zones, flattened
// x1-fastest.
type State struct {
	U []float64

	ncx1, ncx2, ncx3 int
	dx1, dx2, dx3    float64
	phys             *Scalar
}

func newState(b *mesh.Block, phys *Scalar) *State {
	s := &State{phys: phys}
	s.ncx1 = b.Size.NX1 + 2*mesh.NGhost
	s.ncx2, s.ncx3 = 1, 1
	if b.Size.NX2 > 1 {
		s.ncx2 = b.Size.NX2 + 2*mesh.NGhost
	}
	if b.Size.NX3 > 1 {
		s.ncx3 = b.Size.NX3 + 2*mesh.NGhost
	}
	s.U = make([]float64, s.ncx1*s.ncx2*s.ncx3)
	s.dx1 = (b.Size.X1Max - b.Size.X1Min) / float64(b.Size.NX1)
	s.dx2 = (b.Size.X2Max - b.Size.X2Min) / float64(b.Size.NX2)
	s.dx3 = (b.Size.X3Max - b.Size.X3Min) / float64(b.Size.NX3)
	return s
}

// Idx flattens a (i,j,k) cell index.
func (s *State) Idx(i, j, k int) int { return (k*s.ncx2+j)*s.ncx1 + i }

// NewBlockTimeStep returns the advective stability limit for this block,
// before the CFL factor.
func (s *State) NewBlockTimeStep(b *mesh.Block) float64 {
	dt := math.MaxFloat64
	if v := math.Abs(s.phys.VX1); v > 0 {
		dt = math.Min(dt, s.dx1/v)
	}
	if b.Size.NX2 > 1 {
		if v := math.Abs(s.phys.VX2); v > 0 {
			dt = math.Min(dt, s.dx2/v)
		}
	}
	if b.Size.NX3 > 1 {
		if v := math.Abs(s.phys.VX3); v > 0 {
			dt = math.Min(dt, s.dx3/v)
		}
	}
	return dt
}

func (s *State) PayloadBytes() int { return 8 * len(s.U) }

func (s *State) WritePayload(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, s.U)
}

func (s *State) ReadPayload(r io.Reader) error {
	return binary.Read(r, binary.LittleEndian, s.U)
}
