package solver

import (
	"math"

	"github.com/notargets/gamr/InputParameters"
	"github.com/notargets/gamr/mesh"
	"github.com/notargets/gamr/parallel"
)

// Scalar advects a passive scalar at a constant velocity with first-order
// upwind differencing. It is deliberately simple; its role is to drive the
// mesh machinery end to end, not to be an accurate transport scheme.
type Scalar struct {
	VX1, VX2, VX3 float64

	X10, X20, X30 float64 // pulse center
	Sigma, Amp    float64

	RefineThreshold float64

	board *ExchangeBoard
}

// NewScalar reads the problem section of the input and binds the solver to
// the cohort's shared exchange board.
func NewScalar(pin *InputParameters.ParameterInput, board *ExchangeBoard) *Scalar {
	return &Scalar{
		VX1:             pin.GetOrAddReal("problem", "vx1", 1.0),
		VX2:             pin.GetOrAddReal("problem", "vx2", 0.0),
		VX3:             pin.GetOrAddReal("problem", "vx3", 0.0),
		X10:             pin.GetOrAddReal("problem", "x10", 0.5),
		X20:             pin.GetOrAddReal("problem", "x20", 0.5),
		X30:             pin.GetOrAddReal("problem", "x30", 0.5),
		Sigma:           pin.GetOrAddReal("problem", "sigma", 0.1),
		Amp:             pin.GetOrAddReal("problem", "amp", 1.0),
		RefineThreshold: pin.GetOrAddReal("problem", "refine_threshold", 0.5),
		board:           board,
	}
}

func (p *Scalar) Name() string { return "passive_scalar" }

func (p *Scalar) NewState(b *mesh.Block, pin *InputParameters.ParameterInput) (mesh.FieldState, error) {
	return newState(b, p), nil
}

func (p *Scalar) NewBoundaryValues(b *mesh.Block) mesh.BoundaryValues {
	return newBVals(b, b.State.(*State), p.board)
}

func (p *Scalar) NewTaskList(m *mesh.Mesh) mesh.TaskList {
	return &advectList{m: m}
}

// ProblemGenerator fills the block with a gaussian pulse.
func (p *Scalar) ProblemGenerator(b *mesh.Block) error {
	s := b.State.(*State)
	for k := b.KS; k <= b.KE; k++ {
		for j := b.JS; j <= b.JE; j++ {
			for i := b.IS; i <= b.IE; i++ {
				x := b.Size.X1Min + (float64(i-b.IS)+0.5)*s.dx1
				r2 := (x - p.X10) * (x - p.X10)
				if b.Size.NX2 > 1 {
					y := b.Size.X2Min + (float64(j-b.JS)+0.5)*s.dx2
					r2 += (y - p.X20) * (y - p.X20)
				}
				if b.Size.NX3 > 1 {
					z := b.Size.X3Min + (float64(k-b.KS)+0.5)*s.dx3
					r2 += (z - p.X30) * (z - p.X30)
				}
				s.U[s.Idx(i, j, k)] = p.Amp * math.Exp(-r2/(p.Sigma*p.Sigma))
			}
		}
	}
	return nil
}

// TotalIntegral returns the domain integral of the scalar, summed across
// the cohort. The call is collective; every rank must enter it together.
func (p *Scalar) TotalIntegral(m *mesh.Mesh) float64 {
	local := 0.0
	for _, b := range m.Blocks {
		s := b.State.(*State)
		vol := s.dx1
		if b.Size.NX2 > 1 {
			vol *= s.dx2
		}
		if b.Size.NX3 > 1 {
			vol *= s.dx3
		}
		for k := b.KS; k <= b.KE; k++ {
			for j := b.JS; j <= b.JE; j++ {
				for i := b.IS; i <= b.IE; i++ {
					local += s.U[s.Idx(i, j, k)] * vol
				}
			}
		}
	}
	return parallel.AllreduceSum(m.Comm, m.Rank, []float64{local})[0]
}

// RefineFlag requests refinement where the scalar jumps sharply between
// adjacent cells and permits coarsening where the field is nearly flat.
func (p *Scalar) RefineFlag(b *mesh.Block) int {
	s := b.State.(*State)
	maxd := 0.0
	for k := b.KS; k <= b.KE; k++ {
		for j := b.JS; j <= b.JE; j++ {
			for i := b.IS; i <= b.IE; i++ {
				c := s.U[s.Idx(i, j, k)]
				if i < b.IE {
					maxd = math.Max(maxd, math.Abs(s.U[s.Idx(i+1, j, k)]-c))
				}
				if b.Size.NX2 > 1 && j < b.JE {
					maxd = math.Max(maxd, math.Abs(s.U[s.Idx(i, j+1, k)]-c))
				}
				if b.Size.NX3 > 1 && k < b.KE {
					maxd = math.Max(maxd, math.Abs(s.U[s.Idx(i, j, k+1)]-c))
				}
			}
		}
	}
	if maxd > p.RefineThreshold {
		return 1
	}
	if maxd < p.RefineThreshold/4.0 {
		return -1
	}
	return 0
}
