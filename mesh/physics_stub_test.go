package mesh

import (
	"encoding/binary"
	"io"

	"github.com/notargets/gamr/InputParameters"
)

// stubPhysics satisfies Physics with inert state, instant boundary
// exchange and per-location refinement flags set by the test.
type stubPhysics struct {
	flags map[LogicalLocation]int
}

func newStubPhysics() *stubPhysics {
	return &stubPhysics{flags: make(map[LogicalLocation]int)}
}

func locSignature(loc LogicalLocation) float64 {
	return float64(loc.Level)*1000 + float64(loc.LX1)*100 +
		float64(loc.LX2)*10 + float64(loc.LX3)
}

type stubState struct {
	vals []float64
}

func (s *stubState) NewBlockTimeStep(*Block) float64 { return 0.5 }
func (s *stubState) PayloadBytes() int               { return 8 * len(s.vals) }
func (s *stubState) WritePayload(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, s.vals)
}
func (s *stubState) ReadPayload(r io.Reader) error {
	return binary.Read(r, binary.LittleEndian, s.vals)
}

type stubBVals struct{}

func (stubBVals) StartReceiving()              {}
func (stubBVals) SendBoundaryBuffers()         {}
func (stubBVals) ReceiveBoundaryBuffers() bool { return true }
func (stubBVals) ApplyPhysicalBoundaries()     {}
func (stubBVals) ClearBoundary()               {}

type stubTaskList struct{}

func (stubTaskList) NTasks() int { return 1 }
func (stubTaskList) DoOneTask(b *Block) TaskStatus {
	b.TS.NumTasksLeft--
	return TaskComplete
}

func (p *stubPhysics) Name() string { return "stub" }

func (p *stubPhysics) NewState(b *Block, _ *InputParameters.ParameterInput) (FieldState, error) {
	vals := make([]float64, 8)
	for i := range vals {
		vals[i] = locSignature(b.Loc) + float64(i)
	}
	return &stubState{vals: vals}, nil
}

func (p *stubPhysics) NewBoundaryValues(*Block) BoundaryValues { return stubBVals{} }
func (p *stubPhysics) NewTaskList(*Mesh) TaskList              { return stubTaskList{} }
func (p *stubPhysics) ProblemGenerator(*Block) error           { return nil }

func (p *stubPhysics) RefineFlag(b *Block) int { return p.flags[b.Loc] }
