package mesh

import (
	"io"

	"github.com/notargets/gamr/InputParameters"
)

// TaskStatus reports the outcome of one cooperative task attempt on a
// block.
type TaskStatus int

const (
	// TaskRunning means a task executed and more remain.
	TaskRunning TaskStatus = iota
	// TaskStuck means no runnable task was found, typically because a
	// boundary receive has not arrived yet. The caller must move on to
	// another block and retry later.
	TaskStuck
	// TaskComplete means every task on the block has finished this step.
	TaskComplete
)

// TaskState is the per-block bookkeeping a TaskList drives. FirstTask
// remembers where the last sweep stopped so polling resumes there,
// Finished is a bitmask of completed task ids.
type TaskState struct {
	FirstTask    int
	NumTasksLeft int
	Finished     uint64
}

// TaskList sequences the work one time step performs on a block. DoOneTask
// must be safe to call repeatedly on a stuck block.
type TaskList interface {
	NTasks() int
	DoOneTask(b *Block) TaskStatus
}

// FieldState is the solver-owned payload attached to a block. The mesh
// moves it across refinement and restart without knowing its contents.
type FieldState interface {
	// NewBlockTimeStep returns the stable dt for this block's data.
	NewBlockTimeStep(b *Block) float64
	// PayloadBytes is the exact size WritePayload produces, needed for
	// restart record accounting before any data is written.
	PayloadBytes() int
	WritePayload(w io.Writer) error
	ReadPayload(r io.Reader) error
}

// BoundaryValues exchanges ghost regions with the neighbors recorded on a
// block. Calls follow the fixed step cycle: StartReceiving, Send, Receive,
// Clear.
type BoundaryValues interface {
	StartReceiving()
	SendBoundaryBuffers()
	// ReceiveBoundaryBuffers returns false while any expected buffer is
	// still in flight.
	ReceiveBoundaryBuffers() bool
	ApplyPhysicalBoundaries()
	ClearBoundary()
}

// Physics plugs a solver into the mesh. The mesh calls it at block
// creation, at problem setup, and when the refinement pass asks each block
// whether it wants to change level.
type Physics interface {
	Name() string
	NewState(b *Block, pin *InputParameters.ParameterInput) (FieldState, error)
	NewBoundaryValues(b *Block) BoundaryValues
	NewTaskList(m *Mesh) TaskList
	ProblemGenerator(b *Block) error
	// RefineFlag returns 1 to refine, -1 to allow derefinement, 0 to stay.
	RefineFlag(b *Block) int
}
