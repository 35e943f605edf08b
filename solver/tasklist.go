package solver

import "github.com/notargets/gamr/mesh"

// Task ids, executed strictly in order within one step.
const (
	taskSend = iota
	taskReceive
	taskPhysBC
	taskIntegrate
	taskNewDT
	numTasks
)

// advectList sequences one advection step per block. Only taskReceive can
// report stuck; everything else runs unconditionally once its predecessor
// has finished.
type advectList struct {
	m *mesh.Mesh
}

func (tl *advectList) NTasks() int { return numTasks }

func (tl *advectList) DoOneTask(b *mesh.Block) mesh.TaskStatus {
	next := numTasks - b.TS.NumTasksLeft
	switch next {
	case taskSend:
		b.BVals.SendBoundaryBuffers()
	case taskReceive:
		if !b.BVals.ReceiveBoundaryBuffers() {
			return mesh.TaskStuck
		}
	case taskPhysBC:
		b.BVals.ApplyPhysicalBoundaries()
	case taskIntegrate:
		b.State.(*State).advect(b, tl.m.DT)
	case taskNewDT:
		b.NewBlockDT = b.State.NewBlockTimeStep(b)
	}
	b.TS.Finished |= 1 << uint(next)
	b.TS.NumTasksLeft--
	if b.TS.NumTasksLeft == 0 {
		return mesh.TaskComplete
	}
	return mesh.TaskRunning
}

// advect applies one first-order upwind update over the active zones.
func (s *State) advect(b *mesh.Block, dt float64) {
	old := make([]float64, len(s.U))
	copy(old, s.U)
	upwind := func(v, um, u, up, dx float64) float64 {
		if v > 0 {
			return v * (u - um) / dx
		}
		return v * (up - u) / dx
	}
	for k := b.KS; k <= b.KE; k++ {
		for j := b.JS; j <= b.JE; j++ {
			for i := b.IS; i <= b.IE; i++ {
				du := upwind(s.phys.VX1, old[s.Idx(i-1, j, k)],
					old[s.Idx(i, j, k)], old[s.Idx(i+1, j, k)], s.dx1)
				if b.Size.NX2 > 1 {
					du += upwind(s.phys.VX2, old[s.Idx(i, j-1, k)],
						old[s.Idx(i, j, k)], old[s.Idx(i, j+1, k)], s.dx2)
				}
				if b.Size.NX3 > 1 {
					du += upwind(s.phys.VX3, old[s.Idx(i, j, k-1)],
						old[s.Idx(i, j, k)], old[s.Idx(i, j, k+1)], s.dx3)
				}
				s.U[s.Idx(i, j, k)] -= dt * du
			}
		}
	}
}
