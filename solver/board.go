// Package solver provides a passive-scalar advection solver used to drive
// the mesh: it supplies the field state, the ghost-zone exchange and the
// per-step task list the mesh framework requires from its physics
// collaborator.
package solver

import "sync"

type slotKey struct {
	GID   int
	BufID int
}

// ExchangeBoard is the in-process transport for boundary data. A sender
// posts under the receiving block's global id and the target buffer slot;
// the receiver polls for its own (gid, slot) pairs. One board is shared by
// the whole cohort, so posts and takes cross rank goroutines.
type ExchangeBoard struct {
	mu    sync.Mutex
	slots map[slotKey][]float64
}

func NewExchangeBoard() *ExchangeBoard {
	return &ExchangeBoard{slots: make(map[slotKey][]float64)}
}

// Post delivers data for the given block and buffer slot. Posting over an
// untaken slot is a protocol violation and panics; the step cycle clears
// every slot before it can be refilled.
func (eb *ExchangeBoard) Post(gid, bufid int, data []float64) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	k := slotKey{GID: gid, BufID: bufid}
	if _, exists := eb.slots[k]; exists {
		panic("boundary buffer posted twice without an intervening take")
	}
	eb.slots[k] = data
}

// Take removes and returns the data for (gid, bufid), or reports that it
// has not arrived yet.
func (eb *ExchangeBoard) Take(gid, bufid int) ([]float64, bool) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	k := slotKey{GID: gid, BufID: bufid}
	data, ok := eb.slots[k]
	if ok {
		delete(eb.slots, k)
	}
	return data, ok
}
