// Package parallel provides the rank identity and the in-process collective
// communication primitives used to coordinate a cohort of mesh ranks. Each
// rank runs on its own goroutine; the collectives are blocking and act as
// synchronization points, the same role the MPI collectives play in a
// multi-process deployment.
package parallel

import (
	"fmt"
	"log"
)

// Rank identifies one member of the cohort. It is passed explicitly into
// every constructor and algorithm that needs it; there is no ambient global
// process identity.
type Rank struct {
	ID     int // 0-based rank index
	NRanks int // cohort size
}

func NewRank(id, nranks int) Rank {
	if nranks < 1 || id < 0 || id >= nranks {
		panic(fmt.Sprintf("invalid rank %d of %d", id, nranks))
	}
	return Rank{ID: id, NRanks: nranks}
}

// Root reports whether this is rank 0, which owns cohort-wide diagnostics.
func (r Rank) Root() bool { return r.ID == 0 }

// Logf writes a rank-prefixed diagnostic line.
func (r Rank) Logf(format string, args ...interface{}) {
	log.Printf("rank %d: %s", r.ID, fmt.Sprintf(format, args...))
}

// RootLogf writes a diagnostic line from rank 0 only, for messages that are
// identical on every rank.
func (r Rank) RootLogf(format string, args ...interface{}) {
	if r.Root() {
		log.Printf(format, args...)
	}
}
