package runtime

import (
	"time"

	"github.com/wippyai/mesh-runtime/engine"
)

const pageSize = 64 * 1024

// Budget bounds one instance's resource consumption. Zero fields are
// unlimited. Only MaxMemoryBytes and ExecCostLimit are enforced; the table,
// instance, and memory-count fields are accepted and not applied.
// Exhaustion is terminal for the instance: it transitions to a terminal
// state and subsequent calls return ErrUnknownInstance.
type Budget struct {
	// MaxMemoryBytes caps linear memory, rounded down to whole 64KiB
	// pages.
	MaxMemoryBytes uint64
	// MaxTableElements is a cap on elements across guest tables; it is
	// not enforced.
	MaxTableElements uint32
	// MaxInstances is a cap on live module instances within the guest's
	// runtime; it is not enforced.
	MaxInstances uint32
	// MaxTables is a cap on the number of tables; it is not enforced.
	MaxTables uint32
	// MaxMemories is a cap on the number of linear memories; it is not
	// enforced.
	MaxMemories uint32
	// ExecCostLimit caps execution cost per call, metered in wall time.
	ExecCostLimit time.Duration
}

// limits translates the budget into what the engine enforces directly.
func (b Budget) limits() (engine.Limits, error) {
	var l engine.Limits
	if b.MaxMemoryBytes > 0 {
		pages := uint32(b.MaxMemoryBytes / pageSize)
		if pages == 0 {
			return l, ErrBudgetRejected
		}
		l.MemoryPages = pages
	}
	if b.ExecCostLimit < 0 {
		return l, ErrBudgetRejected
	}
	l.ExecTimeout = b.ExecCostLimit
	return l, nil
}
