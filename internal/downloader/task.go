package downloader

import "github.com/brogergvhs/piccomad/internal/catalog"

// TaskState tracks one page through its download lifecycle.
type TaskState int

const (
	// StatePending tasks wait for a worker or for their next attempt.
	StatePending TaskState = iota
	// StateFetching tasks have a request in flight.
	StateFetching
	// StateDescrambling tasks are rebuilding the fetched image.
	StateDescrambling
	// StateDone tasks delivered their page.
	StateDone
	// StateFailed tasks exhausted their attempts or hit a permanent error.
	StateFailed
)

func (s TaskState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetching:
		return "fetching"
	case StateDescrambling:
		return "descrambling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}

	return "unknown"
}

// Terminal reports whether the task has settled for good.
func (s TaskState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// fetchTask is one page's slot in a unit run. A task belongs to the
// worker processing it until it settles; the run only reads it after
// the pool has drained.
type fetchTask struct {
	page     catalog.PageDescriptor
	state    TaskState
	attempts int
	err      error
}
