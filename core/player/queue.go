package player

import (
	"errors"
	"sync"
)

// ErrNotInQueue is returned when playback is started at an id absent from
// the supplied order. This indicates a caller bug, not a user-facing failure.
var ErrNotInQueue = errors.New("player: start id not in queue")

// Queue holds an ordered, finite sequence of track ids plus the active
// pointer. Navigation is circular: stepping past either end wraps around,
// so a non-empty queue always yields a playable id.
type Queue struct {
	mu        sync.Mutex
	order     []int64
	activeIdx int // -1 when no track is active
}

// NewQueue creates an empty queue with no active track.
func NewQueue() *Queue {
	return &Queue{activeIdx: -1}
}

// StartFrom replaces the queue wholesale with the given order and activates
// startID. The order is taken as supplied; duplicates are kept. Fails with
// ErrNotInQueue when startID is not an element of order.
func (q *Queue) StartFrom(order []int64, startID int64) error {
	idx := -1
	for i, id := range order {
		if id == startID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrNotInQueue
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.order = append([]int64(nil), order...)
	q.activeIdx = idx
	return nil
}

// Next advances to the element after the current one, wrapping to the first
// after the last. With no active track it selects the first element. On an
// empty queue it is a no-op and reports no active id.
func (q *Queue) Next() (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 {
		return 0, false
	}
	if q.activeIdx == -1 {
		q.activeIdx = 0
	} else {
		q.activeIdx = (q.activeIdx + 1) % len(q.order)
	}
	return q.order[q.activeIdx], true
}

// Previous steps to the element before the current one, wrapping to the last
// before the first. Symmetric to Next.
func (q *Queue) Previous() (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 {
		return 0, false
	}
	if q.activeIdx == -1 {
		q.activeIdx = len(q.order) - 1
	} else {
		q.activeIdx = (q.activeIdx - 1 + len(q.order)) % len(q.order)
	}
	return q.order[q.activeIdx], true
}

// Clear drops the active pointer but preserves the order. This distinguishes
// "stopped" from "queue discarded".
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.activeIdx = -1
}

// Active returns the currently active track id, if any.
func (q *Queue) Active() (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.activeIdx == -1 {
		return 0, false
	}
	return q.order[q.activeIdx], true
}

// Order returns a copy of the queued track ids.
func (q *Queue) Order() []int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]int64(nil), q.order...)
}

// Snapshot captures the queue state for persistence.
func (q *Queue) Snapshot() (order []int64, activeID *int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	order = append([]int64(nil), q.order...)
	if q.activeIdx != -1 {
		id := q.order[q.activeIdx]
		activeID = &id
	}
	return order, activeID
}

// Restore replaces the queue state from a persisted snapshot. An active id
// not present in the order is discarded rather than trusted.
func (q *Queue) Restore(order []int64, activeID *int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.order = append([]int64(nil), order...)
	q.activeIdx = -1
	if activeID == nil {
		return
	}
	for i, id := range q.order {
		if id == *activeID {
			q.activeIdx = i
			return
		}
	}
}
