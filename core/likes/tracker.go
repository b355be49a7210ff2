package likes

import (
	"context"
	"fmt"
	"sync"

	"reverbfm/logger"
)

// Event describes one liked-set membership change.
type Event struct {
	UserID string `json:"userId"`
	SongID int64  `json:"songId"`
	Liked  bool   `json:"liked"`
}

// ToggleError reports a failed membership mutation. Transient; safe to retry.
type ToggleError struct {
	Err error
}

func (e *ToggleError) Error() string {
	return fmt.Sprintf("failed to toggle like: %v", e.Err)
}

func (e *ToggleError) Unwrap() error { return e.Err }

// Store is the record-store capability the tracker needs. Insert and delete
// of an already-present or already-absent pair must be no-ops so that rapid
// double toggles cannot duplicate rows.
type Store interface {
	InsertLike(ctx context.Context, userID string, songID int64) error
	DeleteLike(ctx context.Context, userID string, songID int64) error
	IsLiked(ctx context.Context, userID string, songID int64) (bool, error)
}

// Tracker maintains the reactive liked-set membership. Mutations go through
// the record store; every successful change is pushed to that user's
// subscribers so listing views refresh without a reload.
type Tracker struct {
	store Store

	mu          sync.RWMutex
	subscribers map[string]map[int]chan Event
	nextSubID   int
}

// NewTracker creates a tracker over the given store.
func NewTracker(store Store) *Tracker {
	return &Tracker{
		store:       store,
		subscribers: make(map[string]map[int]chan Event),
	}
}

// IsLiked reports whether the (user, song) pair is in the liked set.
func (t *Tracker) IsLiked(ctx context.Context, userID string, songID int64) (bool, error) {
	return t.store.IsLiked(ctx, userID, songID)
}

// Toggle flips the membership of the (user, song) pair and returns the
// resulting state: true when the pair was inserted, false when removed.
func (t *Tracker) Toggle(ctx context.Context, userID string, songID int64) (bool, error) {
	liked, err := t.store.IsLiked(ctx, userID, songID)
	if err != nil {
		return false, &ToggleError{Err: err}
	}

	if liked {
		if err := t.store.DeleteLike(ctx, userID, songID); err != nil {
			return false, &ToggleError{Err: err}
		}
	} else {
		if err := t.store.InsertLike(ctx, userID, songID); err != nil {
			return false, &ToggleError{Err: err}
		}
	}

	now := !liked
	t.publish(Event{UserID: userID, SongID: songID, Liked: now})
	return now, nil
}

// Subscribe registers a listener for the given user's membership changes.
// The returned cancel function must be called to release the subscription.
func (t *Tracker) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, 8)

	t.mu.Lock()
	if t.subscribers[userID] == nil {
		t.subscribers[userID] = make(map[int]chan Event)
	}
	id := t.nextSubID
	t.nextSubID++
	t.subscribers[userID][id] = ch
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		if subs, ok := t.subscribers[userID]; ok {
			if _, live := subs[id]; live {
				delete(subs, id)
				close(ch)
				if len(subs) == 0 {
					delete(t.subscribers, userID)
				}
			}
		}
		t.mu.Unlock()
	}
	return ch, cancel
}

// publish fans the event out to the user's subscribers without blocking;
// a subscriber that cannot keep up misses the event rather than stalling
// the toggle.
func (t *Tracker) publish(ev Event) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, ch := range t.subscribers[ev.UserID] {
		select {
		case ch <- ev:
		default:
			logger.Warn("Dropping like event for slow subscriber",
				logger.String("userId", ev.UserID),
				logger.Int64("songId", ev.SongID))
		}
	}
}
