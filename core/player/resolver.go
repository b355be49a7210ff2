package player

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"reverbfm/model"
)

// ErrTrackNotFound is returned when the active track's metadata row no
// longer exists, e.g. a stale queue referencing a deleted track.
var ErrTrackNotFound = errors.New("player: track not found")

// ResolutionError reports that a track's stored blob could not be turned
// into a playable URL. The queue state is left untouched so the caller can
// retry or navigate away.
type ResolutionError struct {
	TrackID int64
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve track %d: %v", e.TrackID, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// TrackGetter is the record-store capability the resolver needs.
type TrackGetter interface {
	GetTrackByID(ctx context.Context, id int64) (*model.Track, error)
}

// URLSigner is the blob-store capability the resolver needs.
type URLSigner interface {
	SongURL(ctx context.Context, key string) (string, error)
}

// Resolver memoizes the playable URL of the active track. The cache holds at
// most one entry; it is recomputed only when the active id changes. A resolve
// superseded by one for a different id does not poison the cache
// (last-writer-wins).
type Resolver struct {
	tracks TrackGetter
	blobs  URLSigner

	mu        sync.Mutex
	gen       uint64
	cachedID  int64
	cachedURL string
	hasCache  bool
}

// NewResolver creates a resolver over the given stores.
func NewResolver(tracks TrackGetter, blobs URLSigner) *Resolver {
	return &Resolver{tracks: tracks, blobs: blobs}
}

// Resolve returns the playable URL for the given track id, reusing the
// cached value while the same id stays active.
func (r *Resolver) Resolve(ctx context.Context, trackID int64) (string, error) {
	r.mu.Lock()
	if r.hasCache && r.cachedID == trackID {
		url := r.cachedURL
		r.mu.Unlock()
		return url, nil
	}
	r.gen++
	myGen := r.gen
	r.mu.Unlock()

	track, err := r.tracks.GetTrackByID(ctx, trackID)
	if err != nil {
		return "", &ResolutionError{TrackID: trackID, Err: err}
	}
	if track == nil {
		return "", ErrTrackNotFound
	}

	url, err := r.blobs.SongURL(ctx, track.SongPath)
	if err != nil {
		return "", &ResolutionError{TrackID: trackID, Err: err}
	}

	r.mu.Lock()
	// A newer resolve started while this one was in flight; its id wins the
	// cache slot, so this result is returned but not stored.
	if r.gen == myGen {
		r.cachedID = trackID
		r.cachedURL = url
		r.hasCache = true
	}
	r.mu.Unlock()
	return url, nil
}

// Invalidate discards the cached entry, forcing the next Resolve to
// recompute.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.hasCache = false
	r.gen++
	r.mu.Unlock()
}
