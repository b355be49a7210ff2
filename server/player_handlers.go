package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"reverbfm/cache"
	"reverbfm/core/player"
	"reverbfm/logger"
)

// session returns the caller's playback session, restoring a persisted queue
// snapshot from Redis the first time the session is touched.
func (h *APIHandler) session(r *http.Request, caller string) *player.Session {
	s, existed := h.player.Session(caller)
	if existed {
		return s
	}
	snap, err := cache.LoadQueue(r.Context(), caller)
	if err != nil {
		logger.Warn("Failed to load queue snapshot",
			logger.String("userId", caller),
			logger.ErrorField(err))
		return s
	}
	if snap != nil {
		s.Queue.Restore(snap.Order, snap.ActiveID)
	}
	return s
}

// persistQueue pushes the queue state to Redis. Best effort; playback keeps
// working from memory if Redis is down.
func (h *APIHandler) persistQueue(r *http.Request, caller string, q *player.Queue) {
	order, activeID := q.Snapshot()
	if err := cache.SaveQueue(r.Context(), caller, cache.QueueSnapshot{Order: order, ActiveID: activeID}); err != nil {
		logger.Warn("Failed to persist queue snapshot",
			logger.String("userId", caller),
			logger.ErrorField(err))
	}
}

type startQueueRequest struct {
	Order   []int64 `json:"order"`
	StartID int64   `json:"startId"`
}

type activeResponse struct {
	ActiveID *int64 `json:"activeId"`
}

func activeOf(q *player.Queue) activeResponse {
	if id, ok := q.Active(); ok {
		return activeResponse{ActiveID: &id}
	}
	return activeResponse{}
}

// StartQueueHandler replaces the caller's queue with the listing it was
// browsing and activates the chosen track.
func (h *APIHandler) StartQueueHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := userID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Missing user id")
		return
	}

	var req startQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s := h.session(r, caller)
	if err := s.Queue.StartFrom(req.Order, req.StartID); err != nil {
		if errors.Is(err, player.ErrNotInQueue) {
			writeError(w, http.StatusBadRequest, "Start id is not part of the supplied order")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to start playback")
		return
	}

	h.persistQueue(r, caller, s.Queue)
	writeJSON(w, http.StatusOK, activeOf(s.Queue))
}

// NextTrackHandler advances the queue, wrapping past the end.
func (h *APIHandler) NextTrackHandler(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*player.Queue).Next)
}

// PreviousTrackHandler steps the queue back, wrapping past the start.
func (h *APIHandler) PreviousTrackHandler(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*player.Queue).Previous)
}

func (h *APIHandler) navigate(w http.ResponseWriter, r *http.Request, step func(*player.Queue) (int64, bool)) {
	caller, err := userID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Missing user id")
		return
	}

	s := h.session(r, caller)
	step(s.Queue)
	h.persistQueue(r, caller, s.Queue)
	writeJSON(w, http.StatusOK, activeOf(s.Queue))
}

// StopPlaybackHandler drops the active pointer but keeps the queue order, so
// playback can resume from the same listing.
func (h *APIHandler) StopPlaybackHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := userID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Missing user id")
		return
	}

	s := h.session(r, caller)
	s.Queue.Clear()
	s.Resolver.Invalidate()
	h.persistQueue(r, caller, s.Queue)
	writeJSON(w, http.StatusOK, activeOf(s.Queue))
}

// ResolveURLHandler resolves the active track into a playable URL. The
// result is memoized while the same track stays active.
func (h *APIHandler) ResolveURLHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := userID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Missing user id")
		return
	}

	s := h.session(r, caller)
	activeID, ok := s.Queue.Active()
	if !ok {
		writeError(w, http.StatusNotFound, "No track is playing")
		return
	}

	url, err := s.Resolver.Resolve(r.Context(), activeID)
	if err != nil {
		// Queue state is left unchanged so the user can retry or skip.
		if errors.Is(err, player.ErrTrackNotFound) {
			writeError(w, http.StatusNotFound, "Cannot play this track")
			return
		}
		logger.Error("URL resolution failed",
			logger.Int64("trackId", activeID),
			logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, "Cannot play this track")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activeId": activeID,
		"url":      url,
	})
}
