package server

import (
	"net/http"
	"strconv"

	"reverbfm/logger"

	"github.com/gorilla/mux"
)

func songIDFromPath(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

// ToggleLikeHandler flips the caller's like for a song and returns the
// resulting state.
func (h *APIHandler) ToggleLikeHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := userID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Missing user id")
		return
	}

	songID, ok := songIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid song id")
		return
	}

	liked, err := h.tracker.Toggle(r.Context(), caller, songID)
	if err != nil {
		logger.Error("Like toggle failed",
			logger.String("userId", caller),
			logger.Int64("songId", songID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to update like, please retry")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

// IsLikedHandler reports whether the caller has liked a song.
func (h *APIHandler) IsLikedHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := userID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Missing user id")
		return
	}

	songID, ok := songIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid song id")
		return
	}

	liked, err := h.tracker.IsLiked(r.Context(), caller, songID)
	if err != nil {
		logger.Error("Like lookup failed",
			logger.String("userId", caller),
			logger.Int64("songId", songID),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to check like")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}
