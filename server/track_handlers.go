package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"reverbfm/core/ingest"
	"reverbfm/logger"
	"reverbfm/model"
	"reverbfm/storage"
)

// maxUploadSize bounds one multipart submission (audio + cover + fields).
const maxUploadSize = 60 << 20 // 60MB

// UploadTrackHandler accepts a multipart form with title, author, a song
// file and an image file, and runs the ingestion sequence.
func (h *APIHandler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	owner, err := userID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Missing user id")
		return
	}

	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		logger.Warn("Failed to parse upload form",
			logger.String("ownerId", owner),
			logger.ErrorField(err))
		writeError(w, http.StatusBadRequest, "Failed to parse upload form")
		return
	}

	songData, songContentType, err := readFormFile(r, "song")
	if err != nil && err != http.ErrMissingFile {
		writeError(w, http.StatusBadRequest, "Failed to read song file")
		return
	}
	imageData, imageContentType, err := readFormFile(r, "image")
	if err != nil && err != http.ErrMissingFile {
		writeError(w, http.StatusBadRequest, "Failed to read image file")
		return
	}

	track, err := h.coordinator.Ingest(r.Context(), ingest.Request{
		OwnerID:          owner,
		Title:            r.FormValue("title"),
		Author:           r.FormValue("author"),
		SongData:         songData,
		ImageData:        imageData,
		SongContentType:  songContentType,
		ImageContentType: imageContentType,
	})
	if err != nil {
		h.writeIngestError(w, owner, err)
		return
	}

	logger.Info("Upload completed",
		logger.Int64("trackId", track.ID),
		logger.String("ownerId", owner),
		logger.Duration("elapsed", time.Since(start)))
	writeJSON(w, http.StatusCreated, track)
}

// writeIngestError maps the ingestion error taxonomy onto HTTP statuses and
// user-facing messages.
func (h *APIHandler) writeIngestError(w http.ResponseWriter, owner string, err error) {
	var verr *ingest.ValidationError
	var berr *ingest.BlobWriteError
	var rerr *ingest.RecordWriteError

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "Missing fields")
	case errors.As(err, &berr):
		if errors.Is(err, storage.ErrObjectExists) {
			writeError(w, http.StatusConflict, "A file with this name already exists, please retry")
			return
		}
		if berr.Stage == ingest.StageSong {
			writeError(w, http.StatusBadGateway, "Failed to upload song")
		} else {
			writeError(w, http.StatusBadGateway, "Failed to upload image")
		}
	case errors.As(err, &rerr):
		// The record store's message is shown verbatim.
		writeError(w, http.StatusInternalServerError, rerr.Error())
	default:
		logger.Error("Unexpected ingest failure",
			logger.String("ownerId", owner),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Something went wrong")
	}
}

func readFormFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, header.Header.Get("Content-Type"), nil
}

// GetTracksHandler lists the caller's library, or searches all tracks by
// title when the title query parameter is present.
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := userID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Missing user id")
		return
	}

	var tracks []*trackView
	if title := r.URL.Query().Get("title"); title != "" {
		rows, err := h.trackRepo.SearchTracksByTitle(r.Context(), title)
		if err != nil {
			logger.Error("Search failed", logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to search tracks")
			return
		}
		tracks = h.toViews(r, rows)
	} else {
		rows, err := h.trackRepo.GetAllTracksByUserID(r.Context(), caller)
		if err != nil {
			logger.Error("Listing failed",
				logger.String("userId", caller),
				logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to list tracks")
			return
		}
		tracks = h.toViews(r, rows)
	}

	writeJSON(w, http.StatusOK, tracks)
}

// GetLikedTracksHandler lists the caller's liked set, most recently liked
// first.
func (h *APIHandler) GetLikedTracksHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := userID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Missing user id")
		return
	}

	rows, err := h.trackRepo.GetLikedTracksByUserID(r.Context(), caller)
	if err != nil {
		logger.Error("Liked listing failed",
			logger.String("userId", caller),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to list liked tracks")
		return
	}
	writeJSON(w, http.StatusOK, h.toViews(r, rows))
}

// trackView is a Track enriched with a fetchable cover image URL for
// listing surfaces.
type trackView struct {
	ID        int64  `json:"id"`
	UserID    string `json:"userId"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	ImageURL  string `json:"imageUrl,omitempty"`
	CreatedAt string `json:"createdAt"`
}

func (h *APIHandler) toViews(r *http.Request, rows []*model.Track) []*trackView {
	views := make([]*trackView, 0, len(rows))
	for _, t := range rows {
		view := &trackView{
			ID:        t.ID,
			UserID:    t.UserID,
			Title:     t.Title,
			Author:    t.Author,
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
		}
		if url, err := h.blobs.ImageURL(r.Context(), t.ImagePath); err == nil {
			view.ImageURL = url
		} else {
			logger.Warn("Failed to presign cover image",
				logger.Int64("trackId", t.ID),
				logger.ErrorField(err))
		}
		views = append(views, view)
	}
	return views
}
