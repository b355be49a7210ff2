package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"reverbfm/logger"
	"reverbfm/model"

	"github.com/google/uuid"
)

// IDGenerator produces collision-resistant unique tokens used to namespace
// uploaded blobs.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator generates 128-bit random tokens.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// BlobStore is the capability the coordinator needs from blob storage.
// Put operations must be non-overwriting: writing an existing key fails
// instead of silently replacing it.
type BlobStore interface {
	PutSong(ctx context.Context, key string, payload []byte, contentType string) (string, error)
	PutImage(ctx context.Context, key string, payload []byte, contentType string) (string, error)
}

// TrackStore is the capability the coordinator needs from the record store.
type TrackStore interface {
	CreateTrack(ctx context.Context, track *model.Track) (int64, error)
}

// Request carries everything needed to ingest one media item.
type Request struct {
	OwnerID          string
	Title            string
	Author           string
	SongData         []byte
	ImageData        []byte
	SongContentType  string
	ImageContentType string
}

// Coordinator commits a submitted media item across two blob buckets and the
// record store as a single logical operation.
//
// The three writes run strictly in sequence with the metadata record last, so
// a Track row is never visible unless both blobs it references already exist.
// Completed writes are not rolled back on a later failure; a failed ingestion
// may leave orphaned blobs behind, which is a storage-cost leak only.
type Coordinator struct {
	ids    IDGenerator
	blobs  BlobStore
	tracks TrackStore
}

// NewCoordinator creates an ingestion coordinator.
func NewCoordinator(ids IDGenerator, blobs BlobStore, tracks TrackStore) *Coordinator {
	return &Coordinator{ids: ids, blobs: blobs, tracks: tracks}
}

var (
	nonAlphaNumeric = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)
	multipleSpaces  = regexp.MustCompile(`\s+`)
)

// safeTitle sanitizes a display title into an object-key-friendly form.
func safeTitle(title string) string {
	base := strings.TrimSpace(title)
	base = multipleSpaces.ReplaceAllString(base, "_")
	base = nonAlphaNumeric.ReplaceAllString(base, "")

	const maxLength = 100
	if len(base) > maxLength {
		base = base[:maxLength]
	}
	if base == "" {
		base = "untitled"
	}
	return base
}

// Ingest validates the request, writes the song blob, the image blob and the
// metadata record in that order, and returns the created Track. Each failure
// mode maps to one of ValidationError, BlobWriteError or RecordWriteError.
func (c *Coordinator) Ingest(ctx context.Context, req Request) (*model.Track, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	token := c.ids.NewID()
	title := safeTitle(req.Title)
	songKey := fmt.Sprintf("%s/song-%s-%s", req.OwnerID, title, token)
	imageKey := fmt.Sprintf("%s/image-%s-%s", req.OwnerID, title, token)

	songContentType := req.SongContentType
	if songContentType == "" {
		songContentType = "audio/mpeg"
	}
	imageContentType := req.ImageContentType
	if imageContentType == "" {
		imageContentType = "image/jpeg"
	}

	songPath, err := c.blobs.PutSong(ctx, songKey, req.SongData, songContentType)
	if err != nil {
		logger.Error("Song blob write failed",
			logger.String("ownerId", req.OwnerID),
			logger.String("key", songKey),
			logger.ErrorField(err))
		return nil, &BlobWriteError{Stage: StageSong, Err: err}
	}

	imagePath, err := c.blobs.PutImage(ctx, imageKey, req.ImageData, imageContentType)
	if err != nil {
		// The song blob written above stays behind as an orphan.
		logger.Error("Image blob write failed, song blob orphaned",
			logger.String("ownerId", req.OwnerID),
			logger.String("orphanedSongKey", songPath),
			logger.ErrorField(err))
		return nil, &BlobWriteError{Stage: StageImage, Err: err}
	}

	track := &model.Track{
		UserID:    req.OwnerID,
		Title:     req.Title,
		Author:    req.Author,
		SongPath:  songPath,
		ImagePath: imagePath,
	}
	id, err := c.tracks.CreateTrack(ctx, track)
	if err != nil {
		// Both blobs stay behind as orphans.
		logger.Error("Track record write failed, both blobs orphaned",
			logger.String("ownerId", req.OwnerID),
			logger.String("orphanedSongKey", songPath),
			logger.String("orphanedImageKey", imagePath),
			logger.ErrorField(err))
		return nil, &RecordWriteError{Err: err}
	}
	track.ID = id

	logger.Info("Track ingested",
		logger.Int64("trackId", id),
		logger.String("ownerId", req.OwnerID),
		logger.String("title", req.Title))
	return track, nil
}

func validate(req Request) error {
	switch {
	case strings.TrimSpace(req.OwnerID) == "":
		return &ValidationError{Field: "ownerId"}
	case strings.TrimSpace(req.Title) == "":
		return &ValidationError{Field: "title"}
	case strings.TrimSpace(req.Author) == "":
		return &ValidationError{Field: "author"}
	case len(req.SongData) == 0:
		return &ValidationError{Field: "song"}
	case len(req.ImageData) == 0:
		return &ValidationError{Field: "image"}
	}
	return nil
}
