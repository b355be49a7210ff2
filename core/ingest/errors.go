package ingest

import "fmt"

// Stage identifies which write of the ingestion sequence failed.
type Stage string

const (
	StageSong  Stage = "song"
	StageImage Stage = "image"
)

// ValidationError reports a missing or empty required field. It is returned
// before any write is attempted, so no partial side effects exist.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or empty field: %s", e.Field)
}

// BlobWriteError reports a failed blob write. An earlier-stage blob may
// persist as an orphan; retrying the whole ingestion with a fresh token is
// the recovery path.
type BlobWriteError struct {
	Stage Stage
	Err   error
}

func (e *BlobWriteError) Error() string {
	return fmt.Sprintf("failed to write %s blob: %v", e.Stage, e.Err)
}

func (e *BlobWriteError) Unwrap() error { return e.Err }

// RecordWriteError reports a failed metadata insert after both blobs were
// accepted. Both blobs remain stored as orphans. The store's message is
// carried verbatim for user display.
type RecordWriteError struct {
	Err error
}

func (e *RecordWriteError) Error() string {
	return e.Err.Error()
}

func (e *RecordWriteError) Unwrap() error { return e.Err }
