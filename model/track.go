package model

import "time"

// Track represents one ingested media item in the library.
//
// A Track row exists only if both of the blobs it references were durably
// accepted by the blob store; the ingestion coordinator orders its writes so
// that the metadata record is always the last write.
type Track struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	SongPath  string    `json:"songPath"`  // object key in the songs bucket, set once at ingestion
	ImagePath string    `json:"imagePath"` // object key in the images bucket, set once at ingestion
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
