package repository

import (
	"context"
	"database/sql"
	"fmt"

	"reverbfm/model"
)

// TrackRepository defines the interface for track data operations.
type TrackRepository interface {
	CreateTrack(ctx context.Context, track *model.Track) (int64, error)
	GetTrackByID(ctx context.Context, id int64) (*model.Track, error)
	GetAllTracksByUserID(ctx context.Context, userID string) ([]*model.Track, error)
	SearchTracksByTitle(ctx context.Context, title string) ([]*model.Track, error)
	GetLikedTracksByUserID(ctx context.Context, userID string) ([]*model.Track, error)
	GetAllBlobPaths(ctx context.Context) (songPaths, imagePaths map[string]struct{}, err error)
}

// mysqlTrackRepository implements TrackRepository for MySQL.
type mysqlTrackRepository struct {
	DB *sql.DB
}

// NewMySQLTrackRepository creates a new instance of mysqlTrackRepository.
func NewMySQLTrackRepository(db *sql.DB) TrackRepository {
	return &mysqlTrackRepository{DB: db}
}

const trackColumns = `id, user_id, title, author, song_path, image_path, created_at, updated_at`

func scanTrack(row interface{ Scan(dest ...any) error }) (*model.Track, error) {
	track := &model.Track{}
	err := row.Scan(&track.ID, &track.UserID, &track.Title, &track.Author,
		&track.SongPath, &track.ImagePath, &track.CreatedAt, &track.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return track, nil
}

// CreateTrack adds a new track to the database.
func (r *mysqlTrackRepository) CreateTrack(ctx context.Context, track *model.Track) (int64, error) {
	query := `INSERT INTO songs (user_id, title, author, song_path, image_path) VALUES (?, ?, ?, ?, ?)`
	stmt, err := r.DB.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement for CreateTrack: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, track.UserID, track.Title, track.Author, track.SongPath, track.ImagePath)
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateTrack: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for CreateTrack: %w", err)
	}
	return id, nil
}

// GetTrackByID retrieves a track by its ID.
func (r *mysqlTrackRepository) GetTrackByID(ctx context.Context, id int64) (*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM songs WHERE id = ?`
	track, err := scanTrack(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Track not found
		}
		return nil, fmt.Errorf("failed to scan track by ID %d: %w", id, err)
	}
	return track, nil
}

// GetAllTracksByUserID retrieves a user's tracks, newest first.
func (r *mysqlTrackRepository) GetAllTracksByUserID(ctx context.Context, userID string) ([]*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM songs WHERE user_id = ? ORDER BY created_at DESC`
	return r.queryTracks(ctx, query, userID)
}

// SearchTracksByTitle retrieves tracks whose title contains the given text,
// newest first. An empty title matches everything.
func (r *mysqlTrackRepository) SearchTracksByTitle(ctx context.Context, title string) ([]*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM songs WHERE title LIKE ? ORDER BY created_at DESC`
	return r.queryTracks(ctx, query, "%"+title+"%")
}

// GetLikedTracksByUserID retrieves the tracks in a user's liked set, most
// recently liked first.
func (r *mysqlTrackRepository) GetLikedTracksByUserID(ctx context.Context, userID string) ([]*model.Track, error) {
	query := `SELECT s.id, s.user_id, s.title, s.author, s.song_path, s.image_path, s.created_at, s.updated_at
	           FROM songs s
	           JOIN liked_songs l ON l.song_id = s.id
	           WHERE l.user_id = ?
	           ORDER BY l.created_at DESC`
	return r.queryTracks(ctx, query, userID)
}

func (r *mysqlTrackRepository) queryTracks(ctx context.Context, query string, args ...any) ([]*model.Track, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	tracks := make([]*model.Track, 0)
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track row: %w", err)
		}
		tracks = append(tracks, track)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return tracks, nil
}

// GetAllBlobPaths returns the sets of blob keys referenced by any song row.
// The blobs maintenance command diffs these against the bucket listings.
func (r *mysqlTrackRepository) GetAllBlobPaths(ctx context.Context) (map[string]struct{}, map[string]struct{}, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT song_path, image_path FROM songs`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query blob paths: %w", err)
	}
	defer rows.Close()

	songPaths := make(map[string]struct{})
	imagePaths := make(map[string]struct{})
	for rows.Next() {
		var songPath, imagePath string
		if err := rows.Scan(&songPath, &imagePath); err != nil {
			return nil, nil, fmt.Errorf("failed to scan blob paths: %w", err)
		}
		songPaths[songPath] = struct{}{}
		imagePaths[imagePath] = struct{}{}
	}
	if err = rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return songPaths, imagePaths, nil
}
