package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"reverbfm/model"
)

func trackRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "title", "author", "song_path", "image_path", "created_at", "updated_at",
	})
}

func TestCreateTrack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	repo := NewMySQLTrackRepository(db)

	mock.ExpectPrepare(regexp.QuoteMeta(
		`INSERT INTO songs (user_id, title, author, song_path, image_path) VALUES (?, ?, ?, ?, ?)`,
	)).ExpectExec().
		WithArgs("u1", "Song A", "Artist", "u1/song-Song_A-tok", "u1/image-Song_A-tok").
		WillReturnResult(sqlmock.NewResult(12, 1))

	id, err := repo.CreateTrack(context.Background(), &model.Track{
		UserID:    "u1",
		Title:     "Song A",
		Author:    "Artist",
		SongPath:  "u1/song-Song_A-tok",
		ImagePath: "u1/image-Song_A-tok",
	})
	if err != nil {
		t.Fatalf("CreateTrack: %v", err)
	}
	if id != 12 {
		t.Fatalf("id = %d, want 12", id)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetTrackByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	repo := NewMySQLTrackRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, user_id, title, author, song_path, image_path, created_at, updated_at FROM songs WHERE id = ?`,
	)).WithArgs(int64(5)).
		WillReturnRows(trackRows().AddRow(int64(5), "u1", "Song A", "Artist", "sp", "ip", now, now))

	track, err := repo.GetTrackByID(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetTrackByID: %v", err)
	}
	if track == nil || track.ID != 5 || track.SongPath != "sp" {
		t.Fatalf("unexpected track %+v", track)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetTrackByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	repo := NewMySQLTrackRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, user_id, title, author, song_path, image_path, created_at, updated_at FROM songs WHERE id = ?`,
	)).WithArgs(int64(404)).
		WillReturnRows(trackRows())

	track, err := repo.GetTrackByID(context.Background(), 404)
	if err != nil {
		t.Fatalf("GetTrackByID: %v", err)
	}
	if track != nil {
		t.Fatalf("expected nil track for missing row, got %+v", track)
	}
}

func TestSearchTracksByTitle(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	repo := NewMySQLTrackRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, user_id, title, author, song_path, image_path, created_at, updated_at FROM songs WHERE title LIKE ? ORDER BY created_at DESC`,
	)).WithArgs("%song%").
		WillReturnRows(trackRows().
			AddRow(int64(2), "u2", "Another song", "B", "sp2", "ip2", now, now).
			AddRow(int64(1), "u1", "songbird", "A", "sp1", "ip1", now, now))

	tracks, err := repo.SearchTracksByTitle(context.Background(), "song")
	if err != nil {
		t.Fatalf("SearchTracksByTitle: %v", err)
	}
	if len(tracks) != 2 || tracks[0].ID != 2 {
		t.Fatalf("unexpected tracks %+v", tracks)
	}
}

func TestGetLikedTracksByUserID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	repo := NewMySQLTrackRepository(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT s\.id, s\.user_id, .+ JOIN liked_songs l ON l\.song_id = s\.id`).
		WithArgs("u1").
		WillReturnRows(trackRows().AddRow(int64(3), "u9", "Liked", "C", "sp3", "ip3", now, now))

	tracks, err := repo.GetLikedTracksByUserID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetLikedTracksByUserID: %v", err)
	}
	if len(tracks) != 1 || tracks[0].ID != 3 {
		t.Fatalf("unexpected tracks %+v", tracks)
	}
}

func TestGetAllBlobPaths(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	repo := NewMySQLTrackRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT song_path, image_path FROM songs`)).
		WillReturnRows(sqlmock.NewRows([]string{"song_path", "image_path"}).
			AddRow("u1/song-a", "u1/image-a").
			AddRow("u2/song-b", "u2/image-b"))

	songPaths, imagePaths, err := repo.GetAllBlobPaths(context.Background())
	if err != nil {
		t.Fatalf("GetAllBlobPaths: %v", err)
	}
	if _, ok := songPaths["u1/song-a"]; !ok {
		t.Fatalf("song path missing from set")
	}
	if _, ok := imagePaths["u2/image-b"]; !ok {
		t.Fatalf("image path missing from set")
	}
}
