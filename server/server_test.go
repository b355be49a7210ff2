package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reverbfm/core/ingest"
	"reverbfm/core/likes"
	"reverbfm/core/player"
	"reverbfm/model"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type fakeBlobs struct {
	songs  map[string][]byte
	images map[string][]byte
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{songs: make(map[string][]byte), images: make(map[string][]byte)}
}

func (f *fakeBlobs) PutSong(_ context.Context, key string, payload []byte, _ string) (string, error) {
	f.songs[key] = payload
	return key, nil
}

func (f *fakeBlobs) PutImage(_ context.Context, key string, payload []byte, _ string) (string, error) {
	f.images[key] = payload
	return key, nil
}

func (f *fakeBlobs) SongURL(_ context.Context, key string) (string, error) {
	return "https://blobs.test/songs/" + key, nil
}

func (f *fakeBlobs) ImageURL(_ context.Context, key string) (string, error) {
	return "https://blobs.test/images/" + key, nil
}

type fakeTrackRepo struct {
	nextID int64
	tracks map[int64]*model.Track
}

func newFakeTrackRepo() *fakeTrackRepo {
	return &fakeTrackRepo{nextID: 1, tracks: make(map[int64]*model.Track)}
}

func (f *fakeTrackRepo) CreateTrack(_ context.Context, track *model.Track) (int64, error) {
	id := f.nextID
	f.nextID++
	stored := *track
	stored.ID = id
	f.tracks[id] = &stored
	return id, nil
}

func (f *fakeTrackRepo) GetTrackByID(_ context.Context, id int64) (*model.Track, error) {
	return f.tracks[id], nil
}

func (f *fakeTrackRepo) GetAllTracksByUserID(_ context.Context, userID string) ([]*model.Track, error) {
	var out []*model.Track
	for _, t := range f.tracks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTrackRepo) SearchTracksByTitle(_ context.Context, title string) ([]*model.Track, error) {
	var out []*model.Track
	for _, t := range f.tracks {
		if strings.Contains(t.Title, title) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTrackRepo) GetLikedTracksByUserID(context.Context, string) ([]*model.Track, error) {
	return nil, nil
}

func (f *fakeTrackRepo) GetAllBlobPaths(context.Context) (map[string]struct{}, map[string]struct{}, error) {
	return map[string]struct{}{}, map[string]struct{}{}, nil
}

type fakeLikeStore struct {
	liked map[string]bool
}

func likeKey(userID string, songID int64) string {
	return fmt.Sprintf("%s/%d", userID, songID)
}

func (f *fakeLikeStore) InsertLike(_ context.Context, userID string, songID int64) error {
	f.liked[likeKey(userID, songID)] = true
	return nil
}

func (f *fakeLikeStore) DeleteLike(_ context.Context, userID string, songID int64) error {
	delete(f.liked, likeKey(userID, songID))
	return nil
}

func (f *fakeLikeStore) IsLiked(_ context.Context, userID string, songID int64) (bool, error) {
	return f.liked[likeKey(userID, songID)], nil
}

type seqIDs struct{ n int }

func (s *seqIDs) NewID() string {
	s.n++
	return fmt.Sprintf("tok-%d", s.n)
}

func newTestRouter(t *testing.T) (*mux.Router, *fakeTrackRepo, *fakeBlobs) {
	t.Helper()
	blobs := newFakeBlobs()
	trackRepo := newFakeTrackRepo()
	coordinator := ingest.NewCoordinator(&seqIDs{}, blobs, trackRepo)
	playerManager := player.NewManager(trackRepo, blobs)
	tracker := likes.NewTracker(&fakeLikeStore{liked: make(map[string]bool)})

	handler := NewAPIHandler(coordinator, trackRepo, playerManager, tracker, blobs)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router, trackRepo, blobs
}

func doJSON(t *testing.T, router *mux.Router, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func multipartUpload(t *testing.T, title, author string, withFiles bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("title", title); err != nil {
		t.Fatalf("write title: %v", err)
	}
	if err := mw.WriteField("author", author); err != nil {
		t.Fatalf("write author: %v", err)
	}
	if withFiles {
		song, err := mw.CreateFormFile("song", "track.mp3")
		if err != nil {
			t.Fatalf("create song part: %v", err)
		}
		song.Write([]byte("audio-bytes"))
		image, err := mw.CreateFormFile("image", "cover.jpg")
		if err != nil {
			t.Fatalf("create image part: %v", err)
		}
		image.Write([]byte("image-bytes"))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadAndList(t *testing.T) {
	router, trackRepo, blobs := newTestRouter(t)

	body, contentType := multipartUpload(t, "First Song", "Some Artist", true)
	req := httptest.NewRequest(http.MethodPost, "/api/songs", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, want %d, body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if len(blobs.songs) != 1 || len(blobs.images) != 1 {
		t.Fatalf("blob writes = %d songs, %d images, want 1 each", len(blobs.songs), len(blobs.images))
	}
	if len(trackRepo.tracks) != 1 {
		t.Fatalf("tracks stored = %d, want 1", len(trackRepo.tracks))
	}

	listRec := doJSON(t, router, http.MethodGet, "/api/songs", "u1", nil)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want %d", listRec.Code, http.StatusOK)
	}
	var views []map[string]any
	if err := json.NewDecoder(listRec.Body).Decode(&views); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("listing size = %d, want 1", len(views))
	}
	if views[0]["title"] != "First Song" {
		t.Errorf("title = %v, want First Song", views[0]["title"])
	}
	url, _ := views[0]["imageUrl"].(string)
	if !strings.HasPrefix(url, "https://blobs.test/images/u1/image-") {
		t.Errorf("imageUrl = %q, want presigned cover URL", url)
	}
}

func TestUploadMissingFieldsRejected(t *testing.T) {
	router, trackRepo, blobs := newTestRouter(t)

	body, contentType := multipartUpload(t, "Only Title", "", false)
	req := httptest.NewRequest(http.MethodPost, "/api/songs", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if got := decodeBody(t, rec)["error"]; got != "Missing fields" {
		t.Errorf("error = %v, want Missing fields", got)
	}
	if len(blobs.songs) != 0 || len(blobs.images) != 0 || len(trackRepo.tracks) != 0 {
		t.Error("rejected upload must not write to any store")
	}
}

func TestUploadRequiresUser(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body, contentType := multipartUpload(t, "A", "B", true)
	req := httptest.NewRequest(http.MethodPost, "/api/songs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func activeID(t *testing.T, rec *httptest.ResponseRecorder) (int64, bool) {
	t.Helper()
	body := decodeBody(t, rec)
	raw, ok := body["activeId"]
	if !ok || raw == nil {
		return 0, false
	}
	return int64(raw.(float64)), true
}

func TestPlayerFlow(t *testing.T) {
	router, trackRepo, _ := newTestRouter(t)
	trackRepo.tracks[102] = &model.Track{ID: 102, UserID: "u1", Title: "s2", SongPath: "u1/song-s2-tok"}
	trackRepo.tracks[103] = &model.Track{ID: 103, UserID: "u1", Title: "s3", SongPath: "u1/song-s3-tok"}

	rec := doJSON(t, router, http.MethodPost, "/api/player/queue", "u1",
		map[string]any{"order": []int64{101, 102, 103}, "startId": 102})
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body.String())
	}
	if id, ok := activeID(t, rec); !ok || id != 102 {
		t.Fatalf("active after start = %d %v, want 102", id, ok)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/player/next", "u1", nil)
	if id, _ := activeID(t, rec); id != 103 {
		t.Fatalf("active after next = %d, want 103", id)
	}

	// Advancing past the last track wraps to the first.
	rec = doJSON(t, router, http.MethodPost, "/api/player/next", "u1", nil)
	if id, _ := activeID(t, rec); id != 101 {
		t.Fatalf("active after wrap = %d, want 101", id)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/player/previous", "u1", nil)
	if id, _ := activeID(t, rec); id != 103 {
		t.Fatalf("active after previous = %d, want 103", id)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/player/url", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if url, _ := body["url"].(string); url != "https://blobs.test/songs/u1/song-s3-tok" {
		t.Errorf("url = %v, want signed song URL", body["url"])
	}

	rec = doJSON(t, router, http.MethodPost, "/api/player/stop", "u1", nil)
	if _, ok := activeID(t, rec); ok {
		t.Fatal("stop must clear the active track")
	}

	rec = doJSON(t, router, http.MethodGet, "/api/player/url", "u1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("resolve after stop status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestStartQueueRejectsForeignStartID(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/player/queue", "u1",
		map[string]any{"order": []int64{1, 2, 3}, "startId": 9})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestResolveMissingTrack(t *testing.T) {
	router, _, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/player/queue", "u1",
		map[string]any{"order": []int64{55}, "startId": 55})
	rec := doJSON(t, router, http.MethodGet, "/api/player/url", "u1", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if got := decodeBody(t, rec)["error"]; got != "Cannot play this track" {
		t.Errorf("error = %v, want Cannot play this track", got)
	}
}

func TestLikesFeedStreamsToggleEvents(t *testing.T) {
	router, _, _ := newTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/likes"

	if _, _, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatal("dial without user id succeeded")
	}

	header := http.Header{}
	header.Set("X-User-ID", "u1")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The handshake response is written before the handler registers the
	// subscription; give it a moment to catch up.
	time.Sleep(100 * time.Millisecond)

	rec := doJSON(t, router, http.MethodPost, "/api/songs/9/like", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d, body %s", rec.Code, rec.Body.String())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev likes.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.UserID != "u1" || ev.SongID != 9 || !ev.Liked {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestLikeToggleAndCheck(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/songs/7/like", "u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d, body %s", rec.Code, rec.Body.String())
	}
	if liked := decodeBody(t, rec)["liked"]; liked != true {
		t.Fatalf("first toggle liked = %v, want true", liked)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/songs/7/like", "u1", nil)
	if liked := decodeBody(t, rec)["liked"]; liked != true {
		t.Fatalf("check liked = %v, want true", liked)
	}

	// The like is per user.
	rec = doJSON(t, router, http.MethodGet, "/api/songs/7/like", "u2", nil)
	if liked := decodeBody(t, rec)["liked"]; liked != false {
		t.Fatalf("other user liked = %v, want false", liked)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/songs/7/like", "u1", nil)
	if liked := decodeBody(t, rec)["liked"]; liked != false {
		t.Fatalf("second toggle liked = %v, want false", liked)
	}
}
