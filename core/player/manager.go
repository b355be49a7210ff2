package player

import "sync"

// Session couples one user's playback queue with its URL resolver.
type Session struct {
	Queue    *Queue
	Resolver *Resolver
}

// Manager hands out per-user playback sessions. Sessions are created lazily
// and live for the process lifetime; snapshot persistence happens at the
// transport layer.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	tracks   TrackGetter
	blobs    URLSigner
}

// NewManager creates a session manager over the given stores.
func NewManager(tracks TrackGetter, blobs URLSigner) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		tracks:   tracks,
		blobs:    blobs,
	}
}

// Session returns the playback session for a user, creating it on first use.
// The second result reports whether the session already existed.
func (m *Manager) Session(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s, true
	}
	s := &Session{
		Queue:    NewQueue(),
		Resolver: NewResolver(m.tracks, m.blobs),
	}
	m.sessions[userID] = s
	return s, false
}
