package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pathkey-service/internal/app"
)

// SessionStore keeps live games in process for leaderboard fan-out and marks
// each one alive in Redis so other instances can tell a game is being hosted.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(gameID string) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[gameID]; ok {
		s.touch(gameID)
		return session
	}
	session := app.NewSession(gameID)
	s.sessions[gameID] = session
	s.touch(gameID)
	return session
}

func (s *SessionStore) Get(gameID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[gameID]
	return session, ok
}

func (s *SessionStore) DeleteIfEmpty(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[gameID]
	if !ok || !session.IsEmpty() {
		return
	}
	delete(s.sessions, gameID)
	_ = s.client.Del(context.Background(), s.key(gameID)).Err()
}

// touch refreshes the liveness marker; best effort.
func (s *SessionStore) touch(gameID string) {
	_ = s.client.Set(context.Background(), s.key(gameID), "1", s.ttl).Err()
}

func (s *SessionStore) key(gameID string) string {
	return "game:session:" + gameID
}
