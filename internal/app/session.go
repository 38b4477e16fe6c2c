package app

import (
	"sync"
	"time"

	"pathkey-service/internal/domain"
	"pathkey-service/internal/scoring"
)

// Session is the in-memory live view of a game used for leaderboard fan-out.
type Session struct {
	id           string
	createdAt    time.Time
	now          func() time.Time
	mu           sync.RWMutex
	participants map[string]domain.GamePlayer
	subscribers  map[chan domain.Leaderboard]struct{}
}

func newSession(id string) *Session {
	return newSessionWithClock(id, time.Now)
}

// newSessionWithClock allows deterministic timestamps in tests.
func newSessionWithClock(id string, now func() time.Time) *Session {
	return &Session{
		id:           id,
		createdAt:    now(),
		now:          now,
		participants: make(map[string]domain.GamePlayer),
		subscribers:  make(map[chan domain.Leaderboard]struct{}),
	}
}

func (s *Session) join(player domain.GamePlayer) domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.participants[player.ID] = player
	return s.broadcastLocked()
}

func (s *Session) has(playerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.participants[playerID]
	return ok
}

// applyAnswer replaces the live counters with the stored ones.
func (s *Session) applyAnswer(player domain.GamePlayer) (domain.Leaderboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.participants[player.ID]
	if !ok {
		return domain.Leaderboard{}, domain.ErrParticipantNotFound
	}
	current.Score = player.Score
	current.CorrectAnswers = player.CorrectAnswers
	current.TotalAnswers = player.TotalAnswers
	s.participants[player.ID] = current

	return s.broadcastLocked(), nil
}

func (s *Session) leave(playerID string) domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants, playerID)
	return s.broadcastLocked()
}

// finish sends the final standings and closes every subscription.
func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) isEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants) == 0
}

// IsEmpty reports whether the session has no participants.
func (s *Session) IsEmpty() bool {
	return s.isEmpty()
}

func (s *Session) subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() domain.Leaderboard {
	lb := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- lb:
		default:
			// Slow subscriber: drop its stale update so broadcast never blocks.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
	return lb
}

// snapshotLocked orders entries exactly like final placements.
func (s *Session) snapshotLocked() domain.Leaderboard {
	players := make([]domain.GamePlayer, 0, len(s.participants))
	for _, p := range s.participants {
		players = append(players, p)
	}

	placements := scoring.Resolve(players)
	entries := make([]domain.LeaderboardEntry, 0, len(placements))
	for _, pl := range placements {
		p := s.participants[pl.PlayerID]
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID:    p.ID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
			Correct:     p.CorrectAnswers,
		})
	}

	return domain.Leaderboard{
		GameID:    s.id,
		Entries:   entries,
		UpdatedAt: s.now(),
	}
}
