// Package scoring ranks finished games and derives the token rewards for each player.
package scoring

import (
	"sort"

	"pathkey-service/internal/domain"
)

// Placement is a player's final 1-based rank.
type Placement struct {
	PlayerID  string
	Placement int
}

// Resolve orders players by score desc, correct answers desc, then earliest join.
// Player ID is the last key so identical join timestamps still yield a total order.
// The input slice is left untouched.
func Resolve(players []domain.GamePlayer) []Placement {
	ordered := make([]domain.GamePlayer, len(players))
	copy(ordered, players)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ranksBefore(ordered[i], ordered[j])
	})

	out := make([]Placement, len(ordered))
	for i, p := range ordered {
		out[i] = Placement{PlayerID: p.ID, Placement: i + 1}
	}
	return out
}

func ranksBefore(a, b domain.GamePlayer) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.CorrectAnswers != b.CorrectAnswers {
		return a.CorrectAnswers > b.CorrectAnswers
	}
	if !a.JoinedAt.Equal(b.JoinedAt) {
		return a.JoinedAt.Before(b.JoinedAt)
	}
	return a.ID < b.ID
}
