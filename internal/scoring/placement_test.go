package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathkey-service/internal/domain"
)

var t0 = time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)

func player(id string, score, correct int, joinOffset time.Duration) domain.GamePlayer {
	return domain.GamePlayer{
		ID:             id,
		Score:          score,
		CorrectAnswers: correct,
		TotalAnswers:   10,
		JoinedAt:       t0.Add(joinOffset),
	}
}

func placementsByID(ps []Placement) map[string]int {
	out := make(map[string]int, len(ps))
	for _, p := range ps {
		out[p.PlayerID] = p.Placement
	}
	return out
}

func TestResolve_TieBreakers(t *testing.T) {
	players := []domain.GamePlayer{
		player("a", 500, 8, 0),
		player("b", 500, 9, time.Second),
		player("c", 300, 5, 2*time.Second),
	}

	got := placementsByID(Resolve(players))
	assert.Equal(t, map[string]int{"b": 1, "a": 2, "c": 3}, got)
}

func TestResolve_EarliestJoinWinsFullTie(t *testing.T) {
	players := []domain.GamePlayer{
		player("late", 100, 4, 5*time.Second),
		player("early", 100, 4, time.Second),
	}

	got := Resolve(players)
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].PlayerID)
	assert.Equal(t, 1, got[0].Placement)
	assert.Equal(t, 2, got[1].Placement)
}

func TestResolve_Deterministic(t *testing.T) {
	players := []domain.GamePlayer{
		player("p1", 10, 1, 0),
		player("p2", 10, 1, 0),
		player("p3", 40, 2, 0),
		player("p4", 10, 3, 0),
	}
	first := Resolve(players)

	reversed := make([]domain.GamePlayer, len(players))
	for i, p := range players {
		reversed[len(players)-1-i] = p
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Resolve(players))
		assert.Equal(t, first, Resolve(reversed))
	}
	assert.Equal(t, "p1", players[0].ID, "input must not be reordered")
}

func TestResolve_NoGaps(t *testing.T) {
	players := []domain.GamePlayer{
		player("a", 0, 0, 0),
		player("b", 0, 0, 0),
		player("c", 0, 0, 0),
	}
	got := Resolve(players)
	for i, p := range got {
		assert.Equal(t, i+1, p.Placement)
	}
}

func TestResolve_Empty(t *testing.T) {
	assert.Empty(t, Resolve(nil))
}
