package scoring

import (
	"fmt"

	"pathkey-service/internal/domain"
)

const (
	DefaultBaseTokens = 10
	tokenScoreDivisor = 10
)

// DefaultPlacementBonuses are the bonuses for placements 1, 2 and 3.
var DefaultPlacementBonuses = []int{50, 30, 10}

// Rewards describes how tokens are computed at the end of a game.
type Rewards struct {
	Base             int
	PlacementBonuses []int
}

// DefaultRewards returns the production reward table.
func DefaultRewards() Rewards {
	return Rewards{
		Base:             DefaultBaseTokens,
		PlacementBonuses: append([]int(nil), DefaultPlacementBonuses...),
	}
}

// Bonus returns the placement bonus; anything outside the table earns nothing.
func (r Rewards) Bonus(placement int) int {
	if placement < 1 || placement > len(r.PlacementBonuses) {
		return 0
	}
	return r.PlacementBonuses[placement-1]
}

// Tokens is base + floor(score/10) + placement bonus.
func (r Rewards) Tokens(score, placement int) int {
	fromScore := 0
	if score > 0 {
		fromScore = score / tokenScoreDivisor
	}
	return r.Base + fromScore + r.Bonus(placement)
}

// Result is the computed, not yet persisted, outcome for one player.
type Result struct {
	Player    domain.GamePlayer
	Placement int
	Tokens    int
}

// Compute resolves placements and tokens in rank order.
func Compute(players []domain.GamePlayer, rewards Rewards) []Result {
	byID := make(map[string]domain.GamePlayer, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	placements := Resolve(players)
	results := make([]Result, 0, len(placements))
	for _, pl := range placements {
		p := byID[pl.PlayerID]
		results = append(results, Result{
			Player:    p,
			Placement: pl.Placement,
			Tokens:    rewards.Tokens(p.Score, pl.Placement),
		})
	}
	return results
}

// Validate checks that bonuses are positive and strictly decreasing.
func (r Rewards) Validate() error {
	if r.Base < 0 {
		return fmt.Errorf("base tokens must not be negative, got %d", r.Base)
	}
	for i, b := range r.PlacementBonuses {
		if b <= 0 {
			return fmt.Errorf("placement bonus %d must be positive, got %d", i+1, b)
		}
		if i > 0 && b >= r.PlacementBonuses[i-1] {
			return fmt.Errorf("placement bonuses must strictly decrease: %v", r.PlacementBonuses)
		}
	}
	return nil
}
