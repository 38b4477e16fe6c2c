// Package pathkey awards the three Pathkey sections: career mastery from game
// placement, industry/cluster mastery from accurate question-set completions,
// and business driver mastery from per-answer chunk tracking.
package pathkey

import (
	"fmt"

	"pathkey-service/internal/scoring"
)

const (
	DefaultMinPlayers          = 3
	DemoMinPlayers             = 1
	DefaultMaxPlacement        = 3
	DefaultAccuracyThreshold   = 0.90
	DefaultSectionTwoRequired  = 3
	DefaultChunkSize           = 5
	DefaultMaxConflictRetries  = 3
	DefaultEvaluateParallelism = 4

	accuracyEpsilon = 1e-9
)

// Rules are the tunable business rules of the award engine.
type Rules struct {
	// MinPlayersForCareerMastery is 3 in production and relaxed to 1 for demos.
	MinPlayersForCareerMastery int
	MaxCareerMasteryPlacement  int
	AccuracyThreshold          float64
	SectionTwoRequired         int
	ChunkSize                  int
	MaxConflictRetries         int
	Parallelism                int
	Rewards                    scoring.Rewards
}

// DefaultRules returns the production rule set.
func DefaultRules() Rules {
	return Rules{
		MinPlayersForCareerMastery: DefaultMinPlayers,
		MaxCareerMasteryPlacement:  DefaultMaxPlacement,
		AccuracyThreshold:          DefaultAccuracyThreshold,
		SectionTwoRequired:         DefaultSectionTwoRequired,
		ChunkSize:                  DefaultChunkSize,
		MaxConflictRetries:         DefaultMaxConflictRetries,
		Parallelism:                DefaultEvaluateParallelism,
		Rewards:                    scoring.DefaultRewards(),
	}
}

// Validate rejects rule sets the engine cannot run with.
func (r Rules) Validate() error {
	switch {
	case r.MinPlayersForCareerMastery < 1:
		return fmt.Errorf("min players must be at least 1, got %d", r.MinPlayersForCareerMastery)
	case r.MaxCareerMasteryPlacement < 1:
		return fmt.Errorf("max placement must be at least 1, got %d", r.MaxCareerMasteryPlacement)
	case r.AccuracyThreshold <= 0 || r.AccuracyThreshold > 1:
		return fmt.Errorf("accuracy threshold must be in (0,1], got %v", r.AccuracyThreshold)
	case r.SectionTwoRequired < 1:
		return fmt.Errorf("section two requirement must be at least 1, got %d", r.SectionTwoRequired)
	case r.ChunkSize < 1:
		return fmt.Errorf("chunk size must be at least 1, got %d", r.ChunkSize)
	case r.MaxConflictRetries < 1:
		return fmt.Errorf("conflict retries must be at least 1, got %d", r.MaxConflictRetries)
	case r.Parallelism < 1:
		return fmt.Errorf("parallelism must be at least 1, got %d", r.Parallelism)
	}
	return r.Rewards.Validate()
}

// meetsThreshold compares correct/total against the accuracy threshold without
// losing exact ratios like 9/10 to float rounding.
func (r Rules) meetsThreshold(correct, total int) bool {
	if total <= 0 {
		return false
	}
	return float64(correct)+accuracyEpsilon >= r.AccuracyThreshold*float64(total)
}
