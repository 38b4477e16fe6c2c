package pathkey

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pathkey-service/internal/domain"
)

// EvaluatorStore is what the section evaluator reads and writes.
type EvaluatorStore interface {
	RecordStore
	ProgressStore
	CatalogStore
}

// SectionTwoUnlock names a career whose Section 2 unlocked and the path that did it.
type SectionTwoUnlock struct {
	CareerID string
	Via      domain.MasteryType
}

// PlayerOutcome lists what one player newly earned in one game.
type PlayerOutcome struct {
	PlayerID             string
	StudentID            string
	CareerMastery        bool
	SectionThree         bool
	SectionTwoRecorded   []string
	SectionTwoUnlocks    []SectionTwoUnlock
	SkippedGuest         bool
	SkippedLowAccuracy   bool
	SkippedNoMastery     bool
	SectionTwoLookupMiss bool
}

// Evaluator decides which sections a finished game newly unlocks.
type Evaluator struct {
	store   EvaluatorStore
	tracker *Tracker
	rules   Rules
	logger  *slog.Logger
	now     func() time.Time
}

func NewEvaluator(store EvaluatorStore, tracker *Tracker, rules Rules, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{store: store, tracker: tracker, rules: rules, logger: logger, now: time.Now}
}

// EligibleForCareerMastery applies the Section 1 placement rule.
func (e *Evaluator) EligibleForCareerMastery(session domain.SessionContext, placement, playerCount int) bool {
	if session.Mode != domain.ModeCareer || session.Target.CareerID == "" {
		return false
	}
	if placement < 1 || placement > e.rules.MaxCareerMasteryPlacement {
		return false
	}
	return playerCount >= e.rules.MinPlayersForCareerMastery
}

// Evaluate runs Sections 1 and 2 for one finished player. Guests are skipped.
func (e *Evaluator) Evaluate(ctx context.Context, session domain.SessionContext, player domain.GamePlayer, placement, playerCount int) (PlayerOutcome, error) {
	out := PlayerOutcome{PlayerID: player.ID}
	if player.IsGuest() {
		out.SkippedGuest = true
		return out, nil
	}
	studentID := *player.StudentID
	out.StudentID = studentID

	switch session.Mode {
	case domain.ModeCareer:
		if !e.EligibleForCareerMastery(session, placement, playerCount) {
			return out, nil
		}
		unlocked, sectionThree, err := e.evaluateSectionOne(ctx, studentID, session.Target.CareerID)
		out.CareerMastery = unlocked
		out.SectionThree = sectionThree
		return out, err
	case domain.ModeIndustry, domain.ModeCluster:
		return e.evaluateSectionTwo(ctx, session, player, out)
	default:
		return out, nil
	}
}

func (e *Evaluator) evaluateSectionOne(ctx context.Context, studentID, careerID string) (bool, bool, error) {
	now := e.now()
	_, changed, err := mutatePathkey(ctx, e.store, e.rules.MaxConflictRetries, studentID, careerID, now, unlockCareerMastery(now))
	if err != nil {
		return false, false, fmt.Errorf("unlock career mastery: %w", err)
	}
	if !changed {
		return false, false, nil
	}
	e.logger.Info("career mastery unlocked", "student", studentID, "career", careerID)

	// Drivers mastered before the gate opened unlock Section 3 now.
	sectionThree, err := e.tracker.CheckCompletion(ctx, studentID, careerID)
	if err != nil {
		e.logger.Warn("business driver completion check failed",
			"student", studentID, "career", careerID, "error", err)
		return true, false, nil
	}
	return true, sectionThree, nil
}

func sectionTwoTarget(session domain.SessionContext) (domain.MasteryType, string) {
	switch session.Mode {
	case domain.ModeIndustry:
		return domain.MasteryIndustry, session.Target.SectorID
	case domain.ModeCluster:
		return domain.MasteryCluster, session.Target.ClusterID
	}
	return "", ""
}

func (e *Evaluator) evaluateSectionTwo(ctx context.Context, session domain.SessionContext, player domain.GamePlayer, out PlayerOutcome) (PlayerOutcome, error) {
	studentID := out.StudentID
	masteryType, targetID := sectionTwoTarget(session)
	if targetID == "" {
		e.logger.Warn("session has no sector or cluster target", "session", session.SessionID, "mode", session.Mode)
		out.SectionTwoLookupMiss = true
		return out, nil
	}

	if !e.rules.meetsThreshold(player.CorrectAnswers, player.TotalAnswers) {
		out.SkippedLowAccuracy = true
		return out, nil
	}

	hasAny, err := e.store.HasAnyCareerMastery(ctx, studentID)
	if err != nil {
		return out, fmt.Errorf("check career mastery: %w", err)
	}
	if !hasAny {
		out.SkippedNoMastery = true
		return out, nil
	}

	careers := e.qualifyingCareers(ctx, studentID, masteryType, targetID)
	if len(careers) == 0 {
		out.SectionTwoLookupMiss = true
		return out, nil
	}

	questionSetID := session.QuestionSetID
	if questionSetID == "" {
		questionSetID = session.SessionID
	}
	accuracy := player.Accuracy()

	for _, careerID := range careers {
		unlocked, err := e.recordSectionTwo(ctx, studentID, careerID, masteryType, questionSetID, accuracy)
		if err != nil {
			e.logger.Warn("section two progress failed",
				"student", studentID, "career", careerID, "type", masteryType, "error", err)
			continue
		}
		out.SectionTwoRecorded = append(out.SectionTwoRecorded, careerID)
		if unlocked {
			out.SectionTwoUnlocks = append(out.SectionTwoUnlocks, SectionTwoUnlock{CareerID: careerID, Via: masteryType})
		}
	}
	return out, nil
}

// qualifyingCareers intersects the careers under the target with the careers
// the student already mastered. Lookup failures mean no qualifying careers.
func (e *Evaluator) qualifyingCareers(ctx context.Context, studentID string, masteryType domain.MasteryType, targetID string) []string {
	candidates, err := e.store.FindCareers(ctx, masteryType, targetID)
	if err != nil {
		e.logger.Warn("career lookup failed", "type", masteryType, "target", targetID, "error", err)
		return nil
	}
	if len(candidates) == 0 {
		e.logger.Info("no careers found for target", "type", masteryType, "target", targetID)
		return nil
	}

	mastered, err := e.store.ListCareerMasteries(ctx, studentID)
	if err != nil {
		e.logger.Warn("career mastery lookup failed", "student", studentID, "error", err)
		return nil
	}
	owned := make(map[string]struct{}, len(mastered))
	for _, id := range mastered {
		owned[id] = struct{}{}
	}

	var out []string
	seen := make(map[string]struct{}, len(candidates))
	for _, id := range candidates {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := owned[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (e *Evaluator) recordSectionTwo(ctx context.Context, studentID, careerID string, masteryType domain.MasteryType, questionSetID string, accuracy float64) (bool, error) {
	now := e.now()
	inserted, err := e.store.AppendSectionTwoProgress(ctx, domain.SectionTwoProgress{
		ID:            uuid.NewString(),
		StudentID:     studentID,
		CareerID:      careerID,
		MasteryType:   masteryType,
		QuestionSetID: questionSetID,
		Accuracy:      accuracy,
		CreatedAt:     now,
	})
	if err != nil {
		return false, fmt.Errorf("append progress: %w", err)
	}
	if !inserted {
		e.logger.Debug("duplicate section two completion ignored",
			"student", studentID, "career", careerID, "questionSet", questionSetID)
	}

	count, err := e.store.CountSectionTwoProgress(ctx, studentID, careerID, masteryType, e.rules.AccuracyThreshold)
	if err != nil {
		return false, fmt.Errorf("count progress: %w", err)
	}
	if count < e.rules.SectionTwoRequired {
		return false, nil
	}

	_, changed, err := mutatePathkey(ctx, e.store, e.rules.MaxConflictRetries, studentID, careerID, now, unlockSectionTwo(masteryType, now))
	if err != nil {
		return false, fmt.Errorf("unlock section two: %w", err)
	}
	if changed {
		e.logger.Info("section two unlocked", "student", studentID, "career", careerID, "via", masteryType)
	}
	return changed, nil
}
