package pathkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pathkey-service/internal/domain"
)

// TrackerStore is what the business driver tracker reads and writes.
type TrackerStore interface {
	DriverStore
	RecordStore
}

// DriverOutcome describes what one answer did to a driver chunk.
type DriverOutcome struct {
	Progress             domain.BusinessDriverProgress
	Ignored              bool // driver was already mastered
	ChunkCompleted       bool
	NewlyMastered        bool
	SectionThreeUnlocked bool
}

// Tracker maintains the rolling accuracy chunk per (student, career, driver).
type Tracker struct {
	store  TrackerStore
	rules  Rules
	logger *slog.Logger
	now    func() time.Time
}

func NewTracker(store TrackerStore, rules Rules, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, rules: rules, logger: logger, now: time.Now}
}

// Record applies one answer to the driver chunk. Mastered drivers are terminal
// and ignore further answers.
func (t *Tracker) Record(ctx context.Context, studentID, careerID string, driver domain.BusinessDriver, correct bool) (DriverOutcome, error) {
	if !driver.Valid() {
		return DriverOutcome{}, fmt.Errorf("%w: %q", domain.ErrUnknownDriver, driver)
	}

	var (
		out     DriverOutcome
		lastErr error
		saved   bool
	)
	for attempt := 0; attempt < t.rules.MaxConflictRetries; attempt++ {
		current, err := t.store.GetDriverProgress(ctx, studentID, careerID, driver)
		if err != nil {
			return DriverOutcome{}, fmt.Errorf("read driver progress: %w", err)
		}
		if current.Mastered {
			return DriverOutcome{Progress: current, Ignored: true}, nil
		}

		next, chunkDone, mastered := advanceChunk(current, correct, t.rules, t.now())
		stored, err := t.store.SaveDriverProgress(ctx, next)
		if errors.Is(err, domain.ErrVersionConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return DriverOutcome{}, fmt.Errorf("save driver progress: %w", err)
		}
		out = DriverOutcome{Progress: stored, ChunkCompleted: chunkDone, NewlyMastered: mastered}
		saved = true
		break
	}
	if !saved {
		return DriverOutcome{}, fmt.Errorf("save driver progress after %d attempts: %w", t.rules.MaxConflictRetries, lastErr)
	}

	if out.ChunkCompleted && !out.NewlyMastered {
		t.logger.Debug("driver chunk reset",
			"student", studentID, "career", careerID, "driver", driver)
	}
	if !out.NewlyMastered {
		return out, nil
	}

	t.logger.Info("business driver mastered",
		"student", studentID, "career", careerID, "driver", driver)
	unlocked, err := t.CheckCompletion(ctx, studentID, careerID)
	if err != nil {
		return out, err
	}
	out.SectionThreeUnlocked = unlocked
	return out, nil
}

// CheckCompletion unlocks Section 3 once all six drivers are mastered. While
// Section 1 is still locked the unlock stays pending and is retried when
// career mastery unlocks.
func (t *Tracker) CheckCompletion(ctx context.Context, studentID, careerID string) (bool, error) {
	progress, err := t.store.ListDriverProgress(ctx, studentID, careerID)
	if err != nil {
		return false, fmt.Errorf("list driver progress: %w", err)
	}
	if !allDriversMastered(progress) {
		return false, nil
	}

	rec, changed, err := mutatePathkey(ctx, t.store, t.rules.MaxConflictRetries, studentID, careerID, t.now(), unlockBusinessDrivers(t.now()))
	if err != nil {
		return false, err
	}
	if changed {
		t.logger.Info("business driver mastery unlocked", "student", studentID, "career", careerID)
	} else if !rec.CareerMasteryUnlocked {
		t.logger.Info("business driver mastery pending career mastery", "student", studentID, "career", careerID)
	}
	return changed, nil
}

// advanceChunk is the pure chunk transition. It returns the next progress,
// whether the chunk completed, and whether it completed with mastery.
func advanceChunk(p domain.BusinessDriverProgress, correct bool, rules Rules, now time.Time) (domain.BusinessDriverProgress, bool, bool) {
	if p.Mastered {
		return p, false, false
	}

	p.ChunkQuestions++
	if correct {
		p.ChunkCorrect++
	}
	p.UpdatedAt = now

	if p.ChunkQuestions < rules.ChunkSize {
		return p, false, false
	}

	mastered := rules.meetsThreshold(p.ChunkCorrect, rules.ChunkSize)
	if mastered {
		p.Mastered = true
		p.MasteredAt = &now
	}
	p.ChunkQuestions = 0
	p.ChunkCorrect = 0
	return p, true, mastered
}

func allDriversMastered(progress []domain.BusinessDriverProgress) bool {
	mastered := make(map[domain.BusinessDriver]bool, len(progress))
	for _, p := range progress {
		if p.Mastered {
			mastered[p.Driver] = true
		}
	}
	for _, d := range domain.BusinessDrivers {
		if !mastered[d] {
			return false
		}
	}
	return true
}
