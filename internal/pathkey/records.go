package pathkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pathkey-service/internal/domain"
)

// mutation edits a record in place and reports whether anything changed.
type mutation func(rec *domain.StudentPathkeyRecord) bool

// mutatePathkey applies fn to the current record and saves it with a version
// check, re-reading and re-applying on conflict. A record that does not exist
// is created only when fn changes it.
func mutatePathkey(ctx context.Context, store RecordStore, retries int, studentID, careerID string, now time.Time, fn mutation) (domain.StudentPathkeyRecord, bool, error) {
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		rec, found, err := store.GetStudentPathkey(ctx, studentID, careerID)
		if err != nil {
			return domain.StudentPathkeyRecord{}, false, fmt.Errorf("read pathkey record: %w", err)
		}
		if !found {
			rec = domain.StudentPathkeyRecord{
				StudentID: studentID,
				CareerID:  careerID,
				CreatedAt: now,
			}
		}
		if !fn(&rec) {
			return rec, false, nil
		}
		if err := rec.Validate(); err != nil {
			return rec, false, err
		}
		rec.UpdatedAt = now

		saved, err := store.SaveStudentPathkey(ctx, rec)
		if errors.Is(err, domain.ErrVersionConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return domain.StudentPathkeyRecord{}, false, fmt.Errorf("save pathkey record: %w", err)
		}
		return saved, true, nil
	}
	return domain.StudentPathkeyRecord{}, false, fmt.Errorf("save pathkey record after %d attempts: %w", retries, lastErr)
}

func unlockCareerMastery(at time.Time) mutation {
	return func(rec *domain.StudentPathkeyRecord) bool {
		if rec.CareerMasteryUnlocked {
			return false
		}
		rec.CareerMasteryUnlocked = true
		rec.CareerMasteryUnlockedAt = &at
		return true
	}
}

func unlockSectionTwo(via domain.MasteryType, at time.Time) mutation {
	return func(rec *domain.StudentPathkeyRecord) bool {
		if !rec.CareerMasteryUnlocked || rec.SectionTwoUnlocked() {
			return false
		}
		switch via {
		case domain.MasteryIndustry:
			rec.IndustryMasteryUnlocked = true
		case domain.MasteryCluster:
			rec.ClusterMasteryUnlocked = true
		default:
			return false
		}
		rec.SectionTwoVia = via
		rec.SectionTwoUnlockedAt = &at
		return true
	}
}

func unlockBusinessDrivers(at time.Time) mutation {
	return func(rec *domain.StudentPathkeyRecord) bool {
		if !rec.CareerMasteryUnlocked || rec.BusinessDriverMasteryUnlocked {
			return false
		}
		rec.BusinessDriverMasteryUnlocked = true
		rec.BusinessDriverMasteryUnlockedAt = &at
		return true
	}
}
