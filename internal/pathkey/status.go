package pathkey

import (
	"context"
	"fmt"

	"pathkey-service/internal/domain"
)

// Status is a read-only view of one student's progress toward a career's pathkey.
type Status struct {
	Record   domain.StudentPathkeyRecord
	Found    bool
	Industry int
	Cluster  int
	Drivers  []domain.BusinessDriverProgress
}

// DriversMastered counts mastered drivers.
func (s Status) DriversMastered() int {
	n := 0
	for _, p := range s.Drivers {
		if p.Mastered {
			n++
		}
	}
	return n
}

// Status reads everything the engine tracks for (studentID, careerID) without changing it.
func (o *Orchestrator) Status(ctx context.Context, studentID, careerID string) (Status, error) {
	var st Status
	rec, found, err := o.store.GetStudentPathkey(ctx, studentID, careerID)
	if err != nil {
		return st, fmt.Errorf("load record: %w", err)
	}
	st.Record, st.Found = rec, found

	if st.Industry, err = o.store.CountSectionTwoProgress(ctx, studentID, careerID, domain.MasteryIndustry, o.rules.AccuracyThreshold); err != nil {
		return st, fmt.Errorf("count industry progress: %w", err)
	}
	if st.Cluster, err = o.store.CountSectionTwoProgress(ctx, studentID, careerID, domain.MasteryCluster, o.rules.AccuracyThreshold); err != nil {
		return st, fmt.Errorf("count cluster progress: %w", err)
	}
	if st.Drivers, err = o.store.ListDriverProgress(ctx, studentID, careerID); err != nil {
		return st, fmt.Errorf("list drivers: %w", err)
	}
	return st, nil
}
