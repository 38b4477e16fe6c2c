package pathkey

import (
	"context"
	"time"

	"pathkey-service/internal/domain"
)

// SessionStore reads finished games and writes their one-time results.
type SessionStore interface {
	GetSessionContext(ctx context.Context, sessionID string) (domain.SessionContext, error)
	ListPlayers(ctx context.Context, sessionID string) ([]domain.GamePlayer, error)
	// FinalizePlayer writes placement and rewards once; a second call returns domain.ErrAlreadyFinalized.
	FinalizePlayer(ctx context.Context, playerID string, placement int, rewards domain.Rewards) error
	CompleteSession(ctx context.Context, sessionID string, endedAt time.Time) error
}

// RecordStore persists the per-career unlock sections.
type RecordStore interface {
	// GetStudentPathkey returns found=false when no record exists yet.
	GetStudentPathkey(ctx context.Context, studentID, careerID string) (rec domain.StudentPathkeyRecord, found bool, err error)
	// SaveStudentPathkey inserts when rec.Version is zero, otherwise updates only if the
	// stored version still equals rec.Version. Conflicts return domain.ErrVersionConflict.
	SaveStudentPathkey(ctx context.Context, rec domain.StudentPathkeyRecord) (domain.StudentPathkeyRecord, error)
	HasAnyCareerMastery(ctx context.Context, studentID string) (bool, error)
	// ListCareerMasteries returns the career ids with Section 1 unlocked.
	ListCareerMasteries(ctx context.Context, studentID string) ([]string, error)
}

// ProgressStore holds Section 2 evidence.
type ProgressStore interface {
	// AppendSectionTwoProgress reports inserted=false for a duplicate
	// (student, career, mastery type, question set).
	AppendSectionTwoProgress(ctx context.Context, p domain.SectionTwoProgress) (inserted bool, err error)
	CountSectionTwoProgress(ctx context.Context, studentID, careerID string, masteryType domain.MasteryType, minAccuracy float64) (int, error)
}

// DriverStore holds business driver chunks.
type DriverStore interface {
	// GetDriverProgress returns the stored row, creating an empty one first if needed.
	GetDriverProgress(ctx context.Context, studentID, careerID string, driver domain.BusinessDriver) (domain.BusinessDriverProgress, error)
	// SaveDriverProgress updates only if the stored version equals p.Version.
	SaveDriverProgress(ctx context.Context, p domain.BusinessDriverProgress) (domain.BusinessDriverProgress, error)
	ListDriverProgress(ctx context.Context, studentID, careerID string) ([]domain.BusinessDriverProgress, error)
}

// CatalogStore answers content lookups.
type CatalogStore interface {
	// FindQuestionDriverContext returns found=false for questions without a driver tag
	// or outside a career-scoped question set.
	FindQuestionDriverContext(ctx context.Context, questionID string) (qc domain.QuestionDriverContext, found bool, err error)
	// FindCareers lists careers in the sector (industry) or cluster named by targetID.
	FindCareers(ctx context.Context, masteryType domain.MasteryType, targetID string) ([]string, error)
	ListCareerPathkeys(ctx context.Context, careerID string) ([]domain.Pathkey, error)
}

// Store is everything the award engine needs from persistence.
type Store interface {
	SessionStore
	RecordStore
	ProgressStore
	DriverStore
	CatalogStore
}
