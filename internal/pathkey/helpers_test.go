package pathkey_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pathkey-service/internal/domain"
	"pathkey-service/internal/infra/memory"
	"pathkey-service/internal/pathkey"
)

var baseTime = time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strptr(s string) *string { return &s }

// newCatalogStore returns a store with two health careers and one tech career.
func newCatalogStore() *memory.Store {
	s := memory.NewStore()
	s.AddCareer(domain.Career{ID: "nurse", SectorID: "health", ClusterID: "health-science"})
	s.AddCareer(domain.Career{ID: "paramedic", SectorID: "health", ClusterID: "health-science"})
	s.AddCareer(domain.Career{ID: "developer", SectorID: "tech", ClusterID: "it"})
	s.AddPathkey(domain.Pathkey{ID: "pk-nurse-gold", CareerID: "nurse", Name: "Nurse", Rarity: "rare"})
	return s
}

type seededPlayer struct {
	id        string
	studentID string
	score     int
	correct   int
	total     int
}

func seedGame(t *testing.T, s *memory.Store, id string, mode domain.GameMode, target domain.ExplorationTarget, questionSetID string, players ...seededPlayer) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateSession(ctx, domain.GameSession{
		ID:            id,
		Mode:          mode,
		Target:        target,
		QuestionSetID: questionSetID,
		Status:        domain.StatusInProgress,
		CreatedAt:     baseTime,
	}))
	for i, p := range players {
		gp := domain.GamePlayer{
			ID:             p.id,
			SessionID:      id,
			DisplayName:    p.id,
			Score:          p.score,
			CorrectAnswers: p.correct,
			TotalAnswers:   p.total,
			JoinedAt:       baseTime.Add(time.Duration(i) * time.Second),
		}
		if p.studentID != "" {
			gp.StudentID = strptr(p.studentID)
		}
		_, err := s.AddPlayer(ctx, gp)
		require.NoError(t, err)
	}
}

// grantCareerMastery plays a winning career game for the student.
func grantCareerMastery(t *testing.T, o *pathkey.Orchestrator, s *memory.Store, studentID, careerID string) {
	t.Helper()
	gameID := "career-" + studentID + "-" + careerID
	seedGame(t, s, gameID, domain.ModeCareer, domain.ExplorationTarget{CareerID: careerID}, "qs-"+careerID,
		seededPlayer{id: gameID + "-p1", studentID: studentID, score: 900, correct: 9, total: 10},
		seededPlayer{id: gameID + "-p2", score: 100, correct: 1, total: 10},
		seededPlayer{id: gameID + "-p3", score: 50, correct: 1, total: 10},
	)
	_, err := o.EndGame(context.Background(), gameID)
	require.NoError(t, err)
}

func record(t *testing.T, s *memory.Store, studentID, careerID string) domain.StudentPathkeyRecord {
	t.Helper()
	rec, _, err := s.GetStudentPathkey(context.Background(), studentID, careerID)
	require.NoError(t, err)
	return rec
}

// faultStore wraps a memory store and fails selected operations.
type faultStore struct {
	*memory.Store
	failGetPathkey   error
	failFinalizeFor  map[string]error
	failFindCareers  error
	conflictsLeft    int
	driverConflicts  int
	panicOnStudentID string
}

func (f *faultStore) GetStudentPathkey(ctx context.Context, studentID, careerID string) (domain.StudentPathkeyRecord, bool, error) {
	if f.panicOnStudentID != "" && studentID == f.panicOnStudentID {
		panic("boom")
	}
	if f.failGetPathkey != nil {
		return domain.StudentPathkeyRecord{}, false, f.failGetPathkey
	}
	return f.Store.GetStudentPathkey(ctx, studentID, careerID)
}

func (f *faultStore) SaveStudentPathkey(ctx context.Context, rec domain.StudentPathkeyRecord) (domain.StudentPathkeyRecord, error) {
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return domain.StudentPathkeyRecord{}, domain.ErrVersionConflict
	}
	return f.Store.SaveStudentPathkey(ctx, rec)
}

func (f *faultStore) SaveDriverProgress(ctx context.Context, p domain.BusinessDriverProgress) (domain.BusinessDriverProgress, error) {
	if f.driverConflicts > 0 {
		f.driverConflicts--
		return domain.BusinessDriverProgress{}, domain.ErrVersionConflict
	}
	return f.Store.SaveDriverProgress(ctx, p)
}

func (f *faultStore) FinalizePlayer(ctx context.Context, playerID string, placement int, rewards domain.Rewards) error {
	if err, ok := f.failFinalizeFor[playerID]; ok {
		return err
	}
	return f.Store.FinalizePlayer(ctx, playerID, placement, rewards)
}

func (f *faultStore) FindCareers(ctx context.Context, masteryType domain.MasteryType, targetID string) ([]string, error) {
	if f.failFindCareers != nil {
		return nil, f.failFindCareers
	}
	return f.Store.FindCareers(ctx, masteryType, targetID)
}
