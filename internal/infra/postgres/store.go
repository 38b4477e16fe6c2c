package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"pathkey-service/internal/app"
	"pathkey-service/internal/domain"
	"pathkey-service/internal/pathkey"
)

var (
	_ pathkey.Store = (*Store)(nil)
	_ app.GameStore = (*Store)(nil)
)

const accuracyEpsilon = 1e-9

// Store persists games and award progress in Postgres through bun.
// Conditional writes stand in for row locks: records carry a version and
// finalization only touches rows without a placement.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// --- catalog ---

// SeedCatalog upserts careers, pathkeys and question sets with their questions.
func (s *Store) SeedCatalog(ctx context.Context, careers []domain.Career, pathkeys []domain.Pathkey, sets []domain.QuestionSet) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, c := range careers {
			m := careerModel{ID: c.ID, Name: c.Name, SectorID: c.SectorID, ClusterID: c.ClusterID}
			if _, err := tx.NewInsert().Model(&m).
				On("CONFLICT (id) DO UPDATE").
				Set("name = EXCLUDED.name, sector_id = EXCLUDED.sector_id, cluster_id = EXCLUDED.cluster_id").
				Exec(ctx); err != nil {
				return fmt.Errorf("seed career %s: %w", c.ID, err)
			}
		}
		for _, p := range pathkeys {
			m := pathkeyModel{ID: p.ID, CareerID: p.CareerID, Name: p.Name, Rarity: p.Rarity}
			if m.Rarity == "" {
				m.Rarity = "common"
			}
			if _, err := tx.NewInsert().Model(&m).
				On("CONFLICT (id) DO UPDATE").
				Set("career_id = EXCLUDED.career_id, name = EXCLUDED.name, rarity = EXCLUDED.rarity").
				Exec(ctx); err != nil {
				return fmt.Errorf("seed pathkey %s: %w", p.ID, err)
			}
		}
		for _, set := range sets {
			m := questionSetModel{ID: set.ID, Title: set.Title, CareerID: set.CareerID, SectorID: set.SectorID, ClusterID: set.ClusterID}
			if _, err := tx.NewInsert().Model(&m).
				On("CONFLICT (id) DO UPDATE").
				Set("title = EXCLUDED.title, career_id = EXCLUDED.career_id, sector_id = EXCLUDED.sector_id, cluster_id = EXCLUDED.cluster_id").
				Exec(ctx); err != nil {
				return fmt.Errorf("seed question set %s: %w", set.ID, err)
			}
			if _, err := tx.NewDelete().Model((*questionModel)(nil)).Where("set_id = ?", set.ID).Exec(ctx); err != nil {
				return fmt.Errorf("clear questions of %s: %w", set.ID, err)
			}
			if len(set.Questions) == 0 {
				continue
			}
			rows := make([]questionModel, 0, len(set.Questions))
			for i, q := range set.Questions {
				points := q.Points
				if points == 0 {
					points = 1
				}
				rows = append(rows, questionModel{
					ID:       q.ID,
					SetID:    set.ID,
					Position: i,
					Prompt:   q.Prompt,
					Options:  q.Options,
					Points:   points,
					Driver:   string(q.Driver),
				})
			}
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return fmt.Errorf("seed questions of %s: %w", set.ID, err)
			}
		}
		return nil
	})
}

// FindQuestionDriverContext only resolves driver-tagged questions of career-scoped sets.
func (s *Store) FindQuestionDriverContext(ctx context.Context, questionID string) (domain.QuestionDriverContext, bool, error) {
	var driver, careerID string
	err := s.db.NewSelect().
		TableExpr("questions AS q").
		ColumnExpr("q.driver, qs.career_id").
		Join("JOIN question_sets AS qs ON qs.id = q.set_id").
		Where("q.id = ?", questionID).
		Where("q.driver IS NOT NULL").
		Where("qs.career_id IS NOT NULL").
		Limit(1).
		Scan(ctx, &driver, &careerID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.QuestionDriverContext{}, false, nil
	}
	if err != nil {
		return domain.QuestionDriverContext{}, false, fmt.Errorf("lookup question %s: %w", questionID, err)
	}
	return domain.QuestionDriverContext{
		QuestionID: questionID,
		Driver:     domain.BusinessDriver(driver),
		CareerID:   careerID,
	}, true, nil
}

func (s *Store) FindCareers(ctx context.Context, masteryType domain.MasteryType, targetID string) ([]string, error) {
	var column string
	switch masteryType {
	case domain.MasteryIndustry:
		column = "sector_id"
	case domain.MasteryCluster:
		column = "cluster_id"
	default:
		return nil, fmt.Errorf("unknown mastery type %q", masteryType)
	}

	var ids []string
	err := s.db.NewSelect().
		Model((*careerModel)(nil)).
		Column("id").
		Where("? = ?", bun.Ident(column), targetID).
		Order("id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("find careers: %w", err)
	}
	return ids, nil
}

func (s *Store) ListCareerPathkeys(ctx context.Context, careerID string) ([]domain.Pathkey, error) {
	var rows []pathkeyModel
	if err := s.db.NewSelect().Model(&rows).Where("career_id = ?", careerID).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list pathkeys: %w", err)
	}
	out := make([]domain.Pathkey, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Pathkey{ID: r.ID, CareerID: r.CareerID, Name: r.Name, Rarity: r.Rarity})
	}
	return out, nil
}

// --- games ---

func (s *Store) CreateSession(ctx context.Context, session domain.GameSession) error {
	m := sessionFromDomain(session)
	if _, err := s.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, gameID string) (domain.GameSession, error) {
	m, err := getSession(ctx, s.db, gameID, false)
	if err != nil {
		return domain.GameSession{}, err
	}
	return m.toDomain(), nil
}

func (s *Store) GetSessionContext(ctx context.Context, sessionID string) (domain.SessionContext, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.SessionContext{}, err
	}
	return session.Context(), nil
}

func getSession(ctx context.Context, db bun.IDB, gameID string, forUpdate bool) (sessionModel, error) {
	var m sessionModel
	q := db.NewSelect().Model(&m).Where("id = ?", gameID)
	if forUpdate {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return m, domain.ErrSessionNotFound
	}
	if err != nil {
		return m, fmt.Errorf("get session %s: %w", gameID, err)
	}
	return m, nil
}

func (s *Store) UpdateSessionStatus(ctx context.Context, gameID string, next domain.GameStatus, at time.Time) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		m, err := getSession(ctx, tx, gameID, true)
		if err != nil {
			return err
		}
		current := domain.GameStatus(m.Status)
		if !current.CanTransition(next) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, next)
		}

		q := tx.NewUpdate().Model((*sessionModel)(nil)).
			Set("status = ?", string(next)).
			Where("id = ?", gameID)
		switch next {
		case domain.StatusInProgress:
			q = q.Set("started_at = ?", at)
		case domain.StatusCompleted, domain.StatusCancelled:
			q = q.Set("ended_at = ?", at)
		}
		_, err = q.Exec(ctx)
		return err
	})
}

func (s *Store) CompleteSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	return s.UpdateSessionStatus(ctx, sessionID, domain.StatusCompleted, endedAt)
}

func (s *Store) AddPlayer(ctx context.Context, player domain.GamePlayer) (domain.GamePlayer, error) {
	var stored playerModel
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := getSession(ctx, tx, player.SessionID, false); err != nil {
			return err
		}
		m := playerModel{
			ID:          player.ID,
			SessionID:   player.SessionID,
			StudentID:   player.StudentID,
			DisplayName: player.DisplayName,
			JoinedAt:    player.JoinedAt,
		}
		if _, err := tx.NewInsert().Model(&m).
			On("CONFLICT (id) DO UPDATE").
			Set("display_name = EXCLUDED.display_name").
			Exec(ctx); err != nil {
			return fmt.Errorf("add player: %w", err)
		}
		return tx.NewSelect().Model(&stored).Where("id = ?", player.ID).Scan(ctx)
	})
	if err != nil {
		return domain.GamePlayer{}, err
	}
	if stored.SessionID != player.SessionID {
		return domain.GamePlayer{}, fmt.Errorf("player %s belongs to another game", player.ID)
	}
	return stored.toDomain(), nil
}

// RecordPlayerAnswer bumps the player's counters and logs the answer in one
// transaction. The player_answers primary key rejects a repeat question.
func (s *Store) RecordPlayerAnswer(ctx context.Context, playerID, questionID string, correct bool, points int) (domain.GamePlayer, error) {
	correctInc := 0
	if !correct {
		points = 0
	} else {
		correctInc = 1
	}

	var m playerModel
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(&m).
			Set("total_answers = total_answers + 1").
			Set("correct_answers = correct_answers + ?", correctInc).
			Set("score = score + ?", points).
			Where("id = ?", playerID).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("record answer: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrParticipantNotFound
		}

		answer := playerAnswerModel{
			PlayerID:   playerID,
			QuestionID: questionID,
			Correct:    correct,
			Points:     points,
			AnsweredAt: s.now(),
		}
		res, err = tx.NewInsert().Model(&answer).On("CONFLICT DO NOTHING").Exec(ctx)
		if err != nil {
			return fmt.Errorf("log answer: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrAlreadyAnswered
		}
		return nil
	})
	if err != nil {
		return domain.GamePlayer{}, err
	}
	return m.toDomain(), nil
}

// ListPlayers returns players in join order.
func (s *Store) ListPlayers(ctx context.Context, sessionID string) ([]domain.GamePlayer, error) {
	if _, err := getSession(ctx, s.db, sessionID, false); err != nil {
		return nil, err
	}
	var rows []playerModel
	if err := s.db.NewSelect().Model(&rows).
		Where("session_id = ?", sessionID).
		Order("joined_at ASC", "id ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	out := make([]domain.GamePlayer, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// FinalizePlayer writes placement and rewards once; a second write reports ErrAlreadyFinalized.
func (s *Store) FinalizePlayer(ctx context.Context, playerID string, placement int, rewards domain.Rewards) error {
	q := s.db.NewUpdate().Model((*playerModel)(nil)).
		Set("placement = ?", placement).
		Set("tokens = ?", rewards.Tokens)
	if len(rewards.PathkeyIDs) > 0 {
		q = q.Set("pathkey_ids = ?", rewards.PathkeyIDs)
	}
	res, err := q.Where("id = ?", playerID).Where("placement IS NULL").Exec(ctx)
	if err != nil {
		return fmt.Errorf("finalize player: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	exists, err := s.db.NewSelect().Model((*playerModel)(nil)).Where("id = ?", playerID).Exists(ctx)
	if err != nil {
		return fmt.Errorf("finalize player: %w", err)
	}
	if !exists {
		return domain.ErrParticipantNotFound
	}
	return domain.ErrAlreadyFinalized
}

// --- pathkey records ---

func (s *Store) GetStudentPathkey(ctx context.Context, studentID, careerID string) (domain.StudentPathkeyRecord, bool, error) {
	var m studentPathkeyModel
	err := s.db.NewSelect().Model(&m).
		Where("student_id = ?", studentID).
		Where("career_id = ?", careerID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StudentPathkeyRecord{}, false, nil
	}
	if err != nil {
		return domain.StudentPathkeyRecord{}, false, fmt.Errorf("get pathkey record: %w", err)
	}
	return m.toDomain(), true, nil
}

// SaveStudentPathkey inserts when rec.Version is zero and otherwise updates
// only if the stored version still matches.
func (s *Store) SaveStudentPathkey(ctx context.Context, rec domain.StudentPathkeyRecord) (domain.StudentPathkeyRecord, error) {
	if err := rec.Validate(); err != nil {
		return domain.StudentPathkeyRecord{}, err
	}
	now := s.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	expected := rec.Version
	m := studentPathkeyFromDomain(rec)
	m.Version = expected + 1

	var (
		res sql.Result
		err error
	)
	if expected == 0 {
		res, err = s.db.NewInsert().Model(&m).
			On("CONFLICT (student_id, career_id) DO NOTHING").
			Exec(ctx)
	} else {
		res, err = s.db.NewUpdate().Model(&m).
			ExcludeColumn("student_id", "career_id", "created_at").
			WherePK().
			Where("version = ?", expected).
			Exec(ctx)
	}
	if err != nil {
		return domain.StudentPathkeyRecord{}, fmt.Errorf("save pathkey record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.StudentPathkeyRecord{}, domain.ErrVersionConflict
	}
	return m.toDomain(), nil
}

func (s *Store) HasAnyCareerMastery(ctx context.Context, studentID string) (bool, error) {
	ok, err := s.db.NewSelect().Model((*studentPathkeyModel)(nil)).
		Where("student_id = ?", studentID).
		Where("career_mastery_unlocked").
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("career mastery lookup: %w", err)
	}
	return ok, nil
}

func (s *Store) ListCareerMasteries(ctx context.Context, studentID string) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().Model((*studentPathkeyModel)(nil)).
		Column("career_id").
		Where("student_id = ?", studentID).
		Where("career_mastery_unlocked").
		Order("career_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list career masteries: %w", err)
	}
	return ids, nil
}

// --- section two ---

func (s *Store) AppendSectionTwoProgress(ctx context.Context, p domain.SectionTwoProgress) (bool, error) {
	m := sectionTwoModel{
		ID:            p.ID,
		StudentID:     p.StudentID,
		CareerID:      p.CareerID,
		MasteryType:   string(p.MasteryType),
		QuestionSetID: p.QuestionSetID,
		Accuracy:      p.Accuracy,
		CreatedAt:     p.CreatedAt,
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	res, err := s.db.NewInsert().Model(&m).
		On("CONFLICT (student_id, career_id, mastery_type, question_set_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("append section two progress: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) CountSectionTwoProgress(ctx context.Context, studentID, careerID string, masteryType domain.MasteryType, minAccuracy float64) (int, error) {
	n, err := s.db.NewSelect().Model((*sectionTwoModel)(nil)).
		Where("student_id = ?", studentID).
		Where("career_id = ?", careerID).
		Where("mastery_type = ?", string(masteryType)).
		Where("accuracy >= ?", minAccuracy-accuracyEpsilon).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count section two progress: %w", err)
	}
	return n, nil
}

// --- business drivers ---

// GetDriverProgress reads the driver row, creating an empty one first if needed.
func (s *Store) GetDriverProgress(ctx context.Context, studentID, careerID string, driver domain.BusinessDriver) (domain.BusinessDriverProgress, error) {
	fresh := driverProgressModel{
		StudentID: studentID,
		CareerID:  careerID,
		Driver:    string(driver),
		Version:   1,
		UpdatedAt: s.now(),
	}
	if _, err := s.db.NewInsert().Model(&fresh).
		On("CONFLICT (student_id, career_id, driver) DO NOTHING").
		Exec(ctx); err != nil {
		return domain.BusinessDriverProgress{}, fmt.Errorf("create driver progress: %w", err)
	}

	var m driverProgressModel
	if err := s.db.NewSelect().Model(&m).
		Where("student_id = ?", studentID).
		Where("career_id = ?", careerID).
		Where("driver = ?", string(driver)).
		Scan(ctx); err != nil {
		return domain.BusinessDriverProgress{}, fmt.Errorf("get driver progress: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) SaveDriverProgress(ctx context.Context, p domain.BusinessDriverProgress) (domain.BusinessDriverProgress, error) {
	expected := p.Version
	m := driverProgressFromDomain(p)
	m.Version = expected + 1
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = s.now()
	}
	res, err := s.db.NewUpdate().Model(&m).
		ExcludeColumn("student_id", "career_id", "driver").
		WherePK().
		Where("version = ?", expected).
		Exec(ctx)
	if err != nil {
		return domain.BusinessDriverProgress{}, fmt.Errorf("save driver progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.BusinessDriverProgress{}, domain.ErrVersionConflict
	}
	return m.toDomain(), nil
}

func (s *Store) ListDriverProgress(ctx context.Context, studentID, careerID string) ([]domain.BusinessDriverProgress, error) {
	var rows []driverProgressModel
	if err := s.db.NewSelect().Model(&rows).
		Where("student_id = ?", studentID).
		Where("career_id = ?", careerID).
		Order("driver ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("list driver progress: %w", err)
	}
	out := make([]domain.BusinessDriverProgress, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
