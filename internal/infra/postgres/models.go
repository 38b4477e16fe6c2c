package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"pathkey-service/internal/domain"
)

type careerModel struct {
	bun.BaseModel `bun:"table:careers,alias:c"`

	ID        string `bun:"id,pk"`
	Name      string `bun:"name,notnull"`
	SectorID  string `bun:"sector_id,notnull"`
	ClusterID string `bun:"cluster_id,notnull"`
}

type pathkeyModel struct {
	bun.BaseModel `bun:"table:pathkeys,alias:pk"`

	ID       string `bun:"id,pk"`
	CareerID string `bun:"career_id,notnull"`
	Name     string `bun:"name,notnull"`
	Rarity   string `bun:"rarity,notnull"`
}

type questionSetModel struct {
	bun.BaseModel `bun:"table:question_sets,alias:qs"`

	ID        string `bun:"id,pk"`
	Title     string `bun:"title,notnull"`
	CareerID  string `bun:"career_id,nullzero"`
	SectorID  string `bun:"sector_id,nullzero"`
	ClusterID string `bun:"cluster_id,nullzero"`
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID       string          `bun:"id,pk"`
	SetID    string          `bun:"set_id,notnull"`
	Position int             `bun:"position,notnull"`
	Prompt   string          `bun:"prompt,notnull"`
	Options  []domain.Option `bun:"options,type:jsonb,notnull"`
	Points   int             `bun:"points,notnull"`
	Driver   string          `bun:"driver,nullzero"`
}

type sessionModel struct {
	bun.BaseModel `bun:"table:game_sessions,alias:gs"`

	ID            string     `bun:"id,pk"`
	HostID        string     `bun:"host_id,notnull"`
	Mode          string     `bun:"mode,notnull"`
	CareerID      string     `bun:"career_id,nullzero"`
	SectorID      string     `bun:"sector_id,nullzero"`
	ClusterID     string     `bun:"cluster_id,nullzero"`
	QuestionSetID string     `bun:"question_set_id,notnull"`
	Status        string     `bun:"status,notnull"`
	CreatedAt     time.Time  `bun:"created_at,notnull"`
	StartedAt     *time.Time `bun:"started_at"`
	EndedAt       *time.Time `bun:"ended_at"`
}

type playerModel struct {
	bun.BaseModel `bun:"table:game_players,alias:gp"`

	ID             string    `bun:"id,pk"`
	SessionID      string    `bun:"session_id,notnull"`
	StudentID      *string   `bun:"student_id"`
	DisplayName    string    `bun:"display_name,notnull"`
	Score          int       `bun:"score,notnull"`
	CorrectAnswers int       `bun:"correct_answers,notnull"`
	TotalAnswers   int       `bun:"total_answers,notnull"`
	JoinedAt       time.Time `bun:"joined_at,notnull"`
	Placement      *int      `bun:"placement"`
	Tokens         *int      `bun:"tokens"`
	PathkeyIDs     []string  `bun:"pathkey_ids,type:jsonb,nullzero"`
}

type playerAnswerModel struct {
	bun.BaseModel `bun:"table:player_answers,alias:pa"`

	PlayerID   string    `bun:"player_id,pk"`
	QuestionID string    `bun:"question_id,pk"`
	Correct    bool      `bun:"correct,notnull"`
	Points     int       `bun:"points,notnull"`
	AnsweredAt time.Time `bun:"answered_at,notnull"`
}

type studentPathkeyModel struct {
	bun.BaseModel `bun:"table:student_pathkeys,alias:sp"`

	StudentID                       string     `bun:"student_id,pk"`
	CareerID                        string     `bun:"career_id,pk"`
	CareerMasteryUnlocked           bool       `bun:"career_mastery_unlocked,notnull"`
	CareerMasteryUnlockedAt         *time.Time `bun:"career_mastery_unlocked_at"`
	IndustryMasteryUnlocked         bool       `bun:"industry_mastery_unlocked,notnull"`
	ClusterMasteryUnlocked          bool       `bun:"cluster_mastery_unlocked,notnull"`
	SectionTwoUnlockedAt            *time.Time `bun:"section_two_unlocked_at"`
	SectionTwoVia                   string     `bun:"section_two_via,nullzero"`
	BusinessDriverMasteryUnlocked   bool       `bun:"business_driver_mastery_unlocked,notnull"`
	BusinessDriverMasteryUnlockedAt *time.Time `bun:"business_driver_mastery_unlocked_at"`
	Version                         int64      `bun:"version,notnull"`
	CreatedAt                       time.Time  `bun:"created_at,notnull"`
	UpdatedAt                       time.Time  `bun:"updated_at,notnull"`
}

type sectionTwoModel struct {
	bun.BaseModel `bun:"table:section_two_progress,alias:st"`

	ID            string    `bun:"id,pk"`
	StudentID     string    `bun:"student_id,notnull"`
	CareerID      string    `bun:"career_id,notnull"`
	MasteryType   string    `bun:"mastery_type,notnull"`
	QuestionSetID string    `bun:"question_set_id,notnull"`
	Accuracy      float64   `bun:"accuracy,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

type driverProgressModel struct {
	bun.BaseModel `bun:"table:business_driver_progress,alias:bd"`

	StudentID      string     `bun:"student_id,pk"`
	CareerID       string     `bun:"career_id,pk"`
	Driver         string     `bun:"driver,pk"`
	ChunkQuestions int        `bun:"chunk_questions,notnull"`
	ChunkCorrect   int        `bun:"chunk_correct,notnull"`
	Mastered       bool       `bun:"mastered,notnull"`
	MasteredAt     *time.Time `bun:"mastered_at"`
	Version        int64      `bun:"version,notnull"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull"`
}

func (m sessionModel) toDomain() domain.GameSession {
	return domain.GameSession{
		ID:     m.ID,
		HostID: m.HostID,
		Mode:   domain.GameMode(m.Mode),
		Target: domain.ExplorationTarget{
			CareerID:  m.CareerID,
			SectorID:  m.SectorID,
			ClusterID: m.ClusterID,
		},
		QuestionSetID: m.QuestionSetID,
		Status:        domain.GameStatus(m.Status),
		CreatedAt:     m.CreatedAt,
		StartedAt:     m.StartedAt,
		EndedAt:       m.EndedAt,
	}
}

func sessionFromDomain(s domain.GameSession) sessionModel {
	return sessionModel{
		ID:            s.ID,
		HostID:        s.HostID,
		Mode:          string(s.Mode),
		CareerID:      s.Target.CareerID,
		SectorID:      s.Target.SectorID,
		ClusterID:     s.Target.ClusterID,
		QuestionSetID: s.QuestionSetID,
		Status:        string(s.Status),
		CreatedAt:     s.CreatedAt,
		StartedAt:     s.StartedAt,
		EndedAt:       s.EndedAt,
	}
}

func (m playerModel) toDomain() domain.GamePlayer {
	p := domain.GamePlayer{
		ID:             m.ID,
		SessionID:      m.SessionID,
		StudentID:      m.StudentID,
		DisplayName:    m.DisplayName,
		Score:          m.Score,
		CorrectAnswers: m.CorrectAnswers,
		TotalAnswers:   m.TotalAnswers,
		JoinedAt:       m.JoinedAt,
		Placement:      m.Placement,
	}
	if m.Placement != nil {
		r := domain.Rewards{PathkeyIDs: m.PathkeyIDs}
		if m.Tokens != nil {
			r.Tokens = *m.Tokens
		}
		p.Rewards = &r
	}
	return p
}

func (m studentPathkeyModel) toDomain() domain.StudentPathkeyRecord {
	return domain.StudentPathkeyRecord{
		StudentID:                       m.StudentID,
		CareerID:                        m.CareerID,
		CareerMasteryUnlocked:           m.CareerMasteryUnlocked,
		CareerMasteryUnlockedAt:         m.CareerMasteryUnlockedAt,
		IndustryMasteryUnlocked:         m.IndustryMasteryUnlocked,
		ClusterMasteryUnlocked:          m.ClusterMasteryUnlocked,
		SectionTwoUnlockedAt:            m.SectionTwoUnlockedAt,
		SectionTwoVia:                   domain.MasteryType(m.SectionTwoVia),
		BusinessDriverMasteryUnlocked:   m.BusinessDriverMasteryUnlocked,
		BusinessDriverMasteryUnlockedAt: m.BusinessDriverMasteryUnlockedAt,
		Version:                         m.Version,
		CreatedAt:                       m.CreatedAt,
		UpdatedAt:                       m.UpdatedAt,
	}
}

func studentPathkeyFromDomain(r domain.StudentPathkeyRecord) studentPathkeyModel {
	return studentPathkeyModel{
		StudentID:                       r.StudentID,
		CareerID:                        r.CareerID,
		CareerMasteryUnlocked:           r.CareerMasteryUnlocked,
		CareerMasteryUnlockedAt:         r.CareerMasteryUnlockedAt,
		IndustryMasteryUnlocked:         r.IndustryMasteryUnlocked,
		ClusterMasteryUnlocked:          r.ClusterMasteryUnlocked,
		SectionTwoUnlockedAt:            r.SectionTwoUnlockedAt,
		SectionTwoVia:                   string(r.SectionTwoVia),
		BusinessDriverMasteryUnlocked:   r.BusinessDriverMasteryUnlocked,
		BusinessDriverMasteryUnlockedAt: r.BusinessDriverMasteryUnlockedAt,
		Version:                         r.Version,
		CreatedAt:                       r.CreatedAt,
		UpdatedAt:                       r.UpdatedAt,
	}
}

func (m driverProgressModel) toDomain() domain.BusinessDriverProgress {
	return domain.BusinessDriverProgress{
		StudentID:      m.StudentID,
		CareerID:       m.CareerID,
		Driver:         domain.BusinessDriver(m.Driver),
		ChunkQuestions: m.ChunkQuestions,
		ChunkCorrect:   m.ChunkCorrect,
		Mastered:       m.Mastered,
		MasteredAt:     m.MasteredAt,
		Version:        m.Version,
		UpdatedAt:      m.UpdatedAt,
	}
}

func driverProgressFromDomain(p domain.BusinessDriverProgress) driverProgressModel {
	return driverProgressModel{
		StudentID:      p.StudentID,
		CareerID:       p.CareerID,
		Driver:         string(p.Driver),
		ChunkQuestions: p.ChunkQuestions,
		ChunkCorrect:   p.ChunkCorrect,
		Mastered:       p.Mastered,
		MasteredAt:     p.MasteredAt,
		Version:        p.Version,
		UpdatedAt:      p.UpdatedAt,
	}
}
