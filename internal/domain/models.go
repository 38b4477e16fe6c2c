package domain

import "time"

// GameMode selects what content a session explores.
type GameMode string

const (
	ModeCareer   GameMode = "career"
	ModeIndustry GameMode = "industry"
	ModeCluster  GameMode = "cluster"
	ModeMixed    GameMode = "mixed"
)

// GameStatus is the lifecycle state of a session.
type GameStatus string

const (
	StatusWaiting    GameStatus = "waiting"
	StatusInProgress GameStatus = "in_progress"
	StatusCompleted  GameStatus = "completed"
	StatusCancelled  GameStatus = "cancelled"
)

// CanTransition reports whether a session may move from s to next.
func (s GameStatus) CanTransition(next GameStatus) bool {
	switch s {
	case StatusWaiting:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusCancelled
	default:
		return false
	}
}

// ExplorationTarget names the content a session was played on. Exactly one
// field is expected to be set, matching the session mode.
type ExplorationTarget struct {
	CareerID  string `json:"careerId,omitempty"`
	SectorID  string `json:"sectorId,omitempty"`
	ClusterID string `json:"clusterId,omitempty"`
}

// GameSession is one played round.
type GameSession struct {
	ID            string            `json:"id"`
	HostID        string            `json:"hostId"`
	Mode          GameMode          `json:"mode"`
	Target        ExplorationTarget `json:"target"`
	QuestionSetID string            `json:"questionSetId"`
	Status        GameStatus        `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	StartedAt     *time.Time        `json:"startedAt,omitempty"`
	EndedAt       *time.Time        `json:"endedAt,omitempty"`
}

// SessionContext is the slice of a session the award engine needs.
type SessionContext struct {
	SessionID     string
	Mode          GameMode
	Target        ExplorationTarget
	QuestionSetID string
	Status        GameStatus
}

// Context projects a session onto its award context.
func (s GameSession) Context() SessionContext {
	return SessionContext{
		SessionID:     s.ID,
		Mode:          s.Mode,
		Target:        s.Target,
		QuestionSetID: s.QuestionSetID,
		Status:        s.Status,
	}
}

// Rewards is the snapshot written to a player when the game ends.
type Rewards struct {
	Tokens     int      `json:"tokens"`
	PathkeyIDs []string `json:"pathkeyIds"`
}

// GamePlayer is one participant in one session. StudentID is nil for guests.
type GamePlayer struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"sessionId"`
	StudentID      *string   `json:"studentId,omitempty"`
	DisplayName    string    `json:"displayName"`
	Score          int       `json:"score"`
	CorrectAnswers int       `json:"correctAnswers"`
	TotalAnswers   int       `json:"totalAnswers"`
	JoinedAt       time.Time `json:"joinedAt"`
	Placement      *int      `json:"placement,omitempty"`
	Rewards        *Rewards  `json:"rewards,omitempty"`
}

// IsGuest reports whether the player has no student identity.
func (p GamePlayer) IsGuest() bool {
	return p.StudentID == nil || *p.StudentID == ""
}

// Finalized reports whether placement has already been written.
func (p GamePlayer) Finalized() bool {
	return p.Placement != nil
}

// Accuracy is correct/total for this session, zero when nothing was answered.
func (p GamePlayer) Accuracy() float64 {
	if p.TotalAnswers <= 0 {
		return 0
	}
	return float64(p.CorrectAnswers) / float64(p.TotalAnswers)
}

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	Correct     int    `json:"correct"`
}

// Leaderboard captures the ordered scoreboard for a game session.
type Leaderboard struct {
	GameID    string             `json:"gameId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// AnswerSubmission models the scoring signal from clients.
type AnswerSubmission struct {
	QuestionID string
	OptionID   string
}

// AnswerResult summarizes the outcome of a submission for a single player.
type AnswerResult struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
	TotalScore int    `json:"totalScore"`
}

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID      string         `json:"id"`
	Prompt  string         `json:"prompt"`
	Options []Option       `json:"options"`
	Points  int            `json:"points"` // defaults to 1 if zero
	Driver  BusinessDriver `json:"driver,omitempty"`
}

// QuestionSet is a collection of questions scoped to one career, sector or cluster.
type QuestionSet struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	CareerID  string     `json:"careerId,omitempty"`
	SectorID  string     `json:"sectorId,omitempty"`
	ClusterID string     `json:"clusterId,omitempty"`
	Questions []Question `json:"questions"`
}

// CareerScoped reports whether the set belongs to a single career.
func (s QuestionSet) CareerScoped() bool {
	return s.CareerID != ""
}

// Career describes where a career sits in the sector and cluster taxonomy.
type Career struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SectorID  string `json:"sectorId"`
	ClusterID string `json:"clusterId"`
}
