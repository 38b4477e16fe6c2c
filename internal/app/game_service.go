package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pathkey-service/internal/domain"
	"pathkey-service/internal/pathkey"
)

// SessionRepository abstracts how live game sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	GetOrCreate(gameID string) *Session
	Get(gameID string) (*Session, bool)
	DeleteIfEmpty(gameID string)
}

// QuestionSetRepository loads question content (from cache/backing store).
type QuestionSetRepository interface {
	GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// GameStore persists sessions and players.
type GameStore interface {
	CreateSession(ctx context.Context, session domain.GameSession) error
	GetSession(ctx context.Context, gameID string) (domain.GameSession, error)
	UpdateSessionStatus(ctx context.Context, gameID string, next domain.GameStatus, at time.Time) error
	// AddPlayer returns the stored player; re-joining returns the existing row.
	AddPlayer(ctx context.Context, player domain.GamePlayer) (domain.GamePlayer, error)
	// RecordPlayerAnswer counts one answer per (player, question); repeats return domain.ErrAlreadyAnswered.
	RecordPlayerAnswer(ctx context.Context, playerID, questionID string, correct bool, points int) (domain.GamePlayer, error)
	ListPlayers(ctx context.Context, gameID string) ([]domain.GamePlayer, error)
}

// GameEnder runs the end-of-game award pass.
type GameEnder interface {
	EndGame(ctx context.Context, gameID string) (pathkey.Summary, error)
}

// AnswerDispatcher hands answers to background award bookkeeping.
type AnswerDispatcher interface {
	Dispatch(ev pathkey.AnswerEvent) bool
}

// CreateGameRequest describes a new game.
type CreateGameRequest struct {
	HostID        string
	Mode          domain.GameMode
	QuestionSetID string
}

// GameService contains the game lifecycle use cases.
type GameService struct {
	sessions  SessionRepository
	questions QuestionSetRepository
	store     GameStore
	awards    GameEnder
	answers   AnswerDispatcher
	logger    *slog.Logger
	now       func() time.Time
}

func NewGameService(sessions SessionRepository, questions QuestionSetRepository, store GameStore, awards GameEnder, answers AnswerDispatcher, logger *slog.Logger) *GameService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GameService{
		sessions:  sessions,
		questions: questions,
		store:     store,
		awards:    awards,
		answers:   answers,
		logger:    logger,
		now:       time.Now,
	}
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id string) *Session {
	return newSession(id)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(id string, now func() time.Time) *Session {
	return newSessionWithClock(id, now)
}

// CreateGame opens a waiting game on a question set. The exploration target
// comes from the set and must match the mode.
func (s *GameService) CreateGame(ctx context.Context, req CreateGameRequest) (domain.GameSession, error) {
	set, err := s.questions.GetQuestionSet(ctx, req.QuestionSetID)
	if err != nil {
		return domain.GameSession{}, err
	}
	target, err := targetFor(req.Mode, set)
	if err != nil {
		return domain.GameSession{}, err
	}

	game := domain.GameSession{
		ID:            uuid.NewString(),
		HostID:        req.HostID,
		Mode:          req.Mode,
		Target:        target,
		QuestionSetID: set.ID,
		Status:        domain.StatusWaiting,
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateSession(ctx, game); err != nil {
		return domain.GameSession{}, err
	}
	s.sessions.GetOrCreate(game.ID)
	s.logger.Info("game created", "game", game.ID, "mode", game.Mode, "questionSet", set.ID)
	return game, nil
}

func targetFor(mode domain.GameMode, set domain.QuestionSet) (domain.ExplorationTarget, error) {
	switch mode {
	case domain.ModeCareer:
		if set.CareerID == "" {
			return domain.ExplorationTarget{}, domain.ErrInvalidGameMode
		}
		return domain.ExplorationTarget{CareerID: set.CareerID}, nil
	case domain.ModeIndustry:
		if set.SectorID == "" {
			return domain.ExplorationTarget{}, domain.ErrInvalidGameMode
		}
		return domain.ExplorationTarget{SectorID: set.SectorID}, nil
	case domain.ModeCluster:
		if set.ClusterID == "" {
			return domain.ExplorationTarget{}, domain.ErrInvalidGameMode
		}
		return domain.ExplorationTarget{ClusterID: set.ClusterID}, nil
	case domain.ModeMixed:
		return domain.ExplorationTarget{}, nil
	}
	return domain.ExplorationTarget{}, domain.ErrInvalidGameMode
}

// StartGame moves a waiting game to in_progress.
func (s *GameService) StartGame(ctx context.Context, gameID, hostID string) error {
	if _, err := s.hostedGame(ctx, gameID, hostID); err != nil {
		return err
	}
	return s.store.UpdateSessionStatus(ctx, gameID, domain.StatusInProgress, s.now())
}

// CancelGame abandons a game without awarding anything.
func (s *GameService) CancelGame(ctx context.Context, gameID, hostID string) error {
	if _, err := s.hostedGame(ctx, gameID, hostID); err != nil {
		return err
	}
	return s.store.UpdateSessionStatus(ctx, gameID, domain.StatusCancelled, s.now())
}

func (s *GameService) hostedGame(ctx context.Context, gameID, hostID string) (domain.GameSession, error) {
	game, err := s.store.GetSession(ctx, gameID)
	if err != nil {
		return domain.GameSession{}, err
	}
	if game.HostID != hostID {
		return domain.GameSession{}, domain.ErrNotHost
	}
	return game, nil
}

// Join registers or refreshes a participant. An empty studentID joins as a guest.
func (s *GameService) Join(ctx context.Context, gameID, playerID, studentID, displayName string) (domain.Leaderboard, error) {
	game, err := s.store.GetSession(ctx, gameID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if game.Status == domain.StatusCompleted || game.Status == domain.StatusCancelled {
		return domain.Leaderboard{}, domain.ErrGameClosed
	}
	// Preload question set into cache; players cannot join games on unknown content.
	if _, err := s.questions.GetQuestionSet(ctx, game.QuestionSetID); err != nil {
		return domain.Leaderboard{}, err
	}

	player := domain.GamePlayer{
		ID:          playerID,
		SessionID:   gameID,
		DisplayName: displayName,
		JoinedAt:    s.now(),
	}
	if studentID != "" {
		player.StudentID = &studentID
	}
	stored, err := s.store.AddPlayer(ctx, player)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	stored.DisplayName = displayName

	session := s.sessions.GetOrCreate(gameID)
	return session.join(stored), nil
}

// SubmitAnswer scores an answer, updates the leaderboard, and hands
// driver-tagged answers to the award engine without waiting on it.
func (s *GameService) SubmitAnswer(ctx context.Context, gameID, playerID string, submission domain.AnswerSubmission) (domain.Leaderboard, domain.AnswerResult, error) {
	session, ok := s.sessions.Get(gameID)
	if !ok {
		return domain.Leaderboard{}, domain.AnswerResult{}, domain.ErrSessionNotFound
	}
	if !session.has(playerID) {
		return domain.Leaderboard{}, domain.AnswerResult{}, domain.ErrParticipantNotFound
	}

	game, err := s.store.GetSession(ctx, gameID)
	if err != nil {
		return domain.Leaderboard{}, domain.AnswerResult{}, err
	}
	if game.Status != domain.StatusInProgress {
		return domain.Leaderboard{}, domain.AnswerResult{}, domain.ErrGameNotInProgress
	}

	set, err := s.questions.GetQuestionSet(ctx, game.QuestionSetID)
	if err != nil {
		return domain.Leaderboard{}, domain.AnswerResult{}, err
	}

	question, correct, points, err := scoreSubmission(set, submission)
	if err != nil {
		return domain.Leaderboard{}, domain.AnswerResult{}, err
	}

	player, err := s.store.RecordPlayerAnswer(ctx, playerID, question.ID, correct, points)
	if err != nil {
		return domain.Leaderboard{}, domain.AnswerResult{}, err
	}
	lb, err := session.applyAnswer(player)
	if err != nil {
		return domain.Leaderboard{}, domain.AnswerResult{}, err
	}

	if question.Driver != "" && set.CareerScoped() && !player.IsGuest() && s.answers != nil {
		s.answers.Dispatch(pathkey.AnswerEvent{
			SessionID:  gameID,
			PlayerID:   playerID,
			StudentID:  *player.StudentID,
			QuestionID: question.ID,
			Correct:    correct,
		})
	}

	result := domain.AnswerResult{
		QuestionID: question.ID,
		Correct:    correct,
		TotalScore: player.Score,
	}
	if correct {
		result.Awarded = points
	}
	return lb, result, nil
}

// EndGame runs the award pass and broadcasts the final leaderboard.
func (s *GameService) EndGame(ctx context.Context, gameID, hostID string) (pathkey.Summary, error) {
	if _, err := s.hostedGame(ctx, gameID, hostID); err != nil {
		return pathkey.Summary{}, err
	}
	summary, err := s.awards.EndGame(ctx, gameID)
	if err != nil {
		return summary, err
	}
	if session, ok := s.sessions.Get(gameID); ok {
		session.finish()
	}
	return summary, nil
}

// Subscribe returns a channel that receives leaderboard updates for a game.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *GameService) Subscribe(_ context.Context, gameID string) (<-chan domain.Leaderboard, func(), error) {
	session, ok := s.sessions.Get(gameID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Leave removes a participant from the live session and drops the session if empty.
// The stored player row stays so the end-of-game pass still ranks them.
func (s *GameService) Leave(_ context.Context, gameID, playerID string) {
	session, ok := s.sessions.Get(gameID)
	if !ok {
		return
	}
	session.leave(playerID)
	if session.isEmpty() {
		s.sessions.DeleteIfEmpty(gameID)
	}
}

// scoreSubmission validates the answer against the question set and returns (question, correct, points).
func scoreSubmission(set domain.QuestionSet, submission domain.AnswerSubmission) (domain.Question, bool, int, error) {
	var question *domain.Question
	for i := range set.Questions {
		if set.Questions[i].ID == submission.QuestionID {
			question = &set.Questions[i]
			break
		}
	}
	if question == nil {
		return domain.Question{}, false, 0, domain.ErrQuestionNotFound
	}

	var selected *domain.Option
	for i := range question.Options {
		if question.Options[i].ID == submission.OptionID {
			selected = &question.Options[i]
			break
		}
	}
	if selected == nil {
		return *question, false, 0, domain.ErrOptionNotFound
	}

	points := question.Points
	if points == 0 {
		points = 1
	}
	if selected.Correct {
		return *question, true, points, nil
	}
	return *question, false, 0, nil
}
