package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pathkey-service/internal/app"
	"pathkey-service/internal/domain"
	"pathkey-service/internal/pathkey"
)

var (
	_ pathkey.Store = (*Store)(nil)
	_ app.GameStore = (*Store)(nil)
)

const accuracyEpsilon = 1e-9

type recordKey struct {
	studentID string
	careerID  string
}

type progressKey struct {
	studentID     string
	careerID      string
	masteryType   domain.MasteryType
	questionSetID string
}

type answerKey struct {
	playerID   string
	questionID string
}

type driverKey struct {
	studentID string
	careerID  string
	driver    domain.BusinessDriver
}

// Store is an in-process implementation of the game store and the award
// engine store. It also serves question content for demo mode.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	sessions       map[string]domain.GameSession
	players        map[string]domain.GamePlayer
	sessionPlayers map[string][]string
	answered       map[answerKey]struct{}

	records    map[recordKey]domain.StudentPathkeyRecord
	sectionTwo map[progressKey]domain.SectionTwoProgress
	drivers    map[driverKey]domain.BusinessDriverProgress

	questionSets map[string]domain.QuestionSet
	questions    map[string]domain.QuestionDriverContext
	careers      map[string]domain.Career
	pathkeys     map[string][]domain.Pathkey
}

func NewStore() *Store {
	return &Store{
		now:            time.Now,
		sessions:       make(map[string]domain.GameSession),
		players:        make(map[string]domain.GamePlayer),
		sessionPlayers: make(map[string][]string),
		answered:       make(map[answerKey]struct{}),
		records:        make(map[recordKey]domain.StudentPathkeyRecord),
		sectionTwo:     make(map[progressKey]domain.SectionTwoProgress),
		drivers:        make(map[driverKey]domain.BusinessDriverProgress),
		questionSets:   make(map[string]domain.QuestionSet),
		questions:      make(map[string]domain.QuestionDriverContext),
		careers:        make(map[string]domain.Career),
		pathkeys:       make(map[string][]domain.Pathkey),
	}
}

// --- content ---

// AddQuestionSet registers a question set and indexes its driver-tagged questions.
func (s *Store) AddQuestionSet(set domain.QuestionSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questionSets[set.ID] = set
	for _, q := range set.Questions {
		if q.Driver == "" || set.CareerID == "" {
			continue
		}
		s.questions[q.ID] = domain.QuestionDriverContext{
			QuestionID: q.ID,
			Driver:     q.Driver,
			CareerID:   set.CareerID,
		}
	}
}

// AddCareer registers a career in the sector/cluster taxonomy.
func (s *Store) AddCareer(c domain.Career) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.careers[c.ID] = c
}

// AddPathkey registers a collectible in a career's catalog.
func (s *Store) AddPathkey(p domain.Pathkey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pathkeys[p.CareerID] = append(s.pathkeys[p.CareerID], p)
}

func (s *Store) LoadQuestionSet(_ context.Context, setID string) (domain.QuestionSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.questionSets[setID]
	if !ok {
		return domain.QuestionSet{}, domain.ErrQuestionSetNotFound
	}
	return set, nil
}

func (s *Store) FindQuestionDriverContext(_ context.Context, questionID string) (domain.QuestionDriverContext, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qc, ok := s.questions[questionID]
	return qc, ok, nil
}

func (s *Store) FindCareers(_ context.Context, masteryType domain.MasteryType, targetID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, c := range s.careers {
		switch masteryType {
		case domain.MasteryIndustry:
			if c.SectorID == targetID {
				out = append(out, c.ID)
			}
		case domain.MasteryCluster:
			if c.ClusterID == targetID {
				out = append(out, c.ID)
			}
		default:
			return nil, fmt.Errorf("unknown mastery type %q", masteryType)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ListCareerPathkeys(_ context.Context, careerID string) ([]domain.Pathkey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Pathkey(nil), s.pathkeys[careerID]...), nil
}

// --- games ---

func (s *Store) CreateSession(_ context.Context, session domain.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("game session %s already exists", session.ID)
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *Store) GetSession(_ context.Context, gameID string) (domain.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[gameID]
	if !ok {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) GetSessionContext(ctx context.Context, sessionID string) (domain.SessionContext, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.SessionContext{}, err
	}
	return session.Context(), nil
}

func (s *Store) UpdateSessionStatus(_ context.Context, gameID string, next domain.GameStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[gameID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if !session.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, session.Status, next)
	}
	session.Status = next
	switch next {
	case domain.StatusInProgress:
		session.StartedAt = &at
	case domain.StatusCompleted, domain.StatusCancelled:
		session.EndedAt = &at
	}
	s.sessions[gameID] = session
	return nil
}

func (s *Store) CompleteSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	return s.UpdateSessionStatus(ctx, sessionID, domain.StatusCompleted, endedAt)
}

func (s *Store) AddPlayer(_ context.Context, player domain.GamePlayer) (domain.GamePlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[player.SessionID]; !ok {
		return domain.GamePlayer{}, domain.ErrSessionNotFound
	}
	if existing, ok := s.players[player.ID]; ok {
		if existing.SessionID != player.SessionID {
			return domain.GamePlayer{}, fmt.Errorf("player %s belongs to another game", player.ID)
		}
		existing.DisplayName = player.DisplayName
		s.players[player.ID] = existing
		return existing, nil
	}
	s.players[player.ID] = player
	s.sessionPlayers[player.SessionID] = append(s.sessionPlayers[player.SessionID], player.ID)
	return player, nil
}

func (s *Store) RecordPlayerAnswer(_ context.Context, playerID, questionID string, correct bool, points int) (domain.GamePlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[playerID]
	if !ok {
		return domain.GamePlayer{}, domain.ErrParticipantNotFound
	}
	key := answerKey{playerID: playerID, questionID: questionID}
	if _, ok := s.answered[key]; ok {
		return domain.GamePlayer{}, domain.ErrAlreadyAnswered
	}
	s.answered[key] = struct{}{}
	player.TotalAnswers++
	if correct {
		player.CorrectAnswers++
		player.Score += points
	}
	s.players[playerID] = player
	return player, nil
}

func (s *Store) ListPlayers(_ context.Context, sessionID string) ([]domain.GamePlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, domain.ErrSessionNotFound
	}
	ids := s.sessionPlayers[sessionID]
	out := make([]domain.GamePlayer, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.players[id])
	}
	return out, nil
}

func (s *Store) GetPlayer(_ context.Context, playerID string) (domain.GamePlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[playerID]
	if !ok {
		return domain.GamePlayer{}, domain.ErrParticipantNotFound
	}
	return player, nil
}

func (s *Store) FinalizePlayer(_ context.Context, playerID string, placement int, rewards domain.Rewards) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[playerID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if player.Finalized() {
		return domain.ErrAlreadyFinalized
	}
	player.Placement = &placement
	rewards.PathkeyIDs = append([]string(nil), rewards.PathkeyIDs...)
	player.Rewards = &rewards
	s.players[playerID] = player
	return nil
}

// --- pathkey records ---

func (s *Store) GetStudentPathkey(_ context.Context, studentID, careerID string) (domain.StudentPathkeyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordKey{studentID, careerID}]
	return rec, ok, nil
}

func (s *Store) SaveStudentPathkey(_ context.Context, rec domain.StudentPathkeyRecord) (domain.StudentPathkeyRecord, error) {
	if err := rec.Validate(); err != nil {
		return domain.StudentPathkeyRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{rec.StudentID, rec.CareerID}
	current, exists := s.records[key]
	switch {
	case rec.Version == 0 && exists:
		return domain.StudentPathkeyRecord{}, domain.ErrVersionConflict
	case rec.Version != 0 && (!exists || current.Version != rec.Version):
		return domain.StudentPathkeyRecord{}, domain.ErrVersionConflict
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.Version++
	s.records[key] = rec
	return rec, nil
}

func (s *Store) HasAnyCareerMastery(_ context.Context, studentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for key, rec := range s.records {
		if key.studentID == studentID && rec.CareerMasteryUnlocked {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListCareerMasteries(_ context.Context, studentID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for key, rec := range s.records {
		if key.studentID == studentID && rec.CareerMasteryUnlocked {
			out = append(out, key.careerID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// --- section two ---

func (s *Store) AppendSectionTwoProgress(_ context.Context, p domain.SectionTwoProgress) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := progressKey{p.StudentID, p.CareerID, p.MasteryType, p.QuestionSetID}
	if _, dup := s.sectionTwo[key]; dup {
		return false, nil
	}
	s.sectionTwo[key] = p
	return true, nil
}

func (s *Store) CountSectionTwoProgress(_ context.Context, studentID, careerID string, masteryType domain.MasteryType, minAccuracy float64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for key, p := range s.sectionTwo {
		if key.studentID == studentID && key.careerID == careerID && key.masteryType == masteryType &&
			p.Accuracy+accuracyEpsilon >= minAccuracy {
			count++
		}
	}
	return count, nil
}

// --- business drivers ---

func (s *Store) GetDriverProgress(_ context.Context, studentID, careerID string, driver domain.BusinessDriver) (domain.BusinessDriverProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := driverKey{studentID, careerID, driver}
	if p, ok := s.drivers[key]; ok {
		return p, nil
	}
	p := domain.BusinessDriverProgress{
		StudentID: studentID,
		CareerID:  careerID,
		Driver:    driver,
		Version:   1,
		UpdatedAt: s.now(),
	}
	s.drivers[key] = p
	return p, nil
}

func (s *Store) SaveDriverProgress(_ context.Context, p domain.BusinessDriverProgress) (domain.BusinessDriverProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := driverKey{p.StudentID, p.CareerID, p.Driver}
	current, ok := s.drivers[key]
	if !ok || current.Version != p.Version {
		return domain.BusinessDriverProgress{}, domain.ErrVersionConflict
	}
	p.Version++
	s.drivers[key] = p
	return p, nil
}

func (s *Store) ListDriverProgress(_ context.Context, studentID, careerID string) ([]domain.BusinessDriverProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.BusinessDriverProgress
	for key, p := range s.drivers {
		if key.studentID == studentID && key.careerID == careerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Driver < out[j].Driver })
	return out, nil
}
