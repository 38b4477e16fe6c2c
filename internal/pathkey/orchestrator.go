package pathkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pathkey-service/internal/domain"
	"pathkey-service/internal/scoring"
)

// PlayerSummary is the end-of-game result for one player.
type PlayerSummary struct {
	PlayerID   string
	StudentID  string
	Placement  int
	Tokens     int
	PathkeyIDs []string
	Outcome    PlayerOutcome
}

// RewardFailure records a player whose finalization could not be written.
type RewardFailure struct {
	PlayerID string
	Err      error
}

// Summary reports everything Trigger A did for one session.
type Summary struct {
	SessionID       string
	Players         []PlayerSummary
	RewardFailures  []RewardFailure
	PathkeyFailures int
}

// AnswerEvent is one submitted answer that may feed a business driver.
type AnswerEvent struct {
	SessionID  string
	PlayerID   string
	StudentID  string
	QuestionID string
	Correct    bool
}

// Orchestrator sequences the resolver, tracker and evaluator at the two
// trigger points: end of game and after each answer.
type Orchestrator struct {
	store     Store
	rules     Rules
	tracker   *Tracker
	evaluator *Evaluator
	logger    *slog.Logger
	now       func() time.Time
}

func NewOrchestrator(store Store, rules Rules, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	tracker := NewTracker(store, rules, logger)
	return &Orchestrator{
		store:     store,
		rules:     rules,
		tracker:   tracker,
		evaluator: NewEvaluator(store, tracker, rules, logger),
		logger:    logger,
		now:       time.Now,
	}
}

// EndGame is Trigger A: placements, rewards, pathkeys, then completion.
// Pathkey failures are logged and never fail the call. Reward write failures
// are collected for every player and returned; the session then stays open
// so the end can be retried, already finalized players being skipped.
func (o *Orchestrator) EndGame(ctx context.Context, sessionID string) (Summary, error) {
	summary := Summary{SessionID: sessionID}

	session, err := o.store.GetSessionContext(ctx, sessionID)
	if err != nil {
		return summary, fmt.Errorf("load session: %w", err)
	}
	if session.Status == domain.StatusCompleted {
		return summary, domain.ErrSessionCompleted
	}
	if !session.Status.CanTransition(domain.StatusCompleted) {
		return summary, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, session.Status, domain.StatusCompleted)
	}

	players, err := o.store.ListPlayers(ctx, sessionID)
	if err != nil {
		return summary, fmt.Errorf("list players: %w", err)
	}

	results := scoring.Compute(players, o.rules.Rewards)
	pathkeys := o.careerPathkeys(ctx, session)

	for _, r := range results {
		ps := PlayerSummary{
			PlayerID:  r.Player.ID,
			Placement: r.Placement,
			Tokens:    r.Tokens,
		}
		if !r.Player.IsGuest() {
			ps.StudentID = *r.Player.StudentID
			if o.evaluator.EligibleForCareerMastery(session, r.Placement, len(results)) {
				ps.PathkeyIDs = pathkeys
			}
		}

		err := o.store.FinalizePlayer(ctx, r.Player.ID, r.Placement, domain.Rewards{
			Tokens:     r.Tokens,
			PathkeyIDs: ps.PathkeyIDs,
		})
		switch {
		case errors.Is(err, domain.ErrAlreadyFinalized):
			o.logger.Debug("player already finalized", "session", sessionID, "player", r.Player.ID)
		case err != nil:
			summary.RewardFailures = append(summary.RewardFailures, RewardFailure{PlayerID: r.Player.ID, Err: err})
		}
		summary.Players = append(summary.Players, ps)
	}
	if len(summary.RewardFailures) > 0 {
		errs := make([]error, 0, len(summary.RewardFailures))
		for _, f := range summary.RewardFailures {
			errs = append(errs, fmt.Errorf("player %s: %w", f.PlayerID, f.Err))
		}
		return summary, fmt.Errorf("write rewards: %w", errors.Join(errs...))
	}

	summary.PathkeyFailures = o.processPathkeys(ctx, session, results, summary.Players)

	if err := o.store.CompleteSession(ctx, sessionID, o.now()); err != nil {
		return summary, fmt.Errorf("complete session: %w", err)
	}
	o.logger.Info("game ended",
		"session", sessionID, "players", len(results), "pathkeyFailures", summary.PathkeyFailures)
	return summary, nil
}

// processPathkeys evaluates every non-guest player. Players are independent,
// so evaluation fans out up to Rules.Parallelism at a time. Failures and
// panics are logged and counted, never returned.
func (o *Orchestrator) processPathkeys(ctx context.Context, session domain.SessionContext, results []scoring.Result, players []PlayerSummary) int {
	var (
		mu       sync.Mutex
		failures int
	)
	fail := func() {
		mu.Lock()
		failures++
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(o.rules.Parallelism)
	for i, r := range results {
		if r.Player.IsGuest() {
			continue
		}
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					o.logger.Error("pathkey evaluation panicked",
						"session", session.SessionID, "player", r.Player.ID, "panic", rec)
					fail()
				}
			}()
			outcome, err := o.evaluator.Evaluate(ctx, session, r.Player, r.Placement, len(results))
			players[i].Outcome = outcome
			if err != nil {
				o.logger.Error("pathkey evaluation failed",
					"session", session.SessionID, "player", r.Player.ID, "error", err)
				fail()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failures
}

func (o *Orchestrator) careerPathkeys(ctx context.Context, session domain.SessionContext) []string {
	if session.Mode != domain.ModeCareer || session.Target.CareerID == "" {
		return nil
	}
	catalog, err := o.store.ListCareerPathkeys(ctx, session.Target.CareerID)
	if err != nil {
		o.logger.Warn("pathkey catalog lookup failed", "career", session.Target.CareerID, "error", err)
		return nil
	}
	if len(catalog) == 0 {
		o.logger.Info("no pathkeys available to award", "career", session.Target.CareerID)
		return nil
	}
	ids := make([]string, 0, len(catalog))
	for _, p := range catalog {
		ids = append(ids, p.ID)
	}
	return ids
}

// RecordAnswer is the body of Trigger B. Answers from guests and answers to
// questions without a driver context are ignored.
func (o *Orchestrator) RecordAnswer(ctx context.Context, ev AnswerEvent) error {
	if ev.StudentID == "" {
		return nil
	}
	qc, found, err := o.store.FindQuestionDriverContext(ctx, ev.QuestionID)
	if err != nil {
		return fmt.Errorf("find question driver context: %w", err)
	}
	if !found || qc.CareerID == "" {
		return nil
	}
	_, err = o.tracker.Record(ctx, ev.StudentID, qc.CareerID, qc.Driver, ev.Correct)
	return err
}

// Tracker exposes the business driver tracker.
func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}
