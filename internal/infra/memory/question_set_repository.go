package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pathkey-service/internal/domain"
)

// QuestionSetLoader fetches question content from a backing store.
type QuestionSetLoader interface {
	LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// QuestionSetRepository keeps loaded question sets in process until their TTL
// lapses. Concurrent misses for one set share a single load, and callers get
// their own copy so scoring code cannot mutate cached content.
type QuestionSetRepository struct {
	loader QuestionSetLoader
	ttl    time.Duration
	now    func() time.Time
	loads  singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu      sync.RWMutex
	entries map[string]setEntry
}

type setEntry struct {
	set     domain.QuestionSet
	expires time.Time
}

func (e setEntry) fresh(at time.Time) bool {
	return at.Before(e.expires)
}

func NewQuestionSetRepository(loader QuestionSetLoader, ttl time.Duration) *QuestionSetRepository {
	return &QuestionSetRepository{
		loader:  loader,
		ttl:     ttl,
		now:     time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		entries: make(map[string]setEntry),
	}
}

func (r *QuestionSetRepository) GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	if set, ok := r.lookup(setID); ok {
		return set, nil
	}

	v, err, _ := r.loads.Do(setID, func() (any, error) {
		if set, ok := r.lookup(setID); ok {
			return set, nil
		}
		// Detached: every waiter on this key shares the result.
		set, err := r.loader.LoadQuestionSet(context.WithoutCancel(ctx), setID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.entries[setID] = setEntry{set: set, expires: r.now().Add(r.expiry())}
		r.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return cloneSet(v.(domain.QuestionSet)), nil
}

func (r *QuestionSetRepository) lookup(setID string) (domain.QuestionSet, bool) {
	r.mu.RLock()
	entry, ok := r.entries[setID]
	r.mu.RUnlock()
	if !ok || !entry.fresh(r.now()) {
		return domain.QuestionSet{}, false
	}
	return cloneSet(entry.set), true
}

// expiry is the TTL plus up to 10% jitter; zero TTL disables caching.
func (r *QuestionSetRepository) expiry() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(int64(r.ttl)/10+1))
}

func cloneSet(set domain.QuestionSet) domain.QuestionSet {
	if set.Questions == nil {
		return set
	}
	questions := make([]domain.Question, len(set.Questions))
	for i, q := range set.Questions {
		q.Options = append([]domain.Option(nil), q.Options...)
		questions[i] = q
	}
	set.Questions = questions
	return set
}

// StaticQuestionSetLoader serves a fixed map of sets.
type StaticQuestionSetLoader struct {
	sets map[string]domain.QuestionSet
}

func NewStaticQuestionSetLoader(sets map[string]domain.QuestionSet) *StaticQuestionSetLoader {
	return &StaticQuestionSetLoader{sets: sets}
}

func (l *StaticQuestionSetLoader) LoadQuestionSet(_ context.Context, setID string) (domain.QuestionSet, error) {
	if set, ok := l.sets[setID]; ok {
		return set, nil
	}
	return domain.QuestionSet{}, domain.ErrQuestionSetNotFound
}
