package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"pathkey-service/internal/domain"
)

const metaField = "meta"

// QuestionSetLoader fetches question content from the backing store.
type QuestionSetLoader interface {
	LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// QuestionSetRepository caches question sets in Redis (hash per set) and falls
// back to a loader on cache miss. Layout:
//
//	HSET qset:{setID} meta {set JSON without questions}
//	HSET qset:{setID} q:{n} {question JSON}
//
// Options keep their correct flags so wrong answers can be scored from cache.
type QuestionSetRepository struct {
	client *redis.Client
	loader QuestionSetLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

type cachedMeta struct {
	domain.QuestionSet
	Count int `json:"count"`
}

func NewQuestionSetRepository(client *redis.Client, loader QuestionSetLoader, ttl time.Duration) *QuestionSetRepository {
	return &QuestionSetRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionSetRepository) GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	if set, ok := r.fromCache(ctx, setID); ok {
		return set, nil
	}

	result, err, _ := r.sf.Do(setID, func() (interface{}, error) {
		// Re-check cache in case another caller filled it.
		if set, ok := r.fromCache(ctx, setID); ok {
			return set, nil
		}

		set, err := r.loader.LoadQuestionSet(ctx, setID)
		if err != nil {
			return domain.QuestionSet{}, err
		}
		// best-effort; a cold cache only costs a reload
		_ = r.store(ctx, set)
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

// Invalidate drops cached sets so the next read reloads them.
func (r *QuestionSetRepository) Invalidate(ctx context.Context, setIDs ...string) error {
	if len(setIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(setIDs))
	for _, id := range setIDs {
		keys = append(keys, r.key(id))
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *QuestionSetRepository) fromCache(ctx context.Context, setID string) (domain.QuestionSet, bool) {
	fields, err := r.client.HGetAll(ctx, r.key(setID)).Result()
	if err != nil || len(fields) == 0 {
		return domain.QuestionSet{}, false
	}
	set, err := decodeSet(fields)
	if err != nil {
		return domain.QuestionSet{}, false
	}
	return set, true
}

func (r *QuestionSetRepository) store(ctx context.Context, set domain.QuestionSet) error {
	meta := cachedMeta{QuestionSet: set, Count: len(set.Questions)}
	meta.Questions = nil
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	key := r.key(set.ID)
	values := make([]interface{}, 0, 2+2*len(set.Questions))
	values = append(values, metaField, rawMeta)
	for i, q := range set.Questions {
		raw, err := json.Marshal(q)
		if err != nil {
			return err
		}
		values = append(values, questionField(i), raw)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, values...)
	if ttl := r.ttlWithJitter(); ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func decodeSet(fields map[string]string) (domain.QuestionSet, error) {
	rawMeta, ok := fields[metaField]
	if !ok {
		return domain.QuestionSet{}, fmt.Errorf("cached set without meta")
	}
	var meta cachedMeta
	if err := json.Unmarshal([]byte(rawMeta), &meta); err != nil {
		return domain.QuestionSet{}, err
	}

	set := meta.QuestionSet
	set.Questions = make([]domain.Question, 0, meta.Count)
	for i := 0; i < meta.Count; i++ {
		raw, ok := fields[questionField(i)]
		if !ok {
			return domain.QuestionSet{}, fmt.Errorf("cached set missing question %d", i)
		}
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return domain.QuestionSet{}, err
		}
		set.Questions = append(set.Questions, q)
	}
	return set, nil
}

func (r *QuestionSetRepository) key(setID string) string {
	return "qset:" + setID
}

func questionField(i int) string {
	return fmt.Sprintf("q:%d", i)
}

func (r *QuestionSetRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
