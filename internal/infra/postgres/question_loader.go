package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pathkey-service/internal/domain"
)

// QuestionLoader reads question sets straight from Postgres for the content caches.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	var (
		set                           domain.QuestionSet
		careerID, sectorID, clusterID *string
	)
	err := l.pool.QueryRow(ctx,
		`SELECT id, title, career_id, sector_id, cluster_id FROM question_sets WHERE id=$1`, setID,
	).Scan(&set.ID, &set.Title, &careerID, &sectorID, &clusterID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuestionSet{}, domain.ErrQuestionSetNotFound
	}
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load question set: %w", err)
	}
	set.CareerID = deref(careerID)
	set.SectorID = deref(sectorID)
	set.ClusterID = deref(clusterID)

	rows, err := l.pool.Query(ctx,
		`SELECT id, prompt, options, points, driver FROM questions WHERE set_id=$1 ORDER BY position, id`, setID)
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q       domain.Question
			options []byte
			driver  *string
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &options, &q.Points, &driver); err != nil {
			return domain.QuestionSet{}, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return domain.QuestionSet{}, fmt.Errorf("unmarshal options of %s: %w", q.ID, err)
		}
		q.Driver = domain.BusinessDriver(deref(driver))
		set.Questions = append(set.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load questions: %w", err)
	}
	return set, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
