package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"pathkey-service/internal/app"
	"pathkey-service/internal/domain"
	pgstore "pathkey-service/internal/infra/postgres"
	pgmigrations "pathkey-service/internal/infra/postgres/migrations"
	infraredis "pathkey-service/internal/infra/redis"
	"pathkey-service/internal/pathkey"
)

func TestGameEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migratedDB(t, ctx, pgURL)
	defer db.Close()

	store := pgstore.NewStore(db)
	if err := store.SeedCatalog(ctx,
		[]domain.Career{{ID: "nurse", Name: "Nurse", SectorID: "health", ClusterID: "health-science"}},
		[]domain.Pathkey{{ID: "pk-nurse", CareerID: "nurse", Name: "Nurse key"}},
		[]domain.QuestionSet{sampleSet()},
	); err != nil {
		t.Fatalf("seed: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	questions := infraredis.NewQuestionSetRepository(redisClient, pgstore.NewQuestionLoader(pool), 5*time.Minute)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	awards := pathkey.NewOrchestrator(store, pathkey.DefaultRules(), logger)
	dispatcher := pathkey.NewDispatcher(awards, 1, 16, 5*time.Second, logger)
	service := app.NewGameService(sessions, questions, store, awards, dispatcher, logger)

	game, err := service.CreateGame(ctx, app.CreateGameRequest{HostID: "host", Mode: domain.ModeCareer, QuestionSetID: "qs-nurse"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i, name := range []string{"Alice", "Bob", "Cara"} {
		if _, err := service.Join(ctx, game.ID, fmt.Sprintf("p%d", i+1), fmt.Sprintf("s%d", i+1), name); err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
	}
	if err := service.StartGame(ctx, game.ID, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}

	lb, result, err := service.SubmitAnswer(ctx, game.ID, "p2", domain.AnswerSubmission{QuestionID: "q1", OptionID: "o2"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Correct || result.Awarded != 20 || result.TotalScore != 20 {
		t.Fatalf("expected 20 points, got %+v", result)
	}
	if len(lb.Entries) != 3 || lb.Entries[0].PlayerID != "p2" {
		t.Fatalf("expected bob leading, got %+v", lb.Entries)
	}
	if _, _, err := service.SubmitAnswer(ctx, game.ID, "p2", domain.AnswerSubmission{QuestionID: "q1", OptionID: "o2"}); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected repeat answer to be rejected, got %v", err)
	}

	// Drain Trigger B before ending so driver progress is in place.
	dispatcher.Close()

	summary, err := service.EndGame(ctx, game.ID, "host")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if len(summary.Players) != 3 || summary.Players[0].PlayerID != "p2" || summary.Players[0].Tokens != 62 {
		t.Fatalf("unexpected summary %+v", summary.Players)
	}
	if got := summary.Players[0].PathkeyIDs; len(got) != 1 || got[0] != "pk-nurse" {
		t.Fatalf("expected winner to receive pk-nurse, got %v", got)
	}

	rec, found, err := store.GetStudentPathkey(ctx, "s2", "nurse")
	if err != nil || !found || !rec.CareerMasteryUnlocked {
		t.Fatalf("expected career mastery for s2, got %+v found=%v err=%v", rec, found, err)
	}
	// Every top-3 placement unlocks career mastery in a 3 player game.
	for _, s := range []string{"s1", "s3"} {
		if rec, _, _ := store.GetStudentPathkey(ctx, s, "nurse"); !rec.CareerMasteryUnlocked {
			t.Fatalf("expected career mastery for %s", s)
		}
	}

	drivers, err := store.ListDriverProgress(ctx, "s2", "nurse")
	if err != nil || len(drivers) != 1 || drivers[0].ChunkCorrect != 1 {
		t.Fatalf("expected one people answer tracked, got %+v err=%v", drivers, err)
	}

	if _, err := service.EndGame(ctx, game.ID, "host"); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected second end to be rejected, got %v", err)
	}
}

func TestStoreConcurrencyGuards(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	db := migratedDB(t, ctx, pgURL)
	defer db.Close()
	store := pgstore.NewStore(db)

	rec, err := store.SaveStudentPathkey(ctx, domain.StudentPathkeyRecord{StudentID: "s1", CareerID: "nurse", CareerMasteryUnlocked: true})
	if err != nil {
		t.Fatalf("insert record: %v", err)
	}
	if rec.Version != 1 {
		t.Fatalf("expected version 1, got %d", rec.Version)
	}
	if _, err := store.SaveStudentPathkey(ctx, domain.StudentPathkeyRecord{StudentID: "s1", CareerID: "nurse", CareerMasteryUnlocked: true}); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected duplicate insert conflict, got %v", err)
	}

	stale := rec
	rec.IndustryMasteryUnlocked = true
	if rec, err = store.SaveStudentPathkey(ctx, rec); err != nil || rec.Version != 2 {
		t.Fatalf("update: %+v %v", rec, err)
	}
	stale.ClusterMasteryUnlocked = true
	if _, err := store.SaveStudentPathkey(ctx, stale); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected stale update conflict, got %v", err)
	}

	if _, err := store.SaveStudentPathkey(ctx, domain.StudentPathkeyRecord{StudentID: "s2", CareerID: "nurse", IndustryMasteryUnlocked: true}); !errors.Is(err, domain.ErrGatingViolation) {
		t.Fatalf("expected gating violation, got %v", err)
	}

	progress := domain.SectionTwoProgress{ID: "st-1", StudentID: "s1", CareerID: "nurse", MasteryType: domain.MasteryIndustry, QuestionSetID: "qs-1", Accuracy: 0.9}
	if inserted, err := store.AppendSectionTwoProgress(ctx, progress); err != nil || !inserted {
		t.Fatalf("append: inserted=%v err=%v", inserted, err)
	}
	progress.ID = "st-2"
	if inserted, err := store.AppendSectionTwoProgress(ctx, progress); err != nil || inserted {
		t.Fatalf("expected duplicate set ignored: inserted=%v err=%v", inserted, err)
	}
	if n, err := store.CountSectionTwoProgress(ctx, "s1", "nurse", domain.MasteryIndustry, 0.9); err != nil || n != 1 {
		t.Fatalf("count: n=%d err=%v", n, err)
	}

	p, err := store.GetDriverProgress(ctx, "s1", "nurse", domain.DriverPeople)
	if err != nil || p.Version != 1 {
		t.Fatalf("read-or-create: %+v %v", p, err)
	}
	p.ChunkQuestions, p.ChunkCorrect = 1, 1
	if _, err := store.SaveDriverProgress(ctx, p); err != nil {
		t.Fatalf("save driver: %v", err)
	}
	if _, err := store.SaveDriverProgress(ctx, p); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected driver conflict, got %v", err)
	}
}

func migratedDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "pathkey", "POSTGRES_PASSWORD": "pathkeypass", "POSTGRES_DB": "pathkeydb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://pathkey:pathkeypass@%s:%s/pathkeydb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID:       "qs-nurse",
		Title:    "Ward basics",
		CareerID: "nurse",
		Questions: []domain.Question{
			{
				ID:     "q1",
				Prompt: "Who coordinates a ward shift?",
				Options: []domain.Option{
					{ID: "o1", Text: "Porter", Correct: false},
					{ID: "o2", Text: "Charge nurse", Correct: true},
					{ID: "o3", Text: "Visitor", Correct: false},
				},
				Points: 20,
				Driver: domain.DriverPeople,
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
