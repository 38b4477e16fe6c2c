package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"pathkey-service/internal/app"
	"pathkey-service/internal/config"
	"pathkey-service/internal/infra/memory"
	pgstore "pathkey-service/internal/infra/postgres"
	redisinfra "pathkey-service/internal/infra/redis"
	"pathkey-service/internal/pathkey"
	transport "pathkey-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// gameBackend is the game store plus the award engine store.
type gameBackend interface {
	app.GameStore
	pathkey.Store
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	rules, err := cfg.Pathkey.Rules()
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var (
		backend gameBackend
		loader  memory.QuestionSetLoader
	)
	if cfg.Postgres.URL != "" {
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := runMigrations(ctx, db, cfg); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		backend = pgstore.NewStore(db)
		loader = pgstore.NewQuestionLoader(pool)
	} else {
		store := memory.NewStore()
		catalog := sampleCatalog()
		for _, c := range catalog.careers {
			store.AddCareer(c)
		}
		for _, p := range catalog.pathkeys {
			store.AddPathkey(p)
		}
		for _, s := range catalog.sets {
			store.AddQuestionSet(s)
		}
		backend = store
		loader = store
		logger.Warn("no postgres configured, serving demo content from memory")
	}

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	var (
		questions app.QuestionSetRepository
		sessions  app.SessionRepository
	)
	if cfg.Redis.Addr != "" {
		redisClient := newRedisClient(cfg)
		defer redisClient.Close()
		questions = redisinfra.NewQuestionSetRepository(redisClient, loader, contentTTL)
		sessions = redisinfra.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		questions = memory.NewQuestionSetRepository(loader, contentTTL)
		sessions = memory.NewSessionStore()
	}

	awards := pathkey.NewOrchestrator(backend, rules, logger)
	dispatcher := pathkey.NewDispatcher(
		awards,
		cfg.Pathkey.Workers,
		cfg.Pathkey.QueueSize,
		config.TTLDuration(cfg.Pathkey.EventTimeout, pathkey.DefaultEventTimeout),
		logger,
	)
	defer dispatcher.Close()

	service := app.NewGameService(sessions, questions, backend, awards, dispatcher, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", transport.NewWSHandler(service, logger).ServeWS)
	transport.NewGamesHandler(service, logger).Register(mux)
	mux.HandleFunc("GET /students/{studentId}/careers/{careerId}/pathkey", transport.StatusHandler(awards))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting pathkey service", "port", finalPort, "demoMode", cfg.Pathkey.DemoMode,
			"minPlayers", rules.MinPlayersForCareerMastery)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
