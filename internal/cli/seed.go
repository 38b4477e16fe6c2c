package cli

import (
	"github.com/spf13/cobra"

	"pathkey-service/internal/config"
	pgstore "pathkey-service/internal/infra/postgres"
)

// NewSeedCmd loads the demo catalog into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo careers, pathkeys and question sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := runMigrations(cmd.Context(), db, cfg); err != nil {
				return err
			}

			catalog := sampleCatalog()
			store := pgstore.NewStore(db)
			if err := store.SeedCatalog(cmd.Context(), catalog.careers, catalog.pathkeys, catalog.sets); err != nil {
				return err
			}
			logger := newLogger(cfg)
			logger.Info("catalog seeded",
				"careers", len(catalog.careers), "pathkeys", len(catalog.pathkeys), "questionSets", len(catalog.sets))

			if cfg.Redis.Addr == "" {
				return nil
			}
			client := newRedisClient(cfg)
			defer client.Close()
			if err := invalidateQuestionSets(cmd.Context(), client, catalog.sets); err != nil {
				return err
			}
			logger.Info("question set cache invalidated", "questionSets", len(catalog.sets))
			return nil
		},
	}
}
