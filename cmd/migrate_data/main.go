package main

import (
	"context"
	"fmt"
	"os"

	"socialflow/internal/config"
	"socialflow/internal/database"
	"socialflow/internal/logging"

	"github.com/rs/zerolog/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
}

// newCommand copies every table from the SQLite file at DB_PATH into the
// PostgreSQL database described by DB_HOST/DB_NAME/... and re-aligns id
// sequences.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate_data",
		Usage: "Copy the SQLite database into PostgreSQL",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "batch",
				Usage:   "Rows per insert batch",
				Value:   500,
				Sources: cli.EnvVars("MIGRATE_BATCH_SIZE"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			batchSize := command.Int("batch")
			if batchSize <= 0 {
				return fmt.Errorf("batch must be positive, got %d", batchSize)
			}

			cfg := config.LoadConfig()
			logging.Setup(cfg.LogLevel, cfg.LogFormat)

			// 1. Connect to SQLite (Source)
			sqliteDB, err := database.OpenSQLite(cfg.DBPath, nil)
			if err != nil {
				return fmt.Errorf("connect to SQLite at %s: %w", cfg.DBPath, err)
			}
			log.Info().Str("path", cfg.DBPath).Msg("connected to SQLite")

			// 2. Connect to PostgreSQL (Destination)
			cfg.DBDriver = "postgres"
			pgDB, err := database.Open(cfg)
			if err != nil {
				return fmt.Errorf("connect to PostgreSQL: %w", err)
			}

			log.Info().Int("batch", int(batchSize)).Msg("starting data migration")
			counts, err := database.CopyTables(sqliteDB, pgDB, int(batchSize))
			for table, n := range counts {
				log.Info().Str("table", table).Int64("rows", n).Msg("table copied")
			}
			if err != nil {
				return err
			}

			for table, err := range database.SyncSequences(pgDB) {
				if err != nil {
					log.Error().Err(err).Str("table", table).Msg("failed to sync sequence")
				}
			}
			log.Info().Msg("migration completed")
			return nil
		},
	}
}
