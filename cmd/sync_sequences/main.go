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
	cmd := &cli.Command{
		Name:  "sync_sequences",
		Usage: "Realign PostgreSQL id sequences with the data in each table",
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg := config.LoadConfig()
			logging.Setup(cfg.LogLevel, cfg.LogFormat)

			db, err := database.Open(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			if db.Dialector.Name() != "postgres" {
				return fmt.Errorf("sequence sync only applies to PostgreSQL, got %s", db.Dialector.Name())
			}

			log.Info().Msg("syncing PostgreSQL sequences")
			failed := 0
			for table, err := range database.SyncSequences(db) {
				if err != nil {
					failed++
					log.Error().Err(err).Str("table", table).Msg("error syncing sequence")
				} else {
					log.Info().Str("table", table).Msg("synced sequence")
				}
			}
			if failed > 0 {
				return fmt.Errorf("sequence sync incomplete: %d tables failed", failed)
			}
			log.Info().Msg("done")
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("sequence sync failed")
	}
}
