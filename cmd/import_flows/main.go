package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"socialflow/internal/api"
	"socialflow/internal/config"
	"socialflow/internal/database"
	"socialflow/internal/logging"
	"socialflow/internal/models"
	"socialflow/internal/store"

	"github.com/rs/zerolog/log"
	cli "github.com/urfave/cli/v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type flowFile struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Status      models.FlowStatus   `json:"status"`
	Trigger     models.Trigger      `json:"trigger"`
	Actions     []models.ActionSpec `json:"actions"`
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("import failed")
	}
}

// newCommand imports a JSON array of flow definitions for one tenant. Either
// every flow is imported or none is.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "import_flows",
		Usage: "Import flow definitions from a JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "tenant",
				Usage:    "Tenant to import the flows into",
				Required: true,
				Sources:  cli.EnvVars("IMPORT_TENANT"),
			},
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "JSON file with an array of flows",
				Required: true,
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg := config.LoadConfig()
			logging.Setup(cfg.LogLevel, cfg.LogFormat)
			tenantID := command.String("tenant")

			f, err := os.Open(command.String("file"))
			if err != nil {
				return fmt.Errorf("open flow file: %w", err)
			}
			defer f.Close()

			db, err := database.Open(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			n, err := importFlows(ctx, db, tenantID, f)
			if err != nil {
				return err
			}
			log.Info().Int("flows", n).Str("tenant_id", tenantID).Msg("flows imported")
			return nil
		},
	}
}

func importFlows(ctx context.Context, db *gorm.DB, tenantID string, r io.Reader) (int, error) {
	var defs []flowFile
	if err := json.NewDecoder(r).Decode(&defs); err != nil {
		return 0, fmt.Errorf("decode flows: %w", err)
	}

	for i, def := range defs {
		if def.Name == "" {
			return 0, fmt.Errorf("flow %d: name is required", i)
		}
		if err := api.ValidateFlow(def.Trigger, def.Actions); err != nil {
			return 0, fmt.Errorf("flow %d (%s): %w", i, def.Name, err)
		}
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flows := store.NewFlowRepository(tx)
		for _, def := range defs {
			actions := def.Actions
			if actions == nil {
				actions = []models.ActionSpec{}
			}
			flow := &models.Flow{
				TenantID:    tenantID,
				Name:        def.Name,
				Description: def.Description,
				Status:      def.Status,
				Trigger:     datatypes.NewJSONType(def.Trigger),
				Actions:     datatypes.JSONSlice[models.ActionSpec](actions),
			}
			if err := flows.Create(ctx, flow); err != nil {
				return fmt.Errorf("create flow %s: %w", def.Name, err)
			}
			log.Debug().Uint("flow_id", flow.ID).Str("name", flow.Name).Msg("flow imported")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(defs), nil
}
