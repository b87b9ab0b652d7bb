package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weiawesome/hybrid-relay/internal/domain"
	"github.com/weiawesome/hybrid-relay/pkg/database"
	"github.com/weiawesome/hybrid-relay/pkg/log"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}

			db, err := database.New(&cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer database.Close(db)

			if err := database.AutoMigrate(db, domain.Models()...); err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}

			l := log.L()
			l.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")
			return nil
		},
	}
}
