package admin

import (
	"fmt"

	"github.com/cloo-solutions/studycompanion/internal/config"
	"github.com/cloo-solutions/studycompanion/internal/database"
	"github.com/spf13/cobra"
)

// MigrateCmd applies pending migrations without starting the server.
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			version, err := database.Migrate(cfg.DatabaseURL, source)
			if err != nil {
				return err
			}
			fmt.Printf("Database at version %d\n", version)
			return nil
		},
	}

	cmd.Flags().String("source", database.DefaultMigrationsSource, "Migrations source URL")

	return cmd
}
