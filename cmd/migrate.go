package cmd

import (
	"github.com/spf13/cobra"

	"time26/config"
	"time26/database"
)

func migrateCmd() *cobra.Command {
	subCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}

	databaseURL := func() (string, error) {
		cfg, err := config.LoadDatabase(configPath)
		if err != nil {
			return "", err
		}
		setupLogging(cfg.Logging)
		return database.ConstructDatabaseURL(cfg.Database.URL, cfg.Database.Name), nil
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			return database.MigrateUp(url)
		},
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			return database.MigrateDown(url, steps)
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			return database.MigrateStatus(url)
		},
	}

	subCmd.AddCommand(upCmd, downCmd, statusCmd)
	return subCmd
}
