/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"

	"github.com/schoollms/apiserver/config"
	"github.com/schoollms/apiserver/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Loads demo accounts, lessons and timetables into Postgres",
	Long: `Loads the demo school into the Postgres store. Usage:

	lms seed
	lms seed --file fixtures/school.yaml

Existing users are kept and lessons are only loaded into an empty catalogue,
so the command is safe to run more than once.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		if cfg.StoreDriver != config.StoreDriverPostgres {
			return errors.New("seed needs STORE_DRIVER=postgres; the memory store is seeded by the server at start-up")
		}
		if file, _ := cmd.Flags().GetString("file"); file != "" {
			cfg.SeedFile = file
		}

		repos, dbConn, err := server.OpenRepositories(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		app := server.NewApp(cfg, repos, server.Options{}, logger)
		result, err := app.Seed(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		logger.Info("seed complete",
			zap.Int("users", result.Users),
			zap.Int("lessons", result.Lessons),
			zap.Int("timetables", result.Timetables))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().String("file", "", "YAML fixture to load instead of the built-in demo school")
}
