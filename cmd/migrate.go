package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jjenkins/billwatch/internal/config"
	"github.com/jjenkins/billwatch/internal/logger"
	"github.com/jjenkins/billwatch/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back database migrations",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"up", "down"},
	Run: func(cmd *cobra.Command, args []string) {
		direction := "up"
		if len(args) == 1 {
			direction = args[0]
		}
		if direction != "up" && direction != "down" {
			exitf("unknown direction %q (want up or down)", direction)
		}

		cfg := config.Load()
		log, err := logger.New(cfg.LogMode)
		if err != nil {
			exitf("Failed to create logger: %v", err)
		}
		defer log.Sync()

		db, err := store.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to connect to database", "error", err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if direction == "down" {
			err = store.RollbackMigrations(ctx, db)
		} else {
			err = store.ApplyMigrations(ctx, db)
		}
		if err != nil {
			log.Fatal("Migration failed", "direction", direction, "error", err)
		}
		log.Info("Migrations complete", "direction", direction)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
