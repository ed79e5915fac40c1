package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/spf13/cobra"

	"github.com/jjenkins/billwatch/internal/auth"
	"github.com/jjenkins/billwatch/internal/config"
	"github.com/jjenkins/billwatch/internal/handlers"
	"github.com/jjenkins/billwatch/internal/service"
	"github.com/jjenkins/billwatch/internal/store"
)

var port string
var skipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the billwatch web server",
	Long:  `Start the HTTP API and bill pages. Pending migrations are applied on startup.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		// Flag wins over PORT only when set explicitly
		if !cmd.Flags().Changed("port") {
			port = cfg.Port
		}

		a, err := newApp(cfg)
		if err != nil {
			exitf("Failed to start: %v", err)
		}
		defer a.Close()

		if !skipMigrations {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			err := store.ApplyMigrations(ctx, a.db)
			cancel()
			if err != nil {
				a.log.Fatal("Failed to apply migrations", "error", err)
			}
		}

		app := fiber.New(fiber.Config{
			AppName: "billwatch",
		})

		app.Use(logger.New())
		app.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
			AllowCredentials: true,
		}))

		deps := handlers.Deps{
			Bills:     a.bills,
			Syncer:    a.syncer,
			States:    store.NewStateStore(a.db),
			Users:     store.NewUserStore(a.db),
			Watchlist: store.NewWatchlistStore(a.db),
			Posts:     store.NewPostStore(a.db),
			Metrics:   service.NewMetricsService(a.db),
			Tokens:    auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL),
			Logger:    a.log.With("component", "http"),
		}
		if a.enricher != nil {
			deps.Enricher = a.enricher
		}
		handlers.Routes(app, deps)

		ctx, cancel := signalContext(a.log)
		defer cancel()
		go func() {
			<-ctx.Done()
			app.Shutdown()
		}()

		a.log.Info("Starting server", "port", port)
		if err := app.Listen(":" + port); err != nil {
			a.log.Fatal("Failed to start server", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&port, "port", "p", "8080", "Port to run the server on")
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply pending migrations on startup")
}

func exitf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
