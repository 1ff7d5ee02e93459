package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recon-engine/core/broadcast"
	"recon-engine/core/config"
	"recon-engine/core/database"
	"recon-engine/core/graph"
	"recon-engine/core/loader"
	"recon-engine/core/logger"
	"recon-engine/core/middleware/auth"
	"recon-engine/core/middleware/rayid"
	"recon-engine/core/pipeline"
	"recon-engine/core/storage"

	"recon-engine/feature/archive"
	"recon-engine/feature/jobs"
	"recon-engine/feature/rulestore"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ruleCacheTTL bounds how stale an already loaded rule set may get before
// the next drain cycle rereads the database.
const ruleCacheTTL = 30 * time.Second

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the reconciliation engine server",
	Long:  `Starts the HTTP server, the ingestion pipeline and all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database (Optional)
		// Without a database the engine still runs; rules then come from an
		// empty static source until one is configured.
		var source pipeline.RuleSource
		if db, err := database.Connect(cfg.Database); err != nil {
			logg.Warn("Optional database connection failed, using static rule source", zap.Error(err))
			source = rulestore.NewStatic(nil)
		} else {
			source = rulestore.NewStore(db, ruleCacheTTL)
			logg.Info("Connected to rule database")
		}

		// 4. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
		})

		// 5. Initialize Storage
		store, err := storage.NewClient(cfg.Storage)
		if err != nil {
			logg.Fatal("Failed to create storage client", zap.Error(err))
		}

		// 6. Engine wiring: hub feeds subscribers, registry owns the graphs,
		// the pipeline drives matching.
		hub := broadcast.NewHub(logg)
		registry := graph.NewRegistry(hub)
		pipe := pipeline.New(cfg.Pipeline, registry, source, logg)

		// 7. Initialize Feature Loader
		mgr := loader.NewManager()

		// Register Features
		archiver := archive.NewArchiver(store, cfg.Storage.Bucket, registry, hub, logg)
		mgr.Register(jobs.NewFeature(registry, pipe, hub, logg))
		mgr.Register(archive.NewFeature(archiver))

		// Middleware Registration
		// 1. RayID (Must be first to trace everything)
		app.Use(rayid.New())

		// 2. Logging Middleware (Custom to use Zap + RayID)
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 3. Auth (Protect API)
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		// 8. Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 9. Ensure the archive bucket exists; a missing bucket only
		// degrades archival, not matching.
		if err := archiver.EnsureBucket(context.Background()); err != nil {
			logg.Warn("Archive bucket unavailable", zap.Error(err))
		}

		// 10. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(cfg.Server.Address()); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 11. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.Shutdown()
		pipe.Close()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
