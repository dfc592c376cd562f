package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/spf13/cobra"

	"tactical-grid/config"
	"tactical-grid/session"
	"tactical-grid/store"
)

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tactical-grid",
	Short: "Shared tactical grid for tabletop sessions",
	Long:  `tactical-grid serves game sessions over HTTP and websockets, and opens them in a terminal grid.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load(configPath)
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "path to the JSON config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(viewCmd)
}

func setupApp(m *session.Manager) *fiber.App {
	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Content-Type",
	}))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Post("/session", m.CreateSession)
	app.Get("/session/:id", m.GetSession)
	app.Delete("/session/:id", m.DeleteSession)
	app.Get("/session/:id/movement_options/:scene/:creature", m.MovementOptions)
	app.Get("/session/:id/combat_movement_options", m.CombatMovementOptions)

	app.Get("/ws/:sessionId", websocket.New(m.HandleWS))

	return app
}

// openStore connects the configured snapshot backend. It returns nil, nil when persistence
// is not configured.
func openStore(ctx context.Context, cfg config.Config) (store.Snapshotter, error) {
	switch cfg.SnapshotBackend {
	case config.BackendRedis:
		r, err := store.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.BackendPostgres, "":
		if cfg.DatabaseURL == "" {
			return nil, nil
		}
		p, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotBackend)
	}
}

// finalSnapshotTimeout bounds the snapshot taken after the server stops listening.
const finalSnapshotTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := session.NewManager(cfg)

	s, err := openStore(ctx, cfg)
	switch {
	case err != nil:
		slog.Warn("failed to open snapshot store, running without persistence", "backend", cfg.SnapshotBackend, "error", err)
	case s != nil:
		defer s.Close()
		manager.SetStore(s, cfg.SnapshotInterval())
		manager.RestoreSessions(ctx)
		manager.StartPeriodicSnapshots(ctx)
		defer func() {
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSnapshotTimeout)
			defer cancel()
			manager.StopPeriodicSnapshots(final)
		}()
	}

	app := setupApp(manager)
	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		_ = app.Shutdown()
	}()

	slog.Info("listening", "addr", cfg.ListenAddr)
	return app.Listen(cfg.ListenAddr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
