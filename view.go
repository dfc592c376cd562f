package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"tactical-grid/client"
	"tactical-grid/game"
	"tactical-grid/tui"
	"tactical-grid/viewport"
)

var viewFlags struct {
	server  string
	session string
	player  string
	scene   string
	edit    string
	logFile string
}

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Open a session in the terminal",
	Long: `Join a session and draw its grid in the terminal. Without --player the view is the GM's.
Click a creature for its menu, drag to pan and scroll to zoom.`,
	RunE: runView,
}

func init() {
	f := viewCmd.Flags()
	f.StringVar(&viewFlags.server, "server", "http://localhost:3000", "session server base URL")
	f.StringVar(&viewFlags.session, "session", "", "session id to join")
	f.StringVar(&viewFlags.player, "player", "", "player id; empty views as the GM")
	f.StringVar(&viewFlags.scene, "scene", "", "scene the GM starts on")
	f.StringVar(&viewFlags.edit, "edit", "", "open the terrain editor on this map")
	f.StringVar(&viewFlags.logFile, "log", "", "write logs to this file")
	_ = viewCmd.MarkFlagRequired("session")
}

// viewLogger keeps logs off the terminal the grid is drawn on.
func viewLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { f.Close() }, nil
}

func runView(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := viewLogger(viewFlags.logFile)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	screen.EnableMouse(tcell.MouseButtonEvents | tcell.MouseDragEvents)

	vc := cfg.Viewport
	loop := viewport.NewLoop(64)
	view := tui.New(screen, loop, tui.Options{Logger: logger})

	var vp *viewport.Viewport
	first := true
	conn, err := client.Dial(ctx, viewFlags.server, viewFlags.session, client.Handlers{
		State: func(s game.State) {
			view.Post(func() {
				vp.SetSnapshot(s)
				if first {
					first = false
					startView(vp, logger)
				}
			})
		},
		Error: func(msg string) {
			logger.Warn("command rejected", "error", msg)
		},
	})
	if err != nil {
		screen.Fini()
		return err
	}
	defer conn.Close()

	vp = viewport.New(ctx, viewport.Config{
		PlayerID:       viewFlags.player,
		Query:          client.NewQuery(viewFlags.server, viewFlags.session, vc.QueryTimeout()),
		Dispatcher:     conn,
		Scheduler:      view,
		Post:           view.Post,
		Camera:         vc.Camera(),
		ClickWindow:    vc.ClickWindow(),
		TeleportRadius: vc.TeleportRadius,
		QueryTimeout:   vc.QueryTimeout(),
		EditWindow:     vc.EditWindow,
		Logger:         logger,
	})
	view.Bind(vp)

	go func() {
		select {
		case <-conn.Done():
			logger.Info("server connection closed")
			cancel()
		case <-ctx.Done():
		}
	}()

	return view.Run(ctx)
}

// startView applies --scene and --edit once the first snapshot has arrived.
func startView(vp *viewport.Viewport, logger *slog.Logger) {
	if viewFlags.scene != "" && vp.IsGM() {
		if _, ok := vp.World().Scene(viewFlags.scene); ok {
			vp.FocusScene(viewFlags.scene)
		} else {
			logger.Warn("unknown scene", "scene", viewFlags.scene)
		}
	}
	if viewFlags.edit != "" {
		vp.OpenEditor(viewFlags.edit)
	}
}
