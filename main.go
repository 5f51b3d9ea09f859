// trackerguard is the tracker-blocking panel for a browser extension: a
// terminal panel (live over WebSocket or replaying a recorded page), a
// headless bridge, and tools for the locally mirrored panel data.
//
// Usage:
//
//	trackerguard                      # terminal panel, live mode
//	trackerguard --page page.jsonlz4  # terminal panel, offline
//	trackerguard serve --record dir   # headless bridge
//	trackerguard export --page page.json --json
//	trackerguard hosts add trusted example.com
//	trackerguard pending ack
//	trackerguard doctor
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lotas/trackerguard/internal/applog"
	"github.com/lotas/trackerguard/internal/config"
	"github.com/lotas/trackerguard/internal/outbox"
	"github.com/lotas/trackerguard/internal/panel"
	"github.com/lotas/trackerguard/internal/server"
	"github.com/lotas/trackerguard/internal/storage"
	"github.com/lotas/trackerguard/internal/tui"
	"github.com/spf13/cobra"
)

var version = "dev"

// Global flags. Flags override environment variables, which override the
// config file.
var (
	configDir string
	portFlag  int
	dbFlag    string
	logLevel  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trackerguard",
		Short: "Tracker-blocking panel for the current page",
		Long: `trackerguard shows the trackers found on the current page, grouped by
category, and lets you block them, trust or restrict the site, and pause
blocking. Changes are mirrored to the extension and to a local database.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "Config directory (default ~/.config/trackerguard)")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "WebSocket port for the extension")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Path to the panel database")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	tuiCommand := tuiCmd()
	rootCmd.RunE = tuiCommand.RunE
	rootCmd.Flags().AddFlagSet(tuiCommand.Flags())

	rootCmd.AddCommand(tuiCommand)
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(hostsCmd())
	rootCmd.AddCommand(pendingCmd())
	rootCmd.AddCommand(doctorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration: flag > env > file > default.
func loadConfig() (*config.Config, error) {
	dir := configDir
	if dir == "" {
		dir = config.Dir()
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if portFlag != 0 {
		cfg.Port = portFlag
	}
	if dbFlag != "" {
		cfg.DB = dbFlag
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, cfg.Validate()
}

func resolveConfigDir() string {
	if configDir != "" {
		return configDir
	}
	return config.Dir()
}

// initLogging writes logs to the configured log directory. Logging is
// optional; a failure only disables it.
func initLogging(cfg *config.Config) {
	if err := applog.Init(cfg.LogDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	applog.SetLevel(cfg.LogLevel)
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	return storage.OpenDB(cfg.DB)
}

// watchConfig pushes preference changes to onChange until ctx is done.
// A missing config directory disables watching.
func watchConfig(ctx context.Context, onChange func(*config.Config)) {
	w, err := config.NewWatcher(resolveConfigDir(), 0, onChange)
	if err != nil {
		applog.Info("config.watch.disabled", "err", err)
		return
	}
	go w.Run(ctx)
}

func tuiCmd() *cobra.Command {
	var (
		pagePath string
		pauseFor time.Duration
	)

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal panel (default)",
		Long: `Open the terminal panel. Without --page it waits for the extension to
connect and follows the active page. With --page it replays a recorded
page dump (.json or .jsonlz4) offline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			initLogging(cfg)
			defer applog.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var sinks []outbox.Sink
			var srv *server.Server
			if pagePath == "" {
				srv = server.New(cfg.Port)
				sinks = append(sinks, srv)
			}
			source := "tui"
			if pagePath != "" {
				source = "tui-offline"
			}
			if db, err := openDB(cfg); err != nil {
				applog.Error("tui.db", err, "path", cfg.DB)
			} else {
				defer db.Close()
				sinks = append(sinks, storage.NewPanelStore(db, source))
			}

			ob := outbox.New(outbox.Options{Retries: cfg.Outbox.Retries, Backoff: cfg.Backoff()}, sinks...)
			go ob.Run(ctx)

			dispatcher := &tui.Dispatcher{}
			p := panel.New(panel.Options{
				Preferences: cfg.Preferences(),
				Persister:   ob,
				Dispatch:    dispatcher.Dispatch,
			})

			model := tui.NewModel(tui.Options{
				Panel:    p,
				Server:   srv,
				PagePath: pagePath,
				PauseFor: pauseFor,
			})
			prog := tea.NewProgram(model, tea.WithAltScreen())
			dispatcher.Attach(prog)

			watchConfig(ctx, func(c *config.Config) {
				prog.Send(tui.PreferencesMsg(c.Preferences()))
			})

			_, err = prog.Run()

			flushCtx, flushCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer flushCancel()
			if n := ob.Flush(flushCtx); n > 0 {
				applog.Info("tui.flushed", "patches", n)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&pagePath, "page", "", "Replay a recorded page dump instead of connecting")
	cmd.Flags().DurationVar(&pauseFor, "pause-for", 30*time.Minute, "Duration of a timed pause")
	return cmd
}
