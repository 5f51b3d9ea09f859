package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lotas/trackerguard/internal/applog"
	"github.com/lotas/trackerguard/internal/config"
	"github.com/lotas/trackerguard/internal/outbox"
	"github.com/lotas/trackerguard/internal/pagefile"
	"github.com/lotas/trackerguard/internal/panel"
	"github.com/lotas/trackerguard/internal/server"
	"github.com/lotas/trackerguard/internal/storage"
	"github.com/lotas/trackerguard/internal/types"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var recordDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the headless bridge to the extension",
		Long: `Run the panel without a terminal UI. Page contexts and commands from the
extension are applied to the panel and results are sent back. Every patch is
mirrored to the extension and recorded in the local database.

With --record, each page context received is written to the directory as a
.jsonlz4 page dump that "trackerguard --page" can replay.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applog.SetOutput(os.Stderr)
			applog.SetLevel(cfg.LogLevel)

			db, err := openDB(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(cfg.Port)
			ob := outbox.New(
				outbox.Options{Retries: cfg.Outbox.Retries, Backoff: cfg.Backoff()},
				srv,
				storage.NewPanelStore(db, "bridge"),
			)

			b := &bridge{
				ctx:       ctx,
				srv:       srv,
				work:      make(chan func(), 16),
				prefs:     make(chan types.Preferences, 1),
				recordDir: recordDir,
			}
			b.panel = panel.New(panel.Options{
				Preferences: cfg.Preferences(),
				Persister:   ob,
				Dispatch:    b.dispatch,
			})

			go ob.Run(ctx)
			go func() {
				if err := srv.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
					applog.Error("serve.listen", err)
					stop()
				}
			}()
			watchConfig(ctx, func(c *config.Config) {
				select {
				case b.prefs <- c.Preferences():
				default:
				}
			})

			fmt.Fprintf(os.Stderr, "Listening for the extension on 127.0.0.1:%d\n", cfg.Port)
			b.run(ctx)

			flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			ob.Flush(flushCtx)
			return nil
		},
	}

	cmd.Flags().StringVar(&recordDir, "record", "", "Directory to record received page contexts into")
	return cmd
}

// bridge owns the panel on a single goroutine: extension messages, timer
// callbacks and preference changes are all applied from run.
type bridge struct {
	ctx       context.Context
	srv       *server.Server
	panel     *panel.Panel
	work      chan func()
	prefs     chan types.Preferences
	recordDir string
}

// dispatch queues fn for run. Work arriving after shutdown is dropped.
func (b *bridge) dispatch(fn func()) {
	select {
	case b.work <- fn:
	case <-b.ctx.Done():
		applog.Info("serve.dispatch.dropped", "reason", b.ctx.Err())
	}
}

func (b *bridge) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.srv.Messages():
			if msg.Type == server.MsgPageContext && b.recordDir != "" {
				b.record(msg)
			}
			reply, ok := server.Dispatch(b.panel, msg)
			if ok {
				if err := b.srv.Send(reply); err != nil {
					applog.Error("serve.reply", err, "id", reply.ID)
				}
			}
		case fn := <-b.work:
			fn()
		case prefs := <-b.prefs:
			b.panel.SetPreferences(prefs)
		}
	}
}

func (b *bridge) record(msg server.IncomingMsg) {
	name := fmt.Sprintf("page-%s.jsonlz4", time.Now().Format("20060102-150405.000"))
	path := filepath.Join(b.recordDir, name)
	if err := pagefile.Write(path, msg); err != nil {
		applog.Error("serve.record", err, "path", path)
		return
	}
	applog.Info("serve.recorded", "path", path)
}
