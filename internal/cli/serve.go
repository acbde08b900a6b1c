package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/bencan1a/calendarbot/internal/cachemgr"
	"github.com/bencan1a/calendarbot/internal/clock"
	"github.com/bencan1a/calendarbot/internal/config"
	"github.com/bencan1a/calendarbot/internal/eventmodel"
	"github.com/bencan1a/calendarbot/internal/httpdebug"
	"github.com/bencan1a/calendarbot/internal/metrics"
	"github.com/bencan1a/calendarbot/internal/scheduler"
	"github.com/bencan1a/calendarbot/internal/store"
)

func newServeCommand(opts *RootOptions) *cobra.Command {
	var configPath string
	var addr string
	var feedPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingest scheduler and debug HTTP server until signalled to stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cmd.ErrOrStderr(), opts.Verbose)

			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return WrapExitError(ExitCommandError, "load config", err)
				}
				cfg = loaded
			}
			if opts.DBPath != "" {
				cfg.DBPath = opts.DBPath
			}

			s, err := store.Open(cfg.DBPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer s.Close()

			reg := prometheus.NewRegistry()
			mx := metrics.New(reg)

			c := clock.NewReal()
			mgr := cachemgr.New(s, c,
				cachemgr.WithTTL(cfg.TTL()),
				cachemgr.WithRetention(cfg.Retention()),
				cachemgr.WithLogger(log),
				cachemgr.WithMetrics(mx))

			sched := scheduler.New(mgr, feedFetcher(feedPath, c), scheduler.WithLogger(log))

			router := httpdebug.NewRouter(httpdebug.Deps{
				Manager:  mgr,
				Config:   cfg,
				Metrics:  mx,
				Registry: reg,
			})
			httpSrv := &http.Server{Addr: addr, Handler: router}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 2)
			go func() {
				log.Info("http server starting", "component", "cli", "addr", addr)
				if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()
			go func() {
				errCh <- sched.Run(ctx)
			}()

			select {
			case <-ctx.Done():
				log.Info("serve stopping: signal received", "component", "cli")
			case err := <-errCh:
				if err != nil && err != context.Canceled {
					log.Error("serve stopping: component failed", "component", "cli", "error", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				return WrapExitError(ExitFailure, "shut down http server", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a calendarbot config file")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "address for the debug HTTP server")
	cmd.Flags().StringVar(&feedPath, "feed", "", "optional path to a JSON feed file re-read on every fetch tick")

	return cmd
}

// feedFetcher builds a scheduler.FetchFunc. With no feed path it is a
// no-op: serve still runs the debug server and retention cleanup
// against whatever "cache import" has already written.
func feedFetcher(feedPath string, c clock.Clock) scheduler.FetchFunc {
	if feedPath == "" {
		return func(ctx context.Context) ([]eventmodel.Event, []eventmodel.RawEvent, error) {
			return nil, nil, nil
		}
	}

	return func(ctx context.Context) ([]eventmodel.Event, []eventmodel.RawEvent, error) {
		data, err := os.ReadFile(feedPath)
		if err != nil {
			return nil, nil, fmt.Errorf("read feed file: %w", err)
		}
		return buildImportBatch(data, c.Now().UTC())
	}
}
