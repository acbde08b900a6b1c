package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/bencan1a/calendarbot/internal/cachemgr"
	"github.com/bencan1a/calendarbot/internal/clock"
	"github.com/bencan1a/calendarbot/internal/config"
	"github.com/bencan1a/calendarbot/internal/renderadapter"
	"github.com/bencan1a/calendarbot/internal/selection"
	"github.com/bencan1a/calendarbot/internal/store"
	"github.com/bencan1a/calendarbot/internal/viewmodel"
)

func newSelectCommand(opts *RootOptions) *cobra.Command {
	var configPath string
	var nowOverride string
	var shapeFlag string
	var featuredOnly bool

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Run the selection engine and view model builder against the current cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd)

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
			if shapeFlag != "" {
				cfg.ViewShape = config.ViewShape(shapeFlag)
				if err := cfg.Validate(); err != nil {
					return WrapExitError(ExitCommandError, "validate --shape", err)
				}
			}

			s, err := store.Open(cfg.DBPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer s.Close()

			c := clock.NewReal()
			now := c.Now().UTC()
			if nowOverride != "" {
				parsed, err := time.Parse(time.RFC3339, nowOverride)
				if err != nil {
					return WrapExitError(ExitCommandError, "parse --now", err)
				}
				now = parsed.UTC()
				c = clock.NewFrozen(now)
			}

			mgr := cachemgr.New(s, c, cachemgr.WithTTL(cfg.TTL()), cachemgr.WithRetention(cfg.Retention()))

			window := 24 * time.Hour
			events, err := mgr.EventsInWindow(cmd.Context(), now.Add(-window), now.Add(window))
			if err != nil {
				return WrapExitError(ExitFailure, "query cache window", err)
			}

			loc, err := time.LoadLocation(cfg.ServerZone)
			if err != nil {
				loc = time.UTC
			}

			result := selection.Select(events, now, cfg.HiddenSet(), loc)

			stale, err := mgr.IsStale(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "check cache staleness", err)
			}

			shape := viewmodel.Consolidated
			if cfg.ViewShape == config.ViewShapeSplit {
				shape = viewmodel.Split
			}

			vm := viewmodel.Build(result, now, shape, viewmodel.StatusInfo{
				IsCached:         !stale,
				ConnectionStatus: "ok",
			}, loc)

			if featuredOnly {
				featured, ok := renderadapter.Featured(vm)
				if !ok {
					return formatter.Success(map[string]any{"featured": nil})
				}
				return formatter.Success(map[string]any{"featured": featured})
			}

			return formatter.Success(vm)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a calendarbot config file")
	cmd.Flags().StringVar(&nowOverride, "now", "", "override the reference instant (RFC3339), for reproducible runs")
	cmd.Flags().StringVar(&shapeFlag, "shape", "", "view model shape: consolidated or split (overrides config)")
	cmd.Flags().BoolVar(&featuredOnly, "featured", false, "print only the featured event, using the same priority read a renderer must use")

	return cmd
}
