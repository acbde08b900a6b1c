// Package httpdebug exposes a small read-only HTTP surface for local
// inspection: a health check, the current view model as JSON, and a
// Prometheus scrape endpoint.
package httpdebug

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bencan1a/calendarbot/internal/cachemgr"
	"github.com/bencan1a/calendarbot/internal/config"
	"github.com/bencan1a/calendarbot/internal/metrics"
	"github.com/bencan1a/calendarbot/internal/selection"
	"github.com/bencan1a/calendarbot/internal/viewmodel"
)

// Deps are the collaborators the debug server reads from. It never
// writes to the cache.
type Deps struct {
	Manager  *cachemgr.Manager
	Config   config.Config
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Now      func() time.Time
}

// NewRouter builds the chi router for the debug surface.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/debug/viewmodel", func(w http.ResponseWriter, r *http.Request) {
		vm, err := buildViewModel(r.Context(), deps)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(vm)
	})

	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	return r
}

func buildViewModel(ctx context.Context, deps Deps) (viewmodel.ViewModel, error) {
	now := time.Now().UTC()
	if deps.Now != nil {
		now = deps.Now()
	}

	window := 24 * time.Hour
	events, err := deps.Manager.EventsInWindow(ctx, now.Add(-window), now.Add(window))
	if err != nil {
		return viewmodel.ViewModel{}, err
	}

	loc, err := time.LoadLocation(deps.Config.ServerZone)
	if err != nil {
		loc = time.UTC
	}

	result := selection.Select(events, now, deps.Config.HiddenSet(), loc)

	stale, err := deps.Manager.IsStale(ctx)
	if err != nil {
		return viewmodel.ViewModel{}, err
	}

	if deps.Metrics != nil {
		deps.Metrics.SetStale(stale)
	}

	shape := viewmodel.Consolidated
	if deps.Config.ViewShape == config.ViewShapeSplit {
		shape = viewmodel.Split
	}

	return viewmodel.Build(result, now, shape, viewmodel.StatusInfo{
		IsCached:         !stale,
		ConnectionStatus: "ok",
	}, loc), nil
}
