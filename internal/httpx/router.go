package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AngelCh415/nbd-kiosk/internal/metrics"
	"github.com/AngelCh415/nbd-kiosk/internal/models"
	"github.com/AngelCh415/nbd-kiosk/internal/utils"
)

type FunnelSource interface {
	Snapshot() models.FunnelSnapshot
	Refresh(ctx context.Context) error
}

type RosterSource interface {
	Snapshot() models.RosterSnapshot
	Refresh(ctx context.Context) error
}

type Rotator interface {
	State() models.RotationState
	Countdown() models.Countdown
	Advance() models.RotationState
}

type Deps struct {
	Funnel   FunnelSource
	Roster   RosterSource
	Rotation Rotator
	Gatherer prometheus.Gatherer
	Now      func() time.Time
}

type rotationView struct {
	models.Countdown
	NextSwitch time.Time `json:"nextSwitch"`
	IntervalMs int64     `json:"intervalMs"`
}

func NewRouter(log *slog.Logger, d Deps) http.Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(log))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Funnel.Snapshot().State == models.FunnelUninitialized {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
		w.Write([]byte("ready"))
	})

	if d.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.Route("/api", func(api chi.Router) {
		api.Get("/funnel", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, d.Funnel.Snapshot())
		})
		api.Post("/funnel/refresh", func(w http.ResponseWriter, r *http.Request) {
			if err := d.Funnel.Refresh(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			writeJSON(w, d.Funnel.Snapshot())
		})

		api.Get("/roster", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			limit := metrics.AtoiDef(q.Get("limit"), 0)
			offset := metrics.AtoiDef(q.Get("offset"), 0)
			snap := d.Roster.Snapshot()
			snap.Inventory = metrics.Paginate(snap.Inventory, limit, offset)
			snap.ClosedDealers = metrics.Paginate(snap.ClosedDealers, limit, offset)
			writeJSON(w, snap)
		})
		api.Post("/roster/refresh", func(w http.ResponseWriter, r *http.Request) {
			if err := d.Roster.Refresh(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
			writeJSON(w, d.Roster.Snapshot())
		})

		api.Get("/rotation", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, rotation(d.Rotation))
		})
		api.Post("/rotation/advance", func(w http.ResponseWriter, r *http.Request) {
			d.Rotation.Advance()
			writeJSON(w, rotation(d.Rotation))
		})

		api.Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {
			now := d.Now()
			f := d.Funnel.Snapshot()
			ro := d.Roster.Snapshot()
			writeJSON(w, models.Dashboard{
				Rotation: d.Rotation.Countdown(),
				Header:   metrics.Header(f, ro, now),
				Funnel:   f,
				Roster:   ro,
				Ticker:   metrics.TickerLines(ro.ClosedDealers, now),
			})
		})
	})

	return mux
}

func rotation(rt Rotator) rotationView {
	st := rt.State()
	return rotationView{Countdown: rt.Countdown(), NextSwitch: st.NextSwitch, IntervalMs: st.FixedIntervalMs}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.Encode(v)
}
