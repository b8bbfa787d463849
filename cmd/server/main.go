package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/AngelCh415/nbd-kiosk/internal/config"
	"github.com/AngelCh415/nbd-kiosk/internal/httpx"
	"github.com/AngelCh415/nbd-kiosk/internal/ingest"
	"github.com/AngelCh415/nbd-kiosk/internal/push"
	"github.com/AngelCh415/nbd-kiosk/internal/rotation"
	"github.com/AngelCh415/nbd-kiosk/internal/store"
	"github.com/AngelCh415/nbd-kiosk/internal/telemetry"
)

func main() {
	_ = godotenv.Load() // .env opcional

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tm := telemetry.New(reg)

	now := func() time.Time { return time.Now().In(cfg.Location) }
	cl := ingest.NewHTTPClient(cfg.HTTPTimeout)

	funnelOpts := []ingest.FunnelOption{
		ingest.WithFunnelInterval(cfg.FunnelPoll),
		ingest.WithFunnelClock(now),
		ingest.WithFunnelMetrics(tm),
	}
	if cfg.PushURL != "" {
		pc := push.New(cfg.PushURL, logger,
			push.WithReconnect(cfg.PushBackoffBase, cfg.PushReconnectAttempts),
			push.WithHandshakeTimeout(cfg.HTTPTimeout))
		funnelOpts = append(funnelOpts, ingest.WithPush(pc))
	}
	funnel := ingest.NewFunnel(cl, cfg.FunnelURL, store.NewFunnelStore(cfg.FunnelOrdering), logger, funnelOpts...)

	roster := ingest.NewRoster(cl, cfg.RosterURL, store.NewRosterStore(), logger,
		ingest.WithRosterClock(now),
		ingest.WithLocation(cfg.Location),
		ingest.WithSchedule(cfg.RosterRefreshSchedule),
		ingest.WithRosterMetrics(tm))

	rot := rotation.New(cfg.RotationInterval, logger,
		rotation.WithTick(cfg.CountdownTick),
		rotation.WithMetrics(tm))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	funnel.Start(ctx)
	roster.Start(ctx)
	rot.Start(ctx)

	r := httpx.NewRouter(logger, httpx.Deps{
		Funnel:   funnel,
		Roster:   roster,
		Rotation: rot,
		Gatherer: reg,
		Now:      now,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	logger.Info("starting server",
		slog.String("port", cfg.Port),
		slog.Bool("push", cfg.PushURL != ""),
		slog.String("ordering", cfg.FunnelOrdering.String()),
		slog.Duration("funnel_poll", cfg.FunnelPoll),
		slog.Duration("rotation", cfg.RotationInterval))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.String("err", err.Error()))
		os.Exit(1)
	}

	rot.Stop()
	roster.Stop()
	funnel.Stop()
	logger.Info("stopped")
}
