package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/AngelCh415/nbd-kiosk/internal/models"
	"github.com/AngelCh415/nbd-kiosk/internal/store"
	"github.com/AngelCh415/nbd-kiosk/internal/telemetry"
)

const DefaultFunnelPoll = 5 * time.Minute

// PushRunner drives a push connection until ctx ends, reporting lifecycle
// events to the funnel.
type PushRunner interface {
	Run(ctx context.Context, l PushListener)
}

type PushListener interface {
	OnOpen()
	OnMessage(b []byte)
	OnClose(err error)
}

// Funnel reconciles the polled funnel endpoint and the optional push
// channel into one FunnelStore. Both sources are equally authoritative;
// ordering between them is the store's policy.
type Funnel struct {
	c        HTTPClient
	url      string
	st       *store.FunnelStore
	log      *slog.Logger
	tm       *telemetry.Metrics
	push     PushRunner
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type FunnelOption func(*Funnel)

func WithFunnelInterval(d time.Duration) FunnelOption {
	return func(f *Funnel) {
		if d > 0 {
			f.interval = d
		}
	}
}

func WithPush(p PushRunner) FunnelOption { return func(f *Funnel) { f.push = p } }

func WithFunnelClock(now func() time.Time) FunnelOption {
	return func(f *Funnel) { f.now = now }
}

func WithFunnelMetrics(m *telemetry.Metrics) FunnelOption {
	return func(f *Funnel) { f.tm = m }
}

func NewFunnel(c HTTPClient, url string, st *store.FunnelStore, log *slog.Logger, opts ...FunnelOption) *Funnel {
	f := &Funnel{c: c, url: url, st: st, log: log, interval: DefaultFunnelPoll, now: time.Now}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Funnel) Snapshot() models.FunnelSnapshot { return f.st.Snapshot() }

// Refresh fetches the full payload. Network and HTTP failures move the
// funnel to ERROR; a short or undecodable payload is logged and dropped.
func (f *Funnel) Refresh(ctx context.Context) error {
	stamp := f.now()
	mark := f.st.BeginFetch()

	var env funnelEnvelope
	err := getJSON(ctx, f.c, f.url, &env)
	if ctx.Err() != nil {
		// cancelado: dejar el estado como estaba
		f.st.Abort(mark)
		return ctx.Err()
	}
	var values []float64
	if err == nil {
		values, err = rowValues(decodeRows(env.Data))
	}
	if err != nil {
		if errors.Is(err, ErrMalformedPayload) {
			f.tm.Fetch(telemetry.SourceFunnel, telemetry.OutcomeMalformed)
			f.log.Warn("funnel payload dropped", slog.String("err", err.Error()))
			return err
		}
		f.tm.Fetch(telemetry.SourceFunnel, telemetry.OutcomeError)
		f.log.Error("funnel fetch failed", slog.String("url", f.url), slog.String("err", err.Error()))
		f.st.Fail(err.Error())
		return err
	}
	return f.apply(telemetry.SourceFunnel, values, stamp)
}

// OnPushMessage applies a push frame with the same acceptance rule as Refresh.
func (f *Funnel) OnPushMessage(b []byte) error {
	stamp := f.now()
	f.tm.PushMessage()
	values, err := DecodePushMessage(b)
	if err != nil {
		f.tm.Fetch(telemetry.SourcePush, telemetry.OutcomeMalformed)
		f.log.Warn("push message dropped", slog.String("err", err.Error()))
		return err
	}
	return f.apply(telemetry.SourcePush, values, stamp)
}

func (f *Funnel) apply(source string, values []float64, stamp time.Time) error {
	upd, err := NormalizeFunnel(values, stamp)
	if err != nil {
		f.tm.Fetch(source, telemetry.OutcomeMalformed)
		f.log.Warn("invalid or incomplete funnel data", slog.String("source", source), slog.Int("values", len(values)))
		return err
	}
	if !f.st.Apply(upd, stamp) {
		f.tm.Fetch(source, telemetry.OutcomeStale)
		f.log.Info("stale funnel update rejected", slog.String("source", source), slog.Time("stamp", stamp))
		return nil
	}
	f.tm.Fetch(source, telemetry.OutcomeOK)
	f.log.Debug("funnel updated", slog.String("source", source))
	return nil
}

func (f *Funnel) OnOpen() {
	f.tm.SetLive(true)
	if f.st.SetLive(true) {
		f.log.Info("push channel connected, real-time updates enabled")
	}
}

func (f *Funnel) OnMessage(b []byte) { _ = f.OnPushMessage(b) }

func (f *Funnel) OnClose(err error) {
	f.tm.SetLive(false)
	changed := f.st.SetLive(false)
	if err != nil {
		f.log.Warn("push channel error, real-time updates disabled", slog.String("err", err.Error()))
		return
	}
	if changed {
		f.log.Info("push channel disconnected")
	}
}

// Start issues the first fetch immediately, then polls every interval for
// as long as the funnel runs, regardless of the push channel.
func (f *Funnel) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return
	}
	ctx, f.cancel = context.WithCancel(ctx)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.poll(ctx)
	}()
	if f.push != nil {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.push.Run(ctx, f)
		}()
	}
}

func (f *Funnel) poll(ctx context.Context) {
	_ = f.Refresh(ctx)
	t := time.NewTicker(f.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = f.Refresh(ctx)
		}
	}
}

// Stop is idempotent and returns once the poller and push connection are gone.
func (f *Funnel) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	f.wg.Wait()
}
