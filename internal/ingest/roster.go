package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/AngelCh415/nbd-kiosk/internal/datewin"
	"github.com/AngelCh415/nbd-kiosk/internal/models"
	"github.com/AngelCh415/nbd-kiosk/internal/store"
	"github.com/AngelCh415/nbd-kiosk/internal/telemetry"
)

type rosterResp struct {
	Inventory []inventoryRow `json:"inventory"`
	NBD       []dealerRow    `json:"nbd"`
}

type inventoryRow struct {
	Tool           flexString `json:"tool"`
	Brand          flexString `json:"brand"`
	AvailableStock flexNumber `json:"available_stock"`
	Sold           flexNumber `json:"sold"`
}

// colD no se usa
type dealerRow struct {
	ColA flexString `json:"colA"` // fecha
	ColB flexString `json:"colB"` // dealer
	ColC flexString `json:"colC"` // business
	ColE flexString `json:"colE"` // state
	ColF flexString `json:"colF"` // city
}

// Roster fetches inventory and closed dealers from one endpoint. It fetches
// once on Start; periodic refresh only happens when a cron schedule is set.
type Roster struct {
	c        HTTPClient
	url      string
	st       *store.RosterStore
	log      *slog.Logger
	tm       *telemetry.Metrics
	now      func() time.Time
	loc      *time.Location
	schedule string

	mu     sync.Mutex
	cancel context.CancelFunc
	cron   *cron.Cron
	wg     sync.WaitGroup
}

type RosterOption func(*Roster)

func WithRosterClock(now func() time.Time) RosterOption {
	return func(r *Roster) { r.now = now }
}

func WithLocation(loc *time.Location) RosterOption {
	return func(r *Roster) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithSchedule enables periodic refresh from a 5-field cron expression.
func WithSchedule(spec string) RosterOption {
	return func(r *Roster) { r.schedule = strings.TrimSpace(spec) }
}

func WithRosterMetrics(m *telemetry.Metrics) RosterOption {
	return func(r *Roster) { r.tm = m }
}

func NewRoster(c HTTPClient, url string, st *store.RosterStore, log *slog.Logger, opts ...RosterOption) *Roster {
	r := &Roster{c: c, url: url, st: st, log: log, now: time.Now, loc: time.Local}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Roster) Snapshot() models.RosterSnapshot { return r.st.Snapshot() }

// Refresh is the manual re-trigger.
func (r *Roster) Refresh(ctx context.Context) error { return r.FetchAll(ctx) }

// FetchAll replaces both collections on success. On failure the previous
// collections stay in place.
func (r *Roster) FetchAll(ctx context.Context) error {
	r.st.BeginFetch()
	var resp rosterResp
	err := getJSON(ctx, r.c, r.url, &resp)
	if ctx.Err() != nil {
		r.st.Done()
		return ctx.Err()
	}
	if err != nil {
		if errors.Is(err, ErrMalformedPayload) {
			r.tm.Fetch(telemetry.SourceRoster, telemetry.OutcomeMalformed)
			r.log.Warn("roster payload dropped", slog.String("err", err.Error()))
			r.st.Done()
			return err
		}
		r.tm.Fetch(telemetry.SourceRoster, telemetry.OutcomeError)
		r.log.Error("roster fetch failed", slog.String("url", r.url), slog.String("err", err.Error()))
		r.st.Fail(err.Error())
		return err
	}

	now := r.now().In(r.loc)
	inv := mapInventory(resp.Inventory)
	dealers := mapDealers(resp.NBD, now, r.loc)
	r.st.Replace(inv, dealers, now)
	r.tm.Fetch(telemetry.SourceRoster, telemetry.OutcomeOK)
	r.log.Info("roster fetched",
		slog.Int("inventory", len(inv)),
		slog.Int("closed_dealers", len(dealers)),
		slog.Int("nbd_rows", len(resp.NBD)))
	return nil
}

func mapInventory(rows []inventoryRow) []models.InventoryItem {
	out := make([]models.InventoryItem, 0, len(rows))
	for _, it := range rows {
		out = append(out, models.InventoryItem{
			Tool:           coalesce(string(it.Tool), "Unknown Tool"),
			Brand:          coalesce(string(it.Brand), "Unknown"),
			AvailableStock: toCount(float64(it.AvailableStock)),
			Sold:           toCount(float64(it.Sold)),
		})
	}
	return out
}

// mapDealers keeps rows with a dealer name and a parseable date in now's
// calendar month, newest source row first.
func mapDealers(rows []dealerRow, now time.Time, loc *time.Location) []models.ClosedDealer {
	out := make([]models.ClosedDealer, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		name := strings.TrimSpace(string(row.ColB))
		if name == "" {
			continue
		}
		d, ok := datewin.ParseFlexibleDate(string(row.ColA), loc)
		if !ok || !datewin.IsCurrentMonth(d, now) {
			continue
		}
		out = append(out, models.ClosedDealer{
			Date:         datewin.FormatDMY(d),
			DateValue:    d,
			DealerName:   name,
			BusinessName: strings.TrimSpace(string(row.ColC)),
			State:        strings.TrimSpace(string(row.ColE)),
			City:         strings.TrimSpace(string(row.ColF)),
		})
	}
	for i := range out {
		out[i].Serial = len(out) - i
	}
	return out
}

// Start runs the single fetch on mount and, if configured, the cron schedule.
func (r *Roster) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_ = r.FetchAll(ctx)
	}()

	if r.schedule == "" {
		return
	}
	c := cron.New(cron.WithLocation(r.loc))
	if _, err := c.AddFunc(r.schedule, func() { _ = r.FetchAll(ctx) }); err != nil {
		r.log.Error("invalid roster refresh schedule, periodic refresh disabled",
			slog.String("schedule", r.schedule), slog.String("err", err.Error()))
		return
	}
	r.log.Info("roster refresh scheduled", slog.String("cron", r.schedule))
	c.Start()
	r.cron = c
}

func (r *Roster) Stop() {
	r.mu.Lock()
	cancel, c := r.cancel, r.cron
	r.cancel, r.cron = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if c != nil {
		<-c.Stop().Done()
	}
	r.wg.Wait()
}

func coalesce(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}
