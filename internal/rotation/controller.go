package rotation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AngelCh415/nbd-kiosk/internal/models"
	"github.com/AngelCh415/nbd-kiosk/internal/telemetry"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultTick     = time.Second

	CauseTimer  = "timer"
	CauseManual = "manual"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Controller owns the active view and its countdown. One timer drives the
// rotation and a separate ticker refreshes the countdown readout; a manual
// Advance and a timer expiry both restart the full interval.
type Controller struct {
	interval time.Duration
	tick     time.Duration
	clock    Clock
	log      *slog.Logger
	tm       *telemetry.Metrics
	onTick   func(models.Countdown)

	mu      sync.Mutex
	current models.View
	next    time.Time
	last    models.Countdown

	kick   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Controller)

func WithClock(c Clock) Option { return func(r *Controller) { r.clock = c } }

func WithTick(d time.Duration) Option {
	return func(r *Controller) {
		if d > 0 {
			r.tick = d
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option { return func(r *Controller) { r.tm = m } }

// WithOnTick registers a callback for every countdown readout.
func WithOnTick(fn func(models.Countdown)) Option { return func(r *Controller) { r.onTick = fn } }

func New(interval time.Duration, log *slog.Logger, opts ...Option) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	c := &Controller{
		interval: interval,
		tick:     DefaultTick,
		clock:    systemClock{},
		log:      log,
		current:  models.ViewFunnel,
		kick:     make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(c)
	}
	now := c.clock.Now()
	c.next = now.Add(interval)
	c.last = c.readout(now)
	return c
}

func (c *Controller) State() models.RotationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.RotationState{
		CurrentView:     c.current,
		NextSwitch:      c.next,
		FixedInterval:   c.interval,
		FixedIntervalMs: c.interval.Milliseconds(),
	}
}

// Countdown returns the latest readout.
func (c *Controller) Countdown() models.Countdown {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Advance is the manual trigger.
func (c *Controller) Advance() models.RotationState {
	c.switchAt(c.clock.Now(), CauseManual)
	select {
	case c.kick <- struct{}{}:
	default:
	}
	return c.State()
}

func (c *Controller) switchAt(now time.Time, cause string) {
	c.mu.Lock()
	view := c.switchLocked(now)
	c.mu.Unlock()
	c.switched(view, cause)
}

// switchLocked requires c.mu.
func (c *Controller) switchLocked(now time.Time) models.View {
	c.current = c.current.Next()
	c.next = now.Add(c.interval)
	c.last = c.readout(now)
	return c.current
}

func (c *Controller) switched(view models.View, cause string) {
	c.tm.Switch(cause, view.Index())
	c.log.Info("view switched", slog.String("view", string(view)), slog.String("cause", cause))
}

// step advances when the deadline has passed; a manual switch that moved the
// deadline makes a late timer fire a no-op. The check and the switch share
// one critical section.
func (c *Controller) step(now time.Time) bool {
	c.mu.Lock()
	if now.Before(c.next) {
		c.mu.Unlock()
		return false
	}
	view := c.switchLocked(now)
	c.mu.Unlock()
	c.switched(view, CauseTimer)
	return true
}

// Readout computes the countdown at now without storing it.
func (c *Controller) Readout(now time.Time) models.Countdown {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readout(now)
}

func (c *Controller) readout(now time.Time) models.Countdown {
	remaining := c.next.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	progress := float64(remaining) / float64(c.interval)
	if progress > 1 {
		progress = 1
	}
	if progress < 0 {
		progress = 0
	}
	ms := remaining.Milliseconds()
	return models.Countdown{
		View:        c.current,
		RemainingMs: ms,
		Progress:    progress,
		Label:       fmt.Sprintf("%02d:%02d", (ms%3600000)/60000, (ms%60000)/1000),
		Page:        fmt.Sprintf("Page %d of %d", c.current.Index()+1, len(models.Views)),
	}
}

func (c *Controller) untilNext() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.next.Sub(c.clock.Now())
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

// Start resets the deadline to a full interval and launches both timers.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	now := c.clock.Now()
	c.next = now.Add(c.interval)
	c.last = c.readout(now)

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.rotate(ctx)
	}()
	go func() {
		defer c.wg.Done()
		c.countdown(ctx)
	}()
}

func (c *Controller) rotate(ctx context.Context) {
	t := time.NewTimer(c.untilNext())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.kick:
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
			t.Reset(c.untilNext())
		case <-t.C:
			c.step(c.clock.Now())
			t.Reset(c.untilNext())
		}
	}
}

func (c *Controller) countdown(ctx context.Context) {
	t := time.NewTicker(c.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.mu.Lock()
			cd := c.readout(c.clock.Now())
			c.last = cd
			c.mu.Unlock()
			if c.onTick != nil {
				c.onTick(cd)
			}
		}
	}
}

func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	c.wg.Wait()
}
