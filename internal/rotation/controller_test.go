package rotation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AngelCh415/nbd-kiosk/internal/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestManualAndTimerSwitches(t *testing.T) {
	t0 := time.Date(2025, 12, 4, 9, 0, 0, 0, time.UTC)
	clk := &fakeClock{t: t0}
	c := New(30*time.Second, discard(), WithClock(clk))

	if v := c.State().CurrentView; v != models.ViewFunnel {
		t.Fatalf("initial view %v", v)
	}
	if p := c.Countdown().Progress; p != 1 {
		t.Fatalf("initial progress %v", p)
	}

	clk.Add(12 * time.Second)
	st := c.Advance()
	if st.CurrentView != models.ViewInventory {
		t.Fatalf("after manual trigger view = %v", st.CurrentView)
	}
	if p := c.Countdown().Progress; p != 1 {
		t.Fatalf("progress right after manual switch = %v, want 1", p)
	}
	if want := clk.Now().Add(30 * time.Second); !st.NextSwitch.Equal(want) {
		t.Fatalf("next switch %v, want %v (no carried-over interval)", st.NextSwitch, want)
	}

	clk.Add(20 * time.Second)
	if c.step(clk.Now()) {
		t.Fatal("must not switch before the interval elapses")
	}
	clk.Add(10 * time.Second)
	if !c.step(clk.Now()) {
		t.Fatal("expected switch after the full interval")
	}
	if v := c.State().CurrentView; v != models.ViewClosedDealers {
		t.Fatalf("after timer view = %v", v)
	}
	if p := c.Countdown().Progress; p != 1 {
		t.Fatalf("countdown did not reset, progress %v", p)
	}

	if v := c.Advance().CurrentView; v != models.ViewFunnel {
		t.Fatalf("cycle should wrap to FUNNEL, got %v", v)
	}
}

func TestLateTimerNeverOverridesManualDeadline(t *testing.T) {
	t0 := time.Date(2025, 12, 4, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		clk := &fakeClock{t: t0}
		c := New(30*time.Second, discard(), WithClock(clk))
		fired := t0.Add(30 * time.Second)
		clk.Add(31 * time.Second)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); c.step(fired) }()
		go func() { defer wg.Done(); c.Advance() }()
		wg.Wait()

		// sea cual sea el orden, el deadline manual es el último
		if want := clk.Now().Add(30 * time.Second); !c.State().NextSwitch.Equal(want) {
			t.Fatalf("iteration %d: next switch %v, want %v", i, c.State().NextSwitch, want)
		}
	}
}

func TestReadout(t *testing.T) {
	t0 := time.Date(2025, 12, 4, 9, 0, 0, 0, time.UTC)
	clk := &fakeClock{t: t0}
	c := New(30*time.Second, discard(), WithClock(clk))

	cd := c.Readout(t0.Add(500 * time.Millisecond))
	if cd.Label != "00:29" || cd.RemainingMs != 29500 || cd.Page != "Page 1 of 3" {
		t.Fatalf("readout = %+v", cd)
	}
	if cd := c.Readout(t0.Add(15 * time.Second)); cd.Progress != 0.5 {
		t.Fatalf("half way progress = %v", cd.Progress)
	}
	if cd := c.Readout(t0.Add(time.Minute)); cd.Progress != 0 || cd.RemainingMs != 0 || cd.Label != "00:00" {
		t.Fatalf("overdue readout = %+v", cd)
	}
	if cd := c.Readout(t0.Add(-time.Minute)); cd.Progress != 1 {
		t.Fatalf("progress must clamp to 1, got %v", cd.Progress)
	}

	long := New(2*time.Minute, discard(), WithClock(clk))
	if cd := long.Readout(t0); cd.Label != "02:00" {
		t.Fatalf("label = %q", cd.Label)
	}
}

func TestViewCycle(t *testing.T) {
	if models.ViewFunnel.Next() != models.ViewInventory ||
		models.ViewInventory.Next() != models.ViewClosedDealers ||
		models.ViewClosedDealers.Next() != models.ViewFunnel {
		t.Fatal("bad cycle")
	}
}

func TestTimersRotateAndStop(t *testing.T) {
	var mu sync.Mutex
	ticks := 0
	c := New(40*time.Millisecond, discard(), WithTick(5*time.Millisecond), WithOnTick(func(models.Countdown) {
		mu.Lock()
		ticks++
		mu.Unlock()
	}))
	c.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for c.State().CurrentView == models.ViewFunnel {
		if time.Now().After(deadline) {
			t.Fatal("timer never rotated")
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()
	c.Stop()

	mu.Lock()
	got := ticks
	mu.Unlock()
	if got == 0 {
		t.Fatal("countdown ticker never fired")
	}

	view := c.State().CurrentView
	time.Sleep(120 * time.Millisecond)
	if c.State().CurrentView != view {
		t.Fatal("view changed after Stop")
	}
	mu.Lock()
	defer mu.Unlock()
	if ticks != got {
		t.Fatal("countdown ticked after Stop")
	}
}

func TestManualAdvanceRestartsTimer(t *testing.T) {
	c := New(300*time.Millisecond, discard())
	c.Start(context.Background())
	defer c.Stop()

	time.Sleep(200 * time.Millisecond)
	c.Advance()
	// el deadline original (300ms) ya pasó; el nuevo está en ~500ms
	time.Sleep(150 * time.Millisecond)
	if v := c.State().CurrentView; v != models.ViewInventory {
		t.Fatalf("view = %v, manual switch must restart the full interval", v)
	}
}
