package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AngelCh415/nbd-kiosk/internal/models"
)

// Policy decides whether an incoming funnel update may replace the
// applied one.
type Policy int

const (
	LastWriterWins Policy = iota
	Monotonic             // rechaza updates con stamp anterior al aplicado
)

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last_writer_wins", "lww":
		return LastWriterWins, nil
	case "monotonic":
		return Monotonic, nil
	}
	return LastWriterWins, fmt.Errorf("unknown ordering policy %q", s)
}

func (p Policy) String() string {
	if p == Monotonic {
		return "monotonic"
	}
	return "last_writer_wins"
}

type FunnelStore struct {
	mu        sync.RWMutex
	policy    Policy
	state     models.FunnelState
	errMsg    string
	upd       *models.FunnelUpdate
	stamp     time.Time
	live      bool
	updatedAt time.Time
}

func NewFunnelStore(p Policy) *FunnelStore {
	return &FunnelStore{policy: p, state: models.FunnelUninitialized}
}

// FetchMark is the state a BeginFetch replaced.
type FetchMark struct {
	state  models.FunnelState
	errMsg string
	stamp  time.Time
}

// BeginFetch clears the error and shows LOADING only when nothing has been
// applied yet, so a refresh over existing data does not flicker.
func (s *FunnelStore) BeginFetch() FetchMark {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := FetchMark{state: s.state, errMsg: s.errMsg, stamp: s.stamp}
	s.errMsg = ""
	if s.upd == nil {
		s.state = models.FunnelLoading
	} else {
		s.state = models.FunnelReady
	}
	return m
}

// Abort puts back what BeginFetch replaced for a fetch that never finished.
// It is a no-op once another update or failure has landed.
func (s *FunnelStore) Abort(m FetchMark) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stamp.Equal(m.stamp) || s.errMsg != "" {
		return
	}
	s.state = m.state
	s.errMsg = m.errMsg
}

// Apply replaces both reports and summary scalars in one step. It returns
// false when the policy rejects the update as stale.
func (s *FunnelStore) Apply(u models.FunnelUpdate, stamp time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.policy == Monotonic && !s.stamp.IsZero() && stamp.Before(s.stamp) {
		return false
	}
	s.upd = &u
	s.stamp = stamp
	s.updatedAt = stamp
	s.state = models.FunnelReady
	s.errMsg = ""
	return true
}

func (s *FunnelStore) Fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = models.FunnelError
	s.errMsg = msg
}

// SetLive reports whether the flag changed.
func (s *FunnelStore) SetLive(v bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.live != v
	s.live = v
	return changed
}

func (s *FunnelStore) State() models.FunnelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *FunnelStore) Snapshot() models.FunnelSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := models.FunnelSnapshot{
		State:     s.state,
		Loading:   s.state == models.FunnelUninitialized || s.state == models.FunnelLoading,
		IsLive:    s.live,
		UpdatedAt: s.updatedAt,
	}
	if s.errMsg != "" {
		msg := s.errMsg
		out.Error = &msg
	}
	if s.upd != nil {
		d := s.upd.Data
		out.Data = &d
		out.OverallConversionRatio = s.upd.OverallConversionRatio
		out.RemainingTarget = s.upd.RemainingTarget
	}
	return out
}

type RosterStore struct {
	mu        sync.RWMutex
	loading   bool
	errMsg    string
	inventory []models.InventoryItem
	dealers   []models.ClosedDealer
	fetchedAt time.Time
}

func NewRosterStore() *RosterStore {
	return &RosterStore{loading: true}
}

func (s *RosterStore) BeginFetch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = true
	s.errMsg = ""
}

// Replace swaps both collections; there is no identity beyond position.
func (s *RosterStore) Replace(inv []models.InventoryItem, dealers []models.ClosedDealer, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory = inv
	s.dealers = dealers
	s.fetchedAt = at
	s.loading = false
}

// Fail keeps the collections from the last good fetch.
func (s *RosterStore) Fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = msg
	s.loading = false
}

// Done ends a fetch that produced nothing to apply.
func (s *RosterStore) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
}

func (s *RosterStore) Snapshot() models.RosterSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := models.RosterSnapshot{
		Loading:       s.loading,
		Inventory:     append([]models.InventoryItem{}, s.inventory...),
		ClosedDealers: append([]models.ClosedDealer{}, s.dealers...),
		FetchedAt:     s.fetchedAt,
	}
	if s.errMsg != "" {
		msg := s.errMsg
		out.Error = &msg
	}
	return out
}
