package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	SourceFunnel = "funnel"
	SourcePush   = "push"
	SourceRoster = "roster"

	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeMalformed = "malformed"
	OutcomeStale     = "stale"
)

// Metrics is nil-safe: components built without telemetry simply skip it.
type Metrics struct {
	fetches     *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	pushMsgs    prometheus.Counter
	pushLive    prometheus.Gauge
	switches    *prometheus.CounterVec
	currentView prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_fetch_total",
			Help: "Upstream updates by source and outcome.",
		}, []string{"source", "outcome"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_payload_rejected_total",
			Help: "Payloads dropped as malformed or stale.",
		}, []string{"source"}),
		pushMsgs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_push_messages_total",
			Help: "Text frames received on the push channel.",
		}),
		pushLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kiosk_push_live",
			Help: "1 while the push channel is open.",
		}),
		switches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_rotation_switches_total",
			Help: "View switches by cause (timer, manual).",
		}, []string{"cause"}),
		currentView: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kiosk_current_view",
			Help: "Index of the active view in the rotation cycle.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.fetches, m.rejected, m.pushMsgs, m.pushLive, m.switches, m.currentView)
	}
	return m
}

func (m *Metrics) Fetch(source, outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(source, outcome).Inc()
	if outcome == OutcomeMalformed || outcome == OutcomeStale {
		m.rejected.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) PushMessage() {
	if m == nil {
		return
	}
	m.pushMsgs.Inc()
}

func (m *Metrics) SetLive(v bool) {
	if m == nil {
		return
	}
	if v {
		m.pushLive.Set(1)
		return
	}
	m.pushLive.Set(0)
}

func (m *Metrics) Switch(cause string, view int) {
	if m == nil {
		return
	}
	m.switches.WithLabelValues(cause).Inc()
	m.currentView.Set(float64(view))
}
