// Package metrics exposes the prometheus collectors shared by the hub, the
// room store and the HTTP gateway. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "questvote"

type Metrics struct {
	RoomsActive    prometheus.Gauge
	RoomsCreated   prometheus.Counter
	RoomsEvicted   prometheus.Counter
	Connections    prometheus.Gauge
	Broadcasts     prometheus.Counter
	SendFailures   prometheus.Counter
	ChatDropped    prometheus.Counter
	RoundsResolved prometheus.Counter
	Requests       *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "rooms_active",
			Help: "Rooms currently held by the registry.",
		}),
		RoomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rooms_created_total",
			Help: "Rooms created since start.",
		}),
		RoomsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rooms_evicted_total",
			Help: "Rooms removed by the idle sweep.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections_active",
			Help: "Registered real-time connections across all rooms.",
		}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "broadcasts_total",
			Help: "Messages fanned out to a room.",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "send_failures_total",
			Help: "Connections dropped because a send failed.",
		}),
		ChatDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "chat_dropped_total",
			Help: "Inbound chat messages dropped by the rate limiter.",
		}),
		RoundsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rounds_resolved_total",
			Help: "Rounds that advanced to a new prompt.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
	}
	reg.MustRegister(
		m.RoomsActive, m.RoomsCreated, m.RoomsEvicted,
		m.Connections, m.Broadcasts, m.SendFailures, m.ChatDropped,
		m.RoundsResolved, m.Requests,
	)
	return m
}

func (m *Metrics) RoomCreated() {
	if m == nil {
		return
	}
	m.RoomsCreated.Inc()
	m.RoomsActive.Inc()
}

func (m *Metrics) RoomRemoved(evicted bool) {
	if m == nil {
		return
	}
	m.RoomsActive.Dec()
	if evicted {
		m.RoomsEvicted.Inc()
	}
}

func (m *Metrics) ConnectionAdded() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

func (m *Metrics) ConnectionRemoved() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}

func (m *Metrics) Broadcast() {
	if m == nil {
		return
	}
	m.Broadcasts.Inc()
}

func (m *Metrics) SendFailed() {
	if m == nil {
		return
	}
	m.SendFailures.Inc()
}

func (m *Metrics) ChatThrottled() {
	if m == nil {
		return
	}
	m.ChatDropped.Inc()
}

func (m *Metrics) RoundResolved() {
	if m == nil {
		return
	}
	m.RoundsResolved.Inc()
}

func (m *Metrics) Request(route, status string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, status).Inc()
}
