package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Seednode/feudbox/internal/protocol"
	"github.com/Seednode/feudbox/internal/room"
)

// Recorder collects server metrics.
type Recorder interface {
	MessageHandled(action protocol.Action, code protocol.Code, d time.Duration)
	ConnectionOpened()
	ConnectionClosed()
	RoomCreated()
	RoomReaped()
	Buzz()
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) MessageHandled(protocol.Action, protocol.Code, time.Duration) {}
func (NopRecorder) ConnectionOpened()                                            {}
func (NopRecorder) ConnectionClosed()                                            {}
func (NopRecorder) RoomCreated()                                                 {}
func (NopRecorder) RoomReaped()                                                  {}
func (NopRecorder) Buzz()                                                        {}

// PrometheusRecorder exports metrics under the feudbox namespace.
type PrometheusRecorder struct {
	messages     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	connections  prometheus.Gauge
	roomsCreated prometheus.Counter
	roomsReaped  prometheus.Counter
	buzzes       prometheus.Counter
}

var _ Recorder = (*PrometheusRecorder)(nil)

func NewPrometheusRecorder(reg prometheus.Registerer, rooms room.Registry) *PrometheusRecorder {
	const ns = "feudbox"

	m := &PrometheusRecorder{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "messages_total",
			Help:      "Inbound messages by action and result code.",
		}, []string{"action", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "message_duration_seconds",
			Help:      "Time spent handling an inbound message.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"action"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
		roomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "rooms_created_total",
			Help:      "Rooms created by hosts.",
		}),
		roomsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "rooms_reaped_total",
			Help:      "Rooms deleted after going idle.",
		}),
		buzzes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "buzzes_total",
			Help:      "Accepted buzz-ins.",
		}),
	}

	reg.MustRegister(
		m.messages,
		m.duration,
		m.connections,
		m.roomsCreated,
		m.roomsReaped,
		m.buzzes,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "rooms",
			Help:      "Rooms currently open.",
		}, func() float64 { return float64(rooms.Len()) }),
	)

	return m
}

func (m *PrometheusRecorder) MessageHandled(action protocol.Action, code protocol.Code, d time.Duration) {
	if code == "" {
		code = "OK"
	}
	m.messages.WithLabelValues(string(action), string(code)).Inc()
	m.duration.WithLabelValues(string(action)).Observe(d.Seconds())
}

func (m *PrometheusRecorder) ConnectionOpened() { m.connections.Inc() }
func (m *PrometheusRecorder) ConnectionClosed() { m.connections.Dec() }
func (m *PrometheusRecorder) RoomCreated()      { m.roomsCreated.Inc() }
func (m *PrometheusRecorder) RoomReaped()       { m.roomsReaped.Inc() }
func (m *PrometheusRecorder) Buzz()             { m.buzzes.Inc() }
