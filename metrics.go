package triptalk

import "github.com/prometheus/client_golang/prometheus"

// metrics instruments one Client. All methods are nil-safe so the client
// can call them unconditionally.
type metrics struct {
	reconnects prometheus.Counter
	sends      prometheus.Counter
	duplicates prometheus.Counter
	connState  prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triptalk_reconnects_total",
			Help: "Total number of reconnection attempts scheduled",
		}),
		sends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triptalk_sends_total",
			Help: "Total number of messages sent",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triptalk_duplicates_dropped_total",
			Help: "Total number of redelivered messages dropped by dedup",
		}),
		connState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "triptalk_connection_state",
			Help: "Connection state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)",
		}),
	}
	reg.MustRegister(m.reconnects, m.sends, m.duplicates, m.connState)
	return m
}

func (m *metrics) reconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *metrics) send() {
	if m != nil {
		m.sends.Inc()
	}
}

func (m *metrics) duplicate() {
	if m != nil {
		m.duplicates.Inc()
	}
}

func (m *metrics) state(s ConnState) {
	if m != nil {
		m.connState.Set(float64(s))
	}
}
