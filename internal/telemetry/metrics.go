package telemetry

import (
	"net/http"

	"github.com/arya-analytics/murmur/internal/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "murmur"

// Metrics instruments a single node. The zero value is not usable; use New.
type Metrics struct {
	Received      *prometheus.CounterVec
	Sent          *prometheus.CounterVec
	GossipBatches prometheus.Counter
	Seen          prometheus.Gauge
	Pending       prometheus.Gauge
}

// New creates the node's metrics and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Received: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_received_total",
				Help:      "Messages handled, by body type.",
			},
			[]string{"type"},
		),
		Sent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_sent_total",
				Help:      "Messages written, by body type.",
			},
			[]string{"type"},
		),
		GossipBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gossip_batches_total",
			Help:      "Gossip batches emitted on timer ticks.",
		}),
		Seen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "values_seen",
			Help:      "Size of the seen-set.",
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "values_pending",
			Help:      "Values awaiting acknowledgment, summed across neighbors.",
		}),
	}
	for _, c := range []prometheus.Collector{m.Received, m.Sent, m.GossipBatches, m.Seen, m.Pending} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Nop returns metrics registered with a private registry nobody reads.
func Nop() *Metrics {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metrics) ObserveReceived(t message.Type) { m.Received.WithLabelValues(string(t)).Inc() }

func (m *Metrics) ObserveSent(t message.Type) { m.Sent.WithLabelValues(string(t)).Inc() }

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
