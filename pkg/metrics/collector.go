package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/clustersession/pkg/session"
)

const namespace = "clustersession"

// SessionCollector is a session.Listener that exports session lifecycle
// metrics. Every node observes every cluster event, so the active gauge is
// the cluster-wide count as seen by this node.
type SessionCollector struct {
	created   *prometheus.CounterVec
	destroyed *prometheus.CounterVec
	active    prometheus.Gauge
}

var _ session.Listener = (*SessionCollector)(nil)

// NewSessionCollector creates a collector whose series carry node as a
// constant label.
func NewSessionCollector(node string) *SessionCollector {
	labels := prometheus.Labels{"node": node}

	return &SessionCollector{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "sessions_created_total",
			Help:        "Sessions created anywhere in the cluster.",
			ConstLabels: labels,
		}, []string{"authenticated"}),
		destroyed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "sessions_destroyed_total",
			Help:        "Sessions invalidated or expired anywhere in the cluster.",
			ConstLabels: labels,
		}, []string{"authenticated"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "sessions_active",
			Help:        "Sessions created minus sessions destroyed since this node started.",
			ConstLabels: labels,
		}),
	}
}

func (c *SessionCollector) SessionCreated(s *session.Session) {
	c.created.WithLabelValues(authenticated(s)).Inc()
	c.active.Inc()
}

func (c *SessionCollector) SessionDestroyed(s *session.Session) {
	c.destroyed.WithLabelValues(authenticated(s)).Inc()
	c.active.Dec()
}

func (c *SessionCollector) Describe(ch chan<- *prometheus.Desc) {
	c.created.Describe(ch)
	c.destroyed.Describe(ch)
	c.active.Describe(ch)
}

func (c *SessionCollector) Collect(ch chan<- prometheus.Metric) {
	c.created.Collect(ch)
	c.destroyed.Collect(ch)
	c.active.Collect(ch)
}

// Register adds the collector to reg
func (c *SessionCollector) Register(reg prometheus.Registerer) error {
	return reg.Register(c)
}

// Handler serves the metrics gathered by reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func authenticated(s *session.Session) string {
	_, ok := session.PrincipalOf(s)
	return strconv.FormatBool(ok)
}
