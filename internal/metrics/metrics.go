package metrics

import (
	"context"
	"net/http"

	"accesos/pkg/audit"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder counts session events. It plugs into the manager next to the
// audit trail.
type Recorder struct {
	events   *prometheus.CounterVec
	registry *prometheus.Registry
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consola",
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Session transitions by kind.",
		}, []string{"kind"}),
	}
	r.registry.MustRegister(r.events)
	return r
}

func (r *Recorder) Record(_ context.Context, e audit.Event) error {
	r.events.WithLabelValues(string(e.Kind)).Inc()
	return nil
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
