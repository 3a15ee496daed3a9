// Package metrics exports reservation and sweeper counters to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"eventReserver/internal/reservation"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "event_reserver"

type Metrics struct {
	operations    *prometheus.CounterVec
	sweeps        *prometheus.CounterVec
	purged        prometheus.Counter
	sweepDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_operations_total",
			Help:      "Reservation operations by outcome.",
		}, []string{"operation", "result"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_runs_total",
			Help:      "Expiry sweeper runs by outcome.",
		}, []string{"result"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_purged_holds_total",
			Help:      "Expired holds deleted by the sweeper.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweeper_run_duration_seconds",
			Help:      "Latency of one expiry sweep.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.sweeps, m.purged, m.sweepDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) ObserveOperation(operation string, err error) {
	m.operations.WithLabelValues(operation, Result(err)).Inc()
}

func (m *Metrics) ObserveSweep(purged int, d time.Duration, err error) {
	m.sweepDuration.Observe(d.Seconds())

	if err != nil {
		m.sweeps.WithLabelValues("error").Inc()
		return
	}

	m.sweeps.WithLabelValues("ok").Inc()
	m.purged.Add(float64(purged))
}

// Result maps an operation error to a low-cardinality label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, reservation.ErrNoCapacity):
		return "no_capacity"
	case errors.Is(err, reservation.ErrHoldExpired):
		return "hold_expired"
	case errors.Is(err, reservation.ErrOverbooked):
		return "overbooked"
	case reservation.IsRejection(err):
		return "rejected"
	default:
		return "error"
	}
}
