// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package dispatch

import (
	"github.com/Fantom-foundation/evm-sandbox/go/sandbox"
	"github.com/prometheus/client_golang/prometheus"
)

// Observer is informed about the dispatches of a Dispatcher. Observers are
// called while the dispatcher's lock is held and must not block.
type Observer interface {
	// Dispatched is called for every execution completed by the backend.
	Dispatched(op Operation, outcome sandbox.Outcome)
	// Failed is called if the backend failed to execute a transaction.
	Failed(op Operation, err error)
}

// NoopObserver ignores all dispatches.
type NoopObserver struct{}

func (NoopObserver) Dispatched(Operation, sandbox.Outcome) {}
func (NoopObserver) Failed(Operation, error)               {}

// PrometheusObserver exports dispatch statistics as Prometheus metrics.
type PrometheusObserver struct {
	dispatches *prometheus.CounterVec
	gasUsed    *prometheus.HistogramVec
}

// NewPrometheusObserver creates an observer and registers its metrics with
// the given registerer.
func NewPrometheusObserver(registerer prometheus.Registerer) (*PrometheusObserver, error) {
	res := &PrometheusObserver{
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sandbox",
				Subsystem: "dispatch",
				Name:      "total",
				Help:      "Number of dispatched transactions by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		gasUsed: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sandbox",
				Subsystem: "dispatch",
				Name:      "gas_used",
				Help:      "Gas consumed by completed executions",
				Buckets:   prometheus.ExponentialBuckets(21_000, 2, 12),
			},
			[]string{"op"},
		),
	}
	registered := []prometheus.Collector{}
	for _, collector := range []prometheus.Collector{res.dispatches, res.gasUsed} {
		if err := registerer.Register(collector); err != nil {
			for _, c := range registered {
				registerer.Unregister(c)
			}
			return nil, err
		}
		registered = append(registered, collector)
	}
	return res, nil
}

func (o *PrometheusObserver) Dispatched(op Operation, outcome sandbox.Outcome) {
	o.dispatches.WithLabelValues(string(op), outcome.Kind.String()).Inc()
	o.gasUsed.WithLabelValues(string(op)).Observe(float64(outcome.GasUsed))
}

func (o *PrometheusObserver) Failed(op Operation, _ error) {
	o.dispatches.WithLabelValues(string(op), "error").Inc()
}
