/*
Copyright © 2024 the ForestFireDatasetGenerator authors.
This file is part of ForestFireDatasetGenerator.

ForestFireDatasetGenerator is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ForestFireDatasetGenerator is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ForestFireDatasetGenerator.  If not, see <http://www.gnu.org/licenses/>.
*/

package elevation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for elevation requests. A nil
// *Metrics records nothing.
type Metrics struct {
	Batches         *prometheus.CounterVec // labels: outcome={success,error}
	Points          prometheus.Counter
	RequestDuration prometheus.Histogram
}

const namespace = "firegrid_elevation"

func newMetrics() *Metrics {
	return &Metrics{
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Elevation batch requests by outcome.",
		}, []string{"outcome"}),
		Points: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_total",
			Help:      "Total locations sent to the elevation service.",
		}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Elevation service request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// NewMetrics creates the elevation metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.Batches, m.Points, m.RequestDuration)
	return m
}

// NewMetricsForTesting creates unregistered metrics so that tests can
// create as many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func (m *Metrics) observePoints(n int) {
	if m == nil {
		return
	}
	m.Points.Add(float64(n))
}

func (m *Metrics) observeBatch(outcome string) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}
