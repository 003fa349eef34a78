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

package firegridutil

import (
	"fmt"
	"time"

	"github.com/dheemanthrk/ForestFireDatasetGenerator/elevation"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "firegrid"

// runMetrics holds the collectors of one run. They are registered with a
// registry of their own so that repeated runs in one process don't clash.
type runMetrics struct {
	reg *prometheus.Registry

	StageDuration *prometheus.GaugeVec // labels: stage
	Items         *prometheus.GaugeVec // labels: kind={cells,climate_summaries,fire_summaries,rows}
	CacheRequests *prometheus.GaugeVec // labels: result={hit,miss}
	Elevation     *elevation.Metrics
}

func newRunMetrics() *runMetrics {
	m := &runMetrics{
		reg: prometheus.NewRegistry(),
		StageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage in seconds.",
		}, []string{"stage"}),
		Items: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items",
			Help:      "Number of items processed by kind.",
		}, []string{"kind"}),
		CacheRequests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_cache_requests",
			Help:      "Stage cache requests by result.",
		}, []string{"result"}),
	}
	m.reg.MustRegister(m.StageDuration, m.Items, m.CacheRequests)
	m.Elevation = elevation.NewMetrics(m.reg)
	return m
}

// stage records the time since start for the named stage.
func (m *runMetrics) stage(name string, start time.Time) {
	m.StageDuration.WithLabelValues(name).Set(time.Since(start).Seconds())
}

func (m *runMetrics) count(kind string, n int) {
	m.Items.WithLabelValues(kind).Set(float64(n))
}

func (m *runMetrics) cache(c *stageCache) {
	hits, misses := c.hits()
	m.CacheRequests.WithLabelValues("hit").Set(float64(hits))
	m.CacheRequests.WithLabelValues("miss").Set(float64(misses))
}

// write saves the metrics to path in the Prometheus text format.
func (m *runMetrics) write(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("firegrid: writing metrics: %v", err)
	}
	return nil
}
