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

// Package dataset aggregates climate and fire observations to grid cells
// and days and combines them with terrain into the output table.
package dataset

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/climate"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/fire"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/internal/table"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/spatial"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Key identifies one cell on one day.
type Key struct {
	GridID int

	// Date is midnight UTC of the day.
	Date time.Time
}

func (k Key) less(k2 Key) bool {
	if k.GridID != k2.GridID {
		return k.GridID < k2.GridID
	}
	return k.Date.Before(k2.Date)
}

// ClimateSummary holds the climate statistics of one cell on one day.
type ClimateSummary struct {
	Key

	// Temperature is the mean temperature [°C].
	Temperature float64

	// Precipitation is the sum of the daily precipitation of the
	// samples in the cell [m].
	Precipitation float64

	// WindSpeed is the mean wind speed [m/s].
	WindSpeed float64

	// Humidity is the mean relative humidity [%].
	Humidity float64

	// SolarRadiation is the mean surface solar radiation [J/m²].
	SolarRadiation float64

	// SoilMoisture is the mean volumetric soil water [m³/m³].
	SoilMoisture float64
}

// FireSummary holds the fires in one cell on one day.
type FireSummary struct {
	Key
	FireCount int

	// TotalFireSize is the sum of the known fire sizes [ha].
	TotalFireSize float64

	// Causes lists the distinct fire causes, sorted and separated by
	// ", ".
	Causes string
}

// FireOccurred reports whether there was at least one fire.
func (f FireSummary) FireOccurred() bool { return f.FireCount > 0 }

// locate assigns each geographic (longitude, latitude) point to a cell.
// The result holds the cell ID of each point and is 0 for points that are
// in no cell.
func locate(pts []geom.Point, j *spatial.Joiner) ([]int, error) {
	l, err := spatial.NewPointLayer(spatial.Geographic(), pts).Reproject(j.Frame())
	if err != nil {
		return nil, err
	}
	matches, err := j.Join(l)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(pts))
	for _, m := range matches {
		ids[m.Index] = m.GridID
	}
	return ids, nil
}

// values collects the non-missing values of one field.
type values []float64

func (v *values) add(x float64) {
	if !math.IsNaN(x) {
		*v = append(*v, x)
	}
}

func (v values) mean() float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}

func (v values) sum() float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	return floats.Sum(v)
}

// AggregateClimate assigns daily climate samples to the cells of j and
// summarizes them by cell and day. Samples outside every cell are
// dropped. Missing values are skipped; a statistic with no values is
// missing. The result is sorted by cell and then day.
func AggregateClimate(samples []climate.Sample, j *spatial.Joiner) ([]ClimateSummary, error) {
	pts := make([]geom.Point, len(samples))
	for i, s := range samples {
		pts[i] = geom.Point{X: s.Lon, Y: s.Lat}
	}
	ids, err := locate(pts, j)
	if err != nil {
		return nil, fmt.Errorf("dataset: aggregating climate: %v", err)
	}

	type group struct {
		temp, precip, wind, rh, solar, soil values
	}
	groups := make(map[Key]*group)
	for i, s := range samples {
		if ids[i] == 0 {
			continue
		}
		k := Key{GridID: ids[i], Date: table.Day(s.Time)}
		g, ok := groups[k]
		if !ok {
			g = new(group)
			groups[k] = g
		}
		g.temp.add(s.TempC)
		g.precip.add(s.TP)
		g.wind.add(s.WindSpeed)
		g.rh.add(s.RelHumidity)
		g.solar.add(s.SSRD)
		g.soil.add(s.SWVL1)
	}

	out := make([]ClimateSummary, 0, len(groups))
	for k, g := range groups {
		out = append(out, ClimateSummary{
			Key:            k,
			Temperature:    g.temp.mean(),
			Precipitation:  g.precip.sum(),
			WindSpeed:      g.wind.mean(),
			Humidity:       g.rh.mean(),
			SolarRadiation: g.solar.mean(),
			SoilMoisture:   g.soil.mean(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.less(out[j].Key) })
	return out, nil
}

// AggregateFire assigns fire records to the cells of j and summarizes them
// by cell and report day. Records outside every cell are dropped.
// The result is sorted by cell and then day.
func AggregateFire(records []fire.Record, j *spatial.Joiner) ([]FireSummary, error) {
	pts := make([]geom.Point, len(records))
	for i, r := range records {
		pts[i] = geom.Point{X: r.Lon, Y: r.Lat}
	}
	ids, err := locate(pts, j)
	if err != nil {
		return nil, fmt.Errorf("dataset: aggregating fires: %v", err)
	}

	type group struct {
		n      int
		size   float64
		causes map[string]bool
	}
	groups := make(map[Key]*group)
	for i, r := range records {
		if ids[i] == 0 {
			continue
		}
		k := Key{GridID: ids[i], Date: table.Day(r.Date)}
		g, ok := groups[k]
		if !ok {
			g = &group{causes: make(map[string]bool)}
			groups[k] = g
		}
		g.n++
		if !math.IsNaN(r.SizeHa) {
			g.size += r.SizeHa
		}
		if c := strings.TrimSpace(r.Cause); c != "" {
			g.causes[c] = true
		}
	}

	out := make([]FireSummary, 0, len(groups))
	for k, g := range groups {
		causes := make([]string, 0, len(g.causes))
		for c := range g.causes {
			causes = append(causes, c)
		}
		sort.Strings(causes)
		out = append(out, FireSummary{
			Key:           k,
			FireCount:     g.n,
			TotalFireSize: g.size,
			Causes:        strings.Join(causes, ", "),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.less(out[j].Key) })
	return out, nil
}
