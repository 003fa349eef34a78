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

package climate

import (
	"math"
	"sort"
	"time"

	"github.com/dheemanthrk/ForestFireDatasetGenerator/internal/table"
)

type locationDay struct {
	lat, lon float64
	day      time.Time
}

// fieldMean accumulates a mean that skips NaN values.
type fieldMean struct {
	sum float64
	n   int
}

func (m *fieldMean) add(v float64) {
	if math.IsNaN(v) {
		return
	}
	m.sum += v
	m.n++
}

func (m fieldMean) value() float64 {
	if m.n == 0 {
		return math.NaN()
	}
	return m.sum / float64(m.n)
}

// ResampleDaily averages the samples at each location to one sample per
// calendar day (UTC) and calculates the derived fields of the result.
// Every raw field, including precipitation, is averaged. The result is
// sorted by day, then latitude, then longitude.
func ResampleDaily(samples []Sample) []Sample {
	const nFields = 7
	groups := make(map[locationDay]*[nFields]fieldMean)
	for _, s := range samples {
		k := locationDay{lat: s.Lat, lon: s.Lon, day: table.Day(s.Time)}
		g, ok := groups[k]
		if !ok {
			g = new([nFields]fieldMean)
			groups[k] = g
		}
		for i, v := range [nFields]float64{s.T2m, s.TP, s.U10, s.V10, s.D2m, s.SSRD, s.SWVL1} {
			g[i].add(v)
		}
	}
	out := make([]Sample, 0, len(groups))
	for k, g := range groups {
		s := Sample{
			Lat: k.lat, Lon: k.lon, Time: k.day,
			T2m: g[0].value(), TP: g[1].value(), U10: g[2].value(), V10: g[3].value(),
			D2m: g[4].value(), SSRD: g[5].value(), SWVL1: g[6].value(),
		}
		out = append(out, s.Derive())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		if a.Lat != b.Lat {
			return a.Lat < b.Lat
		}
		return a.Lon < b.Lon
	})
	return out
}
