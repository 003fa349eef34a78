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

package dataset

import (
	"math"
	"sort"

	"github.com/dheemanthrk/ForestFireDatasetGenerator/grid"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/terrain"
)

// NoCause is the fire cause of a row without fires.
const NoCause = "None"

// Row is one output row: the climate, fire and terrain of one cell on one
// day.
type Row struct {
	Key

	Temperature    float64
	Precipitation  float64
	WindSpeed      float64
	Humidity       float64
	SolarRadiation float64
	SoilMoisture   float64

	// Latitude and Longitude are the cell centroid.
	Latitude, Longitude float64

	Elevation, Slope, Aspect float64

	FireCount     int
	FireOccurred  int
	TotalFireSize float64
	FireCause     string
}

// Combine joins the fire summaries and the cell terrain and location onto
// the climate summaries. Every climate summary produces one row, and fire
// summaries without matching climate are dropped. Rows without fires have
// zero counts and cause NoCause; rows without terrain have missing
// terrain. The result is sorted by cell and then day.
func Combine(climate []ClimateSummary, fires []FireSummary, cells []*grid.Cell, terrainByID map[int]terrain.Attributes) []Row {
	fireByKey := make(map[Key]FireSummary, len(fires))
	for _, f := range fires {
		fireByKey[f.Key] = f
	}
	cellByID := make(map[int]*grid.Cell, len(cells))
	for _, c := range cells {
		cellByID[c.ID] = c
	}

	rows := make([]Row, len(climate))
	for i, c := range climate {
		r := Row{
			Key:            c.Key,
			Temperature:    c.Temperature,
			Precipitation:  c.Precipitation,
			WindSpeed:      c.WindSpeed,
			Humidity:       c.Humidity,
			SolarRadiation: c.SolarRadiation,
			SoilMoisture:   c.SoilMoisture,
			Latitude:       math.NaN(),
			Longitude:      math.NaN(),
			FireCause:      NoCause,
		}
		if cell, ok := cellByID[c.GridID]; ok {
			r.Latitude, r.Longitude = cell.Latitude, cell.Longitude
		}
		t, ok := terrainByID[c.GridID]
		if !ok {
			t = terrain.Missing()
		}
		r.Elevation, r.Slope, r.Aspect = t.Elevation, t.Slope, t.Aspect
		if f, ok := fireByKey[c.Key]; ok {
			r.FireCount = f.FireCount
			if f.FireOccurred() {
				r.FireOccurred = 1
			}
			r.TotalFireSize = f.TotalFireSize
			if f.Causes != "" {
				r.FireCause = f.Causes
			}
		}
		rows[i] = r
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Key.less(rows[j].Key) })
	return rows
}
