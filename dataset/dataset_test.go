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
	"bytes"
	"encoding/csv"
	"math"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ctessum/geom"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/climate"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/fire"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/grid"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/spatial"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/terrain"
	"github.com/kr/pretty"
	"github.com/tealeg/xlsx"
)

var (
	aug9  = time.Date(2023, 8, 9, 0, 0, 0, 0, time.UTC)
	aug10 = time.Date(2023, 8, 10, 0, 0, 0, 0, time.UTC)
)

// testGrid returns a 2x2 grid of 10 km cells whose lower-left corner is
// the origin of the BC Albers projection.
func testGrid(t *testing.T) *grid.Grid {
	f, err := spatial.NewFrame("BC Albers", spatial.BCAlbersProj)
	if err != nil {
		t.Fatal(err)
	}
	b := &grid.Boundary{
		Parts: geom.MultiPolygon{{{
			{X: 1000000, Y: 0}, {X: 1020000, Y: 0}, {X: 1020000, Y: 20000},
			{X: 1000000, Y: 20000}, {X: 1000000, Y: 0}}}},
		Name:  "Test",
		Frame: f,
	}
	g, err := grid.Generate(b, 10000, grid.IntersectionClip)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Cells) != 4 {
		t.Fatalf("have %d cells", len(g.Cells))
	}
	return g
}

// lonLat returns the geographic coordinates of a point offset from the
// projection origin.
func lonLat(t *testing.T, g *grid.Grid, dx, dy float64) (lon, lat float64) {
	p, err := spatial.TransformPoint(g.Frame, spatial.Geographic(), geom.Point{X: 1000000 + dx, Y: dy})
	if err != nil {
		t.Fatal(err)
	}
	return p.X, p.Y
}

func sample(t *testing.T, g *grid.Grid, dx, dy float64, day time.Time, tempC, tp float64) climate.Sample {
	lon, lat := lonLat(t, g, dx, dy)
	return climate.Sample{
		Lat: lat, Lon: lon, Time: day,
		TP: tp, SSRD: 100, SWVL1: math.NaN(),
		TempC: tempC, WindSpeed: 2, RelHumidity: 50,
	}
}

func joiner(t *testing.T, g *grid.Grid) *spatial.Joiner {
	j, err := g.Joiner()
	if err != nil {
		t.Fatal(err)
	}
	return j
}

func TestAggregateClimate(t *testing.T) {
	g := testGrid(t)
	samples := []climate.Sample{
		sample(t, g, 15000, 15000, aug10, 10, 0.001),
		sample(t, g, 2500, 2500, aug9, 10, 0.001),
		sample(t, g, 7500, 7500, aug9.Add(6*time.Hour), 20, math.NaN()),
		sample(t, g, 7500, 2500, aug9, 30, 0.002),
		sample(t, g, -5000, 5000, aug9, 40, 1), // outside the grid
	}
	sums, err := AggregateClimate(samples, joiner(t, g))
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 2 {
		t.Fatalf("have %d summaries: %# v", len(sums), pretty.Formatter(sums))
	}
	s := sums[0]
	if s.Key != (Key{GridID: 1, Date: aug9}) {
		t.Errorf("first key %+v", s.Key)
	}
	if s.Temperature != 20 || math.Abs(s.Precipitation-0.003) > 1e-15 || s.SolarRadiation != 100 {
		t.Errorf("cell 1: %+v", s)
	}
	if !math.IsNaN(s.SoilMoisture) {
		t.Errorf("all-missing soil moisture should be missing; got %g", s.SoilMoisture)
	}
	if sums[1].Key != (Key{GridID: 4, Date: aug10}) {
		t.Errorf("second key %+v", sums[1].Key)
	}
}

func TestAggregateFire(t *testing.T) {
	g := testGrid(t)
	rec := func(dx, dy float64, day time.Time, size float64, cause string) fire.Record {
		lon, lat := lonLat(t, g, dx, dy)
		return fire.Record{Lat: lat, Lon: lon, Date: day, SizeHa: size, Cause: cause}
	}
	records := []fire.Record{
		rec(12500, 2500, aug9, 1.5, "N"),
		rec(17500, 7500, aug9.Add(13*time.Hour), math.NaN(), "H"),
		rec(12500, 5000, aug9, 2, "N"),
		rec(12500, 5000, aug9, 0.5, ""),
		rec(2500, 12500, aug10, 4, "U"),
		rec(50000, 50000, aug9, 100, "L"), // outside the grid
	}
	sums, err := AggregateFire(records, joiner(t, g))
	if err != nil {
		t.Fatal(err)
	}
	want := []FireSummary{
		{Key: Key{GridID: 2, Date: aug9}, FireCount: 4, TotalFireSize: 4, Causes: "H, N"},
		{Key: Key{GridID: 3, Date: aug10}, FireCount: 1, TotalFireSize: 4, Causes: "U"},
	}
	if !reflect.DeepEqual(sums, want) {
		t.Errorf("have %# v\nwant %# v", pretty.Formatter(sums), pretty.Formatter(want))
	}
	if !sums[0].FireOccurred() {
		t.Error("fire should have occurred")
	}
}

func TestAggregateEmpty(t *testing.T) {
	g := testGrid(t)
	c, err := AggregateClimate(nil, joiner(t, g))
	if err != nil || len(c) != 0 {
		t.Errorf("climate: %v, %v", c, err)
	}
	f, err := AggregateFire(nil, joiner(t, g))
	if err != nil || len(f) != 0 {
		t.Errorf("fire: %v, %v", f, err)
	}
}

func TestCombineNoFire(t *testing.T) {
	cs := []ClimateSummary{{Key: Key{GridID: 5, Date: aug9}, Temperature: 21}}
	cells := []*grid.Cell{{ID: 5, Latitude: 50, Longitude: -120}}
	rows := Combine(cs, nil, cells, nil)
	if len(rows) != 1 {
		t.Fatalf("have %d rows", len(rows))
	}
	r := rows[0]
	if r.FireCount != 0 || r.FireOccurred != 0 || r.TotalFireSize != 0 || r.FireCause != "None" {
		t.Errorf("fire fields: %+v", r)
	}
	if !math.IsNaN(r.Elevation) || !math.IsNaN(r.Slope) || !math.IsNaN(r.Aspect) {
		t.Errorf("missing terrain should stay missing: %+v", r)
	}
	if r.Latitude != 50 || r.Longitude != -120 || r.Temperature != 21 {
		t.Errorf("row: %+v", r)
	}
}

func TestCombine(t *testing.T) {
	cs := []ClimateSummary{
		{Key: Key{GridID: 2, Date: aug10}, Temperature: 3},
		{Key: Key{GridID: 2, Date: aug9}, Temperature: 2},
		{Key: Key{GridID: 1, Date: aug9}, Temperature: 1},
	}
	fires := []FireSummary{
		{Key: Key{GridID: 2, Date: aug9}, FireCount: 2, TotalFireSize: 3.5, Causes: "H, N"},
		{Key: Key{GridID: 7, Date: aug9}, FireCount: 1, TotalFireSize: 1, Causes: "L"},
		{Key: Key{GridID: 1, Date: aug9}, FireCount: 1, TotalFireSize: 0.1},
	}
	ter := map[int]terrain.Attributes{2: {Elevation: 800, Slope: 3, Aspect: 90}}
	rows := Combine(cs, fires, nil, ter)
	if len(rows) != 3 {
		t.Fatalf("have %d rows", len(rows))
	}
	var keys []Key
	for _, r := range rows {
		keys = append(keys, r.Key)
	}
	wantKeys := []Key{{1, aug9}, {2, aug9}, {2, aug10}}
	if !reflect.DeepEqual(keys, wantKeys) {
		t.Errorf("keys %v", keys)
	}
	if r := rows[0]; r.FireOccurred != 1 || r.FireCause != "None" || !math.IsNaN(r.Elevation) {
		t.Errorf("row 0: %+v", r)
	}
	if r := rows[1]; r.FireCount != 2 || r.TotalFireSize != 3.5 || r.FireCause != "H, N" || r.Elevation != 800 {
		t.Errorf("row 1: %+v", r)
	}
	if r := rows[2]; r.FireCount != 0 || r.Aspect != 90 {
		t.Errorf("row 2: %+v", r)
	}
}

func TestPipelineIdempotent(t *testing.T) {
	g := testGrid(t)
	samples := []climate.Sample{
		sample(t, g, 2500, 2500, aug9, 10, 0.001),
		sample(t, g, 12500, 12500, aug9, 12, 0.001),
		sample(t, g, 12500, 2500, aug10, 14, 0.001),
		sample(t, g, 2500, 12500, aug10, 16, 0.001),
	}
	run := func() []Row {
		c, err := AggregateClimate(samples, joiner(t, g))
		if err != nil {
			t.Fatal(err)
		}
		return Combine(c, nil, g.Cells, nil)
	}
	a, b := run(), run()
	var bufA, bufB bytes.Buffer
	if err := WriteCSV(&bufA, a); err != nil {
		t.Fatal(err)
	}
	if err := WriteCSV(&bufB, b); err != nil {
		t.Fatal(err)
	}
	if bufA.String() != bufB.String() {
		t.Errorf("repeated runs differ:\n%s\n%s", bufA.String(), bufB.String())
	}
}

func TestWriteCSV(t *testing.T) {
	rows := Combine(
		[]ClimateSummary{{Key: Key{GridID: 5, Date: aug9}, Temperature: 21.5, Precipitation: math.NaN(),
			WindSpeed: 2, Humidity: 40, SolarRadiation: 1e6, SoilMoisture: 0.25}},
		nil, nil, nil)
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatal(err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("have %d lines", len(recs))
	}
	if strings.Join(recs[0], ",") != strings.Join(Columns, ",") {
		t.Errorf("header %v", recs[0])
	}
	want := []string{"5", "2023-08-09", "21.5", "", "2", "40", "1000000", "0.25",
		"", "", "", "", "", "0", "0", "0", "None"}
	if !reflect.DeepEqual(recs[1], want) {
		t.Errorf("have %q\nwant %q", recs[1], want)
	}
}

func TestWriteXLSX(t *testing.T) {
	rows := Combine(
		[]ClimateSummary{{Key: Key{GridID: 3, Date: aug10}, Temperature: 18, Precipitation: 0.002}},
		[]FireSummary{{Key: Key{GridID: 3, Date: aug10}, FireCount: 1, TotalFireSize: 2, Causes: "L"}},
		nil, nil)
	path := filepath.Join(t.TempDir(), "out.xlsx")
	if err := WriteFile(path, rows); err != nil {
		t.Fatal(err)
	}
	f, err := xlsx.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	sheet, ok := f.Sheet[SheetName]
	if !ok {
		t.Fatalf("no sheet %q", SheetName)
	}
	if len(sheet.Rows) != 2 {
		t.Fatalf("have %d rows", len(sheet.Rows))
	}
	r := sheet.Rows[1]
	if len(r.Cells) < len(Columns) {
		t.Fatalf("have %d cells", len(r.Cells))
	}
	if id, err := r.Cells[0].Int(); err != nil || id != 3 {
		t.Errorf("grid_id %v, %v", id, err)
	}
	if r.Cells[1].Value != "2023-08-10" || r.Cells[16].Value != "L" {
		t.Errorf("cells %q %q", r.Cells[1].Value, r.Cells[16].Value)
	}
	if v, err := r.Cells[2].Float(); err != nil || v != 18 {
		t.Errorf("temperature %v, %v", v, err)
	}
	if r.Cells[10].Value != "" {
		t.Errorf("missing elevation should be empty; got %q", r.Cells[10].Value)
	}
}

func TestWriteFileCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := WriteFile(path, nil); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(filepath.Join(t.TempDir(), "missing", "out.csv"), nil); err == nil {
		t.Error("expected an error for a missing directory")
	}
}
