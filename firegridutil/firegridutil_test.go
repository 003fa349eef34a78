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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dheemanthrk/ForestFireDatasetGenerator/dataset"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/grid"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/spatial"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBoundary = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"PRNAME": "British Columbia"},
     "geometry": {"type": "Polygon", "coordinates": [
       [[-123.5, 49.1], [-123.3, 49.1], [-123.3, 49.3], [-123.5, 49.3], [-123.5, 49.1]]
     ]}}
  ]
}`

const testClimate = `valid_time,latitude,longitude,t2m,tp,u10,v10,d2m
2023-08-09 00:00:00,49.2,-123.4,290.15,0.001,3,4,280.15
2023-08-09 12:00:00,49.2,-123.4,296.15,0.003,3,4,286.15
2023-08-10 00:00:00,49.2,-123.4,293.15,0,0,2,283.15
2023-08-09 00:00:00,55,-130,290.15,0.001,1,0,280.15
`

const testFires = `FIRE_ID,LATITUDE,LONGITUDE,REP_DATE,SIZE_HA,CAUSE
2023-V1,49.2,-123.4,2023-08-09,5,L
2023-V2,55,-130,2023-08-09,10,H
`

// testFiles writes the run inputs to a temporary directory.
func testFiles(t *testing.T) (dir, boundary, climate, fires string) {
	dir = t.TempDir()
	boundary = filepath.Join(dir, "boundary.geojson")
	climate = filepath.Join(dir, "era5.csv")
	fires = filepath.Join(dir, "fires.csv")
	for path, data := range map[string]string{boundary: testBoundary, climate: testClimate, fires: testFires} {
		require.NoError(t, ioutil.WriteFile(path, []byte(data), 0644))
	}
	return dir, boundary, climate, fires
}

// testViper returns a configuration with the command-line defaults.
func testViper(boundary string) *viper.Viper {
	v := viper.New()
	v.Set("Boundary.File", boundary)
	v.Set("Boundary.NameField", "PRNAME")
	v.Set("Grid.Proj", spatial.BCAlbersProj)
	v.Set("Grid.Size", 10000.0)
	v.Set("Grid.Policy", "intersection")
	v.Set("Terrain.Source", TerrainNone)
	v.Set("Terrain.DEMBounds", []string{})
	v.Set("Terrain.DEMProj", spatial.GeographicProj)
	v.Set("Terrain.WithinBoundary", true)
	v.Set("Elevation.BatchSize", 512)
	v.Set("Elevation.Delay", "0s")
	v.Set("OutputFile", filepath.Join(filepath.Dir(boundary), "fire_dataset.csv"))
	return v
}

// flatHandler answers every location with an elevation of 100 m.
func flatHandler(requests *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		type result struct {
			Elevation float64 `json:"elevation"`
		}
		var resp struct {
			Results []result `json:"results"`
			Status  string   `json:"status"`
		}
		for range strings.Split(r.URL.Query().Get("locations"), "|") {
			resp.Results = append(resp.Results, result{Elevation: 100})
		}
		resp.Status = "OK"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func TestLoadConfig(t *testing.T) {
	_, boundary, _, _ := testFiles(t)
	cfg, err := LoadConfig(testViper(boundary))
	require.NoError(t, err)
	assert.Equal(t, boundary, cfg.BoundaryFile)
	assert.Equal(t, 10000.0, cfg.GridSize)
	assert.Equal(t, grid.IntersectionClip, cfg.GridPolicy)
	assert.Nil(t, cfg.BoundaryFrame)
	assert.Nil(t, cfg.DEMBounds)
	assert.True(t, math.IsNaN(cfg.NoData))
	assert.Equal(t, TerrainNone, cfg.TerrainSource)
}

func TestLoadConfig_invalid(t *testing.T) {
	_, boundary, _, _ := testFiles(t)
	tests := []struct {
		name string
		key  string
		val  interface{}
	}{
		{name: "no boundary", key: "Boundary.File", val: ""},
		{name: "zero size", key: "Grid.Size", val: 0.0},
		{name: "negative size", key: "Grid.Size", val: -5.0},
		{name: "policy", key: "Grid.Policy", val: "nearest"},
		{name: "terrain source", key: "Terrain.Source", val: "lidar"},
		{name: "dem bounds", key: "Terrain.DEMBounds", val: []string{"1", "2", "3"}},
		{name: "nodata", key: "Terrain.NoData", val: "none"},
		{name: "delay", key: "Elevation.Delay", val: "soon"},
		{name: "output directory", key: "OutputFile", val: filepath.Join(boundary, "missing", "out.csv")},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v := testViper(boundary)
			v.Set(test.key, test.val)
			_, err := LoadConfig(v)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_gridSize(t *testing.T) {
	_, boundary, _, _ := testFiles(t)
	v := testViper(boundary)
	v.Set("Grid.Size", 0.0)
	_, err := LoadConfig(v)
	assert.True(t, errors.Is(err, grid.ErrInvalidConfiguration), "have %v", err)
}

func TestLoadConfig_demBounds(t *testing.T) {
	_, boundary, _, _ := testFiles(t)
	for _, b := range []interface{}{
		"[-139,48,-114,60]",
		[]string{"-139", "48", "-114", "60"},
		[]interface{}{-139, 48.0, "-114", 60},
	} {
		v := testViper(boundary)
		v.Set("Terrain.DEMBounds", b)
		v.Set("Terrain.NoData", "-32768")
		cfg, err := LoadConfig(v)
		require.NoError(t, err)
		assert.Equal(t, []float64{-139, 48, -114, 60}, cfg.DEMBounds)
		assert.Equal(t, -32768.0, cfg.NoData)
	}
}

func TestRun(t *testing.T) {
	dir, boundary, climate, fires := testFiles(t)
	var requests int32
	srv := httptest.NewServer(flatHandler(&requests))
	defer srv.Close()

	v := testViper(boundary)
	v.Set("Climate.File", climate)
	v.Set("Fire.File", fires)
	v.Set("Terrain.Source", TerrainAPI)
	v.Set("Elevation.URL", srv.URL)
	v.Set("CacheDir", filepath.Join(dir, "cache"))
	v.Set("ManifestFile", filepath.Join(dir, "manifest.toml"))
	v.Set("MetricsFile", filepath.Join(dir, "metrics.prom"))
	cfg, err := LoadConfig(v)
	require.NoError(t, err)

	r, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, r.Grid.Cells)
	assert.EqualValues(t, 1, atomic.LoadInt32(&requests))

	require.Len(t, r.Rows, 2)
	day1, day2 := r.Rows[0], r.Rows[1]
	assert.Equal(t, day1.GridID, day2.GridID)
	assert.Equal(t, "2023-08-09", day1.Date.Format(dataset.DateFormat))
	assert.Equal(t, "2023-08-10", day2.Date.Format(dataset.DateFormat))
	assert.InDelta(t, 20, day1.Temperature, 1e-9)
	assert.InDelta(t, 0.002, day1.Precipitation, 1e-12)
	assert.InDelta(t, 5, day1.WindSpeed, 1e-9)
	assert.True(t, math.IsNaN(day1.SolarRadiation))
	assert.InDelta(t, 49.2, day1.Latitude, 0.1)
	assert.InDelta(t, -123.4, day1.Longitude, 0.1)
	assert.Equal(t, 100.0, day1.Elevation)
	assert.Equal(t, 0.0, day1.Slope)
	assert.Equal(t, 0.0, day1.Aspect)
	assert.Equal(t, 1, day1.FireCount)
	assert.Equal(t, 1, day1.FireOccurred)
	assert.Equal(t, 5.0, day1.TotalFireSize)
	assert.Equal(t, "L", day1.FireCause)
	assert.Equal(t, 0, day2.FireCount)
	assert.Equal(t, 0, day2.FireOccurred)
	assert.Equal(t, dataset.NoCause, day2.FireCause)

	out1, err := ioutil.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out1)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(dataset.Columns, ","), lines[0])

	m, err := ReadManifest(cfg.ManifestFile)
	require.NoError(t, err)
	assert.Equal(t, Version, m.Version)
	assert.Equal(t, climate, m.Inputs.Climate)
	assert.Equal(t, len(r.Grid.Cells), m.Counts.Cells)
	assert.Equal(t, 2, m.Counts.Rows)
	assert.Equal(t, 1, m.Counts.FireDays)
	assert.Equal(t, 1, m.Counts.FireSummaries)
	assert.True(t, m.Counts.MissingTerrain < m.Counts.Cells)
	assert.Equal(t, 0, m.Counts.CacheHits)
	assert.Equal(t, 3, m.Counts.CacheMisses)

	metrics, err := ioutil.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `firegrid_items{kind="rows"} 2`)
	assert.Contains(t, string(metrics), `firegrid_elevation_batches_total{outcome="success"} 1`)

	t.Run("cached", func(t *testing.T) {
		require.NoError(t, os.Remove(cfg.OutputFile))
		r2, err := Run(context.Background(), cfg)
		require.NoError(t, err)
		assert.EqualValues(t, 1, atomic.LoadInt32(&requests), "terrain should come from the cache")
		assert.Equal(t, 3, r2.Manifest.Counts.CacheHits)
		assert.Equal(t, 0, r2.Manifest.Counts.CacheMisses)
		out2, err := ioutil.ReadFile(cfg.OutputFile)
		require.NoError(t, err)
		assert.Equal(t, string(out1), string(out2))
	})
}

func TestRun_failedTerrainNotCached(t *testing.T) {
	dir, boundary, climate, _ := testFiles(t)
	var requests int32
	flat := flatHandler(new(int32))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status": "OVER_QUERY_LIMIT", "results": []}`))
			return
		}
		flat(w, r)
	}))
	defer srv.Close()

	v := testViper(boundary)
	v.Set("Climate.File", climate)
	v.Set("Terrain.Source", TerrainAPI)
	v.Set("Elevation.URL", srv.URL)
	v.Set("CacheDir", filepath.Join(dir, "cache"))
	cfg, err := LoadConfig(v)
	require.NoError(t, err)

	r, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, r.Rows, 2)
	assert.True(t, math.IsNaN(r.Rows[0].Elevation))
	assert.Equal(t, len(r.Grid.Cells), r.Manifest.Counts.MissingTerrain)

	r2, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&requests), "failed terrain should be requested again")
	require.Len(t, r2.Rows, 2)
	assert.Equal(t, 100.0, r2.Rows[0].Elevation)
	assert.Equal(t, 2, r2.Manifest.Counts.CacheHits)
	assert.Equal(t, 1, r2.Manifest.Counts.CacheMisses)

	r3, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&requests), "complete terrain should come from the cache")
	assert.Equal(t, 100.0, r3.Rows[0].Elevation)
}

func TestRun_noFiresNoTerrain(t *testing.T) {
	_, boundary, climate, _ := testFiles(t)
	v := testViper(boundary)
	v.Set("Climate.File", climate)
	cfg, err := LoadConfig(v)
	require.NoError(t, err)

	r, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, r.Rows, 2)
	for _, row := range r.Rows {
		assert.Equal(t, 0, row.FireCount)
		assert.Equal(t, dataset.NoCause, row.FireCause)
		assert.True(t, math.IsNaN(row.Elevation))
	}
	assert.Equal(t, len(r.Grid.Cells), r.Manifest.Counts.MissingTerrain)
}

func TestRun_requiredInputs(t *testing.T) {
	_, boundary, climate, _ := testFiles(t)
	v := testViper(boundary)
	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	_, err = Run(context.Background(), cfg)
	assert.Error(t, err, "climate file is required")

	v.Set("Climate.File", climate)
	v.Set("Terrain.Source", TerrainRaster)
	cfg, err = LoadConfig(v)
	require.NoError(t, err)
	_, err = Run(context.Background(), cfg)
	assert.Error(t, err, "raster terrain requires a DEM")
}

func TestBuildGrid_reload(t *testing.T) {
	dir, boundary, _, _ := testFiles(t)
	v := testViper(boundary)
	v.Set("Grid.Shapefile", filepath.Join(dir, "grid.shp"))
	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	g, err := BuildGrid(cfg, logrus.StandardLogger())
	require.NoError(t, err)

	v.Set("Grid.Shapefile", "")
	v.Set("Grid.File", filepath.Join(dir, "grid.shp"))
	cfg, err = LoadConfig(v)
	require.NoError(t, err)
	g2, err := BuildGrid(cfg, logrus.StandardLogger())
	require.NoError(t, err)
	require.Equal(t, len(g.Cells), len(g2.Cells))
	assert.True(t, g2.Frame.Equal(g.Frame))
	for i, c := range g.Cells {
		c2 := g2.Cells[i]
		assert.Equal(t, c.ID, c2.ID)
		assert.InDelta(t, c.Latitude, c2.Latitude, 1e-6)
		assert.InDelta(t, c.Longitude, c2.Longitude, 1e-6)
		assert.InDelta(t, c.Area(), c2.Area(), 1e-3*c.Area())
	}
}

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	Root.SetOutput(&buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	require.NoError(t, Root.Execute())
	assert.Equal(t, "firegrid v"+Version+"\n", buf.String())
}

func TestGridCommand(t *testing.T) {
	dir, boundary, _, _ := testFiles(t)
	shp := filepath.Join(dir, "grid.shp")
	Cfg.Set("Boundary.File", boundary)
	Cfg.Set("Grid.Shapefile", shp)
	defer Cfg.Set("Grid.Shapefile", "")
	Root.SetArgs([]string{"grid"})
	require.NoError(t, Root.Execute())
	_, err := os.Stat(shp)
	assert.NoError(t, err)

	Cfg.Set("Grid.Shapefile", "")
	Root.SetArgs([]string{"grid"})
	assert.Error(t, Root.Execute())
}
