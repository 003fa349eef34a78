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
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/dheemanthrk/ForestFireDatasetGenerator/climate"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/dataset"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/elevation"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/fire"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/grid"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/internal/hash"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/spatial"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/terrain"
	"github.com/sirupsen/logrus"
)

// Result holds the products of a run.
type Result struct {
	Grid     *grid.Grid
	Rows     []dataset.Row
	Manifest *Manifest
}

// BuildGrid loads the configured boundary, projects it to the grid
// reference frame and creates the grid, or reads it from cfg.GridFile if
// that is set. If cfg.GridShapefile is set, the grid is saved there.
func BuildGrid(cfg *Config, log logrus.FieldLogger) (*grid.Grid, error) {
	_, g, err := buildGrid(cfg, log)
	return g, err
}

func buildGrid(cfg *Config, log logrus.FieldLogger) (*grid.Boundary, *grid.Grid, error) {
	b, err := grid.LoadBoundary(cfg.BoundaryFile, grid.BoundaryOptions{
		NameField: cfg.BoundaryNameField,
		Name:      cfg.BoundaryName,
		Frame:     cfg.BoundaryFrame,
	})
	if err != nil {
		return nil, nil, err
	}
	var g *grid.Grid
	if cfg.GridFile != "" {
		if g, err = grid.ReadShapefile(cfg.GridFile, cfg.GridSize, cfg.GridPolicy, nil); err != nil {
			return nil, nil, err
		}
		if !b.Frame.Equal(g.Frame) {
			if b, err = b.Reproject(g.Frame); err != nil {
				return nil, nil, err
			}
		}
		log.WithFields(logrus.Fields{
			"path":  cfg.GridFile,
			"cells": len(g.Cells),
		}).Info("firegrid: loaded grid")
	} else {
		if !b.Frame.Equal(cfg.GridFrame) {
			if b, err = b.Reproject(cfg.GridFrame); err != nil {
				return nil, nil, err
			}
		}
		if g, err = grid.Generate(b, cfg.GridSize, cfg.GridPolicy); err != nil {
			return nil, nil, err
		}
		log.WithFields(logrus.Fields{
			"region": b.Name,
			"size":   cfg.GridSize,
			"policy": cfg.GridPolicy,
			"cells":  len(g.Cells),
		}).Info("firegrid: created grid")
	}
	if cfg.GridShapefile != "" {
		if err := g.WriteShapefile(cfg.GridShapefile); err != nil {
			return nil, nil, err
		}
		log.WithField("path", cfg.GridShapefile).Info("firegrid: saved grid")
	}
	return b, g, nil
}

// gridParams returns the cache key parameters that determine the grid.
func gridParams(cfg *Config) ([]interface{}, error) {
	bs, err := stamp(cfg.BoundaryFile)
	if err != nil {
		return nil, err
	}
	var bframe string
	if cfg.BoundaryFrame != nil {
		bframe = cfg.BoundaryFrame.Def
	}
	gs, err := stamp(cfg.GridFile)
	if err != nil {
		return nil, err
	}
	// Shapefiles keep their reference frame in a separate file.
	ps, err := stamp(sidecar(cfg.BoundaryFile, ".prj"))
	if err != nil {
		ps = fileStamp{}
	}
	return []interface{}{bs, ps, gs, cfg.BoundaryNameField, cfg.BoundaryName, bframe,
		cfg.GridFrame.Def, cfg.GridSize, cfg.GridPolicy.String()}, nil
}

func sidecar(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// Run creates the dataset described by cfg and writes it to
// cfg.OutputFile. The climate, fire and terrain stages are computed once
// for a given set of inputs when cfg.CacheDir is set.
func Run(ctx context.Context, cfg *Config) (*Result, error) {
	log := logrus.StandardLogger()
	start := time.Now()
	if cfg.ClimateFile == "" {
		return nil, fmt.Errorf("firegrid: Climate.File must be specified")
	}
	if cfg.OutputFile == "" {
		return nil, fmt.Errorf("firegrid: OutputFile must be specified")
	}
	if cfg.TerrainSource == TerrainRaster && cfg.DEM == "" {
		return nil, fmt.Errorf("firegrid: Terrain.DEM must be specified for the raster terrain source")
	}
	m := newRunMetrics()
	man := newManifest(cfg, start)
	cache, err := newStageCache(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	t := time.Now()
	b, g, err := buildGrid(cfg, log)
	if err != nil {
		return nil, err
	}
	m.stage("grid", t)
	m.count("cells", len(g.Cells))
	gp, err := gridParams(cfg)
	if err != nil {
		return nil, err
	}
	j, err := g.Joiner()
	if err != nil {
		return nil, err
	}

	t = time.Now()
	cs, err := climateStage(ctx, cfg, cache, gp, j, log)
	if err != nil {
		return nil, err
	}
	m.stage("climate", t)
	m.count("climate_summaries", len(cs))

	t = time.Now()
	fs, err := fireStage(ctx, cfg, cache, gp, j, log)
	if err != nil {
		return nil, err
	}
	m.stage("fire", t)
	m.count("fire_summaries", len(fs))

	t = time.Now()
	ts, err := terrainStage(ctx, cfg, cache, gp, b, g, m.Elevation, log)
	if err != nil {
		return nil, err
	}
	m.stage("terrain", t)

	t = time.Now()
	rows := dataset.Combine(cs, fs, g.Cells, ts)
	if err := dataset.WriteFile(cfg.OutputFile, rows); err != nil {
		return nil, err
	}
	m.stage("output", t)
	m.count("rows", len(rows))
	m.cache(cache)
	log.WithFields(logrus.Fields{
		"rows": len(rows),
		"path": cfg.OutputFile,
	}).Info("firegrid: saved dataset")

	man.Duration = time.Since(start).String()
	man.Counts = ManifestCounts{
		Cells:            len(g.Cells),
		ClimateSummaries: len(cs),
		FireSummaries:    len(fs),
		Rows:             len(rows),
		MissingTerrain:   missingTerrain(g, ts),
	}
	for _, r := range rows {
		man.Counts.FireDays += r.FireOccurred
	}
	man.Counts.CacheHits, man.Counts.CacheMisses = cache.hits()
	if cfg.ManifestFile != "" {
		if err := man.Write(cfg.ManifestFile); err != nil {
			return nil, err
		}
	}
	if cfg.MetricsFile != "" {
		if err := m.write(cfg.MetricsFile); err != nil {
			return nil, err
		}
	}
	return &Result{Grid: g, Rows: rows, Manifest: man}, nil
}

func climateStage(ctx context.Context, cfg *Config, cache *stageCache, gp []interface{}, j *spatial.Joiner, log logrus.FieldLogger) ([]dataset.ClimateSummary, error) {
	s, err := stamp(cfg.ClimateFile)
	if err != nil {
		return nil, err
	}
	key := hash.StageKey("climate", append(gp, s)...)
	r, err := cache.do(ctx, key, func(ctx context.Context) (interface{}, error) {
		var samples []climate.Sample
		var err error
		if strings.EqualFold(filepath.Ext(cfg.ClimateFile), ".nc") {
			samples, err = climate.ReadNetCDFFile(cfg.ClimateFile)
		} else {
			samples, err = climate.ReadCSVFile(cfg.ClimateFile)
		}
		if err != nil {
			return nil, err
		}
		daily := climate.ResampleDaily(samples)
		log.WithFields(logrus.Fields{
			"samples": len(samples),
			"daily":   len(daily),
		}).Info("firegrid: read climate data")
		return dataset.AggregateClimate(daily, j)
	})
	if err != nil {
		return nil, err
	}
	return r.([]dataset.ClimateSummary), nil
}

func fireStage(ctx context.Context, cfg *Config, cache *stageCache, gp []interface{}, j *spatial.Joiner, log logrus.FieldLogger) ([]dataset.FireSummary, error) {
	if cfg.FireFile == "" {
		log.Info("firegrid: no fire file; no fires will be recorded")
		return nil, nil
	}
	s, err := stamp(cfg.FireFile)
	if err != nil {
		return nil, err
	}
	key := hash.StageKey("fire", append(gp, s)...)
	r, err := cache.do(ctx, key, func(ctx context.Context) (interface{}, error) {
		rd := fire.Reader{Log: log}
		records, err := rd.ReadFile(cfg.FireFile)
		if err != nil {
			return nil, err
		}
		log.WithField("records", len(records)).Info("firegrid: read fire data")
		return dataset.AggregateFire(records, j)
	})
	if err != nil {
		return nil, err
	}
	return r.([]dataset.FireSummary), nil
}

func terrainStage(ctx context.Context, cfg *Config, cache *stageCache, gp []interface{}, b *grid.Boundary, g *grid.Grid, em *elevation.Metrics, log logrus.FieldLogger) (map[int]terrain.Attributes, error) {
	var params []interface{}
	switch cfg.TerrainSource {
	case TerrainNone:
		log.Info("firegrid: terrain is not sampled")
		return map[int]terrain.Attributes{}, nil
	case TerrainRaster:
		s, err := stamp(cfg.DEM)
		if err != nil {
			return nil, err
		}
		params = []interface{}{s, cfg.DEMBounds, cfg.DEMFrame.Def, cfg.NoData}
	case TerrainAPI:
		// The API key is left out so that it isn't written to disk.
		params = []interface{}{cfg.ElevationURL, terrain.DefaultOffset, cfg.WithinBoundary}
	default:
		return nil, fmt.Errorf("firegrid: invalid terrain source %q", cfg.TerrainSource)
	}
	key := hash.StageKey("terrain_"+cfg.TerrainSource, append(gp, params...)...)
	r, err := cache.do(ctx, key, func(ctx context.Context) (interface{}, error) {
		s, err := newSampler(cfg, b, em, log)
		if err != nil {
			return nil, err
		}
		ts, err := s.Sample(ctx, g)
		if err != nil {
			return nil, err
		}
		// Missing elevations from the service come from failed batches,
		// which may succeed next time.
		if n := missingSampled(ts); cfg.TerrainSource == TerrainAPI && n > 0 {
			log.WithFields(logrus.Fields{
				"missing": n,
			}).Warn("firegrid: terrain is incomplete and will not be cached")
			return nil, &uncachedResult{result: ts, reason: fmt.Sprintf("%d cells have no elevation", n)}
		}
		return ts, nil
	})
	if err != nil {
		return nil, err
	}
	ts := r.(map[int]terrain.Attributes)
	log.WithFields(logrus.Fields{
		"source":  cfg.TerrainSource,
		"cells":   len(ts),
		"missing": missingTerrain(g, ts),
	}).Info("firegrid: sampled terrain")
	return ts, nil
}

// newSampler creates the configured terrain sampler.
func newSampler(cfg *Config, b *grid.Boundary, em *elevation.Metrics, log logrus.FieldLogger) (terrain.Sampler, error) {
	switch cfg.TerrainSource {
	case TerrainRaster:
		var transform *terrain.Affine
		if len(cfg.DEMBounds) == 4 {
			cols, rows, err := terrain.GeoTIFFSize(cfg.DEM)
			if err != nil {
				return nil, err
			}
			a, err := terrain.AffineFromBounds(cfg.DEMBounds[0], cfg.DEMBounds[1], cfg.DEMBounds[2], cfg.DEMBounds[3], cols, rows)
			if err != nil {
				return nil, err
			}
			transform = &a
		}
		r, err := terrain.ReadGeoTIFF(cfg.DEM, transform, cfg.NoData)
		if err != nil {
			return nil, err
		}
		return terrain.NewRasterSampler(r, cfg.DEMFrame)
	case TerrainAPI:
		c := elevation.NewClient(cfg.ElevationURL, cfg.ElevationKey)
		if cfg.ElevationBatchSize > 0 {
			c.BatchSize = cfg.ElevationBatchSize
		}
		c.Delay = cfg.ElevationDelay
		c.Metrics = em
		c.Log = log
		s := &terrain.PointSampler{Source: c, Log: log}
		if cfg.WithinBoundary {
			s.Boundary = b
		}
		return s, nil
	default:
		return nil, fmt.Errorf("firegrid: invalid terrain source %q", cfg.TerrainSource)
	}
}

// missingSampled returns the number of sampled cells without an
// elevation.
func missingSampled(ts map[int]terrain.Attributes) int {
	var n int
	for _, a := range ts {
		if math.IsNaN(a.Elevation) {
			n++
		}
	}
	return n
}

// missingTerrain returns the number of cells of g without an elevation.
func missingTerrain(g *grid.Grid, ts map[int]terrain.Attributes) int {
	var n int
	for _, c := range g.Cells {
		if a, ok := ts[c.ID]; !ok || math.IsNaN(a.Elevation) {
			n++
		}
	}
	return n
}
