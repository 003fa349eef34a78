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
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dheemanthrk/ForestFireDatasetGenerator/grid"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/spatial"
	"github.com/lnashier/viper"
	"github.com/spf13/cast"
)

// Terrain sources.
const (
	TerrainRaster = "raster"
	TerrainAPI    = "api"
	TerrainNone   = "none"
)

// Config holds the checked configuration of a run.
type Config struct {
	BoundaryFile      string
	BoundaryNameField string
	BoundaryName      string
	BoundaryFrame     *spatial.Frame

	GridFrame     spatial.Frame
	GridSize      float64
	GridPolicy    grid.Policy
	GridShapefile string
	GridFile      string

	ClimateFile string
	FireFile    string

	TerrainSource string
	DEM           string

	// DEMBounds holds west, south, east and north, or is nil.
	DEMBounds      []float64
	DEMFrame       spatial.Frame
	NoData         float64
	WithinBoundary bool

	ElevationURL       string
	ElevationKey       string
	ElevationBatchSize int
	ElevationDelay     time.Duration

	OutputFile   string
	CacheDir     string
	ManifestFile string
	MetricsFile  string
}

// LoadConfig reads and checks the run configuration in cfg. Environment
// variables in paths are expanded.
func LoadConfig(cfg *viper.Viper) (*Config, error) {
	c := &Config{
		BoundaryFile:       os.ExpandEnv(cfg.GetString("Boundary.File")),
		BoundaryNameField:  cfg.GetString("Boundary.NameField"),
		BoundaryName:       cfg.GetString("Boundary.Name"),
		GridSize:           cfg.GetFloat64("Grid.Size"),
		GridShapefile:      os.ExpandEnv(cfg.GetString("Grid.Shapefile")),
		GridFile:           os.ExpandEnv(cfg.GetString("Grid.File")),
		ClimateFile:        os.ExpandEnv(cfg.GetString("Climate.File")),
		FireFile:           os.ExpandEnv(cfg.GetString("Fire.File")),
		TerrainSource:      strings.ToLower(strings.TrimSpace(cfg.GetString("Terrain.Source"))),
		DEM:                os.ExpandEnv(cfg.GetString("Terrain.DEM")),
		WithinBoundary:     cfg.GetBool("Terrain.WithinBoundary"),
		ElevationURL:       os.ExpandEnv(cfg.GetString("Elevation.URL")),
		ElevationKey:       os.ExpandEnv(cfg.GetString("Elevation.Key")),
		ElevationBatchSize: cfg.GetInt("Elevation.BatchSize"),
		OutputFile:         os.ExpandEnv(cfg.GetString("OutputFile")),
		CacheDir:           os.ExpandEnv(cfg.GetString("CacheDir")),
		ManifestFile:       os.ExpandEnv(cfg.GetString("ManifestFile")),
		MetricsFile:        os.ExpandEnv(cfg.GetString("MetricsFile")),
	}
	if c.BoundaryFile == "" {
		return nil, fmt.Errorf("firegrid: Boundary.File must be specified")
	}

	var err error
	if p := cfg.GetString("Boundary.Proj"); p != "" {
		f, err := spatial.NewFrame("boundary", os.ExpandEnv(p))
		if err != nil {
			return nil, fmt.Errorf("firegrid: Boundary.Proj: %v", err)
		}
		c.BoundaryFrame = &f
	}
	if c.GridFrame, err = spatial.NewFrame("grid", os.ExpandEnv(cfg.GetString("Grid.Proj"))); err != nil {
		return nil, fmt.Errorf("firegrid: Grid.Proj: %v", err)
	}
	if !(c.GridSize > 0) {
		return nil, fmt.Errorf("firegrid: %w: Grid.Size must be positive; got %g", grid.ErrInvalidConfiguration, c.GridSize)
	}
	if c.GridPolicy, err = grid.ParsePolicy(cfg.GetString("Grid.Policy")); err != nil {
		return nil, fmt.Errorf("firegrid: Grid.Policy: %w", err)
	}

	switch c.TerrainSource {
	case TerrainRaster, TerrainAPI, TerrainNone:
	case "":
		c.TerrainSource = TerrainNone
	default:
		return nil, fmt.Errorf("firegrid: invalid Terrain.Source %q; it must be raster, api or none", c.TerrainSource)
	}
	if c.DEMFrame, err = spatial.NewFrame("dem", os.ExpandEnv(cfg.GetString("Terrain.DEMProj"))); err != nil {
		return nil, fmt.Errorf("firegrid: Terrain.DEMProj: %v", err)
	}
	if c.DEMBounds, err = toFloatSliceE(cfg.Get("Terrain.DEMBounds")); err != nil {
		return nil, fmt.Errorf("firegrid: Terrain.DEMBounds: %v", err)
	}
	if len(c.DEMBounds) != 0 && len(c.DEMBounds) != 4 {
		return nil, fmt.Errorf("firegrid: Terrain.DEMBounds must have 4 values; it has %d", len(c.DEMBounds))
	}
	c.NoData = math.NaN()
	if s := strings.TrimSpace(cfg.GetString("Terrain.NoData")); s != "" {
		if c.NoData, err = cast.ToFloat64E(s); err != nil {
			return nil, fmt.Errorf("firegrid: Terrain.NoData: %v", err)
		}
	}
	if c.ElevationDelay, err = cast.ToDurationE(cfg.Get("Elevation.Delay")); err != nil {
		return nil, fmt.Errorf("firegrid: Elevation.Delay: %v", err)
	}

	if c.OutputFile != "" {
		if _, err := os.Stat(filepath.Dir(c.OutputFile)); err != nil {
			return nil, fmt.Errorf("firegrid: the OutputFile directory doesn't exist: %v", err)
		}
	}
	return c, nil
}

// toFloatSliceE converts a list of numbers given in a configuration file
// or as command-line strings. Empty entries are ignored.
func toFloatSliceE(s interface{}) ([]float64, error) {
	var v []interface{}
	switch t := s.(type) {
	case nil:
		return nil, nil
	case string:
		for _, x := range strings.Split(strings.Trim(t, "[] "), ",") {
			v = append(v, x)
		}
	case []interface{}:
		v = t
	default:
		ss, err := cast.ToStringSliceE(s)
		if err != nil {
			return nil, err
		}
		for _, x := range ss {
			v = append(v, x)
		}
	}
	var o []float64
	for _, val := range v {
		if str, ok := val.(string); ok {
			str = strings.Trim(str, "[] ")
			if str == "" {
				continue
			}
			val = str
		}
		f, err := cast.ToFloat64E(val)
		if err != nil {
			return nil, err
		}
		o = append(o, f)
	}
	return o, nil
}
