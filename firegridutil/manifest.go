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
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Manifest is a record of one run: what went in, the options used and
// what came out.
type Manifest struct {
	Version  string
	Start    time.Time
	Duration string

	Inputs  ManifestInputs
	Options ManifestOptions
	Counts  ManifestCounts
}

// ManifestInputs lists the input files of a run.
type ManifestInputs struct {
	Boundary string
	Grid     string
	Climate  string
	Fire     string
	DEM      string
}

// ManifestOptions lists the options that change the output of a run.
type ManifestOptions struct {
	BoundaryName  string
	GridProj      string
	GridSize      float64
	GridPolicy    string
	TerrainSource string
	DEMBounds     string
	OutputFile    string
	CacheDir      string
}

// ManifestCounts holds the sizes of the run results.
type ManifestCounts struct {
	Cells            int
	ClimateSummaries int
	FireSummaries    int
	FireDays         int
	Rows             int
	MissingTerrain   int
	CacheHits        int
	CacheMisses      int
}

func newManifest(cfg *Config, start time.Time) *Manifest {
	bounds := make([]string, len(cfg.DEMBounds))
	for i, b := range cfg.DEMBounds {
		bounds[i] = strconv.FormatFloat(b, 'g', -1, 64)
	}
	return &Manifest{
		Version: Version,
		Start:   start.UTC(),
		Inputs: ManifestInputs{
			Boundary: cfg.BoundaryFile,
			Grid:     cfg.GridFile,
			Climate:  cfg.ClimateFile,
			Fire:     cfg.FireFile,
			DEM:      cfg.DEM,
		},
		Options: ManifestOptions{
			BoundaryName:  cfg.BoundaryName,
			GridProj:      cfg.GridFrame.Def,
			GridSize:      cfg.GridSize,
			GridPolicy:    cfg.GridPolicy.String(),
			TerrainSource: cfg.TerrainSource,
			DEMBounds:     strings.Join(bounds, ","),
			OutputFile:    cfg.OutputFile,
			CacheDir:      cfg.CacheDir,
		},
	}
}

// Write saves m to path in TOML format.
func (m *Manifest) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("firegrid: writing manifest: %v", err)
	}
	if err := toml.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return fmt.Errorf("firegrid: writing manifest: %v", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("firegrid: writing manifest: %v", err)
	}
	return nil
}

// ReadManifest reads a manifest written by Write.
func ReadManifest(path string) (*Manifest, error) {
	m := new(Manifest)
	if _, err := toml.DecodeFile(path, m); err != nil {
		return nil, fmt.Errorf("firegrid: reading manifest: %v", err)
	}
	return m, nil
}
