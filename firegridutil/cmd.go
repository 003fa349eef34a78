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
	"io"
	"os"
	"strings"

	"github.com/dheemanthrk/ForestFireDatasetGenerator/elevation"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/spatial"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version is the version of the dataset generator.
const Version = "0.3.0"

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to firegrid.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Boundary.File",
			usage: `
              Boundary.File is the path to the region boundary, either an
              ESRI shapefile (.shp) or a GeoJSON file. It can contain
              environment variables.`,
			shorthand:  "b",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "Boundary.NameField",
			usage: `
              Boundary.NameField is the boundary attribute holding the
              region name.`,
			defaultVal: "PRNAME",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "Boundary.Name",
			usage: `
              Boundary.Name, if set, selects the boundary features whose
              region name matches it, for example "British Columbia".`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "Boundary.Proj",
			usage: `
              Boundary.Proj overrides the spatial reference of the boundary
              file, in Proj4 or WKT format. Shapefiles otherwise use their
              .prj file and GeoJSON files are assumed to be in longitude
              and latitude.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "Grid.Proj",
			usage: `
              Grid.Proj is the projected spatial reference, in Proj4 format,
              in which the grid is built. Its units must be meters. The
              default is BC Albers (EPSG:3005).`,
			defaultVal: spatial.BCAlbersProj,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "Grid.Size",
			usage: `
              Grid.Size is the edge length of the grid cells in meters.`,
			shorthand:  "s",
			defaultVal: 10000.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "Grid.Policy",
			usage: `
              Grid.Policy chooses which cells are kept: "intersection" keeps
              every cell that overlaps the boundary, clipped to it, and
              "containment" keeps only the cells entirely within it.`,
			defaultVal: "intersection",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "Grid.Shapefile",
			usage: `
              Grid.Shapefile, if set, is the path where the grid is saved as
              a shapefile. It is required by the grid command.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gridCmd.Flags()},
		},
		{
			name: "Grid.File",
			usage: `
              Grid.File, if set, is a grid shapefile saved by an earlier run
              or by the grid command. It is used instead of creating a new
              grid.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Climate.File",
			usage: `
              Climate.File is the path to the climate reanalysis data, either
              a NetCDF file (.nc) with ERA5 variables or a CSV file with the
              same column names.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Fire.File",
			usage: `
              Fire.File is the path to the fire history point table in CSV
              format. If empty, no fires are recorded.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Terrain.Source",
			usage: `
              Terrain.Source is where elevation, slope and aspect come from:
              "raster" for a digital elevation model file, "api" for the
              remote elevation service, or "none".`,
			defaultVal: "raster",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Terrain.DEM",
			usage: `
              Terrain.DEM is the path to the single-band GeoTIFF elevation
              model used by the raster terrain source.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Terrain.DEMBounds",
			usage: `
              Terrain.DEMBounds gives the west, south, east and north edges
              of the elevation model when it has no world file.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Terrain.DEMProj",
			usage: `
              Terrain.DEMProj is the spatial reference of the elevation
              model coordinates, in Proj4 format.`,
			defaultVal: spatial.GeographicProj,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Terrain.NoData",
			usage: `
              Terrain.NoData is the elevation model value that marks missing
              pixels. If empty, every pixel is valid.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Terrain.WithinBoundary",
			usage: `
              Terrain.WithinBoundary limits the api terrain source to the
              cells whose centers are within the boundary.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Elevation.URL",
			usage: `
              Elevation.URL is the endpoint of the elevation service.`,
			defaultVal: elevation.DefaultURL,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Elevation.Key",
			usage: `
              Elevation.Key is the elevation service API key. It is best set
              with the FIREGRID_ELEVATION_KEY environment variable.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Elevation.BatchSize",
			usage: `
              Elevation.BatchSize is the number of locations per elevation
              service request.`,
			defaultVal: elevation.DefaultBatchSize,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Elevation.Delay",
			usage: `
              Elevation.Delay is the pause between elevation service
              requests, for example "1s" or "500ms".`,
			defaultVal: elevation.DefaultDelay.String(),
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path of the output table. Files ending in
              .xlsx are written as spreadsheets and all others as CSV.`,
			shorthand:  "o",
			defaultVal: "fire_dataset.csv",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "CacheDir",
			usage: `
              CacheDir, if set, is a directory where the results of the
              climate, fire and terrain stages are stored so that later
              runs with the same inputs can reuse them.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ManifestFile",
			usage: `
              ManifestFile, if set, is where a TOML record of the run inputs,
              options and results is written.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MetricsFile",
			usage: `
              MetricsFile, if set, is where run metrics are written in the
              Prometheus text format.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages: debug, info,
              warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile, if set, is a file that log messages are also written
              to.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("FIREGRID")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(gridCmd)
}

// logFile is the currently open log file, if any.
var logFile *os.File

// setConfig finds and reads in the configuration file, if there is one,
// and sets up logging.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("firegrid: problem reading configuration file: %v", err)
		}
	}
	return setLogging(Cfg.GetString("LogLevel"), os.ExpandEnv(Cfg.GetString("LogFile")))
}

// setLogging sets the level of the standard logger and, if path is not
// empty, copies its output to the file at path.
func setLogging(level, path string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("firegrid: invalid LogLevel: %v", err)
	}
	logrus.SetLevel(lvl)
	if logFile != nil {
		logFile.Close()
		logFile = nil
		logrus.SetOutput(os.Stderr)
	}
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("firegrid: opening log file: %v", err)
	}
	logFile = f
	logrus.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "firegrid",
	Short: "A gridded wildfire dataset generator.",
	Long: `firegrid builds a table of daily climate, terrain and historical fire
occurrence for each cell of a regular grid covering a region.
Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'FIREGRID_var' where 'var' is the
name of the variable to be set, with '.' replaced by '_' (for example
FIREGRID_ELEVATION_KEY). Paths can contain environment variables.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of firegrid.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("firegrid v%s\n", Version)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that creates the dataset.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Create the dataset.",
	Long: `run builds the grid, assigns the climate and fire observations to its
cells, samples the terrain of each cell and writes the combined table to
OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(Cfg)
		if err != nil {
			return err
		}
		_, err = Run(context.Background(), cfg)
		return err
	},
	DisableAutoGenTag: true,
}

// gridCmd is a command that creates and saves the grid.
var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Create the grid and save it as a shapefile.",
	Long: `grid builds the grid for the configured boundary and saves it to
Grid.Shapefile without processing any other data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(Cfg)
		if err != nil {
			return err
		}
		if cfg.GridShapefile == "" {
			return fmt.Errorf("firegrid: the grid command requires Grid.Shapefile")
		}
		_, err = BuildGrid(cfg, logrus.StandardLogger())
		return err
	},
	DisableAutoGenTag: true,
}
