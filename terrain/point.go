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

package terrain

import (
	"context"
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/grid"
	"github.com/sirupsen/logrus"
)

// An ElevationSource returns the elevation at each point, where X is
// longitude and Y is latitude. Missing elevations are NaN.
type ElevationSource interface {
	Elevations(ctx context.Context, pts []geom.Point) ([]float64, error)
}

// DefaultOffset is the distance in degrees between a cell centroid and
// each of its four neighbor samples.
const DefaultOffset = 0.1

// MetersPerDegree converts a difference per degree to a difference per
// meter. It is only accurate near the middle latitudes.
const MetersPerDegree = 111139

// PointSampler estimates terrain attributes from five point elevations
// around each cell centroid: the centroid itself and points Offset degrees
// to the north, south, east and west. The offset is angular, so the
// distance it spans shrinks toward the poles.
type PointSampler struct {
	Source ElevationSource

	// Offset is the neighbor distance in degrees. If zero,
	// DefaultOffset is used.
	Offset float64

	// Boundary, if not nil, limits sampling to cells whose centroids
	// are within it. Other cells are left out of the result.
	Boundary *grid.Boundary

	Log logrus.FieldLogger
}

func (s *PointSampler) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// Order of the five samples for each cell.
const (
	center = iota
	north
	south
	east
	west
	nSamples
)

// Sample requests the five elevations for every selected cell of g in one
// call to the source. A cell with any missing sample has all its
// attributes missing.
func (s *PointSampler) Sample(ctx context.Context, g *grid.Grid) (map[int]Attributes, error) {
	cells, err := s.selectCells(g)
	if err != nil {
		return nil, err
	}
	off := s.Offset
	if off == 0 {
		off = DefaultOffset
	}
	pts := make([]geom.Point, 0, len(cells)*nSamples)
	for _, c := range cells {
		lat, lon := c.Latitude, c.Longitude
		pts = append(pts,
			geom.Point{X: lon, Y: lat},
			geom.Point{X: lon, Y: lat + off},
			geom.Point{X: lon, Y: lat - off},
			geom.Point{X: lon + off, Y: lat},
			geom.Point{X: lon - off, Y: lat},
		)
	}
	elev, err := s.Source.Elevations(ctx, pts)
	if err != nil {
		return nil, fmt.Errorf("terrain: %v", err)
	}
	if len(elev) != len(pts) {
		return nil, fmt.Errorf("terrain: elevation source returned %d values for %d points", len(elev), len(pts))
	}

	out := make(map[int]Attributes, len(cells))
	var missing int
	for i, c := range cells {
		a := PointAttributes(elev[i*nSamples : (i+1)*nSamples])
		if math.IsNaN(a.Elevation) {
			missing++
		}
		out[c.ID] = a
	}
	if missing > 0 {
		s.log().WithFields(logrus.Fields{
			"cells":   len(cells),
			"missing": missing,
		}).Warn("terrain: some cells have no elevation")
	}
	return out, nil
}

// selectCells returns the cells to sample.
func (s *PointSampler) selectCells(g *grid.Grid) ([]*grid.Cell, error) {
	if s.Boundary == nil {
		return g.Cells, nil
	}
	b := s.Boundary
	if !b.Frame.Equal(g.Frame) {
		var err error
		if b, err = b.Reproject(g.Frame); err != nil {
			return nil, fmt.Errorf("terrain: %v", err)
		}
	}
	var cells []*grid.Cell
	for _, c := range g.Cells {
		if b.Contains(c.Centroid) {
			cells = append(cells, c)
		}
	}
	return cells, nil
}

// PointAttributes calculates the attributes from the center, north, south,
// east and west elevations, in that order. If any is missing, all
// attributes are missing.
func PointAttributes(e []float64) Attributes {
	for _, v := range e[:nSamples] {
		if math.IsNaN(v) {
			return Missing()
		}
	}
	dx := (e[east] - e[west]) / 2
	dy := (e[north] - e[south]) / 2
	return Attributes{
		Elevation: e[center],
		Slope:     math.Sqrt(dx*dx+dy*dy) / MetersPerDegree,
		Aspect:    normalizeDegrees(math.Atan2(dy, dx) * 180 / math.Pi),
	}
}
