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

// Package terrain derives per-cell elevation, slope and aspect, either from
// a digital elevation model raster or from a remote point elevation
// service.
package terrain

import (
	"context"
	"math"

	"github.com/dheemanthrk/ForestFireDatasetGenerator/grid"
)

// Attributes are the terrain attributes of one grid cell. Missing values
// are NaN.
type Attributes struct {
	// Elevation is in meters.
	Elevation float64

	Slope float64

	// Aspect is the direction in which the surface rises, in degrees
	// counterclockwise from east, in [0, 360): 0 rises to the east, 90
	// to the north, 180 to the west and 270 to the south.
	Aspect float64
}

// Missing returns attributes with every value missing.
func Missing() Attributes {
	return Attributes{Elevation: math.NaN(), Slope: math.NaN(), Aspect: math.NaN()}
}

// A Sampler calculates terrain attributes for the cells of a grid. The
// result is keyed by cell ID; cells without a value may be absent.
type Sampler interface {
	Sample(ctx context.Context, g *grid.Grid) (map[int]Attributes, error)
}

// normalizeDegrees maps an angle in degrees into [0, 360).
func normalizeDegrees(d float64) float64 {
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d -= 360
	}
	if d == 0 {
		return 0 // not -0
	}
	return d
}
