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
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Affine is a raster geotransform in GDAL coefficient order: a pixel at
// column c and row r has its upper-left corner at
//  x = A[0] + c*A[1] + r*A[2]
//  y = A[3] + c*A[4] + r*A[5]
type Affine [6]float64

// Apply returns the map coordinates of the fractional pixel position
// (col, row).
func (a Affine) Apply(col, row float64) (x, y float64) {
	return a[0] + col*a[1] + row*a[2], a[3] + col*a[4] + row*a[5]
}

// Inverse returns the transform from map coordinates to fractional pixel
// positions.
func (a Affine) Inverse() (Affine, error) {
	det := a[1]*a[5] - a[2]*a[4]
	if det == 0 || math.IsNaN(det) {
		return Affine{}, fmt.Errorf("terrain: geotransform %v is not invertible", a)
	}
	i1, i2 := a[5]/det, -a[2]/det
	i4, i5 := -a[4]/det, a[1]/det
	return Affine{
		-a[0]*i1 - a[3]*i2, i1, i2,
		-a[0]*i4 - a[3]*i5, i4, i5,
	}, nil
}

// PixelSize returns the horizontal and vertical pixel resolution. Both are
// positive for a north-up raster.
func (a Affine) PixelSize() (resX, resY float64) {
	return a[1], -a[5]
}

// AffineFromBounds returns the north-up transform of a raster with the
// given number of columns and rows that exactly covers the box
// west, south, east, north.
func AffineFromBounds(west, south, east, north float64, cols, rows int) (Affine, error) {
	if cols <= 0 || rows <= 0 {
		return Affine{}, fmt.Errorf("terrain: raster size %dx%d must be positive", cols, rows)
	}
	if !(east > west) || !(north > south) {
		return Affine{}, fmt.Errorf("terrain: invalid bounds %g,%g,%g,%g", west, south, east, north)
	}
	return Affine{
		west, (east - west) / float64(cols), 0,
		north, 0, -(north - south) / float64(rows),
	}, nil
}

// ReadWorldFile reads an ESRI world file (.tfw). World files give the
// center of the upper-left pixel, which is converted to the corner.
func ReadWorldFile(path string) (Affine, error) {
	f, err := os.Open(path)
	if err != nil {
		return Affine{}, fmt.Errorf("terrain: %v", err)
	}
	defer f.Close()

	var v []float64
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		x, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return Affine{}, fmt.Errorf("terrain: world file %s: %v", path, err)
		}
		v = append(v, x)
	}
	if err := s.Err(); err != nil {
		return Affine{}, fmt.Errorf("terrain: world file %s: %v", path, err)
	}
	if len(v) != 6 {
		return Affine{}, fmt.Errorf("terrain: world file %s has %d values, want 6", path, len(v))
	}
	// Line order is A, D, B, E, C, F.
	a, d, b, e, c, fy := v[0], v[1], v[2], v[3], v[4], v[5]
	return Affine{
		c - a/2 - b/2, a, b,
		fy - d/2 - e/2, d, e,
	}, nil
}

// worldFileFor returns the world file that accompanies a raster, if one
// exists.
func worldFileFor(rasterPath string) (string, bool) {
	base := strings.TrimSuffix(rasterPath, filepath.Ext(rasterPath))
	for _, ext := range []string{".tfw", ".tifw", ".wld", ".TFW"} {
		if _, err := os.Stat(base + ext); err == nil {
			return base + ext, true
		}
	}
	return "", false
}
