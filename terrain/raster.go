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
	"image"
	"math"
	"os"

	"github.com/dheemanthrk/ForestFireDatasetGenerator/grid"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/spatial"
	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/mat"
)

// Raster is a single-band elevation raster. Data is indexed (row, col)
// with row 0 at the top.
type Raster struct {
	Data      *mat.Dense
	Transform Affine

	// NoData is the value that marks missing pixels in the source
	// file. It has already been replaced by NaN in Data.
	NoData    float64
	HasNoData bool
}

// ReadGeoTIFF reads band 1 of the GeoTIFF at path. If transform is nil,
// the geotransform is read from the world file next to the raster. Pixels
// equal to nodata become NaN; pass NaN for no nodata value.
func ReadGeoTIFF(path string, transform *Affine, nodata float64) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("terrain: %v", err)
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("terrain: decoding %s: %v", path, err)
	}

	r := &Raster{NoData: nodata, HasNoData: !math.IsNaN(nodata)}
	if transform != nil {
		r.Transform = *transform
	} else {
		wf, ok := worldFileFor(path)
		if !ok {
			return nil, fmt.Errorf("terrain: %s has no world file and no bounds were given", path)
		}
		if r.Transform, err = ReadWorldFile(wf); err != nil {
			return nil, err
		}
	}
	if r.Data, err = bandData(img); err != nil {
		return nil, fmt.Errorf("terrain: %s: %v", path, err)
	}
	if r.HasNoData {
		rows, cols := r.Data.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				if r.Data.At(i, j) == nodata {
					r.Data.Set(i, j, math.NaN())
				}
			}
		}
	}
	return r, nil
}

// GeoTIFFSize returns the number of columns and rows of the GeoTIFF at
// path without reading its pixels.
func GeoTIFFSize(path string) (cols, rows int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("terrain: %v", err)
	}
	defer f.Close()
	c, err := tiff.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("terrain: decoding %s: %v", path, err)
	}
	return c.Width, c.Height, nil
}

// bandData copies the pixel values of a grayscale image into a matrix.
func bandData(img image.Image) (*mat.Dense, error) {
	b := img.Bounds()
	rows, cols := b.Dy(), b.Dx()
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("raster is empty")
	}
	data := mat.NewDense(rows, cols, nil)
	switch m := img.(type) {
	case *image.Gray16:
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				data.Set(i, j, float64(m.Gray16At(b.Min.X+j, b.Min.Y+i).Y))
			}
		}
	case *image.Gray:
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				data.Set(i, j, float64(m.GrayAt(b.Min.X+j, b.Min.Y+i).Y))
			}
		}
	default:
		return nil, fmt.Errorf("unsupported pixel type %T; want a single-band grayscale raster", img)
	}
	return data, nil
}

// Derive calculates slope and aspect rasters from r with central
// differences in the interior and one-sided differences at the edges.
// The row gradient uses the horizontal pixel size as its spacing and the
// column gradient uses the vertical pixel size. Slope is
// atan(|gradient|) in degrees and aspect is atan2(-gx, gy) in degrees in
// [0, 360), so a surface rising toward higher columns has aspect 0 and
// one rising toward higher rows has aspect 270.
func Derive(r *Raster) (slope, aspect *mat.Dense) {
	resX, resY := r.Transform.PixelSize()
	gx := gradient(r.Data, resX, true)
	gy := gradient(r.Data, resY, false)
	rows, cols := r.Data.Dims()
	slope = mat.NewDense(rows, cols, nil)
	aspect = mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			x, y := gx.At(i, j), gy.At(i, j)
			slope.Set(i, j, math.Atan(math.Hypot(x, y))*180/math.Pi)
			a := math.Atan2(-x, y) * 180 / math.Pi
			if !math.IsNaN(a) {
				a = normalizeDegrees(a)
			}
			aspect.Set(i, j, a)
		}
	}
	return slope, aspect
}

// gradient returns the finite-difference derivative of d along rows
// (alongRows) or columns with spacing h. An axis with a single pixel has
// no derivative.
func gradient(d *mat.Dense, h float64, alongRows bool) *mat.Dense {
	rows, cols := d.Dims()
	out := mat.NewDense(rows, cols, nil)
	n := cols
	at := func(i, k int) float64 { return d.At(i, k) }
	set := func(i, k int, v float64) { out.Set(i, k, v) }
	lines := rows
	if alongRows {
		n, lines = rows, cols
		at = func(j, k int) float64 { return d.At(k, j) }
		set = func(j, k int, v float64) { out.Set(k, j, v) }
	}
	for l := 0; l < lines; l++ {
		if n < 2 {
			set(l, 0, math.NaN())
			continue
		}
		set(l, 0, (at(l, 1)-at(l, 0))/h)
		set(l, n-1, (at(l, n-1)-at(l, n-2))/h)
		for k := 1; k < n-1; k++ {
			set(l, k, (at(l, k+1)-at(l, k-1))/(2*h))
		}
	}
	return out
}

// RasterSampler samples a raster and its derived slope and aspect at the
// pixel that contains each cell centroid.
type RasterSampler struct {
	Raster *Raster

	// Frame is the reference frame of the raster's map coordinates.
	Frame spatial.Frame

	slope, aspect *mat.Dense
	inverse       Affine
}

// NewRasterSampler derives slope and aspect from r, whose map coordinates
// are in frame.
func NewRasterSampler(r *Raster, frame spatial.Frame) (*RasterSampler, error) {
	inv, err := r.Transform.Inverse()
	if err != nil {
		return nil, err
	}
	s := &RasterSampler{Raster: r, Frame: frame, inverse: inv}
	s.slope, s.aspect = Derive(r)
	return s, nil
}

// At returns the terrain attributes of the pixel containing the point
// (x, y) in the raster frame. Points outside the raster are missing.
func (s *RasterSampler) At(x, y float64) Attributes {
	c, r := s.inverse.Apply(x, y)
	col, row := int(math.Floor(c)), int(math.Floor(r))
	rows, cols := s.Raster.Data.Dims()
	if math.IsNaN(c) || math.IsNaN(r) || row < 0 || row >= rows || col < 0 || col >= cols {
		return Missing()
	}
	return Attributes{
		Elevation: s.Raster.Data.At(row, col),
		Slope:     s.slope.At(row, col),
		Aspect:    s.aspect.At(row, col),
	}
}

// Sample returns the attributes at the centroid of every cell of g.
// Cells whose centroids fall outside the raster are missing.
func (s *RasterSampler) Sample(ctx context.Context, g *grid.Grid) (map[int]Attributes, error) {
	pts, err := g.CentroidLayer().Reproject(s.Frame)
	if err != nil {
		return nil, fmt.Errorf("terrain: %v", err)
	}
	out := make(map[int]Attributes, len(g.Cells))
	for i, c := range g.Cells {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := pts.Point(i)
		out[c.ID] = s.At(p.X, p.Y)
	}
	return out, nil
}
