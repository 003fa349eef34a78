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
	"image"
	"image/color"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/geom"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/grid"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/spatial"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/mat"
)

func similar(a, b, tol float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= tol
}

func TestAffineInverse(t *testing.T) {
	a := Affine{1000, 30, 0, 2000, 0, -30}
	inv, err := a.Inverse()
	if err != nil {
		t.Fatal(err)
	}
	x, y := a.Apply(2.5, 7.25)
	c, r := inv.Apply(x, y)
	if !similar(c, 2.5, 1e-9) || !similar(r, 7.25, 1e-9) {
		t.Errorf("round trip gave (%g, %g)", c, r)
	}
	if _, err := (Affine{0, 0, 0, 0, 0, 0}).Inverse(); err == nil {
		t.Error("expected an error for a singular transform")
	}
}

func TestAffineFromBounds(t *testing.T) {
	a, err := AffineFromBounds(-139, 48, -114, 60, 250, 120)
	if err != nil {
		t.Fatal(err)
	}
	want := Affine{-139, 0.1, 0, 60, 0, -0.1}
	for i := range a {
		if !similar(a[i], want[i], 1e-12) {
			t.Fatalf("have %v, want %v", a, want)
		}
	}
	if _, err := AffineFromBounds(0, 0, -1, 1, 10, 10); err == nil {
		t.Error("expected an error for inverted bounds")
	}
	if _, err := AffineFromBounds(0, 0, 1, 1, 0, 10); err == nil {
		t.Error("expected an error for zero columns")
	}
}

func TestReadWorldFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dem.tfw")
	if err := ioutil.WriteFile(path, []byte("30\n0\n0\n-30\n1015\n1985\n"), 0644); err != nil {
		t.Fatal(err)
	}
	a, err := ReadWorldFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if a != (Affine{1000, 30, 0, 2000, 0, -30}) {
		t.Errorf("have %v", a)
	}
	if err := ioutil.WriteFile(path, []byte("30\n0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadWorldFile(path); err == nil {
		t.Error("expected an error for a short world file")
	}
}

func rampRaster(alongCols bool) *Raster {
	d := mat.NewDense(3, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			if alongCols {
				d.Set(i, j, float64(j)*10)
			} else {
				d.Set(i, j, float64(i)*10)
			}
		}
	}
	return &Raster{Data: d, Transform: Affine{0, 10, 0, 30, 0, -10}}
}

func TestDeriveAspectConvention(t *testing.T) {
	slope, aspect := Derive(rampRaster(true))
	rows, cols := slope.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if !similar(slope.At(i, j), 45, 1e-9) {
				t.Errorf("slope(%d, %d) = %g, want 45", i, j, slope.At(i, j))
			}
			if !similar(aspect.At(i, j), 0, 1e-9) {
				t.Errorf("aspect(%d, %d) = %g, want 0", i, j, aspect.At(i, j))
			}
		}
	}

	_, aspect = Derive(rampRaster(false))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if !similar(aspect.At(i, j), 270, 1e-9) {
				t.Errorf("aspect(%d, %d) = %g, want 270", i, j, aspect.At(i, j))
			}
		}
	}
}

func TestDeriveAspectRange(t *testing.T) {
	d := mat.NewDense(5, 5, []float64{
		3, 1, 4, 1, 5,
		9, 2, 6, 5, 3,
		5, 8, 9, 7, 9,
		3, 2, 3, 8, 4,
		6, 2, 6, 4, 3,
	})
	_, aspect := Derive(&Raster{Data: d, Transform: Affine{0, 1, 0, 0, 0, -1}})
	for _, v := range aspect.RawMatrix().Data {
		if !(v >= 0 && v < 360) {
			t.Errorf("aspect %g out of [0, 360)", v)
		}
	}
}

func TestDeriveNaN(t *testing.T) {
	r := rampRaster(true)
	r.Data.Set(1, 1, math.NaN())
	slope, _ := Derive(r)
	if !math.IsNaN(slope.At(1, 0)) || !math.IsNaN(slope.At(1, 2)) {
		t.Error("missing elevation should make neighboring slopes missing")
	}
	if math.IsNaN(slope.At(0, 3)) {
		t.Error("distant slope should not be missing")
	}
}

func writeGeoTIFF(t *testing.T, dir string) string {
	img := image.NewGray16(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(100 + 10*x + 100*y)})
		}
	}
	img.SetGray16(3, 2, color.Gray16{Y: 0})
	path := filepath.Join(dir, "dem.tif")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := tiff.Encode(f, img, nil); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadGeoTIFF(t *testing.T) {
	dir := t.TempDir()
	path := writeGeoTIFF(t, dir)
	if _, err := ReadGeoTIFF(path, nil, math.NaN()); err == nil {
		t.Error("expected an error without a world file or bounds")
	}
	if err := ioutil.WriteFile(filepath.Join(dir, "dem.tfw"), []byte("10\n0\n0\n-10\n5\n25\n"), 0644); err != nil {
		t.Fatal(err)
	}
	r, err := ReadGeoTIFF(path, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if rows, cols := r.Data.Dims(); rows != 3 || cols != 4 {
		t.Fatalf("dims %dx%d", rows, cols)
	}
	if r.Data.At(1, 2) != 220 {
		t.Errorf("pixel (1, 2) = %g", r.Data.At(1, 2))
	}
	if !math.IsNaN(r.Data.At(2, 3)) || !r.HasNoData {
		t.Error("nodata pixel should be NaN")
	}
	if r.Transform != (Affine{0, 10, 0, 30, 0, -10}) {
		t.Errorf("transform %v", r.Transform)
	}

	cols, rows, err := GeoTIFFSize(path)
	if err != nil {
		t.Fatal(err)
	}
	if cols != 4 || rows != 3 {
		t.Errorf("size %dx%d", cols, rows)
	}
	bounds, err := AffineFromBounds(0, 0, 40, 30, cols, rows)
	if err != nil {
		t.Fatal(err)
	}
	r, err = ReadGeoTIFF(path, &bounds, math.NaN())
	if err != nil {
		t.Fatal(err)
	}
	if r.HasNoData || r.Data.At(2, 3) != 0 {
		t.Error("without nodata every pixel should be kept")
	}
}

func testFrame(t *testing.T) spatial.Frame {
	f, err := spatial.NewFrame("BC Albers", spatial.BCAlbersProj)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestRasterSampler(t *testing.T) {
	frame := testFrame(t)
	s, err := NewRasterSampler(rampRaster(true), frame)
	if err != nil {
		t.Fatal(err)
	}
	g := &grid.Grid{Frame: frame, Cells: []*grid.Cell{
		{ID: 1, Centroid: geom.Point{X: 25, Y: 15}},
		{ID: 2, Centroid: geom.Point{X: 29.999, Y: 0.001}},
		{ID: 3, Centroid: geom.Point{X: 45, Y: 15}},
		{ID: 4, Centroid: geom.Point{X: 5, Y: -1}},
	}}
	attrs, err := s.Sample(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	if len(attrs) != 4 {
		t.Fatalf("have %d cells", len(attrs))
	}
	if a := attrs[1]; a.Elevation != 20 || !similar(a.Slope, 45, 1e-9) || !similar(a.Aspect, 0, 1e-9) {
		t.Errorf("cell 1: %+v", a)
	}
	if a := attrs[2]; a.Elevation != 20 {
		t.Errorf("cell 2 should be in the pixel below and left of it: %+v", a)
	}
	for _, id := range []int{3, 4} {
		a := attrs[id]
		if !math.IsNaN(a.Elevation) || !math.IsNaN(a.Slope) || !math.IsNaN(a.Aspect) {
			t.Errorf("cell %d outside the raster should be missing: %+v", id, a)
		}
	}
}

// fakeSource returns an elevation for each point from a function of its
// coordinates.
type fakeSource struct {
	f     func(p geom.Point) float64
	calls int
}

func (s *fakeSource) Elevations(_ context.Context, pts []geom.Point) ([]float64, error) {
	s.calls++
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = s.f(p)
	}
	return out, nil
}

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

func TestPointAttributes(t *testing.T) {
	a := PointAttributes([]float64{100, 100, 100, 120, 80})
	if a.Elevation != 100 || !similar(a.Slope, 20.0/MetersPerDegree, 1e-15) || !similar(a.Aspect, 0, 1e-12) {
		t.Errorf("east rising: %+v", a)
	}
	a = PointAttributes([]float64{100, 120, 80, 100, 100})
	if !similar(a.Aspect, 90, 1e-12) {
		t.Errorf("north rising: aspect %g", a.Aspect)
	}
	a = PointAttributes([]float64{100, 80, 120, 100, 100})
	if !similar(a.Aspect, 270, 1e-12) {
		t.Errorf("south rising: aspect %g", a.Aspect)
	}
	a = PointAttributes([]float64{100, 100, 100, 80, 120})
	if !similar(a.Aspect, 180, 1e-12) {
		t.Errorf("east falling: aspect %g", a.Aspect)
	}
	a = PointAttributes([]float64{100, 100, 100, 100, 100})
	if a.Slope != 0 || a.Aspect != 0 || math.Signbit(a.Aspect) {
		t.Errorf("flat: %+v", a)
	}
}

func TestPointSamplerMissingNeighbor(t *testing.T) {
	g := &grid.Grid{Frame: testFrame(t), Cells: []*grid.Cell{
		{ID: 1, Latitude: 50, Longitude: -120},
		{ID: 2, Latitude: 55, Longitude: -125},
	}}
	src := &fakeSource{f: func(p geom.Point) float64 {
		if p.X == -120 && similar(p.Y, 50.1, 1e-9) {
			return math.NaN() // north of cell 1
		}
		return 1000 + (p.X+125)*100
	}}
	s := &PointSampler{Source: src, Log: quietLog()}
	attrs, err := s.Sample(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	if src.calls != 1 {
		t.Errorf("source called %d times, want 1", src.calls)
	}
	a := attrs[1]
	if !math.IsNaN(a.Elevation) || !math.IsNaN(a.Slope) || !math.IsNaN(a.Aspect) {
		t.Errorf("cell 1 should be missing: %+v", a)
	}
	b := attrs[2]
	if !similar(b.Elevation, 1000, 1e-9) || !similar(b.Aspect, 0, 1e-9) ||
		!similar(b.Slope, 10.0/MetersPerDegree, 1e-12) {
		t.Errorf("cell 2: %+v", b)
	}
}

func TestPointSamplerBoundary(t *testing.T) {
	frame := testFrame(t)
	b := &grid.Boundary{
		Parts: geom.MultiPolygon{{{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}, {X: 0, Y: 0}}}},
		Frame: frame,
	}
	g := &grid.Grid{Frame: frame, Cells: []*grid.Cell{
		{ID: 1, Centroid: geom.Point{X: 5, Y: 5}, Latitude: 45, Longitude: -126},
		{ID: 2, Centroid: geom.Point{X: 15, Y: 5}, Latitude: 45, Longitude: -125.9},
	}}
	src := &fakeSource{f: func(geom.Point) float64 { return 10 }}
	attrs, err := (&PointSampler{Source: src, Boundary: b, Log: quietLog()}).Sample(context.Background(), g)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := attrs[2]; ok || len(attrs) != 1 {
		t.Errorf("only cell 1 should be sampled: %v", attrs)
	}
	if attrs[1].Elevation != 10 {
		t.Errorf("cell 1: %+v", attrs[1])
	}
}
