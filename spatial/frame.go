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

// Package spatial holds the reference frames, immutable geometry layers and
// the point-to-cell joiner used to move observations onto the grid.
package spatial

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// GeographicProj is the WGS84 longitude-latitude frame that climate and
// fire records arrive in.
const GeographicProj = "+proj=longlat +ellps=WGS84 +datum=WGS84 +no_defs"

// BCAlbersProj is the British Columbia Albers equal area projection
// (EPSG:3005), the default metric frame for grid construction.
const BCAlbersProj = "+proj=aea +lat_1=50 +lat_2=58.5 +lat_0=45 +lon_0=-126 +x_0=1000000 +y_0=0 +ellps=GRS80 +units=m +no_defs"

// ErrFrameMismatch is returned when two datasets that must share a
// reference frame do not.
var ErrFrameMismatch = errors.New("spatial: reference frame mismatch")

// Frame is a named spatial reference.
type Frame struct {
	Name string
	Def  string
	SR   *proj.SR
}

// NewFrame parses def, which may be in Proj4 or WKT format.
func NewFrame(name, def string) (Frame, error) {
	sr, err := proj.Parse(def)
	if err != nil {
		return Frame{}, fmt.Errorf("spatial: parsing frame %s: %v", name, err)
	}
	return Frame{Name: name, Def: strings.TrimSpace(def), SR: sr}, nil
}

// Geographic returns the WGS84 longitude-latitude frame.
func Geographic() Frame {
	f, err := NewFrame("geographic", GeographicProj)
	if err != nil {
		panic(err)
	}
	return f
}

// Equal returns whether f and f2 describe the same spatial reference.
func (f Frame) Equal(f2 Frame) bool {
	if f.SR == nil || f2.SR == nil {
		return f.SR == f2.SR
	}
	if f.Def == f2.Def {
		return true
	}
	return f.SR.Equal(f2.SR, 3)
}

func (f Frame) String() string {
	if f.Name != "" {
		return f.Name
	}
	return f.Def
}

// transformer creates a new transform from f to dest. Transformers are
// not shared between operations.
func (f Frame) transformer(dest Frame) (proj.Transformer, error) {
	if f.SR == nil || dest.SR == nil {
		return nil, fmt.Errorf("spatial: transform from %s to %s: missing spatial reference", f, dest)
	}
	t, err := f.SR.NewTransform(dest.SR)
	if err != nil {
		return nil, fmt.Errorf("spatial: transform from %s to %s: %v", f, dest, err)
	}
	return t, nil
}

// TransformPoint reprojects p from frame from to frame to.
func TransformPoint(from, to Frame, p geom.Point) (geom.Point, error) {
	t, err := from.transformer(to)
	if err != nil {
		return geom.Point{}, err
	}
	x, y, err := t(p.X, p.Y)
	if err != nil {
		return geom.Point{}, fmt.Errorf("spatial: transforming point (%g, %g): %v", p.X, p.Y, err)
	}
	return geom.Point{X: x, Y: y}, nil
}
