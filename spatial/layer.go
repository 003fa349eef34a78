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

package spatial

import (
	"fmt"

	"github.com/ctessum/geom"
)

// Layer is an immutable set of geometries that share one reference frame.
// Each geometry slot holds the single current representation of a feature;
// operations that change the representation or the frame return a new
// Layer.
type Layer struct {
	frame Frame
	geoms []geom.Geom
}

// NewLayer creates a layer of geoms in frame f. The slice is copied.
func NewLayer(f Frame, geoms []geom.Geom) *Layer {
	g := make([]geom.Geom, len(geoms))
	copy(g, geoms)
	return &Layer{frame: f, geoms: g}
}

// NewPointLayer creates a layer of points in frame f.
func NewPointLayer(f Frame, pts []geom.Point) *Layer {
	g := make([]geom.Geom, len(pts))
	for i, p := range pts {
		g[i] = p
	}
	return &Layer{frame: f, geoms: g}
}

// Frame returns the reference frame of the layer.
func (l *Layer) Frame() Frame { return l.frame }

// Len returns the number of features in the layer.
func (l *Layer) Len() int { return len(l.geoms) }

// Geom returns the geometry of feature i.
func (l *Layer) Geom(i int) geom.Geom { return l.geoms[i] }

// Point returns feature i as a point. It panics if the feature is not a
// point.
func (l *Layer) Point(i int) geom.Point { return l.geoms[i].(geom.Point) }

// Reproject returns a copy of l with every geometry transformed to frame
// to. The receiver is not modified.
func (l *Layer) Reproject(to Frame) (*Layer, error) {
	if l.frame.Equal(to) {
		return &Layer{frame: to, geoms: l.geoms}, nil
	}
	t, err := l.frame.transformer(to)
	if err != nil {
		return nil, err
	}
	out := make([]geom.Geom, len(l.geoms))
	for i, g := range l.geoms {
		if g == nil {
			continue
		}
		out[i], err = g.Transform(t)
		if err != nil {
			return nil, fmt.Errorf("spatial: reprojecting feature %d to %s: %v", i, to, err)
		}
	}
	return &Layer{frame: to, geoms: out}, nil
}

// Centroids returns a layer in the same frame holding the centroid of each
// feature. Points are their own centroids.
func (l *Layer) Centroids() (*Layer, error) {
	out := make([]geom.Geom, len(l.geoms))
	for i, g := range l.geoms {
		switch t := g.(type) {
		case geom.Point:
			out[i] = t
		case geom.Polygonal:
			out[i] = t.Centroid()
		default:
			return nil, fmt.Errorf("spatial: feature %d: centroid of %T is not supported", i, g)
		}
	}
	return &Layer{frame: l.frame, geoms: out}, nil
}
