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
	"github.com/ctessum/geom/index/rtree"
)

// indexedCell is a polygon stored in the joiner's spatial index.
type indexedCell struct {
	geom.Polygonal
	id    int
	order int
}

// Joiner assigns points to the polygon that contains them.
type Joiner struct {
	frame Frame
	index *rtree.Rtree
	n     int
}

// NewJoiner indexes the polygons in cells, labelling feature i with ids[i].
func NewJoiner(cells *Layer, ids []int) (*Joiner, error) {
	if cells.Len() != len(ids) {
		return nil, fmt.Errorf("spatial: %d cells but %d ids", cells.Len(), len(ids))
	}
	j := &Joiner{
		frame: cells.Frame(),
		index: rtree.NewTree(25, 50),
		n:     len(ids),
	}
	for i, g := range cells.geoms {
		p, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("spatial: cell %d is %T, not a polygon", ids[i], g)
		}
		j.index.Insert(&indexedCell{Polygonal: p, id: ids[i], order: i})
	}
	return j, nil
}

// Frame returns the reference frame of the indexed cells.
func (j *Joiner) Frame() Frame { return j.frame }

// Len returns the number of indexed cells.
func (j *Joiner) Len() int { return j.n }

// Locate returns the id of the cell containing p. Points on a shared edge
// go to the cell that was indexed first.
func (j *Joiner) Locate(p geom.Point) (id int, ok bool) {
	best := -1
	for _, cI := range j.index.SearchIntersect(p.Bounds()) {
		c := cI.(*indexedCell)
		if best >= 0 && c.order >= best {
			continue
		}
		if p.Within(c.Polygonal) == geom.Outside {
			continue
		}
		best = c.order
		id = c.id
	}
	return id, best >= 0
}

// Match links an observation to the cell that contains it.
type Match struct {
	// Index is the position of the observation in the joined layer.
	Index int
	// GridID is the id of the containing cell.
	GridID int
}

// Join locates every point in points. Points outside all cells are left
// out of the result. The result is in input order.
func (j *Joiner) Join(points *Layer) ([]Match, error) {
	if !points.Frame().Equal(j.frame) {
		return nil, fmt.Errorf("%w: points are in %s, cells in %s", ErrFrameMismatch, points.Frame(), j.frame)
	}
	var out []Match
	for i, g := range points.geoms {
		p, ok := g.(geom.Point)
		if !ok {
			return nil, fmt.Errorf("spatial: observation %d is %T, not a point", i, g)
		}
		if id, ok := j.Locate(p); ok {
			out = append(out, Match{Index: i, GridID: id})
		}
	}
	return out, nil
}
