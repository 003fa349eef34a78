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

// Package grid builds the regular grid of square cells that every
// observation in the dataset is allocated to.
package grid

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/spatial"
)

func init() {
	gob.Register(geom.Polygon{})
	gob.Register(geom.MultiPolygon{})
}

// ErrInvalidConfiguration is returned for grid settings that cannot
// produce a grid.
var ErrInvalidConfiguration = errors.New("grid: invalid configuration")

// Policy specifies which cells of the tiled bounding box are kept.
type Policy int

const (
	// IntersectionClip keeps every cell that overlaps the boundary and
	// clips it to the boundary. Edge cells are irregular.
	IntersectionClip Policy = iota

	// Containment keeps only cells that lie entirely within the boundary.
	Containment
)

func (p Policy) String() string {
	switch p {
	case IntersectionClip:
		return "intersection"
	case Containment:
		return "containment"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses a grid filter policy name.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "intersection", "clip", "intersection-clip":
		return IntersectionClip, nil
	case "containment", "contain", "within":
		return Containment, nil
	default:
		return 0, fmt.Errorf("%w: unknown grid policy %q", ErrInvalidConfiguration, s)
	}
}

// Cell is one grid cell.
type Cell struct {
	// Polygonal is the cell geometry in the grid frame: the full square
	// under Containment, the clipped square under IntersectionClip.
	geom.Polygonal

	// ID is the 1-based cell identifier.
	ID int

	// Centroid is the centroid of the cell geometry in the grid frame.
	Centroid geom.Point

	// Latitude and Longitude are the centroid in geographic coordinates.
	Latitude, Longitude float64

	// Region is the name of the boundary region.
	Region string
}

// Grid is a set of cells in a projected frame. It is read-only once
// created.
type Grid struct {
	Frame    spatial.Frame
	CellSize float64
	Policy   Policy
	Cells    []*Cell
}

// containmentTolerance is the relative area shortfall allowed for a cell
// that is considered to be fully within the boundary.
const containmentTolerance = 1e-9

// Generate tiles the bounding box of b, which must be in a projected frame,
// with square cells of side cellSize and keeps the cells selected by
// policy. Cells are numbered from 1 starting in the lower-left corner,
// proceeding along each row and then upward.
func Generate(b *Boundary, cellSize float64, policy Policy) (*Grid, error) {
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, fmt.Errorf("%w: cell size must be a positive number; got %g", ErrInvalidConfiguration, cellSize)
	}
	if policy != IntersectionClip && policy != Containment {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, policy)
	}
	if b.Frame.SR != nil && b.Frame.SR.Name == "longlat" {
		return nil, fmt.Errorf("%w: boundary must be in a projected frame to build a grid in meters; it is in %s",
			ErrInvalidConfiguration, b.Frame)
	}
	g := &Grid{Frame: b.Frame, CellSize: cellSize, Policy: policy}
	if b.Empty() {
		return g, nil
	}

	// Index the boundary parts so each cell is only clipped against
	// the parts it can overlap.
	region := dissolve(b.Parts)
	parts := rtree.NewTree(25, 50)
	for _, p := range region {
		parts.Insert(p)
	}

	bounds := region.Bounds()
	nx := int(math.Ceil((bounds.Max.X - bounds.Min.X) / cellSize))
	ny := int(math.Ceil((bounds.Max.Y - bounds.Min.Y) / cellSize))
	cellArea := cellSize * cellSize

	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			x := bounds.Min.X + float64(ix)*cellSize
			y := bounds.Min.Y + float64(iy)*cellSize
			square := geom.Polygon{{
				{X: x, Y: y}, {X: x + cellSize, Y: y},
				{X: x + cellSize, Y: y + cellSize}, {X: x, Y: y + cellSize}, {X: x, Y: y}}}

			var near geom.MultiPolygon
			for _, pI := range parts.SearchIntersect(square.Bounds()) {
				near = append(near, pI.(geom.Polygon))
			}
			if len(near) == 0 {
				continue
			}
			var clipped geom.Polygonal = square.Intersection(near)
			a := clipped.Area()
			if !(a > 0) {
				continue
			}
			cell := &Cell{Region: b.Name}
			switch policy {
			case IntersectionClip:
				cell.Polygonal = clipped
			case Containment:
				if a < cellArea*(1-containmentTolerance) {
					continue
				}
				cell.Polygonal = square
			}
			cell.Centroid = cell.Polygonal.Centroid()
			g.Cells = append(g.Cells, cell)
			cell.ID = len(g.Cells)
		}
	}
	if err := g.setLatLon(); err != nil {
		return nil, err
	}
	return g, nil
}

// setLatLon reprojects the cell centroids to geographic coordinates.
func (g *Grid) setLatLon() error {
	if len(g.Cells) == 0 {
		return nil
	}
	pts := make([]geom.Point, len(g.Cells))
	for i, c := range g.Cells {
		pts[i] = c.Centroid
	}
	ll, err := spatial.NewPointLayer(g.Frame, pts).Reproject(spatial.Geographic())
	if err != nil {
		return fmt.Errorf("grid: calculating cell latitude and longitude: %v", err)
	}
	for i, c := range g.Cells {
		p := ll.Point(i)
		c.Longitude, c.Latitude = p.X, p.Y
	}
	return nil
}

// IDs returns the cell ids in cell order.
func (g *Grid) IDs() []int {
	ids := make([]int, len(g.Cells))
	for i, c := range g.Cells {
		ids[i] = c.ID
	}
	return ids
}

// Layer returns the cell geometries as a layer in the grid frame.
func (g *Grid) Layer() *spatial.Layer {
	geoms := make([]geom.Geom, len(g.Cells))
	for i, c := range g.Cells {
		geoms[i] = c.Polygonal
	}
	return spatial.NewLayer(g.Frame, geoms)
}

// CentroidLayer returns the cell centroids as a layer in the grid frame.
func (g *Grid) CentroidLayer() *spatial.Layer {
	pts := make([]geom.Point, len(g.Cells))
	for i, c := range g.Cells {
		pts[i] = c.Centroid
	}
	return spatial.NewPointLayer(g.Frame, pts)
}

// Joiner returns a joiner that locates points in the grid cells. Cells are
// indexed in id order, so points on a shared edge go to the lower id.
func (g *Grid) Joiner() (*spatial.Joiner, error) {
	return spatial.NewJoiner(g.Layer(), g.IDs())
}

// Cell returns the cell with the given id, or nil if there is none.
func (g *Grid) Cell(id int) *Cell {
	if id < 1 || id > len(g.Cells) {
		return nil
	}
	return g.Cells[id-1]
}
