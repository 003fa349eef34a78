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

package grid

import (
	"fmt"
	"io/ioutil"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/spatial"
	goshp "github.com/jonas-p/go-shp"
)

// WriteShapefile writes the grid cells to a shapefile at path, with the
// cell id, centroid latitude and longitude, region name and projected
// centroid as attributes.
// The grid frame is written to the accompanying .prj file.
func (g *Grid) WriteShapefile(path string) error {
	base := strings.TrimSuffix(path, ".shp")
	for _, ext := range []string{".shp", ".prj", ".dbf", ".shx"} {
		os.Remove(base + ext)
	}
	fields := []goshp.Field{
		goshp.NumberField("grid_id", 10),
		goshp.FloatField("lat", 14, 8),
		goshp.FloatField("lon", 14, 8),
		goshp.StringField("region", 50),
		goshp.FloatField("cx", 19, 4),
		goshp.FloatField("cy", 19, 4),
	}
	e, err := shp.NewEncoderFromFields(base+".shp", goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("grid: creating shapefile %s: %v", path, err)
	}
	for _, c := range g.Cells {
		if err := e.EncodeFields(asPolygon(c.Polygonal), c.ID, c.Latitude, c.Longitude, c.Region,
			c.Centroid.X, c.Centroid.Y); err != nil {
			e.Close()
			return fmt.Errorf("grid: writing cell %d: %v", c.ID, err)
		}
	}
	e.Close()
	if g.Frame.Def != "" {
		if err := ioutil.WriteFile(base+".prj", []byte(g.Frame.Def), 0644); err != nil {
			return fmt.Errorf("grid: writing projection file: %v", err)
		}
	}
	return nil
}

// asPolygon flattens p into a single polygon so it can be stored as one
// shapefile record. The centroid of the result can differ from that of p,
// which is why the centroid is stored as attributes.
func asPolygon(p geom.Polygonal) geom.Polygon {
	if pp, ok := p.(geom.Polygon); ok {
		return pp
	}
	var o geom.Polygon
	for _, pp := range p.Polygons() {
		o = append(o, pp...)
	}
	return o
}

// ReadShapefile reads a grid written by WriteShapefile. If frame is nil
// the frame is read from the .prj file.
func ReadShapefile(path string, cellSize float64, policy Policy, frame *spatial.Frame) (*Grid, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("grid: opening shapefile %s: %v", path, err)
	}
	defer d.Close()

	g := &Grid{CellSize: cellSize, Policy: policy}
	if frame != nil {
		g.Frame = *frame
	} else {
		b, err := ioutil.ReadFile(strings.TrimSuffix(path, ".shp") + ".prj")
		if err != nil {
			return nil, fmt.Errorf("grid: reading projection of %s: %v", path, err)
		}
		g.Frame, err = spatial.NewFrame("grid", string(b))
		if err != nil {
			return nil, err
		}
	}
	fields := []string{"grid_id", "lat", "lon", "region"}
	withCentroid := hasField(d, "cx") && hasField(d, "cy")
	if withCentroid {
		fields = append(fields, "cx", "cy")
	}
	for {
		gg, attrs, more := d.DecodeRowFields(fields...)
		if !more {
			break
		}
		p, ok := gg.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("grid: shapefile %s: cell geometry is %T", path, gg)
		}
		c := &Cell{Polygonal: p, Region: strings.Trim(attrs["region"], "\x00 ")}
		if c.ID, err = strconv.Atoi(strings.TrimSpace(attrs["grid_id"])); err != nil {
			return nil, fmt.Errorf("grid: shapefile %s: grid_id: %v", path, err)
		}
		if c.Latitude, err = strconv.ParseFloat(strings.TrimSpace(attrs["lat"]), 64); err != nil {
			return nil, fmt.Errorf("grid: shapefile %s: lat: %v", path, err)
		}
		if c.Longitude, err = strconv.ParseFloat(strings.TrimSpace(attrs["lon"]), 64); err != nil {
			return nil, fmt.Errorf("grid: shapefile %s: lon: %v", path, err)
		}
		if withCentroid {
			if c.Centroid.X, err = strconv.ParseFloat(strings.TrimSpace(attrs["cx"]), 64); err != nil {
				return nil, fmt.Errorf("grid: shapefile %s: cx: %v", path, err)
			}
			if c.Centroid.Y, err = strconv.ParseFloat(strings.TrimSpace(attrs["cy"]), 64); err != nil {
				return nil, fmt.Errorf("grid: shapefile %s: cy: %v", path, err)
			}
		} else {
			c.Centroid = p.Centroid()
		}
		g.Cells = append(g.Cells, c)
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("grid: reading shapefile %s: %v", path, err)
	}
	sort.Slice(g.Cells, func(i, j int) bool { return g.Cells[i].ID < g.Cells[j].ID })
	for i, c := range g.Cells {
		if c.ID != i+1 {
			return nil, fmt.Errorf("grid: shapefile %s: grid ids are not contiguous from 1 (found %d at position %d)", path, c.ID, i+1)
		}
	}
	return g, nil
}
