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
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/dheemanthrk/ForestFireDatasetGenerator/spatial"
)

// DefaultNameField is the boundary attribute holding the region name
// in Statistics Canada province boundary files.
const DefaultNameField = "PRNAME"

// Boundary is the region that the grid covers. It is not modified after
// it is loaded.
type Boundary struct {
	// Parts holds the polygons that make up the region. Parts loaded by
	// LoadBoundary do not overlap.
	Parts geom.MultiPolygon

	// Name is the region name, taken from the name attribute of the
	// selected features.
	Name string

	Frame spatial.Frame
}

// BoundaryOptions control how a boundary file is read.
type BoundaryOptions struct {
	// NameField is the attribute holding the region name. If empty,
	// DefaultNameField is used when it exists.
	NameField string

	// Name, if not empty, keeps only the features whose name attribute
	// matches it (case-insensitive).
	Name string

	// Frame overrides the reference frame of the file. It is required
	// for shapefiles without a .prj file. GeoJSON files default to
	// geographic coordinates.
	Frame *spatial.Frame
}

// LoadBoundary reads a region boundary from an ESRI shapefile or a GeoJSON
// file, chosen by file extension.
func LoadBoundary(path string, o BoundaryOptions) (*Boundary, error) {
	if o.NameField == "" {
		o.NameField = DefaultNameField
	}
	var b *Boundary
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		b, err = loadShapefileBoundary(path, o)
	case ".geojson", ".json":
		b, err = loadGeoJSONBoundary(path, o)
	default:
		return nil, fmt.Errorf("grid: unsupported boundary file type %s", path)
	}
	if err != nil {
		return nil, err
	}
	b.Parts = dissolve(b.Parts)
	return b, nil
}

// dissolve unions the parts whose extents overlap, so that area shared by
// more than one feature belongs to a single polygon. Parts that are apart
// from all others are returned unchanged.
func dissolve(parts geom.MultiPolygon) geom.MultiPolygon {
	var out geom.MultiPolygon
	for _, p := range parts {
		for {
			merged := false
			rest := make(geom.MultiPolygon, 0, len(out))
			for _, o := range out {
				if o.Bounds().Overlaps(p.Bounds()) {
					p = p.Union(o)
					merged = true
				} else {
					rest = append(rest, o)
				}
			}
			out = rest
			if !merged {
				break
			}
		}
		out = append(out, p)
	}
	return out
}

// matches reports whether a feature named name passes the name filter.
func (o BoundaryOptions) matches(name string) bool {
	return o.Name == "" || strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(o.Name))
}

func loadShapefileBoundary(path string, o BoundaryOptions) (*Boundary, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("grid: opening boundary %s: %v", path, err)
	}
	defer d.Close()

	b := new(Boundary)
	if o.Frame != nil {
		b.Frame = *o.Frame
	} else {
		sr, err := d.SR()
		if err != nil {
			return nil, fmt.Errorf("grid: boundary %s has no usable .prj file and no frame was configured: %v", path, err)
		}
		b.Frame = spatial.Frame{Name: filepath.Base(path), SR: sr}
	}

	var fields []string
	if hasField(d, o.NameField) {
		fields = []string{o.NameField}
	} else if o.Name != "" {
		return nil, fmt.Errorf("grid: boundary %s has no attribute %s to filter on", path, o.NameField)
	}
	names := make(map[string]bool)
	for {
		g, attrs, more := d.DecodeRowFields(fields...)
		if !more {
			break
		}
		name := strings.Trim(attrs[o.NameField], "\x00 ")
		if !o.matches(name) {
			continue
		}
		if err := b.add(g); err != nil {
			return nil, fmt.Errorf("grid: boundary %s: %v", path, err)
		}
		if name != "" {
			names[name] = true
		}
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("grid: reading boundary %s: %v", path, err)
	}
	b.Name = joinNames(names)
	return b, nil
}

func hasField(d *shp.Decoder, name string) bool {
	for _, f := range d.Fields() {
		if strings.EqualFold(f.String(), name) {
			return true
		}
	}
	return false
}

type geoJSONFeature struct {
	Type       string                 `json:"type"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type geoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

func loadGeoJSONBoundary(path string, o BoundaryOptions) (*Boundary, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("grid: opening boundary %s: %v", path, err)
	}
	var fc geoJSONFeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("grid: parsing boundary %s: %v", path, err)
	}
	switch fc.Type {
	case "FeatureCollection":
	case "Feature":
		var f geoJSONFeature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("grid: parsing boundary %s: %v", path, err)
		}
		fc.Features = []geoJSONFeature{f}
	default:
		fc.Features = []geoJSONFeature{{Type: "Feature", Geometry: data}}
	}

	b := new(Boundary)
	if o.Frame != nil {
		b.Frame = *o.Frame
	} else {
		b.Frame = spatial.Geographic()
	}
	names := make(map[string]bool)
	for i, f := range fc.Features {
		var name string
		if v, ok := f.Properties[o.NameField]; ok && v != nil {
			name = strings.TrimSpace(fmt.Sprint(v))
		}
		if !o.matches(name) {
			continue
		}
		g, err := decodeGeoJSONGeometry(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("grid: boundary %s feature %d: %v", path, i, err)
		}
		if err := b.add(g); err != nil {
			return nil, fmt.Errorf("grid: boundary %s feature %d: %v", path, i, err)
		}
		if name != "" {
			names[name] = true
		}
	}
	b.Name = joinNames(names)
	return b, nil
}

// decodeGeoJSONGeometry decodes a GeoJSON geometry. MultiPolygons are
// handled here because the geojson package does not decode them.
func decodeGeoJSONGeometry(raw json.RawMessage) (geom.Geom, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var head struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	if head.Type != "MultiPolygon" {
		return geojson.Decode(raw)
	}
	var coords [][][][]float64
	if err := json.Unmarshal(head.Coordinates, &coords); err != nil {
		return nil, err
	}
	mp := make(geom.MultiPolygon, len(coords))
	for i, poly := range coords {
		mp[i] = make(geom.Polygon, len(poly))
		for j, ring := range poly {
			mp[i][j] = make([]geom.Point, len(ring))
			for k, c := range ring {
				if len(c) < 2 {
					return nil, fmt.Errorf("invalid MultiPolygon coordinate %v", c)
				}
				mp[i][j][k] = geom.Point{X: c[0], Y: c[1]}
			}
		}
	}
	return mp, nil
}

// add appends the polygons in g to the boundary.
func (b *Boundary) add(g geom.Geom) error {
	if g == nil {
		return nil
	}
	p, ok := g.(geom.Polygonal)
	if !ok {
		return fmt.Errorf("boundary geometry must be polygonal; got %T", g)
	}
	b.Parts = append(b.Parts, p.Polygons()...)
	return nil
}

func joinNames(names map[string]bool) string {
	s := make([]string, 0, len(names))
	for n := range names {
		s = append(s, n)
	}
	sort.Strings(s)
	return strings.Join(s, ", ")
}

// Empty returns whether the boundary encloses no area.
func (b *Boundary) Empty() bool {
	return len(b.Parts) == 0 || b.Parts.Area() == 0
}

// Reproject returns a copy of b in frame to.
func (b *Boundary) Reproject(to spatial.Frame) (*Boundary, error) {
	geoms := make([]geom.Geom, len(b.Parts))
	for i, p := range b.Parts {
		geoms[i] = p
	}
	l, err := spatial.NewLayer(b.Frame, geoms).Reproject(to)
	if err != nil {
		return nil, fmt.Errorf("grid: reprojecting boundary: %v", err)
	}
	out := &Boundary{Name: b.Name, Frame: to, Parts: make(geom.MultiPolygon, l.Len())}
	for i := range out.Parts {
		out.Parts[i] = l.Geom(i).(geom.Polygon)
	}
	return out, nil
}

// Contains returns whether p, in the boundary's frame, is inside the
// boundary or on its edge.
func (b *Boundary) Contains(p geom.Point) bool {
	for _, part := range b.Parts {
		if p.Within(part) != geom.Outside {
			return true
		}
	}
	return false
}
