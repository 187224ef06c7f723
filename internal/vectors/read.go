package vectors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
)

// Read loads a polygon set from path, dispatching on the extension:
// .shp through the shapefile decoder, .geojson or .json as a GeoJSON
// FeatureCollection. Every feature must carry idField with an integer
// value, unique within the set.
func Read(path, idField string) (*FeatureSet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return readShapefile(path, idField)
	case ".geojson", ".json":
		return readGeoJSON(path, idField)
	default:
		return nil, fmt.Errorf("%s: unsupported vector format (want .shp or .geojson)", path)
	}
}

func readShapefile(path, idField string) (*FeatureSet, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer dec.Close()

	sr, err := dec.SR()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read CRS: %w", path, err)
	}
	if sr.Name == "longlat" {
		return nil, fmt.Errorf("%s: geographic coordinates; polygon inputs must use a projected CRS", path)
	}

	fs := &FeatureSet{IDField: idField, sr: sr}
	seen := make(map[int]bool)
	for {
		g, fields, more := dec.DecodeRowFields(idField)
		if !more {
			break
		}
		s, ok := fields[idField]
		if !ok {
			return nil, fmt.Errorf("%s: missing attribute column %s", path, idField)
		}
		id, err := attrInt(s)
		if err != nil {
			return nil, fmt.Errorf("%s: attribute %s: %w", path, idField, err)
		}
		if seen[id] {
			return nil, fmt.Errorf("%s: duplicate %s %d", path, idField, id)
		}
		seen[id] = true
		poly, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("%s: feature %d is not a polygon", path, id)
		}
		fs.Features = append(fs.Features, &Feature{ID: id, Geom: poly, Fields: make(map[string]float64)})
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("%s: failed to decode shapefile: %w", path, err)
	}
	return fs, nil
}

// attrInt parses a DBF attribute value as an integer, tolerating the
// padding and null bytes shapefile writers leave behind.
func attrInt(s string) (int, error) {
	s = strings.Trim(s, "\x00* ")
	if s == "" {
		return 0, fmt.Errorf("empty id value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse %q as an integer", s)
	}
	n := int(v)
	if float64(n) != v {
		return 0, fmt.Errorf("id %v is not an integer", v)
	}
	return n, nil
}

type geojsonGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type geojsonFeature struct {
	Properties map[string]interface{} `json:"properties"`
	Geometry   geojsonGeometry        `json:"geometry"`
}

type geojsonCollection struct {
	Type     string           `json:"type"`
	Features []geojsonFeature `json:"features"`
}

func readGeoJSON(path, idField string) (*FeatureSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read GeoJSON: %w", err)
	}
	var coll geojsonCollection
	if err := json.Unmarshal(b, &coll); err != nil {
		return nil, fmt.Errorf("%s: failed to parse GeoJSON: %w", path, err)
	}
	if coll.Type != "FeatureCollection" {
		return nil, fmt.Errorf("%s: expected a FeatureCollection, got %q", path, coll.Type)
	}

	fs := &FeatureSet{IDField: idField}
	seen := make(map[int]bool)
	for i, gf := range coll.Features {
		idVal, ok := gf.Properties[idField]
		if !ok {
			return nil, fmt.Errorf("%s: feature %d: missing property %s", path, i, idField)
		}
		id, err := propertyInt(idVal)
		if err != nil {
			return nil, fmt.Errorf("%s: feature %d: property %s: %w", path, i, idField, err)
		}
		if seen[id] {
			return nil, fmt.Errorf("%s: duplicate %s %d", path, idField, id)
		}
		seen[id] = true

		poly, err := decodeGeoJSONPolygon(gf.Geometry)
		if err != nil {
			return nil, fmt.Errorf("%s: feature %d: %w", path, i, err)
		}
		// Property names are registered in sorted order so repeated
		// reads of the same file yield the same field layout.
		names := make([]string, 0, len(gf.Properties))
		for k := range gf.Properties {
			if k != idField {
				names = append(names, k)
			}
		}
		sort.Strings(names)
		fields := make(map[string]float64)
		for _, k := range names {
			if n, ok := gf.Properties[k].(float64); ok {
				fields[k] = n
				fs.RegisterField(k)
			}
		}
		fs.Features = append(fs.Features, &Feature{ID: id, Geom: poly, Fields: fields})
	}
	return fs, nil
}

func propertyInt(v interface{}) (int, error) {
	switch x := v.(type) {
	case float64:
		n := int(x)
		if float64(n) != x {
			return 0, fmt.Errorf("id %v is not an integer", x)
		}
		return n, nil
	case string:
		return attrInt(x)
	default:
		return 0, fmt.Errorf("id has unsupported type %T", v)
	}
}

func decodeGeoJSONPolygon(g geojsonGeometry) (geom.Polygonal, error) {
	switch g.Type {
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("malformed Polygon coordinates: %w", err)
		}
		return ringsToPolygon(rings)
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return nil, fmt.Errorf("malformed MultiPolygon coordinates: %w", err)
		}
		mp := make(geom.MultiPolygon, 0, len(polys))
		for _, rings := range polys {
			p, err := ringsToPolygon(rings)
			if err != nil {
				return nil, err
			}
			mp = append(mp, p)
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %q (want Polygon or MultiPolygon)", g.Type)
	}
}

func ringsToPolygon(rings [][][]float64) (geom.Polygon, error) {
	p := make(geom.Polygon, 0, len(rings))
	for _, ring := range rings {
		r := make([]geom.Point, 0, len(ring))
		for _, pos := range ring {
			if len(pos) < 2 {
				return nil, fmt.Errorf("position with fewer than 2 ordinates")
			}
			r = append(r, geom.Point{X: pos[0], Y: pos[1]})
		}
		p = append(p, r)
	}
	return p, nil
}
