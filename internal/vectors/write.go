package vectors

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/ctessum/geom"
)

// WriteGeoJSON exports the feature set as a GeoJSON FeatureCollection.
// Properties hold the id field plus every registered field; the set of
// fields depends on which stages ran, so encoding is schema-free.
func WriteGeoJSON(path string, fs *FeatureSet) error {
	type outFeature struct {
		Type       string                 `json:"type"`
		Properties map[string]interface{} `json:"properties"`
		Geometry   geojsonGeometry        `json:"geometry"`
	}
	out := struct {
		Type     string       `json:"type"`
		Features []outFeature `json:"features"`
	}{Type: "FeatureCollection", Features: make([]outFeature, 0, len(fs.Features))}

	for _, f := range fs.Features {
		g, err := encodeGeoJSONGeometry(f.Geom)
		if err != nil {
			return fmt.Errorf("feature %d: %w", f.ID, err)
		}
		props := map[string]interface{}{fs.IDField: f.ID}
		for _, name := range fs.fields {
			if v, ok := f.Fields[name]; ok {
				props[name] = v
			}
		}
		out.Features = append(out.Features, outFeature{Type: "Feature", Properties: props, Geometry: g})
	}

	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write GeoJSON: %w", err)
	}
	return nil
}

func encodeGeoJSONGeometry(g geom.Polygonal) (geojsonGeometry, error) {
	var (
		typ    string
		coords interface{}
	)
	switch p := g.(type) {
	case geom.Polygon:
		typ, coords = "Polygon", polygonCoords(p)
	case geom.MultiPolygon:
		cs := make([][][][]float64, 0, len(p))
		for _, poly := range p {
			cs = append(cs, polygonCoords(poly))
		}
		typ, coords = "MultiPolygon", cs
	case *geom.Bounds:
		typ, coords = "Polygon", polygonCoords(geom.Polygon{{
			{X: p.Min.X, Y: p.Min.Y},
			{X: p.Max.X, Y: p.Min.Y},
			{X: p.Max.X, Y: p.Max.Y},
			{X: p.Min.X, Y: p.Max.Y},
			{X: p.Min.X, Y: p.Min.Y},
		}})
	default:
		return geojsonGeometry{}, fmt.Errorf("unsupported geometry type %T", g)
	}
	raw, err := json.Marshal(coords)
	if err != nil {
		return geojsonGeometry{}, err
	}
	return geojsonGeometry{Type: typ, Coordinates: raw}, nil
}

func polygonCoords(p geom.Polygon) [][][]float64 {
	rings := make([][][]float64, 0, len(p))
	for _, ring := range p {
		r := make([][]float64, 0, len(ring))
		for _, pt := range ring {
			r = append(r, []float64{pt.X, pt.Y})
		}
		rings = append(rings, r)
	}
	return rings
}

// WriteCSV exports the attribute table: the id column followed by every
// registered field in attach order, one row per feature in input order.
// A field missing on a feature leaves an empty cell.
func WriteCSV(path string, fs *FeatureSet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{fs.IDField}, fs.fields...)); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, feat := range fs.Features {
		row := make([]string, 0, len(fs.fields)+1)
		row = append(row, strconv.Itoa(feat.ID))
		for _, name := range fs.fields {
			if v, ok := feat.Fields[name]; ok {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return f.Close()
}
