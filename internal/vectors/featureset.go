// Package vectors provides the polygon-set engine for the model:
// watershed features with integer ids and growing scalar attributes,
// shapefile and GeoJSON input, CRS alignment onto the raster frame, and
// GeoJSON plus CSV export.
package vectors

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// Feature is one polygon with its integer id and the scalar attributes
// attached so far. Attributes are written by exactly one derivation stage
// at a time, never concurrently.
type Feature struct {
	ID     int
	Geom   geom.Polygonal
	Fields map[string]float64
}

// FeatureSet is an ordered polygon collection sharing one id field name
// and one export-ordered registry of attached fields.
type FeatureSet struct {
	IDField  string
	Features []*Feature

	fields []string // attach order, drives CSV column order
	sr     *proj.SR // source CRS; nil when the input carried none
	Proj4  string   // CRS the geometry currently lives in, when known
}

// Copy returns a deep copy: features and field maps are fresh, geometry
// is shared (it is never mutated after CRS alignment).
func (fs *FeatureSet) Copy() *FeatureSet {
	out := &FeatureSet{
		IDField:  fs.IDField,
		Features: make([]*Feature, len(fs.Features)),
		fields:   append([]string(nil), fs.fields...),
		sr:       fs.sr,
		Proj4:    fs.Proj4,
	}
	for i, f := range fs.Features {
		nf := &Feature{ID: f.ID, Geom: f.Geom, Fields: make(map[string]float64, len(f.Fields))}
		for k, v := range f.Fields {
			nf.Fields[k] = v
		}
		out.Features[i] = nf
	}
	return out
}

// RegisterField appends name to the export field order; repeated
// registration is a no-op.
func (fs *FeatureSet) RegisterField(name string) {
	for _, f := range fs.fields {
		if f == name {
			return
		}
	}
	fs.fields = append(fs.fields, name)
}

// FieldNames returns the attached fields in registration order.
func (fs *FeatureSet) FieldNames() []string {
	return append([]string(nil), fs.fields...)
}

// HasField reports whether name has been registered.
func (fs *FeatureSet) HasField(name string) bool {
	for _, f := range fs.fields {
		if f == name {
			return true
		}
	}
	return false
}

// Bounds returns the envelope of all features.
func (fs *FeatureSet) Bounds() *geom.Bounds {
	if len(fs.Features) == 0 {
		return nil
	}
	b := *fs.Features[0].Geom.Bounds()
	for _, f := range fs.Features[1:] {
		fb := f.Geom.Bounds()
		if fb.Min.X < b.Min.X {
			b.Min.X = fb.Min.X
		}
		if fb.Min.Y < b.Min.Y {
			b.Min.Y = fb.Min.Y
		}
		if fb.Max.X > b.Max.X {
			b.Max.X = fb.Max.X
		}
		if fb.Max.Y > b.Max.Y {
			b.Max.Y = fb.Max.Y
		}
	}
	return &b
}

// AlignCRS reprojects feature geometry onto the raster CRS given as a
// PROJ4 string. Inputs that carried no CRS of their own (GeoJSON) are
// taken to be in the raster CRS already.
func (fs *FeatureSet) AlignCRS(rasterProj4 string) error {
	if fs.sr == nil {
		fs.Proj4 = rasterProj4
		return nil
	}
	dst, err := proj.Parse(rasterProj4)
	if err != nil {
		return fmt.Errorf("failed to parse raster CRS %q: %w", rasterProj4, err)
	}
	trans, err := fs.sr.NewTransform(dst)
	if err != nil {
		return fmt.Errorf("failed to build CRS transform: %w", err)
	}
	for _, f := range fs.Features {
		gg, err := f.Geom.Transform(trans)
		if err != nil {
			return fmt.Errorf("failed to reproject feature %d: %w", f.ID, err)
		}
		poly, ok := gg.(geom.Polygonal)
		if !ok {
			return fmt.Errorf("feature %d is no longer a polygon after reprojection", f.ID)
		}
		f.Geom = poly
	}
	fs.Proj4 = rasterProj4
	return nil
}

// IDs returns every feature id in input order.
func (fs *FeatureSet) IDs() []int {
	ids := make([]int, len(fs.Features))
	for i, f := range fs.Features {
		ids[i] = f.ID
	}
	return ids
}
