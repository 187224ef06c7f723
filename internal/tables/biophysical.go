package tables

import (
	"fmt"
	"sort"
)

// LandCoverClass carries the hydrological attributes of one land-cover
// code. RootDepth is meaningful only when Vegetated is set.
type LandCoverClass struct {
	Kc        float64
	RootDepth float64
	Vegetated bool
}

// Biophysical is the per-code attribute table, built once per run and
// immutable afterwards.
type Biophysical struct {
	classes map[int]LandCoverClass
}

// LoadBiophysical reads the biophysical CSV (lucode, kc, root_depth,
// lulc_veg). Duplicate codes, negative coefficients, and vegetation flags
// outside {0, 1} are errors.
func LoadBiophysical(path string) (*Biophysical, error) {
	t, err := openTable(path, "lucode", "kc", "root_depth", "lulc_veg")
	if err != nil {
		return nil, err
	}
	b := &Biophysical{classes: make(map[int]LandCoverClass, len(t.rows))}
	for i := range t.rows {
		code, err := t.integer(i, "lucode")
		if err != nil {
			return nil, err
		}
		if _, dup := b.classes[code]; dup {
			return nil, fmt.Errorf("%s: duplicate lucode %d", path, code)
		}
		kc, err := t.float(i, "kc")
		if err != nil {
			return nil, err
		}
		if kc < 0 {
			return nil, fmt.Errorf("%s: lucode %d: kc must be non-negative, got %v", path, code, kc)
		}
		root, err := t.float(i, "root_depth")
		if err != nil {
			return nil, err
		}
		if root < 0 {
			return nil, fmt.Errorf("%s: lucode %d: root_depth must be non-negative, got %v", path, code, root)
		}
		veg, err := t.float(i, "lulc_veg")
		if err != nil {
			return nil, err
		}
		if veg != 0 && veg != 1 {
			return nil, fmt.Errorf("%s: lucode %d: lulc_veg must be 0 or 1, got %v", path, code, veg)
		}
		b.classes[code] = LandCoverClass{Kc: kc, RootDepth: root, Vegetated: veg == 1}
	}
	return b, nil
}

// Class returns the attributes of code.
func (b *Biophysical) Class(code int) (LandCoverClass, bool) {
	c, ok := b.classes[code]
	return c, ok
}

// Codes returns every known land-cover code in ascending order.
func (b *Biophysical) Codes() []int {
	codes := make([]int, 0, len(b.classes))
	for c := range b.classes {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}

// KcMap returns the code → crop coefficient reclassification table.
func (b *Biophysical) KcMap() map[int]float64 {
	m := make(map[int]float64, len(b.classes))
	for code, c := range b.classes {
		m[code] = c.Kc
	}
	return m
}

// RootDepthMap returns the code → rooting depth table. Non-vegetated
// classes map to the neutral constant 1.0: their branch of the water
// balance never reads the depth, and a real value keeps them out of the
// nodata mask.
func (b *Biophysical) RootDepthMap() map[int]float64 {
	m := make(map[int]float64, len(b.classes))
	for code, c := range b.classes {
		if c.Vegetated {
			m[code] = c.RootDepth
		} else {
			m[code] = 1.0
		}
	}
	return m
}

// VegMap returns the code → vegetation flag table as 1.0 / 0.0.
func (b *Biophysical) VegMap() map[int]float64 {
	m := make(map[int]float64, len(b.classes))
	for code, c := range b.classes {
		if c.Vegetated {
			m[code] = 1.0
		} else {
			m[code] = 0.0
		}
	}
	return m
}
