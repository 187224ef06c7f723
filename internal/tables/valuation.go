package tables

import (
	"fmt"

	"github.com/testacc-art/invest/internal/valuation"
)

// LoadValuation reads the hydropower valuation CSV into per-watershed
// parameters keyed by ws_id.
func LoadValuation(path string) (map[int]valuation.Params, error) {
	t, err := openTable(path, "ws_id", "efficiency", "fraction", "height",
		"discount", "time_span", "cost", "kw_price")
	if err != nil {
		return nil, err
	}
	m := make(map[int]valuation.Params, len(t.rows))
	for i := range t.rows {
		id, err := t.integer(i, "ws_id")
		if err != nil {
			return nil, err
		}
		if _, dup := m[id]; dup {
			return nil, fmt.Errorf("%s: duplicate ws_id %d", path, id)
		}
		var p valuation.Params
		for _, f := range []struct {
			col string
			dst *float64
		}{
			{"efficiency", &p.Efficiency},
			{"fraction", &p.Fraction},
			{"height", &p.Height},
			{"discount", &p.Discount},
			{"time_span", &p.TimeSpan},
			{"cost", &p.Cost},
			{"kw_price", &p.KWPrice},
		} {
			if *f.dst, err = t.float(i, f.col); err != nil {
				return nil, err
			}
		}
		m[id] = p
	}
	return m, nil
}
