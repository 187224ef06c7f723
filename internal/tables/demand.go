package tables

import "fmt"

// LoadDemand reads the water demand CSV (lucode, demand) into a
// reclassification table: code → consumptive volume per year.
func LoadDemand(path string) (map[int]float64, error) {
	t, err := openTable(path, "lucode", "demand")
	if err != nil {
		return nil, err
	}
	m := make(map[int]float64, len(t.rows))
	for i := range t.rows {
		code, err := t.integer(i, "lucode")
		if err != nil {
			return nil, err
		}
		if _, dup := m[code]; dup {
			return nil, fmt.Errorf("%s: duplicate lucode %d", path, code)
		}
		d, err := t.float(i, "demand")
		if err != nil {
			return nil, err
		}
		if d < 0 {
			return nil, fmt.Errorf("%s: lucode %d: demand must be non-negative, got %v", path, code, d)
		}
		m[code] = d
	}
	return m, nil
}
