// Package tables loads the CSV attribute tables that drive the model: the
// biophysical land-cover table, the optional water demand table, and the
// optional hydropower valuation table. Headers are matched after
// lowercasing and trimming, so the tables survive the usual spreadsheet
// export quirks.
package tables

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// table is a parsed CSV with a lowercased header index.
type table struct {
	path   string
	header map[string]int
	rows   [][]string
}

func openTable(path string, required ...string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse CSV: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: table is empty", path)
	}

	t := &table{path: path, header: make(map[string]int), rows: records[1:]}
	for i, h := range records[0] {
		h = strings.TrimPrefix(h, "\ufeff") // spreadsheet exports love BOMs
		t.header[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range required {
		if _, ok := t.header[col]; !ok {
			return nil, fmt.Errorf("%s: missing required column %q", path, col)
		}
	}
	return t, nil
}

func (t *table) cell(row int, col string) string {
	i := t.header[col]
	if i >= len(t.rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.rows[row][i])
}

func (t *table) float(row int, col string) (float64, error) {
	s := t.cell(row, col)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: row %d: column %q: cannot parse %q as a number",
			t.path, row+2, col, s)
	}
	return v, nil
}

func (t *table) integer(row int, col string) (int, error) {
	v, err := t.float(row, col)
	if err != nil {
		return 0, err
	}
	n := int(v)
	if float64(n) != v {
		return 0, fmt.Errorf("%s: row %d: column %q: %v is not an integer",
			t.path, row+2, col, v)
	}
	return n, nil
}
