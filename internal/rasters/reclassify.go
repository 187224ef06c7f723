package rasters

import (
	"fmt"
	"math"
)

// Reclassify maps an integer-coded grid through a code-to-value table.
// Source nodata cells become outNodata in the result, which also carries
// outNodata as its sentinel. A non-nodata code with no table entry is an
// error; runs validate table coverage first, so hitting it means the
// caller skipped that check.
func Reclassify(src *Grid, table map[int]float64, outNodata float64) (*Grid, error) {
	out := NewGrid(src.Info)
	out.Info.Nodata = outNodata
	for i, v := range src.Data.Elements {
		if src.IsNodata(v) {
			out.Data.Elements[i] = outNodata
			continue
		}
		code := int(math.Round(v))
		mapped, ok := table[code]
		if !ok {
			return nil, fmt.Errorf("no reclassification entry for code %d", code)
		}
		out.Data.Elements[i] = mapped
	}
	return out, nil
}
