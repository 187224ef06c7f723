// Package rasters implements the gridded-data engine for the water yield
// model: a float64 grid over a georeferenced frame, a NetCDF codec,
// alignment of heterogeneous sources onto a shared frame, and integer
// reclassification.
package rasters

import (
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// GridInfo describes the spatial frame of a grid: cell counts, positive
// cell sizes, the south-west corner of the frame, the grid's nodata
// sentinel, and the coordinate reference system as a PROJ4 string.
// Row 0 is the southernmost row; y grows with the row index.
type GridInfo struct {
	NX, NY int
	DX, DY float64
	X0, Y0 float64
	Nodata float64
	Proj4  string
}

// Bounds returns the outer envelope of the frame.
func (gi GridInfo) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: gi.X0, Y: gi.Y0},
		Max: geom.Point{
			X: gi.X0 + float64(gi.NX)*gi.DX,
			Y: gi.Y0 + float64(gi.NY)*gi.DY,
		},
	}
}

// CellBounds returns the box of the cell at (row, col).
func (gi GridInfo) CellBounds(row, col int) *geom.Bounds {
	x := gi.X0 + float64(col)*gi.DX
	y := gi.Y0 + float64(row)*gi.DY
	return &geom.Bounds{
		Min: geom.Point{X: x, Y: y},
		Max: geom.Point{X: x + gi.DX, Y: y + gi.DY},
	}
}

// CellArea returns the area of one cell in squared linear units.
func (gi GridInfo) CellArea() float64 { return gi.DX * gi.DY }

// SameFrame reports whether two frames cover the same cells: equal counts,
// cell sizes, and origins. Nodata sentinels and CRS strings may differ.
func (gi GridInfo) SameFrame(o GridInfo) bool {
	return gi.NX == o.NX && gi.NY == o.NY &&
		gi.DX == o.DX && gi.DY == o.DY &&
		gi.X0 == o.X0 && gi.Y0 == o.Y0
}

// Grid is a single-band float64 raster: a dense (ny, nx) array plus the
// frame it covers.
type Grid struct {
	Info GridInfo
	Data *sparse.DenseArray
}

// NewGrid allocates a zero-filled grid over the given frame.
func NewGrid(info GridInfo) *Grid {
	return &Grid{Info: info, Data: sparse.ZerosDense(info.NY, info.NX)}
}

// Value returns the cell value at (row, col).
func (g *Grid) Value(row, col int) float64 { return g.Data.Get(row, col) }

// SetValue stores v at (row, col).
func (g *Grid) SetValue(v float64, row, col int) { g.Data.Set(v, row, col) }

// Fill sets every cell to v.
func (g *Grid) Fill(v float64) {
	for i := range g.Data.Elements {
		g.Data.Elements[i] = v
	}
}

// Copy returns a deep copy of g sharing no storage with it.
func (g *Grid) Copy() *Grid {
	out := NewGrid(g.Info)
	copy(out.Data.Elements, g.Data.Elements)
	return out
}

// IsNodata reports whether v matches the grid's own sentinel.
func (g *Grid) IsNodata(v float64) bool { return MatchesNodata(v, g.Info.Nodata) }

// MatchesNodata reports whether v equals the sentinel. NaN sentinels match
// NaN values, which plain equality would miss.
func MatchesNodata(v, nodata float64) bool {
	if math.IsNaN(nodata) {
		return math.IsNaN(v)
	}
	return v == nodata
}

// UniqueValues returns the sorted distinct cell values of an integer-coded
// grid. The grid's nodata value is included like any other; callers decide
// what to do with it.
func UniqueValues(g *Grid) []float64 {
	seen := make(map[float64]struct{})
	hasNaN := false
	for _, v := range g.Data.Elements {
		if math.IsNaN(v) {
			hasNaN = true
			continue
		}
		seen[v] = struct{}{}
	}
	vals := make([]float64, 0, len(seen)+1)
	for v := range seen {
		vals = append(vals, v)
	}
	sort.Float64s(vals)
	if hasNaN {
		vals = append(vals, math.NaN())
	}
	return vals
}
