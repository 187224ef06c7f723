package rasters

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// Align resamples every source grid onto one shared frame so that
// downstream element-wise operators can pair cells by index. The frame is
// the intersection of all source extents and the optional clip bounds,
// snapped outward to the cell lattice of sources[ref]. Each source is
// sampled by nearest neighbor at cell centers; a sample falling outside a
// source's extent keeps that source's nodata value. Sources must all carry
// the same PROJ4 string.
func Align(sources []*Grid, ref int, clip *geom.Bounds) ([]*Grid, error) {
	if len(sources) == 0 {
		return nil, errors.New("no grids to align")
	}
	if ref < 0 || ref >= len(sources) {
		return nil, fmt.Errorf("reference index %d out of range", ref)
	}
	r := sources[ref].Info
	for _, s := range sources {
		if s.Info.Proj4 != r.Proj4 {
			return nil, fmt.Errorf("coordinate systems differ (%q vs %q): inputs must share one projected CRS",
				r.Proj4, s.Info.Proj4)
		}
		if s.Info.DX <= 0 || s.Info.DY <= 0 {
			return nil, fmt.Errorf("cell size must be positive, got (%g, %g)", s.Info.DX, s.Info.DY)
		}
	}

	b := sources[0].Info.Bounds()
	for _, s := range sources[1:] {
		b = intersectBounds(b, s.Info.Bounds())
	}
	if clip != nil {
		b = intersectBounds(b, clip)
	}
	if b.Max.X <= b.Min.X || b.Max.Y <= b.Min.Y {
		return nil, errors.New("input extents do not overlap")
	}

	// Snap the intersection outward to the reference lattice.
	x0 := r.X0 + math.Floor((b.Min.X-r.X0)/r.DX)*r.DX
	y0 := r.Y0 + math.Floor((b.Min.Y-r.Y0)/r.DY)*r.DY
	nx := int(math.Ceil((b.Max.X - x0) / r.DX))
	ny := int(math.Ceil((b.Max.Y - y0) / r.DY))
	if nx < 1 || ny < 1 {
		return nil, errors.New("aligned frame is empty")
	}

	out := make([]*Grid, len(sources))
	for k, s := range sources {
		g := NewGrid(GridInfo{
			NX: nx, NY: ny,
			DX: r.DX, DY: r.DY,
			X0: x0, Y0: y0,
			Nodata: s.Info.Nodata,
			Proj4:  r.Proj4,
		})
		for row := 0; row < ny; row++ {
			y := y0 + (float64(row)+0.5)*r.DY
			srow := int(math.Floor((y - s.Info.Y0) / s.Info.DY))
			for col := 0; col < nx; col++ {
				x := x0 + (float64(col)+0.5)*r.DX
				scol := int(math.Floor((x - s.Info.X0) / s.Info.DX))
				v := s.Info.Nodata
				if srow >= 0 && srow < s.Info.NY && scol >= 0 && scol < s.Info.NX {
					v = s.Data.Get(srow, scol)
				}
				g.Data.Set(v, row, col)
			}
		}
		out[k] = g
	}
	return out, nil
}

func intersectBounds(a, b *geom.Bounds) *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: math.Max(a.Min.X, b.Min.X), Y: math.Max(a.Min.Y, b.Min.Y)},
		Max: geom.Point{X: math.Min(a.Max.X, b.Max.X), Y: math.Min(a.Max.Y, b.Max.Y)},
	}
}
