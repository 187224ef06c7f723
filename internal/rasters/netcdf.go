package rasters

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
)

// Grids travel between tasks as NetCDF files holding one float64 data
// variable over dims (y, x), with the frame stored as global attributes:
// x0, y0, dx, dy, nodata as float64 and proj4 as a string.

// Write encodes g to a NetCDF file at path with the data variable called
// name. An existing file is replaced.
func Write(path, name string, g *Grid) error {
	h := cdf.NewHeader([]string{"y", "x"}, []int{g.Info.NY, g.Info.NX})
	h.AddAttribute("", "x0", []float64{g.Info.X0})
	h.AddAttribute("", "y0", []float64{g.Info.Y0})
	h.AddAttribute("", "dx", []float64{g.Info.DX})
	h.AddAttribute("", "dy", []float64{g.Info.DY})
	h.AddAttribute("", "nodata", []float64{g.Info.Nodata})
	h.AddAttribute("", "proj4", g.Info.Proj4)
	h.AddVariable(name, []string{"y", "x"}, []float64{0})
	h.Define()

	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create raster file: %w", err)
	}
	defer w.Close()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("failed to write raster header: %w", err)
	}
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	if _, err := f.Writer(name, start, end).Write(g.Data.Elements); err != nil {
		return fmt.Errorf("failed to write raster variable %s: %w", name, err)
	}
	if err := cdf.UpdateNumRecs(w); err != nil {
		return fmt.Errorf("failed to finalize raster file: %w", err)
	}
	return w.Close()
}

// Read decodes the single data variable of a NetCDF raster file.
func Read(path string) (*Grid, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open raster file: %w", err)
	}
	defer r.Close()

	f, err := cdf.Open(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read raster header: %w", err)
	}
	info, err := headerInfo(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	name := f.Header.Variables()[0]

	dims := f.Header.Lengths(name)
	if len(dims) != 2 || dims[0] != info.NY || dims[1] != info.NX {
		return nil, fmt.Errorf("%s: variable %s dims %v do not match frame (%d, %d)",
			path, name, dims, info.NY, info.NX)
	}
	g := NewGrid(info)
	buf := make([]float64, info.NY*info.NX)
	if _, err := f.Reader(name, nil, nil).Read(buf); err != nil {
		return nil, fmt.Errorf("failed to read raster variable %s: %w", name, err)
	}
	copy(g.Data.Elements, buf)
	return g, nil
}

// ReadInfo decodes only the frame attributes of a NetCDF raster file.
func ReadInfo(path string) (GridInfo, error) {
	r, err := os.Open(path)
	if err != nil {
		return GridInfo{}, fmt.Errorf("failed to open raster file: %w", err)
	}
	defer r.Close()

	f, err := cdf.Open(r)
	if err != nil {
		return GridInfo{}, fmt.Errorf("failed to read raster header: %w", err)
	}
	info, err := headerInfo(f)
	if err != nil {
		return GridInfo{}, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

func headerInfo(f *cdf.File) (GridInfo, error) {
	var info GridInfo
	var ok bool
	for _, a := range []struct {
		key string
		dst *float64
	}{
		{"x0", &info.X0},
		{"y0", &info.Y0},
		{"dx", &info.DX},
		{"dy", &info.DY},
		{"nodata", &info.Nodata},
	} {
		v, isFloat := f.Header.GetAttribute("", a.key).([]float64)
		if !isFloat || len(v) == 0 {
			return info, fmt.Errorf("missing or malformed attribute %q", a.key)
		}
		*a.dst = v[0]
	}
	if info.Proj4, ok = f.Header.GetAttribute("", "proj4").(string); !ok {
		return info, fmt.Errorf("missing or malformed attribute %q", "proj4")
	}
	vars := f.Header.Variables()
	if len(vars) != 1 {
		return info, fmt.Errorf("expected one data variable, found %d", len(vars))
	}
	dims := f.Header.Lengths(vars[0])
	if len(dims) != 2 {
		return info, fmt.Errorf("expected 2 dims (y, x), found %d", len(dims))
	}
	info.NY, info.NX = dims[0], dims[1]
	return info, nil
}
