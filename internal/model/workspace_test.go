package model

import (
	"path/filepath"
	"testing"

	"github.com/testacc-art/invest/internal/fsutil"
	"github.com/testacc-art/invest/internal/testutil"
)

func TestWorkspacePaths(t *testing.T) {
	ws := newWorkspace("w", "")
	cases := []struct {
		name string
		got  string
		want string
	}{
		{"aligned raster", ws.intermediate("aligned_lulc"), filepath.Join("w", "intermediate", "aligned_lulc.nc")},
		{"reclassified raster", ws.intermediate("kc"), filepath.Join("w", "intermediate", "kc.nc")},
		{"per pixel raster", ws.perPixel("fractp"), filepath.Join("w", "output", "per_pixel", "fractp.nc")},
		{"zonal stats", ws.zonalStats("watershed", "precip"), filepath.Join("w", "intermediate", "zonal_stats", "watershed_precip.gob")},
		{"geojson results", ws.vectorResults("watershed", "geojson"), filepath.Join("w", "output", "watershed_results_wyield.geojson")},
		{"csv results", ws.vectorResults("subwatershed", "csv"), filepath.Join("w", "output", "subwatershed_results_wyield.csv")},
		{"task registry", ws.registryPath(), filepath.Join("w", "intermediate", "task_registry.db")},
		{"nodata registry", ws.nodataRegistryPath(), filepath.Join("w", "intermediate", "nodata_registry.json")},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.got != c.want {
				t.Errorf("got %s, want %s", c.got, c.want)
			}
		})
	}
}

// The suffix lands before the extension on every run product, but never
// on the registries, which are shared across suffixed runs.
func TestWorkspaceSuffix(t *testing.T) {
	ws := newWorkspace("w", "2020")
	cases := []struct {
		name string
		got  string
		want string
	}{
		{"intermediate", ws.intermediate("pet"), filepath.Join("w", "intermediate", "pet_2020.nc")},
		{"per pixel", ws.perPixel("wyield"), filepath.Join("w", "output", "per_pixel", "wyield_2020.nc")},
		{"zonal stats", ws.zonalStats("subwatershed", "demand"), filepath.Join("w", "intermediate", "zonal_stats", "subwatershed_demand_2020.gob")},
		{"vector results", ws.vectorResults("watershed", "csv"), filepath.Join("w", "output", "watershed_results_wyield_2020.csv")},
		{"task registry", ws.registryPath(), filepath.Join("w", "intermediate", "task_registry.db")},
		{"nodata registry", ws.nodataRegistryPath(), filepath.Join("w", "intermediate", "nodata_registry.json")},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.got != c.want {
				t.Errorf("got %s, want %s", c.got, c.want)
			}
		})
	}
}

func TestWorkspaceBuild(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	ws := newWorkspace(filepath.Join("data", "run"), "")
	testutil.AssertNoError(t, ws.build(fs))

	for _, dir := range []string{ws.intermediateDir(), ws.zonalDir(), ws.outputDir(), ws.perPixelDir()} {
		if !fs.Exists(dir) {
			t.Errorf("directory %s was not created", dir)
		}
	}
}
