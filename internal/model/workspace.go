package model

import (
	"fmt"
	"path/filepath"

	"github.com/testacc-art/invest/internal/fsutil"
)

// workspace resolves every file a run reads or writes under one root
// directory. The optional results suffix lands before each extension, so
// runs with different suffixes can share a workspace without clobbering
// each other's outputs.
type workspace struct {
	root   string
	suffix string
}

func newWorkspace(root, resultsSuffix string) workspace {
	suffix := resultsSuffix
	if suffix != "" {
		suffix = "_" + suffix
	}
	return workspace{root: root, suffix: suffix}
}

func (w workspace) intermediateDir() string { return filepath.Join(w.root, "intermediate") }
func (w workspace) zonalDir() string        { return filepath.Join(w.intermediateDir(), "zonal_stats") }
func (w workspace) outputDir() string       { return filepath.Join(w.root, "output") }
func (w workspace) perPixelDir() string     { return filepath.Join(w.outputDir(), "per_pixel") }

// build creates the directory tree the tasks write into.
func (w workspace) build(fs fsutil.FileSystem) error {
	for _, dir := range []string{w.zonalDir(), w.perPixelDir()} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create workspace directory %s: %w", dir, err)
		}
	}
	return nil
}

// intermediate names an aligned or reclassified raster.
func (w workspace) intermediate(name string) string {
	return filepath.Join(w.intermediateDir(), name+w.suffix+".nc")
}

// perPixel names one of the final per-pixel rasters.
func (w workspace) perPixel(name string) string {
	return filepath.Join(w.perPixelDir(), name+w.suffix+".nc")
}

// zonalStats names the aggregated statistics of one raster over one
// polygon set.
func (w workspace) zonalStats(set, raster string) string {
	return filepath.Join(w.zonalDir(), set+"_"+raster+w.suffix+".gob")
}

// vectorResults names a polygon-set result file; ext is "geojson" or "csv".
func (w workspace) vectorResults(set, ext string) string {
	return filepath.Join(w.outputDir(), set+"_results_wyield"+w.suffix+"."+ext)
}

func (w workspace) registryPath() string {
	return filepath.Join(w.intermediateDir(), "task_registry.db")
}

func (w workspace) nodataRegistryPath() string {
	return filepath.Join(w.intermediateDir(), "nodata_registry.json")
}
