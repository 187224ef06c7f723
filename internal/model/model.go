// Package model orchestrates a full annual water yield run: it loads the
// attribute tables and watershed vectors, fails fast on coverage gaps,
// and wires the raster operators, zonal aggregation and derivation
// stages into a task graph whose completed work survives restarts.
package model

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/testacc-art/invest/internal/config"
	"github.com/testacc-art/invest/internal/fsutil"
	"github.com/testacc-art/invest/internal/pipeline"
	"github.com/testacc-art/invest/internal/rasters"
	"github.com/testacc-art/invest/internal/tables"
	"github.com/testacc-art/invest/internal/taskgraph"
	"github.com/testacc-art/invest/internal/valuation"
	"github.com/testacc-art/invest/internal/vectors"
	"github.com/testacc-art/invest/internal/waterbalance"
	"github.com/testacc-art/invest/internal/zonal"
)

// Id fields expected on the input vectors.
const (
	WatershedIDField    = "ws_id"
	SubWatershedIDField = "subws_id"
)

// runner holds everything loaded up front, before the task graph starts.
type runner struct {
	log zerolog.Logger
	cfg *config.RunConfig
	ws  workspace

	bio       *tables.Biophysical
	demand    map[int]float64
	valuation map[int]valuation.Params

	watersheds    *vectors.FeatureSet
	subwatersheds *vectors.FeatureSet
}

// Execute runs the model described by cfg. The config is assumed to have
// passed Validate; precondition failures Validate would have caught still
// surface here as errors, just without the batched reporting.
func Execute(ctx context.Context, log zerolog.Logger, cfg *config.RunConfig) error {
	r := &runner{log: log, cfg: cfg, ws: newWorkspace(cfg.WorkspaceDir, cfg.GetResultsSuffix())}
	if err := r.prepare(); err != nil {
		return err
	}

	reg, err := taskgraph.OpenRegistry(r.ws.registryPath(), log)
	if err != nil {
		return err
	}
	defer reg.Close()
	log.Info().
		Str("run_id", reg.RunID()).
		Str("workspace", cfg.WorkspaceDir).
		Int("workers", cfg.GetNWorkers()).
		Msg("starting annual water yield run")

	g := taskgraph.New(log, reg, cfg.GetNWorkers())
	if err := r.buildGraph(g); err != nil {
		return err
	}
	if err := g.Run(ctx); err != nil {
		return err
	}

	log.Info().
		Str("watershed_results", r.ws.vectorResults("watershed", "geojson")).
		Msg("annual water yield run complete")
	return nil
}

// prepare builds the workspace, loads every table and vector, reprojects
// the vectors onto the raster CRS, and runs the checks that must fail
// before any raster work starts.
func (r *runner) prepare() error {
	if err := r.ws.build(fsutil.OSFileSystem{}); err != nil {
		return err
	}

	bio, err := tables.LoadBiophysical(r.cfg.BiophysicalTablePath)
	if err != nil {
		return fmt.Errorf("biophysical table: %w", err)
	}
	r.bio = bio
	if r.cfg.HasDemand() {
		if r.demand, err = tables.LoadDemand(r.cfg.GetDemandTablePath()); err != nil {
			return fmt.Errorf("demand table: %w", err)
		}
	}
	if r.cfg.HasValuation() {
		if r.valuation, err = tables.LoadValuation(r.cfg.GetValuationTablePath()); err != nil {
			return fmt.Errorf("valuation table: %w", err)
		}
	}

	// Source sentinels feed both the nodata registry and, via the file
	// headers, every grid the tasks read back.
	nodata := waterbalance.NewNodataRegistry()
	var lulcInfo rasters.GridInfo
	for _, in := range []struct {
		role string
		path string
	}{
		{waterbalance.RoleLULC, r.cfg.LulcPath},
		{waterbalance.RoleETo, r.cfg.EtoPath},
		{waterbalance.RolePrecip, r.cfg.PrecipitationPath},
		{waterbalance.RoleRootRestricting, r.cfg.DepthToRootRestLayerPath},
		{waterbalance.RolePAWC, r.cfg.PawcPath},
	} {
		info, err := rasters.ReadInfo(in.path)
		if err != nil {
			return fmt.Errorf("%s raster: %w", in.role, err)
		}
		nodata.Register(in.role, info.Nodata)
		if in.role == waterbalance.RoleLULC {
			lulcInfo = info
		}
	}
	if err := nodata.Save(r.ws.nodataRegistryPath()); err != nil {
		return err
	}

	if r.watersheds, err = vectors.Read(r.cfg.WatershedsPath, WatershedIDField); err != nil {
		return fmt.Errorf("watersheds: %w", err)
	}
	if err := r.watersheds.AlignCRS(lulcInfo.Proj4); err != nil {
		return fmt.Errorf("watersheds: %w", err)
	}
	if r.cfg.HasSubWatersheds() {
		if r.subwatersheds, err = vectors.Read(r.cfg.GetSubWatershedsPath(), SubWatershedIDField); err != nil {
			return fmt.Errorf("subwatersheds: %w", err)
		}
		if err := r.subwatersheds.AlignCRS(lulcInfo.Proj4); err != nil {
			return fmt.Errorf("subwatersheds: %w", err)
		}
	}

	if r.cfg.HasValuation() {
		if err := checkValuationCoverage(r.watersheds, r.valuation); err != nil {
			return err
		}
	}
	return nil
}

// checkValuationCoverage verifies that every watershed id resolves in the
// valuation table, enumerating all misses at once.
func checkValuationCoverage(fs *vectors.FeatureSet, params map[int]valuation.Params) error {
	var missing []int
	for _, id := range fs.IDs() {
		if _, ok := params[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Ints(missing)
	return fmt.Errorf("valuation table is missing %s entries: %v", fs.IDField, missing)
}

// polygonSet is one aggregation target: the watershed set, and the
// subwatershed set when configured. Valuation applies to watersheds only.
type polygonSet struct {
	name    string
	path    string
	fs      *vectors.FeatureSet
	valuate bool
}

// zonalSource is one raster to aggregate over every polygon set, with
// the task that produces it.
type zonalSource struct {
	key  string
	path string
	dep  *taskgraph.Task
}

// buildGraph wires the whole run into g. Insertion order is a valid
// sequential order, so the graph behaves identically at workers = 0.
func (r *runner) buildGraph(g *taskgraph.Graph) (err error) {
	add := func(t *taskgraph.Task) *taskgraph.Task {
		if err == nil {
			err = g.Add(t)
		}
		return t
	}

	sourcePaths := []string{
		r.cfg.LulcPath,
		r.cfg.EtoPath,
		r.cfg.PrecipitationPath,
		r.cfg.DepthToRootRestLayerPath,
		r.cfg.PawcPath,
	}
	alignedNames := []string{"lulc", "eto", "precip", "depth", "pawc"}
	alignedPaths := make([]string, len(alignedNames))
	for i, name := range alignedNames {
		alignedPaths[i] = r.ws.intermediate("aligned_" + name)
	}
	alignedLULC, alignedETo, alignedPrecip := alignedPaths[0], alignedPaths[1], alignedPaths[2]
	alignedDepth, alignedPAWC := alignedPaths[3], alignedPaths[4]

	kcPath := r.ws.intermediate("kc")
	rootDepthPath := r.ws.intermediate("root_depth")
	vegPath := r.ws.intermediate("veg")
	demandPath := r.ws.intermediate("demand")
	petPath := r.ws.intermediate("pet")

	fractpPath := r.ws.perPixel("fractp")
	aetPath := r.ws.perPixel("aet")
	wyieldPath := r.ws.perPixel("wyield")

	// Everything downstream pairs cells by index, so the five inputs are
	// resampled onto the land-cover lattice, clipped to the watersheds.
	clip := r.watersheds.Bounds()
	align := add(&taskgraph.Task{
		Name:    "align_rasters",
		Inputs:  append(append([]string{}, sourcePaths...), r.cfg.WatershedsPath),
		Targets: alignedPaths,
		Fn: func(ctx context.Context) error {
			sources := make([]*rasters.Grid, len(sourcePaths))
			for i, p := range sourcePaths {
				src, err := rasters.Read(p)
				if err != nil {
					return err
				}
				sources[i] = src
			}
			grids, err := rasters.Align(sources, 0, clip)
			if err != nil {
				return err
			}
			for i, aligned := range grids {
				if err := rasters.Write(alignedPaths[i], alignedNames[i], aligned); err != nil {
					return err
				}
			}
			return nil
		},
	})

	// Gate every reclassification on table coverage so an unmapped
	// land-cover code aborts before any operator runs.
	coverageInputs := []string{alignedLULC, r.cfg.BiophysicalTablePath}
	if r.cfg.HasDemand() {
		coverageInputs = append(coverageInputs, r.cfg.GetDemandTablePath())
	}
	coverage := add(&taskgraph.Task{
		Name:   "check_landcover_coverage",
		Inputs: coverageInputs,
		Deps:   []*taskgraph.Task{align},
		Fn: func(ctx context.Context) error {
			lulc, err := rasters.Read(alignedLULC)
			if err != nil {
				return err
			}
			return tables.CheckCoverage(rasters.UniqueValues(lulc), lulc.Info.Nodata, r.bio, r.demand)
		},
	})

	reclass := func(name, target, tablePath string, table map[int]float64) *taskgraph.Task {
		return add(&taskgraph.Task{
			Name:    "reclassify_" + name,
			Inputs:  []string{alignedLULC, tablePath},
			Targets: []string{target},
			Deps:    []*taskgraph.Task{coverage},
			Fn: func(ctx context.Context) error {
				lulc, err := rasters.Read(alignedLULC)
				if err != nil {
					return err
				}
				out, err := rasters.Reclassify(lulc, table, waterbalance.OutNodata)
				if err != nil {
					return err
				}
				return rasters.Write(target, name, out)
			},
		})
	}
	kc := reclass("kc", kcPath, r.cfg.BiophysicalTablePath, r.bio.KcMap())
	rootDepth := reclass("root_depth", rootDepthPath, r.cfg.BiophysicalTablePath, r.bio.RootDepthMap())
	veg := reclass("veg", vegPath, r.cfg.BiophysicalTablePath, r.bio.VegMap())
	var demand *taskgraph.Task
	if r.cfg.HasDemand() {
		demand = reclass("demand", demandPath, r.cfg.GetDemandTablePath(), r.demand)
	}

	pet := add(&taskgraph.Task{
		Name:    "compute_pet",
		Inputs:  []string{alignedETo, kcPath},
		Targets: []string{petPath},
		Deps:    []*taskgraph.Task{align, kc},
		Fn: func(ctx context.Context) error {
			eto, err := rasters.Read(alignedETo)
			if err != nil {
				return err
			}
			kcGrid, err := rasters.Read(kcPath)
			if err != nil {
				return err
			}
			out, err := waterbalance.PET(eto, kcGrid)
			if err != nil {
				return err
			}
			return rasters.Write(petPath, "pet", out)
		},
	})

	seasonality := r.cfg.GetSeasonalityConstant()
	fractp := add(&taskgraph.Task{
		Name:    "compute_fractp",
		Params:  fmt.Sprintf("seasonality=%g", seasonality),
		Inputs:  []string{kcPath, alignedETo, alignedPrecip, rootDepthPath, alignedDepth, alignedPAWC, vegPath},
		Targets: []string{fractpPath},
		Deps:    []*taskgraph.Task{align, kc, rootDepth, veg},
		Fn: func(ctx context.Context) error {
			grids := make(map[string]*rasters.Grid, 7)
			for name, p := range map[string]string{
				"kc":     kcPath,
				"eto":    alignedETo,
				"precip": alignedPrecip,
				"root":   rootDepthPath,
				"soil":   alignedDepth,
				"pawc":   alignedPAWC,
				"veg":    vegPath,
			} {
				g, err := rasters.Read(p)
				if err != nil {
					return err
				}
				grids[name] = g
			}
			out, err := waterbalance.Fractp(waterbalance.FractpInputs{
				Kc:        grids["kc"],
				ETo:       grids["eto"],
				Precip:    grids["precip"],
				RootDepth: grids["root"],
				SoilDepth: grids["soil"],
				PAWC:      grids["pawc"],
				Veg:       grids["veg"],
			}, seasonality)
			if err != nil {
				return err
			}
			return rasters.Write(fractpPath, "fractp", out)
		},
	})

	fromFractp := func(name, target string, op func(fractp, precip *rasters.Grid) (*rasters.Grid, error)) *taskgraph.Task {
		return add(&taskgraph.Task{
			Name:    "compute_" + name,
			Inputs:  []string{fractpPath, alignedPrecip},
			Targets: []string{target},
			Deps:    []*taskgraph.Task{align, fractp},
			Fn: func(ctx context.Context) error {
				fr, err := rasters.Read(fractpPath)
				if err != nil {
					return err
				}
				precip, err := rasters.Read(alignedPrecip)
				if err != nil {
					return err
				}
				out, err := op(fr, precip)
				if err != nil {
					return err
				}
				return rasters.Write(target, name, out)
			},
		})
	}
	aet := fromFractp("aet", aetPath, waterbalance.AET)
	wyield := fromFractp("wyield", wyieldPath, waterbalance.Wyield)

	sets := []polygonSet{{
		name:    "watershed",
		path:    r.cfg.WatershedsPath,
		fs:      r.watersheds,
		valuate: r.cfg.HasValuation(),
	}}
	if r.subwatersheds != nil {
		sets = append(sets, polygonSet{
			name: "subwatershed",
			path: r.cfg.GetSubWatershedsPath(),
			fs:   r.subwatersheds,
		})
	}

	zonalRasters := []zonalSource{
		{"precip", alignedPrecip, align},
		{"pet", petPath, pet},
		{"aet", aetPath, aet},
		{"wyield", wyieldPath, wyield},
	}
	if demand != nil {
		zonalRasters = append(zonalRasters, zonalSource{"demand", demandPath, demand})
	}

	for _, set := range sets {
		set := set
		statPaths := make(map[string]string, len(zonalRasters))
		deriveDeps := make([]*taskgraph.Task, 0, len(zonalRasters))
		deriveInputs := make([]string, 0, len(zonalRasters)+1)
		for _, zr := range zonalRasters {
			target := r.ws.zonalStats(set.name, zr.key)
			statPaths[zr.key] = target
			deriveInputs = append(deriveInputs, target)
			rasterPath := zr.path
			deriveDeps = append(deriveDeps, add(&taskgraph.Task{
				Name:    "zonal_" + set.name + "_" + zr.key,
				Inputs:  []string{rasterPath, set.path},
				Targets: []string{target},
				Deps:    []*taskgraph.Task{zr.dep},
				Fn: func(ctx context.Context) error {
					grid, err := rasters.Read(rasterPath)
					if err != nil {
						return err
					}
					return zonal.Save(target, zonal.Compute(grid, set.fs))
				},
			}))
		}

		if set.valuate {
			deriveInputs = append(deriveInputs, r.cfg.GetValuationTablePath())
		}
		add(&taskgraph.Task{
			Name:   "derive_" + set.name,
			Inputs: deriveInputs,
			Targets: []string{
				r.ws.vectorResults(set.name, "geojson"),
				r.ws.vectorResults(set.name, "csv"),
			},
			Deps: deriveDeps,
			Fn: func(ctx context.Context) error {
				return r.deriveSet(set, statPaths)
			},
		})
	}
	return err
}

// deriveSet loads the aggregated statistics for one polygon set, applies
// the derivation stages in model order to a fresh copy of the features,
// and exports the result as GeoJSON plus CSV. Both exports happen here so
// the CSV columns stay in stage-attach order.
func (r *runner) deriveSet(set polygonSet, statPaths map[string]string) error {
	stats := make(map[string]map[int]zonal.Stats, len(statPaths))
	for key, p := range statPaths {
		s, err := zonal.Load(p)
		if err != nil {
			return err
		}
		stats[key] = s
	}

	stages := []pipeline.Stage{
		&pipeline.AttachMean{Field: pipeline.FieldPrecipMean, Stats: stats["precip"], Log: r.log},
		&pipeline.AttachMean{Field: pipeline.FieldPETMean, Stats: stats["pet"], Log: r.log},
		&pipeline.AttachMean{Field: pipeline.FieldAETMean, Stats: stats["aet"], Log: r.log},
		&pipeline.AttachMean{Field: pipeline.FieldWyieldMean, Stats: stats["wyield"], Log: r.log},
		pipeline.WaterYieldVolume{},
	}
	if _, ok := stats["demand"]; ok {
		stages = append(stages,
			&pipeline.AttachConsumption{Stats: stats["demand"], Log: r.log},
			pipeline.RealizedSupply{},
		)
	}
	if set.valuate {
		stages = append(stages, &pipeline.Valuation{Params: r.valuation})
	}

	out := set.fs.Copy()
	if err := pipeline.Run(r.log, out, stages); err != nil {
		return err
	}
	if err := vectors.WriteGeoJSON(r.ws.vectorResults(set.name, "geojson"), out); err != nil {
		return err
	}
	return vectors.WriteCSV(r.ws.vectorResults(set.name, "csv"), out)
}
