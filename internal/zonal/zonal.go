// Package zonal aggregates grid values over polygon features: per-feature
// sum, count, min, and max of valid cells, with gob persistence so
// aggregation tasks can stage their results between processes.
package zonal

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"gonum.org/v1/gonum/floats"

	"github.com/testacc-art/invest/internal/rasters"
	"github.com/testacc-art/invest/internal/vectors"
)

// Stats holds the aggregate of one feature over a grid's valid cells.
type Stats struct {
	Sum   float64
	Count int
	Min   float64
	Max   float64
}

// summarize reduces a feature's collected samples. An empty slice
// yields the zero Stats.
func summarize(samples []float64) Stats {
	if len(samples) == 0 {
		return Stats{}
	}
	return Stats{
		Sum:   floats.Sum(samples),
		Count: len(samples),
		Min:   floats.Min(samples),
		Max:   floats.Max(samples),
	}
}

// Mean returns Sum/Count, or 0 for a feature with no covered cells.
func (s Stats) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

type indexedFeature struct {
	geom.Polygonal
	id int
}

// Compute aggregates g over every feature in fs. A cell belongs to a
// feature when their intersection covers at least half the cell area, so
// every valid cell lands in at most one disjoint feature but overlapping
// features each count it. Nodata cells are ignored. Features outside the
// grid frame come back with Count 0.
func Compute(g *rasters.Grid, fs *vectors.FeatureSet) map[int]Stats {
	tree := rtree.NewTree(25, 50)
	samples := make(map[int][]float64, len(fs.Features))
	for _, f := range fs.Features {
		tree.Insert(&indexedFeature{Polygonal: f.Geom, id: f.ID})
		samples[f.ID] = nil
	}

	halfCell := g.Info.CellArea() / 2
	for row := 0; row < g.Info.NY; row++ {
		for col := 0; col < g.Info.NX; col++ {
			v := g.Value(row, col)
			if g.IsNodata(v) {
				continue
			}
			box := g.Info.CellBounds(row, col)
			for _, item := range tree.SearchIntersect(box) {
				fi := item.(*indexedFeature)
				isect := box.Intersection(fi.Polygonal)
				if isect == nil {
					continue
				}
				if isect.Area() < halfCell {
					continue
				}
				samples[fi.id] = append(samples[fi.id], v)
			}
		}
	}

	out := make(map[int]Stats, len(samples))
	for id, vals := range samples {
		out[id] = summarize(vals)
	}
	return out
}

// Save writes stats to path as gob.
func Save(path string, stats map[int]Stats) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create zonal stats file: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(stats); err != nil {
		return fmt.Errorf("failed to encode zonal stats: %w", err)
	}
	return f.Close()
}

// Load reads stats written by Save.
func Load(path string) (map[int]Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open zonal stats file: %w", err)
	}
	defer f.Close()
	var stats map[int]Stats
	if err := gob.NewDecoder(f).Decode(&stats); err != nil {
		return nil, fmt.Errorf("failed to decode zonal stats: %w", err)
	}
	return stats, nil
}
