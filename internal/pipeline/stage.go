// Package pipeline derives watershed attributes in explicit, checked
// stages. Each stage declares the fields it reads and the fields it
// attaches; the runner refuses to apply a stage whose requirements were
// not produced by an earlier stage or present on the base feature set, so
// an ordering mistake surfaces as an error instead of silent garbage.
package pipeline

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/testacc-art/invest/internal/vectors"
)

// Stage computes one batch of per-feature attributes.
type Stage interface {
	// Name identifies the stage in logs and errors.
	Name() string

	// Requires lists fields that must exist before Apply runs.
	Requires() []string

	// Produces lists fields Apply attaches to every feature.
	Produces() []string

	// Apply attaches the stage's fields, mutating fs in place.
	Apply(fs *vectors.FeatureSet) error
}

// Run applies stages in order over fs. Before each stage it verifies that
// everything the stage requires is available, failing with the stage name
// and the sorted missing fields otherwise.
func Run(log zerolog.Logger, fs *vectors.FeatureSet, stages []Stage) error {
	have := make(map[string]bool)
	for _, name := range fs.FieldNames() {
		have[name] = true
	}
	for _, st := range stages {
		var missing []string
		for _, req := range st.Requires() {
			if !have[req] {
				missing = append(missing, req)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("stage %s: unsatisfied requirements %v", st.Name(), missing)
		}
		log.Debug().Str("stage", st.Name()).Msg("applying derivation stage")
		if err := st.Apply(fs); err != nil {
			return fmt.Errorf("stage %s: %w", st.Name(), err)
		}
		for _, p := range st.Produces() {
			have[p] = true
		}
	}
	return nil
}
