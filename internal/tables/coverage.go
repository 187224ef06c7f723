package tables

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/testacc-art/invest/internal/rasters"
)

// CheckCoverage verifies that every distinct value in the clipped
// land-cover grid resolves in the biophysical table and, when a demand
// table is supplied, in the demand table too. The grid's own nodata value
// is accepted implicitly so it is never reported missing. All offending
// codes are gathered into ONE error carrying both sorted lists; this
// check must pass before any reclassification or operator runs.
func CheckCoverage(gridValues []float64, gridNodata float64, bio *Biophysical, demand map[int]float64) error {
	var missingBio, missingDemand []int
	for _, v := range gridValues {
		if rasters.MatchesNodata(v, gridNodata) || math.IsNaN(v) {
			continue
		}
		code := int(math.Round(v))
		if _, ok := bio.Class(code); !ok {
			missingBio = append(missingBio, code)
		}
		if demand != nil {
			if _, ok := demand[code]; !ok {
				missingDemand = append(missingDemand, code)
			}
		}
	}
	if len(missingBio) == 0 && len(missingDemand) == 0 {
		return nil
	}
	sort.Ints(missingBio)
	sort.Ints(missingDemand)
	var parts []string
	if len(missingBio) > 0 {
		parts = append(parts, fmt.Sprintf("biophysical table is missing codes %v", missingBio))
	}
	if len(missingDemand) > 0 {
		parts = append(parts, fmt.Sprintf("demand table is missing codes %v", missingDemand))
	}
	return fmt.Errorf("land cover values have no table entry: %s", strings.Join(parts, "; "))
}
