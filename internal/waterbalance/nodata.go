// Package waterbalance implements the per-pixel hydrology of the annual
// water yield model: potential evapotranspiration, the Budyko-curve
// evapotranspiration fraction, actual evapotranspiration, and water
// yield. Operators are pure element-wise functions over grids sharing one
// frame. A cell that cannot be computed carries a sentinel value in the
// result; invalidity is data, never control flow.
package waterbalance

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// OutNodata marks out-of-domain cells in every derived grid. It is
// negative so a sign check can separate valid fractions from sentinels.
const OutNodata = -1.0

// Input roles tracked by the nodata registry.
const (
	RoleETo             = "eto"
	RolePrecip          = "precip"
	RoleRootRestricting = "root_restricting"
	RolePAWC            = "pawc"
	RoleLULC            = "lulc"
)

// NodataRegistry records the nodata sentinel of each model input next to
// the shared sentinel of derived grids, so diagnostics and downstream
// tools agree on what counts as missing. The registered sentinels are
// stamped onto grids at load time; operators read them from the grids.
type NodataRegistry struct {
	Sentinels map[string]float64
	Out       float64
}

// NewNodataRegistry returns an empty registry with the derived-grid
// sentinel already set.
func NewNodataRegistry() *NodataRegistry {
	return &NodataRegistry{Sentinels: make(map[string]float64), Out: OutNodata}
}

// Register records the sentinel of a named input role.
func (r *NodataRegistry) Register(role string, nodata float64) {
	r.Sentinels[role] = nodata
}

// Lookup returns the sentinel registered for role.
func (r *NodataRegistry) Lookup(role string) (float64, bool) {
	v, ok := r.Sentinels[role]
	return v, ok
}

// registryJSON is the persisted form. Sentinels become strings because
// encoding/json rejects NaN, and NaN is a common raster sentinel.
type registryJSON struct {
	Sentinels map[string]string `json:"sentinels"`
	Out       string            `json:"out_nodata"`
}

func formatSentinel(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func parseSentinel(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed sentinel %q: %w", s, err)
	}
	return v, nil
}

// Save writes the registry as indented JSON at path.
func (r *NodataRegistry) Save(path string) error {
	out := registryJSON{Sentinels: make(map[string]string, len(r.Sentinels)), Out: formatSentinel(r.Out)}
	for role, v := range r.Sentinels {
		out.Sentinels[role] = formatSentinel(v)
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode nodata registry: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write nodata registry: %w", err)
	}
	return nil
}

// LoadNodataRegistry reads a registry written by Save.
func LoadNodataRegistry(path string) (*NodataRegistry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read nodata registry: %w", err)
	}
	var in registryJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, fmt.Errorf("failed to decode nodata registry: %w", err)
	}
	r := NewNodataRegistry()
	if in.Out != "" {
		if r.Out, err = parseSentinel(in.Out); err != nil {
			return nil, err
		}
	}
	for role, s := range in.Sentinels {
		v, err := parseSentinel(s)
		if err != nil {
			return nil, err
		}
		r.Sentinels[role] = v
	}
	return r, nil
}
