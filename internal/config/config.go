// Package config loads and validates the YAML run configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/testacc-art/invest/internal/rasters"
	"github.com/testacc-art/invest/internal/tables"
	"github.com/testacc-art/invest/internal/vectors"
)

// RunConfig holds one model run's parameters. Keys mirror the model's
// parameter names. Optional scalars use pointer fields so "absent" is
// distinguishable from a zero value.
type RunConfig struct {
	WorkspaceDir             string   `yaml:"workspace_dir"`
	ResultsSuffix            *string  `yaml:"results_suffix,omitempty"`
	LulcPath                 string   `yaml:"lulc_path"`
	DepthToRootRestLayerPath string   `yaml:"depth_to_root_rest_layer_path"`
	PrecipitationPath        string   `yaml:"precipitation_path"`
	EtoPath                  string   `yaml:"eto_path"`
	PawcPath                 string   `yaml:"pawc_path"`
	WatershedsPath           string   `yaml:"watersheds_path"`
	SubWatershedsPath        *string  `yaml:"sub_watersheds_path,omitempty"`
	BiophysicalTablePath     string   `yaml:"biophysical_table_path"`
	SeasonalityConstant      *float64 `yaml:"seasonality_constant,omitempty"`
	DemandTablePath          *string  `yaml:"demand_table_path,omitempty"`
	ValuationTablePath       *string  `yaml:"valuation_table_path,omitempty"`
	NWorkers                 *int     `yaml:"n_workers,omitempty"`
}

// Load reads a RunConfig from a YAML file. It does not validate the
// run parameters; call Validate for that.
func Load(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &RunConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return cfg, nil
}

// GetResultsSuffix returns the results_suffix value or "".
func (c *RunConfig) GetResultsSuffix() string {
	if c.ResultsSuffix == nil {
		return ""
	}
	return *c.ResultsSuffix
}

// GetSubWatershedsPath returns the sub_watersheds_path value or "".
func (c *RunConfig) GetSubWatershedsPath() string {
	if c.SubWatershedsPath == nil {
		return ""
	}
	return *c.SubWatershedsPath
}

// GetSeasonalityConstant returns the seasonality_constant value or 0.
func (c *RunConfig) GetSeasonalityConstant() float64 {
	if c.SeasonalityConstant == nil {
		return 0
	}
	return *c.SeasonalityConstant
}

// GetDemandTablePath returns the demand_table_path value or "".
func (c *RunConfig) GetDemandTablePath() string {
	if c.DemandTablePath == nil {
		return ""
	}
	return *c.DemandTablePath
}

// GetValuationTablePath returns the valuation_table_path value or "".
func (c *RunConfig) GetValuationTablePath() string {
	if c.ValuationTablePath == nil {
		return ""
	}
	return *c.ValuationTablePath
}

// GetNWorkers returns the n_workers value or 0 (synchronous).
func (c *RunConfig) GetNWorkers() int {
	if c.NWorkers == nil {
		return 0
	}
	return *c.NWorkers
}

// HasDemand reports whether a demand table is configured.
func (c *RunConfig) HasDemand() bool { return c.GetDemandTablePath() != "" }

// HasValuation reports whether a valuation table is configured.
func (c *RunConfig) HasValuation() bool { return c.GetValuationTablePath() != "" }

// HasSubWatersheds reports whether a subwatershed vector is configured.
func (c *RunConfig) HasSubWatersheds() bool { return c.GetSubWatershedsPath() != "" }

// Issue is one validation problem, naming the offending keys.
type Issue struct {
	Keys    []string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", strings.Join(i.Keys, ", "), i.Message)
}

// Validate checks the whole configuration and returns every problem
// found, never stopping at the first. An empty slice means the run can
// proceed.
func (c *RunConfig) Validate() []Issue {
	var issues []Issue

	required := []struct {
		key   string
		value string
	}{
		{"workspace_dir", c.WorkspaceDir},
		{"lulc_path", c.LulcPath},
		{"depth_to_root_rest_layer_path", c.DepthToRootRestLayerPath},
		{"precipitation_path", c.PrecipitationPath},
		{"eto_path", c.EtoPath},
		{"pawc_path", c.PawcPath},
		{"watersheds_path", c.WatershedsPath},
		{"biophysical_table_path", c.BiophysicalTablePath},
	}
	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	if c.SeasonalityConstant == nil {
		missing = append(missing, "seasonality_constant")
	}
	if len(missing) > 0 {
		issues = append(issues, Issue{Keys: missing, Message: "required key missing or empty"})
	}

	if c.HasValuation() && !c.HasDemand() {
		issues = append(issues, Issue{
			Keys:    []string{"demand_table_path"},
			Message: "required when valuation_table_path is set",
		})
	}
	if c.SeasonalityConstant != nil && *c.SeasonalityConstant <= 0 {
		issues = append(issues, Issue{
			Keys:    []string{"seasonality_constant"},
			Message: fmt.Sprintf("must be greater than 0, got %g", *c.SeasonalityConstant),
		})
	}
	if c.NWorkers != nil && *c.NWorkers < 0 {
		issues = append(issues, Issue{
			Keys:    []string{"n_workers"},
			Message: fmt.Sprintf("must be 0 or more, got %d", *c.NWorkers),
		})
	}

	rasterPaths := []struct {
		key  string
		path string
	}{
		{"lulc_path", c.LulcPath},
		{"depth_to_root_rest_layer_path", c.DepthToRootRestLayerPath},
		{"precipitation_path", c.PrecipitationPath},
		{"eto_path", c.EtoPath},
		{"pawc_path", c.PawcPath},
	}
	for _, r := range rasterPaths {
		if r.path == "" {
			continue
		}
		if _, err := rasters.ReadInfo(r.path); err != nil {
			issues = append(issues, Issue{Keys: []string{r.key}, Message: err.Error()})
		}
	}

	if c.WatershedsPath != "" {
		if _, err := vectors.Read(c.WatershedsPath, "ws_id"); err != nil {
			issues = append(issues, Issue{Keys: []string{"watersheds_path"}, Message: err.Error()})
		}
	}
	if p := c.GetSubWatershedsPath(); p != "" {
		if _, err := vectors.Read(p, "subws_id"); err != nil {
			issues = append(issues, Issue{Keys: []string{"sub_watersheds_path"}, Message: err.Error()})
		}
	}

	if c.BiophysicalTablePath != "" {
		if _, err := tables.LoadBiophysical(c.BiophysicalTablePath); err != nil {
			issues = append(issues, Issue{Keys: []string{"biophysical_table_path"}, Message: err.Error()})
		}
	}
	if p := c.GetDemandTablePath(); p != "" {
		if _, err := tables.LoadDemand(p); err != nil {
			issues = append(issues, Issue{Keys: []string{"demand_table_path"}, Message: err.Error()})
		}
	}
	if p := c.GetValuationTablePath(); p != "" {
		if _, err := tables.LoadValuation(p); err != nil {
			issues = append(issues, Issue{Keys: []string{"valuation_table_path"}, Message: err.Error()})
		}
	}

	return issues
}
