package pipeline

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/testacc-art/invest/internal/valuation"
	"github.com/testacc-art/invest/internal/vectors"
	"github.com/testacc-art/invest/internal/zonal"
)

// Fields attached by the derivation stages.
const (
	FieldPrecipMean  = "precip_mn"
	FieldPETMean     = "PET_mn"
	FieldAETMean     = "AET_mn"
	FieldWyieldMean  = "wyield_mn"
	FieldWyieldVol   = "wyield_vol"
	FieldConsumVol   = "consum_vol"
	FieldConsumMean  = "consum_mn"
	FieldRsupplyVol  = "rsupply_vl"
	FieldRsupplyMean = "rsupply_mn"
	FieldEnergy      = "hp_energy"
	FieldNPV         = "hp_val"
)

// AttachMean writes each feature's mean over aggregated raster statistics
// into one field. A feature that covered no valid cells gets 0 and a
// warning rather than killing the run.
type AttachMean struct {
	Field string
	Stats map[int]zonal.Stats
	Log   zerolog.Logger
}

func (s *AttachMean) Name() string       { return "attach_mean:" + s.Field }
func (s *AttachMean) Requires() []string { return nil }
func (s *AttachMean) Produces() []string { return []string{s.Field} }

func (s *AttachMean) Apply(fs *vectors.FeatureSet) error {
	fs.RegisterField(s.Field)
	for _, f := range fs.Features {
		st, ok := s.Stats[f.ID]
		if !ok {
			return fmt.Errorf("no zonal statistics for %s %d", fs.IDField, f.ID)
		}
		if st.Count == 0 {
			s.Log.Warn().Str("field", s.Field).Int(fs.IDField, f.ID).
				Msg("feature covers no valid cells; mean set to 0")
		}
		f.Fields[s.Field] = st.Mean()
	}
	return nil
}

// WaterYieldVolume converts the mean yield depth (mm) into a volume using
// each polygon's area in native squared linear units: mm over m² gives m³
// after dividing by 1000.
type WaterYieldVolume struct{}

func (WaterYieldVolume) Name() string       { return "water_yield_volume" }
func (WaterYieldVolume) Requires() []string { return []string{FieldWyieldMean} }
func (WaterYieldVolume) Produces() []string { return []string{FieldWyieldVol} }

func (WaterYieldVolume) Apply(fs *vectors.FeatureSet) error {
	fs.RegisterField(FieldWyieldVol)
	for _, f := range fs.Features {
		f.Fields[FieldWyieldVol] = f.Fields[FieldWyieldMean] * f.Geom.Area() / 1000
	}
	return nil
}

// AttachConsumption writes the aggregated water demand: total volume and
// per-cell mean.
type AttachConsumption struct {
	Stats map[int]zonal.Stats
	Log   zerolog.Logger
}

func (s *AttachConsumption) Name() string       { return "attach_consumption" }
func (s *AttachConsumption) Requires() []string { return nil }
func (s *AttachConsumption) Produces() []string {
	return []string{FieldConsumVol, FieldConsumMean}
}

func (s *AttachConsumption) Apply(fs *vectors.FeatureSet) error {
	fs.RegisterField(FieldConsumVol)
	fs.RegisterField(FieldConsumMean)
	for _, f := range fs.Features {
		st, ok := s.Stats[f.ID]
		if !ok {
			return fmt.Errorf("no demand statistics for %s %d", fs.IDField, f.ID)
		}
		if st.Count == 0 {
			s.Log.Warn().Int(fs.IDField, f.ID).
				Msg("feature covers no valid demand cells; consumption set to 0")
		}
		f.Fields[FieldConsumVol] = st.Sum
		f.Fields[FieldConsumMean] = st.Mean()
	}
	return nil
}

// RealizedSupply subtracts consumption from yield, in both volume and
// mean terms.
type RealizedSupply struct{}

func (RealizedSupply) Name() string { return "realized_supply" }
func (RealizedSupply) Requires() []string {
	return []string{FieldWyieldVol, FieldWyieldMean, FieldConsumVol, FieldConsumMean}
}
func (RealizedSupply) Produces() []string {
	return []string{FieldRsupplyVol, FieldRsupplyMean}
}

func (RealizedSupply) Apply(fs *vectors.FeatureSet) error {
	fs.RegisterField(FieldRsupplyVol)
	fs.RegisterField(FieldRsupplyMean)
	for _, f := range fs.Features {
		f.Fields[FieldRsupplyVol] = f.Fields[FieldWyieldVol] - f.Fields[FieldConsumVol]
		f.Fields[FieldRsupplyMean] = f.Fields[FieldWyieldMean] - f.Fields[FieldConsumMean]
	}
	return nil
}

// Valuation prices each watershed's realized supply: annual energy
// production and its net present value. Parameter coverage is verified
// before any computation starts, so a missing entry here is a wiring bug.
type Valuation struct {
	Params map[int]valuation.Params
}

func (s *Valuation) Name() string       { return "valuation" }
func (s *Valuation) Requires() []string { return []string{FieldRsupplyVol} }
func (s *Valuation) Produces() []string { return []string{FieldEnergy, FieldNPV} }

func (s *Valuation) Apply(fs *vectors.FeatureSet) error {
	fs.RegisterField(FieldEnergy)
	fs.RegisterField(FieldNPV)
	for _, f := range fs.Features {
		p, ok := s.Params[f.ID]
		if !ok {
			return fmt.Errorf("no valuation parameters for %s %d", fs.IDField, f.ID)
		}
		energy := valuation.Energy(p, f.Fields[FieldRsupplyVol])
		f.Fields[FieldEnergy] = energy
		f.Fields[FieldNPV] = valuation.NPV(p, energy)
	}
	return nil
}
