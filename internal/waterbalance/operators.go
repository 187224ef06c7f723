package waterbalance

import (
	"fmt"
	"math"

	"github.com/testacc-art/invest/internal/rasters"
)

// climateWCap bounds the Budyko shape parameter; values above it make the
// curve numerically indistinguishable while inviting overflow in the
// exponentiation.
const climateWCap = 5.0

// derivedGrid allocates a result grid on the same frame as info, carrying
// the shared out-of-domain sentinel.
func derivedGrid(info rasters.GridInfo) *rasters.Grid {
	info.Nodata = OutNodata
	return rasters.NewGrid(info)
}

type namedGrid struct {
	name string
	g    *rasters.Grid
}

func checkFrames(ref rasters.GridInfo, grids []namedGrid) error {
	for _, ng := range grids {
		if !ng.g.Info.SameFrame(ref) {
			return fmt.Errorf("input grid %q does not share the reference frame", ng.name)
		}
	}
	return nil
}

// PET computes potential evapotranspiration, eto scaled by the crop
// coefficient. A cell is the sentinel where either input is nodata.
func PET(eto, kc *rasters.Grid) (*rasters.Grid, error) {
	if err := checkFrames(eto.Info, []namedGrid{{"kc", kc}}); err != nil {
		return nil, fmt.Errorf("pet: %w", err)
	}
	out := derivedGrid(eto.Info)
	for i, e := range eto.Data.Elements {
		k := kc.Data.Elements[i]
		if eto.IsNodata(e) || kc.IsNodata(k) {
			out.Data.Elements[i] = OutNodata
			continue
		}
		out.Data.Elements[i] = e * k
	}
	return out, nil
}

// FractpInputs bundles the seven aligned grids the evapotranspiration
// fraction consumes. All must share one frame.
type FractpInputs struct {
	Kc        *rasters.Grid // crop coefficient per land-cover class
	ETo       *rasters.Grid // reference evapotranspiration, mm
	Precip    *rasters.Grid // annual precipitation, mm
	RootDepth *rasters.Grid // rooting depth per land-cover class, mm
	SoilDepth *rasters.Grid // depth to the root-restricting layer, mm
	PAWC      *rasters.Grid // plant-available water content, fraction
	Veg       *rasters.Grid // vegetation flag, 1.0 or 0.0
}

// Fractp computes the fraction of precipitation leaving each cell as
// actual evapotranspiration. Vegetated cells follow the Budyko curve with
// a climate-dependent shape parameter; non-vegetated cells (water, urban,
// wetland) evaporate at most their potential demand. A cell is the
// sentinel where any input is nodata or precipitation is zero.
func Fractp(in FractpInputs, seasonality float64) (*rasters.Grid, error) {
	inputs := []namedGrid{
		{"kc", in.Kc},
		{"eto", in.ETo},
		{"root_depth", in.RootDepth},
		{"soil_depth", in.SoilDepth},
		{"pawc", in.PAWC},
		{"veg", in.Veg},
	}
	if err := checkFrames(in.Precip.Info, inputs); err != nil {
		return nil, fmt.Errorf("fractp: %w", err)
	}

	out := derivedGrid(in.Precip.Info)
	for i, precip := range in.Precip.Data.Elements {
		kc := in.Kc.Data.Elements[i]
		eto := in.ETo.Data.Elements[i]
		root := in.RootDepth.Data.Elements[i]
		soil := in.SoilDepth.Data.Elements[i]
		pawc := in.PAWC.Data.Elements[i]
		veg := in.Veg.Data.Elements[i]

		if in.Precip.IsNodata(precip) || precip == 0 ||
			in.Kc.IsNodata(kc) || in.ETo.IsNodata(eto) ||
			in.RootDepth.IsNodata(root) || in.SoilDepth.IsNodata(soil) ||
			in.PAWC.IsNodata(pawc) || in.Veg.IsNodata(veg) {
			out.Data.Elements[i] = OutNodata
			continue
		}

		pet := kc * eto
		phi := pet / precip

		if veg == 1 {
			// Budyko curve: available water capacity shapes how much of
			// the demand the soil can actually meet over the year.
			awc := math.Min(root, soil) * pawc
			climateW := awc/precip*seasonality + 1.25
			if climateW > climateWCap {
				climateW = climateWCap
			}
			aetP := 1 + phi - math.Pow(1+math.Pow(phi, climateW), 1/climateW)
			out.Data.Elements[i] = math.Min(phi, aetP)
		} else {
			// Demand-limited: evaporation cannot exceed either supply or
			// demand, so the ratio is capped at 1 by construction.
			out.Data.Elements[i] = math.Min(precip, pet) / precip
		}
	}
	return out, nil
}

// AET computes actual evapotranspiration as fractp scaled by
// precipitation. Validity of fractp is a non-negativity test rather than
// a sentinel comparison: the sentinel is negative and every valid
// fraction is not.
func AET(fractp, precip *rasters.Grid) (*rasters.Grid, error) {
	if err := checkFrames(fractp.Info, []namedGrid{{"precip", precip}}); err != nil {
		return nil, fmt.Errorf("aet: %w", err)
	}
	out := derivedGrid(fractp.Info)
	for i, f := range fractp.Data.Elements {
		p := precip.Data.Elements[i]
		if f < 0 || math.IsNaN(f) || precip.IsNodata(p) {
			out.Data.Elements[i] = OutNodata
			continue
		}
		out.Data.Elements[i] = f * p
	}
	return out, nil
}

// Wyield computes water yield, the precipitation not lost to
// evapotranspiration.
func Wyield(fractp, precip *rasters.Grid) (*rasters.Grid, error) {
	if err := checkFrames(fractp.Info, []namedGrid{{"precip", precip}}); err != nil {
		return nil, fmt.Errorf("wyield: %w", err)
	}
	out := derivedGrid(fractp.Info)
	for i, f := range fractp.Data.Elements {
		p := precip.Data.Elements[i]
		if fractp.IsNodata(f) || precip.IsNodata(p) {
			out.Data.Elements[i] = OutNodata
			continue
		}
		out.Data.Elements[i] = (1 - f) * p
	}
	return out, nil
}
