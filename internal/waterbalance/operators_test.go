package waterbalance

import (
	"math"
	"strings"
	"testing"

	"github.com/testacc-art/invest/internal/rasters"
)

const testProj = "+proj=utm +zone=10 +datum=WGS84 +units=m +no_defs"

func uniformGrid(nx, ny int, v, nodata float64) *rasters.Grid {
	g := rasters.NewGrid(rasters.GridInfo{
		NX: nx, NY: ny, DX: 30, DY: 30, X0: 0, Y0: 0, Nodata: nodata, Proj4: testProj,
	})
	g.Fill(v)
	return g
}

// budyko evaluates the vegetated branch in closed form for comparison
// against the operator output.
func budyko(kc, eto, precip, root, soil, pawc, z float64) float64 {
	pet := kc * eto
	phi := pet / precip
	w := math.Min(root, soil)*pawc/precip*z + 1.25
	if w > 5 {
		w = 5
	}
	aetP := 1 + phi - math.Pow(1+math.Pow(phi, w), 1/w)
	return math.Min(phi, aetP)
}

func TestPET(t *testing.T) {
	eto := uniformGrid(2, 1, 1000, -9999)
	kc := uniformGrid(2, 1, 0.8, -1)
	kc.Data.Elements[1] = -1

	out, err := PET(eto, kc)
	if err != nil {
		t.Fatalf("PET() error: %v", err)
	}
	if got := out.Data.Elements[0]; got != 800 {
		t.Errorf("pet = %v, want 800", got)
	}
	if got := out.Data.Elements[1]; got != OutNodata {
		t.Errorf("pet under kc nodata = %v, want sentinel", got)
	}
	if out.Info.Nodata != OutNodata {
		t.Errorf("result sentinel = %v, want %v", out.Info.Nodata, OutNodata)
	}
}

func TestFractpScenario(t *testing.T) {
	// Two land-cover classes on one row: class 1 is vegetated cropland,
	// class 2 is open water following the demand-limited branch.
	in := FractpInputs{
		Kc:        uniformGrid(2, 1, 0.8, OutNodata),
		ETo:       uniformGrid(2, 1, 1000, -9999),
		Precip:    uniformGrid(2, 1, 1200, -9999),
		RootDepth: uniformGrid(2, 1, 300, OutNodata),
		SoilDepth: uniformGrid(2, 1, 500, -9999),
		PAWC:      uniformGrid(2, 1, 0.15, -9999),
		Veg:       uniformGrid(2, 1, 1, OutNodata),
	}
	in.Kc.Data.Elements[1] = 0.3
	in.Veg.Data.Elements[1] = 0

	out, err := Fractp(in, 5)
	if err != nil {
		t.Fatalf("Fractp() error: %v", err)
	}

	want := budyko(0.8, 1000, 1200, 300, 500, 0.15, 5)
	if got := out.Data.Elements[0]; math.Abs(got-want) > 1e-12 {
		t.Errorf("vegetated fractp = %v, want %v", got, want)
	}
	// Non-vegetated: min(1200, 0.3*1000)/1200 is exactly 0.25.
	if got := out.Data.Elements[1]; got != 0.25 {
		t.Errorf("non-vegetated fractp = %v, want 0.25", got)
	}
	for i, v := range out.Data.Elements {
		if v < 0 || v > 1 {
			t.Errorf("fractp[%d] = %v outside [0, 1]", i, v)
		}
	}
}

func TestFractpClimateWCap(t *testing.T) {
	// Huge available water over tiny precipitation pushes the raw shape
	// parameter far above the cap; the output must match the capped curve.
	in := FractpInputs{
		Kc:        uniformGrid(1, 1, 1, OutNodata),
		ETo:       uniformGrid(1, 1, 20, -9999),
		Precip:    uniformGrid(1, 1, 10, -9999),
		RootDepth: uniformGrid(1, 1, 5000, OutNodata),
		SoilDepth: uniformGrid(1, 1, 5000, -9999),
		PAWC:      uniformGrid(1, 1, 1, -9999),
		Veg:       uniformGrid(1, 1, 1, OutNodata),
	}
	out, err := Fractp(in, 10)
	if err != nil {
		t.Fatalf("Fractp() error: %v", err)
	}
	phi := 2.0
	want := math.Min(phi, 1+phi-math.Pow(1+math.Pow(phi, 5), 1.0/5))
	if got := out.Data.Elements[0]; math.Abs(got-want) > 1e-12 {
		t.Errorf("capped fractp = %v, want %v", got, want)
	}
	if got := out.Data.Elements[0]; got < 0 || got > 1 {
		t.Errorf("capped fractp = %v outside [0, 1]", got)
	}
}

func TestFractpInvalidCells(t *testing.T) {
	base := func() FractpInputs {
		return FractpInputs{
			Kc:        uniformGrid(1, 1, 0.8, OutNodata),
			ETo:       uniformGrid(1, 1, 1000, -9999),
			Precip:    uniformGrid(1, 1, 1200, -9999),
			RootDepth: uniformGrid(1, 1, 300, OutNodata),
			SoilDepth: uniformGrid(1, 1, 500, -9999),
			PAWC:      uniformGrid(1, 1, 0.15, -9999),
			Veg:       uniformGrid(1, 1, 1, OutNodata),
		}
	}
	testCases := []struct {
		name string
		mod  func(*FractpInputs)
	}{
		{"eto nodata", func(in *FractpInputs) { in.ETo.Data.Elements[0] = -9999 }},
		{"precip nodata", func(in *FractpInputs) { in.Precip.Data.Elements[0] = -9999 }},
		{"zero precipitation", func(in *FractpInputs) { in.Precip.Data.Elements[0] = 0 }},
		{"kc nodata", func(in *FractpInputs) { in.Kc.Data.Elements[0] = OutNodata }},
		{"root depth nodata", func(in *FractpInputs) { in.RootDepth.Data.Elements[0] = OutNodata }},
		{"soil depth nodata", func(in *FractpInputs) { in.SoilDepth.Data.Elements[0] = -9999 }},
		{"pawc nodata", func(in *FractpInputs) { in.PAWC.Data.Elements[0] = -9999 }},
		{"veg nodata", func(in *FractpInputs) { in.Veg.Data.Elements[0] = OutNodata }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := base()
			tc.mod(&in)
			out, err := Fractp(in, 5)
			if err != nil {
				t.Fatalf("Fractp() error: %v", err)
			}
			if got := out.Data.Elements[0]; got != OutNodata {
				t.Errorf("fractp = %v, want sentinel %v", got, OutNodata)
			}
		})
	}
}

func TestFractpFrameMismatch(t *testing.T) {
	in := FractpInputs{
		Kc:        uniformGrid(2, 1, 0.8, OutNodata),
		ETo:       uniformGrid(1, 1, 1000, -9999),
		Precip:    uniformGrid(2, 1, 1200, -9999),
		RootDepth: uniformGrid(2, 1, 300, OutNodata),
		SoilDepth: uniformGrid(2, 1, 500, -9999),
		PAWC:      uniformGrid(2, 1, 0.15, -9999),
		Veg:       uniformGrid(2, 1, 1, OutNodata),
	}
	_, err := Fractp(in, 5)
	if err == nil {
		t.Fatal("expected frame mismatch error, got nil")
	}
	if !strings.Contains(err.Error(), "eto") {
		t.Errorf("error %q does not name the offending input", err)
	}
}

func TestAETAndWyieldIdentities(t *testing.T) {
	fractp := uniformGrid(3, 1, 0, OutNodata)
	precip := uniformGrid(3, 1, 1200, -9999)
	fractp.Data.Elements[0] = 0.25
	fractp.Data.Elements[1] = OutNodata
	fractp.Data.Elements[2] = 0.8
	precip.Data.Elements[2] = -9999

	aet, err := AET(fractp, precip)
	if err != nil {
		t.Fatalf("AET() error: %v", err)
	}
	wyield, err := Wyield(fractp, precip)
	if err != nil {
		t.Fatalf("Wyield() error: %v", err)
	}

	// Per valid cell the identities hold exactly: aet = fractp*precip and
	// wyield = (1-fractp)*precip.
	if got := aet.Data.Elements[0]; got != 0.25*1200 {
		t.Errorf("aet = %v, want %v", got, 0.25*1200)
	}
	if got := wyield.Data.Elements[0]; got != (1-0.25)*1200 {
		t.Errorf("wyield = %v, want %v", got, (1-0.25)*1200)
	}

	// Sentinel fractp and nodata precipitation both propagate.
	for _, i := range []int{1, 2} {
		if got := aet.Data.Elements[i]; got != OutNodata {
			t.Errorf("aet[%d] = %v, want sentinel", i, got)
		}
		if got := wyield.Data.Elements[i]; got != OutNodata {
			t.Errorf("wyield[%d] = %v, want sentinel", i, got)
		}
	}
}

func TestAETRejectsNaNFraction(t *testing.T) {
	fractp := uniformGrid(1, 1, math.NaN(), OutNodata)
	precip := uniformGrid(1, 1, 1200, -9999)
	out, err := AET(fractp, precip)
	if err != nil {
		t.Fatalf("AET() error: %v", err)
	}
	if got := out.Data.Elements[0]; got != OutNodata {
		t.Errorf("aet over NaN fractp = %v, want sentinel", got)
	}
}
