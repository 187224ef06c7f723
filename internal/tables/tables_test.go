package tables

import (
	"strings"
	"testing"

	"github.com/testacc-art/invest/internal/testutil"
)

func TestLoadBiophysical(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "biophysical.csv", testutil.BiophysicalCSV)

	b, err := LoadBiophysical(path)
	if err != nil {
		t.Fatalf("LoadBiophysical() error: %v", err)
	}

	c, ok := b.Class(1)
	if !ok {
		t.Fatal("Class(1) not found")
	}
	if c.Kc != 0.8 || c.RootDepth != 300 || !c.Vegetated {
		t.Errorf("Class(1) = %+v, want {0.8 300 true}", c)
	}

	if got := b.KcMap()[2]; got != 0.3 {
		t.Errorf("KcMap()[2] = %v, want 0.3", got)
	}
	// Non-vegetated root depth is the neutral 1.0, never the table value.
	if got := b.RootDepthMap()[2]; got != 1.0 {
		t.Errorf("RootDepthMap()[2] = %v, want 1.0", got)
	}
	if got := b.RootDepthMap()[1]; got != 300 {
		t.Errorf("RootDepthMap()[1] = %v, want 300", got)
	}
	if got := b.VegMap(); got[1] != 1.0 || got[2] != 0.0 {
		t.Errorf("VegMap() = %v, want {1: 1, 2: 0}", got)
	}
	if got := b.Codes(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Codes() = %v, want [1 2]", got)
	}
}

func TestLoadBiophysicalErrors(t *testing.T) {
	testCases := []struct {
		name    string
		csv     string
		errPart string
	}{
		{
			name:    "missing column",
			csv:     "lucode,kc,root_depth\n1,0.8,300\n",
			errPart: `"lulc_veg"`,
		},
		{
			name:    "duplicate lucode",
			csv:     "lucode,kc,root_depth,lulc_veg\n1,0.8,300,1\n1,0.5,200,1\n",
			errPart: "duplicate lucode 1",
		},
		{
			name:    "negative kc",
			csv:     "lucode,kc,root_depth,lulc_veg\n1,-0.2,300,1\n",
			errPart: "kc must be non-negative",
		},
		{
			name:    "vegetation flag out of range",
			csv:     "lucode,kc,root_depth,lulc_veg\n1,0.8,300,2\n",
			errPart: "lulc_veg must be 0 or 1",
		},
		{
			name:    "unparsable number",
			csv:     "lucode,kc,root_depth,lulc_veg\n1,abc,300,1\n",
			errPart: `column "kc"`,
		},
		{
			name:    "fractional lucode",
			csv:     "lucode,kc,root_depth,lulc_veg\n1.5,0.8,300,1\n",
			errPart: "not an integer",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := testutil.WriteFile(t, t.TempDir(), "bio.csv", tc.csv)
			_, err := LoadBiophysical(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.errPart) {
				t.Errorf("error %q does not mention %q", err, tc.errPart)
			}
		})
	}
}

func TestLoadDemand(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "demand.csv", testutil.DemandCSV)
	m, err := LoadDemand(path)
	if err != nil {
		t.Fatalf("LoadDemand() error: %v", err)
	}
	if m[1] != 100 || m[2] != 50 {
		t.Errorf("LoadDemand() = %v, want {1: 100, 2: 50}", m)
	}

	bad := testutil.WriteFile(t, t.TempDir(), "demand.csv", "lucode,demand\n1,-5\n")
	if _, err := LoadDemand(bad); err == nil {
		t.Fatal("expected error for negative demand")
	}
}

func TestLoadValuation(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "valuation.csv", testutil.ValuationCSV)
	m, err := LoadValuation(path)
	if err != nil {
		t.Fatalf("LoadValuation() error: %v", err)
	}
	p, ok := m[1]
	if !ok {
		t.Fatal("ws_id 1 not loaded")
	}
	if p.Efficiency != 0.9 || p.Fraction != 0.8 || p.Height != 50 ||
		p.Discount != 5 || p.TimeSpan != 20 || p.Cost != 100000 || p.KWPrice != 0.04 {
		t.Errorf("Params = %+v", p)
	}

	headerless := testutil.WriteFile(t, t.TempDir(), "valuation.csv", "ws_id,efficiency\n1,0.9\n")
	if _, err := LoadValuation(headerless); err == nil {
		t.Fatal("expected error for missing columns")
	}
}

func TestHeadersAreCaseInsensitive(t *testing.T) {
	csv := "LUCODE, KC ,Root_Depth,lulc_VEG\n1,0.8,300,1\n"
	path := testutil.WriteFile(t, t.TempDir(), "bio.csv", csv)
	b, err := LoadBiophysical(path)
	if err != nil {
		t.Fatalf("LoadBiophysical() error: %v", err)
	}
	if _, ok := b.Class(1); !ok {
		t.Error("class 1 missing after case-insensitive header match")
	}
}

func TestCheckCoverage(t *testing.T) {
	bio, err := LoadBiophysical(testutil.WriteFile(t, t.TempDir(), "bio.csv", testutil.BiophysicalCSV))
	if err != nil {
		t.Fatalf("LoadBiophysical() error: %v", err)
	}
	demand := map[int]float64{1: 100, 2: 50}

	t.Run("full coverage passes", func(t *testing.T) {
		if err := CheckCoverage([]float64{1, 2, 255}, 255, bio, demand); err != nil {
			t.Errorf("CheckCoverage() error: %v", err)
		}
	})

	t.Run("nodata value is never reported", func(t *testing.T) {
		if err := CheckCoverage([]float64{1, 255}, 255, bio, nil); err != nil {
			t.Errorf("CheckCoverage() error: %v", err)
		}
	})

	t.Run("missing code reported in both lists", func(t *testing.T) {
		err := CheckCoverage([]float64{1, 2, 3, 255}, 255, bio, demand)
		if err == nil {
			t.Fatal("expected error for code 3")
		}
		msg := err.Error()
		if !strings.Contains(msg, "biophysical table is missing codes [3]") {
			t.Errorf("error %q does not report 3 missing from the biophysical table", msg)
		}
		if !strings.Contains(msg, "demand table is missing codes [3]") {
			t.Errorf("error %q does not report 3 missing from the demand table", msg)
		}
	})

	t.Run("codes sorted in message", func(t *testing.T) {
		err := CheckCoverage([]float64{9, 3, 7}, 255, bio, nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "[3 7 9]") {
			t.Errorf("error %q does not list codes in ascending order", err)
		}
	})

	t.Run("demand not requested", func(t *testing.T) {
		if err := CheckCoverage([]float64{1, 2}, 255, bio, nil); err != nil {
			t.Errorf("CheckCoverage() error: %v", err)
		}
	})
}
