package rasters

import (
	"math"
	"testing"
)

const testProj = "+proj=utm +zone=10 +datum=WGS84 +units=m +no_defs"

func testInfo(nx, ny int, nodata float64) GridInfo {
	return GridInfo{NX: nx, NY: ny, DX: 10, DY: 10, X0: 0, Y0: 0, Nodata: nodata, Proj4: testProj}
}

func TestGridBounds(t *testing.T) {
	gi := GridInfo{NX: 4, NY: 3, DX: 10, DY: 20, X0: 100, Y0: 200}
	b := gi.Bounds()
	if b.Min.X != 100 || b.Min.Y != 200 || b.Max.X != 140 || b.Max.Y != 260 {
		t.Errorf("Bounds() = %+v, want [100 200 140 260]", b)
	}

	cb := gi.CellBounds(1, 2)
	if cb.Min.X != 120 || cb.Min.Y != 220 || cb.Max.X != 130 || cb.Max.Y != 240 {
		t.Errorf("CellBounds(1, 2) = %+v, want [120 220 130 240]", cb)
	}

	if got := gi.CellArea(); got != 200 {
		t.Errorf("CellArea() = %v, want 200", got)
	}
}

func TestMatchesNodata(t *testing.T) {
	testCases := []struct {
		name   string
		v      float64
		nodata float64
		want   bool
	}{
		{"exact match", -9999, -9999, true},
		{"no match", 5, -9999, false},
		{"nan sentinel matches nan", math.NaN(), math.NaN(), true},
		{"nan sentinel rejects value", 5, math.NaN(), false},
		{"finite sentinel rejects nan", math.NaN(), -9999, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MatchesNodata(tc.v, tc.nodata); got != tc.want {
				t.Errorf("MatchesNodata(%v, %v) = %v, want %v", tc.v, tc.nodata, got, tc.want)
			}
		})
	}
}

func TestSameFrame(t *testing.T) {
	base := testInfo(4, 3, -9999)

	same := base
	same.Nodata = -1
	same.Proj4 = "+proj=merc"
	if !base.SameFrame(same) {
		t.Error("frames differing only in nodata and CRS should match")
	}

	shifted := base
	shifted.X0 = 5
	if base.SameFrame(shifted) {
		t.Error("frames with different origins should not match")
	}

	resized := base
	resized.NX = 5
	if base.SameFrame(resized) {
		t.Error("frames with different cell counts should not match")
	}
}

func TestGridValueRoundTrip(t *testing.T) {
	g := NewGrid(testInfo(4, 3, -9999))
	g.SetValue(42.5, 2, 3)
	if got := g.Value(2, 3); got != 42.5 {
		t.Errorf("Value(2, 3) = %v, want 42.5", got)
	}
	if got := g.Value(0, 0); got != 0 {
		t.Errorf("Value(0, 0) = %v, want 0", got)
	}

	c := g.Copy()
	c.SetValue(7, 0, 0)
	if g.Value(0, 0) == 7 {
		t.Error("Copy() shares storage with the original")
	}
}

func TestUniqueValues(t *testing.T) {
	g := NewGrid(testInfo(3, 2, -1))
	for i, v := range []float64{2, 1, 2, -1, 5, 1} {
		g.Data.Elements[i] = v
	}
	got := UniqueValues(g)
	want := []float64{-1, 1, 2, 5}
	if len(got) != len(want) {
		t.Fatalf("UniqueValues() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("UniqueValues()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestReclassify(t *testing.T) {
	table := map[int]float64{1: 0.8, 2: 0.3}

	t.Run("maps codes and nodata", func(t *testing.T) {
		g := NewGrid(testInfo(2, 2, 255))
		for i, v := range []float64{1, 2, 255, 1} {
			g.Data.Elements[i] = v
		}
		out, err := Reclassify(g, table, -1)
		if err != nil {
			t.Fatalf("Reclassify() error: %v", err)
		}
		want := []float64{0.8, 0.3, -1, 0.8}
		for i := range want {
			if out.Data.Elements[i] != want[i] {
				t.Errorf("cell %d = %v, want %v", i, out.Data.Elements[i], want[i])
			}
		}
		if out.Info.Nodata != -1 {
			t.Errorf("result nodata = %v, want -1", out.Info.Nodata)
		}
	})

	t.Run("unmapped code is an error", func(t *testing.T) {
		g := NewGrid(testInfo(1, 1, 255))
		g.Data.Elements[0] = 3
		if _, err := Reclassify(g, table, -1); err == nil {
			t.Fatal("expected error for unmapped code 3")
		}
	})
}
