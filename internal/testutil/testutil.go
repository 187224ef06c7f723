// Package testutil provides shared test fixtures and assertions.
//
// This package centralises the synthetic inputs several test suites need
// (attribute tables, tiny rasters) to reduce duplication across test
// files.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// WriteFile writes contents to dir/name and returns the full path.
func WriteFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// BiophysicalCSV is a two-class land-cover table: code 1 is vegetated
// cropland, code 2 is open water.
const BiophysicalCSV = `lucode,Kc,root_depth,LULC_veg
1,0.8,300,1
2,0.3,10,0
`

// DemandCSV assigns annual consumptive volumes to the same two classes.
const DemandCSV = `lucode,demand
1,100
2,50
`

// ValuationCSV prices two watershed stations with identical parameters.
const ValuationCSV = `ws_id,efficiency,fraction,height,discount,time_span,cost,kw_price
1,0.9,0.8,50,5,20,100000,0.04
2,0.9,0.8,50,5,20,100000,0.04
`

// WatershedsGeoJSON splits a 120 x 180 m frame into a southern (ws_id 1)
// and a northern (ws_id 2) half.
const WatershedsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"ws_id": 1},
      "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [120, 0], [120, 90], [0, 90], [0, 0]]]}
    },
    {
      "type": "Feature",
      "properties": {"ws_id": 2},
      "geometry": {"type": "Polygon", "coordinates": [[[0, 90], [120, 90], [120, 180], [0, 180], [0, 90]]]}
    }
  ]
}
`

// SubWatershedsGeoJSON splits the southern watershed into a western
// (subws_id 10) and an eastern (subws_id 20) half.
const SubWatershedsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"subws_id": 10},
      "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [60, 0], [60, 90], [0, 90], [0, 0]]]}
    },
    {
      "type": "Feature",
      "properties": {"subws_id": 20},
      "geometry": {"type": "Polygon", "coordinates": [[[60, 0], [120, 0], [120, 90], [60, 90], [60, 0]]]}
    }
  ]
}
`
