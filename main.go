// Command invest-awy runs the annual water yield and hydropower
// valuation model: a Budyko-curve water balance per land-cover cell,
// aggregated over watersheds, optionally netted against consumptive
// demand and priced as hydropower production.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
