// Package valuation computes hydropower energy production and its net
// present value from a watershed's realized water supply.
package valuation

import "math"

// energyFactor converts head (m) times flow volume (m³/year) into kWh/year,
// folding gravity, water density, and time normalization.
const energyFactor = 0.00272

// Params holds one watershed's hydropower station characteristics.
type Params struct {
	Efficiency float64 // turbine efficiency, 0..1
	Fraction   float64 // share of realized supply reaching the turbine
	Height     float64 // hydraulic head, m
	Discount   float64 // discount rate, percent
	TimeSpan   float64 // valuation horizon, years
	Cost       float64 // annual operating cost
	KWPrice    float64 // price per kWh
}

// Energy returns annual production in kWh given the realized supply
// volume in m³/year.
func Energy(p Params, rsupplyVol float64) float64 {
	return p.Efficiency * p.Fraction * p.Height * rsupplyVol * energyFactor
}

// NPV returns the net present value of production over the valuation
// horizon: the annual margin times the discount series
// sum over t in [0, TimeSpan) of 1/(1+disc)^t, in closed form.
func NPV(p Params, energy float64) float64 {
	disc := p.Discount / 100
	ratio := 1 / (1 + disc)
	var dsum float64
	if ratio != 1 {
		dsum = (1 - math.Pow(ratio, p.TimeSpan)) / (1 - ratio)
	}
	return (p.KWPrice*energy - p.Cost) * dsum
}
