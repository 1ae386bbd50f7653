// Package readings produces deterministic meter readings for the training rig.
// Values are derived from the circuit's conductor sizes and length, the
// installation Ze and any injected fault, and carry the compliance verdict the
// assessment uses.
package readings

import (
	"github.com/shopspring/decimal"

	"testrig/pkg/domain"
)

// Display strings shown by the simulated meter.
const (
	DisplayOverRange = "OL"
	DisplayIRMax     = ">299"
	DisplayNoTest    = "---"
	DisplayPass      = "OK"
	DisplayFail      = "FAIL"
)

// copper conductor resistance at 20 degC in milliohms per metre, by CSA in mm².
var copperMilliohmsPerMetre = map[string]decimal.Decimal{
	"1":   decimal.RequireFromString("18.10"),
	"1.5": decimal.RequireFromString("12.10"),
	"2.5": decimal.RequireFromString("7.41"),
	"4":   decimal.RequireFromString("4.61"),
	"6":   decimal.RequireFromString("3.08"),
	"10":  decimal.RequireFromString("1.83"),
	"16":  decimal.RequireFromString("1.15"),
	"25":  decimal.RequireFromString("0.727"),
}

var (
	thousand       = decimal.NewFromInt(1000)
	nominalU0      = decimal.NewFromInt(230)
	highZsFactor   = decimal.RequireFromString("1.6")
	faultedIR      = decimal.RequireFromString("0.38")
	minIR500       = decimal.RequireFromString("1.0")
	minIR250       = decimal.RequireFromString("0.5")
	rcdX5MaxMS     = decimal.NewFromInt(40)
	rcdX1DefaultMS = decimal.NewFromInt(300)
)

// Generator computes readings against a catalog.
type Generator struct {
	catalog *domain.Catalog
}

// New returns a generator for the catalog.
func New(catalog *domain.Catalog) *Generator {
	return &Generator{catalog: catalog}
}

// Read returns the reading the meter shows for the probe. It is a pure
// function of its arguments and the catalog.
func (g *Generator) Read(circuitID domain.CircuitID, testPointID string, dial domain.DialPosition, sub domain.SubTest) domain.TestReading {
	reading := domain.TestReading{
		CircuitID:   circuitID,
		TestPointID: testPointID,
		Dial:        dial,
		SubTest:     sub,
		Value:       DisplayNoTest,
	}
	circuit, ok := g.catalog.Circuit(circuitID)
	if !ok {
		return reading
	}
	ze := decimal.NewFromFloat(g.catalog.Installation().Ze)

	switch {
	case dial == domain.DialContinuity:
		reading.Value, reading.Compliant = continuity(circuit, ze, sub)
	case dial.IsInsulation():
		reading.Value, reading.Compliant = insulation(circuit, dial, sub)
	case dial == domain.DialLoop:
		reading.Value, reading.Compliant = loop(circuit, ze)
	case dial.IsRCD():
		reading.Value, reading.Compliant = rcd(circuit, sub)
	case dial == domain.DialPFC:
		reading.Value, reading.Compliant = pfc(circuit, ze)
	}
	return reading
}

// resistance returns the conductor resistance in ohms over length metres.
func resistance(csa, length float64) decimal.Decimal {
	perMetre, ok := copperMilliohmsPerMetre[decimal.NewFromFloat(csa).String()]
	if !ok {
		// Unlisted sizes scale inversely from 1 mm².
		perMetre = copperMilliohmsPerMetre["1"].Div(decimal.NewFromFloat(csa))
	}
	return perMetre.Mul(decimal.NewFromFloat(length)).Div(thousand)
}

// r1r2 is the line plus protective conductor resistance seen at the furthest
// point of the circuit. On an intact ring it is a quarter of the end-to-end sum.
func r1r2(c domain.Circuit) decimal.Decimal {
	r1 := resistance(c.LiveCSA, c.LengthM)
	r2 := resistance(c.CPCCSA, c.LengthM)
	sum := r1.Add(r2)
	if c.Ring && c.Fault != domain.FaultOpenRing {
		return sum.Div(decimal.NewFromInt(4))
	}
	return sum
}

func continuity(c domain.Circuit, ze decimal.Decimal, sub domain.SubTest) (string, bool) {
	switch sub {
	case domain.SubTestR1, domain.SubTestRn, domain.SubTestR2:
		if !c.Ring {
			return DisplayOverRange, false
		}
		if c.Fault == domain.FaultOpenRing {
			return DisplayOverRange, false
		}
		csa := c.LiveCSA
		if sub == domain.SubTestR2 {
			csa = c.CPCCSA
		}
		return ohms(resistance(csa, c.LengthM)), true
	case domain.SubTestPolarity:
		if c.Fault == domain.FaultReversedPolarity {
			return DisplayFail, false
		}
		return DisplayPass, true
	default:
		v := r1r2(c)
		ok := c.Fault != domain.FaultOpenRing && v.Add(ze).LessThanOrEqual(decimal.NewFromFloat(c.MaxZs))
		return ohms(v), ok
	}
}

func insulation(c domain.Circuit, dial domain.DialPosition, sub domain.SubTest) (string, bool) {
	if c.Fault != domain.FaultLowIR || sub != domain.SubTestLiveEarth {
		return DisplayIRMax, true
	}
	minimum := minIR500
	if dial == domain.DialIR250 {
		minimum = minIR250
	}
	return faultedIR.StringFixed(2), faultedIR.GreaterThanOrEqual(minimum)
}

func loop(c domain.Circuit, ze decimal.Decimal) (string, bool) {
	maxZs := decimal.NewFromFloat(c.MaxZs)
	zs := ze.Add(r1r2(c))
	if c.Fault == domain.FaultHighZs {
		zs = maxZs.Mul(highZsFactor)
	}
	zs = zs.Round(2)
	return ohms(zs), zs.LessThanOrEqual(maxZs)
}

func rcd(c domain.Circuit, sub domain.SubTest) (string, bool) {
	if c.RCD == nil {
		return DisplayNoTest, false
	}
	if sub == domain.SubTestButton {
		return DisplayPass, true
	}
	slow := c.Fault == domain.FaultSlowRCD
	if sub == domain.SubTestRCDTimesX5 {
		ms := decimal.NewFromInt(11 + int64(c.ID)%7)
		if slow {
			ms = decimal.NewFromInt(58)
		}
		return ms.String(), ms.LessThanOrEqual(rcdX5MaxMS)
	}
	limit := rcdX1DefaultMS
	if c.RCD.OperatingMax > 0 {
		limit = decimal.NewFromFloat(c.RCD.OperatingMax)
	}
	ms := decimal.NewFromInt(18 + 3*int64(c.ID)%20)
	if slow {
		ms = limit.Add(decimal.NewFromInt(112))
	}
	return ms.String(), ms.LessThanOrEqual(limit)
}

// pfc returns the prospective fault current at the origin in kA; it must not
// exceed the breaking capacity of the circuit's protective device.
func pfc(c domain.Circuit, ze decimal.Decimal) (string, bool) {
	if !ze.IsPositive() {
		return DisplayOverRange, false
	}
	ka := nominalU0.Div(ze).Div(thousand).Round(2)
	if c.Device.BreakingCapacity <= 0 {
		return ka.StringFixed(2), true
	}
	return ka.StringFixed(2), ka.LessThanOrEqual(decimal.NewFromFloat(c.Device.BreakingCapacity))
}

func ohms(v decimal.Decimal) string {
	return v.StringFixed(2)
}
