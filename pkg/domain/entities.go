// Package domain defines the catalog entities, session aggregate, and action
// vocabulary shared by the testrig simulation engine and its adapters.
package domain

// CircuitID identifies a circuit in the test catalog. Circuit ids double as the
// circuit number printed on the certification schedule.
type CircuitID int

// DialPosition is the simulated multi-function tester's mode selector.
type DialPosition string

// Supported dial positions.
const (
	DialOff        DialPosition = "OFF"
	DialContinuity DialPosition = "continuity"
	DialIR250      DialPosition = "ir_250v"
	DialIR500      DialPosition = "ir_500v"
	DialLoop       DialPosition = "loop"
	DialRCD30      DialPosition = "rcd_30ma"
	DialRCD100     DialPosition = "rcd_100ma"
	DialRCD300     DialPosition = "rcd_300ma"
	DialPFC        DialPosition = "pfc"
)

var knownDials = map[DialPosition]struct{}{
	DialOff: {}, DialContinuity: {}, DialIR250: {}, DialIR500: {}, DialLoop: {},
	DialRCD30: {}, DialRCD100: {}, DialRCD300: {}, DialPFC: {},
}

// Valid reports whether the dial position is one the meter supports.
func (d DialPosition) Valid() bool {
	_, ok := knownDials[d]
	return ok
}

// IsInsulation reports whether the dial selects an insulation resistance range.
func (d DialPosition) IsInsulation() bool {
	return d == DialIR250 || d == DialIR500
}

// IsRCD reports whether the dial selects an RCD trip test at any rated current.
func (d DialPosition) IsRCD() bool {
	return d == DialRCD30 || d == DialRCD100 || d == DialRCD300
}

// TestVoltage returns the insulation test voltage selected by the dial, or ""
// when the dial is not an insulation range.
func (d DialPosition) TestVoltage() string {
	switch d {
	case DialIR250:
		return "250"
	case DialIR500:
		return "500"
	default:
		return ""
	}
}

// SubTest discriminates required tests that share a test point and dial
// position. The empty value means "no discriminator".
type SubTest string

// Sub-test discriminators understood by the schedule auto-populator.
const (
	SubTestNone       SubTest = ""
	SubTestR1         SubTest = "r1"
	SubTestRn         SubTest = "rn"
	SubTestR2         SubTest = "r2"
	SubTestR1R2       SubTest = "r1r2"
	SubTestPolarity   SubTest = "polarity"
	SubTestLiveLive   SubTest = "L-L"
	SubTestLiveEarth  SubTest = "L-E"
	SubTestButton     SubTest = "test_button"
	SubTestRCDTimesX1 SubTest = "x1"
	SubTestRCDTimesX5 SubTest = "x5"
)

// Fault is an optional defect injected into a simulated circuit so that the
// reading generator produces non-compliant values.
type Fault string

// Supported circuit faults.
const (
	FaultNone             Fault = ""
	FaultHighZs           Fault = "high_zs"
	FaultLowIR            Fault = "low_ir"
	FaultReversedPolarity Fault = "reversed_polarity"
	FaultOpenRing         Fault = "open_ring"
	FaultSlowRCD          Fault = "slow_rcd"
)

// RequiredTest is one step a trainee must perform on a circuit.
type RequiredTest struct {
	ID          string       `json:"id" yaml:"id"`
	Label       string       `json:"label,omitempty" yaml:"label,omitempty"`
	TestPointID string       `json:"testPointId" yaml:"testPointId"`
	Dial        DialPosition `json:"dial" yaml:"dial"`
	SubTest     SubTest      `json:"subTest,omitempty" yaml:"subTest,omitempty"`
	// GN3Step is the position of this test in the regulatory test order.
	GN3Step int `json:"gn3Step" yaml:"gn3Step"`
}

// Matches reports whether the reading satisfies the required test. Test point
// and dial must be equal; sub-tests must be equal, so a required test without a
// discriminator only matches a reading without one.
func (t RequiredTest) Matches(r TestReading) bool {
	return t.TestPointID == r.TestPointID && t.Dial == r.Dial && t.SubTest == r.SubTest
}

// TestPoint is a physical probing location on the training rig.
type TestPoint struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// ProtectiveDevice describes the overcurrent device protecting a circuit.
type ProtectiveDevice struct {
	Standard         string  `json:"standard" yaml:"standard"`
	Type             string  `json:"type" yaml:"type"`
	RatingA          float64 `json:"ratingA" yaml:"ratingA"`
	BreakingCapacity float64 `json:"breakingCapacityKA" yaml:"breakingCapacityKA"`
}

// RCDProtection describes residual current protection when fitted.
type RCDProtection struct {
	Type         string  `json:"type" yaml:"type"`
	RatingMA     float64 `json:"ratingMA" yaml:"ratingMA"`
	OperatingMax float64 `json:"operatingMaxMS,omitempty" yaml:"operatingMaxMS,omitempty"`
}

// Circuit is a simulated final circuit with its required tests and electrical
// metadata. Catalog circuits are immutable once loaded.
type Circuit struct {
	ID              CircuitID        `json:"id" yaml:"id"`
	Description     string           `json:"description" yaml:"description"`
	WiringType      string           `json:"wiringType" yaml:"wiringType"`
	ReferenceMethod string           `json:"referenceMethod" yaml:"referenceMethod"`
	Points          int              `json:"points" yaml:"points"`
	LiveCSA         float64          `json:"liveCSA" yaml:"liveCSA"`
	CPCCSA          float64          `json:"cpcCSA" yaml:"cpcCSA"`
	LengthM         float64          `json:"lengthM" yaml:"lengthM"`
	Ring            bool             `json:"ring,omitempty" yaml:"ring,omitempty"`
	Device          ProtectiveDevice `json:"device" yaml:"device"`
	MaxZs           float64          `json:"maxZs" yaml:"maxZs"`
	RCD             *RCDProtection   `json:"rcd,omitempty" yaml:"rcd,omitempty"`
	Fault           Fault            `json:"fault,omitempty" yaml:"fault,omitempty"`
	TestPoints      []TestPoint      `json:"testPoints" yaml:"testPoints"`
	RequiredTests   []RequiredTest   `json:"requiredTests" yaml:"requiredTests"`
}

// FindMatchingTest returns the first required test, in catalog order, that the
// reading satisfies.
func (c Circuit) FindMatchingTest(r TestReading) (RequiredTest, bool) {
	for _, t := range c.RequiredTests {
		if t.Matches(r) {
			return t, true
		}
	}
	return RequiredTest{}, false
}

// RequiredTest looks up a required test by id.
func (c Circuit) RequiredTest(id string) (RequiredTest, bool) {
	for _, t := range c.RequiredTests {
		if t.ID == id {
			return t, true
		}
	}
	return RequiredTest{}, false
}

// TestReading is a meter reading produced by the reading generator.
type TestReading struct {
	CircuitID   CircuitID    `json:"circuitId"`
	TestPointID string       `json:"testPointId"`
	Dial        DialPosition `json:"dial"`
	SubTest     SubTest      `json:"subTest,omitempty"`
	// Value is the meter display text; it is not guaranteed to be numeric
	// ("OL", ">299").
	Value     string `json:"value"`
	Compliant bool   `json:"compliant"`
}
