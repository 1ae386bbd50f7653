package domain

import "fmt"

// CertificateHeader is the shared certificate metadata block. Origin values
// (Ze, PFC) are recorded once rather than per circuit.
type CertificateHeader struct {
	ClientName            string `json:"clientName"`
	SiteAddress           string `json:"siteAddress"`
	SupplyCharacteristics string `json:"supplyCharacteristics"`
	NominalVoltage        string `json:"nominalVoltage"`
	EarthingArrangement   string `json:"earthingArrangement"`
	ZeOrigin              string `json:"zeOrigin"`
	// PFC is the certificate-level prospective fault current.
	PFC string `json:"pfc"`
	// MeasuredPFC is the origin measurement taken with the meter.
	MeasuredPFC string `json:"measuredPfc"`
}

// CircuitDetail is the static schedule row describing a circuit. Rows are built
// from the catalog once and never edited.
type CircuitDetail struct {
	CircuitNumber      CircuitID `json:"circuitNumber"`
	Description        string    `json:"description"`
	WiringType         string    `json:"wiringType"`
	ReferenceMethod    string    `json:"referenceMethod"`
	Points             int       `json:"points"`
	LiveCSA            string    `json:"liveCsa"`
	CPCCSA             string    `json:"cpcCsa"`
	DeviceStandard     string    `json:"deviceStandard"`
	DeviceType         string    `json:"deviceType"`
	DeviceRating       string    `json:"deviceRating"`
	BreakingCapacityKA string    `json:"breakingCapacityKa"`
	MaxPermittedZs     string    `json:"maxPermittedZs"`
	RCDType            string    `json:"rcdType,omitempty"`
	RCDRatingMA        string    `json:"rcdRatingMa,omitempty"`
}

// TestResultRow holds the measured values for one circuit. Every value starts
// empty and is filled as readings arrive or the trainee edits it.
type TestResultRow struct {
	CircuitNumber        CircuitID `json:"circuitNumber"`
	RingR1               string    `json:"ringR1"`
	RingRn               string    `json:"ringRn"`
	RingR2               string    `json:"ringR2"`
	R1R2                 string    `json:"r1r2"`
	Polarity             string    `json:"polarity"`
	IRTestVoltage        string    `json:"irTestVoltage"`
	IRLiveLive           string    `json:"irLiveLive"`
	IRLiveEarth          string    `json:"irLiveEarth"`
	MaxZs                string    `json:"maxZs"`
	RCDDisconnectionTime string    `json:"rcdDisconnectionTime"`
	RCDTestButton        string    `json:"rcdTestButton"`
	Remarks              string    `json:"remarks"`
}

// ResultField names an editable column of a TestResultRow.
type ResultField string

// Editable test result columns.
const (
	FieldRingR1               ResultField = "ringR1"
	FieldRingRn               ResultField = "ringRn"
	FieldRingR2               ResultField = "ringR2"
	FieldR1R2                 ResultField = "r1r2"
	FieldPolarity             ResultField = "polarity"
	FieldIRTestVoltage        ResultField = "irTestVoltage"
	FieldIRLiveLive           ResultField = "irLiveLive"
	FieldIRLiveEarth          ResultField = "irLiveEarth"
	FieldMaxZs                ResultField = "maxZs"
	FieldRCDDisconnectionTime ResultField = "rcdDisconnectionTime"
	FieldRCDTestButton        ResultField = "rcdTestButton"
	FieldRemarks              ResultField = "remarks"
)

// ResultFields lists every editable column in schedule order.
var ResultFields = []ResultField{
	FieldRingR1, FieldRingRn, FieldRingR2, FieldR1R2, FieldPolarity,
	FieldIRTestVoltage, FieldIRLiveLive, FieldIRLiveEarth, FieldMaxZs,
	FieldRCDDisconnectionTime, FieldRCDTestButton, FieldRemarks,
}

func (r *TestResultRow) slot(field ResultField) *string {
	switch field {
	case FieldRingR1:
		return &r.RingR1
	case FieldRingRn:
		return &r.RingRn
	case FieldRingR2:
		return &r.RingR2
	case FieldR1R2:
		return &r.R1R2
	case FieldPolarity:
		return &r.Polarity
	case FieldIRTestVoltage:
		return &r.IRTestVoltage
	case FieldIRLiveLive:
		return &r.IRLiveLive
	case FieldIRLiveEarth:
		return &r.IRLiveEarth
	case FieldMaxZs:
		return &r.MaxZs
	case FieldRCDDisconnectionTime:
		return &r.RCDDisconnectionTime
	case FieldRCDTestButton:
		return &r.RCDTestButton
	case FieldRemarks:
		return &r.Remarks
	default:
		return nil
	}
}

// Get returns the value of a column and whether the field is known.
func (r TestResultRow) Get(field ResultField) (string, bool) {
	p := r.slot(field)
	if p == nil {
		return "", false
	}
	return *p, true
}

// Set overwrites a single column. Unknown fields are ignored and reported false.
func (r *TestResultRow) Set(field ResultField, value string) bool {
	p := r.slot(field)
	if p == nil {
		return false
	}
	*p = value
	return true
}

// CertificationScheduleState is the in-progress certificate. CircuitDetails and
// TestResults are index-aligned with the catalog's circuit order.
type CertificationScheduleState struct {
	Header         CertificateHeader `json:"header"`
	CircuitDetails []CircuitDetail   `json:"circuitDetails"`
	TestResults    []TestResultRow   `json:"testResults"`
}

// ResultIndex returns the position of the result row for a circuit.
func (s CertificationScheduleState) ResultIndex(id CircuitID) (int, bool) {
	for i, row := range s.TestResults {
		if row.CircuitNumber == id {
			return i, true
		}
	}
	return 0, false
}

// Clone returns a deep copy of the schedule.
func (s CertificationScheduleState) Clone() CertificationScheduleState {
	cp := s
	cp.CircuitDetails = append([]CircuitDetail(nil), s.CircuitDetails...)
	cp.TestResults = append([]TestResultRow(nil), s.TestResults...)
	return cp
}

// NewSchedule builds a fresh schedule for the catalog: header seeded from the
// installation, one static detail row and one empty result row per circuit.
func NewSchedule(c *Catalog) CertificationScheduleState {
	inst := c.Installation()
	s := CertificationScheduleState{
		Header: CertificateHeader{
			ClientName:            inst.ClientName,
			SiteAddress:           inst.SiteAddress,
			SupplyCharacteristics: inst.SupplyCharacteristics,
			NominalVoltage:        formatQuantity(inst.NominalVoltage),
			EarthingArrangement:   inst.EarthingArrangement,
			ZeOrigin:              formatQuantity(inst.Ze),
		},
		CircuitDetails: make([]CircuitDetail, 0, c.Len()),
		TestResults:    make([]TestResultRow, 0, c.Len()),
	}
	for _, circuit := range c.circuits {
		detail := CircuitDetail{
			CircuitNumber:      circuit.ID,
			Description:        circuit.Description,
			WiringType:         circuit.WiringType,
			ReferenceMethod:    circuit.ReferenceMethod,
			Points:             circuit.Points,
			LiveCSA:            formatQuantity(circuit.LiveCSA),
			CPCCSA:             formatQuantity(circuit.CPCCSA),
			DeviceStandard:     circuit.Device.Standard,
			DeviceType:         circuit.Device.Type,
			DeviceRating:       formatQuantity(circuit.Device.RatingA),
			BreakingCapacityKA: formatQuantity(circuit.Device.BreakingCapacity),
			MaxPermittedZs:     formatQuantity(circuit.MaxZs),
		}
		if circuit.RCD != nil {
			detail.RCDType = circuit.RCD.Type
			detail.RCDRatingMA = formatQuantity(circuit.RCD.RatingMA)
		}
		s.CircuitDetails = append(s.CircuitDetails, detail)
		s.TestResults = append(s.TestResults, TestResultRow{CircuitNumber: circuit.ID})
	}
	return s
}

func formatQuantity(v float64) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%g", v)
}
