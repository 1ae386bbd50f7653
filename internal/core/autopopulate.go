package core

import "testrig/pkg/domain"

// Polarity values written to the schedule.
const (
	PolarityOK   = "OK"
	PolarityFail = "FAIL"
)

// PopulateSchedule maps a reading onto the certification schedule and returns
// the updated copy. The target column is chosen from the dial position and
// sub-test alone; no other column is touched. Prospective fault current is an
// origin measurement and updates the header instead of a circuit row. Readings
// for circuits without a result row leave the schedule unchanged.
func PopulateSchedule(schedule domain.CertificationScheduleState, reading domain.TestReading) domain.CertificationScheduleState {
	if reading.Dial == domain.DialPFC {
		next := schedule.Clone()
		next.Header.MeasuredPFC = reading.Value
		next.Header.PFC = reading.Value
		return next
	}
	idx, ok := schedule.ResultIndex(reading.CircuitID)
	if !ok {
		return schedule
	}
	updates := scheduleUpdates(reading)
	if len(updates) == 0 {
		return schedule
	}
	next := schedule.Clone()
	row := &next.TestResults[idx]
	for _, u := range updates {
		row.Set(u.field, u.value)
	}
	return next
}

type fieldUpdate struct {
	field domain.ResultField
	value string
}

func scheduleUpdates(r domain.TestReading) []fieldUpdate {
	switch {
	case r.Dial == domain.DialContinuity:
		switch r.SubTest {
		case domain.SubTestR1:
			return []fieldUpdate{{domain.FieldRingR1, r.Value}}
		case domain.SubTestRn:
			return []fieldUpdate{{domain.FieldRingRn, r.Value}}
		case domain.SubTestR2:
			return []fieldUpdate{{domain.FieldRingR2, r.Value}}
		case domain.SubTestR1R2, domain.SubTestNone:
			return []fieldUpdate{{domain.FieldR1R2, r.Value}}
		case domain.SubTestPolarity:
			result := PolarityFail
			if r.Compliant {
				result = PolarityOK
			}
			return []fieldUpdate{{domain.FieldPolarity, result}}
		}
	case r.Dial.IsInsulation():
		voltage := fieldUpdate{domain.FieldIRTestVoltage, r.Dial.TestVoltage()}
		switch r.SubTest {
		case domain.SubTestLiveLive:
			return []fieldUpdate{{domain.FieldIRLiveLive, r.Value}, voltage}
		case domain.SubTestLiveEarth:
			return []fieldUpdate{{domain.FieldIRLiveEarth, r.Value}, voltage}
		}
	case r.Dial == domain.DialLoop:
		return []fieldUpdate{{domain.FieldMaxZs, r.Value}}
	case r.Dial.IsRCD():
		if r.SubTest == domain.SubTestButton {
			return []fieldUpdate{{domain.FieldRCDTestButton, r.Value}}
		}
		return []fieldUpdate{{domain.FieldRCDDisconnectionTime, r.Value}}
	}
	return nil
}
