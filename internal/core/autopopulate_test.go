package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"testrig/pkg/domain"
)

func TestPopulateScheduleMapping(t *testing.T) {
	r := defaultReducer(t)
	base := domain.NewSchedule(r.Catalog())

	cases := []struct {
		name    string
		reading domain.TestReading
		want    map[domain.ResultField]string
	}{
		{"ring r1", domain.TestReading{Dial: domain.DialContinuity, SubTest: domain.SubTestR1, Value: "0.33"}, map[domain.ResultField]string{domain.FieldRingR1: "0.33"}},
		{"ring rn", domain.TestReading{Dial: domain.DialContinuity, SubTest: domain.SubTestRn, Value: "0.34"}, map[domain.ResultField]string{domain.FieldRingRn: "0.34"}},
		{"ring r2", domain.TestReading{Dial: domain.DialContinuity, SubTest: domain.SubTestR2, Value: "0.54"}, map[domain.ResultField]string{domain.FieldRingR2: "0.54"}},
		{"r1r2", domain.TestReading{Dial: domain.DialContinuity, SubTest: domain.SubTestR1R2, Value: "0.22"}, map[domain.ResultField]string{domain.FieldR1R2: "0.22"}},
		{"continuity without sub-test", domain.TestReading{Dial: domain.DialContinuity, Value: "0.40"}, map[domain.ResultField]string{domain.FieldR1R2: "0.40"}},
		{"polarity pass uses compliance", domain.TestReading{Dial: domain.DialContinuity, SubTest: domain.SubTestPolarity, Value: "FAIL", Compliant: true}, map[domain.ResultField]string{domain.FieldPolarity: PolarityOK}},
		{"polarity fail", domain.TestReading{Dial: domain.DialContinuity, SubTest: domain.SubTestPolarity, Value: "OK"}, map[domain.ResultField]string{domain.FieldPolarity: PolarityFail}},
		{"ir live-live 500", domain.TestReading{Dial: domain.DialIR500, SubTest: domain.SubTestLiveLive, Value: ">299"}, map[domain.ResultField]string{domain.FieldIRLiveLive: ">299", domain.FieldIRTestVoltage: "500"}},
		{"ir live-earth 250", domain.TestReading{Dial: domain.DialIR250, SubTest: domain.SubTestLiveEarth, Value: "0.38"}, map[domain.ResultField]string{domain.FieldIRLiveEarth: "0.38", domain.FieldIRTestVoltage: "250"}},
		{"ir without sub-test", domain.TestReading{Dial: domain.DialIR500, Value: "1"}, nil},
		{"loop", domain.TestReading{Dial: domain.DialLoop, Value: "0.57"}, map[domain.ResultField]string{domain.FieldMaxZs: "0.57"}},
		{"rcd x1", domain.TestReading{Dial: domain.DialRCD30, SubTest: domain.SubTestRCDTimesX1, Value: "21"}, map[domain.ResultField]string{domain.FieldRCDDisconnectionTime: "21"}},
		{"rcd x5 100mA", domain.TestReading{Dial: domain.DialRCD100, SubTest: domain.SubTestRCDTimesX5, Value: "12"}, map[domain.ResultField]string{domain.FieldRCDDisconnectionTime: "12"}},
		{"rcd button", domain.TestReading{Dial: domain.DialRCD300, SubTest: domain.SubTestButton, Value: "OK"}, map[domain.ResultField]string{domain.FieldRCDTestButton: "OK"}},
		{"dial off", domain.TestReading{Dial: domain.DialOff, Value: "---"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.reading.CircuitID = 1
			got := PopulateSchedule(base, tc.reading)
			want := base.Clone()
			for f, v := range tc.want {
				want.TestResults[0].Set(f, v)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("unexpected schedule (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPopulateScheduleLeavesInputAlone(t *testing.T) {
	r := defaultReducer(t)
	base := domain.NewSchedule(r.Catalog())
	snapshot := base.Clone()
	_ = PopulateSchedule(base, domain.TestReading{CircuitID: 2, Dial: domain.DialLoop, Value: "1.10"})
	_ = PopulateSchedule(base, domain.TestReading{CircuitID: 2, Dial: domain.DialPFC, Value: "0.66"})
	if diff := cmp.Diff(snapshot, base); diff != "" {
		t.Fatalf("input mutated:\n%s", diff)
	}
}

func TestPopulateScheduleUnknownCircuit(t *testing.T) {
	r := defaultReducer(t)
	base := domain.NewSchedule(r.Catalog())
	got := PopulateSchedule(base, domain.TestReading{CircuitID: 77, Dial: domain.DialLoop, Value: "1.10"})
	if diff := cmp.Diff(base, got); diff != "" {
		t.Fatalf("unknown circuit changed schedule:\n%s", diff)
	}
}
