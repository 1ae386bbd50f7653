package readings

import (
	"testing"

	"testrig/internal/catalog"
	"testrig/pkg/domain"
)

func defaultGenerator(t *testing.T) *Generator {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return New(cat)
}

func TestReadings(t *testing.T) {
	g := defaultGenerator(t)
	cases := []struct {
		name      string
		circuit   domain.CircuitID
		point     string
		dial      domain.DialPosition
		sub       domain.SubTest
		value     string
		compliant bool
	}{
		{"ring r1", 1, "cu", domain.DialContinuity, domain.SubTestR1, "0.33", true},
		{"ring rn", 1, "cu", domain.DialContinuity, domain.SubTestRn, "0.33", true},
		{"ring r2", 1, "cu", domain.DialContinuity, domain.SubTestR2, "0.54", true},
		{"ring r1r2", 1, "socket-1", domain.DialContinuity, domain.SubTestR1R2, "0.22", true},
		{"ring polarity", 1, "socket-1", domain.DialContinuity, domain.SubTestPolarity, DisplayPass, true},
		{"ring ir", 1, "cu", domain.DialIR500, domain.SubTestLiveEarth, DisplayIRMax, true},
		{"ring zs", 1, "socket-1", domain.DialLoop, domain.SubTestNone, "0.57", true},
		{"ring rcd x1", 1, "socket-1", domain.DialRCD30, domain.SubTestRCDTimesX1, "21", true},
		{"ring rcd x5", 1, "socket-1", domain.DialRCD30, domain.SubTestRCDTimesX5, "12", true},
		{"ring rcd button", 1, "cu", domain.DialRCD30, domain.SubTestButton, DisplayPass, true},
		{"origin pfc", 1, "cu", domain.DialPFC, domain.SubTestNone, "0.66", true},
		{"radial leg test", 2, "cu", domain.DialContinuity, domain.SubTestR1, DisplayOverRange, false},
		{"high zs fault", 3, "cooker-switch", domain.DialLoop, domain.SubTestNone, "2.19", false},
		{"slow rcd fault", 4, "isolator", domain.DialRCD30, domain.SubTestRCDTimesX1, "412", false},
		{"low ir fault", 5, "cu", domain.DialIR250, domain.SubTestLiveEarth, "0.38", false},
		{"no rcd fitted", 2, "cu", domain.DialRCD30, domain.SubTestRCDTimesX1, DisplayNoTest, false},
		{"unknown circuit", 99, "cu", domain.DialLoop, domain.SubTestNone, DisplayNoTest, false},
		{"dial off", 1, "cu", domain.DialOff, domain.SubTestNone, DisplayNoTest, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := g.Read(tc.circuit, tc.point, tc.dial, tc.sub)
			if r.Value != tc.value || r.Compliant != tc.compliant {
				t.Fatalf("got %q compliant=%v, want %q compliant=%v", r.Value, r.Compliant, tc.value, tc.compliant)
			}
			if r.CircuitID != tc.circuit || r.TestPointID != tc.point || r.Dial != tc.dial || r.SubTest != tc.sub {
				t.Fatalf("reading does not echo request: %+v", r)
			}
		})
	}
}

func TestFaultVariants(t *testing.T) {
	ring := domain.Circuit{
		ID: 7, Ring: true, LiveCSA: 2.5, CPCCSA: 1.5, LengthM: 40, MaxZs: 1.37,
		Fault: domain.FaultOpenRing,
	}
	polarity := domain.Circuit{ID: 8, LiveCSA: 1.5, CPCCSA: 1, LengthM: 10, MaxZs: 7.28, Fault: domain.FaultReversedPolarity}
	cat := domain.NewCatalog("1.0.0", domain.Installation{Ze: 0.8}, []domain.Circuit{ring, polarity})
	g := New(cat)

	if r := g.Read(7, "cu", domain.DialContinuity, domain.SubTestR1); r.Value != DisplayOverRange || r.Compliant {
		t.Fatalf("open ring leg should read OL, got %+v", r)
	}
	if r := g.Read(7, "cu", domain.DialContinuity, domain.SubTestR1R2); r.Compliant {
		t.Fatalf("open ring r1r2 should not be compliant, got %+v", r)
	}
	if r := g.Read(8, "cu", domain.DialContinuity, domain.SubTestPolarity); r.Value != DisplayFail || r.Compliant {
		t.Fatalf("reversed polarity should fail, got %+v", r)
	}
	if r := g.Read(8, "cu", domain.DialContinuity, domain.SubTestNone); r.Value != "0.30" || !r.Compliant {
		t.Fatalf("radial r1r2 without discriminator: got %+v", r)
	}
}

func TestZeroZeReadsOverRange(t *testing.T) {
	cat := domain.NewCatalog("1.0.0", domain.Installation{}, []domain.Circuit{{ID: 1, MaxZs: 1}})
	r := New(cat).Read(1, "cu", domain.DialPFC, domain.SubTestNone)
	if r.Value != DisplayOverRange || r.Compliant {
		t.Fatalf("expected OL for zero Ze, got %+v", r)
	}
}

func TestReadIsDeterministic(t *testing.T) {
	g := defaultGenerator(t)
	a := g.Read(4, "isolator", domain.DialLoop, domain.SubTestNone)
	b := g.Read(4, "isolator", domain.DialLoop, domain.SubTestNone)
	if a != b {
		t.Fatalf("expected identical readings, got %+v and %+v", a, b)
	}
}
