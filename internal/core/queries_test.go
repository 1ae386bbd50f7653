package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"testrig/pkg/domain"
)

func TestQueries(t *testing.T) {
	cat := orderedCatalog()
	r := NewReducer(cat)
	circuit, _ := cat.Circuit(1)
	state := applyAll(r, r.Initial(sessionStart),
		domain.SelectCircuit{CircuitID: 1},
		domain.CompleteTest{Reading: readingFor(1, circuit.RequiredTests[0], "0.31", true)},
		domain.CompleteTest{Reading: readingFor(1, circuit.RequiredTests[0], "0.31", true)},
	)

	active, ok := ActiveCircuit(cat, state)
	if !ok || active.Description != "Radial sockets" {
		t.Fatalf("active circuit = %+v ok=%v", active, ok)
	}
	if got := CompletionPercent(cat, state); got != 20 {
		t.Fatalf("completion = %d, want 20", got)
	}

	want := []CircuitSummary{
		{CircuitID: 1, Description: "Radial sockets", Completed: 1, Total: 4, Readings: 2, Status: domain.StatusPartial},
		{CircuitID: 2, Description: "Spare", Completed: 0, Total: 1, Readings: 0, Status: domain.StatusUntested},
	}
	if diff := cmp.Diff(want, ProgressSummary(cat, state)); diff != "" {
		t.Fatalf("progress mismatch (-want +got):\n%s", diff)
	}

	idle := r.Initial(sessionStart)
	if _, ok := ActiveCircuit(cat, idle); ok {
		t.Fatalf("no circuit should be active initially")
	}
	empty := domain.NewCatalog("1.0.0", domain.Installation{}, nil)
	if got := CompletionPercent(empty, NewReducer(empty).Initial(sessionStart)); got != 0 {
		t.Fatalf("empty catalog completion = %d", got)
	}
}
