package core

import "testrig/pkg/domain"

// ActiveCircuit returns the static metadata of the active circuit, if any.
func ActiveCircuit(catalog *domain.Catalog, state domain.SimulatorState) (domain.Circuit, bool) {
	if state.ActiveCircuitID == nil {
		return domain.Circuit{}, false
	}
	return catalog.Circuit(*state.ActiveCircuitID)
}

// CompletionPercent is completed tests over required tests across every
// circuit, rounded, and zero when the catalog requires nothing.
func CompletionPercent(catalog *domain.Catalog, state domain.SimulatorState) int {
	completed := 0
	for _, p := range state.Progress {
		completed += len(p.CompletedTests)
	}
	return roundPercent(float64(completed)*100, catalog.TotalRequiredTests())
}

// CircuitSummary is a read-only progress line for one circuit.
type CircuitSummary struct {
	CircuitID   domain.CircuitID     `json:"circuitId"`
	Description string               `json:"description"`
	Completed   int                  `json:"completed"`
	Total       int                  `json:"total"`
	Readings    int                  `json:"readings"`
	Status      domain.CircuitStatus `json:"status"`
}

// ProgressSummary lists per-circuit progress in catalog order.
func ProgressSummary(catalog *domain.Catalog, state domain.SimulatorState) []CircuitSummary {
	out := make([]CircuitSummary, 0, catalog.Len())
	for _, c := range catalog.Circuits() {
		p, ok := state.Progress[c.ID]
		if !ok {
			continue
		}
		out = append(out, CircuitSummary{
			CircuitID:   c.ID,
			Description: c.Description,
			Completed:   len(p.CompletedTests),
			Total:       p.TotalTests,
			Readings:    len(p.Readings),
			Status:      p.Status,
		})
	}
	return out
}
