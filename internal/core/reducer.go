package core

import (
	"time"

	"testrig/pkg/domain"
)

// Reducer is the simulation state machine. Apply is pure and total: it never
// mutates its input, performs no I/O, and returns the input unchanged for
// actions that do not apply.
type Reducer struct {
	catalog *domain.Catalog
}

// NewReducer constructs a reducer over a read-only catalog.
func NewReducer(catalog *domain.Catalog) *Reducer {
	if catalog == nil {
		catalog = domain.NewCatalog("", domain.Installation{}, nil)
	}
	return &Reducer{catalog: catalog}
}

// Catalog returns the catalog the reducer was built with.
func (r *Reducer) Catalog() *domain.Catalog { return r.catalog }

// Initial builds a fresh session aggregate.
func (r *Reducer) Initial(startedAt time.Time) domain.SimulatorState {
	circuits := r.catalog.Circuits()
	progress := make(map[domain.CircuitID]domain.CircuitProgress, len(circuits))
	for _, c := range circuits {
		progress[c.ID] = domain.CircuitProgress{
			CircuitID:      c.ID,
			CompletedTests: []string{},
			TotalTests:     len(c.RequiredTests),
			Readings:       []domain.TestReading{},
			Status:         domain.StatusUntested,
		}
	}
	return domain.SimulatorState{
		Phase:            domain.PhaseRigSelect,
		Meter:            domain.RestMeter(),
		Progress:         progress,
		Schedule:         domain.NewSchedule(r.catalog),
		SessionStartedAt: startedAt,
	}
}

// Apply reduces an action over the state and returns the next state.
func (r *Reducer) Apply(state domain.SimulatorState, action domain.Action) domain.SimulatorState {
	if action == nil {
		return state
	}
	// Switching the meter off clears a running test in every phase.
	if d, ok := action.(domain.SetDialPosition); ok && d.Position == domain.DialOff {
		return setDial(state, d)
	}
	if !sessionPhases.permits(state.Phase, action.Kind()) {
		return state
	}
	switch a := action.(type) {
	case domain.SelectCircuit:
		return r.selectCircuit(state, a)
	case domain.SelectTestPoint:
		return selectTestPoint(state, a)
	case domain.SetDialPosition:
		return setDial(state, a)
	case domain.ConnectLeads:
		next := state.Clone()
		next.Meter.LeadsConnected = a.Connected
		return next
	case domain.StartTest:
		return startTest(state)
	case domain.CompleteTest:
		return r.completeTest(state, a.Reading)
	case domain.ClearReading:
		return clearReading(state)
	case domain.SetPhase:
		if !a.Phase.Valid() {
			return state
		}
		next := state.Clone()
		next.Phase = a.Phase
		return next
	case domain.UpdateScheduleField:
		return updateScheduleField(state, a)
	case domain.ReturnToCircuitSelection:
		next := state.Clone()
		next.Phase = domain.PhaseRigSelect
		next.ActiveCircuitID = nil
		next.ActiveTestPointID = nil
		next.Meter = domain.RestMeter()
		return next
	case domain.CalculateScore:
		score := CalculateScore(r.catalog, state)
		next := state.Clone()
		next.Score = &score
		next.Phase = domain.PhaseSummary
		return next
	case domain.ResetSession:
		return r.Initial(a.StartedAt)
	default:
		return state
	}
}

func (r *Reducer) selectCircuit(state domain.SimulatorState, a domain.SelectCircuit) domain.SimulatorState {
	if _, ok := r.catalog.Circuit(a.CircuitID); !ok {
		return state
	}
	next := state.Clone()
	id := a.CircuitID
	next.ActiveCircuitID = &id
	next.ActiveTestPointID = nil
	next.Meter = domain.RestMeter()
	next.Phase = domain.PhaseTesting
	return next
}

func selectTestPoint(state domain.SimulatorState, a domain.SelectTestPoint) domain.SimulatorState {
	next := state.Clone()
	tp := a.TestPointID
	next.ActiveTestPointID = &tp
	next.Meter.LastReading = nil
	next.Meter.IsTesting = false
	next.Meter.DisplayMode = domain.DisplayIdle
	next.Meter.LeadsConnected = true
	return next
}

func setDial(state domain.SimulatorState, a domain.SetDialPosition) domain.SimulatorState {
	if !a.Position.Valid() {
		return state
	}
	next := state.Clone()
	next.Meter.Dial = a.Position
	next.Meter.LastReading = nil
	next.Meter.IsTesting = false
	next.Meter.DisplayMode = domain.DisplayIdle
	if a.Position == domain.DialOff {
		next.Meter.LeadsConnected = false
	}
	return next
}

func startTest(state domain.SimulatorState) domain.SimulatorState {
	if state.Meter.Dial == domain.DialOff {
		return state
	}
	next := state.Clone()
	next.Meter.IsTesting = true
	next.Meter.DisplayMode = domain.DisplayTesting
	next.Meter.LastReading = nil
	return next
}

func clearReading(state domain.SimulatorState) domain.SimulatorState {
	next := state.Clone()
	next.Meter.LastReading = nil
	next.Meter.IsTesting = false
	next.Meter.DisplayMode = domain.DisplayIdle
	return next
}

func (r *Reducer) completeTest(state domain.SimulatorState, reading domain.TestReading) domain.SimulatorState {
	progress, ok := state.Progress[reading.CircuitID]
	if !ok {
		return state
	}
	circuit, ok := r.catalog.Circuit(reading.CircuitID)
	if !ok {
		return state
	}
	next := state.Clone()
	progress = progress.Clone()

	matched, found := circuit.FindMatchingTest(reading)
	if found && !progress.HasCompleted(matched.ID) {
		progress.CompletedTests = append(progress.CompletedTests, matched.ID)
	}
	progress.Readings = append(progress.Readings, reading)
	progress.Status = domain.StatusFor(len(progress.CompletedTests), progress.TotalTests)
	next.Progress[reading.CircuitID] = progress

	next.Schedule = PopulateSchedule(next.Schedule, reading)

	if found && matched.GN3Step > next.HighestStepReached {
		next.HighestStepReached = matched.GN3Step
	}

	last := reading
	next.Meter.LastReading = &last
	next.Meter.IsTesting = false
	next.Meter.DisplayMode = domain.DisplayResult
	return next
}

func updateScheduleField(state domain.SimulatorState, a domain.UpdateScheduleField) domain.SimulatorState {
	idx, ok := state.Schedule.ResultIndex(a.CircuitID)
	if !ok {
		return state
	}
	if _, known := state.Schedule.TestResults[idx].Get(a.Field); !known {
		return state
	}
	next := state.Clone()
	next.Schedule.TestResults[idx].Set(a.Field, a.Value)
	return next
}
