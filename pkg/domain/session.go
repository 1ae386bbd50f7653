package domain

import "time"

// Phase is the session-level simulator phase.
type Phase string

// Simulator phases. There are no automatic transitions between them.
const (
	PhaseRigSelect Phase = "rig-select"
	PhaseTesting   Phase = "testing"
	PhaseSummary   Phase = "summary"
)

// Valid reports whether the phase is known.
func (p Phase) Valid() bool {
	return p == PhaseRigSelect || p == PhaseTesting || p == PhaseSummary
}

// DisplayMode is what the simulated meter display is showing.
type DisplayMode string

// Meter display modes.
const (
	DisplayIdle    DisplayMode = "idle"
	DisplayTesting DisplayMode = "testing"
	DisplayResult  DisplayMode = "result"
)

// MeterState is the simulated multi-function tester.
type MeterState struct {
	Dial           DialPosition `json:"dial"`
	IsTesting      bool         `json:"isTesting"`
	LastReading    *TestReading `json:"lastReading,omitempty"`
	DisplayMode    DisplayMode  `json:"displayMode"`
	LeadsConnected bool         `json:"leadsConnected"`
}

// RestMeter returns the meter at rest: dial OFF, idle, leads disconnected.
func RestMeter() MeterState {
	return MeterState{Dial: DialOff, DisplayMode: DisplayIdle}
}

// CircuitStatus summarises completion of a circuit's required tests.
type CircuitStatus string

// Circuit statuses.
const (
	StatusUntested CircuitStatus = "untested"
	StatusPartial  CircuitStatus = "partial"
	StatusComplete CircuitStatus = "complete"
)

// StatusFor derives the circuit status from completed and total counts.
func StatusFor(completed, total int) CircuitStatus {
	switch {
	case completed == 0:
		return StatusUntested
	case completed == total:
		return StatusComplete
	default:
		return StatusPartial
	}
}

// CircuitProgress tracks one circuit's completed tests and reading history.
// CompletedTests is in completion order and never holds duplicates.
type CircuitProgress struct {
	CircuitID      CircuitID     `json:"circuitId"`
	CompletedTests []string      `json:"completedTests"`
	TotalTests     int           `json:"totalTests"`
	Readings       []TestReading `json:"readings"`
	Status         CircuitStatus `json:"status"`
}

// HasCompleted reports whether the required test id is already recorded.
func (p CircuitProgress) HasCompleted(testID string) bool {
	for _, id := range p.CompletedTests {
		if id == testID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the progress record.
func (p CircuitProgress) Clone() CircuitProgress {
	cp := p
	cp.CompletedTests = append([]string(nil), p.CompletedTests...)
	cp.Readings = append([]TestReading(nil), p.Readings...)
	return cp
}

// SimulatorScore is the composite competency score, each value a percentage.
type SimulatorScore struct {
	SequenceAccuracy     int `json:"sequenceAccuracy"`
	ReadingCorrectness   int `json:"readingCorrectness"`
	ScheduleCompleteness int `json:"scheduleCompleteness"`
	Overall              int `json:"overall"`
}

// SimulatorState is the aggregate root of a training session.
type SimulatorState struct {
	Phase             Phase                         `json:"phase"`
	ActiveCircuitID   *CircuitID                    `json:"activeCircuitId,omitempty"`
	ActiveTestPointID *string                       `json:"activeTestPointId,omitempty"`
	Meter             MeterState                    `json:"meter"`
	Progress          map[CircuitID]CircuitProgress `json:"progress"`
	Schedule          CertificationScheduleState    `json:"schedule"`
	// HighestStepReached is the furthest regulatory test-order step matched so far.
	HighestStepReached int             `json:"highestStepReached"`
	SessionStartedAt   time.Time       `json:"sessionStartedAt"`
	Score              *SimulatorScore `json:"score,omitempty"`
}

// Clone returns a deep copy of the aggregate.
func (s SimulatorState) Clone() SimulatorState {
	cp := s
	if s.ActiveCircuitID != nil {
		id := *s.ActiveCircuitID
		cp.ActiveCircuitID = &id
	}
	if s.ActiveTestPointID != nil {
		tp := *s.ActiveTestPointID
		cp.ActiveTestPointID = &tp
	}
	if s.Meter.LastReading != nil {
		r := *s.Meter.LastReading
		cp.Meter.LastReading = &r
	}
	if s.Progress != nil {
		cp.Progress = make(map[CircuitID]CircuitProgress, len(s.Progress))
		for id, p := range s.Progress {
			cp.Progress[id] = p.Clone()
		}
	}
	cp.Schedule = s.Schedule.Clone()
	if s.Score != nil {
		score := *s.Score
		cp.Score = &score
	}
	return cp
}
