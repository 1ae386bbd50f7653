package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionKind is the stable wire name of an action.
type ActionKind string

// Action kinds.
const (
	KindSelectCircuit            ActionKind = "select-circuit"
	KindSelectTestPoint          ActionKind = "select-test-point"
	KindSetDialPosition          ActionKind = "set-dial-position"
	KindConnectLeads             ActionKind = "connect-leads"
	KindStartTest                ActionKind = "start-test"
	KindCompleteTest             ActionKind = "complete-test"
	KindClearReading             ActionKind = "clear-reading"
	KindSetPhase                 ActionKind = "set-phase"
	KindUpdateScheduleField      ActionKind = "update-schedule-field"
	KindReturnToCircuitSelection ActionKind = "return-to-circuit-selection"
	KindCalculateScore           ActionKind = "calculate-score"
	KindResetSession             ActionKind = "reset-session"
)

// Action is the closed set of state transitions the reducer understands.
type Action interface {
	Kind() ActionKind
	action()
}

// SelectCircuit makes a circuit active and moves the session into testing.
type SelectCircuit struct {
	CircuitID CircuitID `json:"circuitId"`
}

// SelectTestPoint records the point on the rig being probed.
type SelectTestPoint struct {
	TestPointID string `json:"testPointId"`
}

// SetDialPosition turns the meter's mode selector.
type SetDialPosition struct {
	Position DialPosition `json:"position"`
}

// ConnectLeads attaches or removes the meter test leads.
type ConnectLeads struct {
	Connected bool `json:"connected"`
}

// StartTest presses the meter's test button.
type StartTest struct{}

// CompleteTest delivers the reading produced for the running test.
type CompleteTest struct {
	Reading TestReading `json:"reading"`
}

// ClearReading returns the meter display to idle.
type ClearReading struct{}

// SetPhase overrides the phase directly.
type SetPhase struct {
	Phase Phase `json:"phase"`
}

// UpdateScheduleField edits one column of a circuit's test result row.
type UpdateScheduleField struct {
	CircuitID CircuitID   `json:"circuitId"`
	Field     ResultField `json:"field"`
	Value     string      `json:"value"`
}

// ReturnToCircuitSelection abandons the active circuit, keeping its progress.
type ReturnToCircuitSelection struct{}

// CalculateScore scores the session and moves it to summary.
type CalculateScore struct{}

// ResetSession discards the session. StartedAt becomes the new session start.
type ResetSession struct {
	StartedAt time.Time `json:"startedAt"`
}

func (SelectCircuit) Kind() ActionKind            { return KindSelectCircuit }
func (SelectTestPoint) Kind() ActionKind          { return KindSelectTestPoint }
func (SetDialPosition) Kind() ActionKind          { return KindSetDialPosition }
func (ConnectLeads) Kind() ActionKind             { return KindConnectLeads }
func (StartTest) Kind() ActionKind                { return KindStartTest }
func (CompleteTest) Kind() ActionKind             { return KindCompleteTest }
func (ClearReading) Kind() ActionKind             { return KindClearReading }
func (SetPhase) Kind() ActionKind                 { return KindSetPhase }
func (UpdateScheduleField) Kind() ActionKind      { return KindUpdateScheduleField }
func (ReturnToCircuitSelection) Kind() ActionKind { return KindReturnToCircuitSelection }
func (CalculateScore) Kind() ActionKind           { return KindCalculateScore }
func (ResetSession) Kind() ActionKind             { return KindResetSession }

func (SelectCircuit) action()            {}
func (SelectTestPoint) action()          {}
func (SetDialPosition) action()          {}
func (ConnectLeads) action()             {}
func (StartTest) action()                {}
func (CompleteTest) action()             {}
func (ClearReading) action()             {}
func (SetPhase) action()                 {}
func (UpdateScheduleField) action()      {}
func (ReturnToCircuitSelection) action() {}
func (CalculateScore) action()           {}
func (ResetSession) action()             {}

// UnknownActionError is returned when an envelope names an unsupported action.
type UnknownActionError struct {
	Kind string
}

func (e UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", e.Kind)
}

type actionEnvelope struct {
	Type ActionKind `json:"type"`
}

// DecodeAction decodes a JSON envelope of the form {"type": kind, ...fields}.
func DecodeAction(data []byte) (Action, error) {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode action envelope: %w", err)
	}
	var target Action
	switch env.Type {
	case KindSelectCircuit:
		target = &SelectCircuit{}
	case KindSelectTestPoint:
		target = &SelectTestPoint{}
	case KindSetDialPosition:
		target = &SetDialPosition{}
	case KindConnectLeads:
		target = &ConnectLeads{}
	case KindStartTest:
		return StartTest{}, nil
	case KindCompleteTest:
		target = &CompleteTest{}
	case KindClearReading:
		return ClearReading{}, nil
	case KindSetPhase:
		target = &SetPhase{}
	case KindUpdateScheduleField:
		target = &UpdateScheduleField{}
	case KindReturnToCircuitSelection:
		return ReturnToCircuitSelection{}, nil
	case KindCalculateScore:
		return CalculateScore{}, nil
	case KindResetSession:
		target = &ResetSession{}
	default:
		return nil, UnknownActionError{Kind: string(env.Type)}
	}
	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return deref(target), nil
}

func deref(a Action) Action {
	switch v := a.(type) {
	case *SelectCircuit:
		return *v
	case *SelectTestPoint:
		return *v
	case *SetDialPosition:
		return *v
	case *ConnectLeads:
		return *v
	case *CompleteTest:
		return *v
	case *SetPhase:
		return *v
	case *UpdateScheduleField:
		return *v
	case *ResetSession:
		return *v
	default:
		return a
	}
}

// EncodeAction renders an action as a typed JSON envelope.
func EncodeAction(a Action) ([]byte, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	kind, err := json.Marshal(a.Kind())
	if err != nil {
		return nil, err
	}
	fields["type"] = kind
	return json.Marshal(fields)
}
