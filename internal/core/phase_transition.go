package core

import "testrig/pkg/domain"

// phaseMachine lists the caller-initiated phase moves each action may make.
// Actions absent from an origin phase's set are no-ops in that phase. SetPhase
// is an administrative override and is not consulted here.
type phaseMachine struct {
	allowed map[domain.Phase]map[domain.ActionKind]struct{}
}

var testingActions = []domain.ActionKind{
	domain.KindSelectTestPoint,
	domain.KindSetDialPosition,
	domain.KindConnectLeads,
	domain.KindStartTest,
	domain.KindCompleteTest,
}

var sessionPhases = phaseMachine{
	allowed: map[domain.Phase]map[domain.ActionKind]struct{}{
		domain.PhaseRigSelect: toSet(append([]domain.ActionKind{
			domain.KindSelectCircuit,
			domain.KindReturnToCircuitSelection,
			domain.KindCalculateScore,
		}, testingActions...)...),
		domain.PhaseTesting: toSet(append([]domain.ActionKind{
			domain.KindSelectCircuit,
			domain.KindReturnToCircuitSelection,
			domain.KindCalculateScore,
		}, testingActions...)...),
		domain.PhaseSummary: toSet(domain.KindCalculateScore),
	},
}

// always lists actions valid in every phase.
var always = toSet(
	domain.KindClearReading,
	domain.KindSetPhase,
	domain.KindUpdateScheduleField,
	domain.KindResetSession,
)

// permits reports whether the action may run while the session is in phase.
func (m phaseMachine) permits(phase domain.Phase, kind domain.ActionKind) bool {
	if _, ok := always[kind]; ok {
		return true
	}
	set, ok := m.allowed[phase]
	if !ok {
		return false
	}
	_, ok = set[kind]
	return ok
}

func toSet[T comparable](values ...T) map[T]struct{} {
	set := make(map[T]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
