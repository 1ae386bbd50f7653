package core

import (
	"math"
	"sort"

	"testrig/pkg/domain"
)

// Score weights in percent; they sum to 100.
const (
	WeightSequence     = 35
	WeightReadings     = 35
	WeightCompleteness = 30
)

// completenessFields are the schedule columns inspected for completeness.
var completenessFields = []domain.ResultField{
	domain.FieldR1R2,
	domain.FieldIRTestVoltage,
	domain.FieldIRLiveLive,
	domain.FieldIRLiveEarth,
	domain.FieldMaxZs,
}

// CalculateScore scores a session. Each sub-score is a rounded percentage and
// is zero when its denominator is zero.
func CalculateScore(catalog *domain.Catalog, state domain.SimulatorState) domain.SimulatorScore {
	seq := SequenceAccuracy(catalog, state)
	readings := ReadingCorrectness(state)
	complete := ScheduleCompleteness(state.Schedule)
	overall := roundPercent(float64(seq*WeightSequence+readings*WeightReadings+complete*WeightCompleteness), 100)
	return domain.SimulatorScore{
		SequenceAccuracy:     seq,
		ReadingCorrectness:   readings,
		ScheduleCompleteness: complete,
		Overall:              overall,
	}
}

// SequenceAccuracy checks completed tests against the regulatory order. The
// running step resets per circuit; a step is in order when it is not below the
// previous completed step.
func SequenceAccuracy(catalog *domain.Catalog, state domain.SimulatorState) int {
	inOrder, checked := 0, 0
	for _, id := range progressOrder(catalog, state.Progress) {
		circuit, ok := catalog.Circuit(id)
		if !ok {
			continue
		}
		last := math.MinInt
		for _, testID := range state.Progress[id].CompletedTests {
			test, ok := circuit.RequiredTest(testID)
			if !ok {
				continue
			}
			checked++
			if test.GN3Step >= last {
				inOrder++
			}
			last = test.GN3Step
		}
	}
	return roundPercent(float64(inOrder)*100, checked)
}

// ReadingCorrectness is the share of every recorded reading, matched or not,
// that was compliant.
func ReadingCorrectness(state domain.SimulatorState) int {
	compliant, total := 0, 0
	for _, p := range state.Progress {
		for _, r := range p.Readings {
			total++
			if r.Compliant {
				compliant++
			}
		}
	}
	return roundPercent(float64(compliant)*100, total)
}

// ScheduleCompleteness is the share of the key result columns that hold a value.
func ScheduleCompleteness(schedule domain.CertificationScheduleState) int {
	filled, slots := 0, 0
	for _, row := range schedule.TestResults {
		for _, f := range completenessFields {
			slots++
			if v, _ := row.Get(f); v != "" {
				filled++
			}
		}
	}
	return roundPercent(float64(filled)*100, slots)
}

func roundPercent(scaled float64, denominator int) int {
	if denominator == 0 {
		return 0
	}
	return int(math.Round(scaled / float64(denominator)))
}

// progressOrder returns progress keys in catalog order, then any unknown ids
// ascending, so iteration is deterministic.
func progressOrder(catalog *domain.Catalog, progress map[domain.CircuitID]domain.CircuitProgress) []domain.CircuitID {
	ids := make([]domain.CircuitID, 0, len(progress))
	seen := make(map[domain.CircuitID]struct{}, len(progress))
	for _, c := range catalog.Circuits() {
		if _, ok := progress[c.ID]; ok {
			ids = append(ids, c.ID)
			seen[c.ID] = struct{}{}
		}
	}
	var rest []domain.CircuitID
	for id := range progress {
		if _, ok := seen[id]; !ok {
			rest = append(rest, id)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(ids, rest...)
}
