package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"testrig/internal/core"
	"testrig/internal/readings"
	"testrig/pkg/domain"
)

type simulateResult struct {
	SessionID  string                `json:"sessionId"`
	Trainee    string                `json:"trainee"`
	Completion int                   `json:"completion"`
	Score      domain.SimulatorScore `json:"score"`
	Progress   []core.CircuitSummary `json:"progress"`
}

func newSimulateCmd(flags *rootFlags) *cobra.Command {
	var trainee string
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Walk every required test in regulatory order and print the score",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			cat, err := loadCatalog(cfg.Catalog.Path)
			if err != nil {
				return err
			}
			svc := core.NewService(cat, core.WithLogger(logger), core.WithReadingGenerator(readings.New(cat)))
			defer func() { _ = svc.Close() }()

			result, err := simulate(cmd.Context(), svc, trainee)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&trainee, "trainee", "demo", "trainee name recorded on the session")
	return cmd
}

// simulate drives a fresh session through every required test, circuit by
// circuit in catalog order and test by test in regulatory step order.
func simulate(ctx context.Context, svc *core.Service, trainee string) (simulateResult, error) {
	rec, err := svc.CreateSession(ctx, trainee)
	if err != nil {
		return simulateResult{}, err
	}
	dispatch := func(a domain.Action) error {
		_, err := svc.Dispatch(ctx, rec.ID, a)
		return err
	}
	for _, circuit := range svc.Catalog().Circuits() {
		if err := dispatch(domain.SelectCircuit{CircuitID: circuit.ID}); err != nil {
			return simulateResult{}, err
		}
		tests := append([]domain.RequiredTest(nil), circuit.RequiredTests...)
		sort.SliceStable(tests, func(i, j int) bool { return tests[i].GN3Step < tests[j].GN3Step })
		for _, test := range tests {
			steps := []domain.Action{
				domain.SelectTestPoint{TestPointID: test.TestPointID},
				domain.SetDialPosition{Position: test.Dial},
				domain.StartTest{},
			}
			for _, a := range steps {
				if err := dispatch(a); err != nil {
					return simulateResult{}, err
				}
			}
			if _, _, err := svc.Probe(ctx, rec.ID, test.TestPointID, test.Dial, test.SubTest); err != nil {
				return simulateResult{}, fmt.Errorf("probe %s: %w", test.ID, err)
			}
		}
		if err := dispatch(domain.ReturnToCircuitSelection{}); err != nil {
			return simulateResult{}, err
		}
	}
	state, err := svc.Dispatch(ctx, rec.ID, domain.CalculateScore{})
	if err != nil {
		return simulateResult{}, err
	}
	completion, err := svc.Completion(ctx, rec.ID)
	if err != nil {
		return simulateResult{}, err
	}
	progress, err := svc.Progress(ctx, rec.ID)
	if err != nil {
		return simulateResult{}, err
	}
	out := simulateResult{SessionID: rec.ID, Trainee: trainee, Completion: completion, Progress: progress}
	if state.Score != nil {
		out.Score = *state.Score
	}
	return out, nil
}
