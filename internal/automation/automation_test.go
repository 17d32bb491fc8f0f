package automation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/san-kum/pidloop/internal/config"
	"github.com/san-kum/pidloop/internal/experiment"
	"github.com/san-kum/pidloop/internal/storage"
)

const scenarioYAML = `
name: motor retune
description: baseline against a doubled gain
steps:
  - name: baseline
    preset: motor/speed
    save: true
  - name: doubled
    preset: motor/speed
    config:
      duration: 2
      pid:
        kp: 0.004
  - name: heavy
    preset: spring_mass/hold
    plant_params:
      mass: 2
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveOverridesPreset(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	cfg, err := sc.Steps[1].Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PID.Kp != 0.004 {
		t.Errorf("expected kp override 0.004, got %f", cfg.PID.Kp)
	}
	if cfg.Duration != 2 {
		t.Errorf("expected duration override 2, got %f", cfg.Duration)
	}
	if cfg.PID.Hi != 12 || cfg.Setpoint.Value != 100 {
		t.Errorf("preset values lost: %+v", cfg)
	}

	if config.GetPreset("motor", "speed").PID.Kp != 0.002 {
		t.Error("override leaked into the shared preset")
	}
}

func TestRunScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}

	st := storage.New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}

	results, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), st, zap.NewNop())
	if err != nil {
		t.Fatalf("scenario failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if results[0].RunID == "" {
		t.Error("saved step should have a run id")
	}
	if results[1].RunID != "" {
		t.Error("unsaved step should not have a run id")
	}
	if got := results[1].Result.StepsTaken; got != 200 {
		t.Errorf("expected 200 steps for a 2s run, got %d", got)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 stored run, got %d", len(runs))
	}
}

func TestScenarioErrors(t *testing.T) {
	if _, err := LoadScenario(writeScenario(t, "name: empty\n")); !errors.Is(err, ErrEmptyScenario) {
		t.Errorf("expected ErrEmptyScenario, got %v", err)
	}

	bad := &Scenario{Steps: []ScenarioStep{{Preset: "motor/nope"}}}
	if _, err := RunScenario(context.Background(), bad, experiment.NewRegistry(), nil, nil); !errors.Is(err, config.ErrUnknownPreset) {
		t.Errorf("expected ErrUnknownPreset, got %v", err)
	}

	bad = &Scenario{Steps: []ScenarioStep{{Preset: "motor"}}}
	if _, err := RunScenario(context.Background(), bad, experiment.NewRegistry(), nil, nil); err == nil {
		t.Error("expected error for malformed preset")
	}
}

func TestGainSweepValues(t *testing.T) {
	sw := &GainSweep{Min: 1, Max: 3, Steps: 5}
	want := []float64{1, 1.5, 2, 2.5, 3}
	got := sw.Values()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d: expected %f, got %f", i, want[i], got[i])
		}
	}

	single := &GainSweep{Min: 4, Max: 9, Steps: 1}
	if v := single.Values(); len(v) != 1 || v[0] != 4 {
		t.Errorf("single step sweep should use min, got %v", v)
	}
}

func TestRunGainSweep(t *testing.T) {
	base, err := config.Lookup("motor", "speed")
	if err != nil {
		t.Fatal(err)
	}

	sw := &GainSweep{Base: base, Param: "hi", Min: 6, Max: 12, Steps: 2}
	results, err := RunGainSweep(context.Background(), sw, experiment.NewRegistry())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	// Capped at 6 V the motor tops out at 60 rad/s.
	if results[0].Final > 61 {
		t.Errorf("saturated loop should stall near 60, got %f", results[0].Final)
	}
	if results[0].Metrics["saturation"] < 0.5 {
		t.Errorf("expected mostly saturated output, got %f", results[0].Metrics["saturation"])
	}
	if results[1].Final < 99 {
		t.Errorf("unsaturated loop should reach the setpoint, got %f", results[1].Final)
	}
}

func TestRunGainSweepUnknownParam(t *testing.T) {
	sw := &GainSweep{Base: config.DefaultConfig(), Param: "gain", Min: 1, Max: 2, Steps: 2}
	if _, err := RunGainSweep(context.Background(), sw, experiment.NewRegistry()); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestRunMonteCarlo(t *testing.T) {
	base, err := config.Lookup("actuator", "velocity")
	if err != nil {
		t.Fatal(err)
	}

	mc := &MonteCarloConfig{Base: base, Perturbation: 0.2, NumTrials: 4, Seed: 3}
	first, err := RunMonteCarlo(context.Background(), mc, experiment.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	second, err := RunMonteCarlo(context.Background(), mc, experiment.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != 4 {
		t.Fatalf("expected 4 trials, got %d", len(first))
	}
	for i := range first {
		if !first[i].Stable {
			t.Errorf("trial %d unstable", i)
		}
		if first[i].Final != second[i].Final {
			t.Errorf("trial %d not reproducible: %f vs %f", i, first[i].Final, second[i].Final)
		}
	}
	if first[0].InitState[1] == first[1].InitState[1] {
		t.Error("trials should start from different states")
	}
}
