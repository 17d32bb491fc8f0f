package experiment

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/pidloop/internal/config"
	"github.com/san-kum/pidloop/internal/control"
	"github.com/san-kum/pidloop/internal/dynamo"
)

func TestRegistryLookups(t *testing.T) {
	reg := NewRegistry()

	for _, name := range reg.ListPlants() {
		if _, err := reg.GetPlant(name); err != nil {
			t.Errorf("plant %s: %v", name, err)
		}
	}
	if _, err := reg.GetPlant("pendulum"); err == nil {
		t.Error("expected error for unknown plant")
	}
	if _, err := reg.GetIntegrator("verlet"); err == nil {
		t.Error("expected error for unknown integrator")
	}
	if _, err := reg.GetController("lqr", ControllerSpec{}); err == nil {
		t.Error("expected error for unknown controller")
	}
}

func TestRegistryPIDController(t *testing.T) {
	reg := NewRegistry()

	ctrl, err := reg.GetController("pid", ControllerSpec{Dim: 1, Feedback: 1, Setpoint: control.Constant(2)})
	if err != nil {
		t.Fatal(err)
	}
	loop, ok := ctrl.(*control.Loop)
	if !ok {
		t.Fatalf("expected *control.Loop, got %T", ctrl)
	}
	if loop.FeedbackIndex() != 1 {
		t.Errorf("expected feedback index 1, got %d", loop.FeedbackIndex())
	}
	if loop.Reference(0) != 2 {
		t.Errorf("expected reference 2, got %f", loop.Reference(0))
	}

	ms := reg.DefaultMetrics("motor", ctrl, loop.Controller().Limits())
	names := map[string]bool{}
	for _, m := range ms {
		names[m.Name()] = true
	}
	for _, want := range []string{"stability", "control_effort", "iae", "saturation"} {
		if !names[want] {
			t.Errorf("missing metric %s in %v", want, names)
		}
	}
}

func TestRunNotSetup(t *testing.T) {
	e := New(Config{Plant: "motor"})
	if _, err := e.Run(context.Background()); !errors.Is(err, ErrNotSetup) {
		t.Errorf("expected ErrNotSetup, got %v", err)
	}
}

func TestPresetsSettle(t *testing.T) {
	tests := []struct {
		plant, preset string
		tol           float64
	}{
		{"motor", "speed", 1},
		{"actuator", "velocity", 0.05},
		{"spring_mass", "hold", 0.05},
	}

	reg := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.plant+"/"+tt.preset, func(t *testing.T) {
			cfg, err := config.Lookup(tt.plant, tt.preset)
			if err != nil {
				t.Fatal(err)
			}

			e, err := Build(reg, cfg)
			if err != nil {
				t.Fatalf("build failed: %v", err)
			}

			result, err := e.Run(context.Background())
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if len(result.Errors) > 0 {
				t.Fatalf("run reported errors: %v", result.Errors)
			}

			feedback := e.Plant().(dynamo.Measured).FeedbackIndex()
			final := result.States[len(result.States)-1][feedback]
			ref := result.References[len(result.References)-1]
			if math.Abs(final-ref) > tt.tol {
				t.Errorf("expected to settle near %f, got %f", ref, final)
			}
		})
	}
}

func TestBuildOpenLoop(t *testing.T) {
	cfg, err := config.Lookup("spring_mass", "free")
	if err != nil {
		t.Fatal(err)
	}

	e, err := Build(NewRegistry(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	info := e.RunInfo()
	if info.Tuning != nil {
		t.Error("open-loop run should not record a tuning")
	}

	result, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.References) != 0 {
		t.Error("open-loop run should not record references")
	}
	for _, u := range result.Controls {
		if u[0] != 0 {
			t.Fatalf("open loop applied control %f", u[0])
		}
	}
}

func TestBuildRejectsUnknownPlant(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Plant = "pendulum"

	if _, err := Build(NewRegistry(), cfg); err == nil {
		t.Error("expected error for unknown plant")
	}
}
