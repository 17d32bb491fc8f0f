package automation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/pidloop/internal/config"
	"github.com/san-kum/pidloop/internal/dynamo"
	"github.com/san-kum/pidloop/internal/experiment"
	"github.com/san-kum/pidloop/internal/pid"
	"github.com/san-kum/pidloop/internal/storage"
)

var ErrEmptyScenario = errors.New("scenario has no steps")

// Scenario is a scripted sequence of loop runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from a preset ("plant/name") or the defaults, then
// applies Config as a partial override and PlantParams to the plant.
type ScenarioStep struct {
	Name        string             `yaml:"name"`
	Preset      string             `yaml:"preset"`
	Config      yaml.Node          `yaml:"config"`
	PlantParams map[string]float64 `yaml:"plant_params"`
	Save        bool               `yaml:"save"`
}

type StepResult struct {
	Name   string
	RunID  string
	Result *dynamo.Result
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyScenario)
	}

	return &scenario, nil
}

// Resolve builds the effective configuration of a step.
func (s *ScenarioStep) Resolve() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Preset != "" {
		plant, name, ok := strings.Cut(s.Preset, "/")
		if !ok {
			return nil, fmt.Errorf("preset %q: want plant/name", s.Preset)
		}
		preset, err := config.Lookup(plant, name)
		if err != nil {
			return nil, err
		}
		cfg = preset
	}
	if !s.Config.IsZero() {
		if err := s.Config.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config override: %w", err)
		}
	}
	return cfg, cfg.Validate()
}

// RunScenario executes every step in order. Steps marked Save are written to
// st when it is not nil.
func RunScenario(ctx context.Context, scenario *Scenario, registry *experiment.Registry, st *storage.Store, log *zap.Logger) ([]StepResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	results := make([]StepResult, 0, len(scenario.Steps))

	for i := range scenario.Steps {
		step := &scenario.Steps[i]
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step%d", i+1)
		}

		cfg, err := step.Resolve()
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
		}

		exp, err := experiment.Build(registry, cfg)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
		}

		if len(step.PlantParams) > 0 {
			tunable, ok := exp.Plant().(dynamo.Configurable)
			if !ok {
				return results, fmt.Errorf("step %d (%s): plant %s is not tunable", i+1, name, cfg.Plant)
			}
			for k, v := range step.PlantParams {
				if err := tunable.SetParam(k, v); err != nil {
					return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
				}
			}
		}

		log.Info("running scenario step",
			zap.Int("step", i+1),
			zap.Int("of", len(scenario.Steps)),
			zap.String("name", name),
			zap.String("plant", cfg.Plant))

		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d (%s) run: %w", i+1, name, err)
		}

		sr := StepResult{Name: name, Result: result}
		if step.Save && st != nil {
			sr.RunID, err = st.Save(exp.RunInfo(), result)
			if err != nil {
				return results, fmt.Errorf("step %d (%s) save: %w", i+1, name, err)
			}
		}
		results = append(results, sr)
	}

	return results, nil
}

// GainSweep varies one PID parameter of a base configuration over
// [Min, Max] in Steps evenly spaced values.
type GainSweep struct {
	Base  *config.Config
	Param string
	Min   float64
	Max   float64
	Steps int
}

type SweepResult struct {
	Value    float64
	Final    float64
	Metrics  map[string]float64
	Diverged bool
}

func (sw *GainSweep) Values() []float64 {
	if sw.Steps <= 1 {
		return []float64{sw.Min}
	}
	step := (sw.Max - sw.Min) / float64(sw.Steps-1)
	vals := make([]float64, sw.Steps)
	for i := range vals {
		vals[i] = sw.Min + float64(i)*step
	}
	return vals
}

// RunGainSweep runs every value of the sweep concurrently against fresh
// copies of the plant.
func RunGainSweep(ctx context.Context, sw *GainSweep, registry *experiment.Registry) ([]SweepResult, error) {
	base := sw.Base
	if err := base.Validate(); err != nil {
		return nil, err
	}

	template, err := registry.GetPlant(base.Plant)
	if err != nil {
		return nil, err
	}
	if _, err := registry.GetIntegrator(base.Integrator); err != nil {
		return nil, err
	}
	feedback := 0
	if m, ok := template.(dynamo.Measured); ok {
		feedback = m.FeedbackIndex()
	}

	values := sw.Values()
	ctrls := make([]dynamo.Controller, len(values))
	// Limits may be the swept parameter, so saturation is measured against
	// each controller's own bounds.
	limits := make(map[dynamo.Controller]pid.Limits, len(values))
	for i, v := range values {
		cfg := *base
		if err := cfg.SetPIDParam(sw.Param, v); err != nil {
			return nil, err
		}
		ctrl, err := registry.GetController("pid", experiment.ControllerSpec{
			Dim:      template.ControlDim(),
			Feedback: feedback,
			Tuning:   cfg.Tuning(),
			Limits:   cfg.Limits(),
			Setpoint: cfg.SetpointProfile(),
			Noise:    cfg.Noise,
			Seed:     cfg.Seed,
		})
		if err != nil {
			return nil, err
		}
		ctrls[i] = ctrl
		limits[ctrl] = cfg.Limits()
	}

	sweep := dynamo.NewSweep(
		func() dynamo.System {
			p, _ := registry.GetPlant(base.Plant)
			return p
		},
		func() dynamo.Integrator {
			in, _ := registry.GetIntegrator(base.Integrator)
			return in
		},
		func(c dynamo.Controller) []dynamo.Metric {
			return registry.DefaultMetrics(base.Plant, c, limits[c])
		},
		ctrls...,
	)

	simCfg := dynamo.DefaultConfig()
	simCfg.Dt = base.Dt
	simCfg.Duration = base.Duration
	simCfg.Seed = base.Seed
	simCfg.MaxState = registry.DivergenceBound(base.Plant)

	runs, err := sweep.Run(ctx, base.GetInitState(), simCfg)
	if err != nil {
		return nil, err
	}

	results := make([]SweepResult, len(runs))
	for i, r := range runs {
		final := r.States[len(r.States)-1]
		results[i] = SweepResult{
			Value:    values[i],
			Metrics:  r.Metrics,
			Diverged: len(r.Errors) > 0,
		}
		if feedback < len(final) {
			results[i].Final = final[feedback]
		}
	}
	return results, nil
}

// MonteCarloConfig perturbs the initial state of a base configuration and
// reseeds its measurement noise for every trial.
type MonteCarloConfig struct {
	Base         *config.Config
	Perturbation float64
	NumTrials    int
	Seed         int64
}

type MonteCarloResult struct {
	TrialID   int
	InitState dynamo.State
	Final     float64
	IAE       float64
	Stable    bool
}

func RunMonteCarlo(ctx context.Context, mc *MonteCarloConfig, registry *experiment.Registry) ([]MonteCarloResult, error) {
	results := make([]MonteCarloResult, 0, mc.NumTrials)
	rng := rand.New(rand.NewSource(mc.Seed))

	for trial := 0; trial < mc.NumTrials; trial++ {
		cfg := *mc.Base
		cfg.Seed = mc.Seed + int64(trial)
		cfg.InitState.Pos += (rng.Float64() - 0.5) * 2 * mc.Perturbation
		cfg.InitState.Vel += (rng.Float64() - 0.5) * 2 * mc.Perturbation
		cfg.InitState.Speed += (rng.Float64() - 0.5) * 2 * mc.Perturbation

		exp, err := experiment.Build(registry, &cfg)
		if err != nil {
			return nil, err
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return nil, err
		}

		mr := MonteCarloResult{
			TrialID:   trial,
			InitState: exp.InitState(),
			IAE:       result.Metrics["iae"],
			Stable:    len(result.Errors) == 0 && result.Metrics["stability"] == 1,
		}
		if m, ok := exp.Plant().(dynamo.Measured); ok {
			final := result.States[len(result.States)-1]
			mr.Final = final[m.FeedbackIndex()]
		}
		results = append(results, mr)
	}

	return results, nil
}
