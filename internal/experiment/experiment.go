package experiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/pidloop/internal/config"
	"github.com/san-kum/pidloop/internal/dynamo"
	"github.com/san-kum/pidloop/internal/pid"
	"github.com/san-kum/pidloop/internal/storage"
)

var ErrNotSetup = errors.New("experiment not setup")

type Config struct {
	Plant      string
	Integrator string
	Controller string
	Setpoint   string
	InitState  []float64
	Dt         float64
	Duration   float64
	Seed       int64
	Tuning     pid.Tuning
	Limits     pid.Limits
	MaxState   float64
}

type Experiment struct {
	cfg        Config
	simulator  *dynamo.Simulator
	plant      dynamo.System
	controller dynamo.Controller
}

func New(cfg Config) *Experiment {
	return &Experiment{cfg: cfg}
}

func (e *Experiment) Setup(dyn dynamo.System, integrator dynamo.Integrator, controller dynamo.Controller, metrics []dynamo.Metric) error {
	e.plant = dyn
	e.controller = controller
	e.simulator = dynamo.New(dyn, integrator, controller)
	for _, m := range metrics {
		e.simulator.AddMetric(m)
	}
	return nil
}

// Build resolves a loaded configuration against the registry and returns a
// ready experiment.
func Build(reg *Registry, c *config.Config) (*Experiment, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	dyn, err := reg.GetPlant(c.Plant)
	if err != nil {
		return nil, err
	}
	integ, err := reg.GetIntegrator(c.Integrator)
	if err != nil {
		return nil, err
	}

	feedback := 0
	if m, ok := dyn.(dynamo.Measured); ok {
		feedback = m.FeedbackIndex()
	}

	ctrl, err := reg.GetController(c.Controller, ControllerSpec{
		Dim:      dyn.ControlDim(),
		Feedback: feedback,
		Tuning:   c.Tuning(),
		Limits:   c.Limits(),
		Setpoint: c.SetpointProfile(),
		Noise:    c.Noise,
		Seed:     c.Seed,
	})
	if err != nil {
		return nil, err
	}

	kind := c.Setpoint.Kind
	if kind == "" {
		kind = "constant"
	}

	e := New(Config{
		Plant:      c.Plant,
		Integrator: c.Integrator,
		Controller: c.Controller,
		Setpoint:   kind,
		InitState:  c.GetInitState(),
		Dt:         c.Dt,
		Duration:   c.Duration,
		Seed:       c.Seed,
		Tuning:     c.Tuning(),
		Limits:     c.Limits(),
		MaxState:   reg.DivergenceBound(c.Plant),
	})
	if err := e.Setup(dyn, integ, ctrl, reg.DefaultMetrics(c.Plant, ctrl, c.Limits())); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Experiment) Run(ctx context.Context) (*dynamo.Result, error) {
	if e.simulator == nil {
		return nil, ErrNotSetup
	}

	result, err := e.simulator.Run(ctx, e.InitState(), e.SimConfig())
	if err != nil {
		return result, fmt.Errorf("%s: %w", e.cfg.Plant, err)
	}
	return result, nil
}

func (e *Experiment) InitState() dynamo.State {
	x0 := make(dynamo.State, len(e.cfg.InitState))
	copy(x0, e.cfg.InitState)
	return x0
}

func (e *Experiment) SimConfig() dynamo.Config {
	simCfg := dynamo.DefaultConfig()
	simCfg.Dt = e.cfg.Dt
	simCfg.Duration = e.cfg.Duration
	simCfg.Seed = e.cfg.Seed
	simCfg.MaxState = e.cfg.MaxState
	return simCfg
}

// RunInfo describes the experiment for the run store. Tuning is recorded
// only for PID runs.
func (e *Experiment) RunInfo() storage.RunInfo {
	info := storage.RunInfo{
		Plant:      e.cfg.Plant,
		Integrator: e.cfg.Integrator,
		Controller: e.cfg.Controller,
		Dt:         e.cfg.Dt,
		Duration:   e.cfg.Duration,
		Seed:       e.cfg.Seed,
	}
	if e.cfg.Controller == "pid" {
		tuning, limits := e.cfg.Tuning, e.cfg.Limits
		info.Tuning = &tuning
		info.Limits = &limits
		info.Setpoint = e.cfg.Setpoint
	}
	return info
}

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *dynamo.Simulator {
	return e.simulator
}

func (e *Experiment) Plant() dynamo.System          { return e.plant }
func (e *Experiment) Controller() dynamo.Controller { return e.controller }
