package main

import (
	"github.com/spf13/cobra"

	"github.com/san-kum/pidloop/internal/config"
)

var (
	dt         float64
	duration   float64
	seed       int64
	noise      float64
	integrator string
	controller string
	setpoint   float64
	pos        float64
	vel        float64
	speed      float64
	configFile string
	preset     string

	kp, ki, kd float64
	deadband   float64
	hi, lo     float64
	stiction   float64
	windup     float64
)

// pidFlags maps flag names onto the yaml names of the pid block.
var pidFlags = map[string]*float64{
	"kp":       &kp,
	"ki":       &ki,
	"kd":       &kd,
	"deadband": &deadband,
	"hi":       &hi,
	"lo":       &lo,
	"stiction": &stiction,
	"windup":   &windup,
}

func addTuningFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Var(&kp, "kp", config.DefaultKp, "proportional gain")
	f.Float64Var(&ki, "ki", 0, "integral gain")
	f.Float64Var(&kd, "kd", 0, "derivative gain")
	f.Float64Var(&deadband, "deadband", 0, "ignore corrections smaller than this")
	f.Float64Var(&hi, "hi", config.DefaultHi, "output upper bound")
	f.Float64Var(&lo, "lo", config.DefaultLo, "output lower bound")
	f.Float64Var(&stiction, "stiction", 0, "report 0 while |output| is below this")
	f.Float64Var(&windup, "windup", 0, "integral clamp (<= 0 disables)")
}

func addLoopFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	f.Float64Var(&duration, "time", config.DefaultDuration, "duration")
	f.Int64Var(&seed, "seed", 0, "measurement noise seed")
	f.Float64Var(&noise, "noise", 0, "measurement noise stddev")
	f.StringVar(&integrator, "integrator", "rk4", "integrator")
	f.StringVar(&controller, "controller", "pid", "controller (pid, none)")
	f.Float64Var(&setpoint, "setpoint", config.DefaultSetpoint, "constant setpoint")
	f.Float64Var(&pos, "pos", 0, "initial position")
	f.Float64Var(&vel, "vel", 0, "initial velocity")
	f.Float64Var(&speed, "speed", 0, "initial motor speed")
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	addTuningFlags(cmd)
}

// resolveConfig layers defaults, preset, config file and changed flags, in
// that order.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	plant := cfg.Plant
	if len(args) > 0 {
		plant = args[0]
	}

	if preset != "" {
		p, err := config.Lookup(plant, preset)
		if err != nil {
			return nil, err
		}
		cfg = p
	}

	if configFile != "" {
		if err := config.LoadInto(cfg, configFile); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			plant = cfg.Plant
		}
	}
	cfg.Plant = plant

	f := cmd.Flags()
	if f.Changed("dt") {
		cfg.Dt = dt
	}
	if f.Changed("time") {
		cfg.Duration = duration
	}
	if f.Changed("seed") {
		cfg.Seed = seed
	}
	if f.Changed("noise") {
		cfg.Noise = noise
	}
	if f.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if f.Changed("controller") {
		cfg.Controller = controller
	}
	if f.Changed("setpoint") {
		cfg.Setpoint = config.SetpointConfig{Kind: "constant", Value: setpoint}
	}
	if f.Changed("pos") {
		cfg.InitState.Pos = pos
	}
	if f.Changed("vel") {
		cfg.InitState.Vel = vel
	}
	if f.Changed("speed") {
		cfg.InitState.Speed = speed
	}
	for name, v := range pidFlags {
		if f.Changed(name) {
			if err := cfg.SetPIDParam(name, *v); err != nil {
				return nil, err
			}
		}
	}

	return cfg, cfg.Validate()
}
