package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pidloop/internal/control"
	"github.com/san-kum/pidloop/internal/pid"
)

const (
	DefaultDt       = 0.01
	DefaultDuration = 10.0
	DefaultSetpoint = 100.0
	DefaultKp       = 0.002
	DefaultHi       = 12.0
	DefaultLo       = -12.0
)

var (
	ErrUnknownPreset = errors.New("config: unknown preset")
	ErrInvalid       = errors.New("config: invalid value")
)

type Config struct {
	Plant      string          `yaml:"plant"`
	Integrator string          `yaml:"integrator"`
	Controller string          `yaml:"controller"`
	Dt         float64         `yaml:"dt"`
	Duration   float64         `yaml:"duration"`
	Seed       int64           `yaml:"seed"`
	Noise      float64         `yaml:"noise"`
	InitState  InitStateConfig `yaml:"init_state"`
	Setpoint   SetpointConfig  `yaml:"setpoint"`
	PID        PIDConfig       `yaml:"pid"`
}

type InitStateConfig struct {
	Pos   float64 `yaml:"pos"`
	Vel   float64 `yaml:"vel"`
	Speed float64 `yaml:"speed"`
}

// SetpointConfig describes the reference. Kind is "constant" (Value),
// "step" (From until Time, then To) or "ramp" (From to To over Start..End).
type SetpointConfig struct {
	Kind  string  `yaml:"kind"`
	Value float64 `yaml:"value"`
	From  float64 `yaml:"from"`
	To    float64 `yaml:"to"`
	Time  float64 `yaml:"time"`
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

type PIDConfig struct {
	Kp       float64 `yaml:"kp"`
	Ki       float64 `yaml:"ki"`
	Kd       float64 `yaml:"kd"`
	Deadband float64 `yaml:"deadband"`
	Hi       float64 `yaml:"hi"`
	Lo       float64 `yaml:"lo"`
	Stiction float64 `yaml:"stiction"`
	Windup   float64 `yaml:"windup"`
}

func DefaultConfig() *Config {
	return &Config{
		Plant:      "motor",
		Integrator: "rk4",
		Controller: "pid",
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Setpoint: SetpointConfig{
			Kind:  "constant",
			Value: DefaultSetpoint,
		},
		PID: PIDConfig{
			Kp: DefaultKp,
			Hi: DefaultHi,
			Lo: DefaultLo,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := LoadInto(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadInto overlays the file at path onto cfg; keys absent from the file
// keep their current values. cfg may be partly updated on error.
func LoadInto(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the run settings. PID tuning is deliberately not checked;
// the controller accepts any values.
func (c *Config) Validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalid, c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %g", ErrInvalid, c.Duration)
	}
	if c.Noise < 0 {
		return fmt.Errorf("%w: noise must not be negative, got %g", ErrInvalid, c.Noise)
	}
	switch c.Setpoint.Kind {
	case "", "constant", "step", "ramp":
	default:
		return fmt.Errorf("%w: setpoint kind %q", ErrInvalid, c.Setpoint.Kind)
	}
	if c.Setpoint.Kind == "ramp" && c.Setpoint.End <= c.Setpoint.Start {
		return fmt.Errorf("%w: ramp end must follow start", ErrInvalid)
	}
	return nil
}

func (c *Config) GetInitState() []float64 {
	switch c.Plant {
	case "actuator", "spring_mass":
		return []float64{c.InitState.Pos, c.InitState.Vel}
	default:
		return []float64{c.InitState.Speed}
	}
}

func (c *Config) Tuning() pid.Tuning {
	return pid.Tuning{
		Kp:       c.PID.Kp,
		Ki:       c.PID.Ki,
		Kd:       c.PID.Kd,
		Deadband: c.PID.Deadband,
		Stiction: c.PID.Stiction,
		Windup:   c.PID.Windup,
	}
}

func (c *Config) Limits() pid.Limits {
	return pid.Limits{Hi: c.PID.Hi, Lo: c.PID.Lo}
}

func (c *Config) SetpointProfile() control.Setpoint {
	sp := c.Setpoint
	switch sp.Kind {
	case "step":
		return control.Step{From: sp.From, To: sp.To, Time: sp.Time}
	case "ramp":
		return control.Ramp{From: sp.From, To: sp.To, Start: sp.Start, End: sp.End}
	default:
		return control.Constant(sp.Value)
	}
}

// GetControllerParams flattens the tuning for the experiment registry.
func (c *Config) GetControllerParams(controlDim int) map[string]float64 {
	return map[string]float64{
		"dim":      float64(controlDim),
		"kp":       c.PID.Kp,
		"ki":       c.PID.Ki,
		"kd":       c.PID.Kd,
		"deadband": c.PID.Deadband,
		"hi":       c.PID.Hi,
		"lo":       c.PID.Lo,
		"stiction": c.PID.Stiction,
		"windup":   c.PID.Windup,
	}
}

// SetPIDParam sets one field of the PID block by its yaml name.
func (c *Config) SetPIDParam(name string, value float64) error {
	switch name {
	case "kp":
		c.PID.Kp = value
	case "ki":
		c.PID.Ki = value
	case "kd":
		c.PID.Kd = value
	case "deadband":
		c.PID.Deadband = value
	case "hi":
		c.PID.Hi = value
	case "lo":
		c.PID.Lo = value
	case "stiction":
		c.PID.Stiction = value
	case "windup":
		c.PID.Windup = value
	default:
		return fmt.Errorf("%w: unknown pid parameter %q", ErrInvalid, name)
	}
	return nil
}
