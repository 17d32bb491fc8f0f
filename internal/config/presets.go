package config

import (
	"fmt"
	"sort"
)

var Presets = map[string]map[string]*Config{
	"motor": {
		"speed": {
			Plant: "motor", Integrator: "rk4", Controller: "pid", Dt: 0.01, Duration: 10.0,
			Setpoint: SetpointConfig{Kind: "constant", Value: 100},
			PID:      PIDConfig{Kp: 0.002, Hi: 12, Lo: -12},
		},
		"ramp": {
			Plant: "motor", Integrator: "rk4", Controller: "pid", Dt: 0.01, Duration: 15.0,
			Setpoint: SetpointConfig{Kind: "ramp", From: 0, To: 100, Start: 1, End: 6},
			PID:      PIDConfig{Kp: 0.002, Hi: 12, Lo: -12},
		},
		"saturated": {
			Plant: "motor", Integrator: "rk4", Controller: "pid", Dt: 0.01, Duration: 10.0,
			Setpoint: SetpointConfig{Kind: "constant", Value: 100},
			PID:      PIDConfig{Kp: 0.002, Hi: 6, Lo: -6},
		},
		"deadband": {
			Plant: "motor", Integrator: "rk4", Controller: "pid", Dt: 0.01, Duration: 10.0,
			Seed: 1, Noise: 0.5,
			Setpoint: SetpointConfig{Kind: "constant", Value: 100},
			PID:      PIDConfig{Kp: 0.002, Deadband: 0.005, Hi: 12, Lo: -12},
		},
	},
	"actuator": {
		"velocity": {
			Plant: "actuator", Integrator: "euler", Controller: "pid", Dt: 0.01, Duration: 10.0,
			Setpoint: SetpointConfig{Kind: "constant", Value: 1},
			PID:      PIDConfig{Kp: 0.02, Hi: 10, Lo: -10},
		},
		"stiction": {
			Plant: "actuator", Integrator: "euler", Controller: "pid", Dt: 0.01, Duration: 10.0,
			Setpoint: SetpointConfig{Kind: "step", From: 0, To: 1, Time: 1},
			PID:      PIDConfig{Kp: 0.02, Hi: 10, Lo: -10, Stiction: 1.5},
		},
		"open": {
			Plant: "actuator", Integrator: "euler", Controller: "none", Dt: 0.01, Duration: 5.0,
			InitState: InitStateConfig{Vel: 1},
		},
	},
	"spring_mass": {
		"hold": {
			Plant: "spring_mass", Integrator: "rk4", Controller: "pid", Dt: 0.01, Duration: 20.0,
			Setpoint: SetpointConfig{Kind: "constant", Value: 0.5},
			PID:      PIDConfig{Kp: 0.02, Hi: 20, Lo: -20},
		},
		"step": {
			Plant: "spring_mass", Integrator: "rk4", Controller: "pid", Dt: 0.01, Duration: 20.0,
			Setpoint: SetpointConfig{Kind: "step", From: 0, To: 1, Time: 2},
			PID:      PIDConfig{Kp: 0.02, Ki: 0.0001, Hi: 20, Lo: -20, Windup: 0.5},
		},
		"free": {
			Plant: "spring_mass", Integrator: "rk4", Controller: "none", Dt: 0.01, Duration: 10.0,
			InitState: InitStateConfig{Pos: 1},
		},
	},
}

func GetPreset(plant, preset string) *Config {
	plantPresets, ok := Presets[plant]
	if !ok {
		return nil
	}
	cfg, ok := plantPresets[preset]
	if !ok {
		return nil
	}
	return cfg
}

// Lookup is GetPreset returning a copy, or ErrUnknownPreset.
func Lookup(plant, preset string) (*Config, error) {
	cfg := GetPreset(plant, preset)
	if cfg == nil {
		return nil, fmt.Errorf("%w: %s/%s (available: %v)", ErrUnknownPreset, plant, preset, ListPresets(plant))
	}
	c := *cfg
	return &c, nil
}

func ListPresets(plant string) []string {
	plantPresets, ok := Presets[plant]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(plantPresets))
	for name := range plantPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
