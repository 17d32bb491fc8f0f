package dynamo

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// MaxAbs is the largest component magnitude.
func (s State) MaxAbs() float64 {
	m := 0.0
	for _, v := range s {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

type Control []float64

type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Measured is implemented by plants that expose a single sensor reading.
type Measured interface {
	FeedbackIndex() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

type Controller interface {
	Compute(x State, t float64) Control
}

// Tracker is implemented by controllers that follow a reference signal.
// The simulator records the reference alongside the states.
type Tracker interface {
	Reference(t float64) float64
}

// Resetter is implemented by stateful controllers.
type Resetter interface {
	Reset()
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, u Control, t float64)
}

type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

type Config struct {
	Dt            float64
	Duration      float64
	Seed          int64
	ValidateState bool
	// MaxState stops the run with ErrUnstable once any state component
	// exceeds it in magnitude. Zero disables the check.
	MaxState      float64
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.01,
		Duration:      10.0,
		ValidateState: true,
	}
}

type Result struct {
	States     []State
	Controls   []Control
	Times      []float64
	References []float64
	Metrics    map[string]float64
	StepsTaken int
	Errors     []error
}

// Series returns component idx of every recorded state.
func (r *Result) Series(idx int) []float64 {
	out := make([]float64, 0, len(r.States))
	for _, s := range r.States {
		if idx < len(s) {
			out = append(out, s[idx])
		} else {
			out = append(out, 0)
		}
	}
	return out
}

// ControlSeries returns component idx of every recorded control.
func (r *Result) ControlSeries(idx int) []float64 {
	out := make([]float64, 0, len(r.Controls))
	for _, u := range r.Controls {
		if idx < len(u) {
			out = append(out, u[idx])
		} else {
			out = append(out, 0)
		}
	}
	return out
}

type SimError struct {
	Time    float64
	Step    int
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}
