package control

import (
	"fmt"
	"math/rand"

	"github.com/san-kum/pidloop/internal/dynamo"
	"github.com/san-kum/pidloop/internal/pid"
)

// TimeOrigin is added to simulation time before it reaches the controller.
// Simulations start at t = 0, which the controller reads as "no timestamp".
const TimeOrigin = 1.0

// Loop closes a PID loop around one measured state component.
type Loop struct {
	ctrl     *pid.Controller
	setpoint Setpoint
	feedback int

	noise float64
	seed  int64
	rng   *rand.Rand
}

func NewLoop(ctrl *pid.Controller, setpoint Setpoint, feedbackIdx int) *Loop {
	return &Loop{
		ctrl:     ctrl,
		setpoint: setpoint,
		feedback: feedbackIdx,
	}
}

// WithNoise adds zero-mean gaussian noise of the given standard deviation to
// every feedback reading. The sequence restarts from seed on Reset.
func (l *Loop) WithNoise(stddev float64, seed int64) *Loop {
	l.noise = stddev
	l.seed = seed
	l.rng = rand.New(rand.NewSource(seed))
	return l
}

func (l *Loop) Compute(x dynamo.State, t float64) dynamo.Control {
	fb := 0.0
	if l.feedback < len(x) {
		fb = x[l.feedback]
	}
	if l.noise > 0 {
		fb += l.rng.NormFloat64() * l.noise
	}
	return dynamo.Control{l.ctrl.Step(l.setpoint.At(t), fb, t+TimeOrigin)}
}

func (l *Loop) Reference(t float64) float64 { return l.setpoint.At(t) }

// Reset clears the controller's run state before a new run.
func (l *Loop) Reset() {
	l.ctrl.Reset()
	if l.rng != nil {
		l.rng.Seed(l.seed)
	}
}

func (l *Loop) Controller() *pid.Controller { return l.ctrl }

// FeedbackIndex is the state component the loop measures.
func (l *Loop) FeedbackIndex() int { return l.feedback }

// GetParams returns tunable parameters for live adjustment
func (l *Loop) GetParams() map[string]float64 {
	t := l.ctrl.Tuning()
	params := map[string]float64{
		"kp":       t.Kp,
		"ki":       t.Ki,
		"kd":       t.Kd,
		"deadband": t.Deadband,
		"stiction": t.Stiction,
		"windup":   t.Windup,
	}
	if c, ok := l.setpoint.(Constant); ok {
		params["setpoint"] = float64(c)
	}
	return params
}

// SetParam retunes the controller in place; run state is kept.
func (l *Loop) SetParam(name string, value float64) error {
	t := l.ctrl.Tuning()
	switch name {
	case "kp":
		t.Kp = value
	case "ki":
		t.Ki = value
	case "kd":
		t.Kd = value
	case "deadband":
		t.Deadband = value
	case "stiction":
		t.Stiction = value
	case "windup":
		t.Windup = value
	case "setpoint":
		if _, ok := l.setpoint.(Constant); !ok {
			return fmt.Errorf("%w: setpoint follows a profile", dynamo.ErrParameterBounds)
		}
		l.setpoint = Constant(value)
		return nil
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	l.ctrl.SetTuning(t)
	return nil
}
