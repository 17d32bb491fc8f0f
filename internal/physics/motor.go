package physics

import (
	"fmt"

	"github.com/san-kum/pidloop/internal/dynamo"
)

const (
	DefaultMotorGain = 10.0
	DefaultMotorTau  = 0.5
)

// Motor models shaft speed of a DC motor driven by a voltage:
//
//	dω/dt = (gain·u − ω − load) / tau
type Motor struct {
	Gain float64
	Tau  float64
	Load float64
}

func NewMotor() *Motor {
	return &Motor{
		Gain: DefaultMotorGain,
		Tau:  DefaultMotorTau,
	}
}

func (m *Motor) StateDim() int      { return 1 }
func (m *Motor) ControlDim() int    { return 1 }
func (m *Motor) FeedbackIndex() int { return 0 }

func (m *Motor) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	v := 0.0
	if len(u) > 0 {
		v = u[0]
	}
	return dynamo.State{(m.Gain*v - x[0] - m.Load) / m.Tau}
}

func (m *Motor) GetParams() map[string]float64 {
	return map[string]float64{
		"gain": m.Gain,
		"tau":  m.Tau,
		"load": m.Load,
	}
}

func (m *Motor) SetParam(name string, value float64) error {
	switch name {
	case "gain":
		m.Gain = value
	case "tau":
		if value <= 0 {
			return fmt.Errorf("%w: tau must be positive", dynamo.ErrParameterBounds)
		}
		m.Tau = value
	case "load":
		m.Load = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	return nil
}
