package physics

import (
	"fmt"

	"github.com/san-kum/pidloop/internal/dynamo"
)

const (
	DefaultMass      = 1.0
	DefaultStiffness = 10.0
	DefaultDamping   = 0.5
)

// SpringMass is a single damped mass on a spring, pushed by an external
// force. State is [position, velocity].
type SpringMass struct {
	Mass      float64
	Stiffness float64
	Damping   float64
}

func NewSpringMass() *SpringMass {
	return &SpringMass{
		Mass:      DefaultMass,
		Stiffness: DefaultStiffness,
		Damping:   DefaultDamping,
	}
}

func (s *SpringMass) StateDim() int      { return 2 }
func (s *SpringMass) ControlDim() int    { return 1 }
func (s *SpringMass) FeedbackIndex() int { return 0 }

func (s *SpringMass) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	pos, vel := x[0], x[1]

	extForce := 0.0
	if len(u) > 0 {
		extForce = u[0]
	}

	force := -s.Stiffness*pos - s.Damping*vel + extForce
	return dynamo.State{vel, force / s.Mass}
}

func (s *SpringMass) Energy(x dynamo.State) float64 {
	pos, vel := x[0], x[1]
	return 0.5*s.Mass*vel*vel + 0.5*s.Stiffness*pos*pos
}

func (s *SpringMass) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":      s.Mass,
		"stiffness": s.Stiffness,
		"damping":   s.Damping,
	}
}

func (s *SpringMass) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		if value <= 0 {
			return fmt.Errorf("%w: mass must be positive", dynamo.ErrParameterBounds)
		}
		s.Mass = value
	case "stiffness":
		s.Stiffness = value
	case "damping":
		s.Damping = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	return nil
}
