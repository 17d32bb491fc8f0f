package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/pidloop/internal/dynamo"
)

const (
	DefaultActuatorMass      = 1.0
	DefaultActuatorDamping   = 2.0
	DefaultActuatorBreakaway = 1.5
	DefaultActuatorCoulomb   = 1.0

	// Below this speed the carriage counts as stopped.
	stictionVelocity = 1e-3
)

// Actuator is a linear carriage with static and sliding friction. A stopped
// carriage holds still until the applied force exceeds Breakaway; a moving one
// sees a constant Coulomb drag against its velocity.
//
// State is [position, velocity]; control is [force]. The sensor reports
// velocity.
type Actuator struct {
	Mass      float64
	Damping   float64
	Breakaway float64
	Coulomb   float64
}

func NewActuator() *Actuator {
	return &Actuator{
		Mass:      DefaultActuatorMass,
		Damping:   DefaultActuatorDamping,
		Breakaway: DefaultActuatorBreakaway,
		Coulomb:   DefaultActuatorCoulomb,
	}
}

func (s *Actuator) StateDim() int      { return 2 }
func (s *Actuator) ControlDim() int    { return 1 }
func (s *Actuator) FeedbackIndex() int { return 1 }

func (s *Actuator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	vel := x[1]

	force := 0.0
	if len(u) > 0 {
		force = u[0]
	}

	if math.Abs(vel) < stictionVelocity {
		if math.Abs(force) <= s.Breakaway {
			return dynamo.State{vel, -s.Damping * vel / s.Mass}
		}
		force -= s.Coulomb * sign(force)
	} else {
		force -= s.Coulomb * sign(vel)
	}

	return dynamo.State{vel, (force - s.Damping*vel) / s.Mass}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func (s *Actuator) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":      s.Mass,
		"damping":   s.Damping,
		"breakaway": s.Breakaway,
		"coulomb":   s.Coulomb,
	}
}

func (s *Actuator) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		if value <= 0 {
			return fmt.Errorf("%w: mass must be positive", dynamo.ErrParameterBounds)
		}
		s.Mass = value
	case "damping":
		s.Damping = value
	case "breakaway":
		s.Breakaway = value
	case "coulomb":
		s.Coulomb = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	return nil
}
