package pid

import "math"

// Tuning holds the reconfigurable parameters of a Controller.
type Tuning struct {
	Kp       float64 `json:"kp" yaml:"kp"`
	Ki       float64 `json:"ki" yaml:"ki"`
	Kd       float64 `json:"kd" yaml:"kd"`
	Deadband float64 `json:"deadband" yaml:"deadband"`
	Stiction float64 `json:"stiction" yaml:"stiction"`
	// Windup bounds the integral sum to [-Windup, Windup]. Values <= 0
	// disable the clamp.
	Windup float64 `json:"windup" yaml:"windup"`
}

// Limits bounds the accumulated output. They are fixed at construction.
type Limits struct {
	Hi float64 `json:"hi" yaml:"hi"`
	Lo float64 `json:"lo" yaml:"lo"`
}

// State is a snapshot of the run state. LastTime == 0 means no sample has
// been taken since construction or the last Reset.
type State struct {
	Out          float64
	Sum          float64
	LastErr      float64
	LastSetpoint float64
	LastTime     float64
}

// Terms are the P, I and D contributions of the most recent accepted step.
type Terms struct {
	P, I, D float64
}

// Delta is the correction the terms proposed before deadband filtering.
func (t Terms) Delta() float64 { return t.P + t.I + t.D }

type Controller struct {
	tuning Tuning
	limits Limits

	state State
	terms Terms

	clock Clock
}

type Option func(*Controller)

// WithClock sets the time source read when Step is called with now == 0.
func WithClock(clock Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New builds a controller from raw parameters. No validation is done; the
// caller keeps lo <= hi and the thresholds non-negative.
func New(kp, ki, kd, dband, hi, lo, stiction, windup float64, opts ...Option) *Controller {
	return NewFromTuning(
		Tuning{Kp: kp, Ki: ki, Kd: kd, Deadband: dband, Stiction: stiction, Windup: windup},
		Limits{Hi: hi, Lo: lo},
		opts...,
	)
}

func NewFromTuning(t Tuning, l Limits, opts ...Option) *Controller {
	c := &Controller{
		tuning: t,
		limits: l,
		clock:  Monotonic,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reconfigure replaces the gains and shaping thresholds in place. Output
// limits and run state are left untouched.
func (c *Controller) Reconfigure(kp, ki, kd, dband, stiction, windup float64) {
	c.tuning = Tuning{Kp: kp, Ki: ki, Kd: kd, Deadband: dband, Stiction: stiction, Windup: windup}
}

// SetTuning is Reconfigure taking a Tuning value.
func (c *Controller) SetTuning(t Tuning) {
	c.Reconfigure(t.Kp, t.Ki, t.Kd, t.Deadband, t.Stiction, t.Windup)
}

// Reset clears the integral, derivative history and accumulated output.
// The next Step only records its timestamp.
func (c *Controller) Reset() {
	c.state = State{}
	c.terms = Terms{}
}

func (c *Controller) Tuning() Tuning { return c.tuning }
func (c *Controller) Limits() Limits { return c.limits }
func (c *Controller) State() State   { return c.state }
func (c *Controller) Terms() Terms   { return c.terms }

// Running reports whether a baseline sample has been recorded.
func (c *Controller) Running() bool { return c.state.LastTime != 0 }

// Step feeds one sample and returns the correction. now is monotonic seconds;
// 0 reads the controller's clock.
func (c *Controller) Step(setpoint, feedback, now float64) float64 {
	s := &c.state
	t := &c.tuning

	err := setpoint - feedback

	if now == 0 {
		now = c.clock.Now()
	}

	var p, i, d float64
	if s.LastTime != 0 {
		elapsed := now - s.LastTime
		if elapsed == 0 {
			return s.Out
		}

		p = err * t.Kp

		s.Sum += t.Ki * err * elapsed
		if t.Windup > 0 {
			if s.Sum < -t.Windup {
				s.Sum = -t.Windup
			} else if s.Sum > t.Windup {
				s.Sum = t.Windup
			}
		}
		i = s.Sum

		d = t.Kd * ((setpoint - s.LastSetpoint) - (err - s.LastErr)) / elapsed
		s.LastErr = err
		s.LastSetpoint = setpoint

		c.terms = Terms{P: p, I: i, D: d}
	}

	s.LastTime = now

	delta := p + i + d
	if math.Abs(delta) > t.Deadband {
		s.Out += delta
	}

	if s.Out > c.limits.Hi {
		s.Out = c.limits.Hi
	} else if s.Out < c.limits.Lo {
		s.Out = c.limits.Lo
	}

	if math.Abs(s.Out) < t.Stiction {
		return 0
	}
	return s.Out
}
