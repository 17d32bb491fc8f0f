package control

// Setpoint is a reference trajectory over simulation time.
type Setpoint interface {
	At(t float64) float64
}

type Constant float64

func (c Constant) At(float64) float64 { return float64(c) }

// Step holds From until Time, then To.
type Step struct {
	From, To float64
	Time     float64
}

func (s Step) At(t float64) float64 {
	if t < s.Time {
		return s.From
	}
	return s.To
}

// Ramp moves linearly from From to To between Start and End.
type Ramp struct {
	From, To   float64
	Start, End float64
}

func (r Ramp) At(t float64) float64 {
	switch {
	case t <= r.Start:
		return r.From
	case t >= r.End:
		return r.To
	}
	return r.From + (r.To-r.From)*(t-r.Start)/(r.End-r.Start)
}
