package metrics

import "github.com/san-kum/pidloop/internal/dynamo"

// Stability is the fraction of samples that stayed inside the operating
// envelope: every component finite and no larger than bound in magnitude.
type Stability struct {
	bound     float64
	inside    int
	samples   int
	firstExit float64
}

func NewStability(bound float64) *Stability {
	return &Stability{bound: bound, firstExit: -1}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.samples++
	if x.IsValid() && x.MaxAbs() <= s.bound {
		s.inside++
		return
	}
	if s.firstExit < 0 {
		s.firstExit = t
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1
	}
	return float64(s.inside) / float64(s.samples)
}

// FirstExit is the time the state first left the envelope, or -1.
func (s *Stability) FirstExit() float64 { return s.firstExit }

func (s *Stability) Reset() {
	s.inside, s.samples, s.firstExit = 0, 0, -1
}
