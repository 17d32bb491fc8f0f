package metrics

import (
	"math"

	"github.com/san-kum/pidloop/internal/dynamo"
)

// TrackingError integrates the absolute error between a reference and one
// state component over time (IAE).
type TrackingError struct {
	reference func(t float64) float64
	index     int

	iae   float64
	lastT float64
	seen  bool
}

func NewTrackingError(reference func(t float64) float64, feedbackIdx int) *TrackingError {
	return &TrackingError{reference: reference, index: feedbackIdx}
}

func (e *TrackingError) Name() string { return "iae" }

func (e *TrackingError) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if e.index >= len(x) {
		return
	}
	if e.seen {
		e.iae += math.Abs(e.reference(t)-x[e.index]) * (t - e.lastT)
	}
	e.lastT = t
	e.seen = true
}

func (e *TrackingError) Value() float64 { return e.iae }

func (e *TrackingError) Reset() {
	e.iae = 0
	e.lastT = 0
	e.seen = false
}

// Saturation is the fraction of steps whose first control sat on a limit.
type Saturation struct {
	hi, lo    float64
	saturated int
	samples   int
}

func NewSaturation(hi, lo float64) *Saturation {
	return &Saturation{hi: hi, lo: lo}
}

func (s *Saturation) Name() string { return "saturation" }

func (s *Saturation) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(u) == 0 {
		return
	}
	s.samples++
	if u[0] >= s.hi || u[0] <= s.lo {
		s.saturated++
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.saturated) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.saturated = 0
	s.samples = 0
}
