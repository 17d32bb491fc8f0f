package pid

import "time"

// Clock is the time source consulted when Step receives now == 0.
type Clock interface {
	// Now returns monotonic seconds.
	Now() float64
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() float64

func (f ClockFunc) Now() float64 { return f() }

// processStart anchors Monotonic. time.Since reads the runtime's monotonic
// reading, so the result is unaffected by wall-clock adjustments.
var processStart = time.Now()

type monotonic struct{}

// Monotonic reports seconds since process start. The value is offset by one
// second so that it never returns the 0 sentinel.
var Monotonic Clock = monotonic{}

func (monotonic) Now() float64 {
	return 1 + time.Since(processStart).Seconds()
}

// ManualClock is a settable clock for tests and replay.
type ManualClock struct {
	T float64
}

func (m *ManualClock) Now() float64 { return m.T }

// Advance moves the clock forward by dt seconds.
func (m *ManualClock) Advance(dt float64) {
	m.T += dt
}
