package metrics

import (
	"math"

	"github.com/san-kum/pidloop/internal/dynamo"
)

// ControlEffort is the mean absolute correction per step. Peak keeps the
// largest single correction seen.
type ControlEffort struct {
	sum     float64
	peak    float64
	samples int
}

func NewControlEffort() *ControlEffort { return &ControlEffort{} }

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(x dynamo.State, u dynamo.Control, t float64) {
	step := 0.0
	for _, v := range u {
		step += math.Abs(v)
	}
	c.sum += step
	c.peak = math.Max(c.peak, step)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Peak() float64 { return c.peak }

func (c *ControlEffort) Reset() {
	*c = ControlEffort{}
}
