// Package pid implements a single-loop PID controller with output shaping.
//
// The controller turns the error between a setpoint and a measured feedback
// value into a bounded correction. Samples may arrive at irregular intervals;
// the caller passes a monotonic timestamp in seconds, or 0 to let the
// controller read its [Clock].
//
// On top of the raw P, I and D terms the controller applies, in order:
//
//   - integral windup clamping of the accumulated I term
//   - a deadband on the per-step correction delta
//   - saturation of the accumulated output to [lo, hi]
//   - stiction suppression, returning 0 for outputs below a threshold
//
// The output is an accumulator: each accepted delta is added to the previous
// output instead of replacing it, so the controller behaves as a velocity-form
// PID integrated once more. Tunings written for this controller rely on it.
//
// # Usage
//
//	c := pid.New(1.0, 0.1, 0.01, 0.0, 100, -100, 0, 50)
//	c.Step(target, measured, 0) // first call records the baseline time
//	u := c.Step(target, measured, 0)
//
// A Controller is not safe for concurrent use.
package pid
