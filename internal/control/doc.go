// Package control adapts controllers to the [dynamo.Controller] interface so
// they can close a loop around a simulated plant:
//
//   - [Loop]: drives a [pid.Controller] from one measured state component
//   - [None]: passthrough controller (zero control, open loop)
//
// # Usage
//
//	c := pid.New(0.2, 0.5, 0, 0, 12, -12, 0, 5)
//	loop := control.NewLoop(c, control.Constant(100), 0)
//	sim := dynamo.New(plant, integ, loop)
//
// Loop implements [dynamo.Configurable] so tuning can be changed live.
package control
