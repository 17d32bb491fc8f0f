// Package dynamo provides the closed-loop simulation primitives used to
// exercise controllers against plant models.
//
// The package defines the fundamental interfaces and types for numerical
// simulation of ordinary differential equations (ODEs) driven by a feedback
// controller:
//
//   - [State]: vector representing plant state
//   - [System]: interface for plant models (dX/dt = f(X, u, t))
//   - [Integrator]: numerical integrator interface
//   - [Controller]: feedback controller interface
//   - [Simulator]: orchestrates a closed-loop run
//
// # Example
//
//	plant := physics.NewMotor()
//	loop := control.NewLoop(pid.New(...), control.Constant(100), physics.MotorSpeed)
//	sim := dynamo.New(plant, integrators.NewRK4(), loop)
//	result, _ := sim.Run(ctx, x0, cfg)
//
// # Thread Safety
//
// Simulator instances are NOT thread-safe. For comparing several controllers
// on the same plant use [Sweep], which builds one simulator per run.
package dynamo
