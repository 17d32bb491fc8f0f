// Package physics provides plant models for closed-loop simulation.
//
// Each model implements the [dynamo.System] interface, defining the
// differential equations governing the plant's evolution, and
// [dynamo.Measured] to name the state component a sensor reports:
//
//   - [Motor]: first-order DC motor speed
//   - [Actuator]: linear carriage with static friction
//   - [SpringMass]: damped spring-mass driven by an external force
//
// All models implement [dynamo.Configurable] for runtime parameter
// adjustment from the live view.
package physics
