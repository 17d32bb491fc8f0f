package integrators

import "github.com/san-kum/pidloop/internal/dynamo"

// Euler is the explicit first-order method. It holds the control constant
// over the step, which matches a zero-order-hold actuator.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	dx := dyn.Derive(x, u, t)
	result := make(dynamo.State, len(x))
	axpy(result, x, dx, dt)
	return result
}

// axpy writes x + h*k into dst.
func axpy(dst, x, k dynamo.State, h float64) {
	for i := range x {
		dst[i] = x[i] + h*k[i]
	}
}
