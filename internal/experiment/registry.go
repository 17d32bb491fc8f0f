package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/pidloop/internal/control"
	"github.com/san-kum/pidloop/internal/dynamo"
	"github.com/san-kum/pidloop/internal/integrators"
	"github.com/san-kum/pidloop/internal/metrics"
	"github.com/san-kum/pidloop/internal/physics"
	"github.com/san-kum/pidloop/internal/pid"
)

// ControllerSpec carries everything a controller factory may need.
type ControllerSpec struct {
	Dim      int
	Feedback int
	Tuning   pid.Tuning
	Limits   pid.Limits
	Setpoint control.Setpoint
	Noise    float64
	Seed     int64
}

type Registry struct {
	plants      map[string]func() dynamo.System
	integrators map[string]func() dynamo.Integrator
	controllers map[string]func(ControllerSpec) dynamo.Controller
}

// stabilityBounds is the state magnitude past which a plant is considered
// to have left its operating envelope.
var stabilityBounds = map[string]float64{
	"motor":       500,
	"actuator":    50,
	"spring_mass": 10,
}

func NewRegistry() *Registry {
	r := &Registry{
		plants:      make(map[string]func() dynamo.System),
		integrators: make(map[string]func() dynamo.Integrator),
		controllers: make(map[string]func(ControllerSpec) dynamo.Controller),
	}

	r.plants["motor"] = func() dynamo.System { return physics.NewMotor() }
	r.plants["actuator"] = func() dynamo.System { return physics.NewActuator() }
	r.plants["spring_mass"] = func() dynamo.System { return physics.NewSpringMass() }

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }

	r.controllers["none"] = func(spec ControllerSpec) dynamo.Controller {
		dim := spec.Dim
		if dim == 0 {
			dim = 1
		}
		return control.NewNone(dim)
	}
	r.controllers["pid"] = func(spec ControllerSpec) dynamo.Controller {
		sp := spec.Setpoint
		if sp == nil {
			sp = control.Constant(0)
		}
		loop := control.NewLoop(pid.NewFromTuning(spec.Tuning, spec.Limits), sp, spec.Feedback)
		if spec.Noise > 0 {
			loop.WithNoise(spec.Noise, spec.Seed)
		}
		return loop
	}

	return r
}

func (r *Registry) GetPlant(name string) (dynamo.System, error) {
	fn, ok := r.plants[name]
	if !ok {
		return nil, fmt.Errorf("unknown plant: %s (available: %v)", name, r.ListPlants())
	}
	return fn(), nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetController(name string, spec ControllerSpec) (dynamo.Controller, error) {
	fn, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", name)
	}
	return fn(spec), nil
}

func (r *Registry) ListPlants() []string {
	names := make([]string, 0, len(r.plants))
	for name := range r.plants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DivergenceBound is the state magnitude at which a run is abandoned as
// unstable: ten times the plant's stability bound.
func (r *Registry) DivergenceBound(plant string) float64 {
	bound, ok := stabilityBounds[plant]
	if !ok {
		bound = 10
	}
	return 10 * bound
}

// DefaultMetrics returns a fresh metric set for one run. Tracking metrics
// are added only when the controller follows a reference.
func (r *Registry) DefaultMetrics(plant string, ctrl dynamo.Controller, limits pid.Limits) []dynamo.Metric {
	bound, ok := stabilityBounds[plant]
	if !ok {
		bound = 10
	}

	ms := []dynamo.Metric{
		metrics.NewStability(bound),
		metrics.NewControlEffort(),
	}

	if loop, ok := ctrl.(*control.Loop); ok {
		ms = append(ms,
			metrics.NewTrackingError(loop.Reference, loop.FeedbackIndex()),
			metrics.NewSaturation(limits.Hi, limits.Lo),
		)
	}
	return ms
}
