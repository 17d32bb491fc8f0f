package dynamo

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Sweep runs one plant against several controllers concurrently. Each run
// gets its own plant, integrator and metric set from the factories; the
// metric factory sees the controller it will be observing.
type Sweep struct {
	dyn         func() System
	integrator  func() Integrator
	metrics     func(Controller) []Metric
	controllers []Controller
	workers     int
}

func NewSweep(dyn func() System, integrator func() Integrator, metrics func(Controller) []Metric, controllers ...Controller) *Sweep {
	return &Sweep{
		dyn:         dyn,
		integrator:  integrator,
		metrics:     metrics,
		controllers: controllers,
		workers:     runtime.GOMAXPROCS(0),
	}
}

// WithWorkers bounds the number of runs in flight. n <= 0 means unbounded.
func (sw *Sweep) WithWorkers(n int) *Sweep {
	sw.workers = n
	return sw
}

// Run returns results in controller order. The first failing run cancels
// the rest.
func (sw *Sweep) Run(ctx context.Context, x0 State, cfg Config) ([]*Result, error) {
	results := make([]*Result, len(sw.controllers))

	g, gctx := errgroup.WithContext(ctx)
	if sw.workers > 0 {
		g.SetLimit(sw.workers)
	}

	for i, ctrl := range sw.controllers {
		g.Go(func() error {
			s := New(sw.dyn(), sw.integrator(), ctrl)
			if sw.metrics != nil {
				for _, m := range sw.metrics(ctrl) {
					s.AddMetric(m)
				}
			}

			r, err := s.Run(gctx, x0, cfg)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
