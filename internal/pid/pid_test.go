package pid_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pidloop/internal/pid"
)

var _ = Describe("Controller", func() {
	var c *pid.Controller

	Describe("proportional response", func() {
		BeforeEach(func() {
			c = pid.New(1, 0, 0, 0, 100, -100, 0, 0)
		})

		It("records a baseline on the first step and acts on the second", func() {
			Expect(c.Step(10, 0, 1.0)).To(Equal(0.0))
			Expect(c.Running()).To(BeTrue())
			Expect(c.State().LastTime).To(Equal(1.0))

			Expect(c.Step(10, 0, 2.0)).To(Equal(10.0))
			Expect(c.Terms()).To(Equal(pid.Terms{P: 10}))
		})

		It("accumulates the proportional term across steps", func() {
			c.Step(10, 0, 1)
			Expect(c.Step(10, 0, 2)).To(Equal(10.0))
			Expect(c.Step(10, 0, 3)).To(Equal(20.0))
			Expect(c.Step(10, 5, 4)).To(Equal(25.0))
		})

		It("ignores a repeated timestamp", func() {
			c.Step(10, 0, 1)
			first := c.Step(10, 0, 2)
			before := c.State()

			Expect(c.Step(50, -3, 2)).To(Equal(first))
			Expect(c.State()).To(Equal(before))
		})

		It("returns the raw stored output on a repeated timestamp below stiction", func() {
			c = pid.New(1, 0, 0, 0, 100, -100, 5, 0)
			c.Step(3, 0, 1)
			Expect(c.Step(3, 0, 2)).To(Equal(0.0))
			Expect(c.State().Out).To(Equal(3.0))

			Expect(c.Step(3, 0, 2)).To(Equal(3.0))
			Expect(c.State().Out).To(Equal(3.0))
		})

		It("returns the stored output untouched on the first step", func() {
			c.Step(10, 0, 1)
			c.Step(10, 0, 2)
			c.Reset()
			Expect(c.State()).To(Equal(pid.State{}))
			Expect(c.Step(99, 0, 7)).To(Equal(0.0))
			Expect(c.State().Out).To(Equal(0.0))
		})
	})

	Describe("integral windup", func() {
		It("clamps the sum when windup is positive", func() {
			c = pid.New(0, 1, 0, 0, 1e9, -1e9, 0, 5)
			c.Step(10, 0, 1)
			for i := 2; i < 50; i++ {
				c.Step(10, 0, float64(i))
				Expect(c.State().Sum).To(BeNumerically("<=", 5))
			}
			Expect(c.State().Sum).To(Equal(5.0))
		})

		It("clamps negative sums symmetrically", func() {
			c = pid.New(0, 1, 0, 0, 1e9, -1e9, 0, 5)
			c.Step(-10, 0, 1)
			for i := 2; i < 10; i++ {
				c.Step(-10, 0, float64(i))
			}
			Expect(c.State().Sum).To(Equal(-5.0))
		})

		DescribeTable("grows without bound when the limit is disabled",
			func(windup float64) {
				c = pid.New(0, 1, 0, 0, 1e9, -1e9, 0, windup)
				c.Step(10, 0, 1)
				for i := 2; i <= 101; i++ {
					c.Step(10, 0, float64(i))
				}
				Expect(c.State().Sum).To(BeNumerically("~", 1000, 1e-9))
			},
			Entry("zero", 0.0),
			Entry("negative", -5.0),
		)

		It("scales the integral by the elapsed time", func() {
			c = pid.New(0, 2, 0, 0, 100, -100, 0, 0)
			c.Step(1, 0, 1)
			Expect(c.Step(1, 0, 1.25)).To(Equal(0.5))
			Expect(c.State().Sum).To(Equal(0.5))
		})
	})

	Describe("derivative", func() {
		BeforeEach(func() {
			c = pid.New(0, 0, 1, 0, 100, -100, 0, 0)
			c.Step(0, 0, 1)
		})

		It("does not kick on a setpoint step", func() {
			Expect(c.Step(10, 0, 2)).To(Equal(0.0))
			Expect(c.Terms().D).To(Equal(0.0))
		})

		It("follows the rate of change of the feedback", func() {
			c.Step(0, 0, 2)
			Expect(c.Step(0, -2, 2.5)).To(Equal(-4.0))
			Expect(c.State().LastErr).To(Equal(2.0))
			Expect(c.State().LastSetpoint).To(Equal(0.0))
		})
	})

	Describe("deadband", func() {
		BeforeEach(func() {
			c = pid.New(1, 0, 0, 5, 100, -100, 0, 0)
			c.Step(0, 0, 1)
		})

		It("leaves the output unchanged for small deltas", func() {
			before := c.State().Out
			Expect(c.Step(3, 0, 2)).To(Equal(0.0))
			Expect(c.State().Out).To(Equal(before))
		})

		It("suppresses a delta equal to the deadband", func() {
			Expect(c.Step(5, 0, 2)).To(Equal(0.0))
		})

		It("passes larger deltas whole", func() {
			Expect(c.Step(6, 0, 2)).To(Equal(6.0))
		})

		It("still advances the integral and history while suppressing", func() {
			c.Reconfigure(1, 1, 0, 5, 0, 0)
			c.Step(2, 0, 2)
			Expect(c.State().Sum).To(Equal(2.0))
			Expect(c.State().LastErr).To(Equal(2.0))
			Expect(c.State().Out).To(Equal(0.0))
		})
	})

	Describe("saturation", func() {
		It("clamps to hi and lo", func() {
			c = pid.New(1, 0, 0, 0, 5, -3, 0, 0)
			c.Step(0, 0, 1)
			Expect(c.Step(100, 0, 2)).To(Equal(5.0))
			Expect(c.Step(-100, 0, 3)).To(Equal(-3.0))
			Expect(c.State().Out).To(Equal(-3.0))
		})

		It("pins to hi when the bounds are inverted", func() {
			c = pid.New(1, 0, 0, 0, -1, 1, 0, 0)
			c.Step(0, 0, 1)
			Expect(c.Step(10, 0, 2)).To(Equal(-1.0))
		})

		It("keeps the stored output inside the bounds for any sequence", func() {
			c = pid.New(3, 0.5, 0.2, 0.1, 4, -2, 0, 0)
			sp := []float64{1, 8, -6, 0, 12, -9, 3}
			for i := 0; i < 70; i++ {
				c.Step(sp[i%len(sp)], float64(i%5), 1+0.1*float64(i))
				Expect(c.State().Out).To(And(
					BeNumerically("<=", 4),
					BeNumerically(">=", -2),
				))
			}
		})
	})

	Describe("stiction", func() {
		BeforeEach(func() {
			c = pid.New(1, 0, 0, 0, 100, -100, 5, 0)
			c.Step(3, 0, 1)
		})

		It("returns zero below the threshold but keeps the stored output", func() {
			Expect(c.Step(3, 0, 2)).To(Equal(0.0))
			Expect(c.State().Out).To(Equal(3.0))
		})

		It("resumes from the stored output once the threshold is lifted", func() {
			c.Step(3, 0, 2)
			c.Reconfigure(1, 0, 0, 0, 0, 0)
			Expect(c.Step(3, 0, 3)).To(Equal(6.0))
		})

		It("passes outputs at the threshold", func() {
			Expect(c.Step(5, 0, 2)).To(Equal(5.0))
		})
	})

	Describe("clock", func() {
		It("reads the clock when now is zero", func() {
			clock := &pid.ManualClock{T: 5}
			c = pid.New(1, 0, 0, 0, 100, -100, 0, 0, pid.WithClock(clock))

			Expect(c.Step(10, 0, 0)).To(Equal(0.0))
			Expect(c.State().LastTime).To(Equal(5.0))

			clock.Advance(0.5)
			Expect(c.Step(10, 0, 0)).To(Equal(10.0))
			Expect(c.State().LastTime).To(Equal(5.5))
		})

		It("prefers an explicit timestamp", func() {
			clock := pid.ClockFunc(func() float64 {
				Fail("clock should not be read")
				return 0
			})
			c = pid.New(1, 0, 0, 0, 100, -100, 0, 0, pid.WithClock(clock))
			c.Step(1, 0, 3)
			Expect(c.State().LastTime).To(Equal(3.0))
		})

		It("defaults to a non-zero monotonic source", func() {
			a := pid.Monotonic.Now()
			b := pid.Monotonic.Now()
			Expect(a).To(BeNumerically(">=", 1))
			Expect(b).To(BeNumerically(">=", a))
		})
	})

	Describe("reconfigure and reset", func() {
		BeforeEach(func() {
			c = pid.New(1, 1, 0, 0, 50, -50, 0, 0)
			c.Step(10, 0, 1)
			c.Step(10, 0, 2)
		})

		It("replaces tuning without touching run state or limits", func() {
			before := c.State()
			c.Reconfigure(2, 3, 4, 0.5, 0.25, 9)

			Expect(c.State()).To(Equal(before))
			Expect(c.Tuning()).To(Equal(pid.Tuning{Kp: 2, Ki: 3, Kd: 4, Deadband: 0.5, Stiction: 0.25, Windup: 9}))
			Expect(c.Limits()).To(Equal(pid.Limits{Hi: 50, Lo: -50}))
		})

		It("zeroes run state and keeps tuning", func() {
			tuning := c.Tuning()
			c.Reset()

			Expect(c.State()).To(Equal(pid.State{}))
			Expect(c.Terms()).To(Equal(pid.Terms{}))
			Expect(c.Running()).To(BeFalse())
			Expect(c.Tuning()).To(Equal(tuning))
		})
	})
})
