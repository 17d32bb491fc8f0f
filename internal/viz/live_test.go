package viz

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/pidloop/internal/control"
	"github.com/san-kum/pidloop/internal/integrators"
	"github.com/san-kum/pidloop/internal/physics"
	"github.com/san-kum/pidloop/internal/pid"
)

func newMotorModel() (Model, *control.Loop) {
	loop := control.NewLoop(pid.New(0.002, 0, 0, 0, 12, -12, 0, 0), control.Constant(100), 0)
	m := NewModel(physics.NewMotor(), integrators.NewRK4(), loop, []float64{0}, 0.01, "motor")
	return m, loop
}

func send(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTickAdvancesInRealTime(t *testing.T) {
	m, loop := newMotorModel()

	m = send(m, TickMsg(time.Now()))

	// 30 frames per second at dt = 0.01 is three steps per frame.
	if math.Abs(m.Time()-0.03) > 1e-12 {
		t.Errorf("expected t=0.03, got %f", m.Time())
	}
	if !loop.Controller().Running() {
		t.Error("controller should have a baseline after the first frame")
	}
	if m.State()[0] <= 0 {
		t.Errorf("motor should be spinning up, speed %f", m.State()[0])
	}
}

func TestPauseAndSingleStep(t *testing.T) {
	m, _ := newMotorModel()

	m = send(m, key(" "))
	if m.Running() {
		t.Fatal("space should pause")
	}

	m = send(m, TickMsg(time.Now()))
	if m.Time() != 0 {
		t.Errorf("paused model advanced to %f", m.Time())
	}

	m = send(m, key("n"))
	if math.Abs(m.Time()-0.01) > 1e-12 {
		t.Errorf("single step should advance one dt, got %f", m.Time())
	}
}

func TestRetuneAndReset(t *testing.T) {
	m, loop := newMotorModel()

	if m.Selected() != "deadband" {
		t.Fatalf("expected first parameter deadband, got %s (all: %v)", m.Selected(), m.Params())
	}

	m = send(m, key("tab"))
	if m.Selected() != "kd" {
		t.Fatalf("expected kd after tab, got %s", m.Selected())
	}

	m = send(m, key("up"))
	if got := loop.Controller().Tuning().Kd; got != zeroNudge {
		t.Errorf("expected kd nudged to %g, got %g", zeroNudge, got)
	}

	m = send(m, key("tab"))
	m = send(m, key("tab"))
	m = send(m, key("up"))
	if got := loop.Controller().Tuning().Kp; math.Abs(got-0.0022) > 1e-12 {
		t.Errorf("expected kp 0.0022, got %g", got)
	}

	m = send(m, TickMsg(time.Now()))
	m = send(m, key("r"))

	if m.Time() != 0 {
		t.Errorf("reset should rewind time, got %f", m.Time())
	}
	if loop.Controller().Running() {
		t.Error("reset should clear the controller's baseline")
	}
	if tuning := loop.Controller().Tuning(); tuning.Kd != 0 || tuning.Kp != 0.002 {
		t.Errorf("reset should restore the tuning, got %+v", tuning)
	}
}

func TestPlantParamsListed(t *testing.T) {
	m, _ := newMotorModel()

	found := false
	for _, p := range m.Params() {
		if p == "plant.tau" {
			found = true
		}
	}
	if !found {
		t.Errorf("plant parameters missing from %v", m.Params())
	}
}

func TestView(t *testing.T) {
	for _, plant := range []string{"motor", "actuator", "spring_mass"} {
		t.Run(plant, func(t *testing.T) {
			var m Model
			switch plant {
			case "motor":
				m, _ = newMotorModel()
			case "actuator":
				loop := control.NewLoop(pid.New(0.02, 0, 0, 0, 10, -10, 0, 0), control.Constant(1), 1)
				m = NewModel(physics.NewActuator(), integrators.NewEuler(), loop, []float64{0, 0}, 0.01, plant)
			default:
				m = NewModel(physics.NewSpringMass(), integrators.NewRK4(), control.NewNone(1), []float64{1, 0}, 0.01, plant)
			}

			for i := 0; i < 5; i++ {
				m = send(m, TickMsg(time.Now()))
			}

			view := m.View()
			if !strings.Contains(view, strings.ToUpper(plant)+" LOOP") {
				t.Errorf("view missing header:\n%s", view)
			}
			if !strings.Contains(view, "RUNNING") {
				t.Error("view missing status")
			}
		})
	}
}

func TestThemeCycle(t *testing.T) {
	first := Themes[0].Name
	name := first
	for range Themes {
		name = NextTheme(name).Name
	}
	if name != first {
		t.Errorf("cycling through every theme should wrap to %s, got %s", first, name)
	}
	if GetTheme("nope").Name != first {
		t.Error("unknown theme should fall back to the first")
	}
}

func TestCanvas(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	c.Set(-1, 0)
	c.Set(100, 100)

	got := []rune(strings.TrimSuffix(c.String(), "\n"))
	if got[0] != brailleBlank|0x1 {
		t.Errorf("expected top-left dot, got %U", got[0])
	}
	if got[1] != brailleBlank|0x80 {
		t.Errorf("expected bottom-right dot, got %U", got[1])
	}

	c.Clear()
	if strings.Trim(c.String(), string(rune(brailleBlank))+"\n") != "" {
		t.Error("clear should blank every cell")
	}
}

// lockedMotor refuses parameter changes once locked.
type lockedMotor struct {
	*physics.Motor
	locked bool
}

func (l *lockedMotor) SetParam(name string, value float64) error {
	if l.locked {
		return errors.New("parameters locked")
	}
	return l.Motor.SetParam(name, value)
}

func TestResetReportsRestoreFailure(t *testing.T) {
	plant := &lockedMotor{Motor: physics.NewMotor()}
	loop := control.NewLoop(pid.New(0.002, 0, 0, 0, 12, -12, 0, 0), control.Constant(100), 0)
	m := NewModel(plant, integrators.NewRK4(), loop, []float64{0}, 0.01, "motor")

	plant.Tau = 2
	plant.locked = true
	m = send(m, key("r"))

	if !strings.Contains(m.message, "plant.tau") || !strings.Contains(m.message, "locked") {
		t.Errorf("expected restore failure in status line, got %q", m.message)
	}
	if loop.Controller().Running() {
		t.Error("controller should still be reset")
	}
}
