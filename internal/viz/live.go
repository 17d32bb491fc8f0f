package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/pidloop/internal/control"
	"github.com/san-kum/pidloop/internal/dynamo"
)

const (
	canvasWidth     = 40
	canvasHeight    = 12
	historyCapacity = 300
	frameRate       = 30

	// Zero-valued parameters start from here when nudged upwards.
	zeroNudge = 1e-3
	// The motor sketch turns this many times slower than the shaft.
	rotorSlowdown = 40.0
)

type TickMsg time.Time

type param struct {
	owner dynamo.Configurable
	name  string
	label string
}

// Model steps a closed loop in real time and renders the plant, the
// feedback and setpoint traces and the controller's correction.
type Model struct {
	dyn        dynamo.System
	integrator dynamo.Integrator
	controller dynamo.Controller
	plant      string
	feedback   int

	state        dynamo.State
	initialState dynamo.State
	u            dynamo.Control
	t, dt        float64
	steps        int
	perFrame     int
	running      bool
	diverged     bool
	message      string

	canvas *Canvas
	angle  float64

	feedbackHist  []float64
	referenceHist []float64
	controlHist   []float64

	params        []param
	initialParams []float64
	selected      int

	theme    Theme
	showHelp bool
}

func NewModel(dyn dynamo.System, integ dynamo.Integrator, ctrl dynamo.Controller, initState []float64, dt float64, plant string) Model {
	feedback := 0
	if ms, ok := dyn.(dynamo.Measured); ok {
		feedback = ms.FeedbackIndex()
	}

	params := collectParams(ctrl, "")
	params = append(params, collectParams(dyn, "plant.")...)
	initial := make([]float64, len(params))
	for i, p := range params {
		initial[i] = p.owner.GetParams()[p.name]
	}

	perFrame := int(math.Round(1 / (frameRate * dt)))
	if perFrame < 1 {
		perFrame = 1
	}

	m := Model{
		dyn:           dyn,
		integrator:    integ,
		controller:    ctrl,
		plant:         plant,
		feedback:      feedback,
		state:         dynamo.State(initState).Clone(),
		initialState:  dynamo.State(initState).Clone(),
		u:             make(dynamo.Control, dyn.ControlDim()),
		dt:            dt,
		perFrame:      perFrame,
		running:       true,
		canvas:        NewCanvas(canvasWidth, canvasHeight),
		feedbackHist:  make([]float64, 0, historyCapacity),
		referenceHist: make([]float64, 0, historyCapacity),
		controlHist:   make([]float64, 0, historyCapacity),
		params:        params,
		initialParams: initial,
		theme:         Themes[0],
	}
	if r, ok := ctrl.(dynamo.Resetter); ok {
		r.Reset()
	}
	return m
}

func collectParams(v any, prefix string) []param {
	c, ok := v.(dynamo.Configurable)
	if !ok {
		return nil
	}
	names := make([]string, 0)
	for k := range c.GetParams() {
		names = append(names, k)
	}
	sort.Strings(names)

	params := make([]param, len(names))
	for i, name := range names {
		params[i] = param{owner: c, name: name, label: prefix + name}
	}
	return params
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if !m.diverged {
				m.running = !m.running
			}
		case "n":
			if !m.running && !m.diverged {
				m.step()
			}
		case "r":
			m.reset()
		case "tab":
			m.cycleParam(1)
		case "shift+tab":
			m.cycleParam(-1)
		case "up", "k":
			m.adjustParam(1.1)
		case "down", "j":
			m.adjustParam(1 / 1.1)
		case "t":
			m.theme = NextTheme(m.theme.Name)
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			for i := 0; i < m.perFrame && m.running; i++ {
				m.step()
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) cycleParam(dir int) {
	if len(m.params) == 0 {
		return
	}
	m.selected = (m.selected + dir + len(m.params)) % len(m.params)
}

func (m *Model) adjustParam(factor float64) {
	if len(m.params) == 0 {
		return
	}
	p := m.params[m.selected]
	val := p.owner.GetParams()[p.name]
	next := val * factor
	if val == 0 && factor > 1 {
		next = zeroNudge
	}
	if err := p.owner.SetParam(p.name, next); err != nil {
		m.message = err.Error()
		return
	}
	m.message = ""
}

func (m *Model) step() {
	m.u = m.controller.Compute(m.state, m.t)
	next := m.integrator.Step(m.dyn, m.state, m.u, m.t, m.dt)
	if !next.IsValid() {
		m.running = false
		m.diverged = true
		m.message = fmt.Sprintf("diverged at t=%.2fs, press r to reset", m.t)
		return
	}

	m.state = next
	m.steps++
	m.t = float64(m.steps) * m.dt
	if m.plant == "motor" && len(m.state) > 0 {
		m.angle += m.state[0] * m.dt / rotorSlowdown
	}

	m.feedbackHist = push(m.feedbackHist, m.measured())
	if tr, ok := m.controller.(dynamo.Tracker); ok {
		m.referenceHist = push(m.referenceHist, tr.Reference(m.t))
	}
	u := 0.0
	if len(m.u) > 0 {
		u = m.u[0]
	}
	m.controlHist = push(m.controlHist, u)
}

func push(hist []float64, v float64) []float64 {
	hist = append(hist, v)
	if len(hist) > historyCapacity {
		hist = hist[1:]
	}
	return hist
}

func (m *Model) measured() float64 {
	if m.feedback < len(m.state) {
		return m.state[m.feedback]
	}
	return 0
}

// reset restores the initial state and parameters and clears the
// controller's run state.
func (m *Model) reset() {
	m.t = 0
	m.steps = 0
	m.angle = 0
	m.state = m.initialState.Clone()
	m.u = make(dynamo.Control, m.dyn.ControlDim())
	m.feedbackHist = m.feedbackHist[:0]
	m.referenceHist = m.referenceHist[:0]
	m.controlHist = m.controlHist[:0]
	m.diverged = false
	m.running = true
	m.message = ""
	for i, p := range m.params {
		if p.owner.GetParams()[p.name] == m.initialParams[i] {
			continue
		}
		if err := p.owner.SetParam(p.name, m.initialParams[i]); err != nil {
			m.message = fmt.Sprintf("restore %s: %v", p.label, err)
		}
	}
	if r, ok := m.controller.(dynamo.Resetter); ok {
		r.Reset()
	}
}

func (m Model) Time() float64       { return m.t }
func (m Model) State() dynamo.State { return m.state }
func (m Model) Running() bool       { return m.running }
func (m Model) Params() []string    { return m.paramLabels() }

// Selected is the label of the parameter the arrow keys adjust.
func (m Model) Selected() string {
	if len(m.params) == 0 {
		return ""
	}
	return m.params[m.selected].label
}

func (m Model) paramLabels() []string {
	labels := make([]string, len(m.params))
	for i, p := range m.params {
		labels[i] = p.label
	}
	return labels
}

func (m Model) View() string {
	st := m.theme.styles()

	m.draw()
	left := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Padding(1, 2).Render(m.canvas.String()),
		m.traces(),
	)

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.plant)+" LOOP") + "\n")

	switch {
	case m.diverged:
		s.WriteString(st.saturated.Render("DIVERGED"))
	case m.running:
		s.WriteString(st.running.Render("RUNNING"))
	default:
		s.WriteString(st.paused.Render("PAUSED"))
	}
	s.WriteString("\n\n")

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}

	row("Time", fmt.Sprintf("%.2fs", m.t))
	if n := len(m.referenceHist); n > 0 {
		row("Setpoint", fmt.Sprintf("%.4f", m.referenceHist[n-1]))
		row("Error", fmt.Sprintf("%.4f", m.referenceHist[n-1]-m.measured()))
	}
	row("Feedback", fmt.Sprintf("%.4f", m.measured()))
	if len(m.u) > 0 {
		row("Output", fmt.Sprintf("%.4f", m.u[0]))
	}

	if loop, ok := m.controller.(*control.Loop); ok {
		pid := loop.Controller()
		terms, state, limits := pid.Terms(), pid.State(), pid.Limits()
		row("P / I / D", fmt.Sprintf("%.3g / %.3g / %.3g", terms.P, terms.I, terms.D))
		row("Integral", fmt.Sprintf("%.4g", state.Sum))
		if state.Out >= limits.Hi || state.Out <= limits.Lo {
			s.WriteString(st.saturated.Render("SATURATED") + "\n")
		}
		if len(m.u) > 0 && m.u[0] == 0 && state.Out != 0 {
			s.WriteString(st.paused.Render("STICTION") + "\n")
		}
	}

	s.WriteString("\nPARAMETERS\n")
	if len(m.params) == 0 {
		s.WriteString(st.label.Render("  (none)") + "\n")
	}
	for i, p := range m.params {
		line := fmt.Sprintf("%-16s %10.4g", p.label, p.owner.GetParams()[p.name])
		if i == m.selected {
			s.WriteString(st.active.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + st.value.Render(line) + "\n")
		}
	}

	if m.message != "" {
		s.WriteString("\n" + st.saturated.Render(m.message) + "\n")
	}

	s.WriteString(st.help.Render("SP:Pause N:Step R:Reset Q:Quit\nTab:Select ↑↓:Tune T:Theme ?:Help"))

	view := lipgloss.JoinHorizontal(lipgloss.Top, left, st.panel.Render(s.String()))
	if m.showHelp {
		return helpText + "\n" + view
	}
	return view
}

const helpText = `
  Space      pause / resume
  N          single step while paused
  R          reset plant, controller and parameters
  Tab        select next parameter (Shift+Tab previous)
  Up / K     increase selected parameter by 10%
  Down / J   decrease selected parameter by 10%
  T          cycle themes
  Q          quit
`

func (m Model) traces() string {
	if len(m.feedbackHist) < 2 {
		return ""
	}

	var b strings.Builder
	if len(m.referenceHist) == len(m.feedbackHist) {
		b.WriteString(asciigraph.PlotMany(
			[][]float64{m.referenceHist, m.feedbackHist},
			asciigraph.Height(8),
			asciigraph.Width(64),
			asciigraph.SeriesColors(asciigraph.Yellow, asciigraph.Green),
			asciigraph.Caption("setpoint (yellow) / feedback (green)"),
		))
	} else {
		b.WriteString(asciigraph.Plot(m.feedbackHist,
			asciigraph.Height(8),
			asciigraph.Width(64),
			asciigraph.Caption("feedback"),
		))
	}
	b.WriteString("\n\n")
	b.WriteString(asciigraph.Plot(m.controlHist,
		asciigraph.Height(5),
		asciigraph.Width(64),
		asciigraph.Caption("correction"),
	))
	return lipgloss.NewStyle().Padding(0, 2).Render(b.String())
}

func (m *Model) draw() {
	m.canvas.Clear()
	switch m.plant {
	case "motor":
		m.drawMotor()
	case "actuator":
		m.drawActuator()
	case "spring_mass":
		m.drawSpring()
	}
}

func (m *Model) drawMotor() {
	w, h := m.canvas.Dots()
	cx, cy := w/2, h/2
	r := h/2 - 4
	m.canvas.DrawCircle(cx, cy, r)
	m.canvas.DrawCircle(cx, cy, 2)
	for k := 0; k < 3; k++ {
		a := m.angle + float64(k)*2*math.Pi/3
		x := cx + int(float64(r-2)*math.Cos(a))
		y := cy + int(float64(r-2)*math.Sin(a))
		m.canvas.DrawLine(cx, cy, x, y)
	}
}

func (m *Model) drawActuator() {
	if len(m.state) < 1 {
		return
	}
	w, h := m.canvas.Dots()
	rail := h - 8
	m.canvas.DrawLine(0, rail, w-1, rail)

	// Position wraps around the visible rail.
	track := w - 12
	px := int(math.Mod(m.state[0]*10, float64(track)))
	if px < 0 {
		px += track
	}
	px += 6
	m.canvas.FillRect(px-5, rail-10, px+5, rail-1)

	if len(m.u) > 0 && m.u[0] != 0 {
		arrow := int(m.u[0] * 3)
		m.canvas.DrawLine(px, rail-5, px+arrow, rail-5)
	}
}

func (m *Model) drawSpring() {
	if len(m.state) < 1 {
		return
	}
	_, h := m.canvas.Dots()
	cy := h / 2
	wallX, rest, scale := 6, 40, 20.0

	m.canvas.DrawLine(wallX, cy-12, wallX, cy+12)
	if n := len(m.referenceHist); n > 0 {
		m.canvas.DashedLine(wallX+rest+int(m.referenceHist[n-1]*scale), cy-14, cy+14)
	}

	massX := wallX + rest + int(m.state[0]*scale)
	m.canvas.FillRect(massX-4, cy-4, massX+4, cy+4)

	numCoils, prevX, prevY := 10, wallX, cy
	step := float64(massX-wallX-4) / float64(numCoils)
	for i := 1; i <= numCoils; i++ {
		currX, currY := wallX+int(float64(i)*step), cy
		if i%2 == 0 {
			currY -= 5
		} else {
			currY += 5
		}
		m.canvas.DrawLine(prevX, prevY, currX, currY)
		prevX, prevY = currX, currY
	}
	m.canvas.DrawLine(prevX, prevY, massX-4, cy)
}
