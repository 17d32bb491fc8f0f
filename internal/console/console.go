package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/san-kum/pidloop/internal/pid"
)

// Session drives one controller from typed commands. It is not safe for
// concurrent use.
type Session struct {
	ctrl *pid.Controller
	out  io.Writer
	log  *zap.Logger
}

func NewSession(ctrl *pid.Controller, out io.Writer, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{ctrl: ctrl, out: out, log: log}
}

func (s *Session) Controller() *pid.Controller { return s.ctrl }

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format+"\n", args...)
}

// Execute applies cmd and reports whether the session should end.
func (s *Session) Execute(cmd Command) bool {
	switch cmd.Kind {
	case CmdStep:
		first := !s.ctrl.Running()
		before := s.ctrl.State()
		ret := s.ctrl.Step(cmd.Setpoint, cmd.Feedback, cmd.Now)
		st := s.ctrl.State()

		switch {
		case first:
			s.printf("baseline t=%g  out=%g", st.LastTime, ret)
		case st.LastTime == before.LastTime:
			s.printf("duplicate timestamp  out=%g", ret)
		default:
			terms := s.ctrl.Terms()
			s.printf("out=%g  P=%g I=%g D=%g  sum=%g", ret, terms.P, terms.I, terms.D, st.Sum)
			if ret == 0 && st.Out != 0 {
				s.printf("  (below stiction, stored out=%g)", st.Out)
			}
		}

	case CmdReset:
		s.ctrl.Reset()
		s.log.Debug("controller reset")
		s.printf("reset")

	case CmdReconfig:
		s.ctrl.SetTuning(cmd.Tuning)
		s.log.Debug("controller reconfigured", zap.Any("tuning", cmd.Tuning))
		s.printf("tuning %s", formatTuning(cmd.Tuning))

	case CmdSet:
		t, err := applyParam(s.ctrl.Tuning(), cmd.Name, cmd.Value)
		if err != nil {
			s.printf("Error: %v", err)
			return false
		}
		s.ctrl.SetTuning(t)
		s.printf("tuning %s", formatTuning(t))

	case CmdShow:
		st, lim := s.ctrl.State(), s.ctrl.Limits()
		s.printf("tuning %s", formatTuning(s.ctrl.Tuning()))
		s.printf("limits hi=%g lo=%g", lim.Hi, lim.Lo)
		s.printf("state  out=%g sum=%g lastErr=%g lastSp=%g lastTime=%g running=%t",
			st.Out, st.Sum, st.LastErr, st.LastSetpoint, st.LastTime, s.ctrl.Running())

	case CmdHelp:
		s.printf("%s", usage)

	case CmdQuit:
		return true
	}
	return false
}

// Handle parses and executes one line. Parse errors are printed, not
// returned.
func (s *Session) Handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	cmd, err := Parse(line)
	if err != nil {
		s.printf("Error: %v", err)
		return false
	}
	return s.Execute(cmd)
}

func formatTuning(t pid.Tuning) string {
	return fmt.Sprintf("kp=%g ki=%g kd=%g deadband=%g stiction=%g windup=%g",
		t.Kp, t.Ki, t.Kd, t.Deadband, t.Stiction, t.Windup)
}

// HistoryFilePath returns the console history location under the user's
// cache directory, or "" when there is none.
func HistoryFilePath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(cacheDir, "pidloop")
	_ = os.MkdirAll(dir, 0750)
	return filepath.Join(dir, "console_history")
}

func readlineLoop(ctx context.Context, cancel context.CancelFunc, rl *readline.Instance, commandChan chan<- string) {
	defer close(commandChan)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			cancel()
			return
		}
		if err != nil {
			return
		}
		if line = strings.TrimSpace(line); line != "" {
			commandChan <- line
		}
	}
}

// Run reads commands from the terminal until quit, EOF, Ctrl+C or ctx ends.
func Run(ctx context.Context, ctrl *pid.Controller, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "pid> ",
		HistoryFile: HistoryFilePath(),
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer rl.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	session := NewSession(ctrl, rl.Stdout(), log)
	session.printf("pid console (type 'help' for commands)")

	commandChan := make(chan string, 10)
	go readlineLoop(ctx, cancel, rl, commandChan)

	for {
		select {
		case line, ok := <-commandChan:
			if !ok {
				return nil
			}
			if session.Handle(line) {
				return nil
			}
		case <-ctx.Done():
			log.Debug("console stopped", zap.Error(ctx.Err()))
			return nil
		}
	}
}
