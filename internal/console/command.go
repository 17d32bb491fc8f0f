package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/san-kum/pidloop/internal/pid"
)

var (
	ErrUsage          = errors.New("usage")
	ErrUnknownCommand = errors.New("unknown command")
)

type Kind int

const (
	CmdStep Kind = iota + 1
	CmdReset
	CmdReconfig
	CmdSet
	CmdShow
	CmdHelp
	CmdQuit
)

// Command is one parsed console line.
type Command struct {
	Kind Kind

	// step
	Setpoint float64
	Feedback float64
	Now      float64

	// reconfig
	Tuning pid.Tuning

	// set
	Name  string
	Value float64
}

const usage = `Commands:
  step <setpoint> <feedback> [now]         - Feed one sample (now omitted or 0 reads the clock)
  reset                                    - Clear integral, history and output
  reconfig <kp> <ki> <kd> <dband> <stiction> <windup>
                                           - Replace gains and shaping thresholds
  set <kp|ki|kd|deadband|stiction|windup> <value>
                                           - Change one tuning parameter
  show                                     - Print tuning, limits and run state
  help                                     - Show this help
  quit                                     - Leave the console`

// Parse turns a console line into a Command. Blank lines are a usage error.
func Parse(line string) (Command, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("%w: empty command", ErrUsage)
	}

	args := parts[1:]
	switch strings.ToLower(parts[0]) {
	case "step", "s":
		if len(args) < 2 || len(args) > 3 {
			return Command{}, fmt.Errorf("%w: step <setpoint> <feedback> [now]", ErrUsage)
		}
		vals, err := parseFloats(args)
		if err != nil {
			return Command{}, err
		}
		cmd := Command{Kind: CmdStep, Setpoint: vals[0], Feedback: vals[1]}
		if len(vals) == 3 {
			cmd.Now = vals[2]
		}
		return cmd, nil

	case "reset":
		return noArgs(CmdReset, args)

	case "reconfig":
		if len(args) != 6 {
			return Command{}, fmt.Errorf("%w: reconfig <kp> <ki> <kd> <dband> <stiction> <windup>", ErrUsage)
		}
		vals, err := parseFloats(args)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CmdReconfig, Tuning: pid.Tuning{
			Kp:       vals[0],
			Ki:       vals[1],
			Kd:       vals[2],
			Deadband: vals[3],
			Stiction: vals[4],
			Windup:   vals[5],
		}}, nil

	case "set":
		if len(args) != 2 {
			return Command{}, fmt.Errorf("%w: set <name> <value>", ErrUsage)
		}
		if _, err := applyParam(pid.Tuning{}, args[0], 0); err != nil {
			return Command{}, err
		}
		vals, err := parseFloats(args[1:])
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CmdSet, Name: strings.ToLower(args[0]), Value: vals[0]}, nil

	case "show":
		return noArgs(CmdShow, args)
	case "help", "?":
		return noArgs(CmdHelp, args)
	case "quit", "exit", "q":
		return noArgs(CmdQuit, args)
	}

	return Command{}, fmt.Errorf("%w: %s (try 'help')", ErrUnknownCommand, parts[0])
}

func noArgs(kind Kind, args []string) (Command, error) {
	if len(args) != 0 {
		return Command{}, fmt.Errorf("%w: command takes no arguments", ErrUsage)
	}
	return Command{Kind: kind}, nil
}

func parseFloats(args []string) ([]float64, error) {
	vals := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrUsage, a)
		}
		vals[i] = v
	}
	return vals, nil
}

func applyParam(t pid.Tuning, name string, value float64) (pid.Tuning, error) {
	switch strings.ToLower(name) {
	case "kp":
		t.Kp = value
	case "ki":
		t.Ki = value
	case "kd":
		t.Kd = value
	case "deadband", "dband":
		t.Deadband = value
	case "stiction":
		t.Stiction = value
	case "windup":
		t.Windup = value
	default:
		return t, fmt.Errorf("%w: unknown parameter %q", ErrUsage, name)
	}
	return t, nil
}
