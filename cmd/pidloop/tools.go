package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/pidloop/internal/bridge"
	"github.com/san-kum/pidloop/internal/config"
	"github.com/san-kum/pidloop/internal/console"
	"github.com/san-kum/pidloop/internal/experiment"
	"github.com/san-kum/pidloop/internal/pid"
	"github.com/san-kum/pidloop/internal/viz"
)

var (
	envFile        string
	bridgeSetpoint float64
)

func newLiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live [plant]",
		Short: "run the loop with live visualization and retuning",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addLoopFlags(cmd)
	return cmd
}

func newConsoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console",
		Short: "step a controller by hand",
		Args:  cobra.NoArgs,
		RunE:  runConsole,
	}
	cmd.Flags().StringVar(&configFile, "config", "", "take the pid block from a config file (yaml)")
	addTuningFlags(cmd)
	return cmd
}

func newBridgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "drive a remote actuator over MQTT",
		Long: `Subscribes to <prefix>/setpoint and <prefix>/feedback, steps the controller
on every feedback sample and publishes the correction to <prefix>/output.
<prefix>/reset resets the controller; <prefix>/tune takes a JSON tuning.

Broker settings come from PIDLOOP_MQTT_BROKER, PIDLOOP_MQTT_PORT,
PIDLOOP_MQTT_USERNAME, PIDLOOP_MQTT_PASSWORD, PIDLOOP_MQTT_CLIENT_ID,
PIDLOOP_MQTT_PREFIX and PIDLOOP_MQTT_QOS, optionally read from an env file.`,
		Args: cobra.NoArgs,
		RunE: runBridge,
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "env file with broker settings")
	cmd.Flags().Float64Var(&bridgeSetpoint, "setpoint", 0, "initial setpoint")
	cmd.Flags().StringVar(&configFile, "config", "", "take the pid block from a config file (yaml)")
	addTuningFlags(cmd)
	return cmd
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	reg := experiment.NewRegistry()
	exp, err := experiment.Build(reg, cfg)
	if err != nil {
		return err
	}
	integ, err := reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return err
	}

	m := viz.NewModel(exp.Plant(), integ, exp.Controller(), exp.InitState(), cfg.Dt, cfg.Plant)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

// controllerFromFlags builds a bare controller from the pid block of the
// defaults or --config, with changed tuning flags applied on top.
func controllerFromFlags(cmd *cobra.Command) (*pid.Controller, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	for name, v := range pidFlags {
		if cmd.Flags().Changed(name) {
			if err := cfg.SetPIDParam(name, *v); err != nil {
				return nil, err
			}
		}
	}

	return pid.NewFromTuning(cfg.Tuning(), cfg.Limits()), nil
}

func runConsole(cmd *cobra.Command, args []string) error {
	ctrl, err := controllerFromFlags(cmd)
	if err != nil {
		return err
	}
	return console.Run(cmd.Context(), ctrl, log)
}

func runBridge(cmd *cobra.Command, args []string) error {
	ctrl, err := controllerFromFlags(cmd)
	if err != nil {
		return err
	}

	cfg, err := bridge.LoadEnv(envFile)
	if err != nil {
		return err
	}

	log.Info("starting bridge",
		zap.String("broker", cfg.BrokerURL()),
		zap.String("prefix", cfg.Prefix),
		zap.Any("tuning", ctrl.Tuning()),
		zap.Any("limits", ctrl.Limits()),
	)

	h := bridge.NewHandler(ctrl, bridgeSetpoint, cfg.Topics(), log)
	return bridge.New(cfg, h, log).Run(cmd.Context())
}
