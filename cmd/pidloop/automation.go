package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/pidloop/internal/automation"
	"github.com/san-kum/pidloop/internal/experiment"
	"github.com/san-kum/pidloop/internal/storage"
)

var (
	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int

	mcTrials  int
	mcPerturb float64
	mcSeed    int64
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep [plant]",
		Short: "sweep one pid parameter and compare the runs",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addLoopFlags(cmd)
	cmd.Flags().StringVar(&sweepParam, "param", "kp", "parameter to sweep (kp, ki, kd, deadband, hi, lo, stiction, windup)")
	cmd.Flags().Float64Var(&sweepMin, "min", 0.001, "first value")
	cmd.Flags().Float64Var(&sweepMax, "max", 0.01, "last value")
	cmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of values")
	return cmd
}

func newScenarioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted sequence of loops from a yaml file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
}

func newMonteCarloCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "montecarlo [plant]",
		Short: "repeat a run with perturbed initial state and reseeded noise",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMonteCarlo,
	}
	addLoopFlags(cmd)
	cmd.Flags().IntVar(&mcTrials, "trials", 20, "number of trials")
	cmd.Flags().Float64Var(&mcPerturb, "perturb", 0.1, "initial state perturbation")
	cmd.Flags().Int64Var(&mcSeed, "mc-seed", 1, "trial seed")
	return cmd
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	sw := &automation.GainSweep{
		Base:  cfg,
		Param: sweepParam,
		Min:   sweepMin,
		Max:   sweepMax,
		Steps: sweepSteps,
	}

	fmt.Printf("sweeping %s on %s over [%g, %g]\n\n", sweepParam, cfg.Plant, sweepMin, sweepMax)
	results, err := automation.RunGainSweep(cmd.Context(), sw, experiment.NewRegistry())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tFINAL\tIAE\tEFFORT\tSATURATION\tSTABLE\n", sweepParam)
	for _, r := range results {
		stable := "yes"
		if r.Diverged || r.Metrics["stability"] != 1 {
			stable = "no"
		}
		fmt.Fprintf(w, "%g\t%.4f\t%.4f\t%.4f\t%.2f\t%s\n",
			r.Value, r.Final, r.Metrics["iae"], r.Metrics["control_effort"], r.Metrics["saturation"], stable)
	}
	return w.Flush()
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	if sc.Name != "" {
		fmt.Printf("scenario: %s\n", sc.Name)
	}
	if sc.Description != "" {
		fmt.Printf("%s\n", sc.Description)
	}
	fmt.Println()

	results, err := automation.RunScenario(cmd.Context(), sc, experiment.NewRegistry(), st, log)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSAMPLES\tIAE\tRUN")
	for _, r := range results {
		runID := "-"
		if r.RunID != "" {
			runID = r.RunID
		}
		fmt.Fprintf(w, "%s\t%d\t%.4f\t%s\n", r.Name, len(r.Result.States), r.Result.Metrics["iae"], runID)
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	mc := &automation.MonteCarloConfig{
		Base:         cfg,
		Perturbation: mcPerturb,
		NumTrials:    mcTrials,
		Seed:         mcSeed,
	}

	results, err := automation.RunMonteCarlo(cmd.Context(), mc, experiment.NewRegistry())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIAL\tINIT\tFINAL\tIAE\tSTABLE")
	stable := 0
	for _, r := range results {
		if r.Stable {
			stable++
		}
		fmt.Fprintf(w, "%d\t%v\t%.4f\t%.4f\t%t\n", r.TrialID, formatState(r.InitState), r.Final, r.IAE, r.Stable)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(results) > 0 {
		fmt.Printf("\nstable: %d/%d (%.0f%%)\n", stable, len(results), 100*float64(stable)/float64(len(results)))
	}
	return nil
}

func formatState(x []float64) string {
	s := "["
	for i, v := range x {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%.3f", v)
	}
	return s + "]"
}
