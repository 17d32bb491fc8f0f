package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/pidloop/internal/analysis"
	"github.com/san-kum/pidloop/internal/config"
	"github.com/san-kum/pidloop/internal/dynamo"
	"github.com/san-kum/pidloop/internal/experiment"
	"github.com/san-kum/pidloop/internal/export"
	"github.com/san-kum/pidloop/internal/storage"
)

var (
	jsonOut   string
	svgOut    string
	svgWidth  int
	svgHeight int
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [plant]",
		Short: "run a closed-loop simulation and store it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addLoopFlags(cmd)
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}
}

func newPlotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot feedback, setpoint and correction of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
}

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of the tracking error",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
}

func newExportCSVCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
}

func newExportJSONCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	cmd.Flags().StringVarP(&jsonOut, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newExportSVGCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render a run's traces to SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	cmd.Flags().StringVarP(&svgOut, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().IntVar(&svgWidth, "width", 960, "image width")
	cmd.Flags().IntVar(&svgHeight, "height", 540, "image height")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets [plant]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plants := experiment.NewRegistry().ListPlants()
			if len(args) > 0 {
				plants = args
			}
			for _, plant := range plants {
				presets := config.ListPresets(plant)
				if len(presets) == 0 {
					fmt.Printf("no presets for plant: %s\n", plant)
					continue
				}
				fmt.Printf("presets for %s:\n", plant)
				for _, p := range presets {
					fmt.Printf("  %s\n", p)
				}
			}
			return nil
		},
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp, err := experiment.Build(experiment.NewRegistry(), cfg)
	if err != nil {
		return err
	}

	fmt.Printf("running %s (%s, %s)...\n", cfg.Plant, cfg.Controller, cfg.Integrator)
	start := time.Now()

	result, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	for _, e := range result.Errors {
		log.Warn("simulation error", zap.Error(e))
	}

	runID, err := st.Save(exp.RunInfo(), result)
	if err != nil {
		return err
	}
	log.Debug("run saved", zap.String("id", runID), zap.Duration("elapsed", elapsed))

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", len(result.States))
	if m, ok := exp.Plant().(dynamo.Measured); ok && len(result.States) > 0 {
		final := result.States[len(result.States)-1]
		fmt.Printf("final feedback: %.6f\n", final[m.FeedbackIndex()])
	}
	printMetrics(result.Metrics)

	return nil
}

func printMetrics(metrics map[string]float64) {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, metrics[name])
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPLANT\tTIME\tDURATION\tDT\tINTEG\tCTRL\tKP\tKI\tKD")

	for _, run := range runs {
		gains := "-\t-\t-"
		if run.Tuning != nil {
			gains = fmt.Sprintf("%g\t%g\t%g", run.Tuning.Kp, run.Tuning.Ki, run.Tuning.Kd)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%s\t%s\n",
			run.ID,
			run.Plant,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			run.Controller,
			gains,
		)
	}

	return w.Flush()
}

// loadRun returns a stored run together with its plant's feedback index.
func loadRun(runID string) (*storage.RunMetadata, *dynamo.Result, int, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, 0, err
	}
	result, err := st.LoadResult(runID)
	if err != nil {
		return nil, nil, 0, err
	}
	if len(result.States) == 0 {
		return nil, nil, 0, fmt.Errorf("run %s: no data", runID)
	}

	feedback := 0
	if plant, err := experiment.NewRegistry().GetPlant(meta.Plant); err == nil {
		if m, ok := plant.(dynamo.Measured); ok {
			feedback = m.FeedbackIndex()
		}
	}
	return meta, result, feedback, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, result, feedback, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("plant: %s\n", meta.Plant)
	fmt.Printf("samples: %d\n\n", len(result.States))

	fb := result.Series(feedback)
	if len(result.References) == len(fb) {
		fmt.Println(asciigraph.PlotMany([][]float64{result.References, fb},
			asciigraph.Height(12),
			asciigraph.Width(80),
			asciigraph.SeriesColors(asciigraph.Yellow, asciigraph.Green),
			asciigraph.Caption("setpoint (yellow) vs feedback (green)"),
		))
	} else {
		fmt.Println(asciigraph.Plot(fb,
			asciigraph.Height(12),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("x%d (feedback)", feedback)),
		))
	}
	fmt.Println()

	if len(result.Controls) > 0 {
		fmt.Println(asciigraph.Plot(result.ControlSeries(0),
			asciigraph.Height(8),
			asciigraph.Width(80),
			asciigraph.Caption("correction"),
		))
		fmt.Println()
	}

	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, result, feedback, err := loadRun(args[0])
	if err != nil {
		return err
	}

	signal := result.Series(feedback)
	label := fmt.Sprintf("x%d", feedback)
	if len(result.References) == len(signal) {
		for i := range signal {
			signal[i] = result.References[i] - signal[i]
		}
		label = "tracking error"
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("plant: %s\n\n", meta.Plant)

	ps := analysis.PowerSpectrum(analysis.Padded(signal))
	plotData := ps
	if len(ps) >= 8 {
		plotData = ps[:len(ps)/4]
	}
	if len(plotData) > 0 {
		fmt.Println(asciigraph.Plot(plotData,
			asciigraph.Height(15),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("power spectrum (%s)", label)),
		))
		fmt.Println()
	}

	freq, power := analysis.DominantFrequency(signal, meta.Dt)
	fmt.Printf("dominant frequency: %.3f hz (magnitude %.3g)\n", freq, power)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/freq)
	}

	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	result, err := st.LoadResult(args[0])
	if err != nil {
		return err
	}
	return storage.WriteCSV(os.Stdout, result)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	if jsonOut != "" {
		if err := st.ExportJSON(runID, jsonOut); err != nil {
			return err
		}
		fmt.Printf("exported %s to %s\n", runID, jsonOut)
		return nil
	}

	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	result, err := st.LoadResult(runID)
	if err != nil {
		return err
	}
	return storage.WriteJSON(os.Stdout, meta, result)
}

func exportSVG(cmd *cobra.Command, args []string) error {
	_, result, feedback, err := loadRun(args[0])
	if err != nil {
		return err
	}

	svg := export.RunToSVG(result, feedback, svgWidth, svgHeight)
	if svg == "" {
		return fmt.Errorf("run %s: not enough samples to draw", args[0])
	}

	if svgOut == "" {
		_, err := fmt.Fprint(os.Stdout, svg)
		return err
	}
	if err := os.WriteFile(svgOut, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", args[0], svgOut)
	return nil
}
