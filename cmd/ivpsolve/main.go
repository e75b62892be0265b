package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/san-kum/ivpsolve/internal/backend/multistep"
	"github.com/san-kum/ivpsolve/internal/config"
	"github.com/san-kum/ivpsolve/internal/experiment"
	"github.com/san-kum/ivpsolve/internal/logging"
)

var (
	dataDir  string
	logLevel string

	method      string
	backendName string
	absTol      float64
	relTol      float64
	t0          float64
	tEnd        float64
	points      int
	initState   []float64
	params      []string
	maxSteps    int
	configFile  string
	preset      string
	noSave      bool
	dumpMetrics bool

	sweepSets []string
	gridSpecs []string
	parallel  bool

	plotVars int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "ivpsolve",
		Short:         "initial value problem solver sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".ivpsolve", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "solve a model and save the solution",
		Args:  cobra.ExactArgs(1),
		RunE:  runSolve,
	}
	scenarioFlags(runCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "solve a model for several parameter sets, restarting one session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	scenarioFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepSets, "set", nil, "parameter set k=v[,k=v...] (repeatable)")
	sweepCmd.Flags().StringArrayVar(&gridSpecs, "grid", nil, "parameter grid k=v1:v2:... (repeatable, combined with every other --grid)")
	sweepCmd.Flags().BoolVar(&parallel, "parallel", false, "solve each set on its own session concurrently")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotVars, "vars", 6, "maximum number of components to plot")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata and solution as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list available models",
		RunE:  listModels,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Println(heading.Render("presets for " + args[0]))
			for _, p := range presets {
				cfg := config.GetPreset(args[0], p)
				fmt.Printf("  %-10s %s\n", p, dim.Render(describe(cfg)))
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, sweepCmd, listCmd, plotCmd, exportCmd, modelsCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error:"), err)
		os.Exit(1)
	}
}

func scenarioFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&method, "method", "", "stiff|nonstiff (default: model's usual method)")
	cmd.Flags().StringVar(&backendName, "backend", "", "solver backend (default: multistep)")
	cmd.Flags().Float64Var(&absTol, "abstol", config.DefaultAbsTol, "absolute tolerance")
	cmd.Flags().Float64Var(&relTol, "reltol", config.DefaultRelTol, "relative tolerance")
	cmd.Flags().Float64Var(&t0, "t0", 0, "initial time")
	cmd.Flags().Float64Var(&tEnd, "tend", config.DefaultTEnd, "final output time")
	cmd.Flags().IntVar(&points, "points", config.DefaultPoints, "number of evenly spaced outputs")
	cmd.Flags().Float64SliceVar(&initState, "init", nil, "initial state (default: model's)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "model parameter k=v (repeatable)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "step budget per output time (0: backend default)")
	cmd.Flags().StringVar(&configFile, "config", "", "scenario file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset scenario")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not save the run")
	cmd.Flags().BoolVar(&dumpMetrics, "metrics", false, "print solver metrics to stderr when done")
}

func newLogger() (*slog.Logger, error) {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(level), nil
}

func listModels(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	fmt.Println(heading.Render("models"))
	for _, name := range reg.ListModels() {
		m, err := reg.GetModel(name, 0)
		if err != nil {
			return err
		}
		fmt.Printf("  %-12s %-9s %s\n", name, m.Method(), dim.Render(m.Description()))
	}
	return nil
}
