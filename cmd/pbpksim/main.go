package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/pbpksim/internal/config"
	"github.com/san-kum/pbpksim/internal/run"
	"github.com/san-kum/pbpksim/internal/storage"
)

var (
	dataDir    string
	logLevel   string
	configFile string

	paramsFile string
	setParams  []string
	initOver   []string
	finalTime  float64
	rtol       float64
	atol       float64
	save       bool

	batchFile string
	workers   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pbpksim",
		Short: "physiologically-based compartmental model simulator",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				level = logrus.InfoLevel
			}
			logrus.SetLevel(level)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".pbpksim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log verbosity level")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run a simulation",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&paramsFile, "params", "", "parameter record file (json)")
	runCmd.Flags().StringArrayVar(&setParams, "set", nil, "set parameter (name=value)")
	runCmd.Flags().StringArrayVar(&initOver, "init", nil, "initial-state override (species=value)")
	runCmd.Flags().Float64Var(&finalTime, "final-time", 0, "final time override")
	runCmd.Flags().Float64Var(&rtol, "rtol", 0, "relative tolerance")
	runCmd.Flags().Float64Var(&atol, "atol", 0, "absolute tolerance")
	runCmd.Flags().BoolVar(&save, "save", false, "save the run to the data directory")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list available models",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range run.DefaultRegistry().List() {
				fmt.Println(name)
			}
			return nil
		},
	}

	describeCmd := &cobra.Command{
		Use:   "describe [model]",
		Short: "print model metadata (parameters, species, defaults)",
		Args:  cobra.ExactArgs(1),
		RunE:  describeModel,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export a saved run to CSV on stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a saved run to JSON on stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	batchCmd := &cobra.Command{
		Use:   "batch [model]",
		Short: "run many parameter records concurrently",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().StringVar(&batchFile, "records", "", "yaml file with a list of parameter records")
	batchCmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "concurrent runs")

	rootCmd.AddCommand(runCmd, modelsCmd, describeCmd, listCmd, exportCSVCmd, exportJSONCmd, batchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			logrus.WithError(err).Warn("failed to load config, using defaults")
		} else {
			cfg = loaded
		}
	}
	if rtol > 0 {
		cfg.RelTol = rtol
	}
	if atol > 0 {
		cfg.AbsTol = atol
	}
	return cfg
}

func parseAssignments(assignments []string) (map[string]float64, error) {
	if len(assignments) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(assignments))
	for _, a := range assignments {
		name, raw, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("malformed assignment %q (want name=value)", a)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed value in %q: %w", a, err)
		}
		out[name] = v
	}
	return out, nil
}

func buildInput() (run.Input, error) {
	var in run.Input
	if paramsFile != "" {
		data, err := os.ReadFile(paramsFile)
		if err != nil {
			return in, err
		}
		if err := json.Unmarshal(data, &in); err != nil {
			// Accept a bare parameter map as well as the full input record.
			var flat map[string]float64
			if err2 := json.Unmarshal(data, &flat); err2 != nil {
				return in, err
			}
			in = run.Input{Params: flat}
		}
	}
	if in.Params == nil {
		in.Params = make(map[string]float64)
	}
	set, err := parseAssignments(setParams)
	if err != nil {
		return in, err
	}
	for k, v := range set {
		in.Params[k] = v
	}
	inits, err := parseAssignments(initOver)
	if err != nil {
		return in, err
	}
	if len(inits) > 0 {
		if in.Init == nil {
			in.Init = make(map[string]float64)
		}
		for k, v := range inits {
			in.Init[k] = v
		}
	}
	if finalTime > 0 {
		in.FinalTime = &finalTime
	}
	return in, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	modelName := args[0]
	cfg := loadConfig()

	in, err := buildInput()
	if err != nil {
		return err
	}

	runner := run.NewRunner(run.DefaultRegistry(), cfg.Solver())

	logrus.WithField("model", modelName).Info("running simulation")
	start := time.Now()
	out, err := runner.Run(context.Background(), modelName, in)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	logrus.WithFields(logrus.Fields{
		"samples": len(out.Time),
		"events":  len(out.Events),
		"elapsed": elapsed,
	}).Info("completed")

	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		info, err := runner.Describe(modelName)
		if err != nil {
			return err
		}
		order := make([]string, len(info.Species))
		for i, sp := range info.Species {
			order[i] = sp.ID
		}
		runID, err := st.Save(modelName, in.Params, order, out)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(out)
}

func describeModel(cmd *cobra.Command, args []string) error {
	runner := run.NewRunner(run.DefaultRegistry(), config.DefaultConfig().Solver())
	info, err := runner.Describe(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
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
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tFINAL\tSAMPLES\tEVENTS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t%d\n",
			r.ID, r.Model, r.Timestamp.Format("2006-01-02 15:04:05"), r.FinalTime, r.Samples, len(r.Events))
	}
	return w.Flush()
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	out, order, err := st.LoadSeries(args[0])
	if err != nil {
		return err
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()
	if err := w.Write(append([]string{"time"}, order...)); err != nil {
		return err
	}
	for i := range out.Time {
		row := []string{strconv.FormatFloat(out.Time[i], 'g', -1, 64)}
		for _, id := range order {
			row = append(row, strconv.FormatFloat(out.Species[id][i], 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	out, _, err := st.LoadSeries(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runBatch(cmd *cobra.Command, args []string) error {
	modelName := args[0]
	cfg := loadConfig()

	if batchFile == "" {
		return fmt.Errorf("--records is required")
	}
	data, err := os.ReadFile(batchFile)
	if err != nil {
		return err
	}
	var inputs []run.Input
	if err := yaml.Unmarshal(data, &inputs); err != nil {
		return err
	}

	runner := run.NewRunner(run.DefaultRegistry(), cfg.Solver())
	batch := run.NewBatch(runner, workers)

	logrus.WithFields(logrus.Fields{"model": modelName, "records": len(inputs), "workers": workers}).Info("running batch")
	start := time.Now()
	outs, errs := batch.Run(context.Background(), modelName, inputs)
	logrus.WithField("elapsed", time.Since(start)).Info("batch completed")

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			logrus.WithError(err).Errorf("record %d failed", i)
			continue
		}
		fmt.Printf("record %d: %d samples, %d events\n", i, len(outs[i].Time), len(outs[i].Events))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d records failed", failed, len(inputs))
	}
	return nil
}
