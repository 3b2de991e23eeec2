package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/analysis"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/automation"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/compute"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/config"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/electrostatic"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/export"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/fdtd"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/field"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/server"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/storage"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/tui"
)

var (
	dataDir    string
	configFile string

	// Solver overrides
	gridWidth  int
	gridHeight int
	cellSize   float32
	timestep   float32
	boundary   string
	backend    string

	// Run sampling
	duration    float64
	sampleEvery int
	probeU      float32
	probeV      float32

	// Server
	addr        string
	fps         int
	compression string
	maxSessions int

	// Electrostatic trace
	chargesSpec string
	startSpec   string
	velSpec     string
	stepperName string
	traceSteps  int
	traceDt     float64
	testQ       float64
	testM       float64

	// Sweep
	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int

	// Bench
	benchSteps int

	svgPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "efv",
		Short: "electromagnetic field simulation lab",
		Run: func(cmd *cobra.Command, args []string) {
			// Default to the live view of the pulse scenario
			if err := liveScenario(cmd, "pulse"); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".efv", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")

	solverFlags := func(cmd *cobra.Command) {
		cmd.Flags().IntVar(&gridWidth, "width", config.DefaultGridWidth, "grid width in cells")
		cmd.Flags().IntVar(&gridHeight, "height", config.DefaultGridHeight, "grid height in cells")
		cmd.Flags().Float32Var(&cellSize, "cell-size", config.DefaultCellSize, "cell size")
		cmd.Flags().Float32Var(&timestep, "dt", config.DefaultDt, "timestep")
		cmd.Flags().StringVar(&boundary, "boundary", "reflect", "boundary treatment (reflect, open)")
		cmd.Flags().StringVar(&backend, "backend", "auto", "compute backend (auto, cpu, opencl)")
	}

	runCmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "run a scenario headless and record samples",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	solverFlags(runCmd)
	runCmd.Flags().Float64Var(&duration, "time", 1.0, "simulated duration")
	runCmd.Flags().IntVar(&sampleEvery, "sample-every", 10, "steps between samples")
	runCmd.Flags().Float32Var(&probeU, "probe-u", 0.5, "probe point u (normalized)")
	runCmd.Flags().Float32Var(&probeV, "probe-v", 0.5, "probe point v (normalized)")
	runCmd.Flags().StringVar(&svgPath, "svg", "", "write the final |E| heatmap as SVG to this path")

	liveCmd := &cobra.Command{
		Use:   "live [scenario]",
		Short: "run a scenario with live terminal view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return liveScenario(cmd, args[0])
		},
	}
	solverFlags(liveCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve simulations over websocket",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "listen address")
	serveCmd.Flags().IntVar(&fps, "fps", config.DefaultFPS, "frame rate per session")
	serveCmd.Flags().StringVar(&compression, "compression", "zstd", "frame compression (none, zstd)")
	serveCmd.Flags().IntVar(&maxSessions, "max-sessions", 16, "session cap")

	probeCmd := &cobra.Command{
		Use:   "probe [scenario]",
		Short: "run a scenario and report field diagnostics",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runProbe,
	}
	solverFlags(probeCmd)
	probeCmd.Flags().Float64Var(&duration, "time", 0.5, "simulated duration")

	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "trace a test charge through a static charge layout",
		RunE:  runTrace,
	}
	traceCmd.Flags().StringVar(&chargesSpec, "charges", "-0.5,0,1;0.5,0,-1", "charges as x,y,q;x,y,q;...")
	traceCmd.Flags().StringVar(&startSpec, "start", "-0.5,0.75", "test charge start position x,y")
	traceCmd.Flags().StringVar(&velSpec, "vel", "0.8,0", "test charge initial velocity x,y")
	traceCmd.Flags().StringVar(&stepperName, "stepper", "rk4", "stepper (euler, rk4, rk45, all)")
	traceCmd.Flags().IntVar(&traceSteps, "steps", 4000, "trace steps")
	traceCmd.Flags().Float64Var(&traceDt, "dt", 0.001, "trace timestep")
	traceCmd.Flags().Float64Var(&testQ, "q", -1.0, "test charge")
	traceCmd.Flags().Float64Var(&testM, "m", 1.0, "test charge mass")
	traceCmd.Flags().StringVar(&svgPath, "svg", "", "write the traces as SVG to this path")

	batchCmd := &cobra.Command{
		Use:   "batch [script.yaml]",
		Short: "run a scripted sequence of scenarios",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [scenario]",
		Short: "sweep a solver parameter and chart the outcome",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&sweepParam, "param", "dt", "parameter to sweep (dt, cell_size, decay_decades)")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0.0005, "low end of the range")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 0.01, "high end of the range")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 8, "number of values")
	sweepCmd.Flags().Float64Var(&duration, "time", 0.5, "simulated duration per value")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run samples",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of run samples",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run samples to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark solver step rate",
		RunE:  benchBackends,
	}
	benchCmd.Flags().IntVar(&benchSteps, "steps", 200, "steps per measurement")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list scenario presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := config.ListPresets()
			sort.Strings(names)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tGRID\tBOUNDARY\tDESCRIPTION")
			for _, name := range names {
				sc := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%dx%d\t%s\t%s\n",
					name, sc.Solver.Width, sc.Solver.Height, sc.Solver.Boundary, sc.Description)
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, serveCmd, probeCmd, traceCmd, batchCmd, sweepCmd,
		listCmd, plotCmd, analyzeCmd, exportCmd, exportJSONCmd, exportCSVCmd, benchCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveScenario starts from the named preset, overlays the config
// file's solver section when one is given, and lets changed CLI flags
// win over both.
func resolveScenario(cmd *cobra.Command, name string) (*config.Scenario, error) {
	preset := config.GetPreset(name)
	if preset == nil {
		return nil, fmt.Errorf("unknown scenario: %s (available: %v)", name, config.ListPresets())
	}
	sc := *preset

	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		sc.Solver = cfg.Solver
	}

	f := cmd.Flags()
	if f.Changed("width") {
		sc.Solver.Width = gridWidth
	}
	if f.Changed("height") {
		sc.Solver.Height = gridHeight
	}
	if f.Changed("cell-size") {
		sc.Solver.CellSize = cellSize
	}
	if f.Changed("dt") {
		sc.Solver.Dt = timestep
	}
	if f.Changed("boundary") {
		sc.Solver.Boundary = boundary
	}
	if f.Changed("backend") {
		sc.Solver.Backend = backend
	}
	return &sc, nil
}

func liveScenario(cmd *cobra.Command, name string) error {
	sc, err := resolveScenario(cmd, name)
	if err != nil {
		return err
	}

	sim, err := automation.Build(sc)
	if err != nil {
		return err
	}
	defer sim.Close()

	return tui.Run(sim, name)
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenario := args[0]
	sc, err := resolveScenario(cmd, scenario)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	fmt.Printf("running %s...\n", scenario)
	start := time.Now()

	out, err := automation.Run(context.Background(), automation.RunSpec{
		Scenario:    scenario,
		Config:      sc,
		Time:        duration,
		SampleEvery: sampleEvery,
		ProbeU:      probeU,
		ProbeV:      probeV,
	}, automation.Build)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if out.Result.Metrics["diverged"] == 1 {
		fmt.Println("warning: field diverged, check the courant number")
	}

	runID, err := st.Save(out.Meta, out.Result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v on %s backend\n", elapsed, out.Meta.Backend)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("samples: %d\n", len(out.Result.Records))
	fmt.Println("\nmetrics:")
	for name, val := range out.Result.Metrics {
		fmt.Printf("  %s: %.6f\n", name, val)
	}

	if svgPath != "" {
		svg := export.HeatmapToSVG(out.Final, 4)
		if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("heatmap written to %s\n", svgPath)
	}

	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	script, err := automation.LoadScript(args[0])
	if err != nil {
		return err
	}
	if len(script.Runs) == 0 {
		return fmt.Errorf("script has no runs")
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	if script.Name != "" {
		fmt.Printf("script: %s (%d runs)\n", script.Name, len(script.Runs))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := automation.RunScript(ctx, script, st, automation.Build)
	if err != nil {
		return err
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCENARIO\tRUN_ID\tSAMPLES\tFINAL_ENERGY\tDIVERGED")
	for _, res := range results {
		diverged := ""
		if res.Metrics["diverged"] == 1 {
			diverged = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.4g\t%s\n",
			res.Scenario, res.RunID, res.Samples, res.Metrics["final_energy"], diverged)
	}
	return w.Flush()
}

func runSweep(cmd *cobra.Command, args []string) error {
	points, err := automation.RunSweep(context.Background(), automation.Sweep{
		Scenario: args[0],
		Param:    sweepParam,
		Min:      sweepMin,
		Max:      sweepMax,
		Steps:    sweepSteps,
		Time:     duration,
	}, automation.Build)
	if err != nil {
		return err
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VALUE\tFINAL_ENERGY\tDIVERGED")
	stable := make([]float64, 0, len(points))
	for _, pt := range points {
		diverged := ""
		if pt.Diverged {
			diverged = "yes"
		} else {
			stable = append(stable, pt.FinalEnergy)
		}
		fmt.Fprintf(w, "%.6g\t%.4g\t%s\n", pt.Value, pt.FinalEnergy, diverged)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(stable) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(stable,
			asciigraph.Height(10),
			asciigraph.Width(60),
			asciigraph.Caption(fmt.Sprintf("final energy by %s (stable runs)", sweepParam)),
		))
	}
	for i, pt := range points {
		if pt.Diverged {
			fmt.Printf("\nfirst divergence at %s=%.6g", sweepParam, pt.Value)
			if i > 0 {
				fmt.Printf(" (last stable %.6g)", points[i-1].Value)
			}
			fmt.Println()
			break
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.Server.Addr = addr
	}
	if f.Changed("fps") {
		cfg.Server.FPS = fps
	}
	if f.Changed("compression") {
		cfg.Server.Compression = compression
	}
	if f.Changed("max-sessions") {
		cfg.Server.MaxSessions = maxSessions
	}

	solver := cfg.Solver
	newSim := func() (*fdtd.Simulation, error) {
		return automation.Build(&config.Scenario{Solver: solver})
	}

	srv, err := server.New(cfg.Server, newSim)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

// runProbe steps a scenario and reports how the field actually behaves:
// near and far magnitudes, the radial decay fit, divergence, and the
// spectrum of the field at the first source.
func runProbe(cmd *cobra.Command, args []string) error {
	scenario := "pulse"
	if len(args) > 0 {
		scenario = args[0]
	}
	sc, err := resolveScenario(cmd, scenario)
	if err != nil {
		return err
	}
	if len(sc.Sources) == 0 {
		return fmt.Errorf("scenario %s has no sources to probe", scenario)
	}
	src := sc.Sources[0]

	sim, err := automation.Build(sc)
	if err != nil {
		return err
	}
	defer sim.Close()

	p := sim.Params()
	steps := int(duration / float64(p.Dt))
	if steps < 1 {
		steps = 1
	}

	fmt.Printf("probing %s on %s backend (%d steps)...\n\n", scenario, sim.Backend(), steps)

	ctx := context.Background()
	series := make([]float64, 0, steps)
	for i := 0; i < steps; i++ {
		sim.Step()
		sample, err := sim.SampleFieldAt(ctx, src.X, src.Y)
		if err != nil {
			return err
		}
		series = append(series, float64(sample.Magnitude))
	}

	near, err := sim.SampleFieldAt(ctx, src.X, src.Y)
	if err != nil {
		return err
	}
	far, err := sim.SampleFieldAt(ctx, 0.05, 0.05)
	if err != nil {
		return err
	}

	e, err := sim.Snapshot(ctx, field.Electric)
	if err != nil {
		return err
	}

	fmt.Printf("|E| at source (%.2f, %.2f): %.6g\n", src.X, src.Y, near.Magnitude)
	fmt.Printf("|E| at (0.05, 0.05): %.6g\n", far.Magnitude)
	if far.Magnitude > 0 {
		fmt.Printf("near/far ratio: %.1f\n", near.Magnitude/far.Magnitude)
	}

	if x, y, bad := analysis.Diverged(e); bad {
		fmt.Printf("\nwarning: field diverged near cell (%d,%d)\n", x, y)
	}

	cx := int(src.X * float32(p.Width))
	cy := int(src.Y * float32(p.Height))
	maxR := p.Width
	if p.Height < maxR {
		maxR = p.Height
	}
	maxR = maxR/2 - 1

	prof := analysis.GenerateRadialProfile(e, cx, cy, maxR)
	if len(prof.Mean) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(prof.Mean,
			asciigraph.Height(10),
			asciigraph.Width(60),
			asciigraph.Caption("mean |E| by ring radius"),
		))
		if exp, ok := analysis.DecayExponent(prof); ok {
			fmt.Printf("\ndecay exponent: %.3f\n", exp)
		}
	}

	if len(series) >= 4 {
		ps := analysis.PowerSpectrum(series)
		fmt.Println()
		fmt.Println(asciigraph.Plot(ps,
			asciigraph.Height(10),
			asciigraph.Width(60),
			asciigraph.Caption("power spectrum (|E| at source)"),
		))
		freq, power := analysis.DominantFrequency(series, float64(p.Dt))
		fmt.Printf("\ndominant frequency: %.3f hz (power %.3g)\n", freq, power)
	}

	return nil
}

func runTrace(cmd *cobra.Command, args []string) error {
	charges, err := parseCharges(chargesSpec)
	if err != nil {
		return err
	}
	start, err := parseVec(startSpec)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	vel, err := parseVec(velSpec)
	if err != nil {
		return fmt.Errorf("vel: %w", err)
	}

	var order []string
	switch stepperName {
	case "euler", "rk4", "rk45":
		order = []string{stepperName}
	case "all":
		order = []string{"euler", "rk4", "rk45"}
	default:
		return fmt.Errorf("unknown stepper: %s (euler, rk4, rk45, all)", stepperName)
	}

	f := electrostatic.NewField(charges)
	tc := electrostatic.TestCharge{Pos: start, Vel: vel, Q: testQ, M: testM}

	fmt.Printf("field: %d charges, test charge q=%.2f m=%.2f\n", len(charges), testQ, testM)
	fmt.Printf("tracing %d steps at dt=%.4f\n\n", traceSteps, traceDt)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEPPER\tFINAL_POS\tENERGY_DRIFT")

	var paths [][]r2.Vec
	for _, name := range order {
		stepper := newStepper(name)

		cur := tc
		path := make([]r2.Vec, 0, traceSteps+1)
		path = append(path, cur.Pos)
		e0 := f.Energy(cur)

		for i := 0; i < traceSteps; i++ {
			cur = stepper.Step(f, cur, traceDt)
			path = append(path, cur.Pos)
		}

		drift := math.Abs(f.Energy(cur) - e0)
		if e0 != 0 {
			drift /= math.Abs(e0)
		}

		fmt.Fprintf(w, "%s\t(%.3f, %.3f)\t%.2e\n", name, cur.Pos.X, cur.Pos.Y, drift)
		paths = append(paths, path)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(tui.PlotTraces(paths, charges, 70, 22))

	if svgPath != "" {
		svg := export.TracesToSVG(paths, charges, 800, 600)
		if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("traces written to %s\n", svgPath)
	}
	return nil
}

func newStepper(name string) electrostatic.Stepper {
	switch name {
	case "euler":
		return electrostatic.NewEuler()
	case "rk45":
		return electrostatic.NewRK45()
	default:
		return electrostatic.NewRK4()
	}
}

func parseVec(spec string) (r2.Vec, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 2 {
		return r2.Vec{}, fmt.Errorf("%q: want x,y", spec)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return r2.Vec{}, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return r2.Vec{}, err
	}
	return r2.Vec{X: x, Y: y}, nil
}

func parseCharges(spec string) ([]electrostatic.Charge, error) {
	var out []electrostatic.Charge
	for _, part := range strings.Split(spec, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ",")
		if len(fields) != 3 {
			return nil, fmt.Errorf("charge %q: want x,y,q", part)
		}
		var vals [3]float64
		for i, fs := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(fs), 64)
			if err != nil {
				return nil, fmt.Errorf("charge %q: %w", part, err)
			}
			vals[i] = v
		}
		out = append(out, electrostatic.Charge{
			Pos: r2.Vec{X: vals[0], Y: vals[1]},
			Q:   vals[2],
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no charges given")
	}
	return out, nil
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
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tGRID\tBOUNDARY\tBACKEND\tSAMPLES")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\t%s\t%s\t%d\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Width,
			run.Height,
			run.Boundary,
			run.Backend,
			run.Steps,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	records, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("samples: %d\n\n", len(records))

	mag := make([]float64, len(records))
	energy := make([]float64, len(records))
	for i, r := range records {
		mag[i] = r.Mag
		energy[i] = r.Energy
	}

	fmt.Println(asciigraph.Plot(mag,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("|E| at probe"),
	))
	fmt.Println()
	fmt.Println(asciigraph.Plot(energy,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("total field energy"),
	))

	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	records, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	if len(records) < 4 {
		return fmt.Errorf("not enough samples")
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n\n", meta.Scenario)

	series := make([]float64, len(records))
	for i, r := range records {
		series[i] = r.Mag
	}

	ps := analysis.PowerSpectrum(series)
	fmt.Println(asciigraph.Plot(ps,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("power spectrum (|E| at probe)"),
	))

	sampleDt := records[1].Time - records[0].Time
	freq, power := analysis.DominantFrequency(series, sampleDt)

	fmt.Printf("\ndominant frequency: %.3f hz (power %.3g)\n", freq, power)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/freq)
	}

	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	records, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}

	return storage.ExportJSONStdout(meta, records)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	records, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no data to export")
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if err := w.Write([]string{"time", "ex", "ey", "ez", "mag", "energy"}); err != nil {
		return err
	}

	for _, r := range records {
		row := []string{
			strconv.FormatFloat(r.Time, 'f', 6, 64),
			strconv.FormatFloat(r.Ex, 'f', 6, 64),
			strconv.FormatFloat(r.Ey, 'f', 6, 64),
			strconv.FormatFloat(r.Ez, 'f', 6, 64),
			strconv.FormatFloat(r.Mag, 'f', 6, 64),
			strconv.FormatFloat(r.Energy, 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}

func benchBackends(cmd *cobra.Command, args []string) error {
	sizes := []int{64, 128, 256}

	names := []string{"cpu"}
	if be, err := compute.NewOpenCLBackend(); err == nil {
		be.Cleanup()
		names = append(names, "opencl")
	}

	fmt.Println("benchmarking solver step rate")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tGRID\tSTEPS\tTIME\tSTEPS/SEC")

	ctx := context.Background()
	for _, name := range names {
		for _, n := range sizes {
			sim, err := automation.Build(&config.Scenario{
				Solver: config.SolverConfig{
					Width: n, Height: n,
					CellSize:     config.DefaultCellSize,
					Dt:           config.DefaultDt,
					Boundary:     "reflect",
					DecayDecades: config.DefaultDecayDecades,
					Backend:      name,
				},
				Sources: []config.SourceConfig{
					{X: 0.5, Y: 0.5, Value: 1, HalfExtent: 1 / float32(n)},
				},
			})
			if err != nil {
				return err
			}

			start := time.Now()
			for i := 0; i < benchSteps; i++ {
				sim.Step()
			}
			// Snapshot fences the queue so the timing covers real work.
			if _, err := sim.Snapshot(ctx, field.Electric); err != nil {
				sim.Close()
				return err
			}
			elapsed := time.Since(start)
			sim.Close()

			fmt.Fprintf(w, "%s\t%dx%d\t%d\t%v\t%.0f\n",
				name, n, n, benchSteps, elapsed,
				float64(benchSteps)/elapsed.Seconds())
		}
	}

	return w.Flush()
}
