// Package automation runs scenarios without user interaction: single
// headless runs, scripted sequences loaded from YAML, and parameter
// sweeps. The sweep is the usual way to find where a grid setup stops
// being stable, since the solver flags but never enforces the Courant
// limit.
package automation

import (
	"context"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/analysis"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/compute"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/config"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/fdtd"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/field"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/storage"
)

// BuildFunc constructs a ready simulation for a scenario.
type BuildFunc func(*config.Scenario) (*fdtd.Simulation, error)

// Build compiles a scenario into a ready simulation: boundary and
// backend resolution, then source and material placement. The caller
// owns the simulation and must Close it; Close releases the backend.
func Build(sc *config.Scenario) (*fdtd.Simulation, error) {
	bnd, err := compute.ParseBoundary(sc.Solver.Boundary)
	if err != nil {
		return nil, err
	}

	var be compute.Backend
	switch sc.Solver.Backend {
	case "cpu":
		be = compute.NewCPUBackend()
	case "opencl":
		be, err = compute.NewOpenCLBackend()
		if err != nil {
			return nil, fmt.Errorf("opencl backend unavailable: %w", err)
		}
	case "", "auto":
		be = compute.AutoSelect()
	default:
		return nil, fmt.Errorf("unknown backend: %s (auto, cpu, opencl)", sc.Solver.Backend)
	}

	p := fdtd.Params{
		Width:        sc.Solver.Width,
		Height:       sc.Solver.Height,
		CellSize:     sc.Solver.CellSize,
		Dt:           sc.Solver.Dt,
		Boundary:     bnd,
		DecayDecades: sc.Solver.DecayDecades,
		QueueDepth:   sc.Solver.QueueDepth,
	}
	if p.CourantNumber() > 1/math.Sqrt2 {
		fmt.Printf("warning: courant number %.3f exceeds 1/sqrt(2), solution may diverge\n", p.CourantNumber())
	}

	sim, err := fdtd.New(p, be)
	if err != nil {
		be.Cleanup()
		return nil, err
	}

	for _, m := range sc.Materials {
		sim.SetMaterial(fdtd.Region{U0: m.U0, V0: m.V0, U1: m.U1, V1: m.V1},
			m.Mu, m.Epsilon, m.Sigma)
	}
	for _, src := range sc.Sources {
		sim.InjectSource(src.X, src.Y, src.HalfExtent, src.HalfExtent,
			field.Vec3{Z: src.Value}, src.Additive)
	}
	return sim, nil
}

// RunSpec is one headless run resolved to concrete settings.
type RunSpec struct {
	Scenario    string
	Config      *config.Scenario
	Time        float64
	SampleEvery int
	ProbeU      float32
	ProbeV      float32
}

// Outcome bundles what a headless run produced: the sampled records
// with summary metrics, metadata ready for storage, and the final
// electric snapshot for further rendering or analysis.
type Outcome struct {
	Result *storage.Result
	Meta   storage.RunMetadata
	Final  *field.Grid
}

// Run steps the scenario for the configured duration, sampling the
// probe point and total field energy. Divergence is an outcome, not an
// error: the run completes and sets the diverged metric.
func Run(ctx context.Context, spec RunSpec, build BuildFunc) (*Outcome, error) {
	sim, err := build(spec.Config)
	if err != nil {
		return nil, err
	}
	defer sim.Close()

	p := sim.Params()
	steps := int(spec.Time / float64(p.Dt))
	if steps < 1 {
		steps = 1
	}
	sampleEvery := spec.SampleEvery
	if sampleEvery < 1 {
		sampleEvery = 1
	}

	result := &storage.Result{Metrics: map[string]float64{}}

	for i := 0; i < steps; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		sim.Step()
		if (i+1)%sampleEvery != 0 && i != steps-1 {
			continue
		}

		sample, err := sim.SampleFieldAt(ctx, spec.ProbeU, spec.ProbeV)
		if err != nil {
			return nil, err
		}
		e, err := sim.Snapshot(ctx, field.Electric)
		if err != nil {
			return nil, err
		}
		h, err := sim.Snapshot(ctx, field.Magnetic)
		if err != nil {
			return nil, err
		}

		result.Records = append(result.Records, storage.Record{
			Time:   sim.Time(),
			Ex:     float64(sample.Ex),
			Ey:     float64(sample.Ey),
			Ez:     float64(sample.Ez),
			Mag:    float64(sample.Magnitude),
			Energy: analysis.FieldEnergy(e, h),
		})
	}

	select {
	case err := <-sim.Errors():
		return nil, fmt.Errorf("solver error: %w", err)
	default:
	}

	final, err := sim.Snapshot(ctx, field.Electric)
	if err != nil {
		return nil, err
	}

	// NaN metrics would poison the metadata JSON, so summary values are
	// only recorded for runs that stayed finite.
	diverged := false
	if _, _, bad := analysis.Diverged(final); bad {
		result.Metrics["diverged"] = 1
		diverged = true
	}
	if n := len(result.Records); n > 0 && !diverged {
		result.Metrics["final_energy"] = result.Records[n-1].Energy
	}
	if len(spec.Config.Sources) > 0 && !diverged {
		src := spec.Config.Sources[0]
		cx := int(src.X * float32(p.Width))
		cy := int(src.Y * float32(p.Height))
		maxR := p.Width
		if p.Height < maxR {
			maxR = p.Height
		}
		maxR = maxR/2 - 1

		prof := analysis.GenerateRadialProfile(final, cx, cy, maxR)
		if exp, ok := analysis.DecayExponent(prof); ok {
			result.Metrics["decay_exponent"] = exp
		}
	}

	return &Outcome{
		Result: result,
		Meta: storage.RunMetadata{
			Scenario: spec.Scenario,
			Width:    p.Width,
			Height:   p.Height,
			Dt:       float64(p.Dt),
			Boundary: p.Boundary.String(),
			Backend:  sim.Backend(),
		},
		Final: final,
	}, nil
}

// Script is a sequence of headless runs loaded from a YAML file.
type Script struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Runs        []RunStep `yaml:"runs"`
}

// RunStep names a preset scenario and how long to run it. Zero-valued
// fields keep the preset's settings.
type RunStep struct {
	Scenario    string  `yaml:"scenario"`
	Time        float64 `yaml:"time"`
	SampleEvery int     `yaml:"sample_every"`
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	Dt          float32 `yaml:"dt"`
	Boundary    string  `yaml:"boundary"`
	Backend     string  `yaml:"backend"`
}

// LoadScript reads a script from a YAML file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, err
	}
	return &script, nil
}

// StepResult summarizes one script step after it ran and was saved.
type StepResult struct {
	Scenario string
	RunID    string
	Samples  int
	Metrics  map[string]float64
}

// RunScript executes every step of a script, saving each run. It stops
// at the first failure, returning the results of the completed steps.
func RunScript(ctx context.Context, script *Script, st *storage.Store, build BuildFunc) ([]StepResult, error) {
	results := make([]StepResult, 0, len(script.Runs))

	for i, step := range script.Runs {
		fmt.Printf("running step %d/%d: %s\n", i+1, len(script.Runs), step.Scenario)

		spec, err := specFor(step)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		out, err := Run(ctx, spec, build)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		runID, err := st.Save(out.Meta, out.Result)
		if err != nil {
			return results, fmt.Errorf("step %d save: %w", i+1, err)
		}

		results = append(results, StepResult{
			Scenario: step.Scenario,
			RunID:    runID,
			Samples:  len(out.Result.Records),
			Metrics:  out.Result.Metrics,
		})
	}

	return results, nil
}

// specFor resolves a script step against its preset, with the probe
// point at the first source or the grid center.
func specFor(step RunStep) (RunSpec, error) {
	preset := config.GetPreset(step.Scenario)
	if preset == nil {
		return RunSpec{}, fmt.Errorf("unknown scenario: %s (available: %v)",
			step.Scenario, config.ListPresets())
	}
	sc := *preset

	if step.Width > 0 {
		sc.Solver.Width = step.Width
	}
	if step.Height > 0 {
		sc.Solver.Height = step.Height
	}
	if step.Dt > 0 {
		sc.Solver.Dt = step.Dt
	}
	if step.Boundary != "" {
		sc.Solver.Boundary = step.Boundary
	}
	if step.Backend != "" {
		sc.Solver.Backend = step.Backend
	}

	simTime := step.Time
	if simTime <= 0 {
		simTime = 1.0
	}
	sampleEvery := step.SampleEvery
	if sampleEvery < 1 {
		sampleEvery = 10
	}

	u, v := float32(0.5), float32(0.5)
	if len(sc.Sources) > 0 {
		u, v = sc.Sources[0].X, sc.Sources[0].Y
	}

	return RunSpec{
		Scenario:    step.Scenario,
		Config:      &sc,
		Time:        simTime,
		SampleEvery: sampleEvery,
		ProbeU:      u,
		ProbeV:      v,
	}, nil
}

// Sweep varies one solver parameter across a range on a fixed scenario.
type Sweep struct {
	Scenario string
	Param    string
	Min, Max float64
	Steps    int
	Time     float64
}

// SweepPoint is the outcome at one parameter value. FinalEnergy is zero
// when the run diverged.
type SweepPoint struct {
	Value       float64
	FinalEnergy float64
	Diverged    bool
}

// RunSweep runs the scenario once per parameter value, evenly spaced
// over [Min, Max]. Runs are not saved; only the endpoint summary is
// kept per value.
func RunSweep(ctx context.Context, sweep Sweep, build BuildFunc) ([]SweepPoint, error) {
	preset := config.GetPreset(sweep.Scenario)
	if preset == nil {
		return nil, fmt.Errorf("unknown scenario: %s (available: %v)",
			sweep.Scenario, config.ListPresets())
	}

	n := sweep.Steps
	if n < 2 {
		n = 2
	}
	simTime := sweep.Time
	if simTime <= 0 {
		simTime = 0.5
	}

	points := make([]SweepPoint, 0, n)
	for i := 0; i < n; i++ {
		value := sweep.Min + (sweep.Max-sweep.Min)*float64(i)/float64(n-1)

		sc := *preset
		switch sweep.Param {
		case "dt":
			sc.Solver.Dt = float32(value)
		case "cell_size":
			sc.Solver.CellSize = float32(value)
		case "decay_decades":
			sc.Solver.DecayDecades = float32(value)
		default:
			return nil, fmt.Errorf("unknown sweep parameter: %s (dt, cell_size, decay_decades)", sweep.Param)
		}

		fmt.Printf("sweep %d/%d: %s=%g\n", i+1, n, sweep.Param, value)

		u, v := float32(0.5), float32(0.5)
		if len(sc.Sources) > 0 {
			u, v = sc.Sources[0].X, sc.Sources[0].Y
		}

		out, err := Run(ctx, RunSpec{
			Scenario:    sweep.Scenario,
			Config:      &sc,
			Time:        simTime,
			SampleEvery: 1 << 30,
			ProbeU:      u,
			ProbeV:      v,
		}, build)
		if err != nil {
			return points, err
		}

		points = append(points, SweepPoint{
			Value:       value,
			FinalEnergy: out.Result.Metrics["final_energy"],
			Diverged:    out.Result.Metrics["diverged"] == 1,
		})
	}

	return points, nil
}
