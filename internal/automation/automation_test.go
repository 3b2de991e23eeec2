package automation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/config"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/fdtd"
	"github.com/NerdST/Electric-Fields-Visualizer-sub000/internal/storage"
)

// cpuBuild pins runs to the CPU backend so results do not depend on
// the machine's OpenCL support.
func cpuBuild(sc *config.Scenario) (*fdtd.Simulation, error) {
	pinned := *sc
	pinned.Solver.Backend = "cpu"
	return Build(&pinned)
}

func TestBuildRejectsUnknownBackend(t *testing.T) {
	sc := *config.GetPreset("pulse")
	sc.Solver.Backend = "cuda"

	if _, err := Build(&sc); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestBuildRejectsBadBoundary(t *testing.T) {
	sc := *config.GetPreset("pulse")
	sc.Solver.Boundary = "wrap"

	if _, err := Build(&sc); err == nil {
		t.Fatal("expected error for unknown boundary")
	}
}

func TestRunSamplesAndMetrics(t *testing.T) {
	sc := *config.GetPreset("cavity")

	out, err := Run(context.Background(), RunSpec{
		Scenario:    "cavity",
		Config:      &sc,
		Time:        0.05,
		SampleEvery: 10,
		ProbeU:      0.3,
		ProbeV:      0.3,
	}, cpuBuild)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(out.Result.Records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(out.Result.Records))
	}
	last := out.Result.Records[4]
	// step count truncates against the float32 dt, so the final sample
	// lands within one step of the requested duration
	if last.Time < 0.045 || last.Time > 0.051 {
		t.Errorf("expected final sample near t=0.05, got %g", last.Time)
	}
	if last.Energy <= 0 {
		t.Errorf("expected positive field energy, got %g", last.Energy)
	}

	if out.Result.Metrics["diverged"] != 0 {
		t.Error("stable run flagged as diverged")
	}
	if out.Result.Metrics["final_energy"] <= 0 {
		t.Errorf("expected positive final_energy, got %g", out.Result.Metrics["final_energy"])
	}

	if out.Meta.Scenario != "cavity" {
		t.Errorf("expected scenario 'cavity', got '%s'", out.Meta.Scenario)
	}
	if out.Meta.Width != 64 || out.Meta.Height != 64 {
		t.Errorf("expected 64x64 metadata, got %dx%d", out.Meta.Width, out.Meta.Height)
	}
	if out.Meta.Backend != "cpu" {
		t.Errorf("expected cpu backend, got '%s'", out.Meta.Backend)
	}

	if out.Final == nil || out.Final.W != 64 {
		t.Error("expected a final 64-wide snapshot")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc := *config.GetPreset("cavity")
	_, err := Run(ctx, RunSpec{
		Scenario: "cavity", Config: &sc, Time: 0.01, ProbeU: 0.5, ProbeV: 0.5,
	}, cpuBuild)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	body := `name: nightly
description: stability checks
runs:
  - scenario: pulse
    time: 0.5
  - scenario: cavity
    dt: 0.002
    boundary: open
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("writing script failed: %v", err)
	}

	script, err := LoadScript(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if script.Name != "nightly" {
		t.Errorf("expected name 'nightly', got '%s'", script.Name)
	}
	if len(script.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(script.Runs))
	}
	if script.Runs[0].Time != 0.5 {
		t.Errorf("expected time 0.5, got %g", script.Runs[0].Time)
	}
	if script.Runs[1].Dt != 0.002 || script.Runs[1].Boundary != "open" {
		t.Errorf("overrides not parsed: %+v", script.Runs[1])
	}
}

func TestLoadScriptMissingFile(t *testing.T) {
	if _, err := LoadScript(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSpecForDefaults(t *testing.T) {
	spec, err := specFor(RunStep{Scenario: "dipole"})
	if err != nil {
		t.Fatalf("specFor failed: %v", err)
	}

	if spec.Time != 1.0 {
		t.Errorf("expected default time 1.0, got %g", spec.Time)
	}
	if spec.SampleEvery != 10 {
		t.Errorf("expected default sample_every 10, got %d", spec.SampleEvery)
	}
	if spec.ProbeU != 0.375 || spec.ProbeV != 0.5 {
		t.Errorf("expected probe at first source, got (%g, %g)", spec.ProbeU, spec.ProbeV)
	}
	if spec.Config.Solver.Width != 128 {
		t.Errorf("expected preset width 128, got %d", spec.Config.Solver.Width)
	}
}

func TestSpecForOverridesLeavePresetAlone(t *testing.T) {
	spec, err := specFor(RunStep{Scenario: "dipole", Width: 64, Dt: 0.0005})
	if err != nil {
		t.Fatalf("specFor failed: %v", err)
	}

	if spec.Config.Solver.Width != 64 {
		t.Errorf("expected width override 64, got %d", spec.Config.Solver.Width)
	}
	if spec.Config.Solver.Dt != 0.0005 {
		t.Errorf("expected dt override 0.0005, got %g", spec.Config.Solver.Dt)
	}
	if config.GetPreset("dipole").Solver.Width != 128 {
		t.Error("override leaked into the shared preset")
	}
}

func TestSpecForUnknownScenario(t *testing.T) {
	if _, err := specFor(RunStep{Scenario: "warp"}); err == nil {
		t.Fatal("expected error for unknown scenario")
	}
}

func TestRunScriptSavesEachStep(t *testing.T) {
	st := storage.New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	script := &Script{
		Name: "smoke",
		Runs: []RunStep{
			{Scenario: "cavity", Time: 0.02},
			{Scenario: "pulse", Time: 0.01, Width: 32, Height: 32},
		},
	}

	results, err := RunScript(context.Background(), script, st, cpuBuild)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 step results, got %d", len(results))
	}
	for i, res := range results {
		if res.RunID == "" {
			t.Errorf("step %d has no run id", i)
		}
		if res.Samples == 0 {
			t.Errorf("step %d recorded no samples", i)
		}
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 saved runs, got %d", len(runs))
	}
}

func TestRunScriptStopsOnUnknownScenario(t *testing.T) {
	st := storage.New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	script := &Script{
		Runs: []RunStep{
			{Scenario: "cavity", Time: 0.01},
			{Scenario: "warp"},
		},
	}

	results, err := RunScript(context.Background(), script, st, cpuBuild)
	if err == nil {
		t.Fatal("expected error for unknown scenario")
	}
	if len(results) != 1 {
		t.Errorf("expected 1 completed step before the failure, got %d", len(results))
	}
}

func TestRunSweepFindsDivergence(t *testing.T) {
	points, err := RunSweep(context.Background(), Sweep{
		Scenario: "cavity",
		Param:    "dt",
		Min:      0.001,
		Max:      0.01,
		Steps:    2,
		Time:     1.0,
	}, cpuBuild)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Diverged {
		t.Error("run at courant 0.1 should be stable")
	}
	if points[0].FinalEnergy <= 0 {
		t.Errorf("expected positive energy for the stable run, got %g", points[0].FinalEnergy)
	}
	if !points[1].Diverged {
		t.Error("run at courant 1.0 should diverge")
	}
}

func TestRunSweepRejectsUnknownParam(t *testing.T) {
	_, err := RunSweep(context.Background(), Sweep{
		Scenario: "cavity", Param: "mass", Min: 1, Max: 2, Steps: 2, Time: 0.01,
	}, cpuBuild)
	if err == nil {
		t.Fatal("expected error for unknown sweep parameter")
	}
}
