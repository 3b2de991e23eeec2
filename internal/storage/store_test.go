package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func sampleResult() *Result {
	return &Result{
		Records: []Record{
			{Time: 0.001, Ez: 0.001, Mag: 0.001, Energy: 1e-6},
			{Time: 0.002, Ez: 0.0008, Mag: 0.0008, Energy: 9e-7},
		},
		Metrics: map[string]float64{
			"energy_final": 9e-7,
			"decay_exp":    -1.1,
		},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(RunMetadata{
		Scenario: "pulse", Width: 128, Height: 128,
		Dt: 0.001, Boundary: "reflect", Backend: "cpu",
	}, sampleResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Error("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if meta.Scenario != "pulse" {
		t.Errorf("expected scenario 'pulse', got '%s'", meta.Scenario)
	}
	if meta.Width != 128 || meta.Height != 128 {
		t.Errorf("expected 128x128 grid, got %dx%d", meta.Width, meta.Height)
	}
	if meta.Steps != 2 {
		t.Errorf("expected 2 steps, got %d", meta.Steps)
	}
	if meta.Metrics["decay_exp"] != -1.1 {
		t.Errorf("expected decay_exp -1.1, got %f", meta.Metrics["decay_exp"])
	}

	records, err := st.LoadSamples(runID)
	if err != nil {
		t.Fatalf("load samples failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[1].Ez != 0.0008 {
		t.Errorf("expected ez 0.0008, got %g", records[1].Ez)
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	if _, err := st.Save(RunMetadata{Scenario: "pulse"}, sampleResult()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := st.Save(RunMetadata{Scenario: "cavity"}, sampleResult()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(RunMetadata{Scenario: "pulse"}, sampleResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, runID)

	if _, err := os.Stat(filepath.Join(runDir, "metadata.json")); os.IsNotExist(err) {
		t.Error("metadata.json not created")
	}
	if _, err := os.Stat(filepath.Join(runDir, "samples.csv")); os.IsNotExist(err) {
		t.Error("samples.csv not created")
	}
}

func TestExportJSON(t *testing.T) {
	st := New(t.TempDir())

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(RunMetadata{Scenario: "pulse"}, sampleResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	records, err := st.LoadSamples(runID)
	if err != nil {
		t.Fatalf("load samples failed: %v", err)
	}

	outPath := filepath.Join(t.TempDir(), "run.json")
	if err := ExportJSON(outPath, meta, records); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading export failed: %v", err)
	}

	var back ExportData
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("export is not valid json: %v", err)
	}
	if back.Meta.Scenario != "pulse" {
		t.Errorf("expected scenario 'pulse', got '%s'", back.Meta.Scenario)
	}
	if len(back.Records) != 2 {
		t.Errorf("expected 2 records, got %d", len(back.Records))
	}
}

func TestListMissingBaseDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "never-created"))

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}
}
