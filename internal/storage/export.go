package storage

import (
	"encoding/json"
	"io"
	"os"
)

type ExportData struct {
	Meta    RunMetadata `json:"meta"`
	Records []Record    `json:"records"`
}

func ExportJSON(path string, meta *RunMetadata, records []Record) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return exportJSON(file, meta, records)
}

func ExportJSONStdout(meta *RunMetadata, records []Record) error {
	return exportJSON(os.Stdout, meta, records)
}

func exportJSON(w io.Writer, meta *RunMetadata, records []Record) error {
	data := ExportData{Meta: *meta, Records: records}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
