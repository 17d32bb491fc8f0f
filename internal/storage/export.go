package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/pidloop/internal/dynamo"
)

type ExportData struct {
	RunMetadata
	Times      []float64   `json:"times"`
	States     [][]float64 `json:"states"`
	Controls   [][]float64 `json:"controls"`
	References []float64   `json:"references,omitempty"`
}

func newExportData(meta *RunMetadata, result *dynamo.Result) ExportData {
	data := ExportData{
		RunMetadata: *meta,
		Times:       result.Times,
		States:      make([][]float64, len(result.States)),
		Controls:    make([][]float64, len(result.Controls)),
		References:  result.References,
	}

	for i, s := range result.States {
		data.States[i] = s
	}
	for i, c := range result.Controls {
		data.Controls[i] = c
	}
	return data
}

func WriteJSON(w io.Writer, meta *RunMetadata, result *dynamo.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newExportData(meta, result))
}

// ExportJSON writes a stored run, metadata and samples, to path.
func (s *Store) ExportJSON(runID, path string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	result, err := s.LoadResult(runID)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteJSON(file, meta, result)
}
