package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/pidloop/internal/dynamo"
	"github.com/san-kum/pidloop/internal/pid"
)

var ErrRunNotFound = errors.New("storage: run not found")

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunInfo describes how a run was produced.
type RunInfo struct {
	Plant      string
	Integrator string
	Controller string
	Setpoint   string
	Dt         float64
	Duration   float64
	Seed       int64
	Tuning     *pid.Tuning
	Limits     *pid.Limits
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Plant      string             `json:"plant"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Integrator string             `json:"integrator"`
	Controller string             `json:"controller"`
	Setpoint   string             `json:"setpoint,omitempty"`
	Tuning     *pid.Tuning        `json:"tuning,omitempty"`
	Limits     *pid.Limits        `json:"limits,omitempty"`
	Steps      int                `json:"steps"`
	Metrics    map[string]float64 `json:"metrics"`
}

func (s *Store) Save(info RunInfo, result *dynamo.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", info.Plant, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Plant:      info.Plant,
		Timestamp:  now,
		Seed:       info.Seed,
		Dt:         info.Dt,
		Duration:   info.Duration,
		Integrator: info.Integrator,
		Controller: info.Controller,
		Setpoint:   info.Setpoint,
		Tuning:     info.Tuning,
		Limits:     info.Limits,
		Steps:      result.StepsTaken,
		Metrics:    result.Metrics,
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, statesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, result); err != nil {
		return "", err
	}

	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteCSV writes one row per recorded sample: time, state columns x0..xn,
// control columns u0..um and a ref column when the run tracked a reference.
// Rows without a control (the final sample) repeat zero.
func WriteCSV(out io.Writer, result *dynamo.Result) error {
	w := csv.NewWriter(out)

	if len(result.States) == 0 {
		w.Flush()
		return w.Error()
	}

	header := []string{"time"}
	for i := range result.States[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}

	numControls := 0
	if len(result.Controls) > 0 {
		numControls = len(result.Controls[0])
		for i := 0; i < numControls; i++ {
			header = append(header, fmt.Sprintf("u%d", i))
		}
	}

	hasRef := len(result.References) == len(result.States)
	if hasRef {
		header = append(header, "ref")
	}

	if err := w.Write(header); err != nil {
		return err
	}

	for i := range result.States {
		row := []string{formatFloat(result.Times[i])}

		for _, val := range result.States[i] {
			row = append(row, formatFloat(val))
		}

		if i < len(result.Controls) && len(result.Controls[i]) > 0 {
			for _, val := range result.Controls[i] {
				row = append(row, formatFloat(val))
			}
		} else {
			for j := 0; j < numControls; j++ {
				row = append(row, "0")
			}
		}

		if hasRef {
			row = append(row, formatFloat(result.References[i]))
		}

		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// List returns every readable run, oldest first. Directories without valid
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}

		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("metadata for %s: %w", runID, err)
	}

	return &meta, nil
}

// LoadResult reads states.csv back into a Result, splitting the columns by
// their header prefix.
func (s *Store) LoadResult(runID string) (*dynamo.Result, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	result := &dynamo.Result{Metrics: map[string]float64{}}
	if len(records) < 2 {
		return result, nil
	}

	header := records[0]
	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}

		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}

		var x dynamo.State
		var u dynamo.Control
		ref, hasRef := 0.0, false
		for j := 1; j < len(record) && j < len(header); j++ {
			val, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(header[j], "x"):
				x = append(x, val)
			case strings.HasPrefix(header[j], "u"):
				u = append(u, val)
			case header[j] == "ref":
				ref, hasRef = val, true
			}
		}

		result.Times = append(result.Times, t)
		result.States = append(result.States, x)
		result.Controls = append(result.Controls, u)
		if hasRef {
			result.References = append(result.References, ref)
		}
	}

	if n := len(result.States); n > 0 {
		// The last row carries no applied control.
		result.Controls = result.Controls[:n-1]
		result.StepsTaken = n - 1
	}

	return result, nil
}

// LoadStates returns the state columns and sample times of a run.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, error) {
	result, err := s.LoadResult(runID)
	if err != nil {
		return nil, nil, err
	}

	states := make([][]float64, len(result.States))
	for i, x := range result.States {
		states[i] = x
	}
	return states, result.Times, nil
}
