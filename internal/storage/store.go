// Package storage persists completed runs under a data directory: one
// subdirectory per run holding metadata.json and series.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/pbpksim/internal/run"
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

type RunMetadata struct {
	ID        string             `json:"id"`
	Model     string             `json:"model"`
	Timestamp time.Time          `json:"timestamp"`
	FinalTime float64            `json:"final_time"`
	Samples   int                `json:"samples"`
	Params    map[string]float64 `json:"params"`
	Events    []EventMetadata    `json:"events,omitempty"`
}

type EventMetadata struct {
	Index int     `json:"index"`
	Time  float64 `json:"time"`
}

// Save writes one completed run and returns its ID. Species columns are
// written in the order given, which is the model's canonical order.
func (s *Store) Save(modelName string, params map[string]float64, speciesOrder []string, out *run.Output) (string, error) {
	runID := fmt.Sprintf("%s_%d", modelName, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	finalTime := 0.0
	if len(out.Time) > 0 {
		finalTime = out.Time[len(out.Time)-1]
	}
	meta := RunMetadata{
		ID:        runID,
		Model:     modelName,
		Timestamp: time.Now(),
		FinalTime: finalTime,
		Samples:   len(out.Time),
		Params:    params,
	}
	for _, ev := range out.Events {
		meta.Events = append(meta.Events, EventMetadata{Index: ev.Index, Time: ev.Time})
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()
	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "series.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	header := append([]string{"time"}, speciesOrder...)
	if err := w.Write(header); err != nil {
		return "", err
	}
	for i := range out.Time {
		row := []string{strconv.FormatFloat(out.Time[i], 'g', -1, 64)}
		for _, id := range speciesOrder {
			row = append(row, strconv.FormatFloat(out.Species[id][i], 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	return runID, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadSeries reads the sampled trajectory of a run back into an Output.
func (s *Store) LoadSeries(runID string) (*run.Output, []string, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "series.csv"))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("empty series for run %s", runID)
	}

	header := rows[0]
	speciesOrder := header[1:]
	out := &run.Output{
		Time:    make([]float64, 0, len(rows)-1),
		Species: make(map[string][]float64, len(speciesOrder)),
	}
	for _, id := range speciesOrder {
		out.Species[id] = make([]float64, 0, len(rows)-1)
	}
	for _, row := range rows[1:] {
		t, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, nil, err
		}
		out.Time = append(out.Time, t)
		for j, id := range speciesOrder {
			v, err := strconv.ParseFloat(row[j+1], 64)
			if err != nil {
				return nil, nil, err
			}
			out.Species[id] = append(out.Species[id], v)
		}
	}
	return out, speciesOrder, nil
}

func (s *Store) List() ([]*RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var runs []*RunMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := s.Load(e.Name())
		if err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}
