// Package storage persists simulation runs on disk, one directory per run
// holding metadata.json and states.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/san-kum/stepsol/internal/dynamo"
	"github.com/san-kum/stepsol/internal/sim"
)

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

type RunMetadata struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Method     string             `json:"method"`
	Nonlinear  string             `json:"nonlinear"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Dofs       []string           `json:"dofs"`
	Steps      int                `json:"steps"`
	TotalIters int                `json:"total_iters"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Save writes result under a fresh run ID and returns it. meta.ID,
// Timestamp, Steps and TotalIters are filled in.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	meta.ID = uuid.NewString()
	meta.Timestamp = time.Now().UTC()
	meta.Steps = result.StepsTaken
	meta.TotalIters = result.TotalIters
	if meta.Metrics == nil {
		meta.Metrics = result.Metrics
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", errors.Wrap(err, "write metadata")
	}

	if err := writeStates(filepath.Join(runDir, statesFile), result); err != nil {
		return "", errors.Wrap(err, "write states")
	}
	return meta.ID, nil
}

func writeStates(path string, result *sim.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if len(result.States) == 0 {
		w.Flush()
		return w.Error()
	}

	n := len(result.States[0])
	header := []string{"time"}
	for i := 0; i < n; i++ {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	for i := 0; i < n; i++ {
		header = append(header, fmt.Sprintf("xp%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range result.States {
		row := []string{format(result.Times[i])}
		for _, val := range result.States[i] {
			row = append(row, format(val))
		}
		if i < len(result.Derivatives) {
			for _, val := range result.Derivatives[i] {
				row = append(row, format(val))
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func format(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// List returns the stored runs, newest first. Unreadable runs are skipped.
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
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "run %s", runID)
	}
	return &meta, nil
}

// Trajectory is a stored states.csv.
type Trajectory struct {
	Times       []float64
	States      []dynamo.State
	Derivatives []dynamo.State
}

func (s *Store) LoadStates(runID string) (*Trajectory, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "run %s", runID)
	}

	tr := &Trajectory{}
	if len(records) < 2 {
		return tr, nil
	}

	n := 0
	for _, col := range records[0][1:] {
		if strings.HasPrefix(col, "x") && !strings.HasPrefix(col, "xp") {
			n++
		}
	}

	for line, record := range records[1:] {
		if len(record) < 1+n {
			continue
		}
		vals := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "run %s line %d", runID, line+2)
			}
			vals[j] = v
		}
		tr.Times = append(tr.Times, vals[0])
		tr.States = append(tr.States, dynamo.State(vals[1:1+n]))
		if len(vals) >= 1+2*n {
			tr.Derivatives = append(tr.Derivatives, dynamo.State(vals[1+n:1+2*n]))
		}
	}
	return tr, nil
}

// Delete removes a stored run.
func (s *Store) Delete(runID string) error {
	if _, err := uuid.Parse(runID); err != nil {
		return errors.Wrapf(err, "run id %q", runID)
	}
	return os.RemoveAll(filepath.Join(s.baseDir, runID))
}

// Result rebuilds a sim.Result from a stored trajectory and its metadata.
func (tr *Trajectory) Result(meta *RunMetadata) *sim.Result {
	r := &sim.Result{
		Times:       tr.Times,
		States:      tr.States,
		Derivatives: tr.Derivatives,
	}
	if meta != nil {
		r.StepsTaken = meta.Steps
		r.TotalIters = meta.TotalIters
		r.Metrics = meta.Metrics
	}
	return r
}
