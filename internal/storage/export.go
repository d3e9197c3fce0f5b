package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/stepsol/internal/sim"
)

type ExportData struct {
	Model       string             `json:"model"`
	Method      string             `json:"method"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Steps       int                `json:"steps"`
	Times       []float64          `json:"times"`
	States      [][]float64        `json:"states"`
	Derivatives [][]float64        `json:"derivatives"`
	Iterations  []int              `json:"iterations"`
	Metrics     map[string]float64 `json:"metrics"`
}

func newExport(meta RunMetadata, result *sim.Result) ExportData {
	data := ExportData{
		Model:       meta.Model,
		Method:      meta.Method,
		Dt:          meta.Dt,
		Duration:    meta.Duration,
		Steps:       result.StepsTaken,
		Times:       result.Times,
		States:      make([][]float64, len(result.States)),
		Derivatives: make([][]float64, len(result.Derivatives)),
		Iterations:  result.Iterations,
		Metrics:     result.Metrics,
	}
	for i, s := range result.States {
		data.States[i] = s
	}
	for i, s := range result.Derivatives {
		data.Derivatives[i] = s
	}
	return data
}

// WriteJSON writes the run as one indented JSON document.
func WriteJSON(w io.Writer, meta RunMetadata, result *sim.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newExport(meta, result))
}

func ExportJSON(path string, meta RunMetadata, result *sim.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, meta, result)
}
