package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"stdpengine/internal/model"
)

const histogramBins = 16

// RunArtifacts is everything exported for one stored run.
type RunArtifacts struct {
	Record    model.RunRecord
	Weights   []int32
	Histories []model.HistorySnapshot
	// WeightRange bounds the histogram. The observed range is used when zero.
	WeightRange [2]int32
}

type runSummary struct {
	RunID             string         `json:"run_id"`
	CreatedAtUTC      string         `json:"created_at_utc"`
	Rule              string         `json:"rule"`
	ConfigFingerprint string         `json:"config_fingerprint"`
	Stats             model.RunStats `json:"stats"`
	Weights           WeightSummary  `json:"weights"`
	HistoryNeurons    int            `json:"history_neurons"`
}

// ExportRun writes the artifacts of a run into outDir/<run id> and returns
// that directory.
func ExportRun(outDir string, artifacts RunArtifacts) (string, error) {
	run := artifacts.Record
	if run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(outDir, run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	summary := runSummary{
		RunID:             run.ID,
		CreatedAtUTC:      run.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Rule:              run.Rule,
		ConfigFingerprint: run.ConfigFingerprint,
		Stats:             run.Stats,
		Weights:           SummarizeWeights(artifacts.Weights),
		HistoryNeurons:    len(artifacts.Histories),
	}
	if err := writeJSON(filepath.Join(runDir, "summary.json"), summary); err != nil {
		return "", err
	}
	if err := writeRawJSON(filepath.Join(runDir, "engine.json"), run.Engine); err != nil {
		return "", err
	}
	if err := writeRawJSON(filepath.Join(runDir, "simulation.json"), run.Simulation); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "histories.json"), artifacts.Histories); err != nil {
		return "", err
	}
	if err := WriteWeights(filepath.Join(runDir, "weights.csv"), artifacts.Weights); err != nil {
		return "", err
	}

	low, high := artifacts.WeightRange[0], artifacts.WeightRange[1]
	if low == 0 && high == 0 {
		low, high = summary.Weights.Min, summary.Weights.Max
	}
	bins, err := WeightHistogram(artifacts.Weights, low, high, histogramBins)
	if err != nil {
		return "", err
	}
	if err := writeHistogram(filepath.Join(runDir, "weight_histogram.csv"), bins); err != nil {
		return "", err
	}
	return runDir, nil
}

func WriteWeights(path string, weights []int32) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"synapse", "weight"}); err != nil {
		return err
	}
	for i, w := range weights {
		if err := writer.Write([]string{strconv.Itoa(i), strconv.FormatInt(int64(w), 10)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadWeights(path string) ([]int32, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("weights file %s has no header", path)
	}
	weights := make([]int32, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) != 2 {
			return nil, fmt.Errorf("invalid weights row: %v", record)
		}
		w, err := strconv.ParseInt(record[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse weight %q: %w", record[1], err)
		}
		weights = append(weights, int32(w))
	}
	return weights, nil
}

func writeHistogram(path string, bins []HistogramBin) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"low", "high", "count"}); err != nil {
		return err
	}
	for _, b := range bins {
		if err := writer.Write([]string{
			strconv.FormatInt(int64(b.Low), 10),
			strconv.FormatInt(int64(b.High), 10),
			strconv.Itoa(b.Count),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// writeRawJSON re-indents an already encoded document. Empty input is
// written as null.
func writeRawJSON(path string, raw []byte) error {
	if len(raw) == 0 {
		return writeJSON(path, nil)
	}
	return writeJSON(path, json.RawMessage(raw))
}
