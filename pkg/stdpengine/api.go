package stdpengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"stdpengine/internal/config"
	"stdpengine/internal/dynamics"
	"stdpengine/internal/lut"
	"stdpengine/internal/model"
	"stdpengine/internal/sim"
	"stdpengine/internal/stats"
	"stdpengine/internal/storage"
	"stdpengine/internal/timing"
)

const (
	defaultDBPath     = "stdpengine.db"
	defaultExportsDir = "exports"
)

type Options struct {
	StoreKind string
	DBPath    string
	// Registerer receives the engine metrics. A private registry is used
	// when nil.
	Registerer prometheus.Registerer
}

type Client struct {
	store   storage.Store
	metrics *dynamics.Metrics

	mu          sync.Mutex
	initialized bool
}

type SimulateRequest struct {
	Engine     config.Engine
	Simulation sim.Config
	// SkipHistories leaves post-synaptic histories out of the stored run.
	SkipHistories bool
}

type SimulateSummary struct {
	RunID       string
	Rule        string
	Fingerprint string
	Stats       model.RunStats
}

type RunsRequest struct {
	Limit int
	Rule  string
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Rule         string
	Fingerprint  string
	Timesteps    uint32
	MeanWeight   float64
}

type RunRequest struct {
	RunID  string
	Latest bool
}

type RunDetail struct {
	Record    model.RunRecord
	Weights   []int32
	Histories []model.HistorySnapshot
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type DecayTableRequest struct {
	Tau        float32
	TimestepMS float32
	Size       int
	Shift      uint32
}

type EncodedConfig struct {
	Rule        string
	Blob        []byte
	Fingerprint string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:   store,
		metrics: dynamics.NewMetrics(reg),
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Simulate compiles the engine configuration, drives it with the simulated
// spike trains and stores the run.
func (c *Client) Simulate(ctx context.Context, req SimulateRequest) (SimulateSummary, error) {
	if err := c.Init(ctx); err != nil {
		return SimulateSummary{}, err
	}
	if err := req.Simulation.Validate(); err != nil {
		return SimulateSummary{}, err
	}
	encoded, err := EncodeConfig(req.Engine)
	if err != nil {
		return SimulateSummary{}, err
	}
	engineCfg := req.Engine
	engineCfg.Rule = encoded.Rule

	neurons := sim.NewNeurons(engineCfg.Neurons, req.Simulation.Neuron)
	d, err := dynamics.Initialise(encoded.Blob, engineCfg.Neurons, engineCfg.SynapseTypes, engineCfg.RingBufferShifts,
		dynamics.WithNeuronState(neurons),
		dynamics.WithMetrics(c.metrics),
	)
	if err != nil {
		return SimulateSummary{}, fmt.Errorf("initialise %s: %w", engineCfg.Rule, err)
	}
	rows, err := sim.BuildRows(d.Layout(), engineCfg.Neurons, engineCfg.SynapseTypes, req.Simulation, rand.New(rand.NewSource(req.Simulation.Seed)))
	if err != nil {
		return SimulateSummary{}, err
	}
	result, err := sim.Run(ctx, d, neurons, rows, req.Simulation)
	if err != nil {
		return SimulateSummary{}, err
	}

	engineJSON, err := json.Marshal(engineCfg)
	if err != nil {
		return SimulateSummary{}, err
	}
	simJSON, err := json.Marshal(req.Simulation)
	if err != nil {
		return SimulateSummary{}, err
	}

	run := model.RunRecord{
		VersionedRecord:   storage.CurrentVersion(),
		ID:                uuid.NewString(),
		CreatedAt:         time.Now().UTC(),
		Rule:              engineCfg.Rule,
		ConfigFingerprint: encoded.Fingerprint,
		Engine:            engineJSON,
		Simulation:        simJSON,
		Stats:             runStats(result),
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return SimulateSummary{}, err
	}
	if err := c.store.SaveWeights(ctx, run.ID, result.Weights); err != nil {
		return SimulateSummary{}, err
	}
	if !req.SkipHistories {
		histories, err := snapshotHistories(d)
		if err != nil {
			return SimulateSummary{}, err
		}
		if err := c.store.SaveHistories(ctx, run.ID, histories); err != nil {
			return SimulateSummary{}, err
		}
	}

	return SimulateSummary{
		RunID:       run.ID,
		Rule:        run.Rule,
		Fingerprint: run.ConfigFingerprint,
		Stats:       run.Stats,
	}, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	rule := req.Rule
	if rule != "" {
		rule = timing.NormalizeRuleName(rule)
	}
	items := make([]RunItem, 0, min(len(runs), req.Limit))
	for _, run := range runs {
		if len(items) == req.Limit {
			break
		}
		if rule != "" && run.Rule != rule {
			continue
		}
		items = append(items, RunItem{
			RunID:        run.ID,
			CreatedAtUTC: run.CreatedAt.UTC().Format(time.RFC3339),
			Rule:         run.Rule,
			Fingerprint:  run.ConfigFingerprint,
			Timesteps:    run.Stats.Timesteps,
			MeanWeight:   run.Stats.MeanWeight,
		})
	}
	return items, nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunDetail, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return RunDetail{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if !ok {
		return RunDetail{}, fmt.Errorf("run not found: %s", runID)
	}
	weights, _, err := c.store.GetWeights(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	histories, _, err := c.store.GetHistories(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	return RunDetail{Record: run, Weights: weights, Histories: histories}, nil
}

// Export writes the stored artifacts of a run under req.OutDir.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = defaultExportsDir
	}
	detail, err := c.Run(ctx, RunRequest{RunID: req.RunID, Latest: req.Latest})
	if err != nil {
		return ExportSummary{}, err
	}

	artifacts := stats.RunArtifacts{
		Record:    detail.Record,
		Weights:   detail.Weights,
		Histories: detail.Histories,
	}
	var engine config.Engine
	if err := json.Unmarshal(detail.Record.Engine, &engine); err == nil && len(engine.Regions) > 0 {
		low, high := engine.Regions[0].MinWeight, engine.Regions[0].MaxWeight
		for _, r := range engine.Regions[1:] {
			low, high = min(low, r.MinWeight), max(high, r.MaxWeight)
		}
		artifacts.WeightRange = [2]int32{low, high}
	}

	dir, err := stats.ExportRun(req.OutDir, artifacts)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: detail.Record.ID, Directory: dir}, nil
}

func (c *Client) DeleteRun(ctx context.Context, runID string) error {
	if runID == "" {
		return errors.New("run id is required")
	}
	if err := c.Init(ctx); err != nil {
		return err
	}
	return c.store.DeleteRun(ctx, runID)
}

// DecayTable generates the fixed-point table of exp(-t/tau).
func DecayTable(req DecayTableRequest) ([]int16, error) {
	if req.TimestepMS == 0 {
		req.TimestepMS = 1
	}
	if req.Size == 0 {
		req.Size = config.Default().LUTSize
	}
	table, err := lut.Generate(req.Tau, req.TimestepMS, req.Size, req.Shift)
	if err != nil {
		return nil, err
	}
	return table.Values(), nil
}

// EncodeConfig compiles an engine configuration into its parameter blob.
func EncodeConfig(cfg config.Engine) (EncodedConfig, error) {
	data, err := cfg.Blob()
	if err != nil {
		return EncodedConfig{}, err
	}
	return EncodedConfig{
		Rule:        timing.NormalizeRuleName(cfg.Rule),
		Blob:        data,
		Fingerprint: config.Fingerprint(data),
	}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id is required unless latest is set")
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[0].ID, nil
}

func runStats(result sim.Result) model.RunStats {
	return model.RunStats{
		Timesteps:            result.Timesteps,
		PreSpikes:            result.PreSpikes,
		PostSpikes:           result.PostSpikes,
		RewardEvents:         result.RewardEvents,
		Rows:                 result.Stats.Rows,
		PlasticSynapses:      result.Stats.PlasticSynapses,
		NeuromodulatorEvents: result.Stats.NeuromodulatorEvents,
		HistoryEvictions:     result.Stats.HistoryEvictions,
		RingOverflows:        result.Stats.RingOverflows,
		RingUnderflows:       result.Stats.RingUnderflows,
		MeanWeight:           result.MeanWeight,
		MinWeight:            result.MinWeight,
		MaxWeight:            result.MaxWeight,
	}
}

func snapshotHistories(d dynamics.Dynamics) ([]model.HistorySnapshot, error) {
	var out []model.HistorySnapshot
	for n := 0; n < d.NumNeurons(); n++ {
		events, err := d.PostHistory(uint32(n))
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			continue
		}
		snapshot := model.HistorySnapshot{
			VersionedRecord: storage.CurrentVersion(),
			Neuron:          uint32(n),
			Events:          make([]model.HistoryEvent, len(events)),
		}
		for i, e := range events {
			snapshot.Events[i] = model.HistoryEvent{Time: e.Time, Dopamine: e.Dopamine, Trace: e.Trace}
		}
		out = append(out, snapshot)
	}
	return out, nil
}
