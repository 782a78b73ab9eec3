package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"stdpengine/internal/storage"
	"stdpengine/internal/timing"
	"stdpengine/internal/weight"
	stdpapi "stdpengine/pkg/stdpengine"
)

const defaultDBPath = "stdpengine.db"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "simulate":
		return runSimulate(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "delete":
		return runDelete(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "lut":
		return runLUT(ctx, args[1:])
	case "encode-config":
		return runEncodeConfig(ctx, args[1:])
	case "rules":
		return runRules(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type storeFlags struct {
	kind   *string
	dbPath *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:   fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath: fs.String("db-path", defaultDBPath, "sqlite database path"),
	}
}

func (f storeFlags) client() (*stdpapi.Client, error) {
	return stdpapi.New(stdpapi.Options{StoreKind: *f.kind, DBPath: *f.dbPath})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *store.kind)
	return nil
}

func runSimulate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	store := addStoreFlags(fs)
	configPath := fs.String("config", "", "path to JSON run config with engine and simulation sections")
	rule := fs.String("rule", "", "timing rule override")
	weightKind := fs.String("weight-kind", "", "weight dependence override")
	timesteps := fs.Uint("timesteps", 0, "timesteps override")
	seed := fs.Int64("seed", 0, "seed override")
	preRate := fs.Float64("pre-rate", -1, "pre-synaptic spike probability override")
	postRate := fs.Float64("post-rate", -1, "forced post-synaptic spike probability override")
	rewardRate := fs.Float64("reward-rate", -1, "reward event probability override")
	cycle := fs.Uint("cycle", 0, "recurrent lock reset interval override")
	skipHistories := fs.Bool("skip-histories", false, "do not store post-synaptic histories")
	jsonOut := fs.Bool("json", false, "emit summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	engine, simCfg, err := loadRunConfig(*configPath)
	if err != nil {
		return err
	}
	if *rule != "" {
		engine.Rule = timing.NormalizeRuleName(*rule)
	}
	if *weightKind != "" {
		if _, err := weight.ParseKind(*weightKind); err != nil {
			return err
		}
		engine.WeightKind = *weightKind
	}
	if *timesteps > 0 {
		simCfg.Timesteps = uint32(*timesteps)
	}
	if *seed != 0 {
		simCfg.Seed = *seed
	}
	if *preRate >= 0 {
		simCfg.PreRate = *preRate
	}
	if *postRate >= 0 {
		simCfg.PostRate = *postRate
	}
	if *rewardRate >= 0 {
		simCfg.RewardRate = *rewardRate
	}
	if *cycle > 0 {
		simCfg.CycleLength = uint32(*cycle)
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Simulate(ctx, stdpapi.SimulateRequest{
		Engine:        engine,
		Simulation:    simCfg,
		SkipHistories: *skipHistories,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return writeJSON(summary)
	}
	s := summary.Stats
	fmt.Printf("run_id=%s rule=%s fingerprint=%s\n", summary.RunID, summary.Rule, summary.Fingerprint)
	fmt.Printf("timesteps=%d pre_spikes=%d post_spikes=%d reward_events=%d\n", s.Timesteps, s.PreSpikes, s.PostSpikes, s.RewardEvents)
	fmt.Printf("rows=%d plastic_synapses=%d history_evictions=%d ring_overflows=%d ring_underflows=%d\n",
		s.Rows, s.PlasticSynapses, s.HistoryEvictions, s.RingOverflows, s.RingUnderflows)
	fmt.Printf("mean_weight=%.3f min_weight=%d max_weight=%d\n", s.MeanWeight, s.MinWeight, s.MaxWeight)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	store := addStoreFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	rule := fs.String("rule", "", "only list runs of this timing rule")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	filter := ""
	if *rule != "" {
		filter = timing.NormalizeRuleName(*rule)
	}
	items, err := client.Runs(ctx, stdpapi.RunsRequest{Limit: *limit, Rule: filter})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, item := range items {
		fmt.Printf("run_id=%s created_at=%s rule=%s timesteps=%d mean_weight=%.3f\n",
			item.RunID, item.CreatedAtUTC, item.Rule, item.Timesteps, item.MeanWeight)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	store := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run")
	weights := fs.Int("weights", 8, "number of final weights to print")
	histories := fs.Bool("histories", false, "print post-synaptic histories")
	jsonOut := fs.Bool("json", false, "emit run detail as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	detail, err := client.Run(ctx, stdpapi.RunRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(detail)
	}

	r := detail.Record
	fmt.Printf("run_id=%s created_at=%s rule=%s fingerprint=%s\n", r.ID, r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"), r.Rule, r.ConfigFingerprint)
	fmt.Printf("timesteps=%d rows=%d post_spikes=%d reward_events=%d mean_weight=%.3f\n",
		r.Stats.Timesteps, r.Stats.Rows, r.Stats.PostSpikes, r.Stats.RewardEvents, r.Stats.MeanWeight)
	n := min(*weights, len(detail.Weights))
	if n > 0 {
		parts := make([]string, n)
		for i := range parts {
			parts[i] = fmt.Sprint(detail.Weights[i])
		}
		fmt.Printf("weights=%s\n", strings.Join(parts, ","))
	}
	if *histories {
		for _, h := range detail.Histories {
			for _, e := range h.Events {
				fmt.Printf("neuron=%d time=%d dopamine=%t trace=%s\n", h.Neuron, e.Time, e.Dopamine, e.Trace)
			}
		}
	}
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	store := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.DeleteRun(ctx, *runID); err != nil {
		return err
	}
	fmt.Printf("deleted run_id=%s\n", *runID)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	store := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", "exports", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := store.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, stdpapi.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runLUT(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("lut", flag.ContinueOnError)
	tau := fs.Float64("tau", 20, "time constant in ms")
	timestep := fs.Float64("timestep", 1, "timestep in ms")
	size := fs.Int("size", 256, "table entries")
	shift := fs.Uint("shift", 0, "time shift applied before lookup")
	jsonOut := fs.Bool("json", false, "emit table as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	values, err := stdpapi.DecayTable(stdpapi.DecayTableRequest{
		Tau:        float32(*tau),
		TimestepMS: float32(*timestep),
		Size:       *size,
		Shift:      uint32(*shift),
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(values)
	}
	for i, v := range values {
		fmt.Printf("t=%d value=%d\n", i<<*shift, v)
	}
	return nil
}

func runEncodeConfig(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("encode-config", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to JSON run config")
	rule := fs.String("rule", "", "timing rule override")
	out := fs.String("out", "", "write the binary blob to this path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	engine, _, err := loadRunConfig(*configPath)
	if err != nil {
		return err
	}
	if *rule != "" {
		engine.Rule = timing.NormalizeRuleName(*rule)
	}
	encoded, err := stdpapi.EncodeConfig(engine)
	if err != nil {
		return err
	}
	if *out != "" {
		if err := os.WriteFile(*out, encoded.Blob, 0o644); err != nil {
			return err
		}
	}
	fmt.Printf("rule=%s bytes=%d fingerprint=%s\n", encoded.Rule, len(encoded.Blob), encoded.Fingerprint)
	return nil
}

func runRules(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("rules", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, name := range timing.Names() {
		tag, _ := timing.TagForName(name)
		fmt.Printf("tag=%d rule=%s\n", tag, name)
	}
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: stdpctl <init|simulate|runs|show|export|delete|lut|encode-config|rules> [flags]", msg)
}
