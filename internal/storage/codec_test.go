package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"stdpengine/internal/model"
)

func TestDecodeRunFixture(t *testing.T) {
	data, err := os.ReadFile(fixturePath("run_v1.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	run, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if run.ID != "run-fixture-1" || run.Rule != "pair" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.Stats.PlasticSynapses != 124 || run.Stats.MaxWeight != 1050 {
		t.Fatalf("unexpected stats: %+v", run.Stats)
	}
	if !run.CreatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected created_at: %s", run.CreatedAt)
	}
}

func TestDecodeRunRejectsFutureSchema(t *testing.T) {
	data, err := os.ReadFile(fixturePath("run_v2.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestRunCodecPreservesConfigPayloads(t *testing.T) {
	run := model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              "run-1",
		CreatedAt:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Rule:            "vogels2011",
		Engine:          []byte(`{"rule":"vogels2011"}`),
		Simulation:      []byte(`{"timesteps":10}`),
		Stats:           model.RunStats{Timesteps: 10, MinWeight: -3},
	}
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(run, decoded) {
		t.Fatalf("run mismatch:\nwant %+v\ngot  %+v", run, decoded)
	}
}

func TestDecodeHistoriesChecksEveryRecord(t *testing.T) {
	histories := []model.HistorySnapshot{
		{VersionedRecord: CurrentVersion(), Neuron: 0},
		{VersionedRecord: model.VersionedRecord{SchemaVersion: 9, CodecVersion: 1}, Neuron: 1},
	}
	data, err := EncodeHistories(histories)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeHistories(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}
