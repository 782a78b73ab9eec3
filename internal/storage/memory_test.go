package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"stdpengine/internal/model"
)

func newRun(id string, created time.Time) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		CreatedAt:       created,
		Rule:            "pair",
	}
}

func TestMemoryStoreRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.SaveRun(ctx, newRun(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("save run %s: %v", id, err)
		}
	}
	if err := store.SaveWeights(ctx, "b", []int32{1, 2, 3}); err != nil {
		t.Fatalf("save weights: %v", err)
	}
	if err := store.SaveHistories(ctx, "b", []model.HistorySnapshot{{
		VersionedRecord: CurrentVersion(),
		Neuron:          2,
		Events:          []model.HistoryEvent{{Time: 4, Trace: "{}"}},
	}}); err != nil {
		t.Fatalf("save histories: %v", err)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "c" || runs[2].ID != "a" {
		t.Fatalf("expected newest first, got %+v", runs)
	}

	weights, ok, err := store.GetWeights(ctx, "b")
	if err != nil || !ok {
		t.Fatalf("get weights: ok=%t err=%v", ok, err)
	}
	weights[0] = 99
	again, _, _ := store.GetWeights(ctx, "b")
	if again[0] != 1 {
		t.Fatal("weights slice aliases stored state")
	}

	histories, ok, err := store.GetHistories(ctx, "b")
	if err != nil || !ok {
		t.Fatalf("get histories: ok=%t err=%v", ok, err)
	}
	if len(histories) != 1 || histories[0].Neuron != 2 || histories[0].Events[0].Time != 4 {
		t.Fatalf("unexpected histories: %+v", histories)
	}

	if err := store.DeleteRun(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.GetRun(ctx, "b"); ok {
		t.Fatal("expected run to be deleted")
	}
	if _, ok, _ := store.GetWeights(ctx, "b"); ok {
		t.Fatal("expected weights to be deleted")
	}
	if _, ok, _ := store.GetHistories(ctx, "b"); ok {
		t.Fatal("expected histories to be deleted")
	}
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), newRun("x", time.Now())); err == nil {
		t.Fatal("expected uninitialized store error")
	}
}

func TestMemoryStoreRejectsVersionMismatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	run := newRun("x", time.Now())
	run.SchemaVersion = 7
	if err := store.SaveRun(ctx, run); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}
