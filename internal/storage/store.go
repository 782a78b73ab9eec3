package storage

import (
	"context"

	"stdpengine/internal/model"
)

// Store persists simulation runs and their end-of-run state.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns every run, newest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	DeleteRun(ctx context.Context, id string) error
	SaveWeights(ctx context.Context, runID string, weights []int32) error
	GetWeights(ctx context.Context, runID string) ([]int32, bool, error)
	SaveHistories(ctx context.Context, runID string, histories []model.HistorySnapshot) error
	GetHistories(ctx context.Context, runID string) ([]model.HistorySnapshot, bool, error)
}
