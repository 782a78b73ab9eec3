package storage

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"stdpengine/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	weights     map[string][]int32
	histories   map[string][]model.HistorySnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.weights = make(map[string][]int32)
	s.histories = make(map[string][]model.HistorySnapshot)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return err
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	slices.SortFunc(runs, func(a, b model.RunRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return runs, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	delete(s.weights, id)
	delete(s.histories, id)
	return nil
}

func (s *MemoryStore) SaveWeights(_ context.Context, runID string, weights []int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.weights[runID] = slices.Clone(weights)
	return nil
}

func (s *MemoryStore) GetWeights(_ context.Context, runID string) ([]int32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	weights, ok := s.weights[runID]
	return slices.Clone(weights), ok, nil
}

func (s *MemoryStore) SaveHistories(_ context.Context, runID string, histories []model.HistorySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	for _, h := range histories {
		if err := checkVersion(h.VersionedRecord); err != nil {
			return err
		}
	}
	s.histories[runID] = slices.Clone(histories)
	return nil
}

func (s *MemoryStore) GetHistories(_ context.Context, runID string) ([]model.HistorySnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	histories, ok := s.histories[runID]
	return slices.Clone(histories), ok, nil
}
