package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/gabibrouze/evolving-resilience/internal/model"
)

type MemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]model.RunRecord
	designs map[string]model.DesignRecord
	history map[string][]model.GenerationStats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = make(map[string]model.RunRecord)
	s.designs = make(map[string]model.DesignRecord)
	s.history = make(map[string][]model.GenerationStats)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.RunID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(a, b int) bool {
		if runs[a].CreatedAtUTC != runs[b].CreatedAtUTC {
			return runs[a].CreatedAtUTC > runs[b].CreatedAtUTC
		}
		return runs[a].RunID < runs[b].RunID
	})
	return runs, nil
}

func (s *MemoryStore) SaveDesign(_ context.Context, design model.DesignRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.designs[design.ID] = design
	return nil
}

func (s *MemoryStore) GetDesign(_ context.Context, id string) (model.DesignRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	design, ok := s.designs[id]
	return design, ok, nil
}

func (s *MemoryStore) TopDesigns(_ context.Context, runID string, limit int) ([]model.DesignRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var designs []model.DesignRecord
	for _, design := range s.designs {
		if design.RunID == runID {
			designs = append(designs, design)
		}
	}
	sort.Slice(designs, func(a, b int) bool {
		if designs[a].OverallScore != designs[b].OverallScore {
			return designs[a].OverallScore > designs[b].OverallScore
		}
		return designs[a].ID < designs[b].ID
	})
	if limit > 0 && len(designs) > limit {
		designs = designs[:limit]
	}
	return designs, nil
}

func (s *MemoryStore) SaveHistory(_ context.Context, runID string, history []model.GenerationStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.GenerationStats, len(history))
	copy(copied, history)
	s.history[runID] = copied
	return nil
}

func (s *MemoryStore) GetHistory(_ context.Context, runID string) ([]model.GenerationStats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationStats, len(history))
	copy(copied, history)
	return copied, true, nil
}
