package storage

import (
	"context"

	"github.com/gabibrouze/evolving-resilience/internal/model"
)

// Store defines persistence operations for runs, candidate designs and
// generation history.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, runID string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveDesign(ctx context.Context, design model.DesignRecord) error
	GetDesign(ctx context.Context, id string) (model.DesignRecord, bool, error)
	TopDesigns(ctx context.Context, runID string, limit int) ([]model.DesignRecord, error)
	SaveHistory(ctx context.Context, runID string, history []model.GenerationStats) error
	GetHistory(ctx context.Context, runID string) ([]model.GenerationStats, bool, error)
}
