package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/timmy/musiclip/internal/domain"
)

// RunRepository persists ingestion runs and their per-track outcomes.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *RunRepository: repository instance bound to db.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// RecordRun stores a finished report as one run row plus one row per track.
func (r *RunRepository) RecordRun(ctx context.Context, report *domain.IngestionReport) error {
	run := domain.NewIngestRun(report)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(run).Error
	})
}

// ListRuns returns the most recent runs without their track rows.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of runs to return.
// Returns:
//   - []domain.IngestRun: runs ordered newest first.
//   - error: non-nil if the query fails.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]domain.IngestRun, error) {
	var runs []domain.IngestRun
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun returns one run with its track rows in playlist order.
func (r *RunRepository) GetRun(ctx context.Context, id string) (*domain.IngestRun, error) {
	var run domain.IngestRun
	err := r.db.WithContext(ctx).
		Preload("Tracks", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.Errorf(domain.KindNotFound, "runs.get", "run %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
