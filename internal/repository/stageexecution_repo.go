package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/corpusctl/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// stageExecutionRepo implements StageExecutionRepository using GORM.
type stageExecutionRepo struct {
	db *gorm.DB
}

// NewStageExecutionRepository creates a new StageExecutionRepository.
func NewStageExecutionRepository(db *gorm.DB) *stageExecutionRepo {
	return &stageExecutionRepo{db: db}
}

// Upsert inserts or updates the (run_id, stage_name) row, matching
// spec.md §4.1 upsert_stage.
func (r *stageExecutionRepo) Upsert(ctx context.Context, se *models.StageExecution) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}, {Name: "stage_name"}},
			UpdateAll: true,
		}).
		Create(se).Error
	if err != nil {
		return fmt.Errorf("upserting stage execution: %w", err)
	}
	return nil
}

func (r *stageExecutionRepo) ListByRun(ctx context.Context, runID models.ULID) ([]*models.StageExecution, error) {
	var stages []*models.StageExecution
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Find(&stages).Error; err != nil {
		return nil, fmt.Errorf("listing stage executions: %w", err)
	}
	return stages, nil
}

func (r *stageExecutionRepo) GetByRunAndStage(ctx context.Context, runID models.ULID, stage models.StageName) (*models.StageExecution, error) {
	var se models.StageExecution
	err := r.db.WithContext(ctx).
		Where("run_id = ? AND stage_name = ?", runID, stage).
		First(&se).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting stage execution: %w", err)
	}
	return &se, nil
}
