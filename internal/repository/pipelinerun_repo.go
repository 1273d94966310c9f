package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/corpusctl/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// pipelineRunRepo implements PipelineRunRepository using GORM.
type pipelineRunRepo struct {
	db     *gorm.DB
	driver string
}

// NewPipelineRunRepository creates a new PipelineRunRepository.
func NewPipelineRunRepository(db *gorm.DB) *pipelineRunRepo {
	driver := ""
	if db.Dialector != nil {
		driver = db.Dialector.Name()
	}
	return &pipelineRunRepo{db: db, driver: driver}
}

// BeginRun inserts a new QUEUED run under a row lock on the owning
// product, failing with ErrRunAlreadyActive if a QUEUED/RUNNING run
// already exists for (product, version), matching spec.md §4.1 begin_run.
func (r *pipelineRunRepo) BeginRun(ctx context.Context, run *models.PipelineRun) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Product{}).Where("id = ?", run.ProductID)
		if r.driver != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var product models.Product
		if err := q.First(&product).Error; err != nil {
			return fmt.Errorf("locking product for begin_run: %w", err)
		}

		var activeCount int64
		if err := tx.Model(&models.PipelineRun{}).
			Where("product_id = ? AND version = ? AND status IN ?", run.ProductID, run.Version,
				[]models.RunStatus{models.RunStatusQueued, models.RunStatusRunning}).
			Count(&activeCount).Error; err != nil {
			return fmt.Errorf("checking active runs: %w", err)
		}
		if activeCount > 0 {
			return ErrRunAlreadyActive
		}

		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("creating pipeline run: %w", err)
		}
		return nil
	})
}

func (r *pipelineRunRepo) GetByID(ctx context.Context, id models.ULID) (*models.PipelineRun, error) {
	var run models.PipelineRun
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting pipeline run by ID: %w", err)
	}
	return &run, nil
}

func (r *pipelineRunRepo) ListByProduct(ctx context.Context, productID models.ULID) ([]*models.PipelineRun, error) {
	var runs []*models.PipelineRun
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("version DESC, created_at DESC").
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing pipeline runs: %w", err)
	}
	return runs, nil
}

func (r *pipelineRunRepo) HasActiveRun(ctx context.Context, productID models.ULID, version int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PipelineRun{}).
		Where("product_id = ? AND version = ? AND status IN ?", productID, version,
			[]models.RunStatus{models.RunStatusQueued, models.RunStatusRunning}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking active run: %w", err)
	}
	return count > 0, nil
}

func (r *pipelineRunRepo) HasSucceededRun(ctx context.Context, productID models.ULID, version int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PipelineRun{}).
		Where("product_id = ? AND version = ? AND status = ?", productID, version, models.RunStatusSucceeded).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking succeeded run: %w", err)
	}
	return count > 0, nil
}

// TransitionRun performs a true compare-and-set via a single atomic UPDATE
// guarded by the expected "from" status, generalizing the teacher's
// optimistic mutate-then-Save idiom (which was not itself concurrency-safe
// across processes) into the SQL-level CAS spec.md §5's serializability
// requirement demands. Works identically across all three drivers since it
// needs no row locking: the WHERE clause IS the compare, and RowsAffected
// tells us whether we won the race.
func (r *pipelineRunRepo) TransitionRun(ctx context.Context, runID models.ULID, from, to models.RunStatus, now time.Time) error {
	updates := map[string]any{"status": to}
	switch to {
	case models.RunStatusRunning:
		updates["started_at"] = now
	case models.RunStatusSucceeded, models.RunStatusFailed, models.RunStatusCancelled:
		updates["finished_at"] = now
	}

	result := r.db.WithContext(ctx).Model(&models.PipelineRun{}).
		Where("id = ? AND status = ?", runID, from).
		UpdateColumns(updates)
	if result.Error != nil {
		return fmt.Errorf("transitioning run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStatusMismatch
	}
	return nil
}

// RequestCancel sets cancel_requested=true; idempotent.
func (r *pipelineRunRepo) RequestCancel(ctx context.Context, runID models.ULID) error {
	err := r.db.WithContext(ctx).Model(&models.PipelineRun{}).
		Where("id = ?", runID).
		UpdateColumn("cancel_requested", true).Error
	if err != nil {
		return fmt.Errorf("requesting cancel: %w", err)
	}
	return nil
}

func (r *pipelineRunRepo) IsCancelRequested(ctx context.Context, runID models.ULID) (bool, error) {
	var run models.PipelineRun
	if err := r.db.WithContext(ctx).Select("cancel_requested").Where("id = ?", runID).First(&run).Error; err != nil {
		return false, fmt.Errorf("reading cancel_requested: %w", err)
	}
	return run.CancelRequested, nil
}
