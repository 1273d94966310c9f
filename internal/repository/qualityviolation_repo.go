package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/corpusctl/internal/models"
	"gorm.io/gorm"
)

// qualityViolationRepo implements QualityViolationRepository using GORM.
type qualityViolationRepo struct {
	db *gorm.DB
}

// NewQualityViolationRepository creates a new QualityViolationRepository.
func NewQualityViolationRepository(db *gorm.DB) *qualityViolationRepo {
	return &qualityViolationRepo{db: db}
}

func (r *qualityViolationRepo) Create(ctx context.Context, v *models.QualityViolation) error {
	if err := r.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("creating quality violation: %w", err)
	}
	return nil
}

func (r *qualityViolationRepo) CreateBatch(ctx context.Context, violations []*models.QualityViolation) error {
	if len(violations) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(violations, 200).Error; err != nil {
		return fmt.Errorf("creating quality violations batch: %w", err)
	}
	return nil
}

func (r *qualityViolationRepo) ListByRun(ctx context.Context, runID models.ULID) ([]*models.QualityViolation, error) {
	var violations []*models.QualityViolation
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Find(&violations).Error; err != nil {
		return nil, fmt.Errorf("listing quality violations: %w", err)
	}
	return violations, nil
}

func (r *qualityViolationRepo) ListByProductVersion(ctx context.Context, productID models.ULID, version int) ([]*models.QualityViolation, error) {
	var violations []*models.QualityViolation
	err := r.db.WithContext(ctx).
		Joins("JOIN pipeline_runs ON pipeline_runs.id = quality_violations.run_id").
		Where("pipeline_runs.product_id = ? AND pipeline_runs.version = ?", productID, version).
		Find(&violations).Error
	if err != nil {
		return nil, fmt.Errorf("listing quality violations by product version: %w", err)
	}
	return violations, nil
}
