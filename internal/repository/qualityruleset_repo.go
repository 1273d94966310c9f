package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/corpusctl/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// qualityRuleSetRepo implements QualityRuleSetRepository using GORM.
type qualityRuleSetRepo struct {
	db *gorm.DB
}

// NewQualityRuleSetRepository creates a new QualityRuleSetRepository.
func NewQualityRuleSetRepository(db *gorm.DB) *qualityRuleSetRepo {
	return &qualityRuleSetRepo{db: db}
}

func (r *qualityRuleSetRepo) Upsert(ctx context.Context, rs *models.QualityRuleSet) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "version"}},
			UpdateAll: true,
		}).
		Create(rs).Error
	if err != nil {
		return fmt.Errorf("upserting quality rule set: %w", err)
	}
	return nil
}

// GetEffective returns the latest rule set version at or below the given
// version for the product, matching spec.md §3's "latest effective set
// resolved per run".
func (r *qualityRuleSetRepo) GetEffective(ctx context.Context, productID models.ULID, version int) (*models.QualityRuleSet, error) {
	var rs models.QualityRuleSet
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND version <= ?", productID, version).
		Order("version DESC").
		First(&rs).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting effective quality rule set: %w", err)
	}
	return &rs, nil
}

func (r *qualityRuleSetRepo) GetByProductAndVersion(ctx context.Context, productID models.ULID, version int) (*models.QualityRuleSet, error) {
	var rs models.QualityRuleSet
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND version = ?", productID, version).
		First(&rs).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting quality rule set: %w", err)
	}
	return &rs, nil
}
