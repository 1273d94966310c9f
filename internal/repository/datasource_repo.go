package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/corpusctl/internal/models"
	"gorm.io/gorm"
)

// dataSourceRepo implements DataSourceRepository using GORM.
type dataSourceRepo struct {
	db *gorm.DB
}

// NewDataSourceRepository creates a new DataSourceRepository.
func NewDataSourceRepository(db *gorm.DB) *dataSourceRepo {
	return &dataSourceRepo{db: db}
}

func (r *dataSourceRepo) Create(ctx context.Context, ds *models.DataSource) error {
	if err := r.db.WithContext(ctx).Create(ds).Error; err != nil {
		return fmt.Errorf("creating data source: %w", err)
	}
	return nil
}

func (r *dataSourceRepo) GetByID(ctx context.Context, id models.ULID) (*models.DataSource, error) {
	var ds models.DataSource
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ds).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting data source by ID: %w", err)
	}
	return &ds, nil
}

func (r *dataSourceRepo) ListByProduct(ctx context.Context, productID models.ULID) ([]*models.DataSource, error) {
	var sources []*models.DataSource
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("listing data sources: %w", err)
	}
	return sources, nil
}

func (r *dataSourceRepo) ListRecurring(ctx context.Context) ([]*models.DataSource, error) {
	var sources []*models.DataSource
	if err := r.db.WithContext(ctx).
		Where("cron_schedule IS NOT NULL AND cron_schedule != ''").
		Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("listing recurring data sources: %w", err)
	}
	return sources, nil
}

func (r *dataSourceRepo) Update(ctx context.Context, ds *models.DataSource) error {
	if err := r.db.WithContext(ctx).Save(ds).Error; err != nil {
		return fmt.Errorf("updating data source: %w", err)
	}
	return nil
}

func (r *dataSourceRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.DataSource{}).Error; err != nil {
		return fmt.Errorf("deleting data source: %w", err)
	}
	return nil
}
