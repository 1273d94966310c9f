package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/corpusctl/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// chunkMetadataRepo implements ChunkMetadataRepository using GORM.
type chunkMetadataRepo struct {
	db *gorm.DB
}

// NewChunkMetadataRepository creates a new ChunkMetadataRepository.
func NewChunkMetadataRepository(db *gorm.DB) *chunkMetadataRepo {
	return &chunkMetadataRepo{db: db}
}

func (r *chunkMetadataRepo) Upsert(ctx context.Context, c *models.ChunkMetadata) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "version"}, {Name: "chunk_id"}},
			UpdateAll: true,
		}).
		Create(c).Error
	if err != nil {
		return fmt.Errorf("upserting chunk metadata: %w", err)
	}
	return nil
}

func (r *chunkMetadataRepo) UpsertBatch(ctx context.Context, chunks []*models.ChunkMetadata) error {
	if len(chunks) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "version"}, {Name: "chunk_id"}},
			UpdateAll: true,
		}).
		CreateInBatches(chunks, 200).Error
	if err != nil {
		return fmt.Errorf("upserting chunk metadata batch: %w", err)
	}
	return nil
}

// Query lists chunk metadata with optional filters, capped at 500 rows per
// page per spec.md §6's chunk-query endpoint.
func (r *chunkMetadataRepo) Query(ctx context.Context, q ChunkQuery) ([]*models.ChunkMetadata, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.ChunkMetadata{}).
		Where("product_id = ? AND version = ?", q.ProductID, q.Version)
	if q.Section != "" {
		base = base.Where("section = ?", q.Section)
	}
	if q.FieldName != "" {
		base = base.Where("field_name = ?", q.FieldName)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting chunk metadata: %w", err)
	}

	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	var chunks []*models.ChunkMetadata
	if err := base.Order("source_file ASC, chunk_id ASC").
		Limit(limit).Offset(q.Offset).
		Find(&chunks).Error; err != nil {
		return nil, 0, fmt.Errorf("querying chunk metadata: %w", err)
	}
	return chunks, total, nil
}

func (r *chunkMetadataRepo) CountByProductVersion(ctx context.Context, productID models.ULID, version int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ChunkMetadata{}).
		Where("product_id = ? AND version = ?", productID, version).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting chunk metadata: %w", err)
	}
	return count, nil
}
