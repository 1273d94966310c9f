package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/corpusctl/internal/models"
	"gorm.io/gorm"
)

// artifactRepo implements ArtifactRepository using GORM.
type artifactRepo struct {
	db *gorm.DB
}

// NewArtifactRepository creates a new ArtifactRepository.
func NewArtifactRepository(db *gorm.DB) *artifactRepo {
	return &artifactRepo{db: db}
}

func (r *artifactRepo) Create(ctx context.Context, a *models.Artifact) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("creating artifact: %w", err)
	}
	return nil
}

func (r *artifactRepo) GetByID(ctx context.Context, id models.ULID) (*models.Artifact, error) {
	var a models.Artifact
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting artifact by ID: %w", err)
	}
	return &a, nil
}

func (r *artifactRepo) ListByRun(ctx context.Context, runID models.ULID) ([]*models.Artifact, error) {
	var artifacts []*models.Artifact
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Find(&artifacts).Error; err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	return artifacts, nil
}
