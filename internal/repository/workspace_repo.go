package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/corpusctl/internal/models"
	"gorm.io/gorm"
)

// workspaceRepo implements WorkspaceRepository using GORM.
type workspaceRepo struct {
	db *gorm.DB
}

// NewWorkspaceRepository creates a new WorkspaceRepository.
func NewWorkspaceRepository(db *gorm.DB) *workspaceRepo {
	return &workspaceRepo{db: db}
}

func (r *workspaceRepo) Create(ctx context.Context, ws *models.Workspace) error {
	if err := r.db.WithContext(ctx).Create(ws).Error; err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}
	return nil
}

func (r *workspaceRepo) GetByID(ctx context.Context, id models.ULID) (*models.Workspace, error) {
	var ws models.Workspace
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ws).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting workspace by ID: %w", err)
	}
	return &ws, nil
}

func (r *workspaceRepo) GetByName(ctx context.Context, name string) (*models.Workspace, error) {
	var ws models.Workspace
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&ws).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting workspace by name: %w", err)
	}
	return &ws, nil
}

func (r *workspaceRepo) GetAll(ctx context.Context) ([]*models.Workspace, error) {
	var all []*models.Workspace
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&all).Error; err != nil {
		return nil, fmt.Errorf("getting all workspaces: %w", err)
	}
	return all, nil
}
