package repository

import (
	"context"
	"fmt"

	"github.com/jmylchreest/corpusctl/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// productRepo implements ProductRepository using GORM.
type productRepo struct {
	db     *gorm.DB
	driver string // "sqlite", "postgres", or "mysql"
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *gorm.DB) *productRepo {
	driver := ""
	if db.Dialector != nil {
		driver = db.Dialector.Name()
	}
	return &productRepo{db: db, driver: driver}
}

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("creating product: %w", err)
	}
	return nil
}

func (r *productRepo) GetByID(ctx context.Context, id models.ULID) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting product by ID: %w", err)
	}
	return &p, nil
}

func (r *productRepo) GetByWorkspaceAndName(ctx context.Context, workspaceID models.ULID, name string) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND name = ?", workspaceID, name).
		First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting product by workspace and name: %w", err)
	}
	return &p, nil
}

func (r *productRepo) List(ctx context.Context, workspaceID models.ULID) ([]*models.Product, error) {
	var products []*models.Product
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("name ASC").
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return products, nil
}

func (r *productRepo) Update(ctx context.Context, p *models.Product) error {
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("updating product: %w", err)
	}
	return nil
}

// Delete cascades the product delete across every child table, mirroring
// AllocateIngestVersion's transaction-per-operation style: pipeline run
// children (StageExecutions, Artifacts, QualityViolations) are scoped by
// run_id, then the remaining product-scoped tables and the product row
// itself are removed in the same transaction.
func (r *productRepo) Delete(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var runIDs []models.ULID
		if err := tx.Model(&models.PipelineRun{}).
			Where("product_id = ?", id).Pluck("id", &runIDs).Error; err != nil {
			return fmt.Errorf("collecting pipeline runs: %w", err)
		}

		if len(runIDs) > 0 {
			if err := tx.Where("run_id IN ?", runIDs).Delete(&models.StageExecution{}).Error; err != nil {
				return fmt.Errorf("deleting stage executions: %w", err)
			}
			if err := tx.Where("run_id IN ?", runIDs).Delete(&models.Artifact{}).Error; err != nil {
				return fmt.Errorf("deleting artifacts: %w", err)
			}
			if err := tx.Where("run_id IN ?", runIDs).Delete(&models.QualityViolation{}).Error; err != nil {
				return fmt.Errorf("deleting quality violations: %w", err)
			}
		}

		if err := tx.Where("product_id = ?", id).Delete(&models.PipelineRun{}).Error; err != nil {
			return fmt.Errorf("deleting pipeline runs: %w", err)
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.ChunkMetadata{}).Error; err != nil {
			return fmt.Errorf("deleting chunk metadata: %w", err)
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.QualityRuleSet{}).Error; err != nil {
			return fmt.Errorf("deleting quality rule sets: %w", err)
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.RawFile{}).Error; err != nil {
			return fmt.Errorf("deleting raw files: %w", err)
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.DataSource{}).Error; err != nil {
			return fmt.Errorf("deleting data sources: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Product{}).Error; err != nil {
			return fmt.Errorf("deleting product: %w", err)
		}
		return nil
	})
}

// AllocateIngestVersion reads current_version under a row lock (Postgres/
// MySQL use SELECT FOR UPDATE; SQLite relies on its single-writer
// serialization, the same driver split as pipelineRunRepo.BeginRun) and
// returns current_version+1 without mutating the row. The
// bump is only committed by FinalizeIngest.
func (r *productRepo) AllocateIngestVersion(ctx context.Context, productID models.ULID) (int, error) {
	var version int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Product{}).Where("id = ?", productID)
		if r.driver != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var p models.Product
		if err := q.First(&p).Error; err != nil {
			return err
		}
		version = p.CurrentVersion + 1
		return nil
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, fmt.Errorf("allocating ingest version: %w", err)
		}
		return 0, fmt.Errorf("allocating ingest version: %w", err)
	}
	return version, nil
}

// FinalizeIngest advances current_version to max(current_version, version)
// and marks all INGESTING raw files for that version as INGESTED, atomically.
func (r *productRepo) FinalizeIngest(ctx context.Context, productID models.ULID, version int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// CASE expression (not GREATEST/MAX) for cross-driver portability
		// between Postgres, MySQL, and SQLite.
		if err := tx.Model(&models.Product{}).
			Where("id = ?", productID).
			UpdateColumns(map[string]any{
				"current_version": gorm.Expr("CASE WHEN current_version < ? THEN ? ELSE current_version END", version, version),
				"updated_at":      models.Now(),
			}).Error; err != nil {
			return fmt.Errorf("advancing current_version: %w", err)
		}

		if err := tx.Model(&models.RawFile{}).
			Where("product_id = ? AND version = ? AND status = ?", productID, version, models.RawFileStatusIngesting).
			UpdateColumns(map[string]any{
				"status":       models.RawFileStatusIngested,
				"ingested_at":  models.Now(),
			}).Error; err != nil {
			return fmt.Errorf("marking raw files ingested: %w", err)
		}

		return nil
	})
}

// ResolvePipelineVersion implements spec.md §4.1 resolve_pipeline_version.
func (r *productRepo) ResolvePipelineVersion(ctx context.Context, productID models.ULID, explicitVersion *int) (*VersionResolution, error) {
	if explicitVersion != nil {
		var count int64
		err := r.db.WithContext(ctx).Model(&models.RawFile{}).
			Where("product_id = ? AND version = ? AND status IN ?", productID, *explicitVersion,
				[]models.RawFileStatus{models.RawFileStatusIngested, models.RawFileStatusProcessed, models.RawFileStatusFailed}).
			Count(&count).Error
		if err != nil {
			return nil, fmt.Errorf("counting raw files for explicit version: %w", err)
		}
		if count == 0 {
			available, latest, herr := r.versionHints(ctx, productID)
			if herr != nil {
				return nil, herr
			}
			return &VersionResolution{
				Version:           *explicitVersion,
				Source:            "explicit",
				AvailableVersions: available,
				LatestIngested:    latest,
			}, ErrNoRawFilesForVersion
		}
		return &VersionResolution{Version: *explicitVersion, Source: "explicit"}, nil
	}

	var maxVersion *int
	err := r.db.WithContext(ctx).Model(&models.RawFile{}).
		Select("MAX(version)").
		Where("product_id = ? AND status IN ?", productID,
			[]models.RawFileStatus{models.RawFileStatusIngested, models.RawFileStatusFailed}).
		Scan(&maxVersion).Error
	if err != nil {
		return nil, fmt.Errorf("resolving auto pipeline version: %w", err)
	}
	if maxVersion == nil {
		return nil, ErrNoRawFiles
	}
	return &VersionResolution{Version: *maxVersion, Source: "auto"}, nil
}

// versionHints collects the context fields for the NoRawFilesForVersion error.
func (r *productRepo) versionHints(ctx context.Context, productID models.ULID) ([]int, int, error) {
	var versions []int
	err := r.db.WithContext(ctx).Model(&models.RawFile{}).
		Distinct("version").
		Where("product_id = ? AND status IN ?", productID,
			[]models.RawFileStatus{models.RawFileStatusIngested, models.RawFileStatusProcessed, models.RawFileStatusFailed}).
		Order("version DESC").
		Pluck("version", &versions).Error
	if err != nil {
		return nil, 0, fmt.Errorf("collecting available versions: %w", err)
	}

	var latest *int
	err = r.db.WithContext(ctx).Model(&models.RawFile{}).
		Select("MAX(version)").
		Where("product_id = ? AND status = ?", productID, models.RawFileStatusIngested).
		Scan(&latest).Error
	if err != nil {
		return nil, 0, fmt.Errorf("collecting latest ingested version: %w", err)
	}
	if latest == nil {
		return versions, 0, nil
	}
	return versions, *latest, nil
}
