package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmylchreest/corpusctl/internal/models"
	"gorm.io/gorm"
)

// rawFileRepo implements RawFileRepository using GORM.
type rawFileRepo struct {
	db *gorm.DB
}

// NewRawFileRepository creates a new RawFileRepository.
func NewRawFileRepository(db *gorm.DB) *rawFileRepo {
	return &rawFileRepo{db: db}
}

// Create inserts a new raw file row, translating the unique-index violation
// on (product_id, version, file_stem) into ErrDuplicateKey.
func (r *rawFileRepo) Create(ctx context.Context, rf *models.RawFile) error {
	if err := r.db.WithContext(ctx).Create(rf).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("creating raw file: %w", ErrDuplicateKey)
		}
		return fmt.Errorf("creating raw file: %w", err)
	}
	return nil
}

func (r *rawFileRepo) GetByID(ctx context.Context, id models.ULID) (*models.RawFile, error) {
	var rf models.RawFile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rf).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting raw file by ID: %w", err)
	}
	return &rf, nil
}

func (r *rawFileRepo) GetByStem(ctx context.Context, productID models.ULID, version int, stem string) (*models.RawFile, error) {
	var rf models.RawFile
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND version = ? AND file_stem = ?", productID, version, stem).
		First(&rf).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting raw file by stem: %w", err)
	}
	return &rf, nil
}

func (r *rawFileRepo) ListByProductVersion(ctx context.Context, productID models.ULID, version int, exclude []models.RawFileStatus) ([]*models.RawFile, error) {
	q := r.db.WithContext(ctx).
		Where("product_id = ? AND version = ?", productID, version)
	if len(exclude) > 0 {
		q = q.Where("status NOT IN ?", exclude)
	}
	var files []*models.RawFile
	if err := q.Order("filename ASC").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("listing raw files: %w", err)
	}
	return files, nil
}

func (r *rawFileRepo) VersionsWithStatus(ctx context.Context, productID models.ULID, statuses []models.RawFileStatus) ([]int, error) {
	var versions []int
	err := r.db.WithContext(ctx).Model(&models.RawFile{}).
		Distinct("version").
		Where("product_id = ? AND status IN ?", productID, statuses).
		Order("version DESC").
		Pluck("version", &versions).Error
	if err != nil {
		return nil, fmt.Errorf("listing versions with status: %w", err)
	}
	return versions, nil
}

func (r *rawFileRepo) Update(ctx context.Context, rf *models.RawFile) error {
	if err := r.db.WithContext(ctx).Save(rf).Error; err != nil {
		return fmt.Errorf("updating raw file: %w", err)
	}
	return nil
}

// MarkProcessed marks every INGESTED/PROCESSING raw file for (product,
// version) as PROCESSED, called by the finalize stage on a successful run.
func (r *rawFileRepo) MarkProcessed(ctx context.Context, productID models.ULID, version int) error {
	err := r.db.WithContext(ctx).Model(&models.RawFile{}).
		Where("product_id = ? AND version = ? AND status IN ?", productID, version,
			[]models.RawFileStatus{models.RawFileStatusIngested, models.RawFileStatusProcessing}).
		UpdateColumns(map[string]any{
			"status":       models.RawFileStatusProcessed,
			"processed_at": models.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("marking raw files processed: %w", err)
	}
	return nil
}

// MarkFailed marks a single raw file FAILED with the given reason, called
// by the preprocess stage when a blob ETag mismatch is detected. Excluded
// from MarkProcessed's status IN (...) scope, so a failed file is never
// later flipped to PROCESSED by finalize.
func (r *rawFileRepo) MarkFailed(ctx context.Context, id models.ULID, reason string) error {
	err := r.db.WithContext(ctx).Model(&models.RawFile{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"status":        models.RawFileStatusFailed,
			"error_message": reason,
		}).Error
	if err != nil {
		return fmt.Errorf("marking raw file failed: %w", err)
	}
	return nil
}

// isUniqueViolation does a best-effort, driver-agnostic check for a unique
// constraint violation, matching the string-sniffing approach portable
// GORM code uses when a driver-specific error type isn't worth importing
// for all three supported backends.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
