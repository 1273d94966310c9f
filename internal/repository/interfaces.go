// Package repository defines data access interfaces for the catalog store
// (C1) entities. All database access goes through these interfaces,
// enabling easy testing and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/jmylchreest/corpusctl/internal/models"
)

// WorkspaceRepository defines operations for workspace persistence.
type WorkspaceRepository interface {
	Create(ctx context.Context, ws *models.Workspace) error
	GetByID(ctx context.Context, id models.ULID) (*models.Workspace, error)
	GetByName(ctx context.Context, name string) (*models.Workspace, error)
	GetAll(ctx context.Context) ([]*models.Workspace, error)
}

// ProductRepository defines operations for product persistence, including
// the version-allocation protocol of spec.md §4.1/§4.3.
type ProductRepository interface {
	Create(ctx context.Context, p *models.Product) error
	GetByID(ctx context.Context, id models.ULID) (*models.Product, error)
	GetByWorkspaceAndName(ctx context.Context, workspaceID models.ULID, name string) (*models.Product, error)
	List(ctx context.Context, workspaceID models.ULID) ([]*models.Product, error)
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id models.ULID) error

	// AllocateIngestVersion reads current_version under a row lock and
	// returns current_version+1 without committing the bump. The caller
	// must later call FinalizeIngest (or abandon, leaving current_version
	// unchanged) within the same logical ingest operation.
	AllocateIngestVersion(ctx context.Context, productID models.ULID) (int, error)

	// FinalizeIngest advances current_version to max(current_version,
	// version) and marks all INGESTING raw files for that version as
	// INGESTED, atomically.
	FinalizeIngest(ctx context.Context, productID models.ULID, version int) error

	// ResolvePipelineVersion implements spec.md §4.1 resolve_pipeline_version.
	ResolvePipelineVersion(ctx context.Context, productID models.ULID, explicitVersion *int) (*VersionResolution, error)
}

// VersionResolution carries the resolved version plus the hints needed to
// build an actionable NotFound error when resolution fails.
type VersionResolution struct {
	Version           int
	Source            string // "explicit" | "auto"
	AvailableVersions []int
	LatestIngested    int
}

// DataSourceRepository defines operations for data source persistence.
type DataSourceRepository interface {
	Create(ctx context.Context, ds *models.DataSource) error
	GetByID(ctx context.Context, id models.ULID) (*models.DataSource, error)
	ListByProduct(ctx context.Context, productID models.ULID) ([]*models.DataSource, error)
	ListRecurring(ctx context.Context) ([]*models.DataSource, error)
	Update(ctx context.Context, ds *models.DataSource) error
	Delete(ctx context.Context, id models.ULID) error
}

// RawFileRepository defines operations for raw file persistence.
type RawFileRepository interface {
	Create(ctx context.Context, rf *models.RawFile) error
	GetByID(ctx context.Context, id models.ULID) (*models.RawFile, error)
	// GetByStem finds a raw file by its (product, version, file_stem) key,
	// used to detect DuplicateKey for ingest idempotency.
	GetByStem(ctx context.Context, productID models.ULID, version int, stem string) (*models.RawFile, error)
	// ListByProductVersion lists raw files ordered by filename, excluding
	// the given statuses (DELETED by default per spec.md §4.1 list_raw_files).
	ListByProductVersion(ctx context.Context, productID models.ULID, version int, exclude []models.RawFileStatus) ([]*models.RawFile, error)
	// VersionsWithStatus returns the distinct versions for a product that
	// have at least one raw file in one of the given statuses, descending.
	VersionsWithStatus(ctx context.Context, productID models.ULID, statuses []models.RawFileStatus) ([]int, error)
	Update(ctx context.Context, rf *models.RawFile) error
	MarkProcessed(ctx context.Context, productID models.ULID, version int) error
	// MarkFailed marks a single raw file FAILED (e.g. on blob ETag
	// mismatch during preprocessing), recording the reason for operator
	// visibility. Excluded from MarkProcessed's status IN (...) scope, so
	// a failed file is never later flipped to PROCESSED by finalize.
	MarkFailed(ctx context.Context, id models.ULID, reason string) error
}

// PipelineRunRepository defines operations for pipeline run persistence,
// including the begin/transition compare-and-set protocol of spec.md §4.1.
type PipelineRunRepository interface {
	// BeginRun inserts a new QUEUED run, failing with ErrRunAlreadyActive if
	// any QUEUED/RUNNING run already exists for (product, version).
	BeginRun(ctx context.Context, run *models.PipelineRun) error
	GetByID(ctx context.Context, id models.ULID) (*models.PipelineRun, error)
	ListByProduct(ctx context.Context, productID models.ULID) ([]*models.PipelineRun, error)
	// HasActiveRun reports whether a QUEUED/RUNNING run exists for (product, version).
	HasActiveRun(ctx context.Context, productID models.ULID, version int) (bool, error)
	// HasSucceededRun reports whether a SUCCEEDED run exists for (product, version).
	HasSucceededRun(ctx context.Context, productID models.ULID, version int) (bool, error)
	// TransitionRun compares-and-sets status from `from` to `to`, returning
	// ErrStatusMismatch if the current status differs from `from`.
	TransitionRun(ctx context.Context, runID models.ULID, from, to models.RunStatus, now time.Time) error
	// RequestCancel sets cancel_requested=true; idempotent.
	RequestCancel(ctx context.Context, runID models.ULID) error
	// IsCancelRequested reads the cancel_requested flag for the boundary check.
	IsCancelRequested(ctx context.Context, runID models.ULID) (bool, error)
}

// StageExecutionRepository defines operations for stage execution persistence.
type StageExecutionRepository interface {
	// Upsert inserts or updates the (run_id, stage_name) row.
	Upsert(ctx context.Context, se *models.StageExecution) error
	ListByRun(ctx context.Context, runID models.ULID) ([]*models.StageExecution, error)
	GetByRunAndStage(ctx context.Context, runID models.ULID, stage models.StageName) (*models.StageExecution, error)
}

// ArtifactRepository defines operations for artifact persistence.
type ArtifactRepository interface {
	Create(ctx context.Context, a *models.Artifact) error
	GetByID(ctx context.Context, id models.ULID) (*models.Artifact, error)
	ListByRun(ctx context.Context, runID models.ULID) ([]*models.Artifact, error)
}

// ChunkMetadataRepository defines operations for chunk metadata persistence.
type ChunkMetadataRepository interface {
	Upsert(ctx context.Context, c *models.ChunkMetadata) error
	UpsertBatch(ctx context.Context, chunks []*models.ChunkMetadata) error
	// Query lists chunk metadata for a product/version with optional filters,
	// capped at 500 rows per page per spec.md §6.
	Query(ctx context.Context, q ChunkQuery) ([]*models.ChunkMetadata, int64, error)
	CountByProductVersion(ctx context.Context, productID models.ULID, version int) (int64, error)
}

// ChunkQuery carries the filter/pagination parameters for chunk lookups.
type ChunkQuery struct {
	ProductID models.ULID
	Version   int
	Section   string
	FieldName string
	Limit     int
	Offset    int
}

// QualityRuleSetRepository defines operations for quality rule set persistence.
type QualityRuleSetRepository interface {
	Upsert(ctx context.Context, rs *models.QualityRuleSet) error
	// GetEffective returns the latest rule set version at or below the
	// given version for the product, or nil if none exists.
	GetEffective(ctx context.Context, productID models.ULID, version int) (*models.QualityRuleSet, error)
	GetByProductAndVersion(ctx context.Context, productID models.ULID, version int) (*models.QualityRuleSet, error)
}

// QualityViolationRepository defines operations for quality violation persistence.
type QualityViolationRepository interface {
	Create(ctx context.Context, v *models.QualityViolation) error
	CreateBatch(ctx context.Context, violations []*models.QualityViolation) error
	ListByRun(ctx context.Context, runID models.ULID) ([]*models.QualityViolation, error)
	ListByProductVersion(ctx context.Context, productID models.ULID, version int) ([]*models.QualityViolation, error)
}
