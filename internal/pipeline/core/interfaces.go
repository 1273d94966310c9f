// Package core provides the pipeline orchestration framework driving the
// fixed 9-stage DAG: preprocess → scoring → fingerprint → validation →
// policy → reporting → indexing → validate_quality → finalize.
package core

import (
	"context"
	"time"

	"github.com/jmylchreest/corpusctl/internal/blobstore"
	"github.com/jmylchreest/corpusctl/internal/embedding"
	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/vectorstore"
)

// Stage represents a single step in the pipeline DAG. Each stage receives
// the shared RunBlackboard and produces a StageResult; stage order is
// fixed by models.StageDAGOrder, not discovered at runtime.
type Stage interface {
	// ID returns the stage's stable name (e.g. models.StageNamePreprocess).
	ID() models.StageName

	// Name returns a human-readable name for logging/UI.
	Name() string

	// Execute performs the stage's work against the shared blackboard.
	Execute(ctx context.Context, bb *RunBlackboard) (*StageResult, error)

	// Cleanup performs any necessary cleanup after execution, called
	// regardless of success or failure.
	Cleanup(ctx context.Context) error
}

// ProgressReporter allows stages to report execution progress.
type ProgressReporter interface {
	ReportProgress(ctx context.Context, stage models.StageName, progress float64, message string)
	ReportItemProgress(ctx context.Context, stage models.StageName, current, total int, item string)
}

// RunBlackboard holds all data shared between pipeline stages for a single
// PipelineRun execution, generalized from the teacher's single-proxy
// State to the product/version-scoped run of spec.md §4.4.
type RunBlackboard struct {
	WorkspaceID models.ULID
	ProductID   models.ULID
	RunID       models.ULID
	Version     int

	Product  *models.Product
	RawFiles []*models.RawFile
	RuleSet  *models.QualityRuleSet

	Blob     blobstore.Gateway
	Vector   vectorstore.Store
	Embedder embedding.Provider

	// ChunkingConfig holds a raw JSON playbook. The pipeline neither sets
	// nor reads it; Product.ChunkingConfig is not copied here.
	ChunkingConfig string

	ProgressReporter ProgressReporter

	StartTime time.Time
	Errors    []error

	// Chunks accumulates ChunkMetadata produced by preprocess and enriched
	// by subsequent stages.
	Chunks []*models.ChunkMetadata

	// Violations accumulates QualityViolations produced by the policy stage.
	Violations []*models.QualityViolation

	// FingerprintScore is the AI_Trust_Score composite computed by fingerprint.
	FingerprintScore float64

	// PolicyStatus is the business verdict computed by the policy stage.
	PolicyStatus models.PolicyStatus

	// IndexedCount / EmbedFailures track the indexing stage's completeness.
	IndexedCount  int
	EmbedFailures int

	// IndexingFailureRatioThreshold overrides the indexing stage's 0.05
	// default when positive. NewRunBlackboard leaves it zero, and it is not
	// filled from config.PipelineConfig.
	IndexingFailureRatioThreshold float64

	Artifacts map[models.StageName][]Artifact
	Metadata  map[string]any
}

// NewRunBlackboard creates a blackboard for the given run.
func NewRunBlackboard(workspaceID, productID, runID models.ULID, version int) *RunBlackboard {
	return &RunBlackboard{
		WorkspaceID: workspaceID,
		ProductID:   productID,
		RunID:       runID,
		Version:     version,
		StartTime:   time.Now(),
		Errors:      make([]error, 0),
		Chunks:      make([]*models.ChunkMetadata, 0),
		Violations:  make([]*models.QualityViolation, 0),
		Artifacts:   make(map[models.StageName][]Artifact),
		Metadata:    make(map[string]any),
	}
}

// AddError adds a non-fatal, per-item error to the blackboard. Per
// spec.md §7's propagation policy, these are aggregated into
// metrics.errors[] and never propagate as stage-level failures on their
// own.
func (bb *RunBlackboard) AddError(err error) {
	if err != nil {
		bb.Errors = append(bb.Errors, err)
	}
}

// HasErrors returns true if any non-fatal errors were recorded.
func (bb *RunBlackboard) HasErrors() bool {
	return len(bb.Errors) > 0
}

// Duration returns the elapsed time since the run started.
func (bb *RunBlackboard) Duration() time.Duration {
	return time.Since(bb.StartTime)
}

// SetMetadata stores a value in the metadata map.
func (bb *RunBlackboard) SetMetadata(key string, value any) {
	bb.Metadata[key] = value
}

// GetMetadata retrieves a value from the metadata map.
func (bb *RunBlackboard) GetMetadata(key string) (any, bool) {
	v, ok := bb.Metadata[key]
	return v, ok
}

// AddArtifact records an artifact produced by a stage.
func (bb *RunBlackboard) AddArtifact(stage models.StageName, artifact Artifact) {
	bb.Artifacts[stage] = append(bb.Artifacts[stage], artifact)
}

// GetArtifacts returns all artifacts produced by a stage.
func (bb *RunBlackboard) GetArtifacts(stage models.StageName) []Artifact {
	return bb.Artifacts[stage]
}

// StageResult contains the outcome of a single stage execution.
type StageResult struct {
	// Status is the terminal StageExecution status this result maps to.
	Status models.StageStatus

	// Artifacts produced by this stage.
	Artifacts []Artifact

	// RecordsProcessed is the count of items processed (chunks, files, etc).
	RecordsProcessed int

	// RecordsFailed is the count of per-item failures tolerated within
	// the stage (never propagated as a stage failure on their own).
	RecordsFailed int

	// Duration is the execution time.
	Duration time.Duration

	// Message is an optional human-readable summary.
	Message string

	// Metrics is serialized verbatim into StageExecution.Metrics (JSON).
	Metrics map[string]any
}

// Result represents the outcome of a full pipeline run execution.
type Result struct {
	Status       models.RunStatus
	Duration     time.Duration
	StageResults map[models.StageName]*StageResult
	Errors       []error
}
