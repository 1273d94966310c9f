// Package pipeline provides the composable pipeline architecture driving
// the fixed preprocess -> ... -> finalize stage DAG. Each stage
// implements the Stage interface and operates on a shared RunBlackboard.
//
// The pipeline is organized into several sub-packages:
//   - core: Orchestrator, interfaces, and base types
//   - shared: Utilities shared between stages
//   - stages/*: Individual stage implementations
package pipeline

import (
	"log/slog"

	"github.com/jmylchreest/corpusctl/internal/blobstore"
	"github.com/jmylchreest/corpusctl/internal/embedding"
	"github.com/jmylchreest/corpusctl/internal/pipeline/core"
	"github.com/jmylchreest/corpusctl/internal/pipeline/stages/fingerprint"
	"github.com/jmylchreest/corpusctl/internal/pipeline/stages/finalize"
	"github.com/jmylchreest/corpusctl/internal/pipeline/stages/indexing"
	"github.com/jmylchreest/corpusctl/internal/pipeline/stages/policy"
	"github.com/jmylchreest/corpusctl/internal/pipeline/stages/preprocess"
	"github.com/jmylchreest/corpusctl/internal/pipeline/stages/reporting"
	"github.com/jmylchreest/corpusctl/internal/pipeline/stages/scoring"
	"github.com/jmylchreest/corpusctl/internal/pipeline/stages/validatequality"
	"github.com/jmylchreest/corpusctl/internal/pipeline/stages/validation"
	"github.com/jmylchreest/corpusctl/internal/repository"
	"github.com/jmylchreest/corpusctl/internal/vectorstore"
)

// Re-export core types for convenience.
type (
	// Stage is a single step in the pipeline.
	Stage = core.Stage

	// RunBlackboard holds shared data between stages for one run.
	RunBlackboard = core.RunBlackboard

	// Result is the outcome of pipeline execution.
	Result = core.Result

	// StageResult is the outcome of a single stage.
	StageResult = core.StageResult

	// Orchestrator executes stages in sequence.
	Orchestrator = core.Orchestrator

	// OrchestratorFactory creates orchestrators.
	OrchestratorFactory = core.OrchestratorFactory

	// Factory creates orchestrators.
	Factory = core.Factory

	// Dependencies bundles stage dependencies.
	Dependencies = core.Dependencies

	// Config holds pipeline configuration.
	Config = core.Config

	// Builder provides fluent factory construction.
	Builder = core.Builder

	// Artifact represents stage output.
	Artifact = core.Artifact

	// ProgressReporter allows progress tracking.
	ProgressReporter = core.ProgressReporter

	// StageConstructor creates stages from dependencies.
	StageConstructor = core.StageConstructor
)

// Re-export errors.
var (
	ErrNoRawFiles           = core.ErrNoRawFiles
	ErrStageNotFound        = core.ErrStageNotFound
	ErrInvalidConfiguration = core.ErrInvalidConfiguration
	ErrRunCancelled         = core.ErrRunCancelled
)

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return core.NewBuilder()
}

// NewRunBlackboard creates a new run blackboard.
var NewRunBlackboard = core.NewRunBlackboard

// NewFactory creates a new pipeline factory with the given dependencies.
func NewFactory(deps *Dependencies) *Factory {
	return core.NewFactory(deps)
}

// NewDefaultFactory creates a factory with the standard 9-stage DAG
// registered in models.StageDAGOrder, using core.DefaultConfig() settings.
func NewDefaultFactory(
	runRepo repository.PipelineRunRepository,
	stageRepo repository.StageExecutionRepository,
	artifactRepo repository.ArtifactRepository,
	chunkRepo repository.ChunkMetadataRepository,
	ruleSetRepo repository.QualityRuleSetRepository,
	violationRepo repository.QualityViolationRepository,
	rawFileRepo repository.RawFileRepository,
	productRepo repository.ProductRepository,
	blob blobstore.Gateway,
	vector vectorstore.Store,
	embedder embedding.Provider,
	logger *slog.Logger,
) *Factory {
	deps := &Dependencies{
		RunRepo:       runRepo,
		StageRepo:     stageRepo,
		ArtifactRepo:  artifactRepo,
		ChunkRepo:     chunkRepo,
		RuleSetRepo:   ruleSetRepo,
		ViolationRepo: violationRepo,
		RawFileRepo:   rawFileRepo,
		ProductRepo:   productRepo,
		Blob:          blob,
		Vector:        vector,
		Embedder:      embedder,
		Logger:        logger,
		Config:        core.DefaultConfig(),
	}

	factory := NewFactory(deps)

	factory.RegisterStage(preprocess.NewConstructor())
	factory.RegisterStage(scoring.NewConstructor())
	factory.RegisterStage(fingerprint.NewConstructor())
	factory.RegisterStage(validation.NewConstructor())
	factory.RegisterStage(policy.NewConstructor())
	factory.RegisterStage(reporting.NewConstructor())
	factory.RegisterStage(indexing.NewConstructor())
	factory.RegisterStage(validatequality.NewConstructor())
	factory.RegisterStage(finalize.NewConstructor())

	return factory
}

// Stage IDs for reference.
const (
	StageIDPreprocess      = preprocess.StageID
	StageIDScoring         = scoring.StageID
	StageIDFingerprint     = fingerprint.StageID
	StageIDValidation      = validation.StageID
	StageIDPolicy          = policy.StageID
	StageIDReporting       = reporting.StageID
	StageIDIndexing        = indexing.StageID
	StageIDValidateQuality = validatequality.StageID
	StageIDFinalize        = finalize.StageID
)
