package core

import (
	"log/slog"

	"github.com/jmylchreest/corpusctl/internal/blobstore"
	"github.com/jmylchreest/corpusctl/internal/embedding"
	"github.com/jmylchreest/corpusctl/internal/repository"
	"github.com/jmylchreest/corpusctl/internal/vectorstore"
)

// Dependencies bundles everything pipeline stages need, constructed once
// by the Builder and threaded into every StageConstructor. This reduces
// parameter count and makes dependency injection explicit rather than via
// process-wide singletons.
type Dependencies struct {
	RunRepo       repository.PipelineRunRepository
	StageRepo     repository.StageExecutionRepository
	ArtifactRepo  repository.ArtifactRepository
	ChunkRepo     repository.ChunkMetadataRepository
	RuleSetRepo   repository.QualityRuleSetRepository
	ViolationRepo repository.QualityViolationRepository
	RawFileRepo   repository.RawFileRepository
	ProductRepo   repository.ProductRepository
	Blob          blobstore.Gateway
	Vector        vectorstore.Store
	Embedder      embedding.Provider
	Logger        *slog.Logger
	Config        Config
}

// StageConstructor is a function that creates a stage given dependencies.
type StageConstructor func(deps *Dependencies) Stage

// Factory creates configured Orchestrator instances with all registered
// stages, executed in registration order (pipeline.NewDefaultFactory
// registers them in models.StageDAGOrder).
type Factory struct {
	deps              *Dependencies
	stageConstructors []StageConstructor
}

// NewFactory creates a new pipeline Factory.
func NewFactory(deps *Dependencies) *Factory {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Factory{
		deps:              deps,
		stageConstructors: make([]StageConstructor, 0),
	}
}

// RegisterStage adds a stage constructor to the factory.
func (f *Factory) RegisterStage(constructor StageConstructor) {
	f.stageConstructors = append(f.stageConstructors, constructor)
}

// Create builds an Orchestrator with all registered stages wired to bb.
func (f *Factory) Create(bb *RunBlackboard) (*Orchestrator, error) {
	stages := make([]Stage, 0, len(f.stageConstructors))
	for _, constructor := range f.stageConstructors {
		stages = append(stages, constructor(f.deps))
	}

	return NewOrchestrator(stages, f.deps, bb), nil
}

// OrchestratorFactory defines the interface for creating orchestrators.
type OrchestratorFactory interface {
	Create(bb *RunBlackboard) (*Orchestrator, error)
}

var _ OrchestratorFactory = (*Factory)(nil)
