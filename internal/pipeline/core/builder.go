package core

import (
	"log/slog"

	"github.com/jmylchreest/corpusctl/internal/blobstore"
	"github.com/jmylchreest/corpusctl/internal/embedding"
	"github.com/jmylchreest/corpusctl/internal/repository"
	"github.com/jmylchreest/corpusctl/internal/vectorstore"
)

// Config holds pipeline configuration options. Its fields mirror
// config.PipelineConfig, but they are set only through DefaultConfig or
// Builder.WithConfig; nothing copies the loaded config.PipelineConfig
// into it.
type Config struct {
	StageTimeoutSeconds        int
	IndexingFailureRatioThresh float64
	EnableGCHints              bool
}

// DefaultConfig returns a Config with default settings.
func DefaultConfig() Config {
	return Config{
		StageTimeoutSeconds:        3600,
		IndexingFailureRatioThresh: 0.05,
		EnableGCHints:              true,
	}
}

// Builder provides a fluent interface for constructing a Factory.
type Builder struct {
	runRepo      repository.PipelineRunRepository
	stageRepo    repository.StageExecutionRepository
	artifactRepo repository.ArtifactRepository
	chunkRepo    repository.ChunkMetadataRepository
	ruleSetRepo  repository.QualityRuleSetRepository
	violationRepo repository.QualityViolationRepository
	rawFileRepo  repository.RawFileRepository
	productRepo  repository.ProductRepository
	blob         blobstore.Gateway
	vector       vectorstore.Store
	embedder     embedding.Provider
	logger       *slog.Logger
	config       Config
}

// NewBuilder creates a new pipeline Builder.
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithPipelineRunRepository(repo repository.PipelineRunRepository) *Builder {
	b.runRepo = repo
	return b
}

func (b *Builder) WithStageExecutionRepository(repo repository.StageExecutionRepository) *Builder {
	b.stageRepo = repo
	return b
}

func (b *Builder) WithArtifactRepository(repo repository.ArtifactRepository) *Builder {
	b.artifactRepo = repo
	return b
}

func (b *Builder) WithChunkMetadataRepository(repo repository.ChunkMetadataRepository) *Builder {
	b.chunkRepo = repo
	return b
}

func (b *Builder) WithQualityRuleSetRepository(repo repository.QualityRuleSetRepository) *Builder {
	b.ruleSetRepo = repo
	return b
}

func (b *Builder) WithQualityViolationRepository(repo repository.QualityViolationRepository) *Builder {
	b.violationRepo = repo
	return b
}

func (b *Builder) WithRawFileRepository(repo repository.RawFileRepository) *Builder {
	b.rawFileRepo = repo
	return b
}

func (b *Builder) WithProductRepository(repo repository.ProductRepository) *Builder {
	b.productRepo = repo
	return b
}

func (b *Builder) WithBlobGateway(gw blobstore.Gateway) *Builder {
	b.blob = gw
	return b
}

func (b *Builder) WithVectorStore(store vectorstore.Store) *Builder {
	b.vector = store
	return b
}

func (b *Builder) WithEmbeddingProvider(provider embedding.Provider) *Builder {
	b.embedder = provider
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithConfig(config Config) *Builder {
	b.config = config
	return b
}

// Build creates a Factory with the configured settings. This does not
// register stages - use RegisterStage on the returned Factory for that.
func (b *Builder) Build() (*Factory, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	deps := &Dependencies{
		RunRepo:       b.runRepo,
		StageRepo:     b.stageRepo,
		ArtifactRepo:  b.artifactRepo,
		ChunkRepo:     b.chunkRepo,
		RuleSetRepo:   b.ruleSetRepo,
		ViolationRepo: b.violationRepo,
		RawFileRepo:   b.rawFileRepo,
		ProductRepo:   b.productRepo,
		Blob:          b.blob,
		Vector:        b.vector,
		Embedder:      b.embedder,
		Logger:        b.logger,
		Config:        b.config,
	}

	return NewFactory(deps), nil
}

func (b *Builder) validate() error {
	if b.runRepo == nil {
		return NewConfigurationError("runRepo", "pipeline run repository is required")
	}
	if b.stageRepo == nil {
		return NewConfigurationError("stageRepo", "stage execution repository is required")
	}
	if b.blob == nil {
		return NewConfigurationError("blob", "blob store gateway is required")
	}
	return nil
}

// Config returns the current configuration.
func (b *Builder) Config() Config {
	return b.config
}
