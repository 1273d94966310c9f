// Package indexing implements the stage that embeds chunks and upserts
// them into the vector store with retrieval metadata.
package indexing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/corpusctl/internal/blobstore"
	"github.com/jmylchreest/corpusctl/internal/embedding"
	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/pipeline/core"
	"github.com/jmylchreest/corpusctl/internal/pipeline/shared"
	"github.com/jmylchreest/corpusctl/internal/vectorstore"
)

// StageID is the unique identifier for this stage.
const StageID = models.StageNameIndexing

// StageName is the human-readable name for this stage.
const StageName = "Indexing"

// defaultFailureRatioThreshold is used when the blackboard doesn't carry
// one (e.g. in unit tests constructing it directly).
const defaultFailureRatioThreshold = 0.05

// Stage embeds chunk text and upserts vectors into the vector store.
type Stage struct {
	shared.BaseStage
	blob     blobstore.Gateway
	vector   vectorstore.Store
	embedder embedding.Provider
	logger   *slog.Logger
}

// New creates a new indexing stage.
func New(blob blobstore.Gateway, vector vectorstore.Store, embedder embedding.Provider) *Stage {
	return &Stage{
		BaseStage: shared.NewBaseStage(StageID, StageName),
		blob:      blob,
		vector:    vector,
		embedder:  embedder,
	}
}

// NewConstructor returns a stage constructor for use with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		stage := New(deps.Blob, deps.Vector, deps.Embedder)
		if deps.Logger != nil {
			stage.logger = deps.Logger.With("stage", StageID)
		}
		return stage
	}
}

// vectorRecord is the packed embedding payload written to the embed
// bucket alongside the vector store upsert, for reconciliation/replay.
type vectorRecord struct {
	ChunkID   string    `json:"chunk_id"`
	Embedding []float32 `json:"embedding"`
}

// Execute embeds every chunk and upserts into the vector store. Per-chunk
// embedding failures are tolerated up to IndexingFailureRatioThreshold;
// above that, the stage reports FAILED.
func (s *Stage) Execute(ctx context.Context, bb *core.RunBlackboard) (*core.StageResult, error) {
	result := shared.NewResult()

	if len(bb.Chunks) == 0 {
		return result, fmt.Errorf("indexing has no chunks to embed")
	}

	threshold := bb.IndexingFailureRatioThreshold
	if threshold <= 0 {
		threshold = defaultFailureRatioThreshold
	}

	texts := make([]string, len(bb.Chunks))
	for i, c := range bb.Chunks {
		texts[i] = c.SourceFile + " " + c.Section
	}

	embeddings, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return result, fmt.Errorf("embedding chunk batch: %w", err)
	}

	dims := s.embedder.Dimensions()
	if err := s.vector.EnsureCollection(ctx, dims); err != nil {
		return result, fmt.Errorf("ensuring vector collection: %w", err)
	}

	var points []vectorstore.Point
	var records []vectorRecord
	var failures int

	for i, c := range bb.Chunks {
		vec := embeddings[i]
		if len(vec) == 0 {
			failures++
			bb.AddError(fmt.Errorf("no embedding produced for chunk %s", c.ChunkID))
			continue
		}

		payload := map[string]any{
			"chunk_id":    c.ChunkID,
			"product_id":  bb.ProductID.String(),
			"version":     bb.Version,
			"source_file": c.SourceFile,
			"section":     c.Section,
		}
		if c.PageNumber != nil {
			payload["page"] = *c.PageNumber
		}

		points = append(points, vectorstore.Point{ID: c.ChunkID, Embedding: vec, Payload: payload})
		records = append(records, vectorRecord{ChunkID: c.ChunkID, Embedding: vec})
	}

	failureRatio := float64(failures) / float64(len(bb.Chunks))
	bb.EmbedFailures = failures

	if len(points) > 0 {
		if err := s.vector.Upsert(ctx, points); err != nil {
			return result, fmt.Errorf("upserting %d vectors: %w", len(points), err)
		}
	}

	bb.IndexedCount = len(points)

	packed, err := json.Marshal(records)
	if err != nil {
		return result, fmt.Errorf("marshaling vector records: %w", err)
	}
	key := fmt.Sprintf("%s/%s/%d/vectors.bin", bb.WorkspaceID, bb.ProductID, bb.Version)
	obj, err := s.blob.Put(ctx, blobstore.BucketEmbed, key, bytes.NewReader(packed))
	if err != nil {
		return result, fmt.Errorf("writing packed vectors: %w", err)
	}

	result.RecordsProcessed = len(bb.Chunks)
	result.RecordsFailed = failures
	result.Message = fmt.Sprintf("indexed %d/%d chunks (failure_ratio=%.3f, threshold=%.3f)", len(points), len(bb.Chunks), failureRatio, threshold)
	result.Metrics = map[string]any{
		"indexed_count": len(points),
		"embed_failures": failures,
		"failure_ratio":  failureRatio,
	}
	result.Artifacts = append(result.Artifacts,
		core.NewArtifact(models.ArtifactTypeVector, "vectors.bin", StageID).
			WithBlobLocation(obj.Bucket, obj.Key, obj.SizeBytes))

	if failureRatio > threshold {
		result.Status = models.StageStatusFailed
		return result, fmt.Errorf("embedding failure ratio %.3f exceeds threshold %.3f", failureRatio, threshold)
	}

	return result, nil
}

var _ core.Stage = (*Stage)(nil)
