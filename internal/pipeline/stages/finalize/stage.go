// Package finalize implements the terminal stage: marking RawFiles
// PROCESSED, evaluating Product.promoted_version candidacy, and writing
// the run summary. This stage must never fail; it settles state.
package finalize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/corpusctl/internal/blobstore"
	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/pipeline/core"
	"github.com/jmylchreest/corpusctl/internal/pipeline/shared"
	"github.com/jmylchreest/corpusctl/internal/repository"
)

// StageID is the unique identifier for this stage.
const StageID = models.StageNameFinalize

// StageName is the human-readable name for this stage.
const StageName = "Finalize"

// RunSummary is the JSON artifact summarizing a finished run.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	ProductID    string    `json:"product_id"`
	Version      int       `json:"version"`
	ChunkCount   int       `json:"chunk_count"`
	IndexedCount int       `json:"indexed_count"`
	PolicyStatus string    `json:"policy_status"`
	AITrustScore float64   `json:"ai_trust_score"`
	FinalizedAt  time.Time `json:"finalized_at"`
}

// Stage settles terminal state for a successful run.
type Stage struct {
	shared.BaseStage
	rawFileRepo repository.RawFileRepository
	productRepo repository.ProductRepository
	chunkRepo   repository.ChunkMetadataRepository
	blob        blobstore.Gateway
	logger      *slog.Logger
}

// New creates a new finalize stage.
func New(rawFileRepo repository.RawFileRepository, productRepo repository.ProductRepository, chunkRepo repository.ChunkMetadataRepository, blob blobstore.Gateway) *Stage {
	return &Stage{
		BaseStage:   shared.NewBaseStage(StageID, StageName),
		rawFileRepo: rawFileRepo,
		productRepo: productRepo,
		chunkRepo:   chunkRepo,
		blob:        blob,
	}
}

// NewConstructor returns a stage constructor for use with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		stage := New(deps.RawFileRepo, deps.ProductRepo, deps.ChunkRepo, deps.Blob)
		if deps.Logger != nil {
			stage.logger = deps.Logger.With("stage", StageID)
		}
		return stage
	}
}

// Execute marks raw files processed, considers promotion candidacy, and
// writes the run summary artifact. Errors here are logged, not returned,
// per spec.md §4.4's "finalize must not fail" partial failure policy.
func (s *Stage) Execute(ctx context.Context, bb *core.RunBlackboard) (*core.StageResult, error) {
	result := shared.NewResult()

	if s.rawFileRepo != nil {
		if err := s.rawFileRepo.MarkProcessed(ctx, bb.ProductID, bb.Version); err != nil {
			s.log(ctx, slog.LevelError, "marking raw files processed failed", slog.String("error", err.Error()))
			bb.AddError(fmt.Errorf("marking raw files processed: %w", err))
		}
	}

	if s.chunkRepo != nil && len(bb.Chunks) > 0 {
		if err := s.chunkRepo.UpsertBatch(ctx, bb.Chunks); err != nil {
			s.log(ctx, slog.LevelError, "persisting chunk metadata failed", slog.String("error", err.Error()))
			bb.AddError(fmt.Errorf("persisting chunk metadata: %w", err))
		}
	}

	if s.productRepo != nil && bb.Product != nil {
		s.considerPromotion(ctx, bb)
	}

	summary := RunSummary{
		RunID:        bb.RunID.String(),
		ProductID:    bb.ProductID.String(),
		Version:      bb.Version,
		ChunkCount:   len(bb.Chunks),
		IndexedCount: bb.IndexedCount,
		PolicyStatus: string(bb.PolicyStatus),
		AITrustScore: bb.FingerprintScore,
		FinalizedAt:  time.Now().UTC(),
	}

	if s.blob != nil {
		if payload, err := json.Marshal(summary); err == nil {
			key := fmt.Sprintf("%s/%s/%d/run_summary.json", bb.WorkspaceID, bb.ProductID, bb.Version)
			if obj, err := s.blob.Put(ctx, blobstore.BucketReport, key, bytes.NewReader(payload)); err == nil {
				result.Artifacts = append(result.Artifacts,
					core.NewArtifact(models.ArtifactTypeJSON, "run_summary.json", StageID).
						WithBlobLocation(obj.Bucket, obj.Key, obj.SizeBytes))
			} else {
				s.log(ctx, slog.LevelWarn, "writing run summary failed", slog.String("error", err.Error()))
			}
		}
	}

	result.RecordsProcessed = len(bb.Chunks)
	result.Message = fmt.Sprintf("finalized version %d (%d chunks, %d indexed)", bb.Version, len(bb.Chunks), bb.IndexedCount)

	return result, nil
}

// considerPromotion promotes this version unless its policy_status is
// failed; a warnings verdict does not block promotion.
func (s *Stage) considerPromotion(ctx context.Context, bb *core.RunBlackboard) {
	if bb.PolicyStatus == models.PolicyStatusFailed {
		return
	}
	promoted := bb.Version
	bb.Product.PromotedVersion = &promoted
	bb.Product.Status = models.ProductStatusReady
	if err := s.productRepo.Update(ctx, bb.Product); err != nil {
		s.log(ctx, slog.LevelWarn, "updating product promotion failed", slog.String("error", err.Error()))
	}
}

func (s *Stage) log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	if s.logger != nil {
		s.logger.Log(ctx, level, msg, attrs...)
	}
}

var _ core.Stage = (*Stage)(nil)
