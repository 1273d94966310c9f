// Package fingerprint implements the stage that aggregates per-chunk
// scores into a product-level ReadinessFingerprint with a composite
// AI_Trust_Score.
package fingerprint

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
	"github.com/jmylchreest/corpusctl/internal/scoring"
)

// StageID is the unique identifier for this stage.
const StageID = models.StageNameFingerprint

// StageName is the human-readable name for this stage.
const StageName = "Fingerprint"

// ReadinessFingerprint is the JSON artifact produced by this stage,
// summarizing a product version's retrieval readiness.
type ReadinessFingerprint struct {
	ProductID     string    `json:"product_id"`
	Version       int       `json:"version"`
	ChunkCount    int       `json:"chunk_count"`
	AITrustScore  float64   `json:"ai_trust_score"`
	Completeness  float64   `json:"completeness"`
	Accuracy      float64   `json:"accuracy"`
	Quality       float64   `json:"quality"`
	Timeliness    float64   `json:"timeliness"`
	ComputedAt    time.Time `json:"computed_at"`
}

// Stage aggregates chunk scores into a ReadinessFingerprint artifact.
type Stage struct {
	shared.BaseStage
	blob    blobstore.Gateway
	weights scoring.TrustWeights
	logger  *slog.Logger
}

// New creates a new fingerprint stage.
func New(blob blobstore.Gateway, weights scoring.TrustWeights) *Stage {
	return &Stage{
		BaseStage: shared.NewBaseStage(StageID, StageName),
		blob:      blob,
		weights:   weights,
	}
}

// NewConstructor returns a stage constructor for use with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		stage := New(deps.Blob, scoring.DefaultTrustWeights())
		if deps.Logger != nil {
			stage.logger = deps.Logger.With("stage", StageID)
		}
		return stage
	}
}

// Execute aggregates every chunk's score into a single composite and
// writes the fingerprint JSON artifact.
func (s *Stage) Execute(ctx context.Context, bb *core.RunBlackboard) (*core.StageResult, error) {
	result := shared.NewResult()

	var metricsList []scoring.Metrics
	var skipped int
	for _, chunk := range bb.Chunks {
		if chunk.Score == nil {
			skipped++
			continue
		}
		metricsList = append(metricsList, scoring.Metrics{
			Completeness:     1.0,
			Accuracy:         *chunk.Score,
			Quality:          *chunk.Score,
			Timeliness:       1.0,
			MetadataPresence: *chunk.Score,
		})
	}

	if len(metricsList) == 0 {
		return result, fmt.Errorf("fingerprint found zero scored chunks out of %d", len(bb.Chunks))
	}

	aggregate := scoring.Aggregate(metricsList)
	trustScore := scoring.Compose(s.weights, aggregate)
	bb.FingerprintScore = trustScore

	fp := ReadinessFingerprint{
		ProductID:    bb.ProductID.String(),
		Version:      bb.Version,
		ChunkCount:   len(bb.Chunks),
		AITrustScore: trustScore,
		Completeness: aggregate.Completeness,
		Accuracy:     aggregate.Accuracy,
		Quality:      aggregate.Quality,
		Timeliness:   aggregate.Timeliness,
		ComputedAt:   time.Now().UTC(),
	}

	payload, err := json.Marshal(fp)
	if err != nil {
		return result, fmt.Errorf("marshaling fingerprint: %w", err)
	}

	key := fmt.Sprintf("%s/%s/%d/fingerprint.json", bb.WorkspaceID, bb.ProductID, bb.Version)
	obj, err := s.blob.Put(ctx, blobstore.BucketReport, key, bytes.NewReader(payload))
	if err != nil {
		return result, fmt.Errorf("writing fingerprint artifact: %w", err)
	}

	result.RecordsProcessed = len(metricsList)
	result.RecordsFailed = skipped
	result.Message = fmt.Sprintf("trust_score=%.3f over %d chunks", trustScore, len(metricsList))
	result.Metrics = map[string]any{"ai_trust_score": trustScore, "skipped_chunks": skipped}
	result.Artifacts = append(result.Artifacts,
		core.NewArtifact(models.ArtifactTypeJSON, "fingerprint.json", StageID).
			WithBlobLocation(obj.Bucket, obj.Key, obj.SizeBytes).
			WithMetadata("ai_trust_score", trustScore))

	return result, nil
}

var _ core.Stage = (*Stage)(nil)
