// Package validatequality implements the stage that cross-checks
// indexing completeness (embedding success rate) against the chunk count,
// emitting vector-readiness metrics. Embedding dimensions are not checked.
package validatequality

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/pipeline/core"
	"github.com/jmylchreest/corpusctl/internal/pipeline/shared"
)

// StageID is the unique identifier for this stage.
const StageID = models.StageNameValidateQuality

// StageName is the human-readable name for this stage.
const StageName = "ValidateQuality"

// Stage cross-checks indexing completeness against the chunk count.
type Stage struct {
	shared.BaseStage
	logger *slog.Logger
}

// New creates a new validate_quality stage.
func New() *Stage {
	return &Stage{BaseStage: shared.NewBaseStage(StageID, StageName)}
}

// NewConstructor returns a stage constructor for use with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		stage := New()
		if deps.Logger != nil {
			stage.logger = deps.Logger.With("stage", StageID)
		}
		return stage
	}
}

// Execute computes the vector-readiness ratio (indexed / total chunks)
// and records it; this stage reports rather than re-enforces the
// threshold already checked by the indexing stage.
func (s *Stage) Execute(ctx context.Context, bb *core.RunBlackboard) (*core.StageResult, error) {
	result := shared.NewResult()

	total := len(bb.Chunks)
	if total == 0 {
		return result, fmt.Errorf("validate_quality has no chunks to cross-check")
	}

	readiness := float64(bb.IndexedCount) / float64(total)

	result.RecordsProcessed = total
	result.Message = fmt.Sprintf("vector readiness %.3f (%d/%d indexed, %d embed failures)", readiness, bb.IndexedCount, total, bb.EmbedFailures)
	result.Metrics = map[string]any{
		"vector_readiness": readiness,
		"indexed_count":    bb.IndexedCount,
		"chunk_count":      total,
		"embed_failures":   bb.EmbedFailures,
	}

	return result, nil
}

var _ core.Stage = (*Stage)(nil)
