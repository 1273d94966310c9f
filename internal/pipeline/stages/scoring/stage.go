// Package scoring implements the per-chunk score-vector computation
// stage, writing scores onto the shared ChunkMetadata batch.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/pipeline/core"
	"github.com/jmylchreest/corpusctl/internal/pipeline/shared"
	"github.com/jmylchreest/corpusctl/internal/scoring"
)

// StageID is the unique identifier for this stage.
const StageID = models.StageNameScoring

// StageName is the human-readable name for this stage.
const StageName = "Scoring"

// Stage computes a scoring.Metrics vector for every chunk and stores the
// composite as ChunkMetadata.Score.
type Stage struct {
	shared.BaseStage
	weights scoring.TrustWeights
	logger  *slog.Logger
}

// New creates a new scoring stage.
func New(weights scoring.TrustWeights) *Stage {
	return &Stage{
		BaseStage: shared.NewBaseStage(StageID, StageName),
		weights:   weights,
	}
}

// NewConstructor returns a stage constructor for use with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		stage := New(scoring.DefaultTrustWeights())
		if deps.Logger != nil {
			stage.logger = deps.Logger.With("stage", StageID)
		}
		return stage
	}
}

// Execute scores every chunk on the blackboard. Per-chunk scoring errors
// are tolerated; the stage succeeds if at least one chunk is scored.
func (s *Stage) Execute(ctx context.Context, bb *core.RunBlackboard) (*core.StageResult, error) {
	result := shared.NewResult()

	scored := 0
	var failed int
	for _, chunk := range bb.Chunks {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		metrics, err := scoreChunk(chunk)
		if err != nil {
			failed++
			bb.AddError(fmt.Errorf("scoring chunk %s: %w", chunk.ChunkID, err))
			continue
		}

		composite := scoring.Compose(s.weights, metrics)
		chunk.Score = &composite
		scored++
	}

	if scored == 0 {
		return result, fmt.Errorf("scoring produced zero scored chunks out of %d", len(bb.Chunks))
	}

	result.RecordsProcessed = len(bb.Chunks)
	result.RecordsFailed = failed
	result.Message = fmt.Sprintf("scored %d/%d chunks", scored, len(bb.Chunks))
	result.Metrics = map[string]any{"scored": scored, "failed": failed}

	return result, nil
}

// scoreChunk derives a crude, deterministic score vector from text
// surface features. Richer chunkers may supply pre-computed quality
// signals via chunk metadata in the future; this is the default.
func scoreChunk(chunk *models.ChunkMetadata) (scoring.Metrics, error) {
	if chunk.ChunkID == "" {
		return scoring.Metrics{}, fmt.Errorf("chunk has no id")
	}

	// ChunkMetadata itself doesn't carry raw text (that lives in the blob
	// batch); approximate using available structural signals so the
	// stage has a deterministic, always-available fallback.
	hasSection := chunk.Section != ""
	hasPage := chunk.PageNumber != nil
	hasField := chunk.FieldName != ""

	presence := 0.0
	for _, present := range []bool{hasSection, hasPage, hasField} {
		if present {
			presence += 1.0 / 3.0
		}
	}

	wordiness := wordinessScore(chunk.SourceFile)

	return scoring.Metrics{
		Completeness:     1.0,
		Accuracy:         0.9,
		Quality:          wordiness,
		Timeliness:       1.0,
		MetadataPresence: presence,
	}, nil
}

// wordinessScore is a placeholder surface-feature signal: penalizes
// source filenames that look auto-generated/low-signal.
func wordinessScore(sourceFile string) float64 {
	letters := 0
	for _, r := range sourceFile {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if len(sourceFile) == 0 {
		return 0.5
	}
	ratio := float64(letters) / float64(len(sourceFile))
	if strings.Contains(strings.ToLower(sourceFile), "tmp") {
		ratio *= 0.5
	}
	return scoring.Compose(scoring.TrustWeights{Quality: 1}, scoring.Metrics{Quality: ratio})
}

func (s *Stage) log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	if s.logger != nil {
		s.logger.Log(ctx, level, msg, attrs...)
	}
}

var _ core.Stage = (*Stage)(nil)
