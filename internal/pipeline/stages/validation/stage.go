// Package validation implements generic structural checks over the
// chunk batch: schema conformance, encoding, and null-byte scanning.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/pipeline/core"
	"github.com/jmylchreest/corpusctl/internal/pipeline/shared"
)

// StageID is the unique identifier for this stage.
const StageID = models.StageNameValidation

// StageName is the human-readable name for this stage.
const StageName = "Validation"

// Stage performs structural validation over chunk metadata, flagging
// encoding and schema problems as per-chunk failures.
type Stage struct {
	shared.BaseStage
	logger *slog.Logger
}

// New creates a new validation stage.
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

// Execute runs structural checks on every chunk. Per-chunk errors are
// tolerated and recorded as metrics; the stage succeeds if at least one
// chunk passes.
func (s *Stage) Execute(ctx context.Context, bb *core.RunBlackboard) (*core.StageResult, error) {
	result := shared.NewResult()

	var valid, invalid int
	for _, chunk := range bb.Chunks {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if err := validateChunk(chunk); err != nil {
			invalid++
			bb.AddError(fmt.Errorf("validating chunk %s: %w", chunk.ChunkID, err))
			continue
		}
		valid++
	}

	if valid == 0 {
		return result, fmt.Errorf("validation found zero structurally valid chunks out of %d", len(bb.Chunks))
	}

	result.RecordsProcessed = len(bb.Chunks)
	result.RecordsFailed = invalid
	result.Message = fmt.Sprintf("%d/%d chunks structurally valid", valid, len(bb.Chunks))
	result.Metrics = map[string]any{"valid": valid, "invalid": invalid}

	return result, nil
}

// validateChunk checks required fields are present and that text-bearing
// fields are valid UTF-8 with no embedded null bytes.
func validateChunk(chunk *models.ChunkMetadata) error {
	if chunk.ChunkID == "" {
		return fmt.Errorf("missing chunk_id")
	}
	if chunk.ProductID.IsZero() {
		return fmt.Errorf("missing product_id")
	}
	for _, field := range []string{chunk.SourceFile, chunk.Section, chunk.FieldName} {
		if !utf8.ValidString(field) {
			return fmt.Errorf("field is not valid utf-8")
		}
		for _, r := range field {
			if r == 0 {
				return fmt.Errorf("field contains a null byte")
			}
		}
	}
	return nil
}

var _ core.Stage = (*Stage)(nil)
