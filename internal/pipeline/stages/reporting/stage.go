// Package reporting implements the stage that renders a human-readable
// CSV summary of chunk scores and policy violations.
package reporting

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmylchreest/corpusctl/internal/blobstore"
	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/pipeline/core"
	"github.com/jmylchreest/corpusctl/internal/pipeline/shared"
)

// StageID is the unique identifier for this stage.
const StageID = models.StageNameReporting

// StageName is the human-readable name for this stage.
const StageName = "Reporting"

// Stage renders report.csv summarizing scores and violations.
type Stage struct {
	shared.BaseStage
	blob   blobstore.Gateway
	logger *slog.Logger
}

// New creates a new reporting stage.
func New(blob blobstore.Gateway) *Stage {
	return &Stage{BaseStage: shared.NewBaseStage(StageID, StageName), blob: blob}
}

// NewConstructor returns a stage constructor for use with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		stage := New(deps.Blob)
		if deps.Logger != nil {
			stage.logger = deps.Logger.With("stage", StageID)
		}
		return stage
	}
}

// Execute renders and writes report.csv to the report bucket.
func (s *Stage) Execute(ctx context.Context, bb *core.RunBlackboard) (*core.StageResult, error) {
	result := shared.NewResult()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"chunk_id", "source_file", "section", "score"}); err != nil {
		return result, fmt.Errorf("writing report header: %w", err)
	}
	for _, c := range bb.Chunks {
		score := ""
		if c.Score != nil {
			score = strconv.FormatFloat(*c.Score, 'f', 4, 64)
		}
		if err := w.Write([]string{c.ChunkID, c.SourceFile, c.Section, score}); err != nil {
			return result, fmt.Errorf("writing report row: %w", err)
		}
	}

	if err := w.Write([]string{}); err != nil {
		return result, fmt.Errorf("writing report separator: %w", err)
	}
	if err := w.Write([]string{"rule_name", "severity", "message", "violation_rate"}); err != nil {
		return result, fmt.Errorf("writing violations header: %w", err)
	}
	for _, v := range bb.Violations {
		if err := w.Write([]string{v.RuleName, string(v.Severity), v.Message, strconv.FormatFloat(v.ViolationRate, 'f', 4, 64)}); err != nil {
			return result, fmt.Errorf("writing violation row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return result, fmt.Errorf("flushing report csv: %w", err)
	}

	key := fmt.Sprintf("%s/%s/%d/report.csv", bb.WorkspaceID, bb.ProductID, bb.Version)
	obj, err := s.blob.Put(ctx, blobstore.BucketReport, key, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return result, fmt.Errorf("writing report artifact: %w", err)
	}

	result.RecordsProcessed = len(bb.Chunks)
	result.Message = fmt.Sprintf("rendered report for %d chunks, %d violations", len(bb.Chunks), len(bb.Violations))
	result.Artifacts = append(result.Artifacts,
		core.NewArtifact(models.ArtifactTypeCSV, "report.csv", StageID).
			WithBlobLocation(obj.Bucket, obj.Key, obj.SizeBytes))

	return result, nil
}

var _ core.Stage = (*Stage)(nil)
