// Package preprocess implements the first pipeline stage: fetching raw
// files, verifying blob integrity, and chunking them with a fixed
// sentence-grouping chunker. The product's chunking_config is not read.
package preprocess

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jmylchreest/corpusctl/internal/blobstore"
	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/pipeline/core"
	"github.com/jmylchreest/corpusctl/internal/pipeline/shared"
	"github.com/jmylchreest/corpusctl/internal/repository"
)

// errETagMismatch marks a processFile failure caused by a blob ETag
// mismatch, distinct from other failures (missing blob, read error) that
// drop the file from the batch without changing its catalog status.
var errETagMismatch = errors.New("blob etag mismatch")

// StageID is the unique identifier for this stage.
const StageID = models.StageNamePreprocess

// StageName is the human-readable name for this stage.
const StageName = "Preprocess"

// maxChunkRunes bounds the naive sentence-grouping chunker. It is fixed;
// no per-product setting overrides it.
const maxChunkRunes = 1200

var sentenceSplitter = regexp.MustCompile(`(?s)(.*?[.!?])\s+`)

// Chunk is the raw text/metadata a chunker emits before scoring.
type Chunk struct {
	ChunkID    string `json:"chunk_id"`
	SourceFile string `json:"source_file"`
	PageNumber *int   `json:"page_number,omitempty"`
	Section    string `json:"section,omitempty"`
	Text       string `json:"text"`
}

// Stage fetches, verifies, and chunks raw files for (product, version).
type Stage struct {
	shared.BaseStage
	blob        blobstore.Gateway
	rawFileRepo repository.RawFileRepository
	logger      *slog.Logger
}

// New creates a new preprocess stage.
func New(blob blobstore.Gateway, rawFileRepo repository.RawFileRepository) *Stage {
	return &Stage{
		BaseStage:   shared.NewBaseStage(StageID, StageName),
		blob:        blob,
		rawFileRepo: rawFileRepo,
	}
}

// NewConstructor returns a stage constructor for use with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		stage := New(deps.Blob, deps.RawFileRepo)
		if deps.Logger != nil {
			stage.logger = deps.Logger.With("stage", StageID)
		}
		return stage
	}
}

// Execute fetches each RawFile, verifies its blob ETag, chunks the
// content, and writes the chunk batch to the clean bucket. Per-file
// failures are tolerated; the stage only fails if zero chunks result.
func (s *Stage) Execute(ctx context.Context, bb *core.RunBlackboard) (*core.StageResult, error) {
	result := shared.NewResult()

	if len(bb.RawFiles) == 0 {
		return result, core.ErrNoRawFiles
	}

	var allChunks []Chunk
	var droppedFiles int

	for _, rf := range bb.RawFiles {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		chunks, err := s.processFile(ctx, rf)
		if err != nil {
			droppedFiles++
			bb.AddError(fmt.Errorf("preprocessing %s: %w", rf.FileStem, err))
			s.log(ctx, slog.LevelWarn, "dropping raw file from batch",
				slog.String("file_stem", rf.FileStem), slog.String("error", err.Error()))
			if errors.Is(err, errETagMismatch) && s.rawFileRepo != nil {
				if markErr := s.rawFileRepo.MarkFailed(ctx, rf.ID, err.Error()); markErr != nil {
					s.log(ctx, slog.LevelError, "failed to mark raw file FAILED after etag mismatch",
						slog.String("file_stem", rf.FileStem), slog.String("error", markErr.Error()))
				}
			}
			continue
		}
		allChunks = append(allChunks, chunks...)
	}

	if len(allChunks) == 0 {
		return result, fmt.Errorf("preprocess produced zero chunks from %d raw files", len(bb.RawFiles))
	}

	payload, err := json.Marshal(allChunks)
	if err != nil {
		return result, fmt.Errorf("marshaling chunk batch: %w", err)
	}

	key := fmt.Sprintf("%s/%s/%d/chunks.jsonl", bb.WorkspaceID, bb.ProductID, bb.Version)
	obj, err := s.blob.Put(ctx, blobstore.BucketClean, key, bytes.NewReader(payload))
	if err != nil {
		return result, fmt.Errorf("writing chunk batch to clean bucket: %w", err)
	}

	for _, c := range allChunks {
		bb.Chunks = append(bb.Chunks, &models.ChunkMetadata{
			ProductID:     bb.ProductID,
			Version:       bb.Version,
			ChunkID:       c.ChunkID,
			SourceFile:    c.SourceFile,
			PageNumber:    c.PageNumber,
			Section:       c.Section,
			ContentLength: len([]rune(c.Text)),
		})
	}

	result.RecordsProcessed = len(bb.RawFiles)
	result.RecordsFailed = droppedFiles
	result.Message = fmt.Sprintf("chunked %d files into %d chunks (%d dropped)", len(bb.RawFiles)-droppedFiles, len(allChunks), droppedFiles)
	result.Metrics = map[string]any{
		"chunk_count":   len(allChunks),
		"dropped_files": droppedFiles,
	}
	result.Artifacts = append(result.Artifacts,
		core.NewArtifact(models.ArtifactTypeJSONL, "chunks.jsonl", StageID).
			WithBlobLocation(obj.Bucket, obj.Key, obj.SizeBytes))

	return result, nil
}

// processFile verifies the raw file's blob exists with a matching ETag,
// then chunks its content.
func (s *Stage) processFile(ctx context.Context, rf *models.RawFile) ([]Chunk, error) {
	head, err := s.blob.Head(ctx, rf.BlobBucket, rf.BlobKey)
	if err != nil {
		return nil, fmt.Errorf("head check: %w", err)
	}
	if rf.ETag != "" && head.ETag != rf.ETag {
		return nil, fmt.Errorf("etag mismatch: catalog=%s blob=%s: %w", rf.ETag, head.ETag, errETagMismatch)
	}

	rc, err := s.blob.Get(ctx, rf.BlobBucket, rf.BlobKey)
	if err != nil {
		return nil, fmt.Errorf("fetching blob: %w", err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, fmt.Errorf("reading blob: %w", err)
	}

	return chunkText(rf.FileStem, buf.String()), nil
}

// chunkText applies a sentence-grouping split bounded by maxChunkRunes.
// It is the only chunker the stage uses; no playbook is resolved or
// applied.
func chunkText(sourceFile, text string) []Chunk {
	var chunks []Chunk
	var current strings.Builder
	idx := 0

	flush := func() {
		trimmed := strings.TrimSpace(current.String())
		if trimmed == "" {
			return
		}
		chunks = append(chunks, Chunk{
			ChunkID:    chunkID(sourceFile, idx, trimmed),
			SourceFile: sourceFile,
			Text:       trimmed,
		})
		idx++
		current.Reset()
	}

	remaining := text
	for _, m := range sentenceSplitter.FindAllString(text, -1) {
		remaining = strings.TrimPrefix(remaining, m)
		if current.Len()+len(m) > maxChunkRunes {
			flush()
		}
		current.WriteString(m)
	}
	current.WriteString(remaining)
	flush()

	return chunks
}

func chunkID(sourceFile string, idx int, text string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", sourceFile, idx, text)))
	return hex.EncodeToString(h[:])[:32]
}

func (s *Stage) log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	if s.logger != nil {
		s.logger.Log(ctx, level, msg, attrs...)
	}
}

// Ensure Stage implements core.Stage.
var _ core.Stage = (*Stage)(nil)
