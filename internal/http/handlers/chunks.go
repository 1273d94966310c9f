package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/repository"
)

// maxChunkPageSize caps a single chunk listing page per spec.md §6.
const maxChunkPageSize = 500

// ChunksHandler handles chunk metadata drill-down queries.
type ChunksHandler struct {
	chunkRepo repository.ChunkMetadataRepository
}

// NewChunksHandler creates a new chunks handler.
func NewChunksHandler(chunkRepo repository.ChunkMetadataRepository) *ChunksHandler {
	return &ChunksHandler{chunkRepo: chunkRepo}
}

// Register registers the chunks route with the API.
func (h *ChunksHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listChunks",
		Method:      "GET",
		Path:        "/api/v1/chunks/{product_id}",
		Summary:     "List chunk metadata",
		Description: "Paginated chunk metadata drill-down for a product version, capped at 500 rows per page",
		Tags:        []string{"Chunks"},
	}, h.List)
}

// ListChunksInput is the input for listing chunk metadata.
type ListChunksInput struct {
	ProductID string `path:"product_id" doc:"Product ID (ULID)"`
	Version   int    `query:"version" doc:"Product version"`
	Section   string `query:"section" doc:"Filter by section"`
	Field     string `query:"field" doc:"Filter by field name"`
	Limit     int    `query:"limit" doc:"Page size, capped at 500" default:"100"`
	Offset    int    `query:"offset" doc:"Row offset"`
}

// ChunkResponse is the wire representation of a ChunkMetadata row.
type ChunkResponse struct {
	ChunkID    string   `json:"chunk_id"`
	SourceFile string   `json:"source_file,omitempty"`
	PageNumber *int     `json:"page_number,omitempty"`
	Section    string   `json:"section,omitempty"`
	FieldName  string   `json:"field_name,omitempty"`
	Score      *float64 `json:"score,omitempty"`
}

func chunkFromModel(c *models.ChunkMetadata) ChunkResponse {
	return ChunkResponse{
		ChunkID:    c.ChunkID,
		SourceFile: c.SourceFile,
		PageNumber: c.PageNumber,
		Section:    c.Section,
		FieldName:  c.FieldName,
		Score:      c.Score,
	}
}

// ListChunksOutput is the output for listing chunk metadata.
type ListChunksOutput struct {
	Body struct {
		Chunks     []ChunkResponse `json:"chunks"`
		TotalCount int64           `json:"total_count"`
	}
}

// List returns a page of chunk metadata for a product version, optionally
// filtered by section/field name.
func (h *ChunksHandler) List(ctx context.Context, input *ListChunksInput) (*ListChunksOutput, error) {
	productID, err := models.ParseULID(input.ProductID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid product_id", err)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > maxChunkPageSize {
		limit = maxChunkPageSize
	}

	chunks, total, err := h.chunkRepo.Query(ctx, repository.ChunkQuery{
		ProductID: productID,
		Version:   input.Version,
		Section:   input.Section,
		FieldName: input.Field,
		Limit:     limit,
		Offset:    input.Offset,
	})
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to query chunk metadata", err)
	}

	resp := &ListChunksOutput{}
	resp.Body.Chunks = make([]ChunkResponse, 0, len(chunks))
	for _, c := range chunks {
		resp.Body.Chunks = append(resp.Body.Chunks, chunkFromModel(c))
	}
	resp.Body.TotalCount = total
	return resp, nil
}
