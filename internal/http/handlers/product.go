package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"gorm.io/gorm"

	"github.com/jmylchreest/corpusctl/internal/corpuserrors"
	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/repository"
)

// ProductHandler handles product CRUD endpoints (spec.md §6).
type ProductHandler struct {
	productRepo repository.ProductRepository
	runRepo     repository.PipelineRunRepository
}

// NewProductHandler creates a new product handler.
func NewProductHandler(productRepo repository.ProductRepository, runRepo repository.PipelineRunRepository) *ProductHandler {
	return &ProductHandler{productRepo: productRepo, runRepo: runRepo}
}

// Register registers the product routes with the API.
func (h *ProductHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "createProduct",
		Method:      "POST",
		Path:        "/api/v1/products",
		Summary:     "Create product",
		Description: "Creates a new product within a workspace",
		Tags:        []string{"Products"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "listProducts",
		Method:      "GET",
		Path:        "/api/v1/products",
		Summary:     "List products",
		Description: "Lists products for a workspace",
		Tags:        []string{"Products"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getProduct",
		Method:      "GET",
		Path:        "/api/v1/products/{id}",
		Summary:     "Get product",
		Description: "Returns product detail including chunking config",
		Tags:        []string{"Products"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "updateProduct",
		Method:      "PUT",
		Path:        "/api/v1/products/{id}",
		Summary:     "Update product",
		Description: "Updates name, description, and chunking config",
		Tags:        []string{"Products"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteProduct",
		Method:      "DELETE",
		Path:        "/api/v1/products/{id}",
		Summary:     "Delete product",
		Description: "Cascade-deletes a product; fails if a run is active",
		Tags:        []string{"Products"},
	}, h.Delete)
}

// ProductResponse is the wire representation of a Product.
type ProductResponse struct {
	ID              string  `json:"id"`
	WorkspaceID     string  `json:"workspace_id"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	Status          string  `json:"status"`
	CurrentVersion  int     `json:"current_version"`
	PromotedVersion *int    `json:"promoted_version,omitempty"`
	ChunkingConfig  string  `json:"chunking_config,omitempty"`
}

func productFromModel(p *models.Product) ProductResponse {
	return ProductResponse{
		ID:              p.ID.String(),
		WorkspaceID:     p.WorkspaceID.String(),
		Name:            p.Name,
		Description:     p.Description,
		Status:          string(p.Status),
		CurrentVersion:  p.CurrentVersion,
		PromotedVersion: p.PromotedVersion,
		ChunkingConfig:  p.ChunkingConfig,
	}
}

// CreateProductRequest is the request body for creating a product.
type CreateProductRequest struct {
	WorkspaceID    string `json:"workspace_id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	ChunkingConfig string `json:"chunking_config,omitempty"`
}

// CreateProductInput is the input for creating a product.
type CreateProductInput struct {
	Body CreateProductRequest
}

// CreateProductOutput is the output for creating a product.
type CreateProductOutput struct {
	Body ProductResponse
}

// Create creates a new product.
func (h *ProductHandler) Create(ctx context.Context, input *CreateProductInput) (*CreateProductOutput, error) {
	workspaceID, err := models.ParseULID(input.Body.WorkspaceID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid workspace_id", err)
	}

	product := &models.Product{
		WorkspaceID:    workspaceID,
		Name:           input.Body.Name,
		Description:    input.Body.Description,
		Status:         models.ProductStatusDraft,
		ChunkingConfig: input.Body.ChunkingConfig,
	}

	if err := h.productRepo.Create(ctx, product); err != nil {
		if errors.Is(err, models.ErrNameRequired) || errors.Is(err, models.ErrWorkspaceIDRequired) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		if strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "duplicate key") {
			return nil, huma.Error409Conflict(fmt.Sprintf("a product named %q already exists in this workspace", input.Body.Name))
		}
		return nil, huma.Error500InternalServerError("failed to create product", err)
	}

	return &CreateProductOutput{Body: productFromModel(product)}, nil
}

// ListProductsInput is the input for listing products.
type ListProductsInput struct {
	WorkspaceID string `query:"workspace_id" doc:"Workspace ID (ULID)"`
}

// ListProductsOutput is the output for listing products.
type ListProductsOutput struct {
	Body struct {
		Products []ProductResponse `json:"products"`
	}
}

// List returns all products for a workspace.
func (h *ProductHandler) List(ctx context.Context, input *ListProductsInput) (*ListProductsOutput, error) {
	workspaceID, err := models.ParseULID(input.WorkspaceID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid workspace_id", err)
	}

	products, err := h.productRepo.List(ctx, workspaceID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list products", err)
	}

	resp := &ListProductsOutput{}
	resp.Body.Products = make([]ProductResponse, 0, len(products))
	for _, p := range products {
		resp.Body.Products = append(resp.Body.Products, productFromModel(p))
	}
	return resp, nil
}

// GetProductInput is the input for getting a product.
type GetProductInput struct {
	ID string `path:"id" doc:"Product ID (ULID)"`
}

// GetProductOutput is the output for getting a product.
type GetProductOutput struct {
	Body ProductResponse
}

// GetByID returns a product by ID.
func (h *ProductHandler) GetByID(ctx context.Context, input *GetProductInput) (*GetProductOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	product, err := h.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("product %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to get product", err)
	}
	if product == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("product %s not found", input.ID))
	}

	return &GetProductOutput{Body: productFromModel(product)}, nil
}

// UpdateProductRequest is the request body for updating a product.
type UpdateProductRequest struct {
	Name           *string `json:"name,omitempty"`
	Description    *string `json:"description,omitempty"`
	ChunkingConfig *string `json:"chunking_config,omitempty"`
}

// UpdateProductInput is the input for updating a product.
type UpdateProductInput struct {
	ID   string `path:"id" doc:"Product ID (ULID)"`
	Body UpdateProductRequest
}

// UpdateProductOutput is the output for updating a product.
type UpdateProductOutput struct {
	Body ProductResponse
}

// Update updates a product's name, description, and chunking config.
func (h *ProductHandler) Update(ctx context.Context, input *UpdateProductInput) (*UpdateProductOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	product, err := h.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("product %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to get product", err)
	}
	if product == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("product %s not found", input.ID))
	}

	if input.Body.Name != nil {
		product.Name = *input.Body.Name
	}
	if input.Body.Description != nil {
		product.Description = *input.Body.Description
	}
	if input.Body.ChunkingConfig != nil {
		product.ChunkingConfig = *input.Body.ChunkingConfig
	}

	if err := h.productRepo.Update(ctx, product); err != nil {
		return nil, huma.Error500InternalServerError("failed to update product", err)
	}

	return &UpdateProductOutput{Body: productFromModel(product)}, nil
}

// DeleteProductInput is the input for deleting a product.
type DeleteProductInput struct {
	ID string `path:"id" doc:"Product ID (ULID)"`
}

// DeleteProductOutput is the output for deleting a product.
type DeleteProductOutput struct{}

// Delete cascade-deletes a product, refusing if a run is currently active.
func (h *ProductHandler) Delete(ctx context.Context, input *DeleteProductInput) (*DeleteProductOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	runs, err := h.runRepo.ListByProduct(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to check active runs", err)
	}
	for _, r := range runs {
		if r.IsActive() {
			return nil, apiError("product has an active run", corpuserrors.ConflictError(
				"cannot delete product with an active pipeline run", nil,
				map[string]any{"active_run_id": r.ID.String()}))
		}
	}

	if err := h.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("product %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to delete product", err)
	}

	return &DeleteProductOutput{}, nil
}
