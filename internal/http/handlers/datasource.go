package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"gorm.io/gorm"

	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/repository"
)

// Ingestor triggers an asynchronous ingest run for a data source, owned by
// the ingest coordinator (C3). Kept as a narrow interface so this handler
// can be tested without a live coordinator.
type Ingestor interface {
	IngestAsync(ctx context.Context, dataSourceID models.ULID) error
}

// DataSourceHandler handles data source CRUD and trigger endpoints.
type DataSourceHandler struct {
	dataSourceRepo repository.DataSourceRepository
	ingestor       Ingestor
}

// NewDataSourceHandler creates a new data source handler.
func NewDataSourceHandler(dataSourceRepo repository.DataSourceRepository) *DataSourceHandler {
	return &DataSourceHandler{dataSourceRepo: dataSourceRepo}
}

// WithIngestor sets the ingest coordinator used to trigger on-demand ingests.
func (h *DataSourceHandler) WithIngestor(ingestor Ingestor) *DataSourceHandler {
	h.ingestor = ingestor
	return h
}

// Register registers the data source routes with the API.
func (h *DataSourceHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "createDataSource",
		Method:      "POST",
		Path:        "/api/v1/datasources",
		Summary:     "Create data source",
		Description: "Registers a web/folder/database connector for a product",
		Tags:        []string{"Data Sources"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "listDataSources",
		Method:      "GET",
		Path:        "/api/v1/datasources",
		Summary:     "List data sources",
		Description: "Lists data sources for a product",
		Tags:        []string{"Data Sources"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "deleteDataSource",
		Method:      "DELETE",
		Path:        "/api/v1/datasources/{id}",
		Summary:     "Delete data source",
		Description: "Deletes a data source registration",
		Tags:        []string{"Data Sources"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "ingestDataSource",
		Method:      "POST",
		Path:        "/api/v1/datasources/{id}/ingest",
		Summary:     "Trigger ingest",
		Description: "Starts an asynchronous ingest run for this data source",
		Tags:        []string{"Data Sources"},
	}, h.Ingest)
}

// DataSourceResponse is the wire representation of a DataSource.
type DataSourceResponse struct {
	ID           string `json:"id"`
	WorkspaceID  string `json:"workspace_id"`
	ProductID    string `json:"product_id"`
	Type         string `json:"type"`
	Config       string `json:"config"`
	CronSchedule string `json:"cron_schedule,omitempty"`
}

func dataSourceFromModel(ds *models.DataSource) DataSourceResponse {
	return DataSourceResponse{
		ID:           ds.ID.String(),
		WorkspaceID:  ds.WorkspaceID.String(),
		ProductID:    ds.ProductID.String(),
		Type:         string(ds.Type),
		Config:       ds.Config,
		CronSchedule: ds.CronSchedule,
	}
}

// CreateDataSourceRequest is the request body for creating a data source.
type CreateDataSourceRequest struct {
	WorkspaceID  string `json:"workspace_id"`
	ProductID    string `json:"product_id"`
	Type         string `json:"type"`
	Config       string `json:"config"`
	CronSchedule string `json:"cron_schedule,omitempty"`
}

// CreateDataSourceInput is the input for creating a data source.
type CreateDataSourceInput struct {
	Body CreateDataSourceRequest
}

// CreateDataSourceOutput is the output for creating a data source.
type CreateDataSourceOutput struct {
	Body DataSourceResponse
}

// Create registers a new data source.
func (h *DataSourceHandler) Create(ctx context.Context, input *CreateDataSourceInput) (*CreateDataSourceOutput, error) {
	workspaceID, err := models.ParseULID(input.Body.WorkspaceID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid workspace_id", err)
	}
	productID, err := models.ParseULID(input.Body.ProductID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid product_id", err)
	}

	ds := &models.DataSource{
		WorkspaceID:  workspaceID,
		ProductID:    productID,
		Type:         models.DataSourceType(input.Body.Type),
		Config:       input.Body.Config,
		CronSchedule: input.Body.CronSchedule,
	}

	if err := h.dataSourceRepo.Create(ctx, ds); err != nil {
		if errors.Is(err, models.ErrInvalidDataSourceType) ||
			errors.Is(err, models.ErrWorkspaceIDRequired) ||
			errors.Is(err, models.ErrProductIDRequired) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to create data source", err)
	}

	return &CreateDataSourceOutput{Body: dataSourceFromModel(ds)}, nil
}

// ListDataSourcesInput is the input for listing data sources.
type ListDataSourcesInput struct {
	ProductID string `query:"product_id" doc:"Product ID (ULID)"`
}

// ListDataSourcesOutput is the output for listing data sources.
type ListDataSourcesOutput struct {
	Body struct {
		DataSources []DataSourceResponse `json:"data_sources"`
	}
}

// List returns all data sources for a product.
func (h *DataSourceHandler) List(ctx context.Context, input *ListDataSourcesInput) (*ListDataSourcesOutput, error) {
	productID, err := models.ParseULID(input.ProductID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid product_id", err)
	}

	sources, err := h.dataSourceRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list data sources", err)
	}

	resp := &ListDataSourcesOutput{}
	resp.Body.DataSources = make([]DataSourceResponse, 0, len(sources))
	for _, ds := range sources {
		resp.Body.DataSources = append(resp.Body.DataSources, dataSourceFromModel(ds))
	}
	return resp, nil
}

// DeleteDataSourceInput is the input for deleting a data source.
type DeleteDataSourceInput struct {
	ID string `path:"id" doc:"Data source ID (ULID)"`
}

// DeleteDataSourceOutput is the output for deleting a data source.
type DeleteDataSourceOutput struct{}

// Delete removes a data source registration.
func (h *DataSourceHandler) Delete(ctx context.Context, input *DeleteDataSourceInput) (*DeleteDataSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	if err := h.dataSourceRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("data source %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to delete data source", err)
	}

	return &DeleteDataSourceOutput{}, nil
}

// IngestDataSourceInput is the input for triggering an ingest.
type IngestDataSourceInput struct {
	ID string `path:"id" doc:"Data source ID (ULID)"`
}

// IngestDataSourceOutput is the output for triggering an ingest.
type IngestDataSourceOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

// Ingest triggers an asynchronous ingest run for the data source.
func (h *DataSourceHandler) Ingest(ctx context.Context, input *IngestDataSourceInput) (*IngestDataSourceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	if h.ingestor == nil {
		return nil, huma.Error503ServiceUnavailable("ingest coordinator not configured")
	}

	ds, err := h.dataSourceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("data source %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to get data source", err)
	}
	if ds == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("data source %s not found", input.ID))
	}

	if err := h.ingestor.IngestAsync(ctx, id); err != nil {
		return nil, huma.Error500InternalServerError("failed to start ingest", err)
	}

	resp := &IngestDataSourceOutput{}
	resp.Body.Message = fmt.Sprintf("ingest started for data source %s", input.ID)
	return resp, nil
}
