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

// WorkspaceHandler handles tenant workspace CRUD endpoints.
type WorkspaceHandler struct {
	workspaceRepo repository.WorkspaceRepository
}

// NewWorkspaceHandler creates a new workspace handler.
func NewWorkspaceHandler(workspaceRepo repository.WorkspaceRepository) *WorkspaceHandler {
	return &WorkspaceHandler{workspaceRepo: workspaceRepo}
}

// Register registers the workspace routes with the API.
func (h *WorkspaceHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "createWorkspace",
		Method:      "POST",
		Path:        "/api/v1/workspaces",
		Summary:     "Create workspace",
		Description: "Creates a new tenant workspace",
		Tags:        []string{"Workspaces"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "listWorkspaces",
		Method:      "GET",
		Path:        "/api/v1/workspaces",
		Summary:     "List workspaces",
		Description: "Lists all tenant workspaces",
		Tags:        []string{"Workspaces"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getWorkspace",
		Method:      "GET",
		Path:        "/api/v1/workspaces/{id}",
		Summary:     "Get workspace",
		Description: "Returns a single tenant workspace",
		Tags:        []string{"Workspaces"},
	}, h.Get)
}

// WorkspaceResponse is the wire representation of a Workspace.
type WorkspaceResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func workspaceFromModel(ws *models.Workspace) WorkspaceResponse {
	return WorkspaceResponse{ID: ws.ID.String(), Name: ws.Name}
}

// CreateWorkspaceRequest is the request body for creating a workspace.
type CreateWorkspaceRequest struct {
	Name string `json:"name"`
}

// CreateWorkspaceInput is the input for creating a workspace.
type CreateWorkspaceInput struct {
	Body CreateWorkspaceRequest
}

// CreateWorkspaceOutput is the output for creating a workspace.
type CreateWorkspaceOutput struct {
	Body WorkspaceResponse
}

// Create registers a new tenant workspace.
func (h *WorkspaceHandler) Create(ctx context.Context, input *CreateWorkspaceInput) (*CreateWorkspaceOutput, error) {
	ws := &models.Workspace{Name: input.Body.Name}
	if err := h.workspaceRepo.Create(ctx, ws); err != nil {
		if errors.Is(err, models.ErrNameRequired) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to create workspace", err)
	}
	return &CreateWorkspaceOutput{Body: workspaceFromModel(ws)}, nil
}

// ListWorkspacesInput is the (empty) input for listing workspaces.
type ListWorkspacesInput struct{}

// ListWorkspacesOutput is the output for listing workspaces.
type ListWorkspacesOutput struct {
	Body struct {
		Workspaces []WorkspaceResponse `json:"workspaces"`
	}
}

// List returns all tenant workspaces.
func (h *WorkspaceHandler) List(ctx context.Context, _ *ListWorkspacesInput) (*ListWorkspacesOutput, error) {
	workspaces, err := h.workspaceRepo.GetAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list workspaces", err)
	}
	resp := &ListWorkspacesOutput{}
	resp.Body.Workspaces = make([]WorkspaceResponse, 0, len(workspaces))
	for _, ws := range workspaces {
		resp.Body.Workspaces = append(resp.Body.Workspaces, workspaceFromModel(ws))
	}
	return resp, nil
}

// GetWorkspaceInput is the input for fetching a single workspace.
type GetWorkspaceInput struct {
	ID string `path:"id" doc:"Workspace ID (ULID)"`
}

// GetWorkspaceOutput is the output for fetching a single workspace.
type GetWorkspaceOutput struct {
	Body WorkspaceResponse
}

// Get returns a single tenant workspace.
func (h *WorkspaceHandler) Get(ctx context.Context, input *GetWorkspaceInput) (*GetWorkspaceOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}
	ws, err := h.workspaceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("workspace %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to get workspace", err)
	}
	if ws == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("workspace %s not found", input.ID))
	}
	return &GetWorkspaceOutput{Body: workspaceFromModel(ws)}, nil
}
