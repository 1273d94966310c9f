package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"gorm.io/gorm"

	"github.com/jmylchreest/corpusctl/internal/blobstore"
	"github.com/jmylchreest/corpusctl/internal/corpuserrors"
	"github.com/jmylchreest/corpusctl/internal/eventbus"
	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/pipeline/core"
	"github.com/jmylchreest/corpusctl/internal/repository"
)

// artifactPresignTTL is how long an artifact content URL stays valid.
const artifactPresignTTL = 15 * time.Minute

// PipelineHandler handles run trigger, listing, cancellation, and artifact
// retrieval endpoints (spec.md §6, Control API).
type PipelineHandler struct {
	productRepo  repository.ProductRepository
	runRepo      repository.PipelineRunRepository
	stageRepo    repository.StageExecutionRepository
	artifactRepo repository.ArtifactRepository
	blob         blobstore.Gateway
	factory      core.OrchestratorFactory
	logger       *slog.Logger
	bus          *eventbus.Bus
}

// WithEventBus attaches a NATS-backed event bus on which Trigger announces
// each queued run. A nil bus (or one never set) is fine: eventbus.Publish
// treats it as a no-op, and Trigger starts the run itself either way.
func (h *PipelineHandler) WithEventBus(bus *eventbus.Bus) *PipelineHandler {
	h.bus = bus
	return h
}

// NewPipelineHandler creates a new pipeline handler.
func NewPipelineHandler(
	productRepo repository.ProductRepository,
	runRepo repository.PipelineRunRepository,
	stageRepo repository.StageExecutionRepository,
	artifactRepo repository.ArtifactRepository,
	blob blobstore.Gateway,
	factory core.OrchestratorFactory,
	logger *slog.Logger,
) *PipelineHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineHandler{
		productRepo:  productRepo,
		runRepo:      runRepo,
		stageRepo:    stageRepo,
		artifactRepo: artifactRepo,
		blob:         blob,
		factory:      factory,
		logger:       logger,
	}
}

// Register registers the pipeline routes with the API.
func (h *PipelineHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "triggerPipelineRun",
		Method:      "POST",
		Path:        "/api/v1/pipeline/run",
		Summary:     "Trigger pipeline run",
		Description: "Resolves the target version and starts the stage DAG asynchronously",
		Tags:        []string{"Pipeline"},
	}, h.Trigger)

	huma.Register(api, huma.Operation{
		OperationID: "listPipelineRuns",
		Method:      "GET",
		Path:        "/api/v1/pipeline/runs",
		Summary:     "List pipeline runs",
		Description: "Lists runs for a product",
		Tags:        []string{"Pipeline"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getPipelineRun",
		Method:      "GET",
		Path:        "/api/v1/pipeline/runs/{id}",
		Summary:     "Get pipeline run",
		Description: "Returns run detail including per-stage status and metrics",
		Tags:        []string{"Pipeline"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "cancelPipelineRun",
		Method:      "POST",
		Path:        "/api/v1/pipeline/runs/{id}/cancel",
		Summary:     "Cancel pipeline run",
		Description: "Requests cancellation; observed at the next stage boundary",
		Tags:        []string{"Pipeline"},
	}, h.Cancel)

	huma.Register(api, huma.Operation{
		OperationID: "getPipelineRunLogs",
		Method:      "GET",
		Path:        "/api/v1/pipeline/runs/{id}/logs",
		Summary:     "Get pipeline run logs",
		Description: "Returns per-stage error messages and metrics as a log-like stream",
		Tags:        []string{"Pipeline"},
	}, h.Logs)

	huma.Register(api, huma.Operation{
		OperationID: "listPipelineRunArtifacts",
		Method:      "GET",
		Path:        "/api/v1/pipeline/runs/{id}/artifacts",
		Summary:     "List run artifacts",
		Description: "Lists artifacts produced by the run with presigned content URLs",
		Tags:        []string{"Pipeline"},
	}, h.Artifacts)

	huma.Register(api, huma.Operation{
		OperationID: "getArtifactContent",
		Method:      "GET",
		Path:        "/api/v1/pipeline/artifacts/{id}/content",
		Summary:     "Get artifact content",
		Description: "Streams the raw bytes of a persisted artifact",
		Tags:        []string{"Pipeline"},
	}, h.ArtifactContent)
}

// RunResponse is the wire representation of a PipelineRun.
type RunResponse struct {
	ID              string  `json:"id"`
	ProductID       string  `json:"product_id"`
	Version         int     `json:"version"`
	Status          string  `json:"status"`
	TriggerReason   string  `json:"trigger_reason,omitempty"`
	CancelRequested bool    `json:"cancel_requested"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	StartedAt       *string `json:"started_at,omitempty"`
	FinishedAt      *string `json:"finished_at,omitempty"`
}

func runFromModel(r *models.PipelineRun) RunResponse {
	resp := RunResponse{
		ID:              r.ID.String(),
		ProductID:       r.ProductID.String(),
		Version:         r.Version,
		Status:          string(r.Status),
		TriggerReason:   r.TriggerReason,
		CancelRequested: r.CancelRequested,
		ErrorMessage:    r.ErrorMessage,
	}
	if r.StartedAt != nil {
		s := time.Time(*r.StartedAt).Format(time.RFC3339)
		resp.StartedAt = &s
	}
	if r.FinishedAt != nil {
		s := time.Time(*r.FinishedAt).Format(time.RFC3339)
		resp.FinishedAt = &s
	}
	return resp
}

// TriggerRunRequest is the request body for starting a pipeline run.
type TriggerRunRequest struct {
	ProductID     string `json:"product_id"`
	Version       *int   `json:"version,omitempty" doc:"Explicit version; omit to auto-resolve the latest ingested version"`
	TriggerReason string `json:"trigger_reason,omitempty"`
	Force         bool   `json:"force,omitempty" doc:"Re-run even if a SUCCEEDED run already exists for this version"`
}

// TriggerRunInput is the input for starting a pipeline run.
type TriggerRunInput struct {
	Body TriggerRunRequest
}

// TriggerRunOutput is the output for starting a pipeline run.
type TriggerRunOutput struct {
	Body struct {
		Run          RunResponse `json:"run"`
		VersionSource string     `json:"version_source"`
	}
}

// Trigger resolves the target version and starts an asynchronous pipeline
// run, per spec.md §4.1's resolve_pipeline_version and §4.4's execution
// protocol. The HTTP response returns as soon as the run is queued; the
// stage DAG executes in a background goroutine.
func (h *PipelineHandler) Trigger(ctx context.Context, input *TriggerRunInput) (*TriggerRunOutput, error) {
	productID, err := models.ParseULID(input.Body.ProductID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid product_id", err)
	}

	product, err := h.productRepo.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("product %s not found", input.Body.ProductID))
		}
		return nil, huma.Error500InternalServerError("failed to get product", err)
	}
	if product == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("product %s not found", input.Body.ProductID))
	}

	resolution, err := h.productRepo.ResolvePipelineVersion(ctx, productID, input.Body.Version)
	if err != nil {
		if errors.Is(err, repository.ErrNoRawFilesForVersion) {
			hints := map[string]any{
				"product_id":              input.Body.ProductID,
				"available_versions":      resolution.AvailableVersions,
				"latest_ingested_version": resolution.LatestIngested,
			}
			if input.Body.Version != nil {
				hints["requested_version"] = *input.Body.Version
			}
			return nil, apiError("no raw files available for requested version", corpuserrors.NotFoundError(err.Error(), hints))
		}
		if errors.Is(err, repository.ErrNoRawFiles) {
			return nil, apiError("no raw files available", corpuserrors.NotFoundError(err.Error(), map[string]any{
				"product_id": input.Body.ProductID,
			}))
		}
		return nil, huma.Error500InternalServerError("failed to resolve pipeline version", err)
	}

	if !input.Body.Force {
		succeeded, err := h.runRepo.HasSucceededRun(ctx, productID, resolution.Version)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to check prior runs", err)
		}
		if succeeded {
			return nil, apiError("run already succeeded", corpuserrors.ConflictError(
				"a run has already succeeded for this product version; pass force=true to re-run", nil,
				map[string]any{"product_id": input.Body.ProductID, "version": resolution.Version}))
		}
	}

	run := &models.PipelineRun{
		WorkspaceID:   product.WorkspaceID,
		ProductID:     productID,
		Version:       resolution.Version,
		Status:        models.RunStatusQueued,
		TriggerReason: input.Body.TriggerReason,
	}
	if err := h.runRepo.BeginRun(ctx, run); err != nil {
		if errors.Is(err, repository.ErrRunAlreadyActive) {
			return nil, apiError("run already active", corpuserrors.ConflictError(err.Error(), err,
				map[string]any{"product_id": input.Body.ProductID, "version": resolution.Version}))
		}
		return nil, huma.Error500InternalServerError("failed to begin run", err)
	}

	if err := eventbus.PublishRunQueued(h.bus, run.ID.String(), productID.String()); err != nil {
		h.logger.Warn("failed to publish run queued event", "run_id", run.ID.String(), "error", err)
	}

	if h.factory != nil {
		bb := core.NewRunBlackboard(product.WorkspaceID, productID, run.ID, resolution.Version)
		bb.Product = product
		orchestrator, err := h.factory.Create(bb)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to build orchestrator", err)
		}
		go h.runAsync(run.ID, orchestrator)
	}

	resp := &TriggerRunOutput{}
	resp.Body.Run = runFromModel(run)
	resp.Body.VersionSource = resolution.Source
	return resp, nil
}

// runAsync executes the orchestrator's stage DAG detached from the
// triggering request. The run's own context is deliberately independent
// of the HTTP request context: cancellation is driven by cancel_requested,
// not by the client disconnecting.
func (h *PipelineHandler) runAsync(runID models.ULID, orchestrator *core.Orchestrator) {
	ctx := context.Background()
	result, err := orchestrator.Execute(ctx)
	if err != nil {
		h.logger.Error("pipeline run failed", "run_id", runID.String(), "error", err)
		return
	}
	h.logger.Info("pipeline run finished", "run_id", runID.String(), "status", string(result.Status))
}

// ListRunsInput is the input for listing pipeline runs.
type ListRunsInput struct {
	ProductID string `query:"product_id" doc:"Product ID (ULID)"`
}

// ListRunsOutput is the output for listing pipeline runs.
type ListRunsOutput struct {
	Body struct {
		Runs []RunResponse `json:"runs"`
	}
}

// List returns all runs for a product, most recent first.
func (h *PipelineHandler) List(ctx context.Context, input *ListRunsInput) (*ListRunsOutput, error) {
	productID, err := models.ParseULID(input.ProductID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid product_id", err)
	}

	runs, err := h.runRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list runs", err)
	}

	resp := &ListRunsOutput{}
	resp.Body.Runs = make([]RunResponse, 0, len(runs))
	for _, r := range runs {
		resp.Body.Runs = append(resp.Body.Runs, runFromModel(r))
	}
	return resp, nil
}

// GetRunInput is the input for getting run detail.
type GetRunInput struct {
	ID string `path:"id" doc:"Run ID (ULID)"`
}

// StageExecutionResponse is the wire representation of a StageExecution.
type StageExecutionResponse struct {
	StageName    string `json:"stage_name"`
	Status       string `json:"status"`
	Metrics      string `json:"metrics,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// GetRunOutput is the output for getting run detail.
type GetRunOutput struct {
	Body struct {
		Run    RunResponse               `json:"run"`
		Stages []StageExecutionResponse `json:"stages"`
	}
}

// GetByID returns run detail including every stage's status and metrics.
func (h *PipelineHandler) GetByID(ctx context.Context, input *GetRunInput) (*GetRunOutput, error) {
	run, err := h.getRun(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	stages, err := h.stageRepo.ListByRun(ctx, run.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list stage executions", err)
	}

	resp := &GetRunOutput{}
	resp.Body.Run = runFromModel(run)
	resp.Body.Stages = make([]StageExecutionResponse, 0, len(stages))
	for _, s := range stages {
		resp.Body.Stages = append(resp.Body.Stages, StageExecutionResponse{
			StageName:    string(s.StageName),
			Status:       string(s.Status),
			Metrics:      s.Metrics,
			ErrorMessage: s.ErrorMessage,
		})
	}
	return resp, nil
}

// CancelRunOutput is the output for requesting cancellation.
type CancelRunOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

// Cancel requests cancellation of an active run; observed at the next
// stage boundary per spec.md §4.4. Returns 409 if the run is terminal.
func (h *PipelineHandler) Cancel(ctx context.Context, input *GetRunInput) (*CancelRunOutput, error) {
	run, err := h.getRun(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if run.Status.IsTerminal() {
		return nil, apiError("run already terminal", corpuserrors.ConflictError(
			fmt.Sprintf("run %s is already %s and cannot be cancelled", input.ID, run.Status), nil, nil))
	}

	if err := h.runRepo.RequestCancel(ctx, run.ID); err != nil {
		return nil, huma.Error500InternalServerError("failed to request cancellation", err)
	}

	resp := &CancelRunOutput{}
	resp.Body.Message = fmt.Sprintf("cancellation requested for run %s", input.ID)
	return resp, nil
}

// LogsOutput is the output for retrieving run logs.
type LogsOutput struct {
	Body struct {
		Lines []string `json:"lines"`
	}
}

// Logs returns per-stage status/metrics/error lines for a run. There is no
// separate log store (C4 persists only StageExecution rows); this derives
// a log-like stream from those rows in DAG order.
func (h *PipelineHandler) Logs(ctx context.Context, input *GetRunInput) (*LogsOutput, error) {
	run, err := h.getRun(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	stages, err := h.stageRepo.ListByRun(ctx, run.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list stage executions", err)
	}

	resp := &LogsOutput{}
	resp.Body.Lines = make([]string, 0, len(stages)+1)
	resp.Body.Lines = append(resp.Body.Lines, fmt.Sprintf("run %s status=%s", run.ID.String(), run.Status))
	for _, s := range stages {
		line := fmt.Sprintf("stage=%s status=%s", s.StageName, s.Status)
		if s.Metrics != "" {
			line += fmt.Sprintf(" metrics=%s", s.Metrics)
		}
		if s.ErrorMessage != "" {
			line += fmt.Sprintf(" error=%q", s.ErrorMessage)
		}
		resp.Body.Lines = append(resp.Body.Lines, line)
	}
	if run.ErrorMessage != "" {
		resp.Body.Lines = append(resp.Body.Lines, fmt.Sprintf("run error=%q", run.ErrorMessage))
	}
	return resp, nil
}

// ArtifactResponse is the wire representation of an Artifact, with a
// presigned content URL in place of the raw blob key.
type ArtifactResponse struct {
	ID          string `json:"id"`
	StageName   string `json:"stage_name"`
	Type        string `json:"artifact_type"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentURL  string `json:"content_url,omitempty"`
}

// ArtifactsOutput is the output for listing run artifacts.
type ArtifactsOutput struct {
	Body struct {
		Artifacts []ArtifactResponse `json:"artifacts"`
	}
}

// Artifacts lists all artifacts produced by the run with presigned
// content URLs.
func (h *PipelineHandler) Artifacts(ctx context.Context, input *GetRunInput) (*ArtifactsOutput, error) {
	run, err := h.getRun(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	artifacts, err := h.artifactRepo.ListByRun(ctx, run.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list artifacts", err)
	}

	resp := &ArtifactsOutput{}
	resp.Body.Artifacts = make([]ArtifactResponse, 0, len(artifacts))
	for _, a := range artifacts {
		ar := ArtifactResponse{
			ID:          a.ID.String(),
			StageName:   string(a.StageName),
			Type:        string(a.ArtifactType),
			Name:        a.Name,
			DisplayName: a.DisplayName,
			SizeBytes:   a.SizeBytes,
		}
		if h.blob != nil {
			if url, err := h.blob.Presign(a.BlobBucket, a.BlobKey, artifactPresignTTL); err == nil {
				ar.ContentURL = url
			} else {
				h.logger.Warn("failed to presign artifact", "artifact_id", a.ID.String(), "error", err)
			}
		}
		resp.Body.Artifacts = append(resp.Body.Artifacts, ar)
	}
	return resp, nil
}

// ArtifactContentInput is the input for fetching artifact content.
type ArtifactContentInput struct {
	ID string `path:"id" doc:"Artifact ID (ULID)"`
}

// ArtifactContentOutput streams the raw artifact bytes.
type ArtifactContentOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// ArtifactContent streams the raw bytes of a persisted artifact.
func (h *PipelineHandler) ArtifactContent(ctx context.Context, input *ArtifactContentInput) (*ArtifactContentOutput, error) {
	id, err := models.ParseULID(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}

	artifact, err := h.artifactRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("artifact %s not found", input.ID))
		}
		return nil, huma.Error500InternalServerError("failed to get artifact", err)
	}
	if artifact == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("artifact %s not found", input.ID))
	}

	if h.blob == nil {
		return nil, huma.Error503ServiceUnavailable("blob store not configured")
	}

	rc, err := h.blob.Get(ctx, artifact.BlobBucket, artifact.BlobKey)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to read artifact content", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to read artifact content", err)
	}

	return &ArtifactContentOutput{ContentType: artifactContentType(artifact.ArtifactType), Body: data}, nil
}

func artifactContentType(t models.ArtifactType) string {
	switch t {
	case models.ArtifactTypeJSON, models.ArtifactTypeReport:
		return "application/json"
	case models.ArtifactTypeJSONL:
		return "application/x-ndjson"
	case models.ArtifactTypeCSV:
		return "text/csv"
	case models.ArtifactTypePDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// getRun fetches a run by its path ID, mapping parse and not-found errors
// to the corresponding HTTP status.
func (h *PipelineHandler) getRun(ctx context.Context, rawID string) (*models.PipelineRun, error) {
	id, err := models.ParseULID(rawID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid ID format", err)
	}
	run, err := h.runRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound(fmt.Sprintf("run %s not found", rawID))
		}
		return nil, huma.Error500InternalServerError("failed to get run", err)
	}
	if run == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("run %s not found", rawID))
	}
	return run, nil
}
