package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/corpusctl/internal/blobstore"
	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/repository"
)

// InsightsHandler assembles the fingerprint, policy verdict, and
// optimizer recommendations for a product's most recent run (spec.md §6,
// GET /api/v1/insights/:product_id).
type InsightsHandler struct {
	runRepo       repository.PipelineRunRepository
	artifactRepo  repository.ArtifactRepository
	violationRepo repository.QualityViolationRepository
	blob          blobstore.Gateway
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(
	runRepo repository.PipelineRunRepository,
	artifactRepo repository.ArtifactRepository,
	violationRepo repository.QualityViolationRepository,
	blob blobstore.Gateway,
) *InsightsHandler {
	return &InsightsHandler{runRepo: runRepo, artifactRepo: artifactRepo, violationRepo: violationRepo, blob: blob}
}

// Register registers the insights route with the API.
func (h *InsightsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getProductInsights",
		Method:      "GET",
		Path:        "/api/v1/insights/{product_id}",
		Summary:     "Get product insights",
		Description: "Returns the fingerprint, policy verdict, and optimizer recommendations from the most recent run",
		Tags:        []string{"Insights"},
	}, h.Get)
}

// GetInsightsInput is the input for fetching product insights.
type GetInsightsInput struct {
	ProductID string `path:"product_id" doc:"Product ID (ULID)"`
}

// OptimizerRecommendation is a single suggested follow-up action derived
// from recurring or unresolved quality violations.
type OptimizerRecommendation struct {
	RuleName string `json:"rule_name"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// GetInsightsOutput is the output for fetching product insights.
type GetInsightsOutput struct {
	Body struct {
		RunID           string                    `json:"run_id"`
		Version         int                       `json:"version"`
		Status          string                    `json:"status"`
		Fingerprint     json.RawMessage           `json:"fingerprint,omitempty"`
		Policy          json.RawMessage           `json:"policy,omitempty"`
		Recommendations []OptimizerRecommendation `json:"recommendations"`
	}
}

// Get returns the fingerprint, policy verdict, and optimizer
// recommendations for the product's most recent run.
func (h *InsightsHandler) Get(ctx context.Context, input *GetInsightsInput) (*GetInsightsOutput, error) {
	productID, err := models.ParseULID(input.ProductID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid product_id", err)
	}

	runs, err := h.runRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list runs", err)
	}
	if len(runs) == 0 {
		return nil, huma.Error404NotFound(fmt.Sprintf("no runs found for product %s", input.ProductID))
	}
	run := runs[0]

	resp := &GetInsightsOutput{}
	resp.Body.RunID = run.ID.String()
	resp.Body.Version = run.Version
	resp.Body.Status = string(run.Status)

	artifacts, err := h.artifactRepo.ListByRun(ctx, run.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list artifacts", err)
	}
	for _, a := range artifacts {
		switch {
		case a.StageName == models.StageNameFingerprint && a.Name == "fingerprint.json":
			if raw, err := h.readJSON(ctx, a); err == nil {
				resp.Body.Fingerprint = raw
			}
		case a.StageName == models.StageNamePolicy && a.Name == "policy.json":
			if raw, err := h.readJSON(ctx, a); err == nil {
				resp.Body.Policy = raw
			}
		}
	}

	violations, err := h.violationRepo.ListByRun(ctx, run.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list violations", err)
	}
	resp.Body.Recommendations = recommendationsFromViolations(violations)

	return resp, nil
}

func (h *InsightsHandler) readJSON(ctx context.Context, a *models.Artifact) (json.RawMessage, error) {
	if h.blob == nil {
		return nil, fmt.Errorf("blob store not configured")
	}
	rc, err := h.blob.Get(ctx, a.BlobBucket, a.BlobKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// recommendationsFromViolations turns non-fatal violations into
// actionable suggestions; fatal violations already block the run and
// need no separate recommendation.
func recommendationsFromViolations(violations []*models.QualityViolation) []OptimizerRecommendation {
	recs := make([]OptimizerRecommendation, 0, len(violations))
	for _, v := range violations {
		if v.Severity == models.RuleSeverityError {
			continue
		}
		recs = append(recs, OptimizerRecommendation{
			RuleName: v.RuleName,
			Severity: string(v.Severity),
			Message:  fmt.Sprintf("%s (%d/%d affected, %.1f%% rate)", v.Message, v.AffectedCount, v.TotalCount, v.ViolationRate*100),
		})
	}
	return recs
}
