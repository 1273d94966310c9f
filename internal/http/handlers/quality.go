package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/repository"
)

// QualityHandler handles quality rule set and violation endpoints.
type QualityHandler struct {
	ruleSetRepo   repository.QualityRuleSetRepository
	violationRepo repository.QualityViolationRepository
}

// NewQualityHandler creates a new quality handler.
func NewQualityHandler(ruleSetRepo repository.QualityRuleSetRepository, violationRepo repository.QualityViolationRepository) *QualityHandler {
	return &QualityHandler{ruleSetRepo: ruleSetRepo, violationRepo: violationRepo}
}

// Register registers the quality routes with the API.
func (h *QualityHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getQualityRules",
		Method:      "GET",
		Path:        "/api/v1/data-quality/rules/{product_id}",
		Summary:     "Get effective quality rules",
		Description: "Returns the effective rule set for a product at a given version",
		Tags:        []string{"Data Quality"},
	}, h.GetRules)

	huma.Register(api, huma.Operation{
		OperationID: "putQualityRules",
		Method:      "PUT",
		Path:        "/api/v1/data-quality/rules/{product_id}",
		Summary:     "Upsert quality rules",
		Description: "Creates or replaces the rule set for a product version",
		Tags:        []string{"Data Quality"},
	}, h.PutRules)

	huma.Register(api, huma.Operation{
		OperationID: "listQualityViolations",
		Method:      "GET",
		Path:        "/api/v1/data-quality/violations",
		Summary:     "List quality violations",
		Description: "Lists violations recorded by the policy stage for a product version",
		Tags:        []string{"Data Quality"},
	}, h.ListViolations)
}

// GetRulesInput is the input for fetching the effective rule set.
type GetRulesInput struct {
	ProductID string `path:"product_id" doc:"Product ID (ULID)"`
	Version   int    `query:"version" doc:"Version to resolve the effective rule set at; defaults to the latest"`
}

// RuleSetResponse is the wire representation of a QualityRuleSet.
type RuleSetResponse struct {
	ProductID           string `json:"product_id"`
	Version             int    `json:"version"`
	RequiredFieldsRules string `json:"required_fields_rules,omitempty"`
	DuplicateRateRules  string `json:"duplicate_rate_rules,omitempty"`
	ChunkCoverageRules  string `json:"chunk_coverage_rules,omitempty"`
	BadExtensionsRules  string `json:"bad_extensions_rules,omitempty"`
	FreshnessRules      string `json:"freshness_rules,omitempty"`
	FileSizeRules       string `json:"file_size_rules,omitempty"`
	ContentLengthRules  string `json:"content_length_rules,omitempty"`
}

func ruleSetFromModel(rs *models.QualityRuleSet) RuleSetResponse {
	return RuleSetResponse{
		ProductID:           rs.ProductID.String(),
		Version:             rs.Version,
		RequiredFieldsRules: rs.RequiredFieldsRules,
		DuplicateRateRules:  rs.DuplicateRateRules,
		ChunkCoverageRules:  rs.ChunkCoverageRules,
		BadExtensionsRules:  rs.BadExtensionsRules,
		FreshnessRules:      rs.FreshnessRules,
		FileSizeRules:       rs.FileSizeRules,
		ContentLengthRules:  rs.ContentLengthRules,
	}
}

// GetRulesOutput is the output for fetching the effective rule set.
type GetRulesOutput struct {
	Body RuleSetResponse
}

// GetRules returns the effective rule set for a product, resolved at or
// below the requested version (the latest rule set version whose version
// number does not exceed the target).
func (h *QualityHandler) GetRules(ctx context.Context, input *GetRulesInput) (*GetRulesOutput, error) {
	productID, err := models.ParseULID(input.ProductID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid product_id", err)
	}

	version := input.Version
	if version < 1 {
		version = 1 << 30 // effectively "latest"
	}

	rs, err := h.ruleSetRepo.GetEffective(ctx, productID, version)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to resolve effective rule set", err)
	}
	if rs == nil {
		return nil, huma.Error404NotFound(fmt.Sprintf("no quality rule set configured for product %s", input.ProductID))
	}

	return &GetRulesOutput{Body: ruleSetFromModel(rs)}, nil
}

// PutRulesRequest is the request body for upserting a rule set.
type PutRulesRequest struct {
	Version             int    `json:"version"`
	RequiredFieldsRules string `json:"required_fields_rules,omitempty"`
	DuplicateRateRules  string `json:"duplicate_rate_rules,omitempty"`
	ChunkCoverageRules  string `json:"chunk_coverage_rules,omitempty"`
	BadExtensionsRules  string `json:"bad_extensions_rules,omitempty"`
	FreshnessRules      string `json:"freshness_rules,omitempty"`
	FileSizeRules       string `json:"file_size_rules,omitempty"`
	ContentLengthRules  string `json:"content_length_rules,omitempty"`
}

// PutRulesInput is the input for upserting a rule set.
type PutRulesInput struct {
	ProductID string `path:"product_id" doc:"Product ID (ULID)"`
	Body      PutRulesRequest
}

// PutRulesOutput is the output for upserting a rule set.
type PutRulesOutput struct {
	Body RuleSetResponse
}

// PutRules creates or replaces the rule set for a product version.
func (h *QualityHandler) PutRules(ctx context.Context, input *PutRulesInput) (*PutRulesOutput, error) {
	productID, err := models.ParseULID(input.ProductID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid product_id", err)
	}

	rs := &models.QualityRuleSet{
		ProductID:           productID,
		Version:             input.Body.Version,
		RequiredFieldsRules: input.Body.RequiredFieldsRules,
		DuplicateRateRules:  input.Body.DuplicateRateRules,
		ChunkCoverageRules:  input.Body.ChunkCoverageRules,
		BadExtensionsRules:  input.Body.BadExtensionsRules,
		FreshnessRules:      input.Body.FreshnessRules,
		FileSizeRules:       input.Body.FileSizeRules,
		ContentLengthRules:  input.Body.ContentLengthRules,
	}

	if err := h.ruleSetRepo.Upsert(ctx, rs); err != nil {
		if errors.Is(err, models.ErrProductIDRequired) || errors.Is(err, models.ErrVersionMustBePositive) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError("failed to upsert rule set", err)
	}

	return &PutRulesOutput{Body: ruleSetFromModel(rs)}, nil
}

// ListViolationsInput is the input for listing violations.
type ListViolationsInput struct {
	ProductID string `query:"product_id" doc:"Product ID (ULID)"`
	Version   int    `query:"version" doc:"Product version"`
}

// ViolationResponse is the wire representation of a QualityViolation.
type ViolationResponse struct {
	RunID         string  `json:"run_id"`
	RuleName      string  `json:"rule_name"`
	RuleType      string  `json:"rule_type"`
	Severity      string  `json:"severity"`
	Message       string  `json:"message"`
	AffectedCount int64   `json:"affected_count"`
	TotalCount    int64   `json:"total_count"`
	ViolationRate float64 `json:"violation_rate"`
}

// ListViolationsOutput is the output for listing violations.
type ListViolationsOutput struct {
	Body struct {
		Violations []ViolationResponse `json:"violations"`
	}
}

// ListViolations lists violations recorded for a product version.
func (h *QualityHandler) ListViolations(ctx context.Context, input *ListViolationsInput) (*ListViolationsOutput, error) {
	productID, err := models.ParseULID(input.ProductID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid product_id", err)
	}

	violations, err := h.violationRepo.ListByProductVersion(ctx, productID, input.Version)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list violations", err)
	}

	resp := &ListViolationsOutput{}
	resp.Body.Violations = make([]ViolationResponse, 0, len(violations))
	for _, v := range violations {
		resp.Body.Violations = append(resp.Body.Violations, ViolationResponse{
			RunID:         v.RunID.String(),
			RuleName:      v.RuleName,
			RuleType:      string(v.RuleType),
			Severity:      string(v.Severity),
			Message:       v.Message,
			AffectedCount: v.AffectedCount,
			TotalCount:    v.TotalCount,
			ViolationRate: v.ViolationRate,
		})
	}
	return resp, nil
}
