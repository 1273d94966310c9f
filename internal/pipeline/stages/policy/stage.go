// Package policy implements the stage that evaluates a product's
// effective QualityRuleSet against the chunk batch, producing
// QualityViolations and a policy_status verdict.
//
// A FAILED policy_status only propagates to the owning PipelineRun's
// status when a violated rule is both ERROR severity and marked Fatal,
// per spec.md §9's independence decision: passed/warnings verdicts
// succeed the stage regardless of violation count.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/jmylchreest/corpusctl/internal/pipeline/core"
	"github.com/jmylchreest/corpusctl/internal/pipeline/shared"
	"github.com/jmylchreest/corpusctl/internal/repository"
)

// StageID is the unique identifier for this stage.
const StageID = models.StageNamePolicy

// StageName is the human-readable name for this stage.
const StageName = "Policy"

// Stage evaluates the effective QualityRuleSet for a product version.
type Stage struct {
	shared.BaseStage
	ruleSetRepo   repository.QualityRuleSetRepository
	violationRepo repository.QualityViolationRepository
	logger        *slog.Logger
}

// New creates a new policy stage.
func New(ruleSetRepo repository.QualityRuleSetRepository, violationRepo repository.QualityViolationRepository) *Stage {
	return &Stage{
		BaseStage:     shared.NewBaseStage(StageID, StageName),
		ruleSetRepo:   ruleSetRepo,
		violationRepo: violationRepo,
	}
}

// NewConstructor returns a stage constructor for use with the factory.
func NewConstructor() core.StageConstructor {
	return func(deps *core.Dependencies) core.Stage {
		stage := New(deps.RuleSetRepo, deps.ViolationRepo)
		if deps.Logger != nil {
			stage.logger = deps.Logger.With("stage", StageID)
		}
		return stage
	}
}

// Execute resolves the effective rule set and evaluates it against the
// chunk batch. Violations are recorded and a policy_status verdict
// computed; a verdict of failed (a fatal ERROR-severity violation) fails
// this stage and, in turn, the owning run.
func (s *Stage) Execute(ctx context.Context, bb *core.RunBlackboard) (*core.StageResult, error) {
	result := shared.NewResult()

	ruleSet := bb.RuleSet
	if ruleSet == nil && s.ruleSetRepo != nil {
		resolved, err := s.ruleSetRepo.GetEffective(ctx, bb.ProductID, bb.Version)
		if err != nil {
			return result, fmt.Errorf("resolving effective rule set: %w", err)
		}
		ruleSet = resolved
		bb.RuleSet = ruleSet
	}

	if ruleSet == nil {
		bb.PolicyStatus = models.PolicyStatusPassed
		result.Message = "no quality rule set configured; policy passes by default"
		result.Metrics = map[string]any{"policy_status": string(models.PolicyStatusPassed), "violation_count": 0}
		return result, nil
	}

	rules, err := decodeRules(ruleSet)
	if err != nil {
		return result, fmt.Errorf("decoding rule set: %w", err)
	}

	var violations []models.QualityViolation
	fatalByRuleName := make(map[string]bool, len(rules))
	for _, rule := range rules {
		fatalByRuleName[rule.Name] = rule.Fatal
		if !rule.Enabled {
			continue
		}
		if v := evaluateRule(rule, bb); v != nil {
			v.RunID = bb.RunID
			violations = append(violations, *v)
		}
	}

	if len(violations) > 0 && s.violationRepo != nil {
		if err := s.violationRepo.CreateBatch(ctx, toPointerSlice(violations)); err != nil {
			s.log(ctx, slog.LevelWarn, "persisting violations failed", slog.String("error", err.Error()))
		}
	}
	for i := range violations {
		bb.Violations = append(bb.Violations, &violations[i])
	}

	status := models.ComposePolicyStatus(violations, fatalByRuleName)
	bb.PolicyStatus = status

	result.RecordsProcessed = len(rules)
	result.Message = fmt.Sprintf("policy_status=%s (%d violations)", status, len(violations))
	result.Metrics = map[string]any{
		"policy_status":   string(status),
		"violation_count": len(violations),
	}

	// A fatal ERROR-severity violation fails the owning run, per spec.md
	// §9's decision; every other verdict (passed/warnings) leaves the
	// stage — and the run — succeeding.
	if status == models.PolicyStatusFailed {
		result.Status = models.StageStatusFailed
		return result, fmt.Errorf("policy verdict failed: %d violation(s), at least one fatal", len(violations))
	}

	return result, nil
}

func decodeRules(rs *models.QualityRuleSet) ([]models.Rule, error) {
	var all []models.Rule
	for _, blob := range []string{
		rs.RequiredFieldsRules, rs.DuplicateRateRules, rs.ChunkCoverageRules,
		rs.BadExtensionsRules, rs.FreshnessRules, rs.FileSizeRules, rs.ContentLengthRules,
	} {
		if blob == "" {
			continue
		}
		var rules []models.Rule
		if err := json.Unmarshal([]byte(blob), &rules); err != nil {
			return nil, err
		}
		all = append(all, rules...)
	}
	return all, nil
}

// evaluateRule applies a single rule's check, returning a violation if
// the rule's configured threshold is breached.
func evaluateRule(rule models.Rule, bb *core.RunBlackboard) *models.QualityViolation {
	switch rule.Type {
	case models.RuleTypeChunkCoverage:
		if len(bb.Chunks) == 0 {
			return &models.QualityViolation{
				RuleName: rule.Name, RuleType: rule.Type, Severity: rule.Severity,
				Message: "no chunks produced", AffectedCount: 1, TotalCount: 1, ViolationRate: 1.0,
			}
		}
	case models.RuleTypeRequiredFields:
		missing := int64(0)
		for _, c := range bb.Chunks {
			if c.SourceFile == "" {
				missing++
			}
		}
		if missing > 0 {
			total := int64(len(bb.Chunks))
			return &models.QualityViolation{
				RuleName: rule.Name, RuleType: rule.Type, Severity: rule.Severity,
				Message: "chunks missing required source_file", AffectedCount: missing,
				TotalCount: total, ViolationRate: float64(missing) / float64(total),
			}
		}
	case models.RuleTypeDuplicateRate:
		return evaluateDuplicateRate(rule, bb)
	case models.RuleTypeBadExtensions:
		return evaluateBadExtensions(rule, bb)
	case models.RuleTypeFreshness:
		return evaluateFreshness(rule, bb)
	case models.RuleTypeFileSize:
		return evaluateFileSize(rule, bb)
	case models.RuleTypeContentLength:
		return evaluateContentLength(rule, bb)
	}
	return nil
}

// duplicateRateConfig bounds the fraction of raw files sharing a checksum
// with another raw file in the same batch.
type duplicateRateConfig struct {
	MaxRate float64 `json:"max_rate"`
}

func evaluateDuplicateRate(rule models.Rule, bb *core.RunBlackboard) *models.QualityViolation {
	if len(bb.RawFiles) == 0 {
		return nil
	}
	var cfg duplicateRateConfig
	_ = json.Unmarshal([]byte(rule.Config), &cfg)

	seen := make(map[string]int, len(bb.RawFiles))
	for _, rf := range bb.RawFiles {
		if rf.Checksum != "" {
			seen[rf.Checksum]++
		}
	}
	var duplicates int64
	for _, count := range seen {
		if count > 1 {
			duplicates += int64(count - 1)
		}
	}
	total := int64(len(bb.RawFiles))
	rate := float64(duplicates) / float64(total)
	if rate <= cfg.MaxRate {
		return nil
	}
	return &models.QualityViolation{
		RuleName: rule.Name, RuleType: rule.Type, Severity: rule.Severity,
		Message:       fmt.Sprintf("duplicate checksum rate %.2f%% exceeds max %.2f%%", rate*100, cfg.MaxRate*100),
		AffectedCount: duplicates, TotalCount: total, ViolationRate: rate,
	}
}

// badExtensionsConfig denies files by lowercase extension (with leading dot).
type badExtensionsConfig struct {
	Denied []string `json:"denied"`
}

func evaluateBadExtensions(rule models.Rule, bb *core.RunBlackboard) *models.QualityViolation {
	if len(bb.RawFiles) == 0 {
		return nil
	}
	var cfg badExtensionsConfig
	_ = json.Unmarshal([]byte(rule.Config), &cfg)
	if len(cfg.Denied) == 0 {
		return nil
	}
	denied := make(map[string]bool, len(cfg.Denied))
	for _, ext := range cfg.Denied {
		denied[strings.ToLower(ext)] = true
	}

	var affected int64
	for _, rf := range bb.RawFiles {
		if denied[strings.ToLower(filepath.Ext(rf.Filename))] {
			affected++
		}
	}
	if affected == 0 {
		return nil
	}
	total := int64(len(bb.RawFiles))
	return &models.QualityViolation{
		RuleName: rule.Name, RuleType: rule.Type, Severity: rule.Severity,
		Message:       fmt.Sprintf("%d raw file(s) have a denied extension", affected),
		AffectedCount: affected, TotalCount: total, ViolationRate: float64(affected) / float64(total),
	}
}

// freshnessConfig bounds how old an ingested raw file may be.
type freshnessConfig struct {
	MaxAgeHours float64 `json:"max_age_hours"`
}

func evaluateFreshness(rule models.Rule, bb *core.RunBlackboard) *models.QualityViolation {
	if len(bb.RawFiles) == 0 {
		return nil
	}
	var cfg freshnessConfig
	_ = json.Unmarshal([]byte(rule.Config), &cfg)
	if cfg.MaxAgeHours <= 0 {
		return nil
	}
	maxAge := time.Duration(cfg.MaxAgeHours * float64(time.Hour))
	now := time.Now().UTC()

	var stale int64
	for _, rf := range bb.RawFiles {
		if rf.IngestedAt == nil {
			continue
		}
		if now.Sub(*rf.IngestedAt) > maxAge {
			stale++
		}
	}
	if stale == 0 {
		return nil
	}
	total := int64(len(bb.RawFiles))
	return &models.QualityViolation{
		RuleName: rule.Name, RuleType: rule.Type, Severity: rule.Severity,
		Message:       fmt.Sprintf("%d raw file(s) ingested more than %.0fh ago", stale, cfg.MaxAgeHours),
		AffectedCount: stale, TotalCount: total, ViolationRate: float64(stale) / float64(total),
	}
}

// fileSizeConfig bounds individual raw file size.
type fileSizeConfig struct {
	MaxBytes int64 `json:"max_bytes"`
}

func evaluateFileSize(rule models.Rule, bb *core.RunBlackboard) *models.QualityViolation {
	if len(bb.RawFiles) == 0 {
		return nil
	}
	var cfg fileSizeConfig
	_ = json.Unmarshal([]byte(rule.Config), &cfg)
	if cfg.MaxBytes <= 0 {
		return nil
	}

	var oversized int64
	for _, rf := range bb.RawFiles {
		if rf.SizeBytes > cfg.MaxBytes {
			oversized++
		}
	}
	if oversized == 0 {
		return nil
	}
	total := int64(len(bb.RawFiles))
	return &models.QualityViolation{
		RuleName: rule.Name, RuleType: rule.Type, Severity: rule.Severity,
		Message:       fmt.Sprintf("%d raw file(s) exceed %d bytes", oversized, cfg.MaxBytes),
		AffectedCount: oversized, TotalCount: total, ViolationRate: float64(oversized) / float64(total),
	}
}

// contentLengthConfig bounds a chunk's text length in runes.
type contentLengthConfig struct {
	MinLength int `json:"min_length"`
	MaxLength int `json:"max_length"`
}

func evaluateContentLength(rule models.Rule, bb *core.RunBlackboard) *models.QualityViolation {
	if len(bb.Chunks) == 0 {
		return nil
	}
	var cfg contentLengthConfig
	_ = json.Unmarshal([]byte(rule.Config), &cfg)
	if cfg.MinLength <= 0 && cfg.MaxLength <= 0 {
		return nil
	}

	var outOfBounds int64
	for _, c := range bb.Chunks {
		if cfg.MinLength > 0 && c.ContentLength < cfg.MinLength {
			outOfBounds++
			continue
		}
		if cfg.MaxLength > 0 && c.ContentLength > cfg.MaxLength {
			outOfBounds++
		}
	}
	if outOfBounds == 0 {
		return nil
	}
	total := int64(len(bb.Chunks))
	return &models.QualityViolation{
		RuleName: rule.Name, RuleType: rule.Type, Severity: rule.Severity,
		Message:       fmt.Sprintf("%d chunk(s) outside configured content length bounds", outOfBounds),
		AffectedCount: outOfBounds, TotalCount: total, ViolationRate: float64(outOfBounds) / float64(total),
	}
}

func toPointerSlice(vs []models.QualityViolation) []*models.QualityViolation {
	out := make([]*models.QualityViolation, len(vs))
	for i := range vs {
		out[i] = &vs[i]
	}
	return out
}

func (s *Stage) log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	if s.logger != nil {
		s.logger.Log(ctx, level, msg, attrs...)
	}
}

var _ core.Stage = (*Stage)(nil)
