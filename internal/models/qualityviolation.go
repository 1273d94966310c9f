package models

// QualityViolation records one rule violation detected by the policy stage
// for a given run.
type QualityViolation struct {
	BaseModel

	RunID    ULID         `gorm:"type:varchar(26);not null;index" json:"run_id"`
	RuleName string       `gorm:"not null;size:255" json:"rule_name"`
	RuleType RuleType     `gorm:"not null;size:32" json:"rule_type"`
	Severity RuleSeverity `gorm:"not null;size:20" json:"severity"`

	Message string `gorm:"size:2048" json:"message"`
	Details string `gorm:"type:text" json:"details,omitempty"`

	AffectedCount int64   `json:"affected_count"`
	TotalCount    int64   `json:"total_count"`
	ViolationRate float64 `json:"violation_rate"`

	Run *PipelineRun `gorm:"foreignKey:RunID" json:"-"`
}

// TableName returns the table name for QualityViolation.
func (QualityViolation) TableName() string {
	return "quality_violations"
}

// Validate checks required fields.
func (q *QualityViolation) Validate() error {
	if q.RunID.IsZero() {
		return ErrRunIDRequired
	}
	if q.RuleName == "" {
		return ErrRuleNameRequired
	}
	return nil
}

// IsFatal reports whether this violation, given the owning rule's
// fatal flag, should fail the run. Callers pass the Rule.Fatal flag
// captured at evaluation time since QualityViolation itself doesn't own it.
func (q *QualityViolation) IsFatal(ruleFatal bool) bool {
	return ruleFatal && q.Severity == RuleSeverityError
}

// PolicyStatus summarizes a set of violations into the policy verdict
// reported on the StageExecution and Artifact (passed|warnings|failed).
type PolicyStatus string

const (
	PolicyStatusPassed   PolicyStatus = "passed"
	PolicyStatusWarnings PolicyStatus = "warnings"
	PolicyStatusFailed   PolicyStatus = "failed"
)

// ComposePolicyStatus derives the policy verdict from a set of violations
// and the fatal flag of each violation's owning rule. The verdict is data;
// it does not by itself fail the run (spec.md §9).
func ComposePolicyStatus(violations []QualityViolation, fatalByRuleName map[string]bool) PolicyStatus {
	hasWarning := false
	for _, v := range violations {
		if v.IsFatal(fatalByRuleName[v.RuleName]) {
			return PolicyStatusFailed
		}
		hasWarning = true
	}
	if hasWarning {
		return PolicyStatusWarnings
	}
	return PolicyStatusPassed
}
