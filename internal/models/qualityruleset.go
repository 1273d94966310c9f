package models

// RuleSeverity controls whether a violated rule can fail a run.
type RuleSeverity string

const (
	RuleSeverityError   RuleSeverity = "ERROR"
	RuleSeverityWarning RuleSeverity = "WARNING"
	RuleSeverityInfo    RuleSeverity = "INFO"
)

// RuleType identifies which quality dimension a rule checks.
type RuleType string

const (
	RuleTypeRequiredFields RuleType = "required_fields"
	RuleTypeDuplicateRate  RuleType = "duplicate_rate"
	RuleTypeChunkCoverage  RuleType = "chunk_coverage"
	RuleTypeBadExtensions  RuleType = "bad_extensions"
	RuleTypeFreshness      RuleType = "freshness"
	RuleTypeFileSize       RuleType = "file_size"
	RuleTypeContentLength  RuleType = "content_length"
)

// Rule is one quality check within a QualityRuleSet. Config carries the
// type-specific parameters (e.g. required_fields: []string, max_rate:
// float64) as raw JSON, kept opaque to the catalog layer.
type Rule struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Severity    RuleSeverity `json:"severity"`
	Enabled     bool         `json:"enabled"`
	// Fatal marks that violating this rule (at its configured severity)
	// fails the owning PipelineRun, per spec.md §9's policy-vs-run-status
	// decision: only ERROR-severity rules with Fatal=true propagate.
	Fatal  bool            `json:"fatal"`
	Type   RuleType        `json:"rule_type"`
	Config string          `json:"config,omitempty"`
}

// Validate checks required fields on a single rule.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return ErrRuleNameRequired
	}
	switch r.Severity {
	case RuleSeverityError, RuleSeverityWarning, RuleSeverityInfo:
	default:
		return ErrInvalidSeverity
	}
	return nil
}

// QualityRuleSet is the versioned, effective set of quality rules for a
// Product at a given version. The policy stage evaluates the set whose
// version is resolved as "latest effective for this product" at run time.
type QualityRuleSet struct {
	BaseModel

	WorkspaceID ULID `gorm:"type:varchar(26);not null;index" json:"workspace_id"`
	ProductID   ULID `gorm:"type:varchar(26);not null;index:idx_ruleset_product_version,unique" json:"product_id"`
	Version     int  `gorm:"not null;index:idx_ruleset_product_version,unique" json:"version"`

	RequiredFieldsRules string `gorm:"type:text" json:"required_fields_rules,omitempty"`
	DuplicateRateRules  string `gorm:"type:text" json:"duplicate_rate_rules,omitempty"`
	ChunkCoverageRules  string `gorm:"type:text" json:"chunk_coverage_rules,omitempty"`
	BadExtensionsRules  string `gorm:"type:text" json:"bad_extensions_rules,omitempty"`
	FreshnessRules      string `gorm:"type:text" json:"freshness_rules,omitempty"`
	FileSizeRules       string `gorm:"type:text" json:"file_size_rules,omitempty"`
	ContentLengthRules  string `gorm:"type:text" json:"content_length_rules,omitempty"`

	Product *Product `gorm:"foreignKey:ProductID" json:"-"`
}

// TableName returns the table name for QualityRuleSet.
func (QualityRuleSet) TableName() string {
	return "quality_rule_sets"
}

// Validate checks required fields.
func (q *QualityRuleSet) Validate() error {
	if q.WorkspaceID.IsZero() {
		return ErrWorkspaceIDRequired
	}
	if q.ProductID.IsZero() {
		return ErrProductIDRequired
	}
	if q.Version < 1 {
		return ErrVersionMustBePositive
	}
	return nil
}
