package models

// RunStatus represents the lifecycle status of a PipelineRun.
type RunStatus string

const (
	// RunStatusQueued indicates the run has been accepted but not yet picked
	// up by a worker.
	RunStatusQueued RunStatus = "QUEUED"
	// RunStatusRunning indicates a worker has begun executing the stage DAG.
	RunStatusRunning RunStatus = "RUNNING"
	// RunStatusSucceeded indicates every stage completed and finalize ran.
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	// RunStatusFailed indicates a terminal-on-failure stage reported FAILED.
	RunStatusFailed RunStatus = "FAILED"
	// RunStatusCancelled indicates the run observed cancel_requested and
	// stopped at a stage boundary.
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal returns true if the status cannot transition further.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// PipelineRun is one execution of the fixed stage DAG against a single
// (product, version) pair. At most one QUEUED/RUNNING and at most one
// SUCCEEDED run may exist per pair at any instant.
type PipelineRun struct {
	BaseModel

	WorkspaceID ULID `gorm:"type:varchar(26);not null;index" json:"workspace_id"`
	ProductID   ULID `gorm:"type:varchar(26);not null;index:idx_run_product_version" json:"product_id"`
	Version     int  `gorm:"not null;index:idx_run_product_version" json:"version"`

	Status RunStatus `gorm:"not null;default:'QUEUED';size:20;index" json:"status"`

	StartedAt  *Time `json:"started_at,omitempty"`
	FinishedAt *Time `json:"finished_at,omitempty"`

	// ConfigSnapshot freezes the chunking config, playbook reference, and
	// embedding model selection effective at trigger time.
	ConfigSnapshot string `gorm:"type:text" json:"config_snapshot,omitempty"`

	TriggerReason string `gorm:"size:255" json:"trigger_reason,omitempty"`

	CancelRequested bool `gorm:"not null;default:false" json:"cancel_requested"`

	ErrorMessage string `gorm:"size:4096" json:"error_message,omitempty"`

	Product         *Product          `gorm:"foreignKey:ProductID" json:"-"`
	StageExecutions []StageExecution  `gorm:"foreignKey:RunID" json:"stage_executions,omitempty"`
	Artifacts       []Artifact        `gorm:"foreignKey:RunID" json:"artifacts,omitempty"`
	Violations      []QualityViolation `gorm:"foreignKey:RunID" json:"violations,omitempty"`
}

// TableName returns the table name for PipelineRun.
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

// Validate checks required fields.
func (p *PipelineRun) Validate() error {
	if p.WorkspaceID.IsZero() {
		return ErrWorkspaceIDRequired
	}
	if p.ProductID.IsZero() {
		return ErrProductIDRequired
	}
	if p.Version < 1 {
		return ErrVersionMustBePositive
	}
	return nil
}

// IsActive returns true if the run is QUEUED or RUNNING.
func (p *PipelineRun) IsActive() bool {
	return p.Status == RunStatusQueued || p.Status == RunStatusRunning
}

// RequestCancel sets cancel_requested; idempotent.
func (p *PipelineRun) RequestCancel() {
	p.CancelRequested = true
}
