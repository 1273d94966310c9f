package models

// StageName identifies a step in the fixed pipeline DAG. The DAG is a
// compile-time constant path; these are the only admissible stage names.
type StageName string

const (
	StageNamePreprocess      StageName = "preprocess"
	StageNameScoring         StageName = "scoring"
	StageNameFingerprint     StageName = "fingerprint"
	StageNameValidation      StageName = "validation"
	StageNamePolicy          StageName = "policy"
	StageNameReporting       StageName = "reporting"
	StageNameIndexing        StageName = "indexing"
	StageNameValidateQuality StageName = "validate_quality"
	StageNameFinalize        StageName = "finalize"
)

// StageDAGOrder is the fixed, topologically-ordered stage sequence. This is
// the only admissible execution order.
var StageDAGOrder = []StageName{
	StageNamePreprocess,
	StageNameScoring,
	StageNameFingerprint,
	StageNameValidation,
	StageNamePolicy,
	StageNameReporting,
	StageNameIndexing,
	StageNameValidateQuality,
	StageNameFinalize,
}

// IsValidStageName reports whether name is one of the fixed DAG stages.
func IsValidStageName(name StageName) bool {
	for _, s := range StageDAGOrder {
		if s == name {
			return true
		}
	}
	return false
}

// StageStatus represents the outcome of one stage execution within a run.
type StageStatus string

const (
	StageStatusPending   StageStatus = "PENDING"
	StageStatusRunning   StageStatus = "RUNNING"
	StageStatusSucceeded StageStatus = "SUCCEEDED"
	StageStatusFailed    StageStatus = "FAILED"
	StageStatusSkipped   StageStatus = "SKIPPED"
)

// StageExecution records one stage's status and metrics within a run.
// Unique per (run_id, stage_name).
type StageExecution struct {
	BaseModel

	RunID     ULID      `gorm:"type:varchar(26);not null;index:idx_stageexec_run_stage,unique" json:"run_id"`
	StageName StageName `gorm:"not null;size:32;index:idx_stageexec_run_stage,unique" json:"stage_name"`

	Status StageStatus `gorm:"not null;default:'PENDING';size:20;index" json:"status"`

	StartedAt  *Time `json:"started_at,omitempty"`
	FinishedAt *Time `json:"finished_at,omitempty"`

	// Metrics is a normalized map<string,number> persisted as JSON; all
	// ratios are stored 0-1, counts carry an explicit unit suffix key.
	Metrics string `gorm:"type:text" json:"metrics,omitempty"`

	ErrorMessage string `gorm:"size:4096" json:"error_message,omitempty"`

	Run *PipelineRun `gorm:"foreignKey:RunID" json:"-"`
}

// TableName returns the table name for StageExecution.
func (StageExecution) TableName() string {
	return "stage_executions"
}

// Validate checks required fields and the closed stage-name enum.
func (s *StageExecution) Validate() error {
	if s.RunID.IsZero() {
		return ErrRunIDRequired
	}
	if s.StageName == "" {
		return ErrStageNameRequired
	}
	if !IsValidStageName(s.StageName) {
		return ErrInvalidStageName
	}
	return nil
}

// MarkRunning transitions the stage to RUNNING and stamps started_at.
func (s *StageExecution) MarkRunning() {
	s.Status = StageStatusRunning
	now := Now()
	s.StartedAt = &now
}

// MarkSucceeded transitions the stage to SUCCEEDED with final metrics.
func (s *StageExecution) MarkSucceeded(metricsJSON string) {
	s.Status = StageStatusSucceeded
	s.Metrics = metricsJSON
	now := Now()
	s.FinishedAt = &now
}

// MarkFailed transitions the stage to FAILED with an error message.
func (s *StageExecution) MarkFailed(err error, metricsJSON string) {
	s.Status = StageStatusFailed
	s.Metrics = metricsJSON
	if err != nil {
		s.ErrorMessage = err.Error()
	}
	now := Now()
	s.FinishedAt = &now
}

// MarkSkipped transitions the stage to SKIPPED (cancellation observed).
func (s *StageExecution) MarkSkipped() {
	s.Status = StageStatusSkipped
	now := Now()
	s.FinishedAt = &now
}
