package models

// ArtifactType identifies the format of a persisted pipeline output.
type ArtifactType string

const (
	ArtifactTypeJSON   ArtifactType = "JSON"
	ArtifactTypeJSONL  ArtifactType = "JSONL"
	ArtifactTypeCSV    ArtifactType = "CSV"
	ArtifactTypePDF    ArtifactType = "PDF"
	ArtifactTypeVector ArtifactType = "VECTOR"
	ArtifactTypeReport ArtifactType = "REPORT"
)

// Artifact is a pointer to one blob-store object produced by a stage
// (chunks.jsonl, fingerprint.json, report.pdf, packed vectors, etc.).
type Artifact struct {
	BaseModel

	RunID     ULID      `gorm:"type:varchar(26);not null;index" json:"run_id"`
	StageName StageName `gorm:"not null;size:32;index" json:"stage_name"`

	ArtifactType ArtifactType `gorm:"not null;size:20" json:"artifact_type"`

	Name        string `gorm:"not null;size:255" json:"name"`
	DisplayName string `gorm:"size:255" json:"display_name,omitempty"`

	BlobBucket string `gorm:"size:64;not null" json:"blob_bucket"`
	BlobKey    string `gorm:"size:1024;not null" json:"blob_key"`

	SizeBytes int64 `json:"size_bytes"`

	Run *PipelineRun `gorm:"foreignKey:RunID" json:"-"`
}

// TableName returns the table name for Artifact.
func (Artifact) TableName() string {
	return "artifacts"
}

// Validate checks required fields.
func (a *Artifact) Validate() error {
	if a.RunID.IsZero() {
		return ErrRunIDRequired
	}
	if a.ArtifactType == "" {
		return ErrArtifactTypeRequired
	}
	if a.BlobKey == "" {
		return ErrBlobKeyRequired
	}
	return nil
}
