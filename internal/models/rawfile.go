package models

// RawFileStatus represents the lifecycle status of a RawFile, from
// ingestion through processing to either a processed terminal state or a
// soft-deleted tombstone.
type RawFileStatus string

const (
	// RawFileStatusIngesting indicates the catalog row exists but the blob
	// upload has not yet completed.
	RawFileStatusIngesting RawFileStatus = "INGESTING"
	// RawFileStatusIngested indicates the blob upload succeeded. The ingest
	// coordinator sets it per file, before the batch is finalized.
	RawFileStatusIngested RawFileStatus = "INGESTED"
	// RawFileStatusProcessing indicates a pipeline run has picked up the file.
	RawFileStatusProcessing RawFileStatus = "PROCESSING"
	// RawFileStatusProcessed indicates the file was consumed by a
	// successfully finalized pipeline run.
	RawFileStatusProcessed RawFileStatus = "PROCESSED"
	// RawFileStatusFailed indicates ingestion or processing failed.
	RawFileStatusFailed RawFileStatus = "FAILED"
	// RawFileStatusDeleted is a soft tombstone retained for audit.
	RawFileStatusDeleted RawFileStatus = "DELETED"
)

// RawFile is one ingested source item: stored once in the blob store and
// once as this catalog row. (product_id, version, file_stem) is unique.
type RawFile struct {
	BaseModel

	WorkspaceID  ULID `gorm:"type:varchar(26);not null;index" json:"workspace_id"`
	ProductID    ULID `gorm:"type:varchar(26);not null;index:idx_rawfile_product_version_stem,unique" json:"product_id"`
	DataSourceID ULID `gorm:"type:varchar(26);index" json:"data_source_id,omitempty"`

	Version int `gorm:"not null;index:idx_rawfile_product_version_stem,unique" json:"version"`

	FileStem string `gorm:"not null;size:1024;index:idx_rawfile_product_version_stem,unique" json:"file_stem"`
	Filename string `gorm:"size:1024" json:"filename"`

	ContentType string `gorm:"size:255" json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	Checksum    string `gorm:"size:128" json:"checksum,omitempty"`

	BlobBucket string `gorm:"size:64" json:"blob_bucket"`
	BlobKey    string `gorm:"size:1024" json:"blob_key"`
	ETag       string `gorm:"size:128" json:"etag,omitempty"`

	Status RawFileStatus `gorm:"not null;default:'INGESTING';size:20;index" json:"status"`

	ErrorMessage string `gorm:"size:4096" json:"error_message,omitempty"`

	IngestedAt  *Time `json:"ingested_at,omitempty"`
	ProcessedAt *Time `json:"processed_at,omitempty"`

	Product *Product `gorm:"foreignKey:ProductID" json:"-"`
}

// TableName returns the table name for RawFile.
func (RawFile) TableName() string {
	return "raw_files"
}

// Validate checks required fields.
func (r *RawFile) Validate() error {
	if r.WorkspaceID.IsZero() {
		return ErrWorkspaceIDRequired
	}
	if r.ProductID.IsZero() {
		return ErrProductIDRequired
	}
	if r.FileStem == "" {
		return ErrFileStemRequired
	}
	if r.Version < 1 {
		return ErrVersionMustBePositive
	}
	return nil
}

// IsActive returns true if the file is in any non-terminal, non-deleted state.
func (r *RawFile) IsActive() bool {
	return r.Status != RawFileStatusDeleted
}

// MarkIngested marks the file as successfully uploaded to the blob store.
func (r *RawFile) MarkIngested(sizeBytes int64, checksum, etag string) {
	r.Status = RawFileStatusIngested
	r.SizeBytes = sizeBytes
	r.Checksum = checksum
	r.ETag = etag
	now := Now()
	r.IngestedAt = &now
	r.ErrorMessage = ""
}

// MarkFailed marks the file as failed with an error message. Per spec, the
// partial blob (if any) is left for reconciliation rather than deleted here.
func (r *RawFile) MarkFailed(err error) {
	r.Status = RawFileStatusFailed
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// MarkProcessed marks the file as consumed by a finalized pipeline run.
func (r *RawFile) MarkProcessed() {
	r.Status = RawFileStatusProcessed
	now := Now()
	r.ProcessedAt = &now
}
