package models

// ChunkMetadata is a denormalized index row for per-chunk drill-down,
// independent of the packed vector payload in the blob store.
type ChunkMetadata struct {
	BaseModel

	ProductID ULID `gorm:"type:varchar(26);not null;index:idx_chunk_product_version,unique" json:"product_id"`
	Version   int  `gorm:"not null;index:idx_chunk_product_version,unique" json:"version"`
	ChunkID   string `gorm:"not null;size:128;index:idx_chunk_product_version,unique" json:"chunk_id"`

	SourceFile string `gorm:"size:1024" json:"source_file"`
	PageNumber *int   `json:"page_number,omitempty"`
	Section    string `gorm:"size:255" json:"section,omitempty"`
	FieldName  string `gorm:"size:255" json:"field_name,omitempty"`

	// ContentLength is the chunk text's rune count, recorded by preprocess
	// for the policy stage's content_length rule to evaluate against.
	ContentLength int `json:"content_length,omitempty"`

	// Score is the composite per-chunk score produced by the scoring stage.
	Score *float64 `json:"score,omitempty"`

	Product *Product `gorm:"foreignKey:ProductID" json:"-"`
}

// TableName returns the table name for ChunkMetadata.
func (ChunkMetadata) TableName() string {
	return "chunk_metadata"
}

// Validate checks required fields.
func (c *ChunkMetadata) Validate() error {
	if c.ProductID.IsZero() {
		return ErrProductIDRequired
	}
	if c.ChunkID == "" {
		return ErrChunkIDRequired
	}
	if c.Version < 1 {
		return ErrVersionMustBePositive
	}
	return nil
}
