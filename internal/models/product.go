package models

// ProductStatus represents the current lifecycle status of a Product,
// reflecting the outcome of its latest pipeline run.
type ProductStatus string

const (
	// ProductStatusDraft indicates the product has no successful run yet.
	ProductStatusDraft ProductStatus = "DRAFT"
	// ProductStatusRunning indicates a pipeline run is currently in flight.
	ProductStatusRunning ProductStatus = "RUNNING"
	// ProductStatusReady indicates the latest run succeeded.
	ProductStatusReady ProductStatus = "READY"
	// ProductStatusFailed indicates the latest run failed.
	ProductStatusFailed ProductStatus = "FAILED"
)

// Product is a tenant-owned collection of data sources and the processed
// artifacts derived from them, identified and versioned as a unit.
type Product struct {
	BaseModel

	WorkspaceID ULID `gorm:"type:varchar(26);not null;index:idx_product_workspace_name,unique" json:"workspace_id"`

	Name        string `gorm:"not null;size:255;index:idx_product_workspace_name,unique" json:"name"`
	Description string `gorm:"size:2048" json:"description,omitempty"`

	Status ProductStatus `gorm:"not null;default:'DRAFT';size:20;index" json:"status"`

	// CurrentVersion is the highest version with any finalized ingest.
	// Monotonically increasing; never decreases.
	CurrentVersion int `gorm:"not null;default:0" json:"current_version"`

	// PromotedVersion is the version currently considered the
	// publication-ready one, or nil if none has been promoted.
	PromotedVersion *int `json:"promoted_version,omitempty"`

	// ChunkingConfig is an opaque, playbook-specific JSON blob describing
	// how the preprocess stage should chunk this product's raw files.
	ChunkingConfig string `gorm:"type:text" json:"chunking_config,omitempty"`

	Workspace *Workspace `gorm:"foreignKey:WorkspaceID" json:"-"`
}

// TableName returns the table name for Product.
func (Product) TableName() string {
	return "products"
}

// Validate checks required fields and invariants.
func (p *Product) Validate() error {
	if p.Name == "" {
		return ErrNameRequired
	}
	if p.WorkspaceID.IsZero() {
		return ErrWorkspaceIDRequired
	}
	if p.PromotedVersion != nil && *p.PromotedVersion > p.CurrentVersion {
		return ErrPromotedVersionExceedsCurrent
	}
	return nil
}

// IsDraft returns true if the product has never completed a successful run.
func (p *Product) IsDraft() bool {
	return p.Status == ProductStatusDraft
}
