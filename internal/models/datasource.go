package models

// DataSourceType identifies which connector is used to pull raw bytes.
type DataSourceType string

const (
	// DataSourceTypeWeb pulls documents from a web crawl.
	DataSourceTypeWeb DataSourceType = "WEB"
	// DataSourceTypeFolder pulls documents from a mounted/synced folder.
	DataSourceTypeFolder DataSourceType = "FOLDER"
	// DataSourceTypeDatabase pulls rows from a database query as documents.
	DataSourceTypeDatabase DataSourceType = "DATABASE"
)

// DataSource describes how to pull raw bytes for a Product. Config is
// immutable per ingest: changing it takes effect on the next ingest call,
// never retroactively.
type DataSource struct {
	BaseModel

	WorkspaceID ULID `gorm:"type:varchar(26);not null;index" json:"workspace_id"`
	ProductID   ULID `gorm:"type:varchar(26);not null;index" json:"product_id"`

	Type DataSourceType `gorm:"not null;size:20;index" json:"type"`

	// Config is opaque, per-type JSON (crawl seeds + depth for WEB, root
	// path + glob for FOLDER, DSN + query for DATABASE).
	Config string `gorm:"type:text;not null" json:"config"`

	// CronSchedule drives periodic re-ingestion for WEB/DATABASE sources.
	// Empty means ingest is only triggered explicitly.
	CronSchedule string `gorm:"size:100" json:"cron_schedule,omitempty"`

	Product *Product `gorm:"foreignKey:ProductID" json:"-"`
}

// TableName returns the table name for DataSource.
func (DataSource) TableName() string {
	return "data_sources"
}

// Validate checks required fields and the closed type enum.
func (d *DataSource) Validate() error {
	if d.WorkspaceID.IsZero() {
		return ErrWorkspaceIDRequired
	}
	if d.ProductID.IsZero() {
		return ErrProductIDRequired
	}
	switch d.Type {
	case DataSourceTypeWeb, DataSourceTypeFolder, DataSourceTypeDatabase:
	default:
		return ErrInvalidDataSourceType
	}
	return nil
}

// IsRecurring returns true if this data source re-ingests on a schedule.
func (d *DataSource) IsRecurring() bool {
	return d.CronSchedule != ""
}
