package models

// Workspace is the tenant boundary. Every other entity references exactly
// one workspace.
type Workspace struct {
	BaseModel

	Name string `gorm:"not null;size:255;uniqueIndex" json:"name"`
}

// TableName returns the table name for Workspace.
func (Workspace) TableName() string {
	return "workspaces"
}

// Validate checks required fields before create/update.
func (w *Workspace) Validate() error {
	if w.Name == "" {
		return ErrNameRequired
	}
	return nil
}
