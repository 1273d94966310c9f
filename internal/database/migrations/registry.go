// Package migrations provides database migration management for corpusctl.
package migrations

import (
	"github.com/jmylchreest/corpusctl/internal/models"
	"gorm.io/gorm"
)

// AllMigrations returns all registered migrations in order.
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
		migration002DefaultWorkspace(),
	}
}

// migration001Schema creates all database tables using GORM AutoMigrate.
func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "Create all catalog tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Workspace{},
				&models.Product{},
				&models.DataSource{},
				&models.RawFile{},
				&models.PipelineRun{},
				&models.StageExecution{},
				&models.Artifact{},
				&models.ChunkMetadata{},
				&models.QualityRuleSet{},
				&models.QualityViolation{},
			)
		},
		Down: func(tx *gorm.DB) error {
			tables := []string{
				"quality_violations",
				"quality_rule_sets",
				"chunk_metadata",
				"artifacts",
				"stage_executions",
				"pipeline_runs",
				"raw_files",
				"data_sources",
				"products",
				"workspaces",
			}
			for _, table := range tables {
				if err := tx.Migrator().DropTable(table); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// migration002DefaultWorkspace seeds a default workspace for single-tenant
// deployments that never call the workspace-provisioning endpoint
// (POST /api/v1/workspaces).
func migration002DefaultWorkspace() Migration {
	return Migration{
		Version:     "002",
		Description: "Seed default workspace",
		Up: func(tx *gorm.DB) error {
			workspace := models.Workspace{Name: "default"}
			return tx.Where(models.Workspace{Name: "default"}).
				FirstOrCreate(&workspace).Error
		},
		Down: func(tx *gorm.DB) error {
			return tx.Where("name = ?", "default").Delete(&models.Workspace{}).Error
		},
	}
}
