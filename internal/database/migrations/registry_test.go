package migrations

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/jmylchreest/corpusctl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return db
}

func TestAllMigrations_ReturnsExpectedCount(t *testing.T) {
	migrations := AllMigrations()
	assert.Len(t, migrations, 2)
}

func TestAllMigrations_VersionsAreUnique(t *testing.T) {
	migrations := AllMigrations()
	versions := make(map[string]bool)

	for _, m := range migrations {
		assert.False(t, versions[m.Version], "duplicate version: %s", m.Version)
		versions[m.Version] = true
	}
}

func TestAllMigrations_VersionsAreOrdered(t *testing.T) {
	migrations := AllMigrations()

	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version,
			"migrations should be in ascending version order")
	}
}

func TestMigrator_Up_AllMigrations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	err := migrator.Up(ctx)
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable("workspaces"))
	assert.True(t, db.Migrator().HasTable("products"))
	assert.True(t, db.Migrator().HasTable("data_sources"))
	assert.True(t, db.Migrator().HasTable("raw_files"))
	assert.True(t, db.Migrator().HasTable("pipeline_runs"))
	assert.True(t, db.Migrator().HasTable("stage_executions"))
	assert.True(t, db.Migrator().HasTable("artifacts"))
	assert.True(t, db.Migrator().HasTable("chunk_metadata"))
	assert.True(t, db.Migrator().HasTable("quality_rule_sets"))
	assert.True(t, db.Migrator().HasTable("quality_violations"))

	var count int64
	require.NoError(t, db.Model(&models.Workspace{}).Where("name = ?", "default").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMigrator_Up_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	err := migrator.Up(ctx)
	require.NoError(t, err)

	err = migrator.Up(ctx)
	require.NoError(t, err)
}

func TestMigrator_Status(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	statuses, err := migrator.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, statuses, 2)

	for _, s := range statuses {
		assert.False(t, s.Applied)
		assert.Nil(t, s.AppliedAt)
	}

	err = migrator.Up(ctx)
	require.NoError(t, err)

	statuses, err = migrator.Status(ctx)
	require.NoError(t, err)

	for _, s := range statuses {
		assert.True(t, s.Applied)
		assert.NotNil(t, s.AppliedAt)
	}
}

func TestMigrator_Down_RollsBackLastMigration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	err := migrator.Up(ctx)
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable("workspaces"))

	// Roll back migration 002 (default workspace seed)
	err = migrator.Down(ctx)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Workspace{}).Where("name = ?", "default").Count(&count).Error)
	assert.Equal(t, int64(0), count)
	assert.True(t, db.Migrator().HasTable("workspaces"))

	// Roll back migration 001 (schema)
	err = migrator.Down(ctx)
	require.NoError(t, err)

	assert.False(t, db.Migrator().HasTable("workspaces"))
	assert.False(t, db.Migrator().HasTable("products"))
}

func TestMigrator_Pending(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	pending, err := migrator.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	err = migrator.Up(ctx)
	require.NoError(t, err)

	pending, err = migrator.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 0)
}

func TestMigrations_CanInsertData(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	err := migrator.Up(ctx)
	require.NoError(t, err)

	var workspace models.Workspace
	require.NoError(t, db.Where("name = ?", "default").First(&workspace).Error)

	product := &models.Product{
		WorkspaceID: workspace.ID,
		Name:        "catalog-docs",
		Status:      models.ProductStatusDraft,
	}
	require.NoError(t, db.Create(product).Error)
	assert.NotZero(t, product.ID)

	source := &models.DataSource{
		WorkspaceID: workspace.ID,
		ProductID:   product.ID,
		Type:        models.DataSourceTypeFolder,
		Config:      `{"path":"/data/in"}`,
	}
	require.NoError(t, db.Create(source).Error)
	assert.NotZero(t, source.ID)
}

func TestMigrations_PipelineRunRelationships(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	migrator := NewMigrator(db, nil)
	migrator.RegisterAll(AllMigrations())

	err := migrator.Up(ctx)
	require.NoError(t, err)

	var workspace models.Workspace
	require.NoError(t, db.Where("name = ?", "default").First(&workspace).Error)

	product := &models.Product{WorkspaceID: workspace.ID, Name: "policies", Status: models.ProductStatusDraft}
	require.NoError(t, db.Create(product).Error)

	run := &models.PipelineRun{
		WorkspaceID: workspace.ID,
		ProductID:   product.ID,
		Version:     1,
		Status:      models.RunStatusQueued,
	}
	require.NoError(t, db.Create(run).Error)

	stage := &models.StageExecution{
		RunID:     run.ID,
		StageName: models.StageNamePreprocess,
		Status:    models.StageStatusPending,
	}
	require.NoError(t, db.Create(stage).Error)

	var loadedRun models.PipelineRun
	err = db.Preload("StageExecutions").First(&loadedRun, "id = ?", run.ID).Error
	require.NoError(t, err)
	assert.Len(t, loadedRun.StageExecutions, 1)
}
