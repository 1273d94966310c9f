package repository

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

func setupProductTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.Workspace{}, &models.Product{}, &models.DataSource{}, &models.RawFile{},
		&models.PipelineRun{}, &models.StageExecution{}, &models.Artifact{},
		&models.ChunkMetadata{}, &models.QualityRuleSet{}, &models.QualityViolation{},
	)
	require.NoError(t, err)

	return db
}

// seedProductWithChildren creates a product plus one row in every
// product-scoped and run-scoped child table, returning the product ID.
func seedProductWithChildren(t *testing.T, db *gorm.DB) models.ULID {
	t.Helper()
	ctx := context.Background()
	workspaceID := models.NewULID()

	product := &models.Product{WorkspaceID: workspaceID, Name: "cascade-test", CurrentVersion: 1}
	require.NoError(t, db.WithContext(ctx).Create(product).Error)

	ds := &models.DataSource{WorkspaceID: workspaceID, ProductID: product.ID, Type: models.DataSourceTypeFolder, Config: `{"root":"/data"}`}
	require.NoError(t, db.WithContext(ctx).Create(ds).Error)

	rf := &models.RawFile{WorkspaceID: workspaceID, ProductID: product.ID, Version: 1, FileStem: "doc1"}
	require.NoError(t, db.WithContext(ctx).Create(rf).Error)

	ruleSet := &models.QualityRuleSet{WorkspaceID: workspaceID, ProductID: product.ID, Version: 1}
	require.NoError(t, db.WithContext(ctx).Create(ruleSet).Error)

	chunk := &models.ChunkMetadata{ProductID: product.ID, Version: 1, ChunkID: "c1"}
	require.NoError(t, db.WithContext(ctx).Create(chunk).Error)

	run := &models.PipelineRun{WorkspaceID: workspaceID, ProductID: product.ID, Version: 1, Status: models.RunStatusSucceeded}
	require.NoError(t, db.WithContext(ctx).Create(run).Error)

	stageExec := &models.StageExecution{RunID: run.ID, StageName: models.StageNamePreprocess, Status: models.StageStatusSucceeded}
	require.NoError(t, db.WithContext(ctx).Create(stageExec).Error)

	artifact := &models.Artifact{RunID: run.ID, StageName: models.StageNamePreprocess, ArtifactType: models.ArtifactTypeJSONL, Name: "chunks.jsonl", BlobBucket: "clean", BlobKey: "k"}
	require.NoError(t, db.WithContext(ctx).Create(artifact).Error)

	violation := &models.QualityViolation{RunID: run.ID, RuleName: "r1"}
	require.NoError(t, db.WithContext(ctx).Create(violation).Error)

	return product.ID
}

func TestProductRepo_Delete_Cascades(t *testing.T) {
	db := setupProductTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	productID := seedProductWithChildren(t, db)

	err := repo.Delete(ctx, productID)
	require.NoError(t, err)

	var count int64
	assert.NoError(t, db.Model(&models.Product{}).Where("id = ?", productID).Count(&count).Error)
	assert.Zero(t, count)

	assert.NoError(t, db.Model(&models.DataSource{}).Where("product_id = ?", productID).Count(&count).Error)
	assert.Zero(t, count, "data sources should be cascade-deleted")

	assert.NoError(t, db.Model(&models.RawFile{}).Where("product_id = ?", productID).Count(&count).Error)
	assert.Zero(t, count, "raw files should be cascade-deleted")

	assert.NoError(t, db.Model(&models.ChunkMetadata{}).Where("product_id = ?", productID).Count(&count).Error)
	assert.Zero(t, count, "chunk metadata should be cascade-deleted")

	assert.NoError(t, db.Model(&models.QualityRuleSet{}).Where("product_id = ?", productID).Count(&count).Error)
	assert.Zero(t, count, "quality rule sets should be cascade-deleted")

	var runIDs []models.ULID
	assert.NoError(t, db.Model(&models.PipelineRun{}).Where("product_id = ?", productID).Pluck("id", &runIDs).Error)
	assert.Empty(t, runIDs, "pipeline runs should be cascade-deleted")

	assert.NoError(t, db.Model(&models.StageExecution{}).Count(&count).Error)
	assert.Zero(t, count, "stage executions for the deleted run should be cascade-deleted")

	assert.NoError(t, db.Model(&models.Artifact{}).Count(&count).Error)
	assert.Zero(t, count, "artifacts for the deleted run should be cascade-deleted")

	assert.NoError(t, db.Model(&models.QualityViolation{}).Count(&count).Error)
	assert.Zero(t, count, "quality violations for the deleted run should be cascade-deleted")
}

func TestProductRepo_Delete_NonExistentIsNoOp(t *testing.T) {
	db := setupProductTestDB(t)
	repo := NewProductRepository(db)

	err := repo.Delete(context.Background(), models.NewULID())
	assert.NoError(t, err)
}
