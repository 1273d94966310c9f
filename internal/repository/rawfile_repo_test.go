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

func setupRawFileTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.RawFile{})
	require.NoError(t, err)

	return db
}

func TestRawFileRepo_MarkFailed(t *testing.T) {
	db := setupRawFileTestDB(t)
	repo := NewRawFileRepository(db)
	ctx := context.Background()

	rf := &models.RawFile{
		WorkspaceID: models.NewULID(), ProductID: models.NewULID(), Version: 1,
		FileStem: "doc1", Status: models.RawFileStatusIngested,
	}
	require.NoError(t, repo.Create(ctx, rf))

	err := repo.MarkFailed(ctx, rf.ID, "etag mismatch: catalog=abc blob=def")
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, rf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RawFileStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "etag mismatch")
}

func TestRawFileRepo_MarkProcessed_ExcludesFailed(t *testing.T) {
	db := setupRawFileTestDB(t)
	repo := NewRawFileRepository(db)
	ctx := context.Background()

	productID := models.NewULID()

	good := &models.RawFile{WorkspaceID: models.NewULID(), ProductID: productID, Version: 1, FileStem: "good", Status: models.RawFileStatusIngested}
	require.NoError(t, repo.Create(ctx, good))

	bad := &models.RawFile{WorkspaceID: models.NewULID(), ProductID: productID, Version: 1, FileStem: "bad", Status: models.RawFileStatusIngested}
	require.NoError(t, repo.Create(ctx, bad))
	require.NoError(t, repo.MarkFailed(ctx, bad.ID, "etag mismatch"))

	require.NoError(t, repo.MarkProcessed(ctx, productID, 1))

	gotGood, err := repo.GetByID(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RawFileStatusProcessed, gotGood.Status)

	gotBad, err := repo.GetByID(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RawFileStatusFailed, gotBad.Status, "a failed raw file must never be flipped to PROCESSED")
}
