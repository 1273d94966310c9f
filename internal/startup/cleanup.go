// Package startup provides utilities for application startup tasks.
package startup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/jmylchreest/corpusctl/internal/models"
)

// TempDirPrefix is the prefix used for scratch directories created during
// preprocess/fingerprint stage execution (e.g. temporary extraction dirs).
const TempDirPrefix = "corpusctl-ingest-"

// CleanupOrphanedTempDirs removes orphaned temporary directories that are older
// than the specified maxAge. It looks for directories matching the pattern
// "corpusctl-ingest-*" in the specified base directory.
//
// Returns the number of directories removed and any error encountered.
func CleanupOrphanedTempDirs(logger *slog.Logger, baseDir string, maxAge time.Duration) (int, error) {
	// Check if the base directory exists
	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		logger.Debug("base directory does not exist, skipping cleanup",
			"path", baseDir,
		)
		return 0, nil
	}

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		logger.Error("failed to read directory for cleanup",
			"path", baseDir,
			"error", err,
		)
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	var removed int

	for _, entry := range entries {
		// Only process directories
		if !entry.IsDir() {
			continue
		}

		// Only process directories matching our prefix
		if !strings.HasPrefix(entry.Name(), TempDirPrefix) {
			continue
		}

		dirPath := filepath.Join(baseDir, entry.Name())

		// Get file info for modification time
		info, err := entry.Info()
		if err != nil {
			logger.Warn("failed to get directory info",
				"path", dirPath,
				"error", err,
			)
			continue
		}

		// Check if directory is older than cutoff
		if info.ModTime().After(cutoff) {
			logger.Debug("preserving recent temp directory",
				"path", dirPath,
				"age", time.Since(info.ModTime()).Round(time.Second),
			)
			continue
		}

		// Remove the orphaned directory
		if err := os.RemoveAll(dirPath); err != nil {
			logger.Warn("failed to remove orphaned temp directory",
				"path", dirPath,
				"error", err,
			)
			continue
		}

		logger.Info("removed orphaned temp directory",
			"path", dirPath,
			"age", time.Since(info.ModTime()).Round(time.Second),
		)
		removed++
	}

	return removed, nil
}

// DefaultCleanupAge is the default maximum age for orphaned temp directories (1 hour).
const DefaultCleanupAge = 1 * time.Hour

// CleanupSystemTempDirs cleans up orphaned corpusctl temp directories from the
// system temp directory using the default cleanup age.
func CleanupSystemTempDirs(logger *slog.Logger) (int, error) {
	return CleanupOrphanedTempDirs(logger, os.TempDir(), DefaultCleanupAge)
}

// RecoverStaleRuns resets any pipeline runs stuck in RUNNING status back to
// FAILED. This handles the case where the server crashed or was restarted
// while a stage DAG was in progress: without this recovery, runs would
// remain permanently RUNNING since the in-memory orchestrator state is lost
// on restart, which would block BeginRun's one-active-run-per-version
// invariant forever.
//
// Returns the number of runs recovered and any error encountered.
func RecoverStaleRuns(ctx context.Context, logger *slog.Logger, db *gorm.DB) (int, error) {
	now := models.Time(time.Now().UTC())
	result := db.WithContext(ctx).
		Model(&models.PipelineRun{}).
		Where("status = ?", models.RunStatusRunning).
		Updates(map[string]any{
			"status":        models.RunStatusFailed,
			"error_message": "interrupted by server restart",
			"finished_at":   now,
		})
	if result.Error != nil {
		logger.Error("failed to recover stale pipeline runs", "error", result.Error)
		return 0, fmt.Errorf("recovering stale pipeline runs: %w", result.Error)
	}

	recovered := int(result.RowsAffected)
	if recovered > 0 {
		logger.Warn("recovered stale pipeline runs stuck in RUNNING", "count", recovered)
	}
	return recovered, nil
}
