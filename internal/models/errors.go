package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for models.
var (
	// ErrNameRequired indicates a required name field is empty.
	ErrNameRequired = errors.New("name is required")

	// ErrWorkspaceIDRequired indicates a required workspace_id field is zero.
	ErrWorkspaceIDRequired = errors.New("workspace_id is required")

	// ErrProductIDRequired indicates a required product_id field is zero.
	ErrProductIDRequired = errors.New("product_id is required")

	// ErrDataSourceIDRequired indicates a required data_source_id field is zero.
	ErrDataSourceIDRequired = errors.New("data_source_id is required")

	// ErrRunIDRequired indicates a required run_id field is zero.
	ErrRunIDRequired = errors.New("run_id is required")

	// ErrPromotedVersionExceedsCurrent indicates promoted_version > current_version.
	ErrPromotedVersionExceedsCurrent = errors.New("promoted_version must not exceed current_version")

	// ErrInvalidDataSourceType indicates an invalid data source type.
	ErrInvalidDataSourceType = errors.New("invalid data source type: must be 'WEB', 'FOLDER', or 'DATABASE'")

	// ErrFileStemRequired indicates a required file_stem field is empty.
	ErrFileStemRequired = errors.New("file_stem is required")

	// ErrVersionMustBePositive indicates a version field is less than 1.
	ErrVersionMustBePositive = errors.New("version must be >= 1")

	// ErrBlobKeyRequired indicates a required blob_key field is empty.
	ErrBlobKeyRequired = errors.New("blob_key is required")

	// ErrStageNameRequired indicates a required stage_name field is empty.
	ErrStageNameRequired = errors.New("stage_name is required")

	// ErrInvalidStageName indicates a stage_name outside the fixed DAG order.
	ErrInvalidStageName = errors.New("stage_name is not a recognized pipeline stage")

	// ErrArtifactTypeRequired indicates a required artifact_type field is empty.
	ErrArtifactTypeRequired = errors.New("artifact_type is required")

	// ErrChunkIDRequired indicates a required chunk_id field is empty.
	ErrChunkIDRequired = errors.New("chunk_id is required")

	// ErrRuleNameRequired indicates a required rule name field is empty.
	ErrRuleNameRequired = errors.New("rule name is required")

	// ErrInvalidSeverity indicates an invalid rule severity.
	ErrInvalidSeverity = errors.New("invalid severity: must be 'ERROR', 'WARNING', or 'INFO'")
)
