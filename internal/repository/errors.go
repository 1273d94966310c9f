package repository

import "errors"

var (
	// ErrRunAlreadyActive indicates a QUEUED/RUNNING run already exists for
	// the target (product, version) pair.
	ErrRunAlreadyActive = errors.New("a pipeline run is already queued or running for this product version")

	// ErrAlreadySucceeded indicates a SUCCEEDED run already exists for the
	// target (product, version) pair and force was not set.
	ErrAlreadySucceeded = errors.New("a pipeline run already succeeded for this product version")

	// ErrStatusMismatch indicates a compare-and-set transition's expected
	// "from" status did not match the row's current status.
	ErrStatusMismatch = errors.New("run status does not match expected transition source")

	// ErrDuplicateKey indicates a uniqueness-invariant violation on insert
	// (e.g. (product_id, version, file_stem) for RawFile).
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNoRawFiles indicates no raw files exist at all for a product when
	// resolving an implicit pipeline version.
	ErrNoRawFiles = errors.New("no raw files found for product")

	// ErrNoRawFilesForVersion indicates no raw files exist for an explicitly
	// requested version.
	ErrNoRawFilesForVersion = errors.New("no raw files found for requested version")
)
