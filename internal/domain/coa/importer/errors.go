package importer

import "errors"

var (
	// ErrEmptyBatch means the row source produced no usable rows at all.
	ErrEmptyBatch = errors.New("no rows to import")

	// ErrCommitChunkFailure aborts the remaining job; chunks committed before
	// the failure are retained.
	ErrCommitChunkFailure = errors.New("commit chunk failed")

	// ErrCancelled is returned when cancellation is observed at a chunk
	// boundary; chunks committed before the boundary are retained.
	ErrCancelled = errors.New("import cancelled")
)
