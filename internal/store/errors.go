package store

import (
	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
)

var (
	// ErrBuildNotFound indicates no stored build matches the query.
	ErrBuildNotFound = ferrors.NotFoundError("build not found").Build()

	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = ferrors.StorageError("could not open build history database").Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = ferrors.StorageError("failed to initialize build history schema").Build()

	// ErrWriteFailed indicates a build could not be recorded.
	ErrWriteFailed = ferrors.StorageError("failed to record build").Build()

	// ErrQueryFailed indicates reading the build history failed.
	ErrQueryFailed = ferrors.StorageError("failed to query build history").Build()
)

// wrap attaches cause to a classified sentinel. errors.Is against the
// sentinel still matches the result.
func wrap(sentinel *ferrors.ClassifiedError, cause error) error {
	return ferrors.NewError(sentinel.Category(), sentinel.Message()).WithCause(cause).Build()
}
