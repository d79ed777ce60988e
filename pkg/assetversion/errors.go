package assetversion

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrMonumentNotFound indicates a monument was not found
	ErrMonumentNotFound = errors.New("monument not found")

	// ErrVersionNotFound indicates a version record was not found, or does
	// not belong to the given monument
	ErrVersionNotFound = errors.New("version record not found")

	// ErrAttachmentNotFound indicates an attachment was not found
	ErrAttachmentNotFound = errors.New("attachment not found")

	// ErrVersionActive indicates an operation would delete the active
	// version; the caller must activate a replacement first
	ErrVersionActive = errors.New("cannot delete active version - activate another version first")

	// ErrStorageKeyReused indicates a storage key was already used by an
	// earlier version record; keys are never reused, even after deletion
	ErrStorageKeyReused = errors.New("storage key already used")

	// ErrKeyNotFound indicates a blob was absent from the storage backend.
	// Delete paths treat it as idempotent success; read paths treat it as a
	// real error.
	ErrKeyNotFound = errors.New("storage key not found")

	// ErrStorageBackendNotFound indicates a storage backend was not found
	ErrStorageBackendNotFound = errors.New("storage backend not found")
)

// ValidationError reports a rejected input. It is never retried by callers
// and maps to a 4xx at the HTTP layer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// VersionError represents an error in a version lifecycle operation
type VersionError struct {
	MonumentID uuid.UUID
	RecordID   uuid.UUID
	Op         string
	Err        error
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("version operation %s failed for monument %s record %s: %v", e.Op, e.MonumentID, e.RecordID, e.Err)
}

func (e *VersionError) Unwrap() error {
	return e.Err
}

// StorageError represents a storage backend failure. It may be transient;
// callers can retry with backoff at their discretion.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
