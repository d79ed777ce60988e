package assetversion

import (
	"io"

	"github.com/google/uuid"
)

// Request DTOs

// CreateMonumentRequest contains parameters for creating a monument
type CreateMonumentRequest struct {
	Name        string
	Description string
}

// UploadVersionRequest contains parameters for uploading a new asset version.
//
// ByteSize is the declared file size; it is validated against the asset
// class limit before any bytes are sent to the backend. MimeType and
// FileName together must match an entry in the acceptance rules.
type UploadVersionRequest struct {
	MonumentID         uuid.UUID
	Reader             io.Reader
	FileName           string
	MimeType           string
	ByteSize           int64
	UploadedBy         uuid.UUID
	StorageBackendName string
}

// UploadVersionResult is returned by UploadNewVersion.
type UploadVersionResult struct {
	Record    *VersionRecord
	PublicURL string
}

// AddAttachmentRequest contains parameters for attaching a supplementary
// file to a monument.
type AddAttachmentRequest struct {
	MonumentID         uuid.UUID
	ParentRecordID     *uuid.UUID
	Reader             io.Reader
	FileName           string
	MimeType           string
	ByteSize           int64
	StorageBackendName string
}
