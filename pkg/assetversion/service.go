package assetversion

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the main interface for the monument asset version manager.
//
// Access control is the caller's responsibility: every method assumes the
// request has already been authorized.
type Service interface {
	// Monument operations
	CreateMonument(ctx context.Context, req CreateMonumentRequest) (*Monument, error)
	GetMonument(ctx context.Context, id uuid.UUID) (*Monument, error)
	ListMonuments(ctx context.Context) ([]*Monument, error)

	// Version lifecycle operations
	UploadNewVersion(ctx context.Context, req UploadVersionRequest) (*UploadVersionResult, error)
	ActivateVersion(ctx context.Context, monumentID, recordID uuid.UUID) (*VersionRecord, error)
	DeleteVersion(ctx context.Context, monumentID, recordID uuid.UUID) error
	GetVersion(ctx context.Context, monumentID, recordID uuid.UUID) (*VersionRecord, error)
	ListVersions(ctx context.Context, monumentID uuid.UUID) ([]*VersionRecord, error)

	// Attachment operations
	AddAttachment(ctx context.Context, req AddAttachmentRequest) (*Attachment, error)
	ListAttachments(ctx context.Context, monumentID uuid.UUID) ([]*Attachment, error)
	DeleteAttachment(ctx context.Context, monumentID, attachmentID uuid.UUID) error

	// Cascade deletion
	DeleteMonumentCascade(ctx context.Context, monumentID uuid.UUID) (*DeletionReport, error)

	// Storage backend operations
	RegisterBackend(name string, backend BlobStore)
	GetBackend(name string) (BlobStore, error)
}
