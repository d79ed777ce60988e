package assetversion

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// BlobStore defines the interface for storage backends
type BlobStore interface {
	// Upload uploads a blob directly
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// UploadWithParams uploads a blob with additional parameters
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// Download downloads a blob directly
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete deletes a blob. Returns ErrKeyNotFound if the key is absent;
	// delete paths may treat that as already satisfied.
	Delete(ctx context.Context, objectKey string) error

	// Exists reports whether a blob is present. It never returns an error:
	// ambiguous or transient backend failures read as false, trading false
	// negatives for availability on user-facing paths.
	Exists(ctx context.Context, objectKey string) bool

	// GetObjectMeta retrieves metadata for a blob
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)

	// GetDownloadURL returns a URL for downloading a blob
	GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error)

	// List returns metadata for all blobs under the given key prefix
	List(ctx context.Context, prefix string) ([]*ObjectMeta, error)
}

// Repository defines the interface for monument, version record and
// attachment persistence.
//
// SetActiveVersion is the only write path for the is_active flag. It must
// deactivate every other record of the monument before activating the target,
// in that order, so a failure mid-way leaves zero active records rather than
// two. An observer may see the zero-active window; that is a documented
// eventual-consistency window, not a bug.
type Repository interface {
	// Monument operations
	CreateMonument(ctx context.Context, monument *Monument) error
	GetMonument(ctx context.Context, id uuid.UUID) (*Monument, error)
	UpdateMonument(ctx context.Context, monument *Monument) error
	DeleteMonument(ctx context.Context, id uuid.UUID) error
	ListMonuments(ctx context.Context) ([]*Monument, error)

	// Version record operations
	CreateVersion(ctx context.Context, record *VersionRecord) error
	GetVersion(ctx context.Context, id uuid.UUID) (*VersionRecord, error)
	ListVersionsByMonument(ctx context.Context, monumentID uuid.UUID) ([]*VersionRecord, error)
	SetActiveVersion(ctx context.Context, monumentID, recordID uuid.UUID) error
	DeleteVersion(ctx context.Context, id uuid.UUID) error
	DeleteVersionsByMonument(ctx context.Context, monumentID uuid.UUID) (int, error)

	// Attachment operations
	CreateAttachment(ctx context.Context, attachment *Attachment) error
	GetAttachment(ctx context.Context, id uuid.UUID) (*Attachment, error)
	ListAttachmentsByMonument(ctx context.Context, monumentID uuid.UUID) ([]*Attachment, error)
	DeleteAttachment(ctx context.Context, id uuid.UUID) error
	DeleteAttachmentsByMonument(ctx context.Context, monumentID uuid.UUID) (int, error)

	// ListStorageKeys returns the storage keys of all live version records
	// and attachments. The sweep uses it to tell orphaned blobs apart from
	// referenced ones.
	ListStorageKeys(ctx context.Context) ([]string, error)
}

// URLResolver builds the public URL persisted on a version record. The
// default resolution delegates to the blob store (presigned URLs for S3);
// a CDN resolver can be injected instead.
type URLResolver interface {
	ResolveDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error)
}

// EventSink defines the interface for lifecycle event handling
type EventSink interface {
	// VersionUploaded is fired after a new version is uploaded and activated
	VersionUploaded(ctx context.Context, record *VersionRecord) error

	// VersionActivated is fired after a rollback/activation
	VersionActivated(ctx context.Context, record *VersionRecord) error

	// VersionDeleted is fired after a version record and its blob are removed
	VersionDeleted(ctx context.Context, monumentID, recordID uuid.UUID) error

	// MonumentDeleted is fired after a cascade delete completes
	MonumentDeleted(ctx context.Context, report *DeletionReport) error
}
