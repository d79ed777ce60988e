package assetversion

import (
	"time"

	"github.com/google/uuid"
)

// AssetClass classifies an uploaded file and selects the acceptance rule and
// storage key prefix for it.
type AssetClass string

// Asset class constants (typed).
const (
	AssetClassImage      AssetClass = "images"
	AssetClassModel      AssetClass = "models"
	AssetClassAttachment AssetClass = "attachments"
)

// Monument is the owning entity for asset versions. ActiveAssetURL and
// ActiveAssetKey are denormalized from the currently active version record;
// both are empty when no version is active.
type Monument struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	ActiveAssetURL string     `json:"active_asset_url,omitempty"`
	ActiveAssetKey string     `json:"active_asset_key,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// VersionRecord is the immutable metadata row describing one uploaded asset
// revision. StorageKey is never reused across records, even after deletion.
type VersionRecord struct {
	ID                 uuid.UUID  `json:"id"`
	MonumentID         uuid.UUID  `json:"monument_id"`
	StorageBackendName string     `json:"storage_backend_name"`
	StorageKey         string     `json:"storage_key"`
	PublicURL          string     `json:"public_url,omitempty"`
	AuxiliaryURL       string     `json:"auxiliary_url,omitempty"`
	FileName           string     `json:"file_name,omitempty"`
	MimeType           string     `json:"mime_type,omitempty"`
	AssetClass         AssetClass `json:"asset_class"`
	ByteSize           int64      `json:"byte_size"`
	IsActive           bool       `json:"is_active"`
	UploadedBy         uuid.UUID  `json:"uploaded_by"`
	UploadedAt         time.Time  `json:"uploaded_at"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty"`
}

// Attachment is a supplementary file owned by a monument (e.g. a
// historical-data image). Attachments have no versioning; they are removed
// together with their parent record or monument.
type Attachment struct {
	ID                 uuid.UUID  `json:"id"`
	MonumentID         uuid.UUID  `json:"monument_id"`
	ParentRecordID     *uuid.UUID `json:"parent_record_id,omitempty"`
	StorageBackendName string     `json:"storage_backend_name"`
	StorageKey         string     `json:"storage_key"`
	PublicURL          string     `json:"public_url,omitempty"`
	FileName           string     `json:"file_name,omitempty"`
	MimeType           string     `json:"mime_type,omitempty"`
	ByteSize           int64      `json:"byte_size"`
	CreatedAt          time.Time  `json:"created_at"`
}

// DeletionFailure describes one non-fatal failure during a cascade delete.
type DeletionFailure struct {
	Backend    string `json:"backend"`
	StorageKey string `json:"storage_key"`
	Message    string `json:"message"`
}

// DeletionReport summarizes a cascade delete. The cascade always runs to
// completion; blob-level failures are collected here rather than raised.
type DeletionReport struct {
	MonumentID         uuid.UUID         `json:"monument_id"`
	BlobsDeleted       int               `json:"blobs_deleted"`
	VersionsDeleted    int               `json:"versions_deleted"`
	AttachmentsDeleted int               `json:"attachments_deleted"`
	Failures           []DeletionFailure `json:"failures,omitempty"`
	StartedAt          time.Time         `json:"started_at"`
	FinishedAt         time.Time         `json:"finished_at"`
}

// Partial reports whether any blob delete failed. The monument and its
// records are gone either way; a partial report means orphaned blobs remain
// for the sweep to pick up.
func (r *DeletionReport) Partial() bool {
	return len(r.Failures) > 0
}

// ObjectMeta contains metadata about a blob in storage.
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// UploadParams contains parameters for uploading a blob.
type UploadParams struct {
	ObjectKey string
	MimeType  string
}
