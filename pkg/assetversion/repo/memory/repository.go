package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/historiar/monument-assets/pkg/assetversion"
)

// Repository implements assetversion.Repository using in-memory storage.
// Storage keys of deleted version records stay in usedKeys as tombstones so
// a key is never accepted twice.
type Repository struct {
	mu          sync.RWMutex
	monuments   map[uuid.UUID]*assetversion.Monument
	versions    map[uuid.UUID]*assetversion.VersionRecord
	attachments map[uuid.UUID]*assetversion.Attachment
	usedKeys    map[string]bool
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		monuments:   make(map[uuid.UUID]*assetversion.Monument),
		versions:    make(map[uuid.UUID]*assetversion.VersionRecord),
		attachments: make(map[uuid.UUID]*assetversion.Attachment),
		usedKeys:    make(map[string]bool),
	}
}

// Monument operations

func (r *Repository) CreateMonument(ctx context.Context, monument *assetversion.Monument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	monumentCopy := *monument
	r.monuments[monument.ID] = &monumentCopy
	return nil
}

func (r *Repository) GetMonument(ctx context.Context, id uuid.UUID) (*assetversion.Monument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	monument, exists := r.monuments[id]
	if !exists || monument.DeletedAt != nil {
		return nil, assetversion.ErrMonumentNotFound
	}

	monumentCopy := *monument
	return &monumentCopy, nil
}

func (r *Repository) UpdateMonument(ctx context.Context, monument *assetversion.Monument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.monuments[monument.ID]
	if !exists || existing.DeletedAt != nil {
		return assetversion.ErrMonumentNotFound
	}

	monumentCopy := *monument
	r.monuments[monument.ID] = &monumentCopy
	return nil
}

func (r *Repository) DeleteMonument(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	monument, exists := r.monuments[id]
	if !exists || monument.DeletedAt != nil {
		return assetversion.ErrMonumentNotFound
	}

	now := time.Now().UTC()
	monument.DeletedAt = &now
	monument.UpdatedAt = now
	return nil
}

func (r *Repository) ListMonuments(ctx context.Context) ([]*assetversion.Monument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*assetversion.Monument
	for _, monument := range r.monuments {
		if monument.DeletedAt != nil {
			continue
		}
		monumentCopy := *monument
		result = append(result, &monumentCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// Version record operations

func (r *Repository) CreateVersion(ctx context.Context, record *assetversion.VersionRecord) error {
	if record.MonumentID == uuid.Nil {
		return &assetversion.ValidationError{Field: "monument_id", Reason: "must not be empty"}
	}
	if record.StorageKey == "" {
		return &assetversion.ValidationError{Field: "storage_key", Reason: "must not be empty"}
	}
	if record.ByteSize < 0 {
		return &assetversion.ValidationError{Field: "byte_size", Reason: "must be >= 0"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if monument, exists := r.monuments[record.MonumentID]; !exists || monument.DeletedAt != nil {
		return assetversion.ErrMonumentNotFound
	}
	if r.usedKeys[record.StorageKey] {
		return assetversion.ErrStorageKeyReused
	}

	recordCopy := *record
	r.versions[record.ID] = &recordCopy
	r.usedKeys[record.StorageKey] = true
	return nil
}

func (r *Repository) GetVersion(ctx context.Context, id uuid.UUID) (*assetversion.VersionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.versions[id]
	if !exists || record.DeletedAt != nil {
		return nil, assetversion.ErrVersionNotFound
	}

	recordCopy := *record
	return &recordCopy, nil
}

func (r *Repository) ListVersionsByMonument(ctx context.Context, monumentID uuid.UUID) ([]*assetversion.VersionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*assetversion.VersionRecord
	for _, record := range r.versions {
		if record.MonumentID != monumentID || record.DeletedAt != nil {
			continue
		}
		recordCopy := *record
		result = append(result, &recordCopy)
	}

	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})

	return result, nil
}

// SetActiveVersion deactivates every record of the monument, then activates
// the target. Both steps happen under one lock here; the ordering matters
// for the database-backed implementation, where an observer between the two
// writes sees zero active records but never two.
func (r *Repository) SetActiveVersion(ctx context.Context, monumentID, recordID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, exists := r.versions[recordID]
	if !exists || target.DeletedAt != nil || target.MonumentID != monumentID {
		return assetversion.ErrVersionNotFound
	}

	for _, record := range r.versions {
		if record.MonumentID == monumentID && record.DeletedAt == nil {
			record.IsActive = false
		}
	}
	target.IsActive = true
	return nil
}

func (r *Repository) DeleteVersion(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.versions[id]
	if !exists || record.DeletedAt != nil {
		return assetversion.ErrVersionNotFound
	}
	if record.IsActive {
		return assetversion.ErrVersionActive
	}

	now := time.Now().UTC()
	record.DeletedAt = &now
	return nil
}

func (r *Repository) DeleteVersionsByMonument(ctx context.Context, monumentID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	count := 0
	for _, record := range r.versions {
		if record.MonumentID != monumentID || record.DeletedAt != nil {
			continue
		}
		record.IsActive = false
		record.DeletedAt = &now
		count++
	}
	return count, nil
}

// Attachment operations

func (r *Repository) CreateAttachment(ctx context.Context, attachment *assetversion.Attachment) error {
	if attachment.MonumentID == uuid.Nil {
		return &assetversion.ValidationError{Field: "monument_id", Reason: "must not be empty"}
	}
	if attachment.StorageKey == "" {
		return &assetversion.ValidationError{Field: "storage_key", Reason: "must not be empty"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if monument, exists := r.monuments[attachment.MonumentID]; !exists || monument.DeletedAt != nil {
		return assetversion.ErrMonumentNotFound
	}
	if r.usedKeys[attachment.StorageKey] {
		return assetversion.ErrStorageKeyReused
	}

	attachmentCopy := *attachment
	r.attachments[attachment.ID] = &attachmentCopy
	r.usedKeys[attachment.StorageKey] = true
	return nil
}

func (r *Repository) GetAttachment(ctx context.Context, id uuid.UUID) (*assetversion.Attachment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	attachment, exists := r.attachments[id]
	if !exists {
		return nil, assetversion.ErrAttachmentNotFound
	}

	attachmentCopy := *attachment
	return &attachmentCopy, nil
}

func (r *Repository) ListAttachmentsByMonument(ctx context.Context, monumentID uuid.UUID) ([]*assetversion.Attachment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*assetversion.Attachment
	for _, attachment := range r.attachments {
		if attachment.MonumentID != monumentID {
			continue
		}
		attachmentCopy := *attachment
		result = append(result, &attachmentCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *Repository) DeleteAttachment(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.attachments[id]; !exists {
		return assetversion.ErrAttachmentNotFound
	}

	delete(r.attachments, id)
	return nil
}

func (r *Repository) DeleteAttachmentsByMonument(ctx context.Context, monumentID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, attachment := range r.attachments {
		if attachment.MonumentID == monumentID {
			delete(r.attachments, id)
			count++
		}
	}
	return count, nil
}

func (r *Repository) ListStorageKeys(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var keys []string
	for _, record := range r.versions {
		if record.DeletedAt == nil {
			keys = append(keys, record.StorageKey)
		}
	}
	for _, attachment := range r.attachments {
		keys = append(keys, attachment.StorageKey)
	}
	return keys, nil
}
