package assetversion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/historiar/monument-assets/pkg/assetversion/storagekey"
)

// service implements the Service interface
type service struct {
	repository     Repository
	blobStores     map[string]BlobStore
	defaultBackend string
	keyGen         storagekey.Generator
	urlResolver    URLResolver
	eventSink      EventSink

	cascadeParallelism int
	blobOpTimeout      time.Duration

	locks monumentLocks
}

// monumentLocks serializes version-mutating operations per monument.
// Concurrent uploads against the same monument would otherwise interleave
// the deactivate-all/activate-one sequence.
type monumentLocks struct {
	mu sync.Mutex
	m  map[uuid.UUID]*sync.Mutex
}

func (l *monumentLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[uuid.UUID]*sync.Mutex)
	}
	entry, ok := l.m[id]
	if !ok {
		entry = &sync.Mutex{}
		l.m[id] = entry
	}
	l.mu.Unlock()

	entry.Lock()
	return entry.Unlock
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore adds a blob storage backend. The first registered backend
// becomes the default unless WithDefaultBackend overrides it.
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		if s.blobStores == nil {
			s.blobStores = make(map[string]BlobStore)
		}
		s.blobStores[name] = store
		if s.defaultBackend == "" {
			s.defaultBackend = name
		}
	}
}

// WithDefaultBackend sets the backend used when a request names none
func WithDefaultBackend(name string) Option {
	return func(s *service) {
		s.defaultBackend = name
	}
}

// WithKeyGenerator sets the storage key generator
func WithKeyGenerator(gen storagekey.Generator) Option {
	return func(s *service) {
		s.keyGen = gen
	}
}

// WithURLResolver sets the public URL resolver (e.g. a CDN resolver).
// Without one, public URLs are delegated to the blob store.
func WithURLResolver(resolver URLResolver) Option {
	return func(s *service) {
		s.urlResolver = resolver
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithCascadeParallelism caps how many blob deletes a cascade keeps in
// flight at once.
func WithCascadeParallelism(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.cascadeParallelism = n
		}
	}
}

// WithBlobOpTimeout sets the per-blob deadline used by cascade deletes.
func WithBlobOpTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.blobOpTimeout = d
		}
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		blobStores:         make(map[string]BlobStore),
		keyGen:             storagekey.NewTimestampGenerator(),
		eventSink:          NewNoopEventSink(),
		cascadeParallelism: 10,
		blobOpTimeout:      30 * time.Second,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if len(s.blobStores) == 0 {
		return nil, fmt.Errorf("at least one blob store is required")
	}

	return s, nil
}

// Monument operations

func (s *service) CreateMonument(ctx context.Context, req CreateMonumentRequest) (*Monument, error) {
	if req.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	now := time.Now().UTC()
	monument := &Monument{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repository.CreateMonument(ctx, monument); err != nil {
		return nil, fmt.Errorf("failed to create monument: %w", err)
	}

	return monument, nil
}

func (s *service) GetMonument(ctx context.Context, id uuid.UUID) (*Monument, error) {
	return s.repository.GetMonument(ctx, id)
}

func (s *service) ListMonuments(ctx context.Context) ([]*Monument, error) {
	return s.repository.ListMonuments(ctx)
}

// Version lifecycle operations

// UploadNewVersion validates the file, stores the blob, creates the version
// record and activates it, then updates the monument's denormalized asset
// pointers. A failure after the blob write but before activation leaves a
// durable blob with no active record pointing at it: garbage for the sweep,
// never a dangling reference from the monument.
func (s *service) UploadNewVersion(ctx context.Context, req UploadVersionRequest) (*UploadVersionResult, error) {
	rule, err := ResolveFileRule(req.MimeType, req.FileName)
	if err != nil {
		return nil, err
	}
	if err := CheckFileSize(rule, req.ByteSize); err != nil {
		return nil, err
	}
	if req.Reader == nil {
		return nil, &ValidationError{Field: "file", Reason: "missing file body"}
	}

	unlock := s.locks.lock(req.MonumentID)
	defer unlock()

	monument, err := s.repository.GetMonument(ctx, req.MonumentID)
	if err != nil {
		return nil, err
	}

	backendName := req.StorageBackendName
	if backendName == "" {
		backendName = s.defaultBackend
	}
	backend, err := s.GetBackend(backendName)
	if err != nil {
		return nil, err
	}

	key := s.keyGen.GenerateKey(string(rule.Class), req.MonumentID, req.FileName)

	// Blob first. If this fails there is no record to orphan.
	if err := backend.UploadWithParams(ctx, newCappedReader(req.Reader, rule.MaxBytes), UploadParams{
		ObjectKey: key,
		MimeType:  req.MimeType,
	}); err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			return nil, vErr
		}
		return nil, &StorageError{Backend: backendName, Key: key, Op: "upload", Err: err}
	}

	publicURL, err := s.resolveURL(ctx, backend, key, req.FileName)
	if err != nil {
		return nil, &StorageError{Backend: backendName, Key: key, Op: "resolve_url", Err: err}
	}

	record := &VersionRecord{
		ID:                 uuid.New(),
		MonumentID:         req.MonumentID,
		StorageBackendName: backendName,
		StorageKey:         key,
		PublicURL:          publicURL,
		FileName:           req.FileName,
		MimeType:           req.MimeType,
		AssetClass:         rule.Class,
		ByteSize:           req.ByteSize,
		IsActive:           false,
		UploadedBy:         req.UploadedBy,
		UploadedAt:         time.Now().UTC(),
	}

	if err := s.repository.CreateVersion(ctx, record); err != nil {
		return nil, &VersionError{MonumentID: req.MonumentID, RecordID: record.ID, Op: "create", Err: err}
	}

	if err := s.repository.SetActiveVersion(ctx, req.MonumentID, record.ID); err != nil {
		return nil, &VersionError{MonumentID: req.MonumentID, RecordID: record.ID, Op: "activate", Err: err}
	}
	record.IsActive = true

	if err := s.updateMonumentPointers(ctx, monument, record); err != nil {
		return nil, err
	}

	// Events are advisory; the upload already succeeded.
	if s.eventSink != nil {
		_ = s.eventSink.VersionUploaded(ctx, record)
	}

	return &UploadVersionResult{Record: record, PublicURL: publicURL}, nil
}

// ActivateVersion makes an existing version the active one (rollback).
// Re-activating the already-active record is a no-op.
func (s *service) ActivateVersion(ctx context.Context, monumentID, recordID uuid.UUID) (*VersionRecord, error) {
	unlock := s.locks.lock(monumentID)
	defer unlock()

	monument, err := s.repository.GetMonument(ctx, monumentID)
	if err != nil {
		return nil, err
	}

	record, err := s.getOwnedVersion(ctx, monumentID, recordID)
	if err != nil {
		return nil, err
	}

	if record.IsActive {
		return record, nil
	}

	if err := s.repository.SetActiveVersion(ctx, monumentID, recordID); err != nil {
		return nil, &VersionError{MonumentID: monumentID, RecordID: recordID, Op: "activate", Err: err}
	}
	record.IsActive = true

	if err := s.updateMonumentPointers(ctx, monument, record); err != nil {
		return nil, err
	}

	// Events are advisory; the activation already succeeded.
	if s.eventSink != nil {
		_ = s.eventSink.VersionActivated(ctx, record)
	}

	return record, nil
}

// DeleteVersion removes an inactive version record and its blob. Deleting
// the active version is a conflict; the blob already being gone is not.
func (s *service) DeleteVersion(ctx context.Context, monumentID, recordID uuid.UUID) error {
	unlock := s.locks.lock(monumentID)
	defer unlock()

	record, err := s.getOwnedVersion(ctx, monumentID, recordID)
	if err != nil {
		return err
	}

	if record.IsActive {
		return &VersionError{MonumentID: monumentID, RecordID: recordID, Op: "delete", Err: ErrVersionActive}
	}

	backend, err := s.GetBackend(record.StorageBackendName)
	if err != nil {
		return err
	}

	if err := backend.Delete(ctx, record.StorageKey); err != nil && !errors.Is(err, ErrKeyNotFound) {
		return &StorageError{Backend: record.StorageBackendName, Key: record.StorageKey, Op: "delete", Err: err}
	}

	if err := s.repository.DeleteVersion(ctx, recordID); err != nil {
		return &VersionError{MonumentID: monumentID, RecordID: recordID, Op: "delete", Err: err}
	}

	// Events are advisory; the delete already succeeded.
	if s.eventSink != nil {
		_ = s.eventSink.VersionDeleted(ctx, monumentID, recordID)
	}

	return nil
}

func (s *service) GetVersion(ctx context.Context, monumentID, recordID uuid.UUID) (*VersionRecord, error) {
	return s.getOwnedVersion(ctx, monumentID, recordID)
}

func (s *service) ListVersions(ctx context.Context, monumentID uuid.UUID) ([]*VersionRecord, error) {
	if _, err := s.repository.GetMonument(ctx, monumentID); err != nil {
		return nil, err
	}
	return s.repository.ListVersionsByMonument(ctx, monumentID)
}

// Attachment operations

func (s *service) AddAttachment(ctx context.Context, req AddAttachmentRequest) (*Attachment, error) {
	rule, err := ResolveFileRule(req.MimeType, req.FileName)
	if err != nil {
		return nil, err
	}
	if rule.Class != AssetClassImage {
		return nil, &ValidationError{Field: "mime_type", Reason: "attachments must be images"}
	}
	if err := CheckFileSize(rule, req.ByteSize); err != nil {
		return nil, err
	}

	if _, err := s.repository.GetMonument(ctx, req.MonumentID); err != nil {
		return nil, err
	}

	if req.ParentRecordID != nil {
		if _, err := s.getOwnedVersion(ctx, req.MonumentID, *req.ParentRecordID); err != nil {
			return nil, err
		}
	}

	backendName := req.StorageBackendName
	if backendName == "" {
		backendName = s.defaultBackend
	}
	backend, err := s.GetBackend(backendName)
	if err != nil {
		return nil, err
	}

	key := s.keyGen.GenerateKey(string(AssetClassAttachment), req.MonumentID, req.FileName)

	if err := backend.UploadWithParams(ctx, newCappedReader(req.Reader, rule.MaxBytes), UploadParams{
		ObjectKey: key,
		MimeType:  req.MimeType,
	}); err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			return nil, vErr
		}
		return nil, &StorageError{Backend: backendName, Key: key, Op: "upload", Err: err}
	}

	publicURL, err := s.resolveURL(ctx, backend, key, req.FileName)
	if err != nil {
		return nil, &StorageError{Backend: backendName, Key: key, Op: "resolve_url", Err: err}
	}

	attachment := &Attachment{
		ID:                 uuid.New(),
		MonumentID:         req.MonumentID,
		ParentRecordID:     req.ParentRecordID,
		StorageBackendName: backendName,
		StorageKey:         key,
		PublicURL:          publicURL,
		FileName:           req.FileName,
		MimeType:           req.MimeType,
		ByteSize:           req.ByteSize,
		CreatedAt:          time.Now().UTC(),
	}

	if err := s.repository.CreateAttachment(ctx, attachment); err != nil {
		return nil, fmt.Errorf("failed to create attachment: %w", err)
	}

	return attachment, nil
}

func (s *service) ListAttachments(ctx context.Context, monumentID uuid.UUID) ([]*Attachment, error) {
	if _, err := s.repository.GetMonument(ctx, monumentID); err != nil {
		return nil, err
	}
	return s.repository.ListAttachmentsByMonument(ctx, monumentID)
}

func (s *service) DeleteAttachment(ctx context.Context, monumentID, attachmentID uuid.UUID) error {
	attachment, err := s.repository.GetAttachment(ctx, attachmentID)
	if err != nil {
		return err
	}
	if attachment.MonumentID != monumentID {
		return ErrAttachmentNotFound
	}

	backend, err := s.GetBackend(attachment.StorageBackendName)
	if err != nil {
		return err
	}

	if err := backend.Delete(ctx, attachment.StorageKey); err != nil && !errors.Is(err, ErrKeyNotFound) {
		return &StorageError{Backend: attachment.StorageBackendName, Key: attachment.StorageKey, Op: "delete", Err: err}
	}

	return s.repository.DeleteAttachment(ctx, attachmentID)
}

// Storage backend operations

func (s *service) RegisterBackend(name string, backend BlobStore) {
	s.blobStores[name] = backend
	if s.defaultBackend == "" {
		s.defaultBackend = name
	}
}

func (s *service) GetBackend(name string) (BlobStore, error) {
	backend, exists := s.blobStores[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStorageBackendNotFound, name)
	}
	return backend, nil
}

// Helper methods

func (s *service) getOwnedVersion(ctx context.Context, monumentID, recordID uuid.UUID) (*VersionRecord, error) {
	record, err := s.repository.GetVersion(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.MonumentID != monumentID {
		return nil, ErrVersionNotFound
	}
	return record, nil
}

func (s *service) updateMonumentPointers(ctx context.Context, monument *Monument, record *VersionRecord) error {
	monument.ActiveAssetURL = record.PublicURL
	monument.ActiveAssetKey = record.StorageKey
	monument.UpdatedAt = time.Now().UTC()
	if err := s.repository.UpdateMonument(ctx, monument); err != nil {
		return fmt.Errorf("failed to update monument asset pointers: %w", err)
	}
	return nil
}

// cappedReader fails the stream once more bytes arrive than the rule allows.
// The declared byte size is checked before any write, but the body itself is
// what gets stored; a caller must not be able to push past the limit by
// under-declaring.
type cappedReader struct {
	r         io.Reader
	remaining int64
}

func newCappedReader(r io.Reader, max int64) *cappedReader {
	return &cappedReader{r: r, remaining: max}
}

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, &ValidationError{Field: "file", Reason: "body exceeds the size limit for its type"}
	}
	return n, err
}

func (s *service) resolveURL(ctx context.Context, backend BlobStore, key, fileName string) (string, error) {
	if s.urlResolver != nil {
		return s.urlResolver.ResolveDownloadURL(ctx, key, fileName)
	}
	return backend.GetDownloadURL(ctx, key, fileName)
}
