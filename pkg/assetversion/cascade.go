package assetversion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DeleteMonumentCascade removes a monument together with all its version
// records, attachments and backing blobs.
//
// Blob deletes are best-effort: each failure is recorded in the report and
// the cascade continues, because a transient storage outage must not make
// the monument undeletable. Orphaned blobs are a cleanable failure mode; an
// undeletable business record is not. Blob deletes run concurrently with
// bounded parallelism, each under its own deadline.
func (s *service) DeleteMonumentCascade(ctx context.Context, monumentID uuid.UUID) (*DeletionReport, error) {
	unlock := s.locks.lock(monumentID)
	defer unlock()

	if _, err := s.repository.GetMonument(ctx, monumentID); err != nil {
		return nil, err
	}

	report := &DeletionReport{
		MonumentID: monumentID,
		StartedAt:  time.Now().UTC(),
	}

	versions, err := s.repository.ListVersionsByMonument(ctx, monumentID)
	if err != nil {
		report.Failures = append(report.Failures, DeletionFailure{Message: "list versions: " + err.Error()})
	}
	attachments, err := s.repository.ListAttachmentsByMonument(ctx, monumentID)
	if err != nil {
		report.Failures = append(report.Failures, DeletionFailure{Message: "list attachments: " + err.Error()})
	}

	type blobRef struct {
		backend string
		key     string
	}
	blobs := make([]blobRef, 0, len(versions)+len(attachments))
	for _, v := range versions {
		blobs = append(blobs, blobRef{backend: v.StorageBackendName, key: v.StorageKey})
	}
	for _, a := range attachments {
		blobs = append(blobs, blobRef{backend: a.StorageBackendName, key: a.StorageKey})
	}

	var mu sync.Mutex
	g := &errgroup.Group{}
	g.SetLimit(s.cascadeParallelism)
	for _, blob := range blobs {
		g.Go(func() error {
			opCtx, cancel := context.WithTimeout(ctx, s.blobOpTimeout)
			defer cancel()

			err := s.deleteBlob(opCtx, blob.backend, blob.key)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, DeletionFailure{
					Backend:    blob.backend,
					StorageKey: blob.key,
					Message:    err.Error(),
				})
			} else {
				report.BlobsDeleted++
			}
			return nil
		})
	}
	_ = g.Wait()

	n, err := s.repository.DeleteVersionsByMonument(ctx, monumentID)
	report.VersionsDeleted = n
	if err != nil {
		report.Failures = append(report.Failures, DeletionFailure{Message: "delete version records: " + err.Error()})
	}

	n, err = s.repository.DeleteAttachmentsByMonument(ctx, monumentID)
	report.AttachmentsDeleted = n
	if err != nil {
		report.Failures = append(report.Failures, DeletionFailure{Message: "delete attachment records: " + err.Error()})
	}

	// The entity delete runs regardless of what failed above; its failure
	// is the only one that aborts the operation.
	if err := s.repository.DeleteMonument(ctx, monumentID); err != nil {
		report.FinishedAt = time.Now().UTC()
		return report, err
	}

	report.FinishedAt = time.Now().UTC()

	// Events are advisory; the cascade already completed.
	if s.eventSink != nil {
		_ = s.eventSink.MonumentDeleted(ctx, report)
	}

	return report, nil
}

// deleteBlob deletes a single blob, treating an absent key as already
// satisfied.
func (s *service) deleteBlob(ctx context.Context, backendName, key string) error {
	backend, err := s.GetBackend(backendName)
	if err != nil {
		return err
	}
	if err := backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrKeyNotFound) {
		return err
	}
	return nil
}
