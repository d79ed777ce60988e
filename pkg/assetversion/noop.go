package assetversion

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) VersionUploaded(ctx context.Context, record *VersionRecord) error {
	return nil
}

func (n *NoopEventSink) VersionActivated(ctx context.Context, record *VersionRecord) error {
	return nil
}

func (n *NoopEventSink) VersionDeleted(ctx context.Context, monumentID, recordID uuid.UUID) error {
	return nil
}

func (n *NoopEventSink) MonumentDeleted(ctx context.Context, report *DeletionReport) error {
	return nil
}

// LoggingEventSink logs lifecycle events but takes no other action.
// Useful for development and debugging.
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) VersionUploaded(ctx context.Context, record *VersionRecord) error {
	l.logger.Info("version uploaded",
		"monument_id", record.MonumentID,
		"record_id", record.ID,
		"storage_key", record.StorageKey,
		"byte_size", record.ByteSize)
	return nil
}

func (l *LoggingEventSink) VersionActivated(ctx context.Context, record *VersionRecord) error {
	l.logger.Info("version activated",
		"monument_id", record.MonumentID,
		"record_id", record.ID)
	return nil
}

func (l *LoggingEventSink) VersionDeleted(ctx context.Context, monumentID, recordID uuid.UUID) error {
	l.logger.Info("version deleted", "monument_id", monumentID, "record_id", recordID)
	return nil
}

func (l *LoggingEventSink) MonumentDeleted(ctx context.Context, report *DeletionReport) error {
	l.logger.Info("monument deleted",
		"monument_id", report.MonumentID,
		"blobs_deleted", report.BlobsDeleted,
		"versions_deleted", report.VersionsDeleted,
		"attachments_deleted", report.AttachmentsDeleted,
		"failures", len(report.Failures))
	return nil
}
