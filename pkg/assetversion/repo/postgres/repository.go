package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/historiar/monument-assets/pkg/assetversion"
)

// DB is the interface satisfied by both *pgxpool.Pool and *pgx.Conn.
// Transactions are needed for the activation flip.
type DB interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// Repository implements assetversion.Repository using PostgreSQL.
//
// Version records are soft-deleted; the unique index on storage_key keeps
// covering tombstoned rows, which is what enforces key non-reuse.
type Repository struct {
	db DB
}

// New creates a new PostgreSQL repository
func New(db DB) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with a connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "storage_key") {
				return assetversion.ErrStorageKeyReused
			}
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Monument operations

func (r *Repository) CreateMonument(ctx context.Context, monument *assetversion.Monument) error {
	query := `
		INSERT INTO monument (
			id, name, description, active_asset_url, active_asset_key,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		monument.ID, monument.Name, monument.Description,
		monument.ActiveAssetURL, monument.ActiveAssetKey,
		monument.CreatedAt, monument.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create monument", err)
	}

	return nil
}

func (r *Repository) GetMonument(ctx context.Context, id uuid.UUID) (*assetversion.Monument, error) {
	query := `
		SELECT id, name, description, active_asset_url, active_asset_key,
		       created_at, updated_at
		FROM monument WHERE id = $1 AND deleted_at IS NULL`

	var monument assetversion.Monument
	err := r.db.QueryRow(ctx, query, id).Scan(
		&monument.ID, &monument.Name, &monument.Description,
		&monument.ActiveAssetURL, &monument.ActiveAssetKey,
		&monument.CreatedAt, &monument.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, assetversion.ErrMonumentNotFound
		}
		return nil, r.handlePostgresError("get monument", err)
	}

	return &monument, nil
}

func (r *Repository) UpdateMonument(ctx context.Context, monument *assetversion.Monument) error {
	query := `
		UPDATE monument SET
			name = $2, description = $3, active_asset_url = $4,
			active_asset_key = $5, updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query,
		monument.ID, monument.Name, monument.Description,
		monument.ActiveAssetURL, monument.ActiveAssetKey, monument.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update monument", err)
	}
	if tag.RowsAffected() == 0 {
		return assetversion.ErrMonumentNotFound
	}

	return nil
}

func (r *Repository) DeleteMonument(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE monument SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return r.handlePostgresError("delete monument", err)
	}
	if tag.RowsAffected() == 0 {
		return assetversion.ErrMonumentNotFound
	}
	return nil
}

func (r *Repository) ListMonuments(ctx context.Context) ([]*assetversion.Monument, error) {
	query := `
		SELECT id, name, description, active_asset_url, active_asset_key,
		       created_at, updated_at
		FROM monument WHERE deleted_at IS NULL
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list monuments", err)
	}
	defer rows.Close()

	var result []*assetversion.Monument
	for rows.Next() {
		var monument assetversion.Monument
		if err := rows.Scan(
			&monument.ID, &monument.Name, &monument.Description,
			&monument.ActiveAssetURL, &monument.ActiveAssetKey,
			&monument.CreatedAt, &monument.UpdatedAt); err != nil {
			return nil, r.handlePostgresError("list monuments", err)
		}
		result = append(result, &monument)
	}

	return result, rows.Err()
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

	query := `
		INSERT INTO asset_version (
			id, monument_id, storage_backend_name, storage_key, public_url,
			auxiliary_url, file_name, mime_type, asset_class, byte_size,
			is_active, uploaded_by, uploaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(ctx, query,
		record.ID, record.MonumentID, record.StorageBackendName,
		record.StorageKey, record.PublicURL, record.AuxiliaryURL,
		record.FileName, record.MimeType, record.AssetClass,
		record.ByteSize, record.IsActive, record.UploadedBy, record.UploadedAt)
	if err != nil {
		return r.handlePostgresError("create version", err)
	}

	return nil
}

func (r *Repository) GetVersion(ctx context.Context, id uuid.UUID) (*assetversion.VersionRecord, error) {
	query := `
		SELECT id, monument_id, storage_backend_name, storage_key, public_url,
		       auxiliary_url, file_name, mime_type, asset_class, byte_size,
		       is_active, uploaded_by, uploaded_at
		FROM asset_version WHERE id = $1 AND deleted_at IS NULL`

	record, err := scanVersion(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, assetversion.ErrVersionNotFound
		}
		return nil, r.handlePostgresError("get version", err)
	}

	return record, nil
}

func (r *Repository) ListVersionsByMonument(ctx context.Context, monumentID uuid.UUID) ([]*assetversion.VersionRecord, error) {
	query := `
		SELECT id, monument_id, storage_backend_name, storage_key, public_url,
		       auxiliary_url, file_name, mime_type, asset_class, byte_size,
		       is_active, uploaded_by, uploaded_at
		FROM asset_version
		WHERE monument_id = $1 AND deleted_at IS NULL
		ORDER BY uploaded_at DESC`

	rows, err := r.db.Query(ctx, query, monumentID)
	if err != nil {
		return nil, r.handlePostgresError("list versions", err)
	}
	defer rows.Close()

	var result []*assetversion.VersionRecord
	for rows.Next() {
		record, err := scanVersion(rows)
		if err != nil {
			return nil, r.handlePostgresError("list versions", err)
		}
		result = append(result, record)
	}

	return result, rows.Err()
}

// SetActiveVersion flips the active flag inside one transaction:
// deactivate everything for the monument, then activate the target. The
// ordering biases a mid-flight failure toward zero active records rather
// than two.
func (r *Repository) SetActiveVersion(ctx context.Context, monumentID, recordID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return r.handlePostgresError("set active version", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE asset_version SET is_active = FALSE
		 WHERE monument_id = $1 AND is_active AND deleted_at IS NULL`,
		monumentID)
	if err != nil {
		return r.handlePostgresError("set active version", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE asset_version SET is_active = TRUE
		 WHERE id = $1 AND monument_id = $2 AND deleted_at IS NULL`,
		recordID, monumentID)
	if err != nil {
		return r.handlePostgresError("set active version", err)
	}
	if tag.RowsAffected() == 0 {
		return assetversion.ErrVersionNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return r.handlePostgresError("set active version", err)
	}
	return nil
}

func (r *Repository) DeleteVersion(ctx context.Context, id uuid.UUID) error {
	// The guard on is_active lives in the WHERE clause; a zero row count is
	// disambiguated afterwards.
	tag, err := r.db.Exec(ctx,
		`UPDATE asset_version SET deleted_at = NOW()
		 WHERE id = $1 AND NOT is_active AND deleted_at IS NULL`, id)
	if err != nil {
		return r.handlePostgresError("delete version", err)
	}
	if tag.RowsAffected() == 0 {
		var isActive bool
		err := r.db.QueryRow(ctx,
			`SELECT is_active FROM asset_version WHERE id = $1 AND deleted_at IS NULL`, id).
			Scan(&isActive)
		if errors.Is(err, pgx.ErrNoRows) {
			return assetversion.ErrVersionNotFound
		}
		if err != nil {
			return r.handlePostgresError("delete version", err)
		}
		if isActive {
			return assetversion.ErrVersionActive
		}
		return assetversion.ErrVersionNotFound
	}
	return nil
}

func (r *Repository) DeleteVersionsByMonument(ctx context.Context, monumentID uuid.UUID) (int, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE asset_version SET is_active = FALSE, deleted_at = NOW()
		 WHERE monument_id = $1 AND deleted_at IS NULL`, monumentID)
	if err != nil {
		return 0, r.handlePostgresError("delete versions by monument", err)
	}
	return int(tag.RowsAffected()), nil
}

// Attachment operations

func (r *Repository) CreateAttachment(ctx context.Context, attachment *assetversion.Attachment) error {
	if attachment.MonumentID == uuid.Nil {
		return &assetversion.ValidationError{Field: "monument_id", Reason: "must not be empty"}
	}
	if attachment.StorageKey == "" {
		return &assetversion.ValidationError{Field: "storage_key", Reason: "must not be empty"}
	}

	query := `
		INSERT INTO monument_attachment (
			id, monument_id, parent_record_id, storage_backend_name, storage_key,
			public_url, file_name, mime_type, byte_size, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		attachment.ID, attachment.MonumentID, attachment.ParentRecordID,
		attachment.StorageBackendName, attachment.StorageKey, attachment.PublicURL,
		attachment.FileName, attachment.MimeType, attachment.ByteSize, attachment.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create attachment", err)
	}

	return nil
}

func (r *Repository) GetAttachment(ctx context.Context, id uuid.UUID) (*assetversion.Attachment, error) {
	query := `
		SELECT id, monument_id, parent_record_id, storage_backend_name, storage_key,
		       public_url, file_name, mime_type, byte_size, created_at
		FROM monument_attachment WHERE id = $1`

	var attachment assetversion.Attachment
	err := r.db.QueryRow(ctx, query, id).Scan(
		&attachment.ID, &attachment.MonumentID, &attachment.ParentRecordID,
		&attachment.StorageBackendName, &attachment.StorageKey, &attachment.PublicURL,
		&attachment.FileName, &attachment.MimeType, &attachment.ByteSize, &attachment.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, assetversion.ErrAttachmentNotFound
		}
		return nil, r.handlePostgresError("get attachment", err)
	}

	return &attachment, nil
}

func (r *Repository) ListAttachmentsByMonument(ctx context.Context, monumentID uuid.UUID) ([]*assetversion.Attachment, error) {
	query := `
		SELECT id, monument_id, parent_record_id, storage_backend_name, storage_key,
		       public_url, file_name, mime_type, byte_size, created_at
		FROM monument_attachment WHERE monument_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, monumentID)
	if err != nil {
		return nil, r.handlePostgresError("list attachments", err)
	}
	defer rows.Close()

	var result []*assetversion.Attachment
	for rows.Next() {
		var attachment assetversion.Attachment
		if err := rows.Scan(
			&attachment.ID, &attachment.MonumentID, &attachment.ParentRecordID,
			&attachment.StorageBackendName, &attachment.StorageKey, &attachment.PublicURL,
			&attachment.FileName, &attachment.MimeType, &attachment.ByteSize, &attachment.CreatedAt); err != nil {
			return nil, r.handlePostgresError("list attachments", err)
		}
		result = append(result, &attachment)
	}

	return result, rows.Err()
}

func (r *Repository) DeleteAttachment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM monument_attachment WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete attachment", err)
	}
	if tag.RowsAffected() == 0 {
		return assetversion.ErrAttachmentNotFound
	}
	return nil
}

func (r *Repository) DeleteAttachmentsByMonument(ctx context.Context, monumentID uuid.UUID) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM monument_attachment WHERE monument_id = $1`, monumentID)
	if err != nil {
		return 0, r.handlePostgresError("delete attachments by monument", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repository) ListStorageKeys(ctx context.Context) ([]string, error) {
	query := `
		SELECT storage_key FROM asset_version WHERE deleted_at IS NULL
		UNION ALL
		SELECT storage_key FROM monument_attachment`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list storage keys", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, r.handlePostgresError("list storage keys", err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

func scanVersion(row pgx.Row) (*assetversion.VersionRecord, error) {
	var record assetversion.VersionRecord
	err := row.Scan(
		&record.ID, &record.MonumentID, &record.StorageBackendName,
		&record.StorageKey, &record.PublicURL, &record.AuxiliaryURL,
		&record.FileName, &record.MimeType, &record.AssetClass,
		&record.ByteSize, &record.IsActive, &record.UploadedBy,
		&record.UploadedAt)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
