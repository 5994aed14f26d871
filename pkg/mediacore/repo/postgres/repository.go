// Package postgres implements mediacore.Repository on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carhub/mediacore/pkg/mediacore"
)

// DBTX is satisfied by both a pgx pool and a transaction.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements mediacore.Repository using PostgreSQL.
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository.
func New(db DBTX) mediacore.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with a connection pool.
func NewWithPool(pool *pgxpool.Pool) mediacore.Repository {
	return &Repository{db: pool}
}

func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("duplicate entry in %s", operation)
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

func (r *Repository) CreateTemporaryFile(ctx context.Context, f *mediacore.TemporaryFile) error {
	query := `
		INSERT INTO temporary_file (
			id, object_key, file_name, original_file_name, content_type,
			size, checksum, file_url, store_version_id, uploaded_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		f.ID, f.ObjectKey, f.FileName, f.OriginalFileName, f.ContentType,
		f.Size, f.Checksum, f.FileURL, f.StoreVersionID, f.UploadedBy, f.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create temporary file", err)
	}
	return nil
}

func (r *Repository) GetTemporaryFile(ctx context.Context, id uuid.UUID) (*mediacore.TemporaryFile, error) {
	query := `
		SELECT id, object_key, file_name, original_file_name, content_type,
		       size, checksum, file_url, store_version_id, uploaded_by, created_at
		FROM temporary_file
		WHERE id = $1`

	var f mediacore.TemporaryFile
	err := r.db.QueryRow(ctx, query, id).Scan(
		&f.ID, &f.ObjectKey, &f.FileName, &f.OriginalFileName, &f.ContentType,
		&f.Size, &f.Checksum, &f.FileURL, &f.StoreVersionID, &f.UploadedBy, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mediacore.ErrTempFileNotFound
		}
		return nil, r.handlePostgresError("get temporary file", err)
	}
	return &f, nil
}

func (r *Repository) DeleteTemporaryFile(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM temporary_file WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete temporary file", err)
	}
	if tag.RowsAffected() == 0 {
		return mediacore.ErrTempFileNotFound
	}
	return nil
}

func (r *Repository) ListTemporaryFilesBefore(ctx context.Context, cutoff time.Time) ([]*mediacore.TemporaryFile, error) {
	query := `
		SELECT id, object_key, file_name, original_file_name, content_type,
		       size, checksum, file_url, store_version_id, uploaded_by, created_at
		FROM temporary_file
		WHERE created_at < $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, r.handlePostgresError("list temporary files", err)
	}
	defer rows.Close()

	var files []*mediacore.TemporaryFile
	for rows.Next() {
		var f mediacore.TemporaryFile
		if err := rows.Scan(
			&f.ID, &f.ObjectKey, &f.FileName, &f.OriginalFileName, &f.ContentType,
			&f.Size, &f.Checksum, &f.FileURL, &f.StoreVersionID, &f.UploadedBy, &f.CreatedAt); err != nil {
			return nil, r.handlePostgresError("scan temporary file", err)
		}
		files = append(files, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list temporary files", err)
	}
	return files, nil
}

func (r *Repository) CreateUploadedFile(ctx context.Context, f *mediacore.UploadedFile) error {
	query := `
		INSERT INTO uploaded_file (
			id, file_url, object_key, file_name, original_file_name,
			content_type, size, uploaded_by, owner_type, owner_id,
			checksum, access_type, store_version_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(ctx, query,
		f.ID, f.FileURL, f.ObjectKey, f.FileName, f.OriginalFileName,
		f.ContentType, f.Size, f.UploadedBy, f.OwnerType, f.OwnerID,
		f.Checksum, f.AccessType, f.StoreVersionID, f.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create uploaded file", err)
	}
	return nil
}

func (r *Repository) GetUploadedFile(ctx context.Context, id uuid.UUID) (*mediacore.UploadedFile, error) {
	return r.getUploadedFile(ctx, `WHERE id = $1`, id)
}

func (r *Repository) GetUploadedFileByURL(ctx context.Context, fileURL string) (*mediacore.UploadedFile, error) {
	return r.getUploadedFile(ctx, `WHERE file_url = $1`, fileURL)
}

func (r *Repository) getUploadedFile(ctx context.Context, where string, arg interface{}) (*mediacore.UploadedFile, error) {
	query := `
		SELECT id, file_url, object_key, file_name, original_file_name,
		       content_type, size, uploaded_by, owner_type, owner_id,
		       checksum, access_type, store_version_id, created_at
		FROM uploaded_file ` + where

	var f mediacore.UploadedFile
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&f.ID, &f.FileURL, &f.ObjectKey, &f.FileName, &f.OriginalFileName,
		&f.ContentType, &f.Size, &f.UploadedBy, &f.OwnerType, &f.OwnerID,
		&f.Checksum, &f.AccessType, &f.StoreVersionID, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mediacore.ErrFileNotFound
		}
		return nil, r.handlePostgresError("get uploaded file", err)
	}
	return &f, nil
}

func (r *Repository) DeleteUploadedFile(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM uploaded_file WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete uploaded file", err)
	}
	if tag.RowsAffected() == 0 {
		return mediacore.ErrFileNotFound
	}
	return nil
}
