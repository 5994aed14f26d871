package mediacore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service is the media core: validation, authorization, proxied and direct
// uploads, finalization, media processing, URL resolution, and the temp-file
// sweep. Construct one with New.
type Service interface {
	// UploadFile validates, authorizes, and stores a single proxied upload.
	UploadFile(ctx context.Context, req UploadFileRequest) (*UploadResponse, error)

	// UploadFiles uploads a batch into one folder. Per-file failures are
	// reported alongside the successes; they never abort siblings.
	UploadFiles(ctx context.Context, req UploadFilesRequest) (*BatchUploadResponse, error)

	// UploadResourceMedia uploads media for an owning resource, marks it
	// PENDING, and hands the stored URLs to the processing pipeline.
	UploadResourceMedia(ctx context.Context, req UploadResourceMediaRequest) (*BatchUploadResponse, error)

	// InitDirectUpload issues a presigned credential for one direct upload.
	// The object key is always placed under the temporary namespace.
	InitDirectUpload(ctx context.Context, req InitDirectUploadRequest) (*DirectUploadCredential, error)

	// CompleteDirectUpload verifies the uploaded object and registers it as
	// a temporary file awaiting finalization.
	CompleteDirectUpload(ctx context.Context, req CompleteDirectUploadRequest) (*TemporaryFile, error)

	// Finalize promotes temporary files to permanent storage with per-item
	// failure isolation.
	Finalize(ctx context.Context, req FinalizeRequest) (*FinalizeResult, error)

	// ProcessMedia runs the classification pipeline for a resource's
	// uploaded URLs and drives its media status to READY or FAILED.
	ProcessMedia(ctx context.Context, resourceID uuid.UUID, urls []string) error

	// DeleteFile removes a file record and its stored object.
	DeleteFile(ctx context.Context, principal Principal, fileID uuid.UUID) error

	// GetFileMetadata returns the file record if the principal may see it.
	GetFileMetadata(ctx context.Context, principal Principal, fileID uuid.UUID) (*UploadedFile, error)

	// GenerateAccessURL returns a presigned read URL valid for the given
	// duration, clamped to the allowed window.
	GenerateAccessURL(ctx context.Context, principal Principal, fileID uuid.UUID, expiry time.Duration) (string, error)

	// ResolveMediaURL resolves a stored file URL to a servable URL: the URL
	// itself for public files, a presigned URL for private ones. Denials
	// and unknown URLs are indistinguishable.
	ResolveMediaURL(ctx context.Context, principal Principal, fileURL string) (string, error)

	// SweepExpiredTempFiles deletes temporary files older than the TTL and
	// returns how many were removed.
	SweepExpiredTempFiles(ctx context.Context, now time.Time) (int, error)
}
