package mediacore

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore is the object-store capability consumed by the core. Keys are
// opaque paths; the store returns durable version identifiers where the
// backend supports them.
type BlobStore interface {
	// Upload writes an object and returns its resulting metadata.
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (*ObjectMeta, error)

	// Copy duplicates srcKey to dstKey server-side. The store has no atomic
	// rename; moves are emulated as copy-then-delete.
	Copy(ctx context.Context, srcKey, dstKey string) (*ObjectMeta, error)

	// Delete removes the current version of an object.
	Delete(ctx context.Context, key string) error

	// DeleteVersion removes a specific object version. An empty versionID
	// deletes the current version.
	DeleteVersion(ctx context.Context, key, versionID string) error

	// SignedPutURL returns a time-limited URL a client can PUT bytes to.
	SignedPutURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// SignedGetURL returns a time-limited URL for reading an object.
	SignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Head retrieves metadata for an object without reading its body.
	Head(ctx context.Context, key string) (*ObjectMeta, error)
}

// ObjectMeta describes an object as known to the backing store.
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	ETag        string
	VersionID   string
	UpdatedAt   time.Time
	Metadata    map[string]string
}

// Repository persists the two file tables. Every row has exactly one writer
// for its lifetime, so no method here needs a version stamp.
type Repository interface {
	CreateTemporaryFile(ctx context.Context, f *TemporaryFile) error
	GetTemporaryFile(ctx context.Context, id uuid.UUID) (*TemporaryFile, error)
	DeleteTemporaryFile(ctx context.Context, id uuid.UUID) error
	ListTemporaryFilesBefore(ctx context.Context, cutoff time.Time) ([]*TemporaryFile, error)

	CreateUploadedFile(ctx context.Context, f *UploadedFile) error
	GetUploadedFile(ctx context.Context, id uuid.UUID) (*UploadedFile, error)
	GetUploadedFileByURL(ctx context.Context, fileURL string) (*UploadedFile, error)
	DeleteUploadedFile(ctx context.Context, id uuid.UUID) error
}

// MediaResourceStore reads and writes the media fields of an owning
// resource. Update must fail with ErrConflict when the stored version no
// longer matches r.Version; on success it bumps the version. The resource's
// own edit path shares this row, which is why all writes race.
type MediaResourceStore interface {
	GetMediaResource(ctx context.Context, id uuid.UUID) (*MediaResource, error)
	UpdateMediaResource(ctx context.Context, r *MediaResource) error
}

// ListingDirectory is the narrow listing-lookup collaborator. FindOwnerOf
// returns ErrListingNotFound for unknown or hidden listings; the guard maps
// both to a denial so hidden-listing existence never leaks.
type ListingDirectory interface {
	FindOwnerOf(ctx context.Context, listingID uuid.UUID) (uuid.UUID, error)
}

// ChatAuthorizer is the chat-authorization collaborator.
type ChatAuthorizer interface {
	MayPostInRoom(ctx context.Context, userID, roomID uuid.UUID) (bool, error)
	MayViewRoom(ctx context.Context, userID, roomID uuid.UUID) (bool, error)
}

// MalwareScanner is an opaque scan capability. A rejection comes back as a
// *ValidationError; any other error is an infrastructure failure.
type MalwareScanner interface {
	Scan(ctx context.Context, data []byte) error
}

// ProcessingQueue hands a processing batch to the background worker pool.
// When no queue is configured the service runs the batch inline.
type ProcessingQueue interface {
	EnqueueProcessMedia(ctx context.Context, resourceID uuid.UUID, urls []string) error
}
