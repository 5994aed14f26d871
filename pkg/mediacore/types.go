package mediacore

import (
	"time"

	"github.com/google/uuid"
)

// OwnerType is the closed set of resource kinds a file can be attached to.
// Dispatch on it with an exhaustive switch; adding a kind is a compile-time
// visible change.
type OwnerType string

const (
	OwnerTypeUserProfile    OwnerType = "USER_PROFILE"
	OwnerTypeCarImage       OwnerType = "CAR_IMAGE"
	OwnerTypeChatAttachment OwnerType = "CHAT_ATTACHMENT"
	OwnerTypeOther          OwnerType = "OTHER"
)

// Valid reports whether t is one of the known owner types.
func (t OwnerType) Valid() bool {
	switch t {
	case OwnerTypeUserProfile, OwnerTypeCarImage, OwnerTypeChatAttachment, OwnerTypeOther:
		return true
	}
	return false
}

// AccessType controls whether a file URL is served directly or only through
// a presigned URL.
type AccessType string

const (
	AccessTypePublic  AccessType = "PUBLIC"
	AccessTypePrivate AccessType = "PRIVATE"
)

// MediaStatus is the media lifecycle state carried by an owning resource.
// Only the upload orchestrator (PENDING) and the processing state machine
// (PROCESSING, READY, FAILED) write it.
type MediaStatus string

const (
	MediaStatusPending    MediaStatus = "PENDING"
	MediaStatusProcessing MediaStatus = "PROCESSING"
	MediaStatusReady      MediaStatus = "READY"
	MediaStatusFailed     MediaStatus = "FAILED"
)

// Role is the coarse authorization role of a principal.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Principal is the authenticated actor performing an operation.
type Principal struct {
	ID   uuid.UUID
	Role Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// TemporaryFile is the record registered when a direct upload completes.
// It is destroyed either by finalization (promotion to UploadedFile) or by
// the TTL sweep; it is never mutated in between.
type TemporaryFile struct {
	ID               uuid.UUID `json:"id"`
	ObjectKey        string    `json:"object_key"`
	FileName         string    `json:"file_name"`
	OriginalFileName string    `json:"original_file_name"`
	ContentType      string    `json:"content_type"`
	Size             int64     `json:"size"`
	Checksum         string    `json:"checksum,omitempty"`
	FileURL          string    `json:"file_url"`
	StoreVersionID   string    `json:"store_version_id,omitempty"`
	UploadedBy       uuid.UUID `json:"uploaded_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// UploadedFile is the permanent record for a stored object. (OwnerType,
// OwnerID) identifies the attached resource and is the sole basis for
// authorization after creation. Rows are immutable; they are deleted only
// when the owning resource is hard-deleted.
type UploadedFile struct {
	ID               uuid.UUID  `json:"id"`
	FileURL          string     `json:"file_url"`
	ObjectKey        string     `json:"object_key"`
	FileName         string     `json:"file_name"`
	OriginalFileName string     `json:"original_file_name"`
	ContentType      string     `json:"content_type"`
	Size             int64      `json:"size"`
	UploadedBy       uuid.UUID  `json:"uploaded_by"`
	OwnerType        OwnerType  `json:"owner_type"`
	OwnerID          uuid.UUID  `json:"owner_id"`
	Checksum         string     `json:"checksum,omitempty"`
	AccessType       AccessType `json:"access_type"`
	StoreVersionID   string     `json:"store_version_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// MediaResource is the slice of an owning resource (listing, profile, chat
// room) this core is allowed to write: its media status and url list. The
// Version stamp backs optimistic concurrency; the resource's own edit path
// writes the same row, so every update goes through a conflict-retry loop.
type MediaResource struct {
	ID        uuid.UUID   `json:"id"`
	Status    MediaStatus `json:"status"`
	ImageURLs []string    `json:"image_urls"`
	VideoURL  string      `json:"video_url,omitempty"`
	Version   int64       `json:"version"`
}

// UploadResponse is returned for a proxied upload. DisplayName is the
// sanitized original filename, safe to echo back to clients.
type UploadResponse struct {
	File        *UploadedFile `json:"file"`
	DisplayName string        `json:"display_name"`
	Folder      string        `json:"folder"`
	UploadedAt  time.Time     `json:"uploaded_at"`
}

// BatchUploadResponse aggregates a multi-file upload. Failures carry the
// per-file reason; siblings are unaffected.
type BatchUploadResponse struct {
	Uploaded []*UploadResponse `json:"uploaded"`
	Failed   []BatchFailure    `json:"failed,omitempty"`
}

// BatchFailure records one file that did not make it through a batch.
type BatchFailure struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
}

// DirectUploadCredential is the short-lived write grant handed to a client
// for a direct-to-store upload. The object key always lives under the
// temporary namespace so nothing becomes visible before finalization.
type DirectUploadCredential struct {
	UploadURL string    `json:"upload_url"`
	ObjectKey string    `json:"object_key"`
	FileURL   string    `json:"file_url"`
	ExpiresAt time.Time `json:"expires_at"`
}
