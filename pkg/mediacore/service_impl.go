package mediacore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carhub/mediacore/pkg/mediacore/objectkey"
)

// KeyGenerator produces object keys for new uploads. Keys must be unique per
// call and must stay within the supplied folder.
type KeyGenerator interface {
	Generate(folder string, uploaderID uuid.UUID, originalName string) string
}

// service implements the Service interface.
type service struct {
	repo      Repository
	blob      BlobStore
	resources MediaResourceStore
	listings  ListingDirectory
	chat      ChatAuthorizer
	scanner   MalwareScanner
	queue     ProcessingQueue
	keys      KeyGenerator

	policy        ValidationPolicy
	retry         RetryPolicy
	publicBaseURL string
	logger        *slog.Logger
	now           func() time.Time

	engine *Engine
	guard  *Guard
}

// Option represents a functional option for configuring the service.
type Option func(*service)

// WithRepository sets the file-record repository.
func WithRepository(repo Repository) Option {
	return func(s *service) { s.repo = repo }
}

// WithBlobStore sets the object-store backend.
func WithBlobStore(store BlobStore) Option {
	return func(s *service) { s.blob = store }
}

// WithResourceStore sets the owning-resource store used by media processing.
func WithResourceStore(store MediaResourceStore) Option {
	return func(s *service) { s.resources = store }
}

// WithListingDirectory sets the listing-ownership collaborator.
func WithListingDirectory(dir ListingDirectory) Option {
	return func(s *service) { s.listings = dir }
}

// WithChatAuthorizer sets the chat-membership collaborator.
func WithChatAuthorizer(chat ChatAuthorizer) Option {
	return func(s *service) { s.chat = chat }
}

// WithScanner sets an external malware scanner. Absent a scanner the scan
// stage is skipped.
func WithScanner(scanner MalwareScanner) Option {
	return func(s *service) { s.scanner = scanner }
}

// WithProcessingQueue sets the background queue for media processing. Absent
// a queue, processing runs inline in the uploading request.
func WithProcessingQueue(q ProcessingQueue) Option {
	return func(s *service) { s.queue = q }
}

// WithKeyGenerator overrides the object-key generator.
func WithKeyGenerator(g KeyGenerator) Option {
	return func(s *service) { s.keys = g }
}

// WithPolicy overrides the validation policy.
func WithPolicy(p ValidationPolicy) Option {
	return func(s *service) { s.policy = p }
}

// WithRetryPolicy overrides the conflict-retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *service) { s.retry = p }
}

// WithPublicBaseURL sets the base URL public file URLs are built from.
func WithPublicBaseURL(base string) Option {
	return func(s *service) { s.publicBaseURL = strings.TrimSuffix(base, "/") }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

// WithClock overrides the time source. Tests use this.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// New creates a media service. A repository, a blob store, and a public base
// URL are required.
func New(options ...Option) (Service, error) {
	s := &service{
		policy: DefaultPolicy(),
		retry:  DefaultRetryPolicy(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, option := range options {
		option(s)
	}
	if s.repo == nil {
		return nil, fmt.Errorf("mediacore: repository is required")
	}
	if s.blob == nil {
		return nil, fmt.Errorf("mediacore: blob store is required")
	}
	if s.publicBaseURL == "" {
		return nil, fmt.Errorf("mediacore: public base URL is required")
	}
	if s.keys == nil {
		s.keys = objectkey.Generator{Now: s.now}
	}
	s.engine = NewEngine(s.policy, s.scanner, s.logger)
	s.guard = NewGuard(s.listings, s.chat, s.logger)
	return s, nil
}

func (s *service) UploadFile(ctx context.Context, req UploadFileRequest) (*UploadResponse, error) {
	if err := s.engine.ValidateFolderName(req.Folder); err != nil {
		return nil, err
	}
	if err := s.guard.CheckWrite(ctx, req.Principal, req.Folder); err != nil {
		return nil, err
	}
	return s.uploadOne(ctx, req.Principal, req.Folder, req.File)
}

func (s *service) UploadFiles(ctx context.Context, req UploadFilesRequest) (*BatchUploadResponse, error) {
	if len(req.Files) == 0 {
		return nil, reject(RejectEmptyFile, "no files in batch")
	}
	if len(req.Files) > s.policy.MaxFilesPerBatch {
		return nil, reject(RejectTooManyFiles, "batch of %d exceeds limit of %d files",
			len(req.Files), s.policy.MaxFilesPerBatch)
	}
	if err := s.engine.ValidateFolderName(req.Folder); err != nil {
		return nil, err
	}
	if err := s.guard.CheckWrite(ctx, req.Principal, req.Folder); err != nil {
		return nil, err
	}

	resp := &BatchUploadResponse{}
	for _, f := range req.Files {
		uploaded, err := s.uploadOne(ctx, req.Principal, req.Folder, f)
		if err != nil {
			resp.Failed = append(resp.Failed, batchFailure(f.Name, err))
			continue
		}
		resp.Uploaded = append(resp.Uploaded, uploaded)
	}
	return resp, nil
}

// uploadOne is the single-file proxied upload path shared by the batch
// operations. The caller has already authorized the folder.
func (s *service) uploadOne(ctx context.Context, principal Principal, folder string, f FilePayload) (*UploadResponse, error) {
	if err := s.engine.Validate(ctx, f.Data, f.Name, f.ContentType, int64(len(f.Data)), f.Checksum); err != nil {
		return nil, err
	}

	key := s.keys.Generate(folder, principal.ID, f.Name)
	meta, err := s.blob.Upload(ctx, key, bytes.NewReader(f.Data), f.ContentType)
	if err != nil {
		return nil, &StorageError{Op: "upload", Key: key, Err: err}
	}

	checksum := f.Checksum
	if checksum == "" {
		sum := sha256.Sum256(f.Data)
		checksum = hex.EncodeToString(sum[:])
	}

	claim := ParseFolder(folder)
	ownerType, ownerID := deriveOwner(claim, principal)
	now := s.now().UTC()
	record := &UploadedFile{
		ID:               uuid.New(),
		FileURL:          s.buildFileURL(key),
		ObjectKey:        key,
		FileName:         path.Base(key),
		OriginalFileName: sanitizeDisplayName(f.Name),
		ContentType:      f.ContentType,
		Size:             int64(len(f.Data)),
		UploadedBy:       principal.ID,
		OwnerType:        ownerType,
		OwnerID:          ownerID,
		Checksum:         checksum,
		AccessType:       accessTypeFor(ownerType),
		StoreVersionID:   meta.VersionID,
		CreatedAt:        now,
	}
	if err := s.repo.CreateUploadedFile(ctx, record); err != nil {
		if derr := s.blob.Delete(ctx, key); derr != nil {
			s.logger.Error("orphaned object after failed record insert",
				"key", key, "error", derr)
		}
		return nil, fmt.Errorf("persisting file record: %w", err)
	}

	s.logger.Info("file uploaded",
		"file_id", record.ID, "key", key, "size", record.Size,
		"owner_type", record.OwnerType, "uploaded_by", principal.ID)

	return &UploadResponse{
		File:        record,
		DisplayName: record.OriginalFileName,
		Folder:      folder,
		UploadedAt:  now,
	}, nil
}

func (s *service) UploadResourceMedia(ctx context.Context, req UploadResourceMediaRequest) (*BatchUploadResponse, error) {
	if s.resources == nil {
		return nil, fmt.Errorf("mediacore: no resource store configured")
	}
	if len(req.Files) == 0 {
		return nil, reject(RejectEmptyFile, "no files in batch")
	}
	if len(req.Files) > s.policy.MaxFilesPerBatch {
		return nil, reject(RejectTooManyFiles, "batch of %d exceeds limit of %d files",
			len(req.Files), s.policy.MaxFilesPerBatch)
	}
	if _, err := s.resources.GetMediaResource(ctx, req.ResourceID); err != nil {
		return nil, err
	}

	folder := "cars/" + req.ResourceID.String()
	if err := s.guard.CheckWrite(ctx, req.Principal, folder); err != nil {
		return nil, err
	}

	resp := &BatchUploadResponse{}
	var urls []string
	for _, f := range req.Files {
		sub := folder + "/images"
		if s.policy.IsVideoExtension(fileExtension(f.Name)) {
			sub = folder + "/videos"
		}
		uploaded, err := s.uploadOne(ctx, req.Principal, sub, f)
		if err != nil {
			resp.Failed = append(resp.Failed, batchFailure(f.Name, err))
			continue
		}
		resp.Uploaded = append(resp.Uploaded, uploaded)
		urls = append(urls, uploaded.File.FileURL)
	}
	if len(urls) == 0 {
		return resp, nil
	}

	err := RetryOnConflict(ctx, s.retry, func(err error) bool { return errors.Is(err, ErrConflict) }, func() error {
		res, err := s.resources.GetMediaResource(ctx, req.ResourceID)
		if err != nil {
			return err
		}
		res.Status = MediaStatusPending
		return s.resources.UpdateMediaResource(ctx, res)
	})
	if err != nil {
		return nil, fmt.Errorf("marking resource pending: %w", err)
	}

	if s.queue != nil {
		if err := s.queue.EnqueueProcessMedia(ctx, req.ResourceID, urls); err != nil {
			return nil, fmt.Errorf("enqueueing media processing: %w", err)
		}
		return resp, nil
	}
	if err := s.ProcessMedia(ctx, req.ResourceID, urls); err != nil {
		s.logger.Error("inline media processing failed",
			"resource_id", req.ResourceID, "error", err)
	}
	return resp, nil
}

func (s *service) InitDirectUpload(ctx context.Context, req InitDirectUploadRequest) (*DirectUploadCredential, error) {
	if err := s.engine.ValidateMetadata(req.FileName, req.Size, req.ContentType); err != nil {
		return nil, err
	}
	if err := s.engine.ValidateFolderName(req.Folder); err != nil {
		return nil, err
	}
	if err := s.guard.CheckWrite(ctx, req.Principal, req.Folder); err != nil {
		return nil, err
	}

	folder := s.tempFolderFor(req.Principal, req.Folder, req.FileName)
	key := s.keys.Generate(folder, req.Principal.ID, req.FileName)
	uploadURL, err := s.blob.SignedPutURL(ctx, key, s.policy.SignedURLTTL)
	if err != nil {
		return nil, &StorageError{Op: "sign_put", Key: key, Err: err}
	}

	s.logger.Info("direct upload initialized",
		"key", key, "principal", req.Principal.ID, "declared_size", req.Size)

	return &DirectUploadCredential{
		UploadURL: uploadURL,
		ObjectKey: key,
		FileURL:   s.buildFileURL(key),
		ExpiresAt: s.now().UTC().Add(s.policy.SignedURLTTL),
	}, nil
}

// tempFolderFor reroutes any requested target folder into the temporary
// namespace. Direct uploads never land at their final location; promotion
// happens only through Finalize.
func (s *service) tempFolderFor(principal Principal, folder, fileName string) string {
	claim := ParseFolder(folder)
	switch {
	case claim.Resolved && claim.OwnerType == OwnerTypeCarImage:
		if s.policy.IsVideoExtension(fileExtension(fileName)) {
			return "temp/cars/" + claim.OwnerID.String() + "/videos"
		}
		return "temp/cars/" + claim.OwnerID.String() + "/images"
	case claim.Resolved && claim.OwnerType == OwnerTypeChatAttachment:
		return "temp/chat/" + claim.OwnerID.String()
	case claim.Resolved && claim.OwnerType == OwnerTypeUserProfile:
		return "temp/users/" + claim.OwnerID.String()
	default:
		return "temp/users/" + principal.ID.String()
	}
}

func (s *service) CompleteDirectUpload(ctx context.Context, req CompleteDirectUploadRequest) (*TemporaryFile, error) {
	key := req.ObjectKey
	if !strings.HasPrefix(key, "temp/") {
		return nil, ErrAccessDenied
	}
	// Re-authorize against the namespace embedded in the key. The folder
	// under temp/ mirrors the target namespace the credential was issued
	// for, so the same write rules apply.
	if err := s.guard.CheckWrite(ctx, req.Principal, strings.TrimPrefix(path.Dir(key), "temp/")); err != nil {
		return nil, err
	}

	meta, err := s.blob.Head(ctx, key)
	if err != nil {
		return nil, &StorageError{Op: "head", Key: key, Err: err}
	}
	name := path.Base(key)
	if err := s.engine.ValidateMetadata(name, meta.Size, meta.ContentType); err != nil {
		return nil, err
	}

	temp := &TemporaryFile{
		ID:               uuid.New(),
		ObjectKey:        key,
		FileName:         name,
		OriginalFileName: name,
		ContentType:      meta.ContentType,
		Size:             meta.Size,
		FileURL:          s.buildFileURL(key),
		StoreVersionID:   meta.VersionID,
		UploadedBy:       req.Principal.ID,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.repo.CreateTemporaryFile(ctx, temp); err != nil {
		return nil, fmt.Errorf("registering temporary file: %w", err)
	}

	s.logger.Info("direct upload completed",
		"temp_file_id", temp.ID, "key", key, "size", meta.Size)
	return temp, nil
}

func (s *service) DeleteFile(ctx context.Context, principal Principal, fileID uuid.UUID) error {
	file, err := s.repo.GetUploadedFile(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.guard.CheckRead(ctx, principal, file); err != nil {
		if errors.Is(err, ErrAccessDenied) {
			return ErrFileNotFound
		}
		return err
	}
	if err := s.blob.Delete(ctx, file.ObjectKey); err != nil {
		return &StorageError{Op: "delete", Key: file.ObjectKey, Err: err}
	}
	if err := s.repo.DeleteUploadedFile(ctx, fileID); err != nil {
		return fmt.Errorf("deleting file record: %w", err)
	}
	s.logger.Info("file deleted", "file_id", fileID, "key", file.ObjectKey, "by", principal.ID)
	return nil
}

func (s *service) GetFileMetadata(ctx context.Context, principal Principal, fileID uuid.UUID) (*UploadedFile, error) {
	file, err := s.repo.GetUploadedFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CheckRead(ctx, principal, file); err != nil {
		if errors.Is(err, ErrAccessDenied) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return file, nil
}

func (s *service) GenerateAccessURL(ctx context.Context, principal Principal, fileID uuid.UUID, expiry time.Duration) (string, error) {
	if expiry < time.Minute {
		expiry = time.Minute
	}
	if expiry > 24*time.Hour {
		expiry = 24 * time.Hour
	}
	file, err := s.GetFileMetadata(ctx, principal, fileID)
	if err != nil {
		return "", err
	}
	url, err := s.blob.SignedGetURL(ctx, file.ObjectKey, expiry)
	if err != nil {
		return "", &StorageError{Op: "sign_get", Key: file.ObjectKey, Err: err}
	}
	return url, nil
}

func (s *service) ResolveMediaURL(ctx context.Context, principal Principal, fileURL string) (string, error) {
	file, err := s.repo.GetUploadedFileByURL(ctx, fileURL)
	if err != nil {
		return "", err
	}
	if err := s.guard.CheckRead(ctx, principal, file); err != nil {
		if errors.Is(err, ErrAccessDenied) {
			return "", ErrFileNotFound
		}
		return "", err
	}
	if file.AccessType == AccessTypePublic {
		return file.FileURL, nil
	}
	url, err := s.blob.SignedGetURL(ctx, file.ObjectKey, s.policy.SignedURLTTL)
	if err != nil {
		return "", &StorageError{Op: "sign_get", Key: file.ObjectKey, Err: err}
	}
	return url, nil
}

// buildFileURL joins the public base URL with an object key. The key is
// appended as a path, never substituted into the base.
func (s *service) buildFileURL(key string) string {
	return s.publicBaseURL + "/" + strings.TrimPrefix(key, "/")
}

// deriveOwner maps a parsed folder claim to the persisted ownership pair.
// Unrecognized folders fall back to OTHER owned by the uploader.
func deriveOwner(claim FolderClaim, principal Principal) (OwnerType, uuid.UUID) {
	if claim.Resolved {
		return claim.OwnerType, claim.OwnerID
	}
	return OwnerTypeOther, principal.ID
}

// accessTypeFor decides URL visibility per owner kind. Chat attachments and
// unclassified files are reachable only through presigned URLs.
func accessTypeFor(t OwnerType) AccessType {
	switch t {
	case OwnerTypeChatAttachment, OwnerTypeOther:
		return AccessTypePrivate
	default:
		return AccessTypePublic
	}
}

func batchFailure(name string, err error) BatchFailure {
	if ve, ok := IsValidationError(err); ok {
		return BatchFailure{FileName: sanitizeDisplayName(name), Reason: string(ve.Reason)}
	}
	return BatchFailure{FileName: sanitizeDisplayName(name), Reason: "upload_failed"}
}

// sanitizeDisplayName reduces a client-supplied filename to a safe echoable
// form: whitelisted characters only, bounded length, no traversal sequences.
func sanitizeDisplayName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	for strings.Contains(out, "..") {
		out = strings.ReplaceAll(out, "..", "_")
	}
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	if out == "" || strings.Trim(out, "._-") == "" {
		out = "file"
	}
	return out
}
