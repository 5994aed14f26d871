// Package memory provides in-memory implementations of the mediacore
// persistence interfaces for tests and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carhub/mediacore/pkg/mediacore"
)

// Repository is an in-memory mediacore.Repository. All returned records are
// copies; callers can mutate them freely.
type Repository struct {
	mu        sync.RWMutex
	tempFiles map[uuid.UUID]*mediacore.TemporaryFile
	files     map[uuid.UUID]*mediacore.UploadedFile
}

// New creates a new in-memory repository.
func New() *Repository {
	return &Repository{
		tempFiles: make(map[uuid.UUID]*mediacore.TemporaryFile),
		files:     make(map[uuid.UUID]*mediacore.UploadedFile),
	}
}

func (r *Repository) CreateTemporaryFile(ctx context.Context, f *mediacore.TemporaryFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.tempFiles[f.ID] = &cp
	return nil
}

func (r *Repository) GetTemporaryFile(ctx context.Context, id uuid.UUID) (*mediacore.TemporaryFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.tempFiles[id]
	if !ok {
		return nil, mediacore.ErrTempFileNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *Repository) DeleteTemporaryFile(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tempFiles[id]; !ok {
		return mediacore.ErrTempFileNotFound
	}
	delete(r.tempFiles, id)
	return nil
}

func (r *Repository) ListTemporaryFilesBefore(ctx context.Context, cutoff time.Time) ([]*mediacore.TemporaryFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*mediacore.TemporaryFile
	for _, f := range r.tempFiles {
		if f.CreatedAt.Before(cutoff) {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *Repository) CreateUploadedFile(ctx context.Context, f *mediacore.UploadedFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.files[f.ID] = &cp
	return nil
}

func (r *Repository) GetUploadedFile(ctx context.Context, id uuid.UUID) (*mediacore.UploadedFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[id]
	if !ok {
		return nil, mediacore.ErrFileNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *Repository) GetUploadedFileByURL(ctx context.Context, fileURL string) (*mediacore.UploadedFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.files {
		if f.FileURL == fileURL {
			cp := *f
			return &cp, nil
		}
	}
	return nil, mediacore.ErrFileNotFound
}

func (r *Repository) DeleteUploadedFile(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[id]; !ok {
		return mediacore.ErrFileNotFound
	}
	delete(r.files, id)
	return nil
}

// TempFileCount reports how many temporary file records exist.
func (r *Repository) TempFileCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tempFiles)
}

// FileCount reports how many uploaded file records exist.
func (r *Repository) FileCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}

// ResourceStore is an in-memory mediacore.MediaResourceStore with optimistic
// concurrency: an update whose version does not match the stored row fails
// with mediacore.ErrConflict, a successful one bumps the version.
type ResourceStore struct {
	mu        sync.Mutex
	resources map[uuid.UUID]*mediacore.MediaResource
}

// NewResourceStore creates a new in-memory resource store.
func NewResourceStore() *ResourceStore {
	return &ResourceStore{resources: make(map[uuid.UUID]*mediacore.MediaResource)}
}

// Put seeds a resource, overwriting any stored state.
func (s *ResourceStore) Put(r *mediacore.MediaResource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	cp.ImageURLs = append([]string(nil), r.ImageURLs...)
	s.resources[r.ID] = &cp
}

func (s *ResourceStore) GetMediaResource(ctx context.Context, id uuid.UUID) (*mediacore.MediaResource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[id]
	if !ok {
		return nil, mediacore.ErrResourceNotFound
	}
	cp := *r
	cp.ImageURLs = append([]string(nil), r.ImageURLs...)
	return &cp, nil
}

func (s *ResourceStore) UpdateMediaResource(ctx context.Context, r *mediacore.MediaResource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.resources[r.ID]
	if !ok {
		return mediacore.ErrResourceNotFound
	}
	if stored.Version != r.Version {
		return mediacore.ErrConflict
	}
	cp := *r
	cp.Version++
	cp.ImageURLs = append([]string(nil), r.ImageURLs...)
	s.resources[r.ID] = &cp
	return nil
}
