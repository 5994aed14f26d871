// Package memory provides an in-memory mediacore.BlobStore for tests and
// local development.
package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/carhub/mediacore/pkg/mediacore"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("object not found")

type object struct {
	data        []byte
	contentType string
	versionID   string
	updatedAt   time.Time
}

// Backend is an in-memory implementation of mediacore.BlobStore.
type Backend struct {
	mu      sync.RWMutex
	objects map[string]*object
	nextVer int
}

// New creates a new in-memory storage backend.
func New() *Backend {
	return &Backend{objects: make(map[string]*object)}
}

func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (*mediacore.ObjectMeta, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading upload body: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextVer++
	obj := &object{
		data:        data,
		contentType: contentType,
		versionID:   "v" + strconv.Itoa(b.nextVer),
		updatedAt:   time.Now().UTC(),
	}
	b.objects[key] = obj
	return b.metaLocked(key, obj), nil
}

func (b *Backend) Copy(ctx context.Context, srcKey, dstKey string) (*mediacore.ObjectMeta, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	src, ok := b.objects[srcKey]
	if !ok {
		return nil, ErrObjectNotFound
	}
	b.nextVer++
	dst := &object{
		data:        append([]byte(nil), src.data...),
		contentType: src.contentType,
		versionID:   "v" + strconv.Itoa(b.nextVer),
		updatedAt:   time.Now().UTC(),
	}
	b.objects[dstKey] = dst
	return b.metaLocked(dstKey, dst), nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(b.objects, key)
	return nil
}

func (b *Backend) DeleteVersion(ctx context.Context, key, versionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[key]
	if !ok {
		return ErrObjectNotFound
	}
	if versionID != "" && obj.versionID != versionID {
		return ErrObjectNotFound
	}
	delete(b.objects, key)
	return nil
}

func (b *Backend) SignedPutURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("memory://upload/%s?expires=%d", key, int(ttl.Seconds())), nil
}

func (b *Backend) SignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.objects[key]; !ok {
		return "", ErrObjectNotFound
	}
	return fmt.Sprintf("memory://download/%s?expires=%d", key, int(ttl.Seconds())), nil
}

func (b *Backend) Head(ctx context.Context, key string) (*mediacore.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return b.metaLocked(key, obj), nil
}

// Get returns the stored bytes. Tests use this to assert on content.
func (b *Backend) Get(key string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// Put seeds an object directly. Tests use this to simulate a client's direct
// upload against a presigned URL.
func (b *Backend) Put(key string, data []byte, contentType string) *mediacore.ObjectMeta {
	meta, _ := b.Upload(context.Background(), key, bytes.NewReader(data), contentType)
	return meta
}

// Len reports how many objects are stored.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

func (b *Backend) metaLocked(key string, obj *object) *mediacore.ObjectMeta {
	return &mediacore.ObjectMeta{
		Key:         key,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		VersionID:   obj.versionID,
		UpdatedAt:   obj.updatedAt,
	}
}
