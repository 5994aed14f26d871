package mediacore_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carhub/mediacore/pkg/mediacore"
	repomemory "github.com/carhub/mediacore/pkg/mediacore/repo/memory"
	storagememory "github.com/carhub/mediacore/pkg/mediacore/storage/memory"
)

// conflictingStore wraps a resource store and injects version conflicts on
// the first n updates, simulating a concurrent editor.
type conflictingStore struct {
	*repomemory.ResourceStore
	remaining int
	// failReady restricts injected conflicts to updates that set READY.
	failReady bool
	updates   int
}

func (s *conflictingStore) UpdateMediaResource(ctx context.Context, r *mediacore.MediaResource) error {
	s.updates++
	if s.remaining > 0 && (!s.failReady || r.Status == mediacore.MediaStatusReady) {
		s.remaining--
		return mediacore.ErrConflict
	}
	return s.ResourceStore.UpdateMediaResource(ctx, r)
}

func fastRetry() mediacore.RetryPolicy {
	return mediacore.RetryPolicy{MaxAttempts: 3, BaseDelay: 1, MaxDelay: 2}
}

func newProcessingEnv(t *testing.T, store mediacore.MediaResourceStore) mediacore.Service {
	t.Helper()
	svc, err := mediacore.New(
		mediacore.WithRepository(repomemory.New()),
		mediacore.WithBlobStore(storagememory.New()),
		mediacore.WithResourceStore(store),
		mediacore.WithPublicBaseURL(testBaseURL),
		mediacore.WithRetryPolicy(fastRetry()),
	)
	require.NoError(t, err)
	return svc
}

func TestProcessMediaClassification(t *testing.T) {
	resources := repomemory.NewResourceStore()
	id := uuid.New()
	resources.Put(&mediacore.MediaResource{ID: id, Status: mediacore.MediaStatusPending})
	svc := newProcessingEnv(t, resources)

	urls := []string{
		testBaseURL + "/cars/1/images/front.jpg",
		testBaseURL + "/cars/1/images/rear.png",
		testBaseURL + "/cars/1/videos/tour.mp4",
		testBaseURL + "/cars/1/videos/second.mp4",    // second video loses
		testBaseURL + "/cars/1/images/shell.php",     // suspicious, dropped
		testBaseURL + "/cars/1/../escape/a.jpg",      // traversal, dropped
		testBaseURL + "/cars/1/docs/manual.pdf",      // unclassifiable, dropped
	}
	require.NoError(t, svc.ProcessMedia(context.Background(), id, urls))

	res, err := resources.GetMediaResource(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, mediacore.MediaStatusReady, res.Status)
	assert.Equal(t, []string{
		testBaseURL + "/cars/1/images/front.jpg",
		testBaseURL + "/cars/1/images/rear.png",
	}, res.ImageURLs)
	assert.Equal(t, testBaseURL+"/cars/1/videos/tour.mp4", res.VideoURL)
}

func TestProcessMediaAccumulatesImagesKeepsFirstVideo(t *testing.T) {
	resources := repomemory.NewResourceStore()
	id := uuid.New()
	resources.Put(&mediacore.MediaResource{
		ID:        id,
		Status:    mediacore.MediaStatusReady,
		ImageURLs: []string{testBaseURL + "/old.jpg"},
		VideoURL:  testBaseURL + "/old.mp4",
	})
	svc := newProcessingEnv(t, resources)

	err := svc.ProcessMedia(context.Background(), id, []string{
		testBaseURL + "/new.jpg",
		testBaseURL + "/old.jpg", // duplicate, not re-added
		testBaseURL + "/new.mp4", // resource already has a video
	})
	require.NoError(t, err)

	res, err := resources.GetMediaResource(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{testBaseURL + "/old.jpg", testBaseURL + "/new.jpg"}, res.ImageURLs)
	assert.Equal(t, testBaseURL+"/old.mp4", res.VideoURL)
}

func TestProcessMediaRetriesOnConflict(t *testing.T) {
	resources := &conflictingStore{ResourceStore: repomemory.NewResourceStore(), remaining: 2}
	id := uuid.New()
	resources.Put(&mediacore.MediaResource{ID: id})
	svc := newProcessingEnv(t, resources)

	require.NoError(t, svc.ProcessMedia(context.Background(), id, []string{testBaseURL + "/a.jpg"}))

	res, err := resources.GetMediaResource(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, mediacore.MediaStatusReady, res.Status)
	assert.Greater(t, resources.updates, 2)
}

func TestProcessMediaNoUsableMediaFails(t *testing.T) {
	resources := repomemory.NewResourceStore()
	id := uuid.New()
	resources.Put(&mediacore.MediaResource{ID: id})
	svc := newProcessingEnv(t, resources)

	err := svc.ProcessMedia(context.Background(), id, []string{testBaseURL + "/shell.php"})
	require.Error(t, err)

	res, gerr := resources.GetMediaResource(context.Background(), id)
	require.NoError(t, gerr)
	assert.Equal(t, mediacore.MediaStatusFailed, res.Status)
}

func TestProcessMediaExhaustedRetriesMarksFailed(t *testing.T) {
	// READY updates always conflict; the PROCESSING and FAILED writes land.
	resources := &conflictingStore{ResourceStore: repomemory.NewResourceStore(), remaining: 1 << 30, failReady: true}
	id := uuid.New()
	resources.Put(&mediacore.MediaResource{ID: id})
	svc := newProcessingEnv(t, resources)

	err := svc.ProcessMedia(context.Background(), id, []string{testBaseURL + "/a.jpg"})
	require.ErrorIs(t, err, mediacore.ErrConflict)

	res, gerr := resources.GetMediaResource(context.Background(), id)
	require.NoError(t, gerr)
	assert.Equal(t, mediacore.MediaStatusFailed, res.Status)
}

func TestProcessMediaUnknownResource(t *testing.T) {
	svc := newProcessingEnv(t, repomemory.NewResourceStore())
	err := svc.ProcessMedia(context.Background(), uuid.New(), []string{testBaseURL + "/a.jpg"})
	assert.ErrorIs(t, err, mediacore.ErrResourceNotFound)
}
