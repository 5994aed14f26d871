package mediacore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carhub/mediacore/pkg/mediacore"
)

func TestSweepRemovesOnlyExpiredTempFiles(t *testing.T) {
	env := newTestEnv(t)
	uid := uuid.New()
	now := time.Now().UTC()

	stale := seedTempFile(t, env, uid, "temp/users/"+uid.String()+"/stale.jpg", "stale.jpg", makeJPEG(t, 2, 2))
	stale.CreatedAt = now.Add(-25 * time.Hour)
	require.NoError(t, env.repo.CreateTemporaryFile(context.Background(), stale))

	fresh := seedTempFile(t, env, uid, "temp/users/"+uid.String()+"/fresh.jpg", "fresh.jpg", makeJPEG(t, 2, 2))

	removed, err := env.svc.SweepExpiredTempFiles(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	// The stale record and object are gone.
	_, err = env.repo.GetTemporaryFile(context.Background(), stale.ID)
	assert.ErrorIs(t, err, mediacore.ErrTempFileNotFound)
	_, ok := env.store.Get(stale.ObjectKey)
	assert.False(t, ok)

	// The fresh one survives.
	_, err = env.repo.GetTemporaryFile(context.Background(), fresh.ID)
	assert.NoError(t, err)
	_, ok = env.store.Get(fresh.ObjectKey)
	assert.True(t, ok)
}

func TestSweepSurvivesMissingObjects(t *testing.T) {
	env := newTestEnv(t)
	uid := uuid.New()
	now := time.Now().UTC()

	// Record without a backing object, as after a partial finalize.
	orphan := &mediacore.TemporaryFile{
		ID:         uuid.New(),
		ObjectKey:  "temp/users/" + uid.String() + "/gone.jpg",
		FileName:   "gone.jpg",
		UploadedBy: uid,
		CreatedAt:  now.Add(-48 * time.Hour),
	}
	require.NoError(t, env.repo.CreateTemporaryFile(context.Background(), orphan))

	removed, err := env.svc.SweepExpiredTempFiles(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, env.repo.TempFileCount())
}

func TestSweepNothingExpired(t *testing.T) {
	env := newTestEnv(t)
	uid := uuid.New()
	seedTempFile(t, env, uid, "temp/users/"+uid.String()+"/a.jpg", "a.jpg", makeJPEG(t, 2, 2))

	removed, err := env.svc.SweepExpiredTempFiles(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 1, env.repo.TempFileCount())
}
