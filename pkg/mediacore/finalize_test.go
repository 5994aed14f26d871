package mediacore_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carhub/mediacore/pkg/mediacore"
)

// seedTempFile registers a temp object plus its record, as a completed
// direct upload would.
func seedTempFile(t *testing.T, env *testEnv, uploader uuid.UUID, key, name string, data []byte) *mediacore.TemporaryFile {
	t.Helper()
	meta := env.store.Put(key, data, "image/jpeg")
	temp := &mediacore.TemporaryFile{
		ID:               uuid.New(),
		ObjectKey:        key,
		FileName:         name,
		OriginalFileName: name,
		ContentType:      "image/jpeg",
		Size:             int64(len(data)),
		FileURL:          testBaseURL + "/" + key,
		StoreVersionID:   meta.VersionID,
		UploadedBy:       uploader,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, env.repo.CreateTemporaryFile(context.Background(), temp))
	return temp
}

func TestFinalizePromotesTempFile(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.New()
	listing := uuid.New()
	env.listings[listing] = owner

	data := makeJPEG(t, 4, 4)
	temp := seedTempFile(t, env, owner, "temp/cars/"+listing.String()+"/images/front.jpg", "front.jpg", data)

	result, err := env.svc.Finalize(context.Background(), mediacore.FinalizeRequest{
		Principal: user(owner),
		Items: []mediacore.FinalizeItem{
			{TempFileID: temp.ID, TargetFolder: "cars/" + listing.String()},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Promoted, 1)
	assert.Empty(t, result.Failed)

	promoted := result.Promoted[0]
	assert.True(t, strings.HasPrefix(promoted.ObjectKey, "cars/"+listing.String()+"/images/"), promoted.ObjectKey)
	assert.Equal(t, mediacore.OwnerTypeCarImage, promoted.OwnerType)
	assert.Equal(t, listing, promoted.OwnerID)
	assert.Equal(t, temp.Size, promoted.Size)

	copied, ok := env.store.Get(promoted.ObjectKey)
	require.True(t, ok)
	assert.Equal(t, data, copied)

	// Source object and temp record are gone.
	_, ok = env.store.Get(temp.ObjectKey)
	assert.False(t, ok)
	assert.Equal(t, 0, env.repo.TempFileCount())
}

func TestFinalizeRoutesVideosSubfolder(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.New()
	listing := uuid.New()
	env.listings[listing] = owner

	temp := seedTempFile(t, env, owner, "temp/cars/"+listing.String()+"/videos/tour.mp4", "tour.mp4", makeMP4())

	result, err := env.svc.Finalize(context.Background(), mediacore.FinalizeRequest{
		Principal: user(owner),
		Items:     []mediacore.FinalizeItem{{TempFileID: temp.ID, TargetFolder: "cars/" + listing.String()}},
	})
	require.NoError(t, err)
	require.Len(t, result.Promoted, 1)
	assert.True(t, strings.HasPrefix(result.Promoted[0].ObjectKey, "cars/"+listing.String()+"/videos/"))
}

func TestFinalizeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.New()
	listing := uuid.New()
	env.listings[listing] = owner

	temp := seedTempFile(t, env, owner, "temp/cars/"+listing.String()+"/images/a.jpg", "a.jpg", makeJPEG(t, 2, 2))
	req := mediacore.FinalizeRequest{
		Principal: user(owner),
		Items:     []mediacore.FinalizeItem{{TempFileID: temp.ID, TargetFolder: "cars/" + listing.String()}},
	}

	first, err := env.svc.Finalize(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first.Promoted, 1)

	// Retrying the same batch is a no-op, not an error and not a failure.
	second, err := env.svc.Finalize(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, second.Promoted)
	assert.Empty(t, second.Failed)
	assert.Equal(t, 1, env.repo.FileCount())
}

func TestFinalizeRejectsForeignUploader(t *testing.T) {
	env := newTestEnv(t)
	uploader := uuid.New()
	listing := uuid.New()
	thief := uuid.New()
	env.listings[listing] = thief // thief owns the listing but not the temp file

	temp := seedTempFile(t, env, uploader, "temp/cars/"+listing.String()+"/images/a.jpg", "a.jpg", makeJPEG(t, 2, 2))

	result, err := env.svc.Finalize(context.Background(), mediacore.FinalizeRequest{
		Principal: user(thief),
		Items:     []mediacore.FinalizeItem{{TempFileID: temp.ID, TargetFolder: "cars/" + listing.String()}},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Promoted)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "access_denied", result.Failed[0].Reason)

	// The temp file stays for its rightful owner.
	assert.Equal(t, 1, env.repo.TempFileCount())
}

func TestFinalizeBatchIsolation(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.New()
	listing := uuid.New()
	env.listings[listing] = owner

	good := seedTempFile(t, env, owner, "temp/cars/"+listing.String()+"/images/a.jpg", "a.jpg", makeJPEG(t, 2, 2))

	result, err := env.svc.Finalize(context.Background(), mediacore.FinalizeRequest{
		Principal: user(owner),
		Items: []mediacore.FinalizeItem{
			{TempFileID: good.ID, TargetFolder: "cars/" + listing.String()},
			{TempFileID: uuid.New(), TargetFolder: "cars/" + listing.String()}, // missing: skipped
			{TempFileID: good.ID, TargetFolder: "../evil"},                     // bad folder, already consumed anyway
		},
	})
	require.NoError(t, err)
	assert.Len(t, result.Promoted, 1)
	assert.Empty(t, result.Failed)
}

func TestFinalizeEnforcesSizeCeiling(t *testing.T) {
	policy := mediacore.DefaultPolicy()
	policy.FinalizeMaxBytes = 16
	env := newTestEnv(t, mediacore.WithPolicy(policy))
	owner := uuid.New()
	listing := uuid.New()
	env.listings[listing] = owner

	temp := seedTempFile(t, env, owner, "temp/cars/"+listing.String()+"/images/a.jpg", "a.jpg", makeJPEG(t, 8, 8))

	result, err := env.svc.Finalize(context.Background(), mediacore.FinalizeRequest{
		Principal: user(owner),
		Items:     []mediacore.FinalizeItem{{TempFileID: temp.ID, TargetFolder: "cars/" + listing.String()}},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Promoted)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, string(mediacore.RejectTooLarge), result.Failed[0].Reason)
}
