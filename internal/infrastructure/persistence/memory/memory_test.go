package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/domain/repository"
	apperrors "vidsum-ai-api/pkg/errors"
)

func TestArtifactRepository_ListAndScanOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewArtifactRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		_, err := repo.Save(ctx, &entity.VideoArtifact{VideoID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}
	// 与 c 同一时刻创建，写入更晚
	_, err := repo.Save(ctx, &entity.VideoArtifact{VideoID: "d", CreatedAt: base.Add(2 * time.Hour)})
	require.NoError(t, err)

	page, err := repo.List(ctx, repository.NewPagination(1, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	ids := make([]string, 0, len(page.Items))
	for _, a := range page.Items {
		ids = append(ids, a.VideoID)
	}
	assert.Equal(t, []string{"d", "c", "b"}, ids)

	var scanned []string
	require.NoError(t, repo.Scan(ctx, 0, func(rec *repository.ArtifactRecord) error {
		scanned = append(scanned, rec.Artifact.VideoID)
		return nil
	}))
	assert.Equal(t, []string{"a", "b", "c", "d"}, scanned)
}

func TestArtifactRepository_ScanAfterAndWatermark(t *testing.T) {
	ctx := context.Background()
	repo := NewArtifactRepository()

	wm, err := repo.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, repository.Watermark{}, wm)

	for _, id := range []string{"a", "b", "c"} {
		_, err := repo.Save(ctx, &entity.VideoArtifact{VideoID: id})
		require.NoError(t, err)
	}
	require.NoError(t, repo.Delete(ctx, "a"))

	wm, err = repo.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, repository.Watermark{MaxSeq: 3, Count: 2}, wm)

	var scanned []string
	require.NoError(t, repo.Scan(ctx, 2, func(rec *repository.ArtifactRecord) error {
		scanned = append(scanned, rec.Artifact.VideoID)
		return nil
	}))
	assert.Equal(t, []string{"c"}, scanned)
}

func TestArtifactRepository_GetMissing(t *testing.T) {
	_, err := NewArtifactRepository().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrArtifactNotFound)
}

func TestJobRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository()
	job := entity.NewProcessingJob("job-1", "vid-1", "talk.mp4")
	require.NoError(t, repo.Create(ctx, job))
	assert.ErrorIs(t, repo.Create(ctx, job), apperrors.ErrConflict)

	require.NoError(t, repo.UpdateProgress(ctx, "job-1", 150))
	got, err := repo.GetByID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)

	got.Start()
	got.Complete()
	require.NoError(t, repo.Update(ctx, got))
	got, err = repo.GetByID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, got.Status)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrJobNotFound)
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	var (
		inside atomic.Int32
		peak   atomic.Int32
		wg     sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := km.Lock(context.Background(), "video")
			require.NoError(t, err)
			n := inside.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
	assert.Zero(t, km.size())
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	unlockA, err := km.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := km.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_ContextCancelWhileWaiting(t *testing.T) {
	km := NewKeyedMutex()
	unlock, err := km.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = km.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Zero(t, km.size())
}
