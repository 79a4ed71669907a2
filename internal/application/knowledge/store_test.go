package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/infrastructure/persistence/memory"
	apperrors "vidsum-ai-api/pkg/errors"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func artifact(id, topic string, createdAt time.Time, segTopics ...string) *entity.VideoArtifact {
	a := &entity.VideoArtifact{
		VideoID:        id,
		OverallTopic:   topic,
		OverallSummary: "summary of " + topic,
		CreatedAt:      createdAt,
	}
	for i, st := range segTopics {
		a.Segments = append(a.Segments, entity.SegmentResult{
			Segment:   entity.Segment{Index: i, Topic: st},
			KeyPoints: []string{st + " point"},
		})
	}
	return a
}

func newTestStore(cache *mapCache) *Store {
	if cache == nil {
		return NewStore(memory.NewArtifactRepository(), memory.NewKeyedMutex(), nil, time.Minute)
	}
	return NewStore(memory.NewArtifactRepository(), memory.NewKeyedMutex(), cache, time.Minute)
}

// mapCache 以 JSON 保存查询结果的测试缓存
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	cleared int
}

func newMapCache() *mapCache { return &mapCache{entries: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, query string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[query]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *mapCache) Set(_ context.Context, query string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[query] = raw
	return nil
}

func (c *mapCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	c.cleared++
	return nil
}

func TestFindByKeyword_ExactTokenMatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(nil)
	require.NoError(t, s.Put(ctx, artifact("v1", "classical mechanics", base, "newton laws", "orbital gravity")))
	require.NoError(t, s.Put(ctx, artifact("v2", "cooking basics", base, "knife skills")))

	res, err := s.FindByKeyword(ctx, "  GRAVITY ")
	require.NoError(t, err)
	assert.Equal(t, "v1", res.VideoID)
	assert.Equal(t, MatchExact, res.Match)
	assert.Equal(t, "classical mechanics", res.Topic)
	assert.Equal(t, "summary of classical mechanics", res.Summary)
	assert.Equal(t, []string{"newton laws point", "orbital gravity point"}, res.KeyPoints)
}

func TestFindByKeyword_AllTokensRequired(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(nil)
	require.NoError(t, s.Put(ctx, artifact("v1", "newton", base)))
	require.NoError(t, s.Put(ctx, artifact("v2", "newton gravity", base.Add(-time.Hour))))

	res, err := s.FindByKeyword(ctx, "the Newton gravity")
	require.NoError(t, err)
	assert.Equal(t, "v2", res.VideoID)
}

func TestFindByKeyword_SubstringFallback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(nil)
	require.NoError(t, s.Put(ctx, artifact("v1", "thermodynamics", base, "entropy")))

	res, err := s.FindByKeyword(ctx, "thermo")
	require.NoError(t, err)
	assert.Equal(t, "v1", res.VideoID)
	assert.Equal(t, MatchSubstring, res.Match)

	// 查询包含主题
	res, err = s.FindByKeyword(ctx, "intro to entropy!")
	require.NoError(t, err)
	assert.Equal(t, "v1", res.VideoID)
}

func TestFindByKeyword_NotFoundCarriesQuery(t *testing.T) {
	s := newTestStore(nil)
	require.NoError(t, s.Put(context.Background(), artifact("v1", "astronomy", base)))

	_, err := s.FindByKeyword(context.Background(), "Quantum")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, "Quantum", apperrors.AsAppError(err).Detail)

	_, err = s.FindByKeyword(context.Background(), "  ?! ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)
}

func TestFindByKeyword_MostRecentWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(nil)
	require.NoError(t, s.Put(ctx, artifact("old", "gravity", base)))
	require.NoError(t, s.Put(ctx, artifact("new", "gravity", base.Add(time.Minute))))
	require.NoError(t, s.Put(ctx, artifact("older", "gravity", base.Add(-time.Minute))))

	res, err := s.FindByKeyword(ctx, "gravity")
	require.NoError(t, err)
	assert.Equal(t, "new", res.VideoID)

	// 创建时间相同按写入顺序，后写入优先
	require.NoError(t, s.Put(ctx, artifact("tie-a", "optics", base)))
	require.NoError(t, s.Put(ctx, artifact("tie-b", "optics", base)))
	res, err = s.FindByKeyword(ctx, "optics")
	require.NoError(t, err)
	assert.Equal(t, "tie-b", res.VideoID)
}

func TestPut_ImmutableUnlessContentAddressed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(nil)
	require.NoError(t, s.Put(ctx, artifact("v1", "gravity", base)))

	err := s.Put(ctx, artifact("v1", "optics", base))
	assert.ErrorIs(t, err, apperrors.ErrArtifactExists)
	got, err := s.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "gravity", got.OverallTopic)

	replacement := artifact("v1", "optics", base)
	replacement.ContentAddressed = true
	require.NoError(t, s.Put(ctx, replacement))

	_, err = s.FindByKeyword(ctx, "gravity")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	res, err := s.FindByKeyword(ctx, "optics")
	require.NoError(t, err)
	assert.Equal(t, "v1", res.VideoID)
	assert.Equal(t, 1, s.index.Len())
}

func TestPut_RejectsMissingID(t *testing.T) {
	err := newTestStore(nil).Put(context.Background(), artifact(" ", "x", base))
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)
}

func TestStore_CacheInvalidatedOnPut(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	s := newTestStore(cache)
	require.NoError(t, s.Put(ctx, artifact("v1", "gravity", base)))

	res, err := s.FindByKeyword(ctx, "Gravity")
	require.NoError(t, err)
	assert.Equal(t, "v1", res.VideoID)
	assert.Contains(t, cache.entries, "gravity")

	require.NoError(t, s.Put(ctx, artifact("v2", "gravity", base.Add(time.Hour))))
	assert.Empty(t, cache.entries)

	res, err = s.FindByKeyword(ctx, "gravity")
	require.NoError(t, err)
	assert.Equal(t, "v2", res.VideoID)
}

func TestStore_RebuildFromRepository(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewArtifactRepository()
	first := NewStore(repo, memory.NewKeyedMutex(), nil, 0)
	require.NoError(t, first.Put(ctx, artifact("v1", "gravity", base)))
	require.NoError(t, first.Put(ctx, artifact("v2", "optics", base)))

	second := NewStore(repo, memory.NewKeyedMutex(), nil, 0)
	require.NoError(t, second.Rebuild(ctx))
	assert.Equal(t, 2, second.index.Len())
	assert.Equal(t, int64(2), second.index.MaxSeq())
}

// worker 与 api 两个进程共享同一仓储，api 的检索能看到 worker 的写入
func TestStore_SearchSeesWritesFromAnotherStore(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewArtifactRepository()
	cache := newMapCache()
	api := NewStore(repo, memory.NewKeyedMutex(), cache, time.Minute)
	worker := NewStore(repo, memory.NewKeyedMutex(), cache, time.Minute)
	require.NoError(t, api.Rebuild(ctx))

	require.NoError(t, worker.Put(ctx, artifact("v1", "quantum physics", base)))

	got, err := api.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.VideoID)

	res, err := api.FindByKeyword(ctx, "quantum physics")
	require.NoError(t, err)
	assert.Equal(t, "v1", res.VideoID)
	assert.Equal(t, MatchExact, res.Match)

	// 更新的写入覆盖已缓存的旧结果
	require.NoError(t, worker.Put(ctx, artifact("v2", "quantum physics", base.Add(time.Hour))))
	res, err = api.FindByKeyword(ctx, "quantum physics")
	require.NoError(t, err)
	assert.Equal(t, "v2", res.VideoID)

	// 另一进程删除后不再命中
	require.NoError(t, worker.Delete(ctx, "v2"))
	require.NoError(t, worker.Delete(ctx, "v1"))
	_, err = api.FindByKeyword(ctx, "quantum physics")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStore_SyncReplacesContentAddressedArtifact(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewArtifactRepository()
	api := NewStore(repo, memory.NewKeyedMutex(), nil, 0)
	worker := NewStore(repo, memory.NewKeyedMutex(), nil, 0)

	a := artifact("hash1", "optics", base)
	a.ContentAddressed = true
	require.NoError(t, worker.Put(ctx, a))
	require.NoError(t, api.Sync(ctx))

	b := artifact("hash1", "lenses", base)
	b.ContentAddressed = true
	require.NoError(t, worker.Put(ctx, b))
	require.NoError(t, api.Sync(ctx))

	res, err := api.FindByKeyword(ctx, "lenses")
	require.NoError(t, err)
	assert.Equal(t, "hash1", res.VideoID)
	_, err = api.FindByKeyword(ctx, "optics")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 1, api.index.Len())
}

func TestStore_DeleteRemovesFromIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(nil)
	require.NoError(t, s.Put(ctx, artifact("v1", "gravity", base)))
	require.NoError(t, s.Delete(ctx, "v1"))

	_, err := s.FindByKeyword(ctx, "gravity")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = s.Get(ctx, "v1")
	assert.ErrorIs(t, err, apperrors.ErrArtifactNotFound)
}

func TestStore_ConcurrentPutAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(newMapCache())

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			errs <- s.Put(ctx, artifact(fmt.Sprintf("v%d", i), "gravity", base.Add(time.Duration(i)*time.Second)))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.FindByKeyword(ctx, "gravity")
		}()
	}
	// 同一 id 并发写入，只能成功一次
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Put(ctx, artifact("dup", "optics", base))
		}()
	}
	wg.Wait()
	close(errs)

	var exists int
	for err := range errs {
		if err != nil {
			require.ErrorIs(t, err, apperrors.ErrArtifactExists)
			exists++
		}
	}
	assert.Equal(t, 3, exists)
	assert.Equal(t, 17, s.index.Len())

	res, err := s.FindByKeyword(ctx, "gravity")
	require.NoError(t, err)
	assert.Equal(t, "v15", res.VideoID)
}
