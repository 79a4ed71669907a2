// Package knowledge 提供视频产物的知识库：持久化、倒排索引与关键词检索
package knowledge

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/domain/repository"
	apperrors "vidsum-ai-api/pkg/errors"
	"vidsum-ai-api/pkg/logger"
	"vidsum-ai-api/pkg/metrics"
	"vidsum-ai-api/pkg/textutil"
	"vidsum-ai-api/pkg/tracer"
)

// 匹配方式
const (
	MatchExact     = "exact"
	MatchSubstring = "substring"
)

// SearchResult 关键词检索结果
type SearchResult struct {
	Topic     string   `json:"topic"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	VideoID   string   `json:"video_id"`
	Match     string   `json:"match"`
}

// Store 知识库
type Store struct {
	repo     repository.ArtifactRepository
	locker   repository.KeyLocker
	cache    repository.SearchCache
	cacheTTL time.Duration
	index    *Index
	group    singleflight.Group
	// version 每次索引变更后递增，避免把变更前的检索结果写回缓存
	version atomic.Int64
	// syncMu 串行化索引与仓储的对齐
	syncMu sync.Mutex
}

// NewStore 创建知识库；cache 可以为 nil
func NewStore(repo repository.ArtifactRepository, locker repository.KeyLocker, cache repository.SearchCache, cacheTTL time.Duration) *Store {
	return &Store{
		repo:     repo,
		locker:   locker,
		cache:    cache,
		cacheTTL: cacheTTL,
		index:    NewIndex(),
	}
}

// Put 写入产物。同一 video_id 同时只有一个写入者；
// 已存在的产物不可变，内容寻址的产物（同 id 即同内容）原地替换
func (s *Store) Put(ctx context.Context, artifact *entity.VideoArtifact) (err error) {
	if artifact == nil || strings.TrimSpace(artifact.VideoID) == "" {
		return apperrors.ErrInvalidParam.WithDetail("artifact requires a video_id")
	}

	ctx, span := tracer.StartWithAttrs(ctx, "knowledge.put", attribute.String("video_id", artifact.VideoID))
	defer func() { tracer.End(span, err) }()

	unlock, err := s.locker.Lock(ctx, artifact.VideoID)
	if err != nil {
		if ctx.Err() != nil {
			return apperrors.ErrJobCancelled.WithError(err)
		}
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to lock artifact")
	}
	defer unlock()

	exists, err := s.repo.Exists(ctx, artifact.VideoID)
	if err != nil {
		return storageErr(err, "failed to check artifact")
	}
	if exists && !artifact.ContentAddressed {
		return apperrors.ErrArtifactExists.WithDetail(artifact.VideoID)
	}

	seq, err := s.repo.Save(ctx, artifact)
	if err != nil {
		return storageErr(err, "failed to save artifact")
	}
	s.index.Upsert(artifact, seq)
	metrics.KnowledgeArtifacts.Set(float64(s.index.Len()))
	s.invalidate(ctx)
	logger.Info(ctx, "artifact stored", "video_id", artifact.VideoID, "replaced", exists, "seq", seq)
	return nil
}

// Get 获取产物
func (s *Store) Get(ctx context.Context, videoID string) (*entity.VideoArtifact, error) {
	rec, err := s.repo.Get(ctx, videoID)
	if err != nil {
		return nil, storageErr(err, "failed to load artifact")
	}
	return rec.Artifact, nil
}

// List 分页列出产物
func (s *Store) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.VideoArtifact], error) {
	page, err := s.repo.List(ctx, pagination)
	if err != nil {
		return nil, storageErr(err, "failed to list artifacts")
	}
	return page, nil
}

// Delete 删除产物并移出索引
func (s *Store) Delete(ctx context.Context, videoID string) error {
	unlock, err := s.locker.Lock(ctx, videoID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to lock artifact")
	}
	defer unlock()

	if err := s.repo.Delete(ctx, videoID); err != nil {
		return storageErr(err, "failed to delete artifact")
	}
	s.index.Remove(videoID)
	metrics.KnowledgeArtifacts.Set(float64(s.index.Len()))
	s.invalidate(ctx)
	return nil
}

// Rebuild 从仓储全量重建倒排索引
func (s *Store) Rebuild(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	return s.rebuildLocked(ctx)
}

func (s *Store) rebuildLocked(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "knowledge.rebuild")
	defer func() { tracer.End(span, err) }()

	fresh := NewIndex()
	err = s.repo.Scan(ctx, 0, func(rec *repository.ArtifactRecord) error {
		fresh.Upsert(rec.Artifact, rec.Seq)
		return nil
	})
	if err != nil {
		return storageErr(err, "failed to rebuild index")
	}

	s.index.swap(fresh)
	metrics.KnowledgeArtifacts.Set(float64(s.index.Len()))
	s.invalidate(ctx)
	logger.Info(ctx, "knowledge index rebuilt", "artifacts", s.index.Len())
	return nil
}

// Sync 让索引追上其他进程（如 job-worker）写入仓储的产物：
// 水位前进时按序号增量补齐；补齐后记录数仍不一致（其他进程删除或序号乱序提交）时全量重建
func (s *Store) Sync(ctx context.Context) error {
	wm, err := s.repo.Watermark(ctx)
	if err != nil {
		return storageErr(err, "failed to read watermark")
	}

	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if after := s.index.MaxSeq(); wm.MaxSeq > after {
		n := 0
		err := s.repo.Scan(ctx, after, func(rec *repository.ArtifactRecord) error {
			s.index.Upsert(rec.Artifact, rec.Seq)
			n++
			return nil
		})
		if err != nil {
			return storageErr(err, "failed to sync index")
		}
		metrics.KnowledgeArtifacts.Set(float64(s.index.Len()))
		logger.Debug(ctx, "knowledge index caught up", "after_seq", after, "artifacts", n)
	}
	if int64(s.index.Len()) != wm.Count {
		return s.rebuildLocked(ctx)
	}
	return nil
}

// FindByKeyword 关键词检索：先精确词元匹配，再与主题做双向子串匹配，
// 均无结果时返回携带原始查询的 ErrNotFound
func (s *Store) FindByKeyword(ctx context.Context, keyword string) (res *SearchResult, err error) {
	query := textutil.Normalize(keyword)
	if query == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("keyword is required")
	}

	ctx, span := tracer.StartWithAttrs(ctx, "knowledge.find", attribute.String("query", query))
	defer func() { tracer.End(span, err) }()

	if s.cache != nil {
		var cached SearchResult
		hit, cerr := s.cache.Get(ctx, query, &cached)
		if cerr != nil {
			logger.Warn(ctx, "search cache read failed", "error", cerr.Error())
		} else if hit {
			metrics.KnowledgeSearchTotal.WithLabelValues(cached.Match).Inc()
			return &cached, nil
		}
	}

	version := s.version.Load()
	v, err, _ := s.group.Do(query, func() (any, error) {
		if serr := s.Sync(ctx); serr != nil {
			logger.Warn(ctx, "knowledge index sync failed, searching local index", "error", serr.Error())
		}
		return s.search(query)
	})
	if err != nil {
		metrics.KnowledgeSearchTotal.WithLabelValues("none").Inc()
		return nil, apperrors.ErrNotFound.WithDetail(keyword)
	}
	found := v.(*SearchResult)
	metrics.KnowledgeSearchTotal.WithLabelValues(found.Match).Inc()

	if s.cache != nil && s.version.Load() == version {
		if cerr := s.cache.Set(ctx, query, found, s.cacheTTL); cerr != nil {
			logger.Warn(ctx, "search cache write failed", "error", cerr.Error())
		}
	}
	out := *found
	out.KeyPoints = append([]string(nil), found.KeyPoints...)
	return &out, nil
}

func (s *Store) search(query string) (*SearchResult, error) {
	tokens := textutil.ContentTokens(query)
	if len(tokens) == 0 {
		tokens = textutil.Tokenize(query)
	}
	if hits := s.index.Exact(tokens); len(hits) > 0 {
		return toResult(hits[0], MatchExact), nil
	}
	if hits := s.index.Substring(query); len(hits) > 0 {
		return toResult(hits[0], MatchSubstring), nil
	}
	return nil, apperrors.ErrNotFound
}

func (s *Store) invalidate(ctx context.Context) {
	s.version.Add(1)
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		logger.Warn(ctx, "search cache invalidation failed", "error", err.Error())
	}
}

func toResult(a *entity.VideoArtifact, match string) *SearchResult {
	return &SearchResult{
		Topic:     a.OverallTopic,
		Summary:   a.OverallSummary,
		KeyPoints: a.KeyPoints(),
		VideoID:   a.VideoID,
		Match:     match,
	}
}

// storageErr 保留已分类的应用错误，其余包装为存储错误
func storageErr(err error, msg string) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Wrap(err, apperrors.CodeStorageError, msg)
}
