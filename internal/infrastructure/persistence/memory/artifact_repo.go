// Package memory 提供进程内的仓储实现，用于单实例部署与测试
package memory

import (
	"context"
	"sort"
	"sync"

	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/domain/repository"
	apperrors "vidsum-ai-api/pkg/errors"
)

// ArtifactRepository 进程内产物仓储
type ArtifactRepository struct {
	mu      sync.RWMutex
	records map[string]*repository.ArtifactRecord
	seq     int64
}

// NewArtifactRepository 创建进程内产物仓储
func NewArtifactRepository() *ArtifactRepository {
	return &ArtifactRepository{records: make(map[string]*repository.ArtifactRecord)}
}

// Get 获取产物
func (r *ArtifactRepository) Get(ctx context.Context, videoID string) (*repository.ArtifactRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[videoID]
	if !ok {
		return nil, apperrors.ErrArtifactNotFound.WithDetail(videoID)
	}
	return rec, nil
}

// Exists 判断产物是否存在
func (r *ArtifactRepository) Exists(ctx context.Context, videoID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[videoID]
	return ok, nil
}

// Save 写入产物
func (r *ArtifactRepository) Save(ctx context.Context, artifact *entity.VideoArtifact) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.records[artifact.VideoID] = &repository.ArtifactRecord{Artifact: artifact, Seq: r.seq}
	return r.seq, nil
}

// Delete 删除产物
func (r *ArtifactRepository) Delete(ctx context.Context, videoID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[videoID]; !ok {
		return apperrors.ErrArtifactNotFound.WithDetail(videoID)
	}
	delete(r.records, videoID)
	return nil
}

// List 按创建时间倒序分页列出产物
func (r *ArtifactRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.VideoArtifact], error) {
	recs := r.sorted(false)

	total := int64(len(recs))
	start := min(pagination.Offset(), len(recs))
	end := min(start+pagination.Limit(), len(recs))

	items := make([]*entity.VideoArtifact, 0, end-start)
	for _, rec := range recs[start:end] {
		items = append(items, rec.Artifact)
	}
	return repository.NewPagedResult(items, total, pagination), nil
}

// Scan 按写入顺序遍历序号大于 afterSeq 的记录
func (r *ArtifactRepository) Scan(ctx context.Context, afterSeq int64, fn func(rec *repository.ArtifactRecord) error) error {
	for _, rec := range r.sorted(true) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rec.Seq <= afterSeq {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// Watermark 当前最大写入序号与记录数
func (r *ArtifactRepository) Watermark(_ context.Context) (repository.Watermark, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wm := repository.Watermark{Count: int64(len(r.records))}
	for _, rec := range r.records {
		wm.MaxSeq = max(wm.MaxSeq, rec.Seq)
	}
	return wm, nil
}

// sorted 返回记录快照；bySeq 为 true 时按写入序号升序，否则按创建时间倒序
func (r *ArtifactRepository) sorted(bySeq bool) []*repository.ArtifactRecord {
	r.mu.RLock()
	recs := make([]*repository.ArtifactRecord, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if bySeq {
			return recs[i].Seq < recs[j].Seq
		}
		a, b := recs[i].Artifact.CreatedAt, recs[j].Artifact.CreatedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return recs[i].Seq > recs[j].Seq
	})
	return recs
}
