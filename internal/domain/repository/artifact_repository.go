package repository

import (
	"context"
	"time"

	"vidsum-ai-api/internal/domain/entity"
)

// ArtifactRecord 仓储中的产物记录，Seq 为单调递增的写入序号
type ArtifactRecord struct {
	Artifact *entity.VideoArtifact
	Seq      int64
}

// Watermark 仓储的写入水位：最大写入序号与记录数
type Watermark struct {
	MaxSeq int64
	Count  int64
}

// ArtifactRepository 视频产物仓储接口
// 实现只负责持久化，不可变性由知识库在持锁状态下保证
type ArtifactRepository interface {
	// Get 根据 video_id 获取产物，不存在时返回 ErrArtifactNotFound
	Get(ctx context.Context, videoID string) (*ArtifactRecord, error)

	// Exists 判断产物是否存在
	Exists(ctx context.Context, videoID string) (bool, error)

	// Save 写入产物（同 id 覆盖），返回分配的写入序号
	Save(ctx context.Context, artifact *entity.VideoArtifact) (int64, error)

	// Delete 删除产物
	Delete(ctx context.Context, videoID string) error

	// List 按创建时间倒序分页列出产物
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.VideoArtifact], error)

	// Scan 按写入顺序遍历序号大于 afterSeq 的产物；afterSeq 为 0 时遍历全部
	Scan(ctx context.Context, afterSeq int64, fn func(rec *ArtifactRecord) error) error

	// Watermark 返回当前写入水位，其他进程的写入会推高它
	Watermark(ctx context.Context) (Watermark, error)
}

// KeyLocker 按键互斥锁，保证同一 video_id 同时最多一个写入者
type KeyLocker interface {
	// Lock 获取键锁，返回释放函数；ctx 取消时放弃等待
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// SearchCache 关键词查询结果缓存（可选）
type SearchCache interface {
	Get(ctx context.Context, query string, dest any) (bool, error)
	Set(ctx context.Context, query string, value any, ttl time.Duration) error
	// Invalidate 清空全部缓存的查询结果
	Invalidate(ctx context.Context) error
}
