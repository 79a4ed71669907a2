package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/domain/repository"
	apperrors "vidsum-ai-api/pkg/errors"
)

const scanBatch = 100

// artifactRecord Redis 中保存的产物记录
type artifactRecord struct {
	Seq      int64                 `json:"seq"`
	Artifact *entity.VideoArtifact `json:"artifact"`
}

// ArtifactRepository Redis 产物仓储：记录以 JSON 存储，写入序号维护在有序集合中
type ArtifactRepository struct {
	client *Client
	keys   Keys
}

// NewArtifactRepository 创建 Redis 产物仓储
func NewArtifactRepository(client *Client, keys Keys) *ArtifactRepository {
	return &ArtifactRepository{client: client, keys: keys}
}

// Get 获取产物
func (r *ArtifactRepository) Get(ctx context.Context, videoID string) (*repository.ArtifactRecord, error) {
	ctx, span := tracer.Start(ctx, "redis.ArtifactRepository.Get",
		trace.WithAttributes(attribute.String("video_id", videoID)))
	defer span.End()

	raw, err := r.client.rdb.Get(ctx, r.keys.Artifact(videoID)).Bytes()
	if err != nil {
		if IsNil(err) {
			return nil, apperrors.ErrArtifactNotFound.WithDetail(videoID)
		}
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to get artifact")
	}
	return decodeRecord(raw)
}

// Exists 判断产物是否存在
func (r *ArtifactRepository) Exists(ctx context.Context, videoID string) (bool, error) {
	n, err := r.client.rdb.Exists(ctx, r.keys.Artifact(videoID)).Result()
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to check artifact")
	}
	return n > 0, nil
}

// Save 写入产物并分配写入序号
func (r *ArtifactRepository) Save(ctx context.Context, artifact *entity.VideoArtifact) (int64, error) {
	ctx, span := tracer.Start(ctx, "redis.ArtifactRepository.Save",
		trace.WithAttributes(attribute.String("video_id", artifact.VideoID)))
	defer span.End()

	seq, err := r.client.rdb.Incr(ctx, r.keys.ArtifactSeq()).Result()
	if err != nil {
		span.RecordError(err)
		return 0, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to allocate artifact seq")
	}
	b, err := json.Marshal(artifactRecord{Seq: seq, Artifact: artifact})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal artifact: %w", err)
	}

	_, err = r.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.keys.Artifact(artifact.VideoID), b, 0)
		pipe.ZAdd(ctx, r.keys.ArtifactIndex(), redis.Z{Score: float64(seq), Member: artifact.VideoID})
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to save artifact")
	}
	return seq, nil
}

// Delete 删除产物
func (r *ArtifactRepository) Delete(ctx context.Context, videoID string) error {
	var delCmd *redis.IntCmd
	_, err := r.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		delCmd = pipe.Del(ctx, r.keys.Artifact(videoID))
		pipe.ZRem(ctx, r.keys.ArtifactIndex(), videoID)
		return nil
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeCacheError, "failed to delete artifact")
	}
	if delCmd.Val() == 0 {
		return apperrors.ErrArtifactNotFound.WithDetail(videoID)
	}
	return nil
}

// List 按创建时间倒序分页；需要全部记录参与排序
func (r *ArtifactRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.VideoArtifact], error) {
	var recs []*repository.ArtifactRecord
	if err := r.Scan(ctx, 0, func(rec *repository.ArtifactRecord) error {
		recs = append(recs, rec)
		return nil
	}); err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i].Artifact.CreatedAt, recs[j].Artifact.CreatedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return recs[i].Seq > recs[j].Seq
	})

	start := min(pagination.Offset(), len(recs))
	end := min(start+pagination.Limit(), len(recs))
	items := make([]*entity.VideoArtifact, 0, end-start)
	for _, rec := range recs[start:end] {
		items = append(items, rec.Artifact)
	}
	return repository.NewPagedResult(items, int64(len(recs)), pagination), nil
}

// Scan 按写入序号分批遍历序号大于 afterSeq 的记录
func (r *ArtifactRepository) Scan(ctx context.Context, afterSeq int64, fn func(rec *repository.ArtifactRecord) error) error {
	ctx, span := tracer.Start(ctx, "redis.ArtifactRepository.Scan")
	defer span.End()

	lastSeq := afterSeq
	for {
		zs, err := r.client.rdb.ZRangeByScoreWithScores(ctx, r.keys.ArtifactIndex(), &redis.ZRangeBy{
			Min:   "(" + strconv.FormatInt(lastSeq, 10),
			Max:   "+inf",
			Count: scanBatch,
		}).Result()
		if err != nil {
			span.RecordError(err)
			return apperrors.Wrap(err, apperrors.CodeCacheError, "failed to scan artifacts")
		}
		if len(zs) == 0 {
			return nil
		}

		keys := make([]string, len(zs))
		for i, z := range zs {
			keys[i] = r.keys.Artifact(z.Member.(string))
		}
		vals, err := r.client.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			span.RecordError(err)
			return apperrors.Wrap(err, apperrors.CodeCacheError, "failed to load artifacts")
		}
		for _, v := range vals {
			s, ok := v.(string)
			if !ok {
				// 索引与记录之间的短暂不一致，跳过
				continue
			}
			rec, err := decodeRecord([]byte(s))
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		lastSeq = int64(zs[len(zs)-1].Score)
		if len(zs) < scanBatch {
			return nil
		}
	}
}

// Watermark 当前最大写入序号与记录数
func (r *ArtifactRepository) Watermark(ctx context.Context) (repository.Watermark, error) {
	pipe := r.client.rdb.Pipeline()
	cardCmd := pipe.ZCard(ctx, r.keys.ArtifactIndex())
	topCmd := pipe.ZRevRangeWithScores(ctx, r.keys.ArtifactIndex(), 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return repository.Watermark{}, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to read artifact watermark")
	}
	wm := repository.Watermark{Count: cardCmd.Val()}
	if top := topCmd.Val(); len(top) > 0 {
		wm.MaxSeq = int64(top[0].Score)
	}
	return wm, nil
}

func decodeRecord(raw []byte) (*repository.ArtifactRecord, error) {
	var rec artifactRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifact: %w", err)
	}
	if rec.Artifact == nil {
		return nil, fmt.Errorf("artifact record without payload")
	}
	return &repository.ArtifactRecord{Artifact: rec.Artifact, Seq: rec.Seq}, nil
}
