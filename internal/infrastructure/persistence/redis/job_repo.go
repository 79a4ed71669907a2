package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vidsum-ai-api/internal/domain/entity"
	apperrors "vidsum-ai-api/pkg/errors"
)

const jobTTL = 7 * 24 * time.Hour

// JobRepository Redis 任务仓储，任务记录保留 7 天
type JobRepository struct {
	client *Client
	keys   Keys
}

// NewJobRepository 创建 Redis 任务仓储
func NewJobRepository(client *Client, keys Keys) *JobRepository {
	return &JobRepository{client: client, keys: keys}
}

// Create 创建任务
func (r *JobRepository) Create(ctx context.Context, job *entity.ProcessingJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	ok, err := r.client.rdb.SetNX(ctx, r.keys.Job(job.ID), b, jobTTL).Result()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeCacheError, "failed to create job")
	}
	if !ok {
		return apperrors.ErrConflict.WithDetail("job " + job.ID + " already exists")
	}
	return nil
}

// GetByID 获取任务
func (r *JobRepository) GetByID(ctx context.Context, id string) (*entity.ProcessingJob, error) {
	raw, err := r.client.rdb.Get(ctx, r.keys.Job(id)).Bytes()
	if err != nil {
		if IsNil(err) {
			return nil, apperrors.ErrJobNotFound.WithDetail(id)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to get job")
	}
	var job entity.ProcessingJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Update 覆盖任务
func (r *JobRepository) Update(ctx context.Context, job *entity.ProcessingJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	ok, err := r.client.rdb.SetXX(ctx, r.keys.Job(job.ID), b, jobTTL).Result()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeCacheError, "failed to update job")
	}
	if !ok {
		return apperrors.ErrJobNotFound.WithDetail(job.ID)
	}
	return nil
}

// UpdateProgress 乐观锁更新进度
func (r *JobRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	key := r.keys.Job(id)
	return r.client.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if IsNil(err) {
				return apperrors.ErrJobNotFound.WithDetail(id)
			}
			return err
		}
		var job entity.ProcessingJob
		if err := json.Unmarshal(raw, &job); err != nil {
			return err
		}
		job.UpdateProgress(progress)
		job.UpdatedAt = time.Now()
		b, err := json.Marshal(&job)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, jobTTL)
			return nil
		})
		return err
	}, key)
}
