package repository

import (
	"context"

	"vidsum-ai-api/internal/domain/entity"
)

// JobRepository 处理任务仓储接口
type JobRepository interface {
	// Create 创建任务
	Create(ctx context.Context, job *entity.ProcessingJob) error

	// GetByID 根据 ID 获取任务，不存在时返回 ErrJobNotFound
	GetByID(ctx context.Context, id string) (*entity.ProcessingJob, error)

	// Update 更新任务
	Update(ctx context.Context, job *entity.ProcessingJob) error

	// UpdateProgress 更新任务进度（0-100）
	UpdateProgress(ctx context.Context, id string, progress int) error
}
