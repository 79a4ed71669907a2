package memory

import (
	"context"
	"sync"
	"time"

	"vidsum-ai-api/internal/domain/entity"
	apperrors "vidsum-ai-api/pkg/errors"
)

// JobRepository 进程内任务仓储
type JobRepository struct {
	mu   sync.RWMutex
	jobs map[string]entity.ProcessingJob
}

// NewJobRepository 创建进程内任务仓储
func NewJobRepository() *JobRepository {
	return &JobRepository{jobs: make(map[string]entity.ProcessingJob)}
}

// Create 创建任务
func (r *JobRepository) Create(ctx context.Context, job *entity.ProcessingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return apperrors.ErrConflict.WithDetail("job " + job.ID + " already exists")
	}
	r.jobs[job.ID] = *job
	return nil
}

// GetByID 获取任务（返回副本）
func (r *JobRepository) GetByID(ctx context.Context, id string) (*entity.ProcessingJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, apperrors.ErrJobNotFound.WithDetail(id)
	}
	return &job, nil
}

// Update 更新任务
func (r *JobRepository) Update(ctx context.Context, job *entity.ProcessingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return apperrors.ErrJobNotFound.WithDetail(job.ID)
	}
	r.jobs[job.ID] = *job
	return nil
}

// UpdateProgress 更新任务进度
func (r *JobRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return apperrors.ErrJobNotFound.WithDetail(id)
	}
	job.UpdateProgress(progress)
	job.UpdatedAt = time.Now()
	r.jobs[id] = job
	return nil
}
