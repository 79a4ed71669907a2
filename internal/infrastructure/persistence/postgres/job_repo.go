package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"vidsum-ai-api/internal/domain/entity"
	apperrors "vidsum-ai-api/pkg/errors"
)

// jobModel processing_jobs 表
type jobModel struct {
	ID           string     `gorm:"column:id;primaryKey;type:varchar(64)"`
	VideoID      string     `gorm:"column:video_id;type:varchar(64);index"`
	SourceName   string     `gorm:"column:source_name;type:text"`
	Status       string     `gorm:"column:status;type:varchar(16);index"`
	Progress     int        `gorm:"column:progress"`
	ErrorCode    string     `gorm:"column:error_code;type:varchar(16)"`
	ErrorMessage string     `gorm:"column:error_message;type:text"`
	RetryCount   int        `gorm:"column:retry_count"`
	DurationMs   int        `gorm:"column:duration_ms"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
	StartedAt    *time.Time `gorm:"column:started_at"`
	CompletedAt  *time.Time `gorm:"column:completed_at"`
}

func (jobModel) TableName() string { return "processing_jobs" }

func toJobModel(j *entity.ProcessingJob) *jobModel {
	return &jobModel{
		ID:           j.ID,
		VideoID:      j.VideoID,
		SourceName:   j.SourceName,
		Status:       string(j.Status),
		Progress:     j.Progress,
		ErrorCode:    j.ErrorCode,
		ErrorMessage: j.ErrorMessage,
		RetryCount:   j.RetryCount,
		DurationMs:   j.DurationMs,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}

func (m *jobModel) toEntity() *entity.ProcessingJob {
	return &entity.ProcessingJob{
		ID:           m.ID,
		VideoID:      m.VideoID,
		SourceName:   m.SourceName,
		Status:       entity.JobStatus(m.Status),
		Progress:     m.Progress,
		ErrorCode:    m.ErrorCode,
		ErrorMessage: m.ErrorMessage,
		RetryCount:   m.RetryCount,
		DurationMs:   m.DurationMs,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
	}
}

// JobRepository 任务仓储实现
type JobRepository struct {
	client *Client
}

// NewJobRepository 创建任务仓储
func NewJobRepository(client *Client) *JobRepository {
	return &JobRepository{client: client}
}

// Create 创建任务
func (r *JobRepository) Create(ctx context.Context, job *entity.ProcessingJob) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(toJobModel(job)).Error; err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
			return apperrors.ErrConflict.WithDetail("job " + job.ID + " already exists")
		}
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create job")
	}
	return nil
}

// GetByID 根据 ID 获取任务
func (r *JobRepository) GetByID(ctx context.Context, id string) (*entity.ProcessingJob, error) {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.GetByID")
	defer span.End()

	var m jobModel
	if err := getDB(ctx, r.client.db).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrJobNotFound.WithDetail(id)
		}
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to get job")
	}
	return m.toEntity(), nil
}

// Update 更新任务
func (r *JobRepository) Update(ctx context.Context, job *entity.ProcessingJob) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.Update")
	defer span.End()

	res := getDB(ctx, r.client.db).Model(&jobModel{}).Where("id = ?", job.ID).Select("*").Updates(toJobModel(job))
	if res.Error != nil {
		span.RecordError(res.Error)
		return apperrors.Wrap(res.Error, apperrors.CodeDatabaseError, "failed to update job")
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrJobNotFound.WithDetail(job.ID)
	}
	return nil
}

// UpdateProgress 更新任务进度
func (r *JobRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	ctx, span := tracer.Start(ctx, "postgres.JobRepository.UpdateProgress")
	defer span.End()

	progress = min(max(progress, 0), 100)
	res := getDB(ctx, r.client.db).Model(&jobModel{}).Where("id = ?", id).Updates(map[string]any{
		"progress":   progress,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		span.RecordError(res.Error)
		return apperrors.Wrap(res.Error, apperrors.CodeDatabaseError, "failed to update job progress")
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrJobNotFound.WithDetail(id)
	}
	return nil
}
