package entity

import (
	"time"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal 是否为终态
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// ProcessingJob 异步转录处理任务
type ProcessingJob struct {
	ID           string     `json:"id"`
	VideoID      string     `json:"video_id"`
	SourceName   string     `json:"source_name,omitempty"`
	Status       JobStatus  `json:"status"`
	Progress     int        `json:"progress"` // 任务进度 (0-100)
	ErrorCode    string     `json:"error_code,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	RetryCount   int        `json:"retry_count"`
	DurationMs   int        `json:"duration_ms,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewProcessingJob 创建新任务
func NewProcessingJob(id, videoID, sourceName string) *ProcessingJob {
	now := time.Now()
	return &ProcessingJob{
		ID:         id,
		VideoID:    videoID,
		SourceName: sourceName,
		Status:     JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Start 开始执行任务
func (j *ProcessingJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
}

// Complete 完成任务
func (j *ProcessingJob) Complete() {
	j.finish(JobStatusCompleted)
	j.Progress = 100
	j.ErrorCode = ""
	j.ErrorMessage = ""
}

// Fail 任务失败
func (j *ProcessingJob) Fail(code string, errMsg string) {
	j.finish(JobStatusFailed)
	j.ErrorCode = code
	j.ErrorMessage = errMsg
}

// Cancel 任务取消
func (j *ProcessingJob) Cancel(errMsg string) {
	j.finish(JobStatusCancelled)
	j.ErrorMessage = errMsg
}

func (j *ProcessingJob) finish(status JobStatus) {
	now := time.Now()
	j.Status = status
	j.CompletedAt = &now
	j.UpdatedAt = now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
}

// Retry 重试任务
func (j *ProcessingJob) Retry() {
	j.RetryCount++
	j.Status = JobStatusPending
	j.StartedAt = nil
	j.CompletedAt = nil
	j.ErrorCode = ""
	j.ErrorMessage = ""
	j.UpdatedAt = time.Now()
}

// CanRetry 检查是否可以重试
func (j *ProcessingJob) CanRetry(maxRetries int) bool {
	return j.RetryCount < maxRetries && j.Status == JobStatusFailed
}

// UpdateProgress 更新任务进度
func (j *ProcessingJob) UpdateProgress(progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}
