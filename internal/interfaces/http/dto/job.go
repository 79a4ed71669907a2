package dto

import (
	"time"

	"vidsum-ai-api/internal/domain/entity"
)

// JobResponse 任务响应
type JobResponse struct {
	ID           string     `json:"id"`
	VideoID      string     `json:"video_id,omitempty"`
	SourceName   string     `json:"source_name,omitempty"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	ErrorCode    string     `json:"error_code,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	RetryCount   int        `json:"retry_count"`
	DurationMs   int        `json:"duration_ms,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// SubmitJobResponse 提交任务响应
type SubmitJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// ToJobResponse 将领域实体转换为响应 DTO
func ToJobResponse(j *entity.ProcessingJob) *JobResponse {
	if j == nil {
		return nil
	}
	return &JobResponse{
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
