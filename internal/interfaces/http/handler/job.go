package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"vidsum-ai-api/internal/application/jobs"
	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/interfaces/http/dto"
	"vidsum-ai-api/pkg/errors"
	"vidsum-ai-api/pkg/logger"
)

// JobService 异步任务服务
type JobService interface {
	Submit(ctx context.Context, in jobs.SubmitInput) (*entity.ProcessingJob, error)
	Get(ctx context.Context, id string) (*entity.ProcessingJob, error)
}

// JobHandler 任务处理器
type JobHandler struct {
	jobs JobService
}

// NewJobHandler 创建任务处理器
func NewJobHandler(jobs JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// SubmitJob 提交异步转录处理任务
// @Summary 提交任务
// @Tags Jobs
// @Accept json
// @Produce json
// @Param body body dto.TranscriptRequest true "转录"
// @Success 202 {object} dto.Response[dto.SubmitJobResponse]
// @Failure 503 {object} dto.ErrorResponse "未启用 Redis"
// @Router /v1/jobs [post]
func (h *JobHandler) SubmitJob(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.TranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.Fail(c, errors.ErrInvalidParam.WithDetail(err.Error()))
		return
	}

	job, err := h.jobs.Submit(ctx, jobs.SubmitInput{
		VideoID:          req.VideoID,
		SourceName:       req.SourceName,
		Transcript:       req.ToTranscript(),
		ContentAddressed: req.ContentAddressed,
	})
	if err != nil {
		logger.Warn(ctx, "submit job failed", "error", err.Error())
		dto.Fail(c, err)
		return
	}
	dto.Accepted(c, &dto.SubmitJobResponse{JobID: job.ID, Status: string(job.Status)})
}

// GetJob 获取任务详情
// @Summary 获取任务详情
// @Tags Jobs
// @Produce json
// @Param id path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.JobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/jobs/{id} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), dto.BindJobID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToJobResponse(job))
}
