// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"vidsum-ai-api/internal/application/pipeline"
	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/domain/repository"
	"vidsum-ai-api/internal/interfaces/http/dto"
	"vidsum-ai-api/pkg/errors"
	"vidsum-ai-api/pkg/logger"
)

// VideoProcessor 视频与转录处理
type VideoProcessor interface {
	SummarizeVideo(ctx context.Context, u pipeline.Upload) (*entity.VideoArtifact, error)
	ProcessTranscript(ctx context.Context, in pipeline.ProcessInput) (*entity.VideoArtifact, error)
}

// ArtifactReader 产物查询与删除
type ArtifactReader interface {
	Get(ctx context.Context, videoID string) (*entity.VideoArtifact, error)
	List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.VideoArtifact], error)
	Delete(ctx context.Context, videoID string) error
}

// VideoHandler 视频处理器
type VideoHandler struct {
	videos    VideoProcessor
	artifacts ArtifactReader
}

// NewVideoHandler 创建视频处理器
func NewVideoHandler(videos VideoProcessor, artifacts ArtifactReader) *VideoHandler {
	return &VideoHandler{videos: videos, artifacts: artifacts}
}

// SummarizeVideo 上传视频并同步生成摘要与导图
// @Summary 视频摘要
// @Tags Videos
// @Accept multipart/form-data
// @Produce json
// @Param video formData file true "视频文件"
// @Success 200 {object} dto.SummarizeVideoResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /summarize_video [post]
func (h *VideoHandler) SummarizeVideo(c *gin.Context) {
	ctx := c.Request.Context()

	fh, err := c.FormFile("video")
	if err != nil {
		dto.Fail(c, errors.ErrMalformedUpload.WithDetail("multipart field 'video' is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		dto.Fail(c, errors.ErrMalformedUpload.WithDetail("failed to read uploaded file"))
		return
	}
	defer f.Close()

	artifact, err := h.videos.SummarizeVideo(ctx, pipeline.Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Content:  f,
	})
	if err != nil {
		logger.Error(ctx, "summarize video failed", err, "file", fh.Filename)
		dto.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToSummarizeVideoResponse(artifact))
}

// ProcessTranscript 直接处理 JSON 转录
// @Summary 处理转录
// @Tags Videos
// @Accept json
// @Produce json
// @Param body body dto.TranscriptRequest true "转录"
// @Success 201 {object} dto.Response[dto.VideoResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /v1/transcripts [post]
func (h *VideoHandler) ProcessTranscript(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.TranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.Fail(c, errors.ErrInvalidParam.WithDetail(err.Error()))
		return
	}

	artifact, err := h.videos.ProcessTranscript(ctx, pipeline.ProcessInput{
		VideoID:          req.VideoID,
		SourceName:       req.SourceName,
		Transcript:       req.ToTranscript(),
		ContentAddressed: req.ContentAddressed,
	})
	if err != nil {
		logger.Error(ctx, "process transcript failed", err)
		dto.Fail(c, err)
		return
	}
	dto.Created(c, dto.ToVideoResponse(artifact))
}

// GetVideo 获取产物详情
// @Summary 获取产物
// @Tags Videos
// @Produce json
// @Param id path string true "视频 ID"
// @Success 200 {object} dto.Response[dto.VideoResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/videos/{id} [get]
func (h *VideoHandler) GetVideo(c *gin.Context) {
	artifact, err := h.artifacts.Get(c.Request.Context(), dto.BindVideoID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToVideoResponse(artifact))
}

// ListVideos 分页列出产物
// @Summary 产物列表
// @Tags Videos
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[[]dto.VideoListItem]
// @Router /v1/videos [get]
func (h *VideoHandler) ListVideos(c *gin.Context) {
	page, err := h.artifacts.List(c.Request.Context(), dto.BindPagination(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.SuccessWithPage(c, dto.ToVideoList(page.Items),
		dto.NewPageMeta(page.Page, page.PageSize, page.Total, page.TotalPages))
}

// DeleteVideo 删除产物
// @Summary 删除产物
// @Tags Videos
// @Param id path string true "视频 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/videos/{id} [delete]
func (h *VideoHandler) DeleteVideo(c *gin.Context) {
	if err := h.artifacts.Delete(c.Request.Context(), dto.BindVideoID(c)); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.NoContent(c)
}
