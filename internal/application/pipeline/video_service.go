package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/domain/service"
	apperrors "vidsum-ai-api/pkg/errors"
	"vidsum-ai-api/pkg/logger"
	"vidsum-ai-api/pkg/metrics"
)

// UploadPolicy 上传校验规则
type UploadPolicy struct {
	MaxBytes          int64
	AllowedExtensions []string
	KeepUploads       bool
}

// Upload 一次视频上传
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// VideoService 串联上传保存、音频提取、转写与流水线处理
type VideoService struct {
	pipeline    *Pipeline
	files       service.FileStore
	audio       service.AudioExtractor
	transcriber service.Transcriber
	policy      UploadPolicy
	transcribe  CallPolicy
}

// NewVideoService 创建视频服务
func NewVideoService(p *Pipeline, files service.FileStore, audio service.AudioExtractor, transcriber service.Transcriber, policy UploadPolicy) *VideoService {
	transcribe := p.cfg.Call
	transcribe.Gate = nil
	if p.cfg.TranscribeTimeout > 0 {
		transcribe.Timeout = p.cfg.TranscribeTimeout
	}
	return &VideoService{
		pipeline:    p,
		files:       files,
		audio:       audio,
		transcriber: transcriber,
		policy:      policy,
		transcribe:  transcribe,
	}
}

// ValidateUpload 在进入流水线前拒绝非法上传
func (s *VideoService) ValidateUpload(u Upload) error {
	name := strings.TrimSpace(u.Filename)
	if name == "" || u.Content == nil {
		return apperrors.ErrMalformedUpload.WithDetail("missing video file")
	}
	if u.Size == 0 {
		return apperrors.ErrMalformedUpload.WithDetail("video file is empty")
	}
	if s.policy.MaxBytes > 0 && u.Size > s.policy.MaxBytes {
		return apperrors.ErrMalformedUpload.WithDetail(fmt.Sprintf("video file exceeds %d bytes", s.policy.MaxBytes))
	}
	if len(s.policy.AllowedExtensions) > 0 {
		ext := strings.ToLower(filepath.Ext(name))
		if !slices.Contains(s.policy.AllowedExtensions, ext) {
			return apperrors.ErrMalformedUpload.WithDetail(fmt.Sprintf("unsupported file type %q", ext))
		}
	}
	return nil
}

// SummarizeVideo 处理一次视频上传：保存 -> 提取音频 -> 转写 -> 流水线
// 临时文件在处理结束后删除。
func (s *VideoService) SummarizeVideo(ctx context.Context, u Upload) (*entity.VideoArtifact, error) {
	if err := s.ValidateUpload(u); err != nil {
		return nil, err
	}

	videoPath, err := s.files.SaveUpload(ctx, u.Filename, u.Content, s.policy.MaxBytes)
	if err != nil {
		return nil, err
	}
	if !s.policy.KeepUploads {
		defer s.cleanup(ctx, videoPath)
	}

	stageStart := time.Now()
	audioPath, err := Invoke(ctx, "audio_extract", CallPolicy{Timeout: s.transcribe.Timeout},
		func(ctx context.Context) (string, error) {
			return s.audio.Extract(ctx, videoPath)
		})
	metrics.PipelineStageDuration.WithLabelValues("audio_extract").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		logger.Error(ctx, "audio extraction failed", err, "file", u.Filename)
		return nil, err
	}
	defer s.cleanup(ctx, audioPath)

	spans, err := s.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	return s.pipeline.Process(ctx, ProcessInput{
		SourceName: u.Filename,
		Transcript: entity.NewTranscript(spans),
	})
}

// Transcribe 调用转写能力，失败或超时对任务是致命的
func (s *VideoService) Transcribe(ctx context.Context, audioPath string) ([]entity.Span, error) {
	stageStart := time.Now()
	spans, err := Invoke(service.WithStage(ctx, service.StageTranscription), "transcribe", s.transcribe,
		func(ctx context.Context) ([]entity.Span, error) {
			return s.transcriber.Transcribe(ctx, audioPath)
		})
	metrics.PipelineStageDuration.WithLabelValues("transcribe").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		logger.Error(ctx, "transcription failed", err)
		return nil, err
	}
	logger.Info(ctx, "transcription finished", "spans", len(spans))
	return spans, nil
}

// ProcessTranscript 直接处理已有转录
func (s *VideoService) ProcessTranscript(ctx context.Context, in ProcessInput) (*entity.VideoArtifact, error) {
	return s.pipeline.Process(ctx, in)
}

func (s *VideoService) cleanup(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := s.files.Remove(context.WithoutCancel(ctx), path); err != nil {
		logger.Warn(ctx, "failed to remove temporary file", "path", path, "error", err.Error())
	}
}
