// Package jobs 异步转录处理任务：提交、查询与消费
package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vidsum-ai-api/internal/application/pipeline"
	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/domain/repository"
	"vidsum-ai-api/internal/infrastructure/messaging"
	apperrors "vidsum-ai-api/pkg/errors"
	"vidsum-ai-api/pkg/logger"
)

// Publisher 任务投递端
type Publisher interface {
	PublishTranscriptJob(ctx context.Context, job *messaging.TranscriptJobMessage) (string, error)
}

// Processor 转录处理流水线
type Processor interface {
	Process(ctx context.Context, in pipeline.ProcessInput) (*entity.VideoArtifact, error)
	ResolveVideoID(in pipeline.ProcessInput) (videoID string, contentAddressed bool)
}

// ArtifactLookup 按 video_id 查询已存储的产物
type ArtifactLookup interface {
	Get(ctx context.Context, videoID string) (*entity.VideoArtifact, error)
}

// SubmitInput 提交任务参数
type SubmitInput struct {
	VideoID          string
	SourceName       string
	Transcript       entity.Transcript
	ContentAddressed *bool
}

// Service 任务服务
type Service struct {
	jobs       repository.JobRepository
	artifacts  ArtifactLookup
	publisher  Publisher
	processor  Processor
	maxRetries int
}

// NewService 创建任务服务；publisher 为 nil 时拒绝提交
func NewService(jobs repository.JobRepository, artifacts ArtifactLookup, publisher Publisher, processor Processor, maxRetries int) *Service {
	return &Service{jobs: jobs, artifacts: artifacts, publisher: publisher, processor: processor, maxRetries: maxRetries}
}

// Enabled 是否可以提交异步任务
func (s *Service) Enabled() bool {
	return s.publisher != nil
}

// Submit 校验转录、创建任务并投递到队列。
// video_id 在提交时确定并随任务持久化，重投的消息总是写入同一个产物。
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*entity.ProcessingJob, error) {
	if s.publisher == nil {
		return nil, apperrors.ErrServiceUnavailable.WithDetail("async jobs require redis")
	}
	if err := in.Transcript.Validate(); err != nil {
		return nil, err
	}

	videoID, contentAddressed := s.processor.ResolveVideoID(pipeline.ProcessInput{
		VideoID:          in.VideoID,
		Transcript:       in.Transcript,
		ContentAddressed: in.ContentAddressed,
	})
	if videoID == "" {
		videoID = uuid.NewString()
	} else if !contentAddressed && s.artifacts != nil {
		if _, err := s.artifacts.Get(ctx, videoID); err == nil {
			return nil, apperrors.ErrArtifactExists.WithDetail(videoID)
		} else if !apperrors.Is(err, apperrors.ErrArtifactNotFound) {
			return nil, err
		}
	}

	job := entity.NewProcessingJob(uuid.NewString(), videoID, in.SourceName)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	ctx = logger.WithContext(ctx, logger.JobIDKey, job.ID)

	_, err := s.publisher.PublishTranscriptJob(ctx, &messaging.TranscriptJobMessage{
		JobID:            job.ID,
		VideoID:          videoID,
		SourceName:       in.SourceName,
		Spans:            in.Transcript.Spans,
		ContentAddressed: in.ContentAddressed,
	})
	if err != nil {
		logger.Error(ctx, "failed to publish job", err)
		job.Fail(string(apperrors.CodeServiceUnavailable), err.Error())
		if uerr := s.jobs.Update(context.WithoutCancel(ctx), job); uerr != nil {
			logger.Error(ctx, "failed to mark job failed", uerr)
		}
		return nil, apperrors.ErrServiceUnavailable.WithError(err)
	}

	logger.Info(ctx, "job submitted", "spans", len(in.Transcript.Spans))
	return job, nil
}

// Get 查询任务
func (s *Service) Get(ctx context.Context, id string) (*entity.ProcessingJob, error) {
	return s.jobs.GetByID(ctx, id)
}

// Handle 消费一条任务消息
// 返回错误表示消息应保留待重投；任务已进入终态时直接确认。
func (s *Service) Handle(ctx context.Context, msg *messaging.Message) error {
	var payload messaging.TranscriptJobMessage
	if err := msg.UnmarshalPayload(&payload); err != nil {
		logger.Error(ctx, "invalid job payload", err, "message_id", msg.ID)
		return nil
	}
	ctx = logger.WithContext(ctx, logger.JobIDKey, payload.JobID)

	job, err := s.jobs.GetByID(ctx, payload.JobID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrJobNotFound) {
			logger.Warn(ctx, "job not found, dropping message")
			return nil
		}
		return err
	}
	if job.Status.IsTerminal() {
		logger.Info(ctx, "job already finished", "status", job.Status)
		return nil
	}

	videoID := payload.VideoID
	if videoID == "" {
		videoID = job.VideoID
	}
	transcript := entity.NewTranscript(payload.Spans)
	_, contentAddressed := s.processor.ResolveVideoID(pipeline.ProcessInput{
		VideoID:          videoID,
		Transcript:       transcript,
		ContentAddressed: payload.ContentAddressed,
	})

	// 上一次投递已写入产物但未能记录终态：直接补记完成
	// 内容寻址的任务首次投递时允许替换旧产物
	redelivered := job.Status == entity.JobStatusRunning
	if videoID != "" && s.artifacts != nil && (!contentAddressed || redelivered) {
		stored, err := s.artifacts.Get(ctx, videoID)
		switch {
		case err == nil:
			logger.Info(ctx, "artifact already stored, completing job", "video_id", stored.VideoID)
			return s.complete(ctx, job, stored.VideoID)
		case !apperrors.Is(err, apperrors.ErrArtifactNotFound):
			return err
		}
	}

	job.Start()
	if err := s.jobs.Update(ctx, job); err != nil {
		return err
	}

	var last atomic.Int64
	artifact, err := s.processor.Process(ctx, pipeline.ProcessInput{
		VideoID:          videoID,
		SourceName:       payload.SourceName,
		Transcript:       transcript,
		ContentAddressed: payload.ContentAddressed,
		Progress: func(progress int) {
			// 进度只前进
			for {
				cur := last.Load()
				if int64(progress) <= cur {
					return
				}
				if last.CompareAndSwap(cur, int64(progress)) {
					break
				}
			}
			if perr := s.jobs.UpdateProgress(context.WithoutCancel(ctx), job.ID, progress); perr != nil {
				logger.Warn(ctx, "failed to update job progress", "error", perr.Error())
			}
		},
	})

	if err == nil {
		return s.complete(ctx, job, artifact.VideoID)
	}
	if apperrors.Is(err, apperrors.ErrArtifactExists) && videoID != "" && !contentAddressed {
		// 并发的重投先写入了同一产物
		return s.complete(ctx, job, videoID)
	}

	// 终态写入不受消费 ctx 取消影响
	writeCtx, cancel := terminalWriteCtx(ctx)
	defer cancel()

	if apperrors.Is(err, apperrors.ErrJobCancelled) && ctx.Err() != nil {
		// worker 退出，消息留在 PEL 中由其他消费者接管
		job.Retry()
		if uerr := s.jobs.Update(writeCtx, job); uerr != nil {
			logger.Error(ctx, "failed to reset cancelled job", uerr)
		}
		return err
	}

	job.Fail(string(apperrors.AsAppError(err).Code), err.Error())
	if retryable(err) && job.CanRetry(s.maxRetries) {
		logger.Warn(ctx, "job failed, will retry", "error", err.Error(), "retry_count", job.RetryCount)
		job.Retry()
		if uerr := s.jobs.Update(writeCtx, job); uerr != nil {
			logger.Error(ctx, "failed to update job", uerr)
		}
		return err
	}

	logger.Error(ctx, "job failed", err)
	return s.jobs.Update(writeCtx, job)
}

func (s *Service) complete(ctx context.Context, job *entity.ProcessingJob, videoID string) error {
	writeCtx, cancel := terminalWriteCtx(ctx)
	defer cancel()

	job.VideoID = videoID
	job.Complete()
	logger.Info(ctx, "job completed", "video_id", videoID, "duration_ms", job.DurationMs)
	return s.jobs.Update(writeCtx, job)
}

func terminalWriteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
}

// retryable 外部能力与存储故障可重试，输入类错误不可重试
func retryable(err error) bool {
	switch {
	case apperrors.Is(err, apperrors.ErrCapabilityTimeout),
		apperrors.Is(err, apperrors.ErrCapabilityFailed),
		apperrors.Is(err, apperrors.ErrStorage):
		return true
	}
	code := apperrors.AsAppError(err).Code
	return code == apperrors.CodeDatabaseError || code == apperrors.CodeCacheError
}
