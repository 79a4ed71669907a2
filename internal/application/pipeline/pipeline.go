package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/domain/service"
	apperrors "vidsum-ai-api/pkg/errors"
	"vidsum-ai-api/pkg/logger"
	"vidsum-ai-api/pkg/metrics"
	"vidsum-ai-api/pkg/tracer"
)

// Config 流水线配置
type Config struct {
	Segmenter            SegmenterConfig
	MaxConcurrentCalls   int
	Call                 CallPolicy
	TranscribeTimeout    time.Duration
	FallbackSummaryRunes int
	// ContentAddressed 为 true 时以转录内容哈希作为 video_id，重复处理会替换旧产物
	ContentAddressed bool
}

// ArtifactWriter 产物写入端（知识库）
type ArtifactWriter interface {
	Put(ctx context.Context, artifact *entity.VideoArtifact) error
}

// ProcessInput 单次处理的输入
type ProcessInput struct {
	VideoID    string
	SourceName string
	Transcript entity.Transcript
	// ContentAddressed 覆盖全局配置，nil 表示沿用配置
	ContentAddressed *bool
	// Progress 可选的进度回调（0-100），可能被并发调用
	Progress func(progress int)
}

// Pipeline 转录 -> 分段 -> 分段摘要/抽取 -> 聚合与导图 -> 入库
type Pipeline struct {
	cfg        Config
	segmenter  *Segmenter
	segments   *SegmentSummarizer
	aggregator *Aggregator
	files      service.FileStore
	store      ArtifactWriter
	now        func() time.Time
}

// New 创建流水线；summarizer 与 extractor 共享同一个模型并发信号量
func New(cfg Config, summarizer service.Summarizer, extractor service.Extractor, files service.FileStore, store ArtifactWriter) *Pipeline {
	if cfg.MaxConcurrentCalls < 1 {
		cfg.MaxConcurrentCalls = 1
	}
	policy := cfg.Call
	policy.Gate = semaphore.NewWeighted(int64(cfg.MaxConcurrentCalls))

	return &Pipeline{
		cfg:        cfg,
		segmenter:  NewSegmenter(cfg.Segmenter),
		segments:   NewSegmentSummarizer(summarizer, extractor, policy, cfg.FallbackSummaryRunes),
		aggregator: NewAggregator(summarizer, policy, cfg.FallbackSummaryRunes),
		files:      files,
		store:      store,
		now:        time.Now,
	}
}

// Process 处理一份完整转录并写入知识库
// ctx 取消后不再派发新的分段任务；已派发的能力调用会执行完毕但结果被丢弃，知识库不会被写入。
func (p *Pipeline) Process(ctx context.Context, in ProcessInput) (*entity.VideoArtifact, error) {
	started := time.Now()
	artifact, err := p.process(ctx, in)
	status := "success"
	switch {
	case err == nil:
	case apperrors.Is(err, apperrors.ErrJobCancelled):
		status = "cancelled"
	default:
		status = "failed"
	}
	metrics.PipelineJobsTotal.WithLabelValues(status).Inc()
	metrics.PipelineStageDuration.WithLabelValues("total").Observe(time.Since(started).Seconds())
	return artifact, err
}

// ResolveVideoID 返回处理将使用的 video_id，未指定且非内容寻址时为空串
// contentAddressed 为 true 时 video_id 取自转录内容哈希，重复处理会替换旧产物。
func (p *Pipeline) ResolveVideoID(in ProcessInput) (videoID string, contentAddressed bool) {
	contentAddressed = p.cfg.ContentAddressed
	if in.ContentAddressed != nil {
		contentAddressed = *in.ContentAddressed
	}
	if contentAddressed {
		return in.Transcript.ContentHash()[:32], true
	}
	return in.VideoID, false
}

func (p *Pipeline) process(ctx context.Context, in ProcessInput) (_ *entity.VideoArtifact, err error) {
	tr := in.Transcript
	if err := tr.Validate(); err != nil {
		return nil, err
	}

	hash := tr.ContentHash()
	videoID, contentAddressed := p.ResolveVideoID(in)
	if videoID == "" {
		videoID = uuid.NewString()
	}

	ctx = logger.WithContext(ctx, logger.VideoIDKey, videoID)
	ctx, span := tracer.StartWithAttrs(ctx, "pipeline.process",
		attribute.String("video_id", videoID),
		attribute.Int("spans", len(tr.Spans)),
	)
	defer func() { tracer.End(span, err) }()

	report := func(progress int) {
		if in.Progress != nil {
			in.Progress(progress)
		}
	}

	// 1. 分段
	logger.Info(ctx, "segmentation started", "spans", len(tr.Spans), "duration", tr.Duration())
	stageStart := time.Now()
	segments, err := p.segmenter.Segment(ctx, tr)
	metrics.PipelineStageDuration.WithLabelValues("segment").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		logger.Error(ctx, "segmentation failed", err)
		return nil, err
	}
	metrics.PipelineSegments.Observe(float64(len(segments)))
	logger.Info(ctx, "segmentation finished", "segments", len(segments))
	report(10)

	// 2. 分段级并发处理
	stageStart = time.Now()
	results, err := p.summarizeSegments(ctx, segments, report)
	metrics.PipelineStageDuration.WithLabelValues("segment_results").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "segment results ready", "segments", len(results))

	// 3. 聚合与导图并行
	stageStart = time.Now()
	artifact := &entity.VideoArtifact{
		VideoID:          videoID,
		SourceName:       in.SourceName,
		ContentHash:      hash,
		ContentAddressed: contentAddressed,
		Segments:         results,
	}

	var g errgroup.Group
	g.Go(func() error {
		artifact.OverallSummary, artifact.OverallTopic = p.aggregator.Aggregate(ctx, results)
		return nil
	})
	var (
		graph      *entity.MindmapGraph
		code       string
		mindmapErr error
	)
	g.Go(func() error {
		// 导图以整体主题为根，需与聚合器一致
		graph, mindmapErr = BuildMindmap(OverallTopic(results), results)
		if mindmapErr == nil {
			code, mindmapErr = RenderMindmap(graph)
		}
		return nil
	})
	_ = g.Wait()
	metrics.PipelineStageDuration.WithLabelValues("aggregate").Observe(time.Since(stageStart).Seconds())

	if ctx.Err() != nil {
		logger.Warn(ctx, "job cancelled before storing artifact")
		return nil, apperrors.ErrJobCancelled.WithError(ctx.Err())
	}
	report(90)

	if mindmapErr != nil {
		logger.Warn(ctx, "mindmap construction failed", "error", mindmapErr.Error())
		metrics.SegmentFallbackTotal.WithLabelValues("mindmap").Inc()
		artifact.MindmapError = mindmapErr.Error()
	} else {
		artifact.Mindmap = graph
		artifact.MindmapCode = code
		if p.files != nil {
			ref, werr := p.files.WriteMindmap(ctx, videoID, code)
			if werr != nil {
				logger.Warn(ctx, "failed to write mindmap file", "error", werr.Error())
			} else {
				artifact.MindmapFile = ref
			}
		}
	}

	artifact.CreatedAt = p.now().UTC()
	if err := p.store.Put(ctx, artifact); err != nil {
		logger.Error(ctx, "failed to store artifact", err)
		return nil, err
	}
	report(100)

	logger.Info(ctx, "video processed",
		"topic", artifact.OverallTopic,
		"segments", len(results),
		"mindmap", artifact.MindmapError == "",
	)
	return artifact, nil
}

// summarizeSegments 并发处理全部分段，结果按分段顺序返回
func (p *Pipeline) summarizeSegments(ctx context.Context, segments []entity.Segment, report func(int)) ([]entity.SegmentResult, error) {
	results := make([]entity.SegmentResult, len(segments))
	// 已派发的调用不随 ctx 取消，保证外部调用自然结束
	callCtx := context.WithoutCancel(ctx)
	dispatch := semaphore.NewWeighted(int64(p.cfg.MaxConcurrentCalls))

	var (
		g        errgroup.Group
		finished atomic.Int32
	)
	dispatched := 0
	for i, seg := range segments {
		if err := dispatch.Acquire(ctx, 1); err != nil {
			break
		}
		dispatched++
		g.Go(func() error {
			defer dispatch.Release(1)
			segCtx := logger.WithContext(callCtx, logger.SegmentKey, seg.Index)
			results[i] = p.segments.SummarizeSegment(segCtx, seg)
			report(10 + int(70*finished.Add(1))/len(segments))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		logger.Warn(ctx, "job cancelled during segment processing",
			"dispatched", dispatched,
			"segments", len(segments),
		)
		return nil, apperrors.ErrJobCancelled.WithDetail(fmt.Sprintf("cancelled after dispatching %d of %d segments", dispatched, len(segments))).WithError(err)
	}
	return results, nil
}
