//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"vidsum-ai-api/internal/application/jobs"
	"vidsum-ai-api/internal/application/knowledge"
	"vidsum-ai-api/internal/application/pipeline"
	"vidsum-ai-api/internal/application/usage"
	"vidsum-ai-api/internal/config"
	"vidsum-ai-api/internal/infrastructure/llm"
	"vidsum-ai-api/internal/interfaces/http/handler"
)

// DataSet 存储层
var DataSet = wire.NewSet(
	ProvideRedisClient,
	ProvidePostgresClient,
	ProvideKeys,
	ProvideArtifactRepository,
	ProvideJobRepository,
	ProvideKeyLocker,
	ProvideSearchCache,
	ProvideKnowledgeStore,
)

// PipelineSet 处理流水线
var PipelineSet = wire.NewSet(
	ProvidePipelineConfig,
	ProvideFileStore,
	llm.NewEinoFactory,
	wire.Bind(new(llm.ChatModelFactory), new(*llm.EinoFactory)),
	ProvideChatCapability,
	ProvidePipeline,
	usage.NewRecorder,
)

// JobSet 异步任务
var JobSet = wire.NewSet(
	ProvidePublisher,
	ProvideJobService,
)

// HTTPSet HTTP 层
var HTTPSet = wire.NewSet(
	ProvideVideoService,
	ProvideFocusedService,
	handler.NewVideoHandler,
	handler.NewSearchHandler,
	handler.NewJobHandler,
	ProvideHealthHandler,
	ProvideRateLimiter,
	ProvideRateLimitKeyFunc,
	ProvideRouter,
	wire.Bind(new(handler.VideoProcessor), new(*pipeline.VideoService)),
	wire.Bind(new(handler.ArtifactReader), new(*knowledge.Store)),
	wire.Bind(new(handler.KeywordSearcher), new(*knowledge.Store)),
	wire.Bind(new(handler.FocusedSummarizer), new(*pipeline.FocusedService)),
	wire.Bind(new(handler.JobService), new(*jobs.Service)),
)

// InitializeApp 初始化 API 网关
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		DataSet,
		PipelineSet,
		JobSet,
		HTTPSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// InitializeWorker 初始化任务消费进程
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		DataSet,
		PipelineSet,
		JobSet,
		ProvideConsumer,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}
