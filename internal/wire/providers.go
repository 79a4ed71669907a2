// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"fmt"
	"os"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"vidsum-ai-api/internal/application/jobs"
	"vidsum-ai-api/internal/application/knowledge"
	"vidsum-ai-api/internal/application/pipeline"
	"vidsum-ai-api/internal/application/usage"
	"vidsum-ai-api/internal/config"
	"vidsum-ai-api/internal/domain/repository"
	"vidsum-ai-api/internal/infrastructure/llm"
	"vidsum-ai-api/internal/infrastructure/messaging"
	"vidsum-ai-api/internal/infrastructure/persistence/memory"
	"vidsum-ai-api/internal/infrastructure/persistence/postgres"
	"vidsum-ai-api/internal/infrastructure/persistence/redis"
	"vidsum-ai-api/internal/infrastructure/storage"
	"vidsum-ai-api/internal/infrastructure/transcription"
	"vidsum-ai-api/internal/interfaces/http/handler"
	"vidsum-ai-api/internal/interfaces/http/middleware"
	"vidsum-ai-api/internal/interfaces/http/router"
	"vidsum-ai-api/pkg/logger"
)

// App API 网关依赖
type App struct {
	Router *router.Router
	Store  *knowledge.Store
	Usage  *usage.Recorder
}

// Worker 任务消费进程依赖
type Worker struct {
	Consumer *messaging.Consumer
	Jobs     *jobs.Service
	Usage    *usage.Recorder
}

// ProvideRedisClient 提供 Redis 客户端；未启用时返回 nil
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvidePostgresClient 提供 PostgreSQL 客户端；仅 postgres 后端时创建
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	if !strings.EqualFold(cfg.Knowledge.Backend, config.KnowledgeBackendPostgres) {
		return nil, func() {}, nil
	}
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideKeys 提供 Redis 键空间
func ProvideKeys(cfg *config.Config) redis.Keys {
	return redis.NewKeys(cfg.Knowledge.KeyPrefix)
}

// ProvideArtifactRepository 按配置选择产物存储后端
func ProvideArtifactRepository(cfg *config.Config, rc *redis.Client, pg *postgres.Client, keys redis.Keys) (repository.ArtifactRepository, error) {
	switch strings.ToLower(cfg.Knowledge.Backend) {
	case config.KnowledgeBackendPostgres:
		return postgres.NewArtifactRepository(pg), nil
	case config.KnowledgeBackendRedis:
		if rc == nil {
			return nil, fmt.Errorf("knowledge.backend=redis requires redis client")
		}
		return redis.NewArtifactRepository(rc, keys), nil
	default:
		return memory.NewArtifactRepository(), nil
	}
}

// ProvideJobRepository 任务与产物同库；memory 后端下有 Redis 时任务放 Redis，供 job-worker 共享
func ProvideJobRepository(rc *redis.Client, pg *postgres.Client, keys redis.Keys) repository.JobRepository {
	switch {
	case pg != nil:
		return postgres.NewJobRepository(pg)
	case rc != nil:
		return redis.NewJobRepository(rc, keys)
	default:
		return memory.NewJobRepository()
	}
}

// ProvideKeyLocker 有 Redis 时使用分布式锁，否则使用进程内锁
func ProvideKeyLocker(cfg *config.Config, rc *redis.Client, keys redis.Keys) repository.KeyLocker {
	if rc != nil {
		return redis.NewLocker(rc, keys, cfg.Knowledge.LockTTL)
	}
	return memory.NewKeyedMutex()
}

// ProvideSearchCache 有 Redis 时启用检索缓存
func ProvideSearchCache(rc *redis.Client, keys redis.Keys) repository.SearchCache {
	if rc == nil {
		return nil
	}
	return redis.NewSearchCache(rc, keys)
}

// ProvideKnowledgeStore 创建知识库并从存储重建索引
func ProvideKnowledgeStore(ctx context.Context, cfg *config.Config, repo repository.ArtifactRepository, locker repository.KeyLocker, cache repository.SearchCache) (*knowledge.Store, error) {
	store := knowledge.NewStore(repo, locker, cache, cfg.Knowledge.SearchCacheTTL)
	if err := store.Rebuild(ctx); err != nil {
		return nil, fmt.Errorf("failed to rebuild knowledge index: %w", err)
	}
	return store, nil
}

// ProvidePipelineConfig 配置转换为流水线参数
func ProvidePipelineConfig(cfg *config.Config) pipeline.Config {
	p := cfg.Pipeline
	return pipeline.Config{
		Segmenter: pipeline.SegmenterConfig{
			WindowSpans:        p.Segmenter.WindowSpans,
			DriftThreshold:     p.Segmenter.DriftThreshold,
			MinSegmentSpans:    p.Segmenter.MinSegmentSpans,
			MaxSegmentDuration: p.Segmenter.MaxSegmentDuration,
			MaxSegmentWords:    p.Segmenter.MaxSegmentWords,
			TopicTerms:         p.Segmenter.TopicTerms,
			Timeout:            p.Segmenter.Timeout,
		},
		MaxConcurrentCalls: p.MaxConcurrentCalls,
		Call: pipeline.CallPolicy{
			Timeout:    p.CallTimeout,
			MaxRetries: p.MaxRetries,
			Backoff: pipeline.Backoff{
				Initial:    p.RetryBackoff.Initial,
				Max:        p.RetryBackoff.Max,
				Multiplier: p.RetryBackoff.Multiplier,
			},
		},
		TranscribeTimeout:    p.TranscribeTimeout,
		FallbackSummaryRunes: p.FallbackSummaryRunes,
		ContentAddressed:     p.ContentAddressed,
	}
}

// ProvideFileStore 提供本地文件存储
func ProvideFileStore(cfg *config.Config) (*storage.LocalFileStore, error) {
	return storage.NewLocalFileStore(&cfg.Storage)
}

// ProvideChatCapability 提供基于 eino 的摘要/抽取能力
func ProvideChatCapability(cfg *config.Config, factory llm.ChatModelFactory) *llm.ChatCapability {
	return llm.NewChatCapability(factory, llm.NewPromptRegistry(), cfg.LLM.DefaultProvider, 0)
}

// ProvidePipeline 组装流水线
func ProvidePipeline(pcfg pipeline.Config, chat *llm.ChatCapability, files *storage.LocalFileStore, store *knowledge.Store) *pipeline.Pipeline {
	return pipeline.New(pcfg, chat, chat, files, store)
}

// ProvideVideoService 组装视频服务（ffmpeg + whisper）
func ProvideVideoService(cfg *config.Config, p *pipeline.Pipeline, files *storage.LocalFileStore) *pipeline.VideoService {
	audio := transcription.NewFFmpegExtractor(&cfg.Transcription, cfg.Storage.UploadDir)
	transcriber := transcription.NewWhisperTranscriber(&cfg.Transcription)
	return pipeline.NewVideoService(p, files, audio, transcriber, pipeline.UploadPolicy{
		MaxBytes:          cfg.Storage.MaxUploadBytes,
		AllowedExtensions: cfg.Storage.AllowedExtensions,
		KeepUploads:       cfg.Storage.KeepUploads,
	})
}

// ProvideFocusedService 提供关键词聚焦摘要
func ProvideFocusedService(pcfg pipeline.Config, chat *llm.ChatCapability) *pipeline.FocusedService {
	return pipeline.NewFocusedService(chat, pcfg.Call, pcfg.FallbackSummaryRunes)
}

// ProvidePublisher 有 Redis 时提供任务投递端
func ProvidePublisher(cfg *config.Config, rc *redis.Client) jobs.Publisher {
	if rc == nil {
		return nil
	}
	return messaging.NewProducer(rc.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
}

// ProvideJobService 提供任务服务
func ProvideJobService(cfg *config.Config, repo repository.JobRepository, store *knowledge.Store, pub jobs.Publisher, p *pipeline.Pipeline) *jobs.Service {
	return jobs.NewService(repo, store, pub, p, cfg.Messaging.RedisStream.RetryLimit)
}

// ProvideRateLimiter 有 Redis 时提供限流器
func ProvideRateLimiter(rc *redis.Client) middleware.RateLimiter {
	if rc == nil {
		return nil
	}
	return redis.NewRateLimiter(rc)
}

// ProvideRateLimitKeyFunc 限流键
func ProvideRateLimitKeyFunc(keys redis.Keys) middleware.KeyFunc {
	return keys.RateLimit
}

// ProvideRouter 组装 HTTP 路由
func ProvideRouter(cfg *config.Config, health *handler.HealthHandler, video *handler.VideoHandler, search *handler.SearchHandler, job *handler.JobHandler, limiter middleware.RateLimiter, keyFn middleware.KeyFunc) *router.Router {
	return router.New(cfg, router.Handlers{
		Health: health,
		Video:  video,
		Search: search,
		Job:    job,
	}, limiter, keyFn)
}

// ProvideHealthHandler 已启用的存储组件纳入就绪检查
func ProvideHealthHandler(cfg *config.Config, rc *redis.Client, pg *postgres.Client) *handler.HealthHandler {
	required := map[string]handler.HealthChecker{}
	if rc != nil {
		required["redis"] = rc
	}
	if pg != nil {
		required["postgres"] = pg
	}
	return handler.NewHealthHandler(cfg.App.Version, required, nil)
}

// ProvideConsumer 创建任务消费者并注册处理器
func ProvideConsumer(cfg *config.Config, rc *redis.Client, svc *jobs.Service) (*messaging.Consumer, error) {
	if rc == nil {
		return nil, fmt.Errorf("job-worker requires cache.redis.enabled")
	}
	if strings.EqualFold(cfg.Knowledge.Backend, config.KnowledgeBackendMemory) {
		logger.Warn(context.Background(), "job-worker uses in-memory knowledge backend, artifacts are not visible to api-gateway")
	}
	rs := cfg.Messaging.RedisStream
	consumer := messaging.NewConsumer(redisOf(rc), messaging.ConsumerConfig{
		Stream:        messaging.StreamVideoProcess,
		Group:         messaging.TranscriptWorkerGroup(rs.ConsumerGroupPrefix),
		ConsumerName:  consumerName(),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
	consumer.RegisterHandler(messaging.MessageTypeTranscriptProcess, svc.Handle)
	logger.Info(context.Background(), "job consumer configured", "stream", messaging.StreamVideoProcess)
	return consumer, nil
}

func redisOf(rc *redis.Client) *goredis.Client {
	return rc.Redis()
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
