package config

import (
	"fmt"
	"strings"
)

// 知识库后端
const (
	KnowledgeBackendMemory   = "memory"
	KnowledgeBackendRedis    = "redis"
	KnowledgeBackendPostgres = "postgres"
)

// Validate 校验配置的取值范围
func (c *Config) Validate() error {
	seg := c.Pipeline.Segmenter
	if seg.WindowSpans < 1 {
		return fmt.Errorf("pipeline.segmenter.window_spans must be >= 1, got %d", seg.WindowSpans)
	}
	if seg.DriftThreshold <= 0 || seg.DriftThreshold > 1 {
		return fmt.Errorf("pipeline.segmenter.drift_threshold must be in (0, 1], got %v", seg.DriftThreshold)
	}
	if seg.MinSegmentSpans < 1 {
		return fmt.Errorf("pipeline.segmenter.min_segment_spans must be >= 1, got %d", seg.MinSegmentSpans)
	}
	if c.Pipeline.MaxConcurrentCalls < 1 {
		return fmt.Errorf("pipeline.max_concurrent_calls must be >= 1, got %d", c.Pipeline.MaxConcurrentCalls)
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("pipeline.max_retries must be >= 0, got %d", c.Pipeline.MaxRetries)
	}
	if c.Pipeline.FallbackSummaryRunes < 1 {
		return fmt.Errorf("pipeline.fallback_summary_runes must be >= 1, got %d", c.Pipeline.FallbackSummaryRunes)
	}

	switch strings.ToLower(c.Knowledge.Backend) {
	case KnowledgeBackendMemory:
	case KnowledgeBackendRedis:
		if !c.Cache.Redis.Enabled {
			return fmt.Errorf("knowledge.backend=redis requires cache.redis.enabled")
		}
	case KnowledgeBackendPostgres:
	default:
		return fmt.Errorf("unknown knowledge.backend %q", c.Knowledge.Backend)
	}

	if c.LLM.DefaultProvider != "" {
		if _, ok := c.LLM.Providers[c.LLM.DefaultProvider]; !ok {
			return fmt.Errorf("llm.default_provider %q has no provider config", c.LLM.DefaultProvider)
		}
	}
	return nil
}

// Addr 返回 HTTP 监听地址
func (c HTTPServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr 返回 Redis 地址
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DSN 返回 PostgreSQL 连接串
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}
