package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SearchCache 关键词查询结果缓存；失效通过递增代数实现，旧代数的键依赖 TTL 回收
type SearchCache struct {
	client *Client
	keys   Keys
}

// NewSearchCache 创建查询缓存
func NewSearchCache(client *Client, keys Keys) *SearchCache {
	return &SearchCache{client: client, keys: keys}
}

// Get 读取缓存，命中时反序列化到 dest
func (c *SearchCache) Get(ctx context.Context, query string, dest any) (bool, error) {
	ctx, span := tracer.Start(ctx, "cache.Get", trace.WithAttributes(attribute.String("cache.query", query)))
	defer span.End()

	gen, err := c.generation(ctx)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	val, err := c.client.rdb.Get(ctx, c.keys.Search(gen, query)).Bytes()
	if err != nil {
		if IsNil(err) {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			return false, nil
		}
		span.RecordError(err)
		return false, err
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Set 写入缓存
func (c *SearchCache) Set(ctx context.Context, query string, value any, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "cache.Set", trace.WithAttributes(
		attribute.String("cache.query", query),
		attribute.Int64("cache.ttl_ms", ttl.Milliseconds()),
	))
	defer span.End()

	b, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	gen, err := c.generation(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}
	return c.client.rdb.Set(ctx, c.keys.Search(gen, query), b, ttl).Err()
}

// Invalidate 递增代数使全部查询缓存失效
func (c *SearchCache) Invalidate(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "cache.Invalidate")
	defer span.End()

	if err := c.client.rdb.Incr(ctx, c.keys.SearchGeneration()).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (c *SearchCache) generation(ctx context.Context) (string, error) {
	gen, err := c.client.rdb.Get(ctx, c.keys.SearchGeneration()).Result()
	if IsNil(err) {
		return "0", nil
	}
	return gen, err
}
