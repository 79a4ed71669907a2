package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vidsum-ai-api/pkg/logger"
	"vidsum-ai-api/pkg/metrics"
)

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, msg *Message) error

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

// Consumer 消费者组成员：失败消息留在 PEL 中按退避重投，超过重试上限后转入死信流
type Consumer struct {
	client      *redis.Client
	cfg         ConsumerConfig
	reclaimIdle time.Duration

	mu       sync.RWMutex
	handlers map[string]MessageHandler
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewConsumer 创建消息消费者
func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}
	return &Consumer{
		client:      client,
		cfg:         cfg,
		reclaimIdle: max(5*time.Minute, cfg.Backoff.Max*2),
		handlers:    make(map[string]MessageHandler),
	}
}

// RegisterHandler 注册消息处理器
func (c *Consumer) RegisterHandler(msgType string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

// Start 创建消费者组并启动消费循环
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("consumer already running")
	}

	err := c.client.XGroupCreateMkStream(ctx, string(c.cfg.Stream), string(c.cfg.Group), "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.run(ctx)
	return nil
}

// Stop 停止消费并等待当前消息处理完毕
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	close(c.stopCh)
	c.running = false
	done := c.doneCh
	c.mu.Unlock()
	<-done
}

func (c *Consumer) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.doneCh)
	logger.Info(ctx, "consumer started",
		"stream", c.cfg.Stream,
		"group", c.cfg.Group,
		"consumer", c.cfg.ConsumerName,
	)

	lastClaim := time.Now().Add(-c.cfg.ClaimInterval)
	for !c.stopped(ctx) {
		c.retryPending(ctx, true)
		if time.Since(lastClaim) >= c.cfg.ClaimInterval {
			c.retryPending(ctx, false)
			lastClaim = time.Now()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    string(c.cfg.Group),
			Consumer: c.cfg.ConsumerName,
			Streams:  []string{string(c.cfg.Stream), ">"},
			Count:    10,
			Block:    c.cfg.BlockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || c.stopped(ctx) {
				continue
			}
			logger.Error(ctx, "failed to read from stream", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, xmsg := range stream.Messages {
				c.processMessage(ctx, xmsg)
			}
		}
	}
	logger.Info(ctx, "consumer stopped", "stream", c.cfg.Stream)
}

func decodeMessage(xmsg redis.XMessage) (*Message, error) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("message %s has no data field", xmsg.ID)
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", xmsg.ID, err)
	}
	return &msg, nil
}

func (c *Consumer) processMessage(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := tracer.Start(ctx, "consumer.processMessage",
		trace.WithAttributes(
			attribute.String("stream", string(c.cfg.Stream)),
			attribute.String("stream.message_id", xmsg.ID),
		))
	defer span.End()

	msg, err := decodeMessage(xmsg)
	if err != nil {
		logger.Error(ctx, "invalid message format", err, "message_id", xmsg.ID)
		c.record("invalid")
		c.ack(ctx, xmsg.ID)
		return
	}

	if reqID := msg.GetMetadata("request_id"); reqID != "" {
		ctx = logger.WithContext(ctx, logger.RequestIDKey, reqID)
	}
	if videoID := msg.GetMetadata("video_id"); videoID != "" {
		ctx = logger.WithContext(ctx, logger.VideoIDKey, videoID)
	}
	span.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("message.type", msg.Type),
	)

	c.mu.RLock()
	handler, ok := c.handlers[msg.Type]
	c.mu.RUnlock()
	if !ok {
		logger.Warn(ctx, "no handler for message type", "type", msg.Type)
		c.record("unhandled")
		c.ack(ctx, xmsg.ID)
		return
	}

	if err := handler(ctx, msg); err != nil {
		span.RecordError(err)
		logger.Error(ctx, "handler failed", err, "message_id", msg.ID)
		c.record("failed")
		c.handleFailure(ctx, xmsg.ID, msg, err)
		return
	}
	c.record("success")
	c.ack(ctx, xmsg.ID)
}

func (c *Consumer) record(status string) {
	metrics.RedisStreamProcessed.WithLabelValues(string(c.cfg.Stream), status).Inc()
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, string(c.cfg.Stream), string(c.cfg.Group), id).Err(); err != nil {
		logger.Error(ctx, "failed to ack message", err, "message_id", id)
	}
}

func (c *Consumer) handleFailure(ctx context.Context, streamID string, msg *Message, err error) {
	retryCount := c.deliveryCount(ctx, streamID)
	if retryCount >= c.cfg.RetryLimit {
		logger.Warn(ctx, "message moved to DLQ after max retries",
			"message_id", msg.ID,
			"retry_count", retryCount,
		)
		c.moveToDLQ(ctx, msg, err)
		c.ack(ctx, streamID)
		return
	}
	logger.Info(ctx, "message left pending for retry",
		"message_id", msg.ID,
		"retry_count", retryCount,
	)
}

// deliveryCount 通过 XPENDING 获取投递次数
func (c *Consumer) deliveryCount(ctx context.Context, streamID string) int {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: string(c.cfg.Stream),
		Group:  string(c.cfg.Group),
		Start:  streamID,
		End:    streamID,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 0
	}
	return int(pending[0].RetryCount)
}

func (c *Consumer) moveToDLQ(ctx context.Context, msg *Message, cause error) {
	data, _ := json.Marshal(map[string]any{
		"original_stream": string(c.cfg.Stream),
		"data":            msg,
		"error":           cause.Error(),
		"failed_at":       time.Now().Unix(),
	})
	err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream.DLQStream(),
		Values: map[string]any{"data": string(data)},
	}).Err()
	if err != nil {
		logger.Error(ctx, "failed to write DLQ", err, "message_id", msg.ID)
	}
	c.record("dlq")
}

// retryPending 重投 PEL 中的消息
// own=true 处理本消费者已到退避时间的消息；own=false 接管其他消费者长时间未确认的消息。
func (c *Consumer) retryPending(ctx context.Context, own bool) {
	args := &redis.XPendingExtArgs{
		Stream: string(c.cfg.Stream),
		Group:  string(c.cfg.Group),
		Start:  "-",
		End:    "+",
		Count:  20,
	}
	if own {
		args.Consumer = c.cfg.ConsumerName
	}
	pending, err := c.client.XPendingExt(ctx, args).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !c.stopped(ctx) {
			logger.Error(ctx, "failed to query pending messages", err)
		}
		return
	}

	for _, p := range pending {
		if c.stopped(ctx) {
			return
		}
		minIdle := c.reclaimIdle
		if own {
			minIdle = c.cfg.Backoff.CalculateBackoff(int(p.RetryCount))
		} else if p.Consumer == c.cfg.ConsumerName {
			continue
		}
		exhausted := int(p.RetryCount) >= c.cfg.RetryLimit
		if exhausted {
			minIdle = 0
			if !own {
				minIdle = c.reclaimIdle
			}
		}
		if p.Idle < minIdle {
			continue
		}

		claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   string(c.cfg.Stream),
			Group:    string(c.cfg.Group),
			Consumer: c.cfg.ConsumerName,
			MinIdle:  minIdle,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			logger.Error(ctx, "failed to claim pending message", err, "message_id", p.ID)
			continue
		}

		for _, xmsg := range claimed {
			if !exhausted {
				c.processMessage(ctx, xmsg)
				continue
			}
			if msg, err := decodeMessage(xmsg); err == nil {
				c.moveToDLQ(ctx, msg, fmt.Errorf("message exceeded max retries"))
			}
			c.ack(ctx, xmsg.ID)
		}
	}
}

// MonitorDLQ 定期检查死信队列长度
func (c *Consumer) MonitorDLQ(ctx context.Context, alertThreshold int64) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dlq := c.cfg.Stream.DLQStream()
			n, err := c.client.XLen(ctx, dlq).Result()
			if err != nil {
				continue
			}
			if n > alertThreshold {
				logger.Warn(ctx, "DLQ has pending messages", "stream", dlq, "count", n)
			}
		}
	}
}
