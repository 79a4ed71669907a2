// Package messaging 基于 Redis Stream 的任务投递
package messaging

import (
	"encoding/json"
	"time"

	"vidsum-ai-api/internal/domain/entity"
)

// 消息类型
const (
	MessageTypeTranscriptProcess = "transcript_process"
)

// Message 消息结构
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage 创建新消息
func NewMessage(id, msgType string, payload any) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:        id,
		Type:      msgType,
		Payload:   payloadBytes,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now(),
	}, nil
}

// SetMetadata 设置元数据
func (m *Message) SetMetadata(key, value string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

// GetMetadata 获取元数据
func (m *Message) GetMetadata(key string) string {
	return m.Metadata[key]
}

// UnmarshalPayload 解析消息载荷
func (m *Message) UnmarshalPayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// TranscriptJobMessage 转录处理任务
type TranscriptJobMessage struct {
	JobID            string        `json:"job_id"`
	VideoID          string        `json:"video_id,omitempty"`
	SourceName       string        `json:"source_name,omitempty"`
	Spans            []entity.Span `json:"spans"`
	ContentAddressed *bool         `json:"content_addressed,omitempty"`
}

// Stream 流定义
type Stream string

const (
	StreamVideoProcess Stream = "stream:video:process"
)

// DLQStream 对应的死信队列
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup 消费者组
type ConsumerGroup string

// TranscriptWorkerGroup 转录处理消费者组，prefix 为空时使用 "cg-"
func TranscriptWorkerGroup(prefix string) ConsumerGroup {
	if prefix == "" {
		prefix = "cg-"
	}
	return ConsumerGroup(prefix + "transcript-worker")
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig 默认退避配置
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// CalculateBackoff 计算第 retryCount 次重投前的等待时间
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	backoff := c.Initial
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * c.Multiplier)
		if backoff > c.Max {
			return c.Max
		}
	}
	return backoff
}
