package messaging

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsum-ai-api/internal/domain/entity"
)

func TestBackoffConfig(t *testing.T) {
	b := BackoffConfig{Initial: time.Second, Max: 5 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, b.CalculateBackoff(0))
	assert.Equal(t, 2*time.Second, b.CalculateBackoff(1))
	assert.Equal(t, 4*time.Second, b.CalculateBackoff(2))
	assert.Equal(t, 5*time.Second, b.CalculateBackoff(3))
	assert.Equal(t, 5*time.Second, b.CalculateBackoff(10))
}

func TestStreamNames(t *testing.T) {
	assert.Equal(t, "dlq:stream:video:process", StreamVideoProcess.DLQStream())
	assert.Equal(t, ConsumerGroup("cg-transcript-worker"), TranscriptWorkerGroup(""))
	assert.Equal(t, ConsumerGroup("vidsum-transcript-worker"), TranscriptWorkerGroup("vidsum-"))
}

func TestTranscriptJobMessage(t *testing.T) {
	job := &TranscriptJobMessage{
		JobID:   "j1",
		VideoID: "v1",
		Spans:   []entity.Span{{Start: 0, End: 1, Text: "hello"}},
	}
	msg, err := NewMessage(job.JobID, MessageTypeTranscriptProcess, job)
	require.NoError(t, err)
	assert.Equal(t, "j1", msg.ID)
	assert.Equal(t, MessageTypeTranscriptProcess, msg.Type)

	var got TranscriptJobMessage
	require.NoError(t, msg.UnmarshalPayload(&got))
	assert.Equal(t, job.Spans, got.Spans)
	assert.Nil(t, got.ContentAddressed)
}

func TestDecodeMessage(t *testing.T) {
	_, err := decodeMessage(redis.XMessage{ID: "1-0", Values: map[string]any{}})
	assert.Error(t, err)

	_, err = decodeMessage(redis.XMessage{ID: "1-0", Values: map[string]any{"data": "{"}})
	assert.Error(t, err)

	msg, err := decodeMessage(redis.XMessage{ID: "1-0", Values: map[string]any{
		"data": `{"id":"j1","type":"transcript_process","payload":{},"metadata":{"video_id":"v1"}}`,
	}})
	require.NoError(t, err)
	assert.Equal(t, "v1", msg.GetMetadata("video_id"))
	assert.Equal(t, "", msg.GetMetadata("missing"))
}
