package pipeline

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/domain/service"
	apperrors "vidsum-ai-api/pkg/errors"
)

type summarizerFunc func(ctx context.Context, text string) (string, error)

func (f summarizerFunc) Summarize(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

type extractorFunc func(ctx context.Context, text string) (*service.Extraction, error)

func (f extractorFunc) Extract(ctx context.Context, text string) (*service.Extraction, error) {
	return f(ctx, text)
}

// firstSentence 确定性的摘要桩：取首句
func firstSentence(_ context.Context, text string) (string, error) {
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		return text[:i+1], nil
	}
	return text, nil
}

func noExtraction(context.Context, string) (*service.Extraction, error) {
	return &service.Extraction{}, nil
}

type memoryWriter struct {
	mu        sync.Mutex
	artifacts []*entity.VideoArtifact
	err       error
}

func (w *memoryWriter) Put(_ context.Context, a *entity.VideoArtifact) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.artifacts = append(w.artifacts, a)
	return nil
}

func (w *memoryWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.artifacts)
}

type memoryFiles struct {
	mu       sync.Mutex
	files    map[string]string
	removed  []string
	writeErr error
}

func newMemoryFiles() *memoryFiles {
	return &memoryFiles{files: make(map[string]string)}
}

func (m *memoryFiles) SaveUpload(_ context.Context, filename string, r io.Reader, maxBytes int64) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", apperrors.ErrMalformedUpload
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	path := "uploads/" + filename
	m.files[path] = string(data)
	return path, nil
}

func (m *memoryFiles) WriteMindmap(_ context.Context, videoID, code string) (string, error) {
	if m.writeErr != nil {
		return "", m.writeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	path := "outputs/" + videoID + "_mindmap.mmd"
	m.files[path] = code
	return path, nil
}

func (m *memoryFiles) Remove(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	m.removed = append(m.removed, path)
	return nil
}

type audioFunc func(ctx context.Context, videoPath string) (string, error)

func (f audioFunc) Extract(ctx context.Context, videoPath string) (string, error) {
	return f(ctx, videoPath)
}

type transcriberFunc func(ctx context.Context, audioPath string) ([]entity.Span, error)

func (f transcriberFunc) Transcribe(ctx context.Context, audioPath string) ([]entity.Span, error) {
	return f(ctx, audioPath)
}

// countingSummarizer 记录调用次数与最大并发数
type countingSummarizer struct {
	calls    atomic.Int32
	inflight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (c *countingSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	c.calls.Add(1)
	n := c.inflight.Add(1)
	defer c.inflight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return firstSentence(ctx, text)
}

func spans(texts ...string) []entity.Span {
	out := make([]entity.Span, len(texts))
	for i, t := range texts {
		out[i] = entity.Span{Start: float64(i * 10), End: float64(i*10 + 10), Text: t}
	}
	return out
}

func testPolicy() CallPolicy {
	return CallPolicy{Timeout: time.Second, MaxRetries: 1}
}

func testConfig() Config {
	seg := DefaultSegmenterConfig()
	return Config{
		Segmenter:            seg,
		MaxConcurrentCalls:   2,
		Call:                 testPolicy(),
		FallbackSummaryRunes: 300,
	}
}
