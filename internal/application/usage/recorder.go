// Package usage 汇总 LLM 调用的 token 用量
package usage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"vidsum-ai-api/internal/domain/service"
	"vidsum-ai-api/pkg/logger"
	"vidsum-ai-api/pkg/metrics"
)

// Totals 累计用量
type Totals struct {
	Calls            int64 `json:"calls"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Recorder 将用量写入指标并按阶段累计
type Recorder struct {
	mu      sync.Mutex
	byStage map[string]Totals
}

// NewRecorder 创建用量记录器
func NewRecorder() *Recorder {
	return &Recorder{byStage: make(map[string]Totals)}
}

// Record 记录一次调用
func (r *Recorder) Record(ctx context.Context, in service.LLMUsageInput) error {
	if r == nil {
		return nil
	}
	if in.PromptTokens < 0 || in.CompletionTokens < 0 {
		return fmt.Errorf("invalid token usage")
	}

	stage := strings.TrimSpace(in.Stage)
	provider := strings.TrimSpace(in.Provider)
	model := strings.TrimSpace(in.Model)

	metrics.LLMTokensTotal.WithLabelValues(provider, model, stage, "prompt").Add(float64(in.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(provider, model, stage, "completion").Add(float64(in.CompletionTokens))

	r.mu.Lock()
	t := r.byStage[stage]
	t.Calls++
	t.PromptTokens += int64(in.PromptTokens)
	t.CompletionTokens += int64(in.CompletionTokens)
	r.byStage[stage] = t
	r.mu.Unlock()

	logger.Debug(ctx, "llm usage recorded",
		"stage", stage,
		"provider", provider,
		"model", model,
		"prompt_tokens", in.PromptTokens,
		"completion_tokens", in.CompletionTokens,
		"duration_ms", in.DurationMs,
	)
	return nil
}

// Snapshot 返回按阶段的累计用量副本
func (r *Recorder) Snapshot() map[string]Totals {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Totals, len(r.byStage))
	for k, v := range r.byStage {
		out[k] = v
	}
	return out
}
