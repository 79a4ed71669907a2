package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyStage    llmCtxKey = "llm_stage"
	llmCtxKeyProvider llmCtxKey = "llm_provider"
)

// 流水线阶段名，用于日志与用量指标打点
const (
	StageSegmentSummary = "segment_summary"
	StageExtraction     = "extraction"
	StageOverallSummary = "overall_summary"
	StageFocusedSummary = "focused_summary"
	StageTranscription  = "transcription"
)

func WithStage(ctx context.Context, stage string) context.Context {
	if ctx == nil {
		return nil
	}
	s := strings.TrimSpace(stage)
	if s == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyStage, s)
}

func WithProvider(ctx context.Context, provider string) context.Context {
	if ctx == nil {
		return nil
	}
	p := strings.TrimSpace(provider)
	if p == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyProvider, p)
}

func StageFromContext(ctx context.Context) string {
	return stringFromContext(ctx, llmCtxKeyStage)
}

func ProviderFromContext(ctx context.Context) string {
	return stringFromContext(ctx, llmCtxKeyProvider)
}

func stringFromContext(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return "unknown"
	}
	s, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return strings.TrimSpace(s)
}
