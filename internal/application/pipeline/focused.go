package pipeline

import (
	"context"
	stderrors "errors"
	"strings"

	"vidsum-ai-api/internal/domain/service"
	apperrors "vidsum-ai-api/pkg/errors"
	"vidsum-ai-api/pkg/logger"
	"vidsum-ai-api/pkg/textutil"
)

// ParsingErrorTopic 模型输出无法解析时返回的主题
const ParsingErrorTopic = "Parsing Error"

// FocusedService 针对任意文本的关键词聚焦摘要
type FocusedService struct {
	summarizer    service.FocusedSummarizer
	policy        CallPolicy
	fallbackRunes int
}

// NewFocusedService 创建关键词聚焦摘要服务
func NewFocusedService(summarizer service.FocusedSummarizer, policy CallPolicy, fallbackRunes int) *FocusedService {
	if fallbackRunes <= 0 {
		fallbackRunes = 300
	}
	return &FocusedService{summarizer: summarizer, policy: policy, fallbackRunes: fallbackRunes}
}

// Summarize 围绕 keyword 总结 text
// 模型回复无法解析时降级为 "Parsing Error" 主题加截断的原始回复；调用失败、超时与取消直接返回错误。
func (s *FocusedService) Summarize(ctx context.Context, text, keyword string) (*service.FocusedSummary, error) {
	text = strings.TrimSpace(text)
	keyword = strings.TrimSpace(keyword)
	if text == "" || keyword == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("text and keyword are required")
	}

	out, err := Invoke(service.WithStage(ctx, service.StageFocusedSummary), "summarize_focused", s.policy,
		func(ctx context.Context) (*service.FocusedSummary, error) {
			return s.summarizer.SummarizeFocused(ctx, text, keyword)
		})
	if err != nil {
		var perr *service.OutputParseError
		if stderrors.As(err, &perr) {
			logger.Warn(ctx, "focused summary output unparseable, using raw output", "keyword", keyword, "error", err.Error())
			return s.fallback(perr.Raw), nil
		}
		return nil, err
	}
	if out == nil {
		return nil, apperrors.ErrCapabilityFailed.WithDetail("empty focused summary")
	}

	out.Topic = strings.TrimSpace(out.Topic)
	if out.Topic == "" {
		out.Topic = keyword
	}
	out.KeyPoints = DedupeKeyPoints(out.KeyPoints)
	out.RelatedConcepts = DedupeKeyPoints(out.RelatedConcepts)
	return out, nil
}

func (s *FocusedService) fallback(raw string) *service.FocusedSummary {
	return &service.FocusedSummary{
		Topic:           ParsingErrorTopic,
		Summary:         textutil.TruncateByRunes(strings.TrimSpace(raw), s.fallbackRunes),
		KeyPoints:       []string{},
		RelatedConcepts: []string{},
	}
}
