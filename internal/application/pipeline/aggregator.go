package pipeline

import (
	"context"
	"strings"

	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/domain/service"
	"vidsum-ai-api/pkg/logger"
	"vidsum-ai-api/pkg/metrics"
	"vidsum-ai-api/pkg/textutil"
)

// UntitledTopic 无法确定整体主题时使用
const UntitledTopic = "Untitled"

// Aggregator 将分段摘要合并为整体摘要与主题
type Aggregator struct {
	summarizer    service.Summarizer
	policy        CallPolicy
	fallbackRunes int
}

// NewAggregator 创建聚合器
func NewAggregator(summarizer service.Summarizer, policy CallPolicy, fallbackRunes int) *Aggregator {
	if fallbackRunes <= 0 {
		fallbackRunes = 300
	}
	return &Aggregator{summarizer: summarizer, policy: policy, fallbackRunes: fallbackRunes}
}

// Aggregate 返回整体摘要与整体主题
// 整体摘要是对分段摘要的二次摘要，从不直接使用原始转录。
func (a *Aggregator) Aggregate(ctx context.Context, results []entity.SegmentResult) (string, string) {
	topic := OverallTopic(results)

	parts := make([]string, 0, len(results))
	for _, r := range results {
		if s := strings.TrimSpace(r.Summary); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", topic
	}
	joined := strings.Join(parts, "\n\n")

	summary, err := Invoke(service.WithStage(ctx, service.StageOverallSummary), "summarize", a.policy,
		func(ctx context.Context) (string, error) {
			return a.summarizer.Summarize(ctx, joined)
		})
	summary = strings.TrimSpace(summary)
	if err != nil || summary == "" {
		reason := "empty summary"
		if err != nil {
			reason = err.Error()
		}
		logger.Warn(ctx, "overall summary fallback", "reason", reason)
		metrics.SegmentFallbackTotal.WithLabelValues("overall_summary").Inc()
		summary = textutil.TruncateWithEllipsis(joined, a.fallbackRunes*4)
	}
	return summary, topic
}

// OverallTopic 选出整体主题
// 出现次数最多的分段主题胜出（归一化比较）；并列时首段主题优先，否则取最早出现者。
func OverallTopic(results []entity.SegmentResult) string {
	if len(results) == 0 {
		return UntitledTopic
	}

	type tally struct {
		label string
		count int
		first int
	}
	counts := make(map[string]*tally)
	var order []string
	for i, r := range results {
		label := strings.TrimSpace(r.Segment.Topic)
		if label == "" {
			label = fallbackTopic(r.Segment.Index)
		}
		key := textutil.Normalize(label)
		if key == "" {
			key = strings.ToLower(label)
		}
		t, ok := counts[key]
		if !ok {
			t = &tally{label: label, first: i}
			counts[key] = t
			order = append(order, key)
		}
		t.count++
	}

	best := 0
	for _, t := range counts {
		best = max(best, t.count)
	}
	firstKey := order[0]
	if counts[firstKey].count == best {
		return counts[firstKey].label
	}
	for _, k := range order {
		if counts[k].count == best {
			return counts[k].label
		}
	}
	return UntitledTopic
}
