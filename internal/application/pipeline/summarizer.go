package pipeline

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/domain/service"
	"vidsum-ai-api/pkg/logger"
	"vidsum-ai-api/pkg/metrics"
	"vidsum-ai-api/pkg/textutil"
)

// defaultRelationLabel 抽取结果缺少关系名时使用
const defaultRelationLabel = "related to"

// SegmentSummarizer 对单个分段并发调用摘要与抽取能力
type SegmentSummarizer struct {
	summarizer    service.Summarizer
	extractor     service.Extractor
	policy        CallPolicy
	fallbackRunes int
}

// NewSegmentSummarizer 创建分段摘要器
func NewSegmentSummarizer(summarizer service.Summarizer, extractor service.Extractor, policy CallPolicy, fallbackRunes int) *SegmentSummarizer {
	if fallbackRunes <= 0 {
		fallbackRunes = 300
	}
	return &SegmentSummarizer{
		summarizer:    summarizer,
		extractor:     extractor,
		policy:        policy,
		fallbackRunes: fallbackRunes,
	}
}

// SummarizeSegment 生成分段结果，能力失败时按分段降级，从不返回错误
func (s *SegmentSummarizer) SummarizeSegment(ctx context.Context, seg entity.Segment) entity.SegmentResult {
	result := entity.SegmentResult{
		Segment:   seg,
		KeyPoints: []string{},
		Entities:  []entity.Entity{},
		Relations: []entity.Relation{},
	}

	if strings.TrimSpace(seg.Text) == "" {
		result.Summary = seg.Topic
		result.SummaryFallback = true
		return result
	}

	var (
		summary    string
		summaryErr error
		extraction *service.Extraction
		extractErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		summary, summaryErr = Invoke(service.WithStage(ctx, service.StageSegmentSummary), "summarize", s.policy,
			func(ctx context.Context) (string, error) {
				return s.summarizer.Summarize(ctx, seg.Text)
			})
		return nil
	})
	g.Go(func() error {
		extraction, extractErr = Invoke(service.WithStage(ctx, service.StageExtraction), "extract", s.policy,
			func(ctx context.Context) (*service.Extraction, error) {
				return s.extractor.Extract(ctx, seg.Text)
			})
		return nil
	})
	_ = g.Wait()

	summary = strings.TrimSpace(summary)
	if summaryErr != nil || summary == "" {
		reason := "empty summary"
		if summaryErr != nil {
			reason = summaryErr.Error()
		}
		logger.Warn(ctx, "segment summary fallback", "reason", reason)
		metrics.SegmentFallbackTotal.WithLabelValues("summary").Inc()
		summary = textutil.TruncateWithEllipsis(seg.Text, s.fallbackRunes)
		result.SummaryFallback = true
	}
	result.Summary = summary

	if extractErr != nil || extraction == nil {
		reason := "nil extraction"
		if extractErr != nil {
			reason = extractErr.Error()
		}
		logger.Warn(ctx, "segment extraction failed", "reason", reason)
		metrics.SegmentFallbackTotal.WithLabelValues("extraction").Inc()
		result.ExtractionFailed = true
		return result
	}

	result.KeyPoints = DedupeKeyPoints(extraction.KeyPoints)
	result.Entities, result.Relations = reconcileGraph(extraction.Entities, extraction.Relations)
	return result
}

// DedupeKeyPoints 去除空白与大小写不敏感的重复要点，保持原有显著性顺序
func DedupeKeyPoints(points []string) []string {
	seen := make(map[string]struct{}, len(points))
	out := make([]string, 0, len(points))
	for _, p := range points {
		p = textutil.CollapseSpaces(p)
		if p == "" {
			continue
		}
		k := strings.ToLower(p)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}

// reconcileGraph 去重实体与关系，并保证每个关系端点都出现在实体列表中
// 端点先按 (label, kind) 再按标签匹配已有实体；找不到时按端点类型追加，未给类型的记为 concept
func reconcileGraph(entities []entity.Entity, relations []entity.Relation) ([]entity.Entity, []entity.Relation) {
	ents := entity.DedupeEntities(entities)

	resolver := entity.NewEntityResolver(ents)
	resolve := func(e entity.Entity) entity.Entity {
		known, ok := resolver.Resolve(e.Label, string(e.Kind))
		if ok {
			return known
		}
		resolver.Add(known)
		ents = append(ents, known)
		return known
	}

	rels := make([]entity.Relation, 0, len(relations))
	for _, r := range relations {
		if strings.TrimSpace(r.Source.Label) == "" || strings.TrimSpace(r.Target.Label) == "" {
			continue
		}
		r.Source = resolve(r.Source)
		r.Target = resolve(r.Target)
		if strings.TrimSpace(r.Label) == "" {
			r.Label = defaultRelationLabel
		}
		rels = append(rels, r)
	}
	return ents, entity.DedupeRelations(rels)
}
