package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"vidsum-ai-api/internal/domain/entity"
	apperrors "vidsum-ai-api/pkg/errors"
	"vidsum-ai-api/pkg/textutil"
)

// SegmenterConfig 分段器参数
type SegmenterConfig struct {
	// WindowSpans 计算漂移时边界两侧各取的片段数
	WindowSpans int
	// DriftThreshold 漂移（1 - 余弦相似度）达到该值时切分
	DriftThreshold float64
	// MinSegmentSpans 按漂移切分前当前分段至少包含的片段数
	MinSegmentSpans int
	// MaxSegmentDuration 与 MaxSegmentWords 为兜底切分条件，<=0 表示不限制
	MaxSegmentDuration time.Duration
	MaxSegmentWords    int
	// TopicTerms 主题标签最多包含的词数
	TopicTerms int
	Timeout    time.Duration
}

// DefaultSegmenterConfig 默认分段参数
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		WindowSpans:        2,
		DriftThreshold:     0.65,
		MinSegmentSpans:    1,
		MaxSegmentDuration: 5 * time.Minute,
		MaxSegmentWords:    700,
		TopicTerms:         3,
		Timeout:            30 * time.Second,
	}
}

// Segmenter 基于词频漂移的主题分段器
type Segmenter struct {
	cfg SegmenterConfig
}

// NewSegmenter 创建分段器，非法参数回落到默认值
func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	def := DefaultSegmenterConfig()
	if cfg.WindowSpans < 1 {
		cfg.WindowSpans = def.WindowSpans
	}
	if cfg.DriftThreshold <= 0 || cfg.DriftThreshold > 1 {
		cfg.DriftThreshold = def.DriftThreshold
	}
	if cfg.MinSegmentSpans < 1 {
		cfg.MinSegmentSpans = def.MinSegmentSpans
	}
	if cfg.TopicTerms < 1 {
		cfg.TopicTerms = def.TopicTerms
	}
	return &Segmenter{cfg: cfg}
}

// Segment 将转录切分为按时间排序、首尾相接的分段
// 分段边界只落在片段边界上；首段起于转录起点，末段止于转录终点。
func (s *Segmenter) Segment(ctx context.Context, tr entity.Transcript) ([]entity.Segment, error) {
	if err := tr.Validate(); err != nil {
		return nil, err
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	spans := tr.Spans
	tf := make([]map[string]float64, len(spans))
	words := make([]int, len(spans))
	for i, sp := range spans {
		tf[i] = termFreq(textutil.ContentTokens(sp.Text))
		words[i] = len(strings.Fields(sp.Text))
	}

	// bounds[k] 为第 k 个分段的起始片段下标
	bounds := []int{0}
	curWords := words[0]
	for i := 1; i < len(spans); i++ {
		if err := ctx.Err(); err != nil {
			return nil, segmentCtxError(err)
		}

		start := bounds[len(bounds)-1]
		cut := false

		if i-start >= s.cfg.MinSegmentSpans && s.drift(tf, i) >= s.cfg.DriftThreshold {
			cut = true
		}
		if s.cfg.MaxSegmentDuration > 0 && spans[i].End-spans[start].Start > s.cfg.MaxSegmentDuration.Seconds() {
			cut = true
		}
		if s.cfg.MaxSegmentWords > 0 && curWords+words[i] > s.cfg.MaxSegmentWords {
			cut = true
		}

		if cut {
			bounds = append(bounds, i)
			curWords = 0
		}
		curWords += words[i]
	}

	segments := make([]entity.Segment, len(bounds))
	for k, from := range bounds {
		to := len(spans)
		end := tr.End()
		if k+1 < len(bounds) {
			to = bounds[k+1]
			end = spans[to].Start
		}
		begin := spans[from].Start
		if k == 0 {
			begin = tr.Start()
		}

		segSpans := spans[from:to]
		segments[k] = entity.Segment{
			Index:    k,
			Topic:    topicLabel(segSpans, s.cfg.TopicTerms, k),
			Start:    begin,
			End:      end,
			Text:     entity.JoinSpanText(segSpans),
			SpanFrom: from,
			SpanTo:   to,
		}
	}
	return segments, nil
}

// drift 计算边界 i（片段 i-1 与 i 之间）两侧窗口的词频余弦距离
// 任一侧没有实词时视为无漂移
func (s *Segmenter) drift(tf []map[string]float64, i int) float64 {
	lo := max(0, i-s.cfg.WindowSpans)
	hi := min(len(tf), i+s.cfg.WindowSpans)

	left := mergeFreq(tf[lo:i])
	right := mergeFreq(tf[i:hi])
	if len(left) == 0 || len(right) == 0 {
		return 0
	}
	return 1 - cosine(left, right)
}

func segmentCtxError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrCapabilityTimeout.WithDetail("segmentation exceeded its time budget").WithError(err)
	}
	return apperrors.ErrJobCancelled.WithError(err)
}

func termFreq(tokens []string) map[string]float64 {
	m := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		m[t]++
	}
	return m
}

func mergeFreq(vs []map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	for _, v := range vs {
		for k, c := range v {
			out[k] += c
		}
	}
	return out
}

func cosine(a, b map[string]float64) float64 {
	var dot, na, nb float64
	for k, x := range a {
		na += x * x
		if y, ok := b[k]; ok {
			dot += x * y
		}
	}
	for _, y := range b {
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// topicLabel 取出现次数最多的实词作为主题，同频按首次出现顺序
func topicLabel(spans []entity.Span, n int, index int) string {
	counts := make(map[string]int)
	var order []string
	for _, sp := range spans {
		for _, tok := range textutil.ContentTokens(sp.Text) {
			if _, ok := counts[tok]; !ok {
				order = append(order, tok)
			}
			counts[tok]++
		}
	}
	if len(order) == 0 {
		return fallbackTopic(index)
	}

	ranked := make([]string, len(order))
	copy(ranked, order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return strings.Join(ranked, " ")
}

func fallbackTopic(index int) string {
	return fmt.Sprintf("Segment %d", index+1)
}
