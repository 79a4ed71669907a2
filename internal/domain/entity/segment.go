package entity

// Segment 转录中主题连贯的连续区间，覆盖片段 [SpanFrom, SpanTo)
type Segment struct {
	Index    int     `json:"index"`
	Topic    string  `json:"topic"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Text     string  `json:"text"`
	SpanFrom int     `json:"span_from"`
	SpanTo   int     `json:"span_to"`
}

// Duration 分段时长
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// SegmentResult 单个分段的摘要、要点与抽取结果
type SegmentResult struct {
	Segment   Segment    `json:"segment"`
	Summary   string     `json:"summary"`
	KeyPoints []string   `json:"key_points"`
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`

	// SummaryFallback 摘要能力失败或返回空白时，摘要为截断后的原文
	SummaryFallback bool `json:"summary_fallback,omitempty"`
	// ExtractionFailed 抽取能力失败，要点与实体为空
	ExtractionFailed bool `json:"extraction_failed,omitempty"`
}
