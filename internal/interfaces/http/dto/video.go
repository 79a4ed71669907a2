package dto

import (
	"time"

	"vidsum-ai-api/internal/domain/entity"
)

// SegmentSummary 分段主题与要点
type SegmentSummary struct {
	Topic     string   `json:"topic"`
	KeyPoints []string `json:"key_points"`
}

// VideoSummary 整体摘要
type VideoSummary struct {
	OverallSummary string           `json:"overall_summary"`
	Segments       []SegmentSummary `json:"segments"`
}

// SummarizeVideoResponse /summarize_video 响应
type SummarizeVideoResponse struct {
	VideoID     string       `json:"video_id"`
	Status      string       `json:"status"`
	Summary     VideoSummary `json:"summary"`
	MindmapFile string       `json:"mindmap_file"`
	MindmapCode string       `json:"mindmap_code"`
}

// ToSummarizeVideoResponse 转换为 /summarize_video 响应
func ToSummarizeVideoResponse(a *entity.VideoArtifact) *SummarizeVideoResponse {
	segments := make([]SegmentSummary, 0, len(a.Segments))
	for _, s := range a.Segments {
		kp := s.KeyPoints
		if kp == nil {
			kp = []string{}
		}
		segments = append(segments, SegmentSummary{Topic: s.Segment.Topic, KeyPoints: kp})
	}
	return &SummarizeVideoResponse{
		VideoID: a.VideoID,
		Status:  "completed",
		Summary: VideoSummary{
			OverallSummary: a.OverallSummary,
			Segments:       segments,
		},
		MindmapFile: a.MindmapFile,
		MindmapCode: a.MindmapCode,
	}
}

// SpanRequest 转录片段
type SpanRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptRequest 直接提交转录
type TranscriptRequest struct {
	VideoID          string        `json:"video_id" binding:"omitempty,max=64"`
	SourceName       string        `json:"source_name" binding:"omitempty,max=255"`
	Spans            []SpanRequest `json:"spans"`
	ContentAddressed *bool         `json:"content_addressed"`
}

// ToTranscript 转换为领域转录
func (r *TranscriptRequest) ToTranscript() entity.Transcript {
	spans := make([]entity.Span, 0, len(r.Spans))
	for _, s := range r.Spans {
		spans = append(spans, entity.Span{Start: s.Start, End: s.End, Text: s.Text})
	}
	return entity.NewTranscript(spans)
}

// SegmentResponse 分段详情
type SegmentResponse struct {
	Index            int               `json:"index"`
	Topic            string            `json:"topic"`
	Start            float64           `json:"start"`
	End              float64           `json:"end"`
	Summary          string            `json:"summary"`
	KeyPoints        []string          `json:"key_points"`
	Entities         []entity.Entity   `json:"entities"`
	Relations        []entity.Relation `json:"relations"`
	SummaryFallback  bool              `json:"summary_fallback,omitempty"`
	ExtractionFailed bool              `json:"extraction_failed,omitempty"`
}

// VideoResponse 完整产物
type VideoResponse struct {
	VideoID          string            `json:"video_id"`
	SourceName       string            `json:"source_name,omitempty"`
	ContentHash      string            `json:"content_hash"`
	ContentAddressed bool              `json:"content_addressed"`
	OverallTopic     string            `json:"overall_topic"`
	OverallSummary   string            `json:"overall_summary"`
	Segments         []SegmentResponse `json:"segments"`
	MindmapCode      string            `json:"mindmap_code"`
	MindmapFile      string            `json:"mindmap_file"`
	MindmapError     string            `json:"mindmap_error,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// ToVideoResponse 转换为完整产物响应
func ToVideoResponse(a *entity.VideoArtifact) *VideoResponse {
	segments := make([]SegmentResponse, 0, len(a.Segments))
	for _, s := range a.Segments {
		segments = append(segments, SegmentResponse{
			Index:            s.Segment.Index,
			Topic:            s.Segment.Topic,
			Start:            s.Segment.Start,
			End:              s.Segment.End,
			Summary:          s.Summary,
			KeyPoints:        nonNil(s.KeyPoints),
			Entities:         nonNil(s.Entities),
			Relations:        nonNil(s.Relations),
			SummaryFallback:  s.SummaryFallback,
			ExtractionFailed: s.ExtractionFailed,
		})
	}
	return &VideoResponse{
		VideoID:          a.VideoID,
		SourceName:       a.SourceName,
		ContentHash:      a.ContentHash,
		ContentAddressed: a.ContentAddressed,
		OverallTopic:     a.OverallTopic,
		OverallSummary:   a.OverallSummary,
		Segments:         segments,
		MindmapCode:      a.MindmapCode,
		MindmapFile:      a.MindmapFile,
		MindmapError:     a.MindmapError,
		CreatedAt:        a.CreatedAt,
	}
}

// VideoListItem 列表项
type VideoListItem struct {
	VideoID      string    `json:"video_id"`
	SourceName   string    `json:"source_name,omitempty"`
	OverallTopic string    `json:"overall_topic"`
	Segments     int       `json:"segments"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToVideoList 转换为列表
func ToVideoList(items []*entity.VideoArtifact) []VideoListItem {
	out := make([]VideoListItem, 0, len(items))
	for _, a := range items {
		out = append(out, VideoListItem{
			VideoID:      a.VideoID,
			SourceName:   a.SourceName,
			OverallTopic: a.OverallTopic,
			Segments:     len(a.Segments),
			CreatedAt:    a.CreatedAt,
		})
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
