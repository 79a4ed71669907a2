package entity

import (
	"time"

	"vidsum-ai-api/pkg/textutil"
)

// VideoArtifact 单个视频的处理产物，写入后不可变
type VideoArtifact struct {
	VideoID          string          `json:"video_id"`
	SourceName       string          `json:"source_name,omitempty"`
	ContentHash      string          `json:"content_hash"`
	ContentAddressed bool            `json:"content_addressed"`
	OverallSummary   string          `json:"overall_summary"`
	OverallTopic     string          `json:"overall_topic"`
	Segments         []SegmentResult `json:"segments"`
	Mindmap          *MindmapGraph   `json:"mindmap,omitempty"`
	MindmapCode      string          `json:"mindmap_code"`
	MindmapFile      string          `json:"mindmap_file"`
	MindmapError     string          `json:"mindmap_error,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Topics 返回整体主题与各分段主题（保持顺序，不去重）
func (a *VideoArtifact) Topics() []string {
	out := make([]string, 0, len(a.Segments)+1)
	out = append(out, a.OverallTopic)
	for _, s := range a.Segments {
		out = append(out, s.Segment.Topic)
	}
	return out
}

// KeyPoints 按分段顺序展开全部要点
func (a *VideoArtifact) KeyPoints() []string {
	var out []string
	for _, s := range a.Segments {
		out = append(out, s.KeyPoints...)
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// Tokens 返回用于倒排索引的归一化词元集合（主题与要点）
func (a *VideoArtifact) Tokens() map[string]struct{} {
	set := make(map[string]struct{})
	add := func(s string) {
		for _, tok := range textutil.Tokenize(s) {
			set[tok] = struct{}{}
		}
	}
	for _, t := range a.Topics() {
		add(t)
	}
	for _, kp := range a.KeyPoints() {
		add(kp)
	}
	return set
}
