// Package service 定义领域层依赖的外部能力契约
package service

import (
	"context"

	"vidsum-ai-api/internal/domain/entity"
)

// AudioExtractor 从视频容器中提取可解码音频
type AudioExtractor interface {
	// Extract 返回生成的音频文件路径，调用方负责清理
	Extract(ctx context.Context, videoPath string) (string, error)
}

// Transcriber 语音转写能力
type Transcriber interface {
	// Transcribe 返回按时间排序的转录片段
	Transcribe(ctx context.Context, audioPath string) ([]entity.Span, error)
}

// Summarizer 抽象式摘要能力
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Extraction 一次抽取调用的结果，要点按显著性排序
type Extraction struct {
	KeyPoints []string          `json:"key_points"`
	Entities  []entity.Entity   `json:"entities"`
	Relations []entity.Relation `json:"relations"`
}

// Extractor 要点与实体关系抽取能力
type Extractor interface {
	Extract(ctx context.Context, text string) (*Extraction, error)
}

// FocusedSummary 围绕关键词的摘要
type FocusedSummary struct {
	Topic           string   `json:"topic"`
	Summary         string   `json:"summary"`
	KeyPoints       []string `json:"key_points"`
	RelatedConcepts []string `json:"related_concepts"`
}

// OutputParseError 模型有回复但无法解析为约定结构，Raw 为原始回复
type OutputParseError struct {
	Raw string
	Err error
}

func (e *OutputParseError) Error() string {
	return "failed to parse model output: " + e.Err.Error()
}

func (e *OutputParseError) Unwrap() error {
	return e.Err
}

// FocusedSummarizer 关键词聚焦摘要能力
type FocusedSummarizer interface {
	SummarizeFocused(ctx context.Context, text, keyword string) (*FocusedSummary, error)
}
