package dto

import (
	"vidsum-ai-api/internal/application/knowledge"
	"vidsum-ai-api/internal/domain/service"
)

// KeywordSummaryResponse GET /keyword_summarize 命中结果
type KeywordSummaryResponse struct {
	Topic     string   `json:"topic"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

// SearchErrorResponse 检索无结果，以 200 返回便于调用方内联展示
type SearchErrorResponse struct {
	Error string `json:"error"`
}

// ToKeywordSummaryResponse 转换检索结果
func ToKeywordSummaryResponse(r *knowledge.SearchResult) *KeywordSummaryResponse {
	return &KeywordSummaryResponse{
		Topic:     r.Topic,
		Summary:   r.Summary,
		KeyPoints: nonNil(r.KeyPoints),
	}
}

// FocusedSummaryRequest 关键词聚焦摘要请求
type FocusedSummaryRequest struct {
	Text    string `json:"text"`
	Keyword string `json:"keyword"`
}

// FocusedSummaryResponse 关键词聚焦摘要响应
type FocusedSummaryResponse struct {
	Topic           string   `json:"topic"`
	Summary         string   `json:"summary"`
	KeyPoints       []string `json:"key_points"`
	RelatedConcepts []string `json:"related_concepts"`
}

// ToFocusedSummaryResponse 转换聚焦摘要
func ToFocusedSummaryResponse(s *service.FocusedSummary) *FocusedSummaryResponse {
	return &FocusedSummaryResponse{
		Topic:           s.Topic,
		Summary:         s.Summary,
		KeyPoints:       nonNil(s.KeyPoints),
		RelatedConcepts: nonNil(s.RelatedConcepts),
	}
}
