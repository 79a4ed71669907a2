package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vidsum-ai-api/internal/application/knowledge"
	"vidsum-ai-api/internal/domain/service"
	"vidsum-ai-api/internal/interfaces/http/dto"
	"vidsum-ai-api/pkg/errors"
	"vidsum-ai-api/pkg/logger"
)

// KeywordSearcher 知识库关键词检索
type KeywordSearcher interface {
	FindByKeyword(ctx context.Context, keyword string) (*knowledge.SearchResult, error)
}

// FocusedSummarizer 关键词聚焦摘要
type FocusedSummarizer interface {
	Summarize(ctx context.Context, text, keyword string) (*service.FocusedSummary, error)
}

// SearchHandler 检索处理器
type SearchHandler struct {
	searcher KeywordSearcher
	focused  FocusedSummarizer
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(searcher KeywordSearcher, focused FocusedSummarizer) *SearchHandler {
	return &SearchHandler{searcher: searcher, focused: focused}
}

// KeywordSummarize 按关键词检索已处理视频
// 无结果时以 200 返回 {error}
// @Summary 关键词检索
// @Tags Search
// @Produce json
// @Param q query string true "关键词"
// @Success 200 {object} dto.KeywordSummaryResponse
// @Router /keyword_summarize [get]
func (h *SearchHandler) KeywordSummarize(c *gin.Context) {
	ctx := c.Request.Context()
	q := c.Query("q")

	res, err := h.searcher.FindByKeyword(ctx, q)
	if err != nil {
		msg := fmt.Sprintf("No video found for keyword %q", q)
		switch {
		case errors.Is(err, errors.ErrInvalidParam):
			msg = "query parameter 'q' is required"
		case errors.Is(err, errors.ErrNotFound):
		default:
			logger.Error(ctx, "keyword search failed", err, "query", q)
		}
		c.JSON(http.StatusOK, dto.SearchErrorResponse{Error: msg})
		return
	}
	c.JSON(http.StatusOK, dto.ToKeywordSummaryResponse(res))
}

// FocusedSummarize 对任意文本做关键词聚焦摘要
// @Summary 关键词聚焦摘要
// @Tags Search
// @Accept json
// @Produce json
// @Param body body dto.FocusedSummaryRequest true "文本与关键词"
// @Success 200 {object} dto.FocusedSummaryResponse
// @Router /v1/keyword_summarize [post]
func (h *SearchHandler) FocusedSummarize(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.FocusedSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" || strings.TrimSpace(req.Keyword) == "" {
		c.JSON(http.StatusOK, dto.SearchErrorResponse{Error: "Text and keyword are required"})
		return
	}

	out, err := h.focused.Summarize(ctx, req.Text, req.Keyword)
	if err != nil {
		logger.Error(ctx, "focused summary failed", err, "keyword", req.Keyword)
		dto.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToFocusedSummaryResponse(out))
}
