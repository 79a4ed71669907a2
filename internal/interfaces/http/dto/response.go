// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vidsum-ai-api/pkg/errors"
)

// Response 统一响应结构（/v1 路由）
type Response[T any] struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Data    T         `json:"data,omitempty"`
	Meta    *PageMeta `json:"meta,omitempty"`
	TraceID string    `json:"trace_id,omitempty"`
}

// PageMeta 分页元数据
type PageMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// ErrorDetail 错误详情
type ErrorDetail struct {
	ErrorCode string `json:"error_code,omitempty"`
	Details   string `json:"details,omitempty"`
}

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Code      int          `json:"code"`
	Message   string       `json:"message"`
	Error     *ErrorDetail `json:"error,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
	TraceID   string       `json:"trace_id,omitempty"`
}

// Success 返回成功响应
func Success[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, Response[T]{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
		TraceID: c.GetString("trace_id"),
	})
}

// SuccessWithPage 返回带分页的成功响应
func SuccessWithPage[T any](c *gin.Context, data T, meta *PageMeta) {
	c.JSON(http.StatusOK, Response[T]{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
		Meta:    meta,
		TraceID: c.GetString("trace_id"),
	})
}

// Created 返回创建成功响应 (201)
func Created[T any](c *gin.Context, data T) {
	c.JSON(http.StatusCreated, Response[T]{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
		TraceID: c.GetString("trace_id"),
	})
}

// Accepted 返回接受处理响应 (202)
func Accepted[T any](c *gin.Context, data T) {
	c.JSON(http.StatusAccepted, Response[T]{
		Code:    http.StatusAccepted,
		Message: "accepted",
		Data:    data,
		TraceID: c.GetString("trace_id"),
	})
}

// NoContent 返回无内容响应 (204)
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Fail 把错误映射为 ErrorResponse；非 AppError 一律按 500 处理且不暴露内部信息
func Fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	resp := ErrorResponse{
		Code:      status,
		Message:   "internal server error",
		RequestID: c.GetString("request_id"),
		TraceID:   c.GetString("trace_id"),
	}
	if errors.IsAppError(err) {
		appErr := errors.AsAppError(err)
		status = appErr.HTTPStatus
		resp.Code = status
		resp.Message = appErr.Message
		resp.Error = &ErrorDetail{ErrorCode: string(appErr.Code), Details: appErr.Detail}
	}
	c.JSON(status, resp)
}

// NewPageMeta 创建分页元数据
func NewPageMeta(page, pageSize int, total int64, totalPages int) *PageMeta {
	return &PageMeta{Page: page, PageSize: pageSize, Total: total, TotalPages: totalPages}
}
