// Package errors 提供统一的错误定义
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeNotFound           ErrorCode = "1004"
	CodeConflict           ErrorCode = "1005"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 输入错误 (2xxx)
	CodeEmptyInput      ErrorCode = "2001"
	CodeMalformedUpload ErrorCode = "2002"

	// 资源错误 (3xxx)
	CodeArtifactNotFound ErrorCode = "3001"
	CodeArtifactExists   ErrorCode = "3002"
	CodeJobNotFound      ErrorCode = "3003"

	// 流水线错误 (4xxx)
	CodeCapabilityTimeout  ErrorCode = "4001"
	CodeCapabilityFailed   ErrorCode = "4002"
	CodeGraphSerialization ErrorCode = "4003"
	CodeJobCancelled       ErrorCode = "4004"

	// 外部服务错误 (5xxx)
	CodeDatabaseError ErrorCode = "5001"
	CodeCacheError    ErrorCode = "5002"
	CodeStorageError  ErrorCode = "5004"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码匹配，包装后的副本仍能与预定义错误比较
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail 返回带详细信息的副本
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithError 返回带底层错误的副本
func (e *AppError) WithError(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeMalformedUpload:
		return http.StatusBadRequest
	case CodeNotFound, CodeArtifactNotFound, CodeJobNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeArtifactExists:
		return http.StatusConflict
	case CodeEmptyInput:
		return http.StatusUnprocessableEntity
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeCapabilityFailed:
		return http.StatusBadGateway
	case CodeCapabilityTimeout:
		return http.StatusGatewayTimeout
	case CodeServiceUnavailable, CodeJobCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrConflict           = New(CodeConflict, "resource conflict")
	ErrTooManyRequests    = New(CodeTooManyRequests, "too many requests")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrEmptyInput      = New(CodeEmptyInput, "transcript is empty")
	ErrMalformedUpload = New(CodeMalformedUpload, "malformed upload")

	ErrArtifactNotFound = New(CodeArtifactNotFound, "video artifact not found")
	ErrArtifactExists   = New(CodeArtifactExists, "video artifact already exists")
	ErrJobNotFound      = New(CodeJobNotFound, "job not found")

	ErrCapabilityTimeout  = New(CodeCapabilityTimeout, "external capability timed out")
	ErrCapabilityFailed   = New(CodeCapabilityFailed, "external capability failed")
	ErrGraphSerialization = New(CodeGraphSerialization, "mindmap serialization failed")
	ErrJobCancelled       = New(CodeJobCancelled, "job cancelled")

	ErrStorage = New(CodeStorageError, "storage error")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// Is 是标准库 errors.Is 的转发，避免调用方同时引入两个 errors 包
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
