// Package entity 定义领域实体
package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	apperrors "vidsum-ai-api/pkg/errors"
)

// Span 转录中的一段带时间戳文本（单位：秒）
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Duration 片段时长
func (s Span) Duration() float64 {
	return s.End - s.Start
}

// Transcript 单个视频的完整转录，由转录能力产出后不可变
type Transcript struct {
	Spans []Span `json:"spans"`
}

// NewTranscript 创建转录（拷贝输入，避免调用方后续修改）
func NewTranscript(spans []Span) Transcript {
	cp := make([]Span, len(spans))
	copy(cp, spans)
	return Transcript{Spans: cp}
}

// Start 转录起始时间
func (t Transcript) Start() float64 {
	if len(t.Spans) == 0 {
		return 0
	}
	return t.Spans[0].Start
}

// End 转录结束时间
func (t Transcript) End() float64 {
	if len(t.Spans) == 0 {
		return 0
	}
	return t.Spans[len(t.Spans)-1].End
}

// Duration 转录总时长
func (t Transcript) Duration() float64 {
	return t.End() - t.Start()
}

// Validate 校验转录：为空或全部为空白文本时返回 ErrEmptyInput，时间倒序时返回 ErrInvalidParam
func (t Transcript) Validate() error {
	if len(t.Spans) == 0 {
		return apperrors.ErrEmptyInput
	}

	hasText := false
	for i, sp := range t.Spans {
		if sp.End < sp.Start {
			return apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("span %d ends before it starts", i))
		}
		if i > 0 && sp.Start < t.Spans[i-1].Start {
			return apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("span %d is out of chronological order", i))
		}
		if strings.TrimSpace(sp.Text) != "" {
			hasText = true
		}
	}
	if !hasText {
		return apperrors.ErrEmptyInput.WithDetail("transcript contains no text")
	}
	return nil
}

// ContentHash 基于时间轴与归一化文本计算内容哈希（hex）
func (t Transcript) ContentHash() string {
	h := sha256.New()
	for _, sp := range t.Spans {
		h.Write([]byte(strconv.FormatFloat(sp.Start, 'f', 3, 64)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatFloat(sp.End, 'f', 3, 64)))
		h.Write([]byte{0})
		h.Write([]byte(strings.Join(strings.Fields(sp.Text), " ")))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Text 拼接全部片段文本
func (t Transcript) Text() string {
	return JoinSpanText(t.Spans)
}

// JoinSpanText 以单空格拼接片段文本
func JoinSpanText(spans []Span) string {
	parts := make([]string, 0, len(spans))
	for _, sp := range spans {
		if txt := strings.TrimSpace(sp.Text); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, " ")
}
