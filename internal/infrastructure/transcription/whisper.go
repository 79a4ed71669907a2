// Package transcription 实现音频提取与语音转写能力
package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"vidsum-ai-api/internal/config"
	"vidsum-ai-api/internal/domain/entity"
)

// WhisperTranscriber 通过 OpenAI 兼容接口（如 Groq）调用 Whisper 转写
type WhisperTranscriber struct {
	client   openai.Client
	model    string
	language string
}

// NewWhisperTranscriber 创建转写器
func NewWhisperTranscriber(cfg *config.TranscriptionConfig) *WhisperTranscriber {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &WhisperTranscriber{
		client:   openai.NewClient(opts...),
		model:    cfg.Model,
		language: strings.TrimSpace(cfg.Language),
	}
}

// Transcribe 转写音频文件，返回带时间戳的片段
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) ([]entity.Span, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:                   f,
		Model:                  openai.AudioModel(t.model),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		Temperature:            openai.Float(0),
		TimestampGranularities: []string{"segment"},
	}
	if t.language != "" {
		params.Language = openai.String(t.language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("whisper transcription: %w", err)
	}
	return parseVerbose(resp.RawJSON(), resp.Text)
}

// verboseTranscription verbose_json 响应中用到的字段
type verboseTranscription struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// parseVerbose 将 verbose_json 响应转换为片段；没有分段信息时整段文本作为单个片段
func parseVerbose(raw, text string) ([]entity.Span, error) {
	var v verboseTranscription
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("parse transcription response: %w", err)
		}
	}
	if v.Text == "" {
		v.Text = text
	}

	spans := make([]entity.Span, 0, len(v.Segments))
	for _, seg := range v.Segments {
		txt := strings.TrimSpace(seg.Text)
		if txt == "" {
			continue
		}
		end := seg.End
		if end < seg.Start {
			end = seg.Start
		}
		spans = append(spans, entity.Span{Start: seg.Start, End: end, Text: txt})
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	if len(spans) == 0 && strings.TrimSpace(v.Text) != "" {
		spans = append(spans, entity.Span{Start: 0, End: v.Duration, Text: strings.TrimSpace(v.Text)})
	}
	return spans, nil
}
