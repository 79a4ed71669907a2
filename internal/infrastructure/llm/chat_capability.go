package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/domain/service"
	"vidsum-ai-api/pkg/textutil"
)

const defaultMaxInputRunes = 12000

var (
	extractionSchema = GenerateSchema[extractionOutput]()
	focusedSchema    = GenerateSchema[focusedOutput]()
)

// ChatCapability 以对话模型实现 Summarizer、Extractor 与 FocusedSummarizer
type ChatCapability struct {
	factory       ChatModelFactory
	prompts       *PromptRegistry
	provider      string
	maxInputRunes int
}

// NewChatCapability 创建对话模型能力；provider 为空时使用默认提供商
func NewChatCapability(factory ChatModelFactory, prompts *PromptRegistry, provider string, maxInputRunes int) *ChatCapability {
	if prompts == nil {
		prompts = NewPromptRegistry()
	}
	if maxInputRunes <= 0 {
		maxInputRunes = defaultMaxInputRunes
	}
	return &ChatCapability{
		factory:       factory,
		prompts:       prompts,
		provider:      strings.TrimSpace(provider),
		maxInputRunes: maxInputRunes,
	}
}

// Summarize 生成摘要；上下文阶段为整体摘要时使用合并提示词
func (c *ChatCapability) Summarize(ctx context.Context, text string) (string, error) {
	id := PromptSegmentSummaryV1
	if service.StageFromContext(ctx) == service.StageOverallSummary {
		id = PromptOverallSummaryV1
	}
	out, err := c.generate(ctx, id, map[string]any{"text": c.clip(text)}, "", nil)
	if err != nil {
		return "", err
	}
	return stripCodeFence(out), nil
}

// Extract 抽取要点、实体与关系
func (c *ChatCapability) Extract(ctx context.Context, text string) (*service.Extraction, error) {
	out, err := c.generate(ctx, PromptExtractionV1, map[string]any{"text": c.clip(text)}, "segment_extraction", extractionSchema)
	if err != nil {
		return nil, err
	}

	var parsed extractionOutput
	if err := json.Unmarshal([]byte(ExtractJSONObject(out)), &parsed); err != nil {
		return nil, &service.OutputParseError{Raw: out, Err: fmt.Errorf("extraction json: %w", err)}
	}
	return parsed.toExtraction(), nil
}

// SummarizeFocused 仅总结与关键词相关的内容
func (c *ChatCapability) SummarizeFocused(ctx context.Context, text, keyword string) (*service.FocusedSummary, error) {
	vars := map[string]any{"text": c.clip(text), "keyword": strings.TrimSpace(keyword)}
	out, err := c.generate(ctx, PromptFocusedSummaryV1, vars, "focused_summary", focusedSchema)
	if err != nil {
		return nil, err
	}

	var parsed focusedOutput
	if err := json.Unmarshal([]byte(ExtractJSONObject(out)), &parsed); err != nil {
		return nil, &service.OutputParseError{Raw: out, Err: fmt.Errorf("focused summary json: %w", err)}
	}
	return &service.FocusedSummary{
		Topic:           strings.TrimSpace(parsed.Topic),
		Summary:         strings.TrimSpace(parsed.Summary),
		KeyPoints:       parsed.KeyPoints,
		RelatedConcepts: parsed.RelatedConcepts,
	}, nil
}

func (c *ChatCapability) generate(ctx context.Context, id PromptID, vars map[string]any, schemaName string, schema map[string]any) (string, error) {
	tpl, err := c.prompts.ChatTemplate(id)
	if err != nil {
		return "", err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", err
	}

	ctx = service.WithProvider(ctx, c.provider)
	chatModel, err := c.factory.Get(ctx, c.provider)
	if err != nil {
		return "", err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildModelOptions(schemaName, schema)...)
	if err != nil && schema != nil && IsResponseFormatUnsupportedError(err) {
		outMsg, err = chatModel.Generate(ctx, msgs)
	}
	if err != nil {
		return "", err
	}
	if outMsg == nil || strings.TrimSpace(outMsg.Content) == "" {
		return "", fmt.Errorf("empty llm response for %s", id)
	}
	return strings.TrimSpace(outMsg.Content), nil
}

func (c *ChatCapability) clip(text string) string {
	return textutil.TruncateByRunes(strings.TrimSpace(text), c.maxInputRunes)
}

func buildModelOptions(schemaName string, schema map[string]any) []model.Option {
	if schema == nil {
		return nil
	}
	return []model.Option{
		openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   schemaName,
					"strict": false,
					"schema": schema,
				},
			},
		}),
	}
}

// toExtraction 关系端点先按 (label, kind) 再按标签匹配已抽取的实体，以继承实体类型
func (o extractionOutput) toExtraction() *service.Extraction {
	out := &service.Extraction{
		KeyPoints: make([]string, 0, len(o.KeyPoints)),
		Entities:  make([]entity.Entity, 0, len(o.Entities)),
		Relations: make([]entity.Relation, 0, len(o.Relations)),
	}
	for _, kp := range o.KeyPoints {
		if kp = strings.TrimSpace(kp); kp != "" {
			out.KeyPoints = append(out.KeyPoints, kp)
		}
	}

	for _, e := range o.Entities {
		ent := entity.NewEntity(e.Label, e.Kind)
		if ent.Label == "" {
			continue
		}
		out.Entities = append(out.Entities, ent)
	}
	resolver := entity.NewEntityResolver(out.Entities)
	for _, r := range o.Relations {
		source, _ := resolver.Resolve(r.Source, r.SourceKind)
		target, _ := resolver.Resolve(r.Target, r.TargetKind)
		out.Relations = append(out.Relations, entity.Relation{
			Source: source,
			Target: target,
			Label:  strings.TrimSpace(r.Label),
		})
	}
	return out
}
