package llm

import (
	"encoding/json"
	"sort"

	"github.com/invopop/jsonschema"
)

// extractionOutput 抽取提示词要求的输出结构
type extractionOutput struct {
	KeyPoints []string           `json:"key_points" jsonschema:"description=Short statements ordered by importance"`
	Entities  []extractionEntity `json:"entities"`
	Relations []extractionLink   `json:"relations"`
}

type extractionEntity struct {
	Label string `json:"label"`
	Kind  string `json:"kind" jsonschema:"enum=concept,enum=person,enum=term,enum=organization,enum=place,enum=event"`
}

type extractionLink struct {
	Source     string `json:"source"`
	SourceKind string `json:"source_kind" jsonschema:"description=Kind of the source entity"`
	Target     string `json:"target"`
	TargetKind string `json:"target_kind" jsonschema:"description=Kind of the target entity"`
	Label      string `json:"label"`
}

// focusedOutput 关键词聚焦摘要的输出结构
type focusedOutput struct {
	Topic           string   `json:"topic"`
	Summary         string   `json:"summary"`
	KeyPoints       []string `json:"key_points"`
	RelatedConcepts []string `json:"related_concepts"`
}

// GenerateSchema 反射生成 OpenAI 结构化输出可用的 JSON Schema
func GenerateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	b, err := reflector.Reflect(v).MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	delete(m, "$schema")
	delete(m, "$id")
	ensureStrictObjects(m)
	return m
}

// ensureStrictObjects 所有 object 禁止额外字段，并将全部属性标记为必填
func ensureStrictObjects(schema map[string]any) {
	if t, ok := schema["type"].(string); ok && t == "object" {
		schema["additionalProperties"] = false
		if props, ok := schema["properties"].(map[string]any); ok {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			sort.Strings(required)
			if len(required) > 0 {
				schema["required"] = required
			}
		}
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				ensureStrictObjects(pm)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		ensureStrictObjects(items)
	}
}
