package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a":1}`, ExtractJSONObject("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":[1,2]}`, ExtractJSONObject(`noise {"a":[1,2]} trailing`))
	assert.Equal(t, `[1,2]`, ExtractJSONObject(`list: [1,2]`))
	assert.Equal(t, "", ExtractJSONObject("   "))
}

func TestIsResponseFormatUnsupportedError(t *testing.T) {
	assert.True(t, IsResponseFormatUnsupportedError(errors.New("json_schema is not supported")))
	assert.False(t, IsResponseFormatUnsupportedError(errors.New("rate limited")))
	assert.False(t, IsResponseFormatUnsupportedError(nil))
}

func TestGenerateSchema_StrictObjects(t *testing.T) {
	s := GenerateSchema[extractionOutput]()
	assert.Equal(t, "object", s["type"])
	assert.Equal(t, false, s["additionalProperties"])
	assert.ElementsMatch(t, []string{"entities", "key_points", "relations"}, s["required"])

	props := s["properties"].(map[string]any)
	items := props["entities"].(map[string]any)["items"].(map[string]any)
	assert.Equal(t, false, items["additionalProperties"])
	kind := items["properties"].(map[string]any)["kind"].(map[string]any)
	assert.Len(t, kind["enum"], 6)
}
