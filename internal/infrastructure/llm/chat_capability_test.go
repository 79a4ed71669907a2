package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/domain/service"
)

// fakeChatModel 按调用顺序返回预设回复
type fakeChatModel struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	calls    [][]*schema.Message
	optCount []int
}

func (m *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.calls)
	m.calls = append(m.calls, input)
	m.optCount = append(m.optCount, len(opts))
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	reply := ""
	if i < len(m.replies) {
		reply = m.replies[i]
	}
	return schema.AssistantMessage(reply, nil), nil
}

func (m *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

type fakeFactory struct {
	model *fakeChatModel
	asked []string
}

func (f *fakeFactory) Get(_ context.Context, name string) (model.BaseChatModel, error) {
	f.asked = append(f.asked, name)
	return f.model, nil
}

func newCapability(m *fakeChatModel) (*ChatCapability, *fakeFactory) {
	f := &fakeFactory{model: m}
	return NewChatCapability(f, NewPromptRegistry(), "groq", 0), f
}

func TestChatCapability_ExtractParsesFencedJSON(t *testing.T) {
	m := &fakeChatModel{replies: []string{"```json\n" + `{
		"key_points": ["Newton formulated gravity", " ", "Orbits follow ellipses"],
		"entities": [{"label": "Isaac  Newton", "kind": "Person"}, {"label": "Gravity", "kind": "concept"}],
		"relations": [{"source": "isaac newton", "target": "Gravity", "label": "described"},
		              {"source": "Gravity", "target": "Kepler", "label": "explains"}]
	}` + "\n```"}}
	c, f := newCapability(m)

	out, err := c.Extract(context.Background(), "Newton described gravity.")
	require.NoError(t, err)
	assert.Equal(t, []string{"Newton formulated gravity", "Orbits follow ellipses"}, out.KeyPoints)
	assert.Equal(t, []entity.Entity{
		{Label: "Isaac Newton", Kind: entity.EntityKindPerson},
		{Label: "Gravity", Kind: entity.EntityKindConcept},
	}, out.Entities)
	require.Len(t, out.Relations, 2)
	assert.Equal(t, entity.EntityKindPerson, out.Relations[0].Source.Kind)
	assert.Equal(t, "Isaac Newton", out.Relations[0].Source.Label)
	assert.Equal(t, entity.Entity{Label: "Kepler", Kind: entity.EntityKindConcept}, out.Relations[1].Target)

	assert.Equal(t, []string{"groq"}, f.asked)
	assert.Equal(t, 1, m.optCount[0])
	assert.Contains(t, m.calls[0][1].Content, "Newton described gravity.")
}

func TestChatCapability_ExtractResolvesEndpointsByKind(t *testing.T) {
	m := &fakeChatModel{replies: []string{`{
		"key_points": ["Mercury is closest to the Sun"],
		"entities": [{"label": "Mercury", "kind": "person"}, {"label": "Mercury", "kind": "place"}, {"label": "Sun", "kind": "place"}],
		"relations": [{"source": "Mercury", "source_kind": "place", "target": "Sun", "target_kind": "place", "label": "orbits"},
		              {"source": "mercury", "source_kind": "", "target": "Sun", "target_kind": "place", "label": "mentions"}]
	}`}}
	c, _ := newCapability(m)

	out, err := c.Extract(context.Background(), "Mercury orbits the Sun.")
	require.NoError(t, err)
	require.Len(t, out.Relations, 2)
	assert.Equal(t, entity.Entity{Label: "Mercury", Kind: entity.EntityKindPlace}, out.Relations[0].Source)
	assert.Equal(t, entity.Entity{Label: "Mercury", Kind: entity.EntityKindPerson}, out.Relations[1].Source)
}

func TestChatCapability_RetriesWithoutResponseFormat(t *testing.T) {
	m := &fakeChatModel{
		errs:    []error{errors.New("400: unknown parameter response_format")},
		replies: []string{"", `{"key_points":["a"],"entities":[],"relations":[]}`},
	}
	c, _ := newCapability(m)

	out, err := c.Extract(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out.KeyPoints)
	require.Len(t, m.optCount, 2)
	assert.Equal(t, 0, m.optCount[1])
}

func TestChatCapability_ExtractMalformedJSON(t *testing.T) {
	c, _ := newCapability(&fakeChatModel{replies: []string{"Sorry, I cannot do that."}})
	_, err := c.Extract(context.Background(), "text")
	var perr *service.OutputParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Sorry, I cannot do that.", perr.Raw)
}

func TestChatCapability_SummarizeFocusedMalformedJSON(t *testing.T) {
	c, _ := newCapability(&fakeChatModel{replies: []string{"Gravity is a force."}})
	_, err := c.SummarizeFocused(context.Background(), "text", "gravity")
	var perr *service.OutputParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Gravity is a force.", perr.Raw)
}

func TestChatCapability_SummarizePromptByStage(t *testing.T) {
	m := &fakeChatModel{replies: []string{"Segment summary.", "Overall summary."}}
	c, _ := newCapability(m)

	got, err := c.Summarize(service.WithStage(context.Background(), service.StageSegmentSummary), "segment text")
	require.NoError(t, err)
	assert.Equal(t, "Segment summary.", got)

	got, err = c.Summarize(service.WithStage(context.Background(), service.StageOverallSummary), "a\n\nb")
	require.NoError(t, err)
	assert.Equal(t, "Overall summary.", got)

	assert.Contains(t, m.calls[0][0].Content, "note taker")
	assert.Contains(t, m.calls[1][0].Content, "section summaries")
	assert.Equal(t, 0, m.optCount[0])
}

func TestChatCapability_EmptyReplyIsError(t *testing.T) {
	c, _ := newCapability(&fakeChatModel{replies: []string{"   "}})
	_, err := c.Summarize(context.Background(), "text")
	assert.Error(t, err)
}

func TestChatCapability_SummarizeFocused(t *testing.T) {
	m := &fakeChatModel{replies: []string{
		`Here you go: {"topic":"Gravity","summary":"Mass attracts mass.","key_points":["inverse square"],"related_concepts":["orbits"]}`,
	}}
	c, _ := newCapability(m)

	out, err := c.SummarizeFocused(context.Background(), "long lecture text", "gravity")
	require.NoError(t, err)
	assert.Equal(t, "Gravity", out.Topic)
	assert.Equal(t, "Mass attracts mass.", out.Summary)
	assert.Equal(t, []string{"inverse square"}, out.KeyPoints)
	assert.Equal(t, []string{"orbits"}, out.RelatedConcepts)
	assert.Contains(t, m.calls[0][0].Content, `"gravity"`)
}

func TestChatCapability_ClipsLongInput(t *testing.T) {
	m := &fakeChatModel{replies: []string{"ok"}}
	c := NewChatCapability(&fakeFactory{model: m}, nil, "", 10)

	_, err := c.Summarize(context.Background(), strings.Repeat("x", 50))
	require.NoError(t, err)
	assert.NotContains(t, m.calls[0][1].Content, strings.Repeat("x", 11))
}
