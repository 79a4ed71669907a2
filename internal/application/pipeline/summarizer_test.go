package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/internal/domain/service"
)

func testSegment(text string) entity.Segment {
	return entity.Segment{Index: 0, Topic: "physics", Start: 0, End: 10, Text: text, SpanFrom: 0, SpanTo: 1}
}

func TestSummarizeSegment_EmptySummaryFallsBackToText(t *testing.T) {
	s := NewSegmentSummarizer(
		summarizerFunc(func(context.Context, string) (string, error) { return "   ", nil }),
		extractorFunc(noExtraction),
		testPolicy(), 300,
	)

	res := s.SummarizeSegment(context.Background(), testSegment("X"))
	assert.Equal(t, "X", res.Summary)
	assert.True(t, res.SummaryFallback)
}

func TestSummarizeSegment_FallbackIsTruncated(t *testing.T) {
	long := strings.Repeat("word ", 200)
	s := NewSegmentSummarizer(
		summarizerFunc(func(context.Context, string) (string, error) { return "", errors.New("model down") }),
		extractorFunc(noExtraction),
		CallPolicy{}, 50,
	)

	res := s.SummarizeSegment(context.Background(), testSegment(long))
	assert.True(t, res.SummaryFallback)
	assert.NotEmpty(t, res.Summary)
	assert.LessOrEqual(t, len([]rune(res.Summary)), 50)
	assert.True(t, strings.HasSuffix(res.Summary, "…"))
}

func TestSummarizeSegment_KeyPointsDeduplicated(t *testing.T) {
	s := NewSegmentSummarizer(
		summarizerFunc(firstSentence),
		extractorFunc(func(context.Context, string) (*service.Extraction, error) {
			return &service.Extraction{KeyPoints: []string{
				"Gravity bends light", "gravity  bends LIGHT", " ", "Orbits are ellipses", "orbits are ellipses",
			}}, nil
		}),
		testPolicy(), 300,
	)

	res := s.SummarizeSegment(context.Background(), testSegment("Gravity bends light. Orbits are ellipses."))
	assert.Equal(t, []string{"Gravity bends light", "Orbits are ellipses"}, res.KeyPoints)
	assert.Equal(t, "Gravity bends light.", res.Summary)
	assert.False(t, res.SummaryFallback)
	assert.False(t, res.ExtractionFailed)
}

func TestSummarizeSegment_ExtractionFailureIsIsolated(t *testing.T) {
	s := NewSegmentSummarizer(
		summarizerFunc(firstSentence),
		extractorFunc(func(context.Context, string) (*service.Extraction, error) { return nil, errors.New("bad json") }),
		testPolicy(), 300,
	)

	res := s.SummarizeSegment(context.Background(), testSegment("Newton studied motion."))
	assert.True(t, res.ExtractionFailed)
	assert.Empty(t, res.KeyPoints)
	assert.Empty(t, res.Entities)
	assert.Equal(t, "Newton studied motion.", res.Summary)
}

func TestSummarizeSegment_RelationEndpointsBecomeEntities(t *testing.T) {
	s := NewSegmentSummarizer(
		summarizerFunc(firstSentence),
		extractorFunc(func(context.Context, string) (*service.Extraction, error) {
			return &service.Extraction{
				Entities: []entity.Entity{{Label: "Newton", Kind: entity.EntityKindPerson}, {Label: "newton", Kind: entity.EntityKindPerson}},
				Relations: []entity.Relation{
					{Source: entity.Entity{Label: "Newton"}, Target: entity.Entity{Label: "Gravity"}, Label: "discovered"},
					{Source: entity.Entity{Label: "Newton"}, Target: entity.Entity{Label: "Gravity"}, Label: "Discovered"},
					{Source: entity.Entity{Label: "Newton"}, Target: entity.Entity{Label: "Optics"}},
				},
			}, nil
		}),
		testPolicy(), 300,
	)

	res := s.SummarizeSegment(context.Background(), testSegment("Newton discovered gravity."))
	require.Len(t, res.Entities, 3)
	assert.Equal(t, entity.Entity{Label: "Newton", Kind: entity.EntityKindPerson}, res.Entities[0])
	assert.Equal(t, entity.Entity{Label: "Gravity", Kind: entity.EntityKindConcept}, res.Entities[1])
	assert.Equal(t, entity.Entity{Label: "Optics", Kind: entity.EntityKindConcept}, res.Entities[2])

	require.Len(t, res.Relations, 2)
	assert.Equal(t, "discovered", res.Relations[0].Label)
	assert.Equal(t, entity.EntityKindPerson, res.Relations[0].Source.Kind)
	assert.Equal(t, defaultRelationLabel, res.Relations[1].Label)
}

func TestSummarizeSegment_RelationEndpointsMatchKind(t *testing.T) {
	s := NewSegmentSummarizer(
		summarizerFunc(firstSentence),
		extractorFunc(func(context.Context, string) (*service.Extraction, error) {
			return &service.Extraction{
				Entities: []entity.Entity{
					{Label: "Mercury", Kind: entity.EntityKindPerson},
					{Label: "Mercury", Kind: entity.EntityKindPlace},
					{Label: "Sun", Kind: entity.EntityKindPlace},
				},
				Relations: []entity.Relation{
					{Source: entity.Entity{Label: "mercury", Kind: entity.EntityKindPlace}, Target: entity.Entity{Label: "Sun"}, Label: "orbits"},
					{Source: entity.Entity{Label: "Mercury", Kind: entity.EntityKindPerson}, Target: entity.Entity{Label: "Sun"}, Label: "sang about"},
					{Source: entity.Entity{Label: "Mercury"}, Target: entity.Entity{Label: "Venus", Kind: entity.EntityKindPlace}, Label: "near"},
				},
			}, nil
		}),
		testPolicy(), 300,
	)

	res := s.SummarizeSegment(context.Background(), testSegment("Mercury orbits the Sun."))
	require.Len(t, res.Relations, 3)
	assert.Equal(t, entity.Entity{Label: "Mercury", Kind: entity.EntityKindPlace}, res.Relations[0].Source)
	assert.Equal(t, entity.Entity{Label: "Sun", Kind: entity.EntityKindPlace}, res.Relations[0].Target)
	assert.Equal(t, entity.Entity{Label: "Mercury", Kind: entity.EntityKindPerson}, res.Relations[1].Source)
	// 未给类型时按标签取首个实体
	assert.Equal(t, entity.EntityKindPerson, res.Relations[2].Source.Kind)
	// 未知端点保留其类型
	require.Len(t, res.Entities, 4)
	assert.Equal(t, entity.Entity{Label: "Venus", Kind: entity.EntityKindPlace}, res.Entities[3])
}

func TestSummarizeSegment_BlankTextSkipsCapabilities(t *testing.T) {
	called := false
	s := NewSegmentSummarizer(
		summarizerFunc(func(context.Context, string) (string, error) { called = true; return "x", nil }),
		extractorFunc(func(context.Context, string) (*service.Extraction, error) { called = true; return nil, nil }),
		testPolicy(), 300,
	)

	seg := testSegment("  ")
	seg.Topic = "Segment 1"
	res := s.SummarizeSegment(context.Background(), seg)
	assert.False(t, called)
	assert.Equal(t, "Segment 1", res.Summary)
	assert.True(t, res.SummaryFallback)
}

func TestDedupeKeyPoints(t *testing.T) {
	assert.Equal(t, []string{"A b", "c"}, DedupeKeyPoints([]string{"A b", "a B", "", "c", "C "}))
	assert.Empty(t, DedupeKeyPoints(nil))
}
