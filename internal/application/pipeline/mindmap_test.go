package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsum-ai-api/internal/domain/entity"
	apperrors "vidsum-ai-api/pkg/errors"
)

// mindmapLine 解析出的导图行
type mindmapLine struct {
	depth int
	text  string
}

func parseMindmap(t *testing.T, code string) []mindmapLine {
	t.Helper()
	lines := strings.Split(code, "\n")
	require.Equal(t, "mindmap", lines[0])

	var out []mindmapLine
	for _, l := range lines[1:] {
		trimmed := strings.TrimLeft(l, " ")
		indent := len(l) - len(trimmed)
		require.Zero(t, indent%2, "odd indentation in %q", l)
		out = append(out, mindmapLine{depth: indent / 2, text: trimmed})
	}
	return out
}

// ancestors 返回第 i 行沿缩进层级向上的全部祖先行
func ancestors(lines []mindmapLine, i int) []string {
	var out []string
	depth := lines[i].depth
	for j := i - 1; j >= 0 && depth > 1; j-- {
		if lines[j].depth == depth-1 {
			out = append(out, lines[j].text)
			depth--
		}
	}
	return out
}

func newtonResults() []entity.SegmentResult {
	newton := entity.Entity{Label: "Newton", Kind: entity.EntityKindPerson}
	gravity := entity.Entity{Label: "Gravity", Kind: entity.EntityKindConcept}
	return []entity.SegmentResult{{
		Segment:   entity.Segment{Index: 0, Topic: "classical mechanics"},
		Entities:  []entity.Entity{newton, gravity},
		Relations: []entity.Relation{{Source: newton, Target: gravity, Label: "discovered"}},
	}}
}

func TestMindmap_NewtonDiscoveredGravity(t *testing.T) {
	g, err := BuildMindmap("physics", newtonResults())
	require.NoError(t, err)

	code, err := RenderMindmap(g)
	require.NoError(t, err)

	want := strings.Join([]string{
		"mindmap",
		`  root(("physics"))`,
		`    t1["classical mechanics"]`,
		`      e1["Newton"]`,
		`        r1{{"discovered → Gravity"}}`,
		`      e2["Gravity"]`,
	}, "\n")
	assert.Equal(t, want, code)

	lines := parseMindmap(t, code)
	for i, l := range lines {
		if strings.HasPrefix(l.text, "e") {
			assert.Contains(t, ancestors(lines, i), `t1["classical mechanics"]`)
		}
	}

	var rel []entity.MindmapEdge
	for _, e := range g.Edges {
		if e.Kind == entity.MindmapEdgeRelation {
			rel = append(rel, e)
		}
	}
	require.Len(t, rel, 1)
	assert.Equal(t, "Newton", g.Nodes[rel[0].From].Label)
	assert.Equal(t, "Gravity", g.Nodes[rel[0].To].Label)
	assert.Equal(t, "discovered", rel[0].Label)
}

func TestMindmap_ReusesNodesAcrossSegments(t *testing.T) {
	newton := entity.Entity{Label: "Newton", Kind: entity.EntityKindPerson}
	res := []entity.SegmentResult{
		{Segment: entity.Segment{Index: 0, Topic: "mechanics"}, Entities: []entity.Entity{newton}},
		{Segment: entity.Segment{Index: 1, Topic: "optics"}, Entities: []entity.Entity{{Label: "newton", Kind: entity.EntityKindPerson}}},
		{Segment: entity.Segment{Index: 2, Topic: "Mechanics"}, Entities: []entity.Entity{{Label: "Newton", Kind: entity.EntityKindConcept}}},
	}

	g, err := BuildMindmap("physics", res)
	require.NoError(t, err)

	var topics, entities int
	for _, n := range g.Nodes {
		switch n.Kind {
		case entity.MindmapNodeTopic:
			topics++
		case entity.MindmapNodeEntity:
			entities++
		}
	}
	assert.Equal(t, 2, topics, "mechanics topic is reused")
	assert.Equal(t, 2, entities, "same (label, kind) is one node")
	for _, n := range g.Nodes {
		assert.True(t, g.Reachable(n.ID))
	}
}

func TestMindmap_EveryEntityReachableInText(t *testing.T) {
	res := []entity.SegmentResult{
		{
			Segment:  entity.Segment{Index: 0, Topic: "cells"},
			Entities: []entity.Entity{{Label: "Mitochondria", Kind: entity.EntityKindTerm}, {Label: "ATP", Kind: entity.EntityKindTerm}},
			Relations: []entity.Relation{
				{Source: entity.Entity{Label: "Mitochondria", Kind: entity.EntityKindTerm}, Target: entity.Entity{Label: "ATP", Kind: entity.EntityKindTerm}, Label: "produce"},
			},
		},
		{
			Segment:  entity.Segment{Index: 1, Topic: "genetics"},
			Entities: []entity.Entity{{Label: "DNA", Kind: entity.EntityKindTerm}, {Label: "Mendel", Kind: entity.EntityKindPerson}},
		},
	}
	g, err := BuildMindmap("biology", res)
	require.NoError(t, err)
	code, err := RenderMindmap(g)
	require.NoError(t, err)

	lines := parseMindmap(t, code)
	assert.Equal(t, 1, lines[0].depth)
	for i, l := range lines[1:] {
		anc := ancestors(lines, i+1)
		require.NotEmpty(t, anc)
		assert.Equal(t, `root(("biology"))`, anc[len(anc)-1], "line %q must descend from root", l.text)
	}
	for _, label := range []string{"Mitochondria", "ATP", "DNA", "Mendel"} {
		assert.Contains(t, code, `["`+label+`"]`)
	}
}

func TestMindmap_EscapesReservedCharacters(t *testing.T) {
	res := []entity.SegmentResult{{
		Segment:  entity.Segment{Index: 0, Topic: "quotes \"and\"\nnewlines"},
		Entities: []entity.Entity{{Label: "say \"hi\"\tnow", Kind: entity.EntityKindTerm}},
	}}
	g, err := BuildMindmap("root", res)
	require.NoError(t, err)
	code, err := RenderMindmap(g)
	require.NoError(t, err)

	assert.Contains(t, code, `t1["quotes #quot;and#quot; newlines"]`)
	assert.Contains(t, code, `e1["say #quot;hi#quot; now"]`)
	for _, l := range strings.Split(code, "\n")[1:] {
		assert.Equal(t, 2, strings.Count(l, `"`), "line %q", l)
	}
}

func TestMindmap_UnescapableLabelFails(t *testing.T) {
	res := []entity.SegmentResult{{
		Segment:  entity.Segment{Index: 0, Topic: "t"},
		Entities: []entity.Entity{{Label: "\x00\x01", Kind: entity.EntityKindTerm}},
	}}
	g, err := BuildMindmap("root", res)
	require.NoError(t, err)

	_, err = RenderMindmap(g)
	assert.ErrorIs(t, err, apperrors.ErrGraphSerialization)
}

func TestMindmap_CycleDetected(t *testing.T) {
	g := &entity.MindmapGraph{
		Root: 0,
		Nodes: []entity.MindmapNode{
			{ID: 0, Label: "root", Kind: entity.MindmapNodeRoot, Parent: entity.NoParent},
			{ID: 1, Label: "a", Kind: entity.MindmapNodeTopic, Parent: 2},
			{ID: 2, Label: "b", Kind: entity.MindmapNodeEntity, Parent: 1},
		},
		Edges: []entity.MindmapEdge{
			{From: 1, To: 2, Kind: entity.MindmapEdgeTree},
			{From: 2, To: 1, Kind: entity.MindmapEdgeTree},
		},
	}
	_, err := RenderMindmap(g)
	assert.ErrorIs(t, err, apperrors.ErrGraphSerialization)
}

func TestEscapeMindmapLabel(t *testing.T) {
	out, err := EscapeMindmapLabel("  a \"b\"\r\n c ")
	require.NoError(t, err)
	assert.Equal(t, "a #quot;b#quot; c", out)

	_, err = EscapeMindmapLabel(" \n\t ")
	assert.ErrorIs(t, err, apperrors.ErrGraphSerialization)
}
