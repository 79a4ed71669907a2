package pipeline

import (
	"strings"

	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/pkg/textutil"
)

type nodeKey struct {
	kind       entity.MindmapNodeKind
	label      string
	entityKind entity.EntityKind
}

type edgeKey struct {
	from, to int
	label    string
}

// mindmapArena 以 (标签, 类型) 为键去重的节点池
type mindmapArena struct {
	g     *entity.MindmapGraph
	index map[nodeKey]int
	edges map[edgeKey]struct{}
}

func newMindmapArena(rootLabel string) *mindmapArena {
	a := &mindmapArena{
		g:     &entity.MindmapGraph{},
		index: make(map[nodeKey]int),
		edges: make(map[edgeKey]struct{}),
	}
	a.g.Root = a.add(rootLabel, entity.MindmapNodeRoot, "", entity.NoParent)
	return a
}

func (a *mindmapArena) add(label string, kind entity.MindmapNodeKind, ek entity.EntityKind, parent int) int {
	id := len(a.g.Nodes)
	a.g.Nodes = append(a.g.Nodes, entity.MindmapNode{
		ID:         id,
		Label:      label,
		Kind:       kind,
		EntityKind: ek,
		Parent:     parent,
	})
	if parent != entity.NoParent {
		a.g.Edges = append(a.g.Edges, entity.MindmapEdge{From: parent, To: id, Kind: entity.MindmapEdgeTree})
	}
	return id
}

// topic 返回分段主题节点，同名主题复用同一节点
func (a *mindmapArena) topic(label string) int {
	k := nodeKey{kind: entity.MindmapNodeTopic, label: normalizeLabel(label)}
	if id, ok := a.index[k]; ok {
		return id
	}
	id := a.add(label, entity.MindmapNodeTopic, "", a.g.Root)
	a.index[k] = id
	return id
}

// entity 返回实体节点；首次出现时挂在当前分段主题下
func (a *mindmapArena) entity(e entity.Entity, topicID int) int {
	ek := e.Key()
	k := nodeKey{kind: entity.MindmapNodeEntity, label: ek.Label, entityKind: ek.Kind}
	if id, ok := a.index[k]; ok {
		return id
	}
	id := a.add(e.Label, entity.MindmapNodeEntity, ek.Kind, topicID)
	a.index[k] = id
	return id
}

func (a *mindmapArena) relate(from, to int, label string) {
	k := edgeKey{from: from, to: to, label: strings.ToLower(label)}
	if _, ok := a.edges[k]; ok {
		return
	}
	a.edges[k] = struct{}{}
	a.g.Edges = append(a.g.Edges, entity.MindmapEdge{From: from, To: to, Label: label, Kind: entity.MindmapEdgeRelation})
}

// BuildMindmap 以整体主题为根构建思维导图
// 根 -> 分段主题 -> 实体 构成树形骨架，关系作为额外的带标签边。
// 没有任何关系的实体同样挂在其分段主题下，因此不存在孤立节点。
func BuildMindmap(overallTopic string, results []entity.SegmentResult) (*entity.MindmapGraph, error) {
	root := strings.TrimSpace(overallTopic)
	if root == "" {
		root = UntitledTopic
	}
	a := newMindmapArena(root)

	for _, r := range results {
		label := strings.TrimSpace(r.Segment.Topic)
		if label == "" {
			label = fallbackTopic(r.Segment.Index)
		}
		topicID := a.topic(label)

		for _, e := range r.Entities {
			if strings.TrimSpace(e.Label) == "" {
				continue
			}
			a.entity(e, topicID)
		}
		for _, rel := range r.Relations {
			if strings.TrimSpace(rel.Source.Label) == "" || strings.TrimSpace(rel.Target.Label) == "" {
				continue
			}
			from := a.entity(rel.Source, topicID)
			to := a.entity(rel.Target, topicID)
			relLabel := textutil.CollapseSpaces(rel.Label)
			if relLabel == "" {
				relLabel = defaultRelationLabel
			}
			a.relate(from, to, relLabel)
		}
	}

	if err := ValidateMindmap(a.g); err != nil {
		return nil, err
	}
	return a.g, nil
}

func normalizeLabel(s string) string {
	if n := textutil.Normalize(s); n != "" {
		return n
	}
	return strings.ToLower(textutil.CollapseSpaces(s))
}
