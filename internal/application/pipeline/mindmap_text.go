package pipeline

import (
	"fmt"
	"strings"
	"unicode"

	"vidsum-ai-api/internal/domain/entity"
	apperrors "vidsum-ai-api/pkg/errors"
)

const mindmapIndent = "  "

// ValidateMindmap 检查树形骨架：父节点存在、无环、所有节点可从根到达
func ValidateMindmap(g *entity.MindmapGraph) error {
	if g == nil || len(g.Nodes) == 0 {
		return apperrors.ErrGraphSerialization.WithDetail("empty mindmap")
	}
	if g.Root < 0 || g.Root >= len(g.Nodes) {
		return apperrors.ErrGraphSerialization.WithDetail("root node out of range")
	}
	for _, n := range g.Nodes {
		if n.ID == g.Root {
			continue
		}
		if n.Parent < 0 || n.Parent >= len(g.Nodes) {
			return apperrors.ErrGraphSerialization.WithDetail(fmt.Sprintf("node %d has dangling parent %d", n.ID, n.Parent))
		}
		if !g.Reachable(n.ID) {
			return apperrors.ErrGraphSerialization.WithDetail(fmt.Sprintf("node %d is not reachable from root (cycle)", n.ID))
		}
	}
	for _, e := range g.Edges {
		if e.From < 0 || e.From >= len(g.Nodes) || e.To < 0 || e.To >= len(g.Nodes) {
			return apperrors.ErrGraphSerialization.WithDetail(fmt.Sprintf("edge %d->%d references missing node", e.From, e.To))
		}
	}
	return nil
}

// RenderMindmap 将思维导图序列化为 Mermaid mindmap 文本
// 每层缩进两个空格；关系边以六边形子节点的形式渲染在源实体下方。
func RenderMindmap(g *entity.MindmapGraph) (string, error) {
	if err := ValidateMindmap(g); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("mindmap\n")

	var (
		topicSeq, entitySeq, relSeq int
		visited                     = make(map[int]bool, len(g.Nodes))
	)

	var walk func(id, depth int) error
	walk = func(id, depth int) error {
		if visited[id] {
			return apperrors.ErrGraphSerialization.WithDetail(fmt.Sprintf("cycle at node %d", id))
		}
		visited[id] = true

		n := g.Nodes[id]
		label, err := EscapeMindmapLabel(n.Label)
		if err != nil {
			return err
		}

		indent := strings.Repeat(mindmapIndent, depth)
		switch n.Kind {
		case entity.MindmapNodeRoot:
			fmt.Fprintf(&b, "%sroot((\"%s\"))\n", indent, label)
		case entity.MindmapNodeTopic:
			topicSeq++
			fmt.Fprintf(&b, "%st%d[\"%s\"]\n", indent, topicSeq, label)
		default:
			entitySeq++
			fmt.Fprintf(&b, "%se%d[\"%s\"]\n", indent, entitySeq, label)
		}

		for _, rel := range g.RelationsFrom(id) {
			text, err := EscapeMindmapLabel(rel.Label + " → " + g.Nodes[rel.To].Label)
			if err != nil {
				return err
			}
			relSeq++
			fmt.Fprintf(&b, "%s%sr%d{{\"%s\"}}\n", indent, mindmapIndent, relSeq, text)
		}

		for _, child := range g.Children(id) {
			if err := walk(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(g.Root, 1); err != nil {
		return "", err
	}
	if len(visited) != len(g.Nodes) {
		return "", apperrors.ErrGraphSerialization.WithDetail("mindmap contains unreachable nodes")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// EscapeMindmapLabel 转义标签中的结构字符
// 双引号替换为 #quot;，换行与控制字符替换为空格并压缩空白；转义后为空则无法安全输出。
func EscapeMindmapLabel(label string) (string, error) {
	var b strings.Builder
	for _, r := range label {
		switch {
		case r == '"':
			b.WriteString("#quot;")
		case unicode.IsControl(r) || unicode.IsSpace(r):
			b.WriteRune(' ')
		case r == unicode.ReplacementChar:
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	if out == "" {
		return "", apperrors.ErrGraphSerialization.WithDetail(fmt.Sprintf("label %q is empty after escaping", label))
	}
	return out, nil
}
