package entity

// MindmapNodeKind 思维导图节点类型
type MindmapNodeKind string

const (
	MindmapNodeRoot   MindmapNodeKind = "root"
	MindmapNodeTopic  MindmapNodeKind = "topic"
	MindmapNodeEntity MindmapNodeKind = "entity"
)

// MindmapEdgeKind 边类型：tree 为层级边，relation 为实体关系边
type MindmapEdgeKind string

const (
	MindmapEdgeTree     MindmapEdgeKind = "tree"
	MindmapEdgeRelation MindmapEdgeKind = "relation"
)

// NoParent 根节点的父节点标记
const NoParent = -1

// MindmapNode 节点，ID 即其在 Nodes 中的下标
type MindmapNode struct {
	ID         int             `json:"id"`
	Label      string          `json:"label"`
	Kind       MindmapNodeKind `json:"kind"`
	EntityKind EntityKind      `json:"entity_kind,omitempty"`
	Parent     int             `json:"parent"`
}

// MindmapEdge 有向边
type MindmapEdge struct {
	From  int             `json:"from"`
	To    int             `json:"to"`
	Label string          `json:"label,omitempty"`
	Kind  MindmapEdgeKind `json:"kind"`
}

// MindmapGraph 以下标寻址的节点池表示的思维导图
type MindmapGraph struct {
	Root  int           `json:"root"`
	Nodes []MindmapNode `json:"nodes"`
	Edges []MindmapEdge `json:"edges"`
}

// Children 返回节点的树形子节点（按插入顺序）
func (g *MindmapGraph) Children(id int) []int {
	var out []int
	for _, e := range g.Edges {
		if e.Kind == MindmapEdgeTree && e.From == id {
			out = append(out, e.To)
		}
	}
	return out
}

// RelationsFrom 返回以该节点为起点的关系边
func (g *MindmapGraph) RelationsFrom(id int) []MindmapEdge {
	var out []MindmapEdge
	for _, e := range g.Edges {
		if e.Kind == MindmapEdgeRelation && e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// Reachable 判断节点是否可从根节点沿树形边到达
func (g *MindmapGraph) Reachable(id int) bool {
	if id < 0 || id >= len(g.Nodes) {
		return false
	}
	seen := make(map[int]bool, len(g.Nodes))
	for cur := id; ; {
		if cur == g.Root {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		p := g.Nodes[cur].Parent
		if p < 0 || p >= len(g.Nodes) {
			return false
		}
		cur = p
	}
}

// Find 按标签与类型查找节点（精确匹配），未找到返回 -1
func (g *MindmapGraph) Find(label string, kind MindmapNodeKind) int {
	for _, n := range g.Nodes {
		if n.Label == label && n.Kind == kind {
			return n.ID
		}
	}
	return -1
}
