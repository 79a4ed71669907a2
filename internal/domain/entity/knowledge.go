package entity

import (
	"strings"
)

// EntityKind 概念类型（受控集合）
type EntityKind string

const (
	EntityKindConcept      EntityKind = "concept"
	EntityKindPerson       EntityKind = "person"
	EntityKindTerm         EntityKind = "term"
	EntityKindOrganization EntityKind = "organization"
	EntityKindPlace        EntityKind = "place"
	EntityKindEvent        EntityKind = "event"
)

// ParseEntityKind 解析类型，未知值归为 concept
func ParseEntityKind(s string) EntityKind {
	switch k := EntityKind(strings.ToLower(strings.TrimSpace(s))); k {
	case EntityKindPerson, EntityKindTerm, EntityKindOrganization, EntityKindPlace, EntityKindEvent:
		return k
	default:
		return EntityKindConcept
	}
}

// EntityKey 实体身份键：同一视频内 (label, kind) 唯一
type EntityKey struct {
	Label string
	Kind  EntityKind
}

// Entity 命名概念
type Entity struct {
	Label string     `json:"label"`
	Kind  EntityKind `json:"kind"`
}

// NewEntity 创建实体并规范化标签与类型
func NewEntity(label string, kind string) Entity {
	return Entity{
		Label: strings.Join(strings.Fields(label), " "),
		Kind:  ParseEntityKind(kind),
	}
}

// Key 返回身份键（标签大小写不敏感）
func (e Entity) Key() EntityKey {
	return EntityKey{
		Label: strings.ToLower(strings.Join(strings.Fields(e.Label), " ")),
		Kind:  ParseEntityKind(string(e.Kind)),
	}
}

// Relation 实体间的有向关系，同一对实体可以有多个不同标签的关系
type Relation struct {
	Source Entity `json:"source"`
	Target Entity `json:"target"`
	Label  string `json:"label"`
}

// relationKey 关系去重键
type relationKey struct {
	Source EntityKey
	Target EntityKey
	Label  string
}

// key 关系去重键（标签大小写不敏感）
func (r Relation) key() relationKey {
	return relationKey{
		Source: r.Source.Key(),
		Target: r.Target.Key(),
		Label:  strings.ToLower(strings.TrimSpace(r.Label)),
	}
}

// DedupeEntities 按身份键去重，保留首次出现的顺序与原始标签
func DedupeEntities(in []Entity) []Entity {
	seen := make(map[EntityKey]struct{}, len(in))
	out := make([]Entity, 0, len(in))
	for _, e := range in {
		e = NewEntity(e.Label, string(e.Kind))
		if e.Label == "" {
			continue
		}
		k := e.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}

// DedupeRelations 去除重复关系与端点为空的关系
func DedupeRelations(in []Relation) []Relation {
	seen := make(map[relationKey]struct{}, len(in))
	out := make([]Relation, 0, len(in))
	for _, r := range in {
		r.Source = NewEntity(r.Source.Label, string(r.Source.Kind))
		r.Target = NewEntity(r.Target.Label, string(r.Target.Kind))
		r.Label = strings.Join(strings.Fields(r.Label), " ")
		if r.Source.Label == "" || r.Target.Label == "" {
			continue
		}
		k := r.key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// EntityResolver 将关系端点解析为已知实体
// 先按 (label, kind) 精确匹配；端点未给出类型或类型不匹配时按标签匹配首个实体。
type EntityResolver struct {
	byKey   map[EntityKey]Entity
	byLabel map[string]Entity
}

// NewEntityResolver 以已知实体构建解析器，同标签多个类型时标签匹配取首个
func NewEntityResolver(known []Entity) *EntityResolver {
	r := &EntityResolver{
		byKey:   make(map[EntityKey]Entity, len(known)),
		byLabel: make(map[string]Entity, len(known)),
	}
	for _, e := range known {
		r.Add(e)
	}
	return r
}

// Add 登记一个实体
func (r *EntityResolver) Add(e Entity) {
	e = NewEntity(e.Label, string(e.Kind))
	if e.Label == "" {
		return
	}
	k := e.Key()
	if _, ok := r.byKey[k]; !ok {
		r.byKey[k] = e
	}
	if _, ok := r.byLabel[k.Label]; !ok {
		r.byLabel[k.Label] = e
	}
}

// Resolve 返回匹配的已知实体；未匹配时返回规范化后的端点与 false
func (r *EntityResolver) Resolve(label, kind string) (Entity, bool) {
	ent := NewEntity(label, kind)
	k := ent.Key()
	if strings.TrimSpace(kind) != "" {
		if known, ok := r.byKey[k]; ok {
			return known, true
		}
	}
	if known, ok := r.byLabel[k.Label]; ok {
		return known, true
	}
	return ent, false
}
