package knowledge

import (
	"sort"
	"strings"
	"sync"

	"vidsum-ai-api/internal/domain/entity"
	"vidsum-ai-api/pkg/textutil"
)

// indexDoc 索引中的单个产物
type indexDoc struct {
	artifact *entity.VideoArtifact
	seq      int64
	tokens   map[string]struct{}
	topics   []string
}

// Index 倒排索引：词元 -> video_id 集合，可由仓储全量重建
type Index struct {
	mu       sync.RWMutex
	docs     map[string]*indexDoc
	postings map[string]map[string]struct{}
	// maxSeq 已索引的最大写入序号，删除不回退
	maxSeq int64
}

// NewIndex 创建空索引
func NewIndex() *Index {
	return &Index{
		docs:     make(map[string]*indexDoc),
		postings: make(map[string]map[string]struct{}),
	}
}

// Upsert 写入或替换产物的索引项；已索引更新的写入时忽略
func (ix *Index) Upsert(artifact *entity.VideoArtifact, seq int64) {
	doc := &indexDoc{
		artifact: artifact,
		seq:      seq,
		tokens:   artifact.Tokens(),
	}
	for _, t := range artifact.Topics() {
		if n := textutil.Normalize(t); n != "" {
			doc.topics = append(doc.topics, n)
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if cur, ok := ix.docs[artifact.VideoID]; ok && cur.seq > seq {
		return
	}
	ix.removeLocked(artifact.VideoID)
	ix.docs[artifact.VideoID] = doc
	ix.maxSeq = max(ix.maxSeq, seq)
	for tok := range doc.tokens {
		ids, ok := ix.postings[tok]
		if !ok {
			ids = make(map[string]struct{})
			ix.postings[tok] = ids
		}
		ids[artifact.VideoID] = struct{}{}
	}
}

// Remove 删除产物的索引项
func (ix *Index) Remove(videoID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(videoID)
}

func (ix *Index) removeLocked(videoID string) {
	doc, ok := ix.docs[videoID]
	if !ok {
		return
	}
	for tok := range doc.tokens {
		if ids, ok := ix.postings[tok]; ok {
			delete(ids, videoID)
			if len(ids) == 0 {
				delete(ix.postings, tok)
			}
		}
	}
	delete(ix.docs, videoID)
}

// Len 已索引的产物数量
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// MaxSeq 已索引的最大写入序号
func (ix *Index) MaxSeq() int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.maxSeq
}

// Exact 返回包含全部查询词元的产物，按新旧排序
func (ix *Index) Exact(tokens []string) []*entity.VideoArtifact {
	if len(tokens) == 0 {
		return nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	// 从最短的倒排表开始求交集
	lists := make([]map[string]struct{}, 0, len(tokens))
	for _, tok := range tokens {
		ids, ok := ix.postings[tok]
		if !ok {
			return nil
		}
		lists = append(lists, ids)
	}
	sort.Slice(lists, func(i, j int) bool { return len(lists[i]) < len(lists[j]) })

	var docs []*indexDoc
	for id := range lists[0] {
		matched := true
		for _, other := range lists[1:] {
			if _, ok := other[id]; !ok {
				matched = false
				break
			}
		}
		if matched {
			docs = append(docs, ix.docs[id])
		}
	}
	return rank(docs)
}

// Substring 返回主题与查询互相包含的产物，按新旧排序
func (ix *Index) Substring(query string) []*entity.VideoArtifact {
	if query == "" {
		return nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var docs []*indexDoc
	for _, doc := range ix.docs {
		for _, topic := range doc.topics {
			if strings.Contains(topic, query) || strings.Contains(query, topic) {
				docs = append(docs, doc)
				break
			}
		}
	}
	return rank(docs)
}

// rank 最近创建的优先，创建时间相同则后写入的优先
func rank(docs []*indexDoc) []*entity.VideoArtifact {
	sort.Slice(docs, func(i, j int) bool {
		a, b := docs[i].artifact.CreatedAt, docs[j].artifact.CreatedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return docs[i].seq > docs[j].seq
	})
	out := make([]*entity.VideoArtifact, len(docs))
	for i, d := range docs {
		out[i] = d.artifact
	}
	return out
}

// swap 用另一个索引的内容整体替换当前索引
func (ix *Index) swap(other *Index) {
	other.mu.RLock()
	docs, postings, maxSeq := other.docs, other.postings, other.maxSeq
	other.mu.RUnlock()

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.docs = docs
	ix.postings = postings
	ix.maxSeq = maxSeq
}
