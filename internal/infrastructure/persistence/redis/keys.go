package redis

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

const defaultKeyPrefix = "vidsum"

// Keys 统一管理键名
type Keys struct {
	prefix string
}

// NewKeys 创建键名构造器
func NewKeys(prefix string) Keys {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return Keys{prefix: prefix}
}

func (k Keys) join(parts ...string) string {
	return k.prefix + ":" + strings.Join(parts, ":")
}

// Artifact 单个产物记录
func (k Keys) Artifact(videoID string) string { return k.join("artifact", videoID) }

// ArtifactSeq 写入序号计数器
func (k Keys) ArtifactSeq() string { return k.join("artifact", "_seq") }

// ArtifactIndex 按写入序号排序的 video_id 集合
func (k Keys) ArtifactIndex() string { return k.join("artifacts") }

// Lock 产物写锁
func (k Keys) Lock(videoID string) string { return k.join("lock", videoID) }

// Job 处理任务
func (k Keys) Job(id string) string { return k.join("job", id) }

// SearchGeneration 查询缓存代数，递增即整体失效
func (k Keys) SearchGeneration() string { return k.join("search", "_gen") }

// Search 某一代数下的查询缓存
func (k Keys) Search(generation, query string) string {
	sum := sha1.Sum([]byte(query))
	return k.join("search", generation, hex.EncodeToString(sum[:]))
}

// RateLimit 限流计数
func (k Keys) RateLimit(subject, endpoint string) string {
	return k.join("ratelimit", subject, endpoint)
}
