package llm

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// PromptID 提示词模板标识
type PromptID string

const (
	PromptSegmentSummaryV1 PromptID = "segment_summary_v1"
	PromptOverallSummaryV1 PromptID = "overall_summary_v1"
	PromptExtractionV1     PromptID = "extraction_v1"
	PromptFocusedSummaryV1 PromptID = "focused_summary_v1"
)

// PromptRegistry 缓存已解析的对话模板
type PromptRegistry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

// NewPromptRegistry 创建模板注册表
func NewPromptRegistry() *PromptRegistry {
	return &PromptRegistry{cache: make(map[PromptID]einoprompt.ChatTemplate)}
}

// ChatTemplate 获取模板，首次访问时从内嵌文件加载
func (r *PromptRegistry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	system, err := readEmbeddedText(fmt.Sprintf("templates/%s.system.txt", id))
	if err != nil {
		return nil, fmt.Errorf("unknown prompt id %s: %w", id, err)
	}
	user, err := readEmbeddedText(fmt.Sprintf("templates/%s.user.txt", id))
	if err != nil {
		return nil, fmt.Errorf("unknown prompt id %s: %w", id, err)
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	r.cache[id] = tpl
	return tpl, nil
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
