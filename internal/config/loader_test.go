package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("VIDSUM_TEST_HOST", "db.internal")

	out := expandEnv("host: ${VIDSUM_TEST_HOST:localhost}\nport: ${VIDSUM_TEST_PORT:5432}\nkey: ${VIDSUM_TEST_UNSET}")
	assert.Equal(t, "host: db.internal\nport: 5432\nkey: ${VIDSUM_TEST_UNSET}", out)
}

func TestLoadFrom_DefaultsWithoutFiles(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "vidsum-ai-api", cfg.App.Name)
	assert.Equal(t, KnowledgeBackendMemory, cfg.Knowledge.Backend)
	assert.Equal(t, 2, cfg.Pipeline.Segmenter.WindowSpans)
	assert.InDelta(t, 0.65, cfg.Pipeline.Segmenter.DriftThreshold, 1e-9)
	assert.Equal(t, 300, cfg.Pipeline.FallbackSummaryRunes)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.Segmenter.MaxSegmentDuration)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Providers["groq"].Model)
	assert.Equal(t, "whisper-large-v3-turbo", cfg.Transcription.Model)
}

func TestLoadFrom_EnvFileOverridesBase(t *testing.T) {
	dir := t.TempDir()
	base := "pipeline:\n  max_concurrent_calls: 2\n  segmenter:\n    window_spans: ${VIDSUM_TEST_WINDOW:3}\n"
	override := "pipeline:\n  max_concurrent_calls: 8\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(base), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.test.yaml"), []byte(override), 0o644))
	t.Setenv("APP_ENV", "test")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Pipeline.MaxConcurrentCalls)
	assert.Equal(t, 3, cfg.Pipeline.Segmenter.WindowSpans)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	bad := *cfg
	bad.Knowledge.Backend = "cassandra"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Knowledge.Backend = KnowledgeBackendRedis
	bad.Cache.Redis.Enabled = false
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Pipeline.Segmenter.DriftThreshold = 1.5
	assert.Error(t, bad.Validate())
}
