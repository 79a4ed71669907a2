package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsum-ai-api/internal/config"
	apperrors "vidsum-ai-api/pkg/errors"
)

func newStore(t *testing.T) *LocalFileStore {
	t.Helper()
	root := t.TempDir()
	s, err := NewLocalFileStore(&config.StorageConfig{
		UploadDir: filepath.Join(root, "uploads"),
		OutputDir: filepath.Join(root, "outputs"),
	})
	require.NoError(t, err)
	return s
}

func TestSaveUpload(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	path, err := s.SaveUpload(ctx, "../../etc/lecture.mp4", strings.NewReader("video-bytes"), 100)
	require.NoError(t, err)
	assert.Equal(t, s.uploadDir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, "_lecture.mp4"))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(b))

	require.NoError(t, s.Remove(ctx, path))
	require.NoError(t, s.Remove(ctx, path))
}

func TestSaveUpload_Rejects(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.SaveUpload(ctx, "big.mp4", strings.NewReader("0123456789"), 5)
	assert.ErrorIs(t, err, apperrors.ErrMalformedUpload)

	_, err = s.SaveUpload(ctx, "empty.mp4", strings.NewReader(""), 5)
	assert.ErrorIs(t, err, apperrors.ErrMalformedUpload)

	entries, err := os.ReadDir(s.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveUpload_Cancelled(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.SaveUpload(ctx, "a.mp4", strings.NewReader("data"), 0)
	assert.ErrorIs(t, err, apperrors.ErrJobCancelled)
}

func TestWriteMindmap(t *testing.T) {
	s := newStore(t)
	path, err := s.WriteMindmap(context.Background(), "abc123", "mindmap\n  root((\"x\"))")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.outputDir, "abc123_mindmap.mmd"), path)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mindmap\n  root((\"x\"))", string(b))
}
