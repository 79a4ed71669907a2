// Package storage 提供本地文件系统上的上传与导图文件存储
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"vidsum-ai-api/internal/config"
	apperrors "vidsum-ai-api/pkg/errors"
)

// LocalFileStore 本地目录存储
type LocalFileStore struct {
	uploadDir string
	outputDir string
}

// NewLocalFileStore 创建本地存储并确保目录存在
func NewLocalFileStore(cfg *config.StorageConfig) (*LocalFileStore, error) {
	for _, dir := range []string{cfg.UploadDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return &LocalFileStore{uploadDir: cfg.UploadDir, outputDir: cfg.OutputDir}, nil
}

// SaveUpload 保存上传文件，文件名加随机前缀避免覆盖
func (s *LocalFileStore) SaveUpload(ctx context.Context, filename string, r io.Reader, maxBytes int64) (string, error) {
	name := sanitizeName(filename)
	if name == "" {
		return "", apperrors.ErrMalformedUpload.WithDetail("missing file name")
	}
	path := filepath.Join(s.uploadDir, uuid.NewString()+"_"+name)

	f, err := os.Create(path)
	if err != nil {
		return "", apperrors.ErrStorage.WithError(err)
	}

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	n, copyErr := io.Copy(f, &ctxReader{ctx: ctx, r: src})
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		_ = os.Remove(path)
		if ctx.Err() != nil {
			return "", apperrors.ErrJobCancelled.WithError(copyErr)
		}
		return "", apperrors.ErrStorage.WithError(copyErr)
	case closeErr != nil:
		_ = os.Remove(path)
		return "", apperrors.ErrStorage.WithError(closeErr)
	case maxBytes > 0 && n > maxBytes:
		_ = os.Remove(path)
		return "", apperrors.ErrMalformedUpload.WithDetail(fmt.Sprintf("file exceeds %d bytes", maxBytes))
	case n == 0:
		_ = os.Remove(path)
		return "", apperrors.ErrMalformedUpload.WithDetail("file is empty")
	}
	return path, nil
}

// WriteMindmap 写入 <output_dir>/<video_id>_mindmap.mmd
func (s *LocalFileStore) WriteMindmap(ctx context.Context, videoID, code string) (string, error) {
	name := sanitizeName(videoID)
	if name == "" {
		return "", apperrors.ErrInvalidParam.WithDetail("video_id is required")
	}
	path := filepath.Join(s.outputDir, name+"_mindmap.mmd")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(code), 0o644); err != nil {
		return "", apperrors.ErrStorage.WithError(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", apperrors.ErrStorage.WithError(err)
	}
	return path, nil
}

// Remove 删除文件，不存在时忽略
func (s *LocalFileStore) Remove(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.ErrStorage.WithError(err)
	}
	return nil
}

// sanitizeName 只保留文件名部分并替换路径分隔等特殊字符
func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(strings.ReplaceAll(name, "\\", "/")))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == '/', r == ':', r == '*', r == '?', r == '"', r == '<', r == '>', r == '|':
			return '_'
		default:
			return r
		}
	}, name)
}

// ctxReader 在上下文取消后停止读取
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
