package service

import (
	"context"
	"io"
)

// FileStore 上传文件与导图文件的存储
type FileStore interface {
	// SaveUpload 保存上传内容，超过 maxBytes 时返回 ErrMalformedUpload
	SaveUpload(ctx context.Context, filename string, r io.Reader, maxBytes int64) (string, error)
	// WriteMindmap 写入导图文本，返回文件引用
	WriteMindmap(ctx context.Context, videoID, code string) (string, error)
	// Remove 删除文件，文件不存在时不报错
	Remove(ctx context.Context, path string) error
}
