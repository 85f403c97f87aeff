package storage

import (
	"context"
	"errors"
	"time"
)

// 对象存储按 put/get 的 blob 服务抽象。实现方只需保证：
// - upsert=false 时同路径二次写入必须报 ErrBlobExists（可见错误而非静默覆盖）
// - PublicURL 纯计算，不发请求
var (
	ErrBlobExists   = errors.New("blob already exists")
	ErrBlobNotFound = errors.New("blob not found")
)

// BlobInfo 列举结果中的对象摘要，供对账清扫使用。
type BlobInfo struct {
	Path      string
	Size      int64
	CreatedAt time.Time
}

type BlobStore interface {
	// Put 写入对象并返回可访问 URL。upsert=false 时同路径冲突返回 ErrBlobExists。
	Put(ctx context.Context, path string, data []byte, contentType string, upsert bool) (string, error)
	// Delete 删除对象，对象不存在返回 ErrBlobNotFound。
	Delete(ctx context.Context, path string) error
	// List 列举指定前缀下的全部对象。
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	// PublicURL 由路径直接拼出公开访问地址。
	PublicURL(path string) string
	// SignedURL 生成限时下载链接，供管理员审阅凭证。
	SignedURL(ctx context.Context, path string, expiresIn time.Duration) (string, error)
}
