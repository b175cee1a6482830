// internal/relaytypes/media_cache_iface.go
package relaytypes

import (
	"context"
	"time"
)

// CacheEntry 记录某个源文件成功上传后获得的远端媒体句柄。
type CacheEntry struct {
	Location  string
	MediaID   string
	MimeType  string
	FileName  string
	CreatedAt time.Time
}

// MediaCache 定义媒体句柄缓存的操作接口。
// 接口放在 relaytypes 中以打破 storage 和 services 之间的循环依赖。
//
// Store 必须是以 location 为键的原子 upsert：同一 location 重复写入
// 只保留最新值，并发 Lookup 只能看到旧值或新值，不会看到中间状态。
type MediaCache interface {
	// Lookup 返回 location 对应的缓存条目；未命中返回 (nil, nil)。
	Lookup(ctx context.Context, location string) (*CacheEntry, error)

	// Store 写入（或覆盖）location 的媒体句柄。
	Store(ctx context.Context, location, mediaID, mimeType, fileName string) error

	// Invalidate 删除 location 的缓存条目。远端报告句柄失效时调用。
	Invalidate(ctx context.Context, location string) error
}
