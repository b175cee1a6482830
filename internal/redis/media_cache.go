package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"relay-go/internal/relaytypes"
)

// redisMediaCache 是 relaytypes.MediaCache 的 Redis 实现，
// 作为 postgres 之外的可选后端（CACHE.TYPE=redis）。
// 每个 location 对应一个 hash，HSet 单条命令写入全部字段，天然满足原子 upsert。
type redisMediaCache struct {
	client *redis.Client
}

// NewRedisMediaCache 创建一个新的基于 Redis 的 MediaCache 实例。
func NewRedisMediaCache(client *redis.Client) relaytypes.MediaCache {
	return &redisMediaCache{client: client}
}

const cacheKeyPrefix = "wa:media:"

// Lookup 按 location 查找缓存条目，未命中返回 (nil, nil)。
func (r *redisMediaCache) Lookup(ctx context.Context, location string) (*relaytypes.CacheEntry, error) {
	fields, err := r.client.HGetAll(ctx, cacheKeyPrefix+location).Result()
	if err != nil {
		return nil, fmt.Errorf("从 Redis 读取媒体缓存失败 for %s: %w", location, err)
	}
	if len(fields) == 0 {
		return nil, nil // Key 不存在，即未命中
	}

	entry := &relaytypes.CacheEntry{
		Location: location,
		MediaID:  fields["media_id"],
		MimeType: fields["mime_type"],
		FileName: fields["file_name"],
	}
	if ts, err := time.Parse(time.RFC3339, fields["created_at"]); err == nil {
		entry.CreatedAt = ts
	}
	return entry, nil
}

// Store 写入（或覆盖）location 的媒体句柄。
func (r *redisMediaCache) Store(ctx context.Context, location, mediaID, mimeType, fileName string) error {
	err := r.client.HSet(ctx, cacheKeyPrefix+location,
		"media_id", mediaID,
		"mime_type", mimeType,
		"file_name", fileName,
		"created_at", time.Now().UTC().Format(time.RFC3339),
	).Err()
	if err != nil {
		return fmt.Errorf("写入 Redis 媒体缓存失败 for %s: %w", location, err)
	}
	return nil
}

// Invalidate 删除 location 的缓存条目。
func (r *redisMediaCache) Invalidate(ctx context.Context, location string) error {
	if err := r.client.Del(ctx, cacheKeyPrefix+location).Err(); err != nil {
		return fmt.Errorf("删除 Redis 媒体缓存失败 for %s: %w", location, err)
	}
	return nil
}
