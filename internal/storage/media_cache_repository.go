package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"relay-go/internal/models"
	"relay-go/internal/relaytypes"
)

// gormMediaCache 使用 GORM 实现 relaytypes.MediaCache（postgres 后端）。
type gormMediaCache struct {
	db *gorm.DB
}

// NewGormMediaCache 创建一个新的基于 GORM 的 MediaCache。
func NewGormMediaCache(db *gorm.DB) relaytypes.MediaCache {
	return &gormMediaCache{db: db}
}

// Lookup 按 location 查找缓存条目，未命中返回 (nil, nil)。
func (r *gormMediaCache) Lookup(ctx context.Context, location string) (*relaytypes.CacheEntry, error) {
	var entry models.MediaCacheEntry
	err := r.db.WithContext(ctx).Where("location = ?", location).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &relaytypes.CacheEntry{
		Location:  entry.Location,
		MediaID:   entry.MediaID,
		MimeType:  entry.MimeType,
		FileName:  entry.FileName,
		CreatedAt: entry.UpdatedAt, // upsert 覆盖时 UpdatedAt 即句柄的获取时间
	}, nil
}

// Store 以 location 为键做原子 upsert：同一 location 只保留最新句柄，不产生重复行。
func (r *gormMediaCache) Store(ctx context.Context, location, mediaID, mimeType, fileName string) error {
	entry := models.MediaCacheEntry{
		Location: location,
		MediaID:  mediaID,
		MimeType: mimeType,
		FileName: fileName,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "location"}},
			DoUpdates: clause.AssignmentColumns([]string{"media_id", "mime_type", "file_name", "updated_at"}),
		}).
		Create(&entry).Error
}

// Invalidate 物理删除 location 的缓存条目。条目不存在时不算错误。
func (r *gormMediaCache) Invalidate(ctx context.Context, location string) error {
	return r.db.WithContext(ctx).
		Where("location = ?", location).
		Delete(&models.MediaCacheEntry{}).Error
}
