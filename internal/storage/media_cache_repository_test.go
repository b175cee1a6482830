package storage

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"relay-go/internal/config"
	"relay-go/internal/models"
)

// 集成测试：需要一个可用的 Postgres 实例。
// 通过 RELAY_TEST_DB_HOST 指定主机（配合 RELAY_TEST_DB_PORT/USER/PASSWORD/NAME），
// 未设置时跳过。
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	host := os.Getenv("RELAY_TEST_DB_HOST")
	if host == "" {
		t.Skip("RELAY_TEST_DB_HOST 未设置，跳过数据库集成测试")
	}
	port := 5432
	if raw := os.Getenv("RELAY_TEST_DB_PORT"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil {
			port = p
		}
	}
	cfg := config.DatabaseConfig{
		Type:     "postgres",
		Host:     host,
		Port:     port,
		User:     envOr("RELAY_TEST_DB_USER", "postgres"),
		Password: os.Getenv("RELAY_TEST_DB_PASSWORD"),
		DBName:   envOr("RELAY_TEST_DB_NAME", "relay_go_test"),
		SSLMode:  "disable",
	}
	db, err := InitDB(cfg)
	if err != nil {
		t.Fatalf("无法连接测试数据库: %v", err)
	}
	if err := db.AutoMigrate(&models.MediaCacheEntry{}); err != nil {
		t.Fatalf("迁移 media_cache_entries 失败: %v", err)
	}
	return db
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestGormMediaCacheUpsertLatestWins(t *testing.T) {
	db := testDB(t)
	cache := NewGormMediaCache(db)
	ctx := context.Background()
	location := "it-" + uuid.New().String()
	t.Cleanup(func() { _ = cache.Invalidate(ctx, location) })

	// 同一 location 写两次不同句柄：OnConflict 更新而不是插入第二行
	if err := cache.Store(ctx, location, "MEDIA-A", "image/png", "a.png"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := cache.Store(ctx, location, "MEDIA-B", "image/jpeg", "b.jpg"); err != nil {
		t.Fatalf("Store (覆盖): %v", err)
	}

	entry, err := cache.Lookup(ctx, location)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entry == nil {
		t.Fatal("Lookup 未命中，期望命中")
	}
	if entry.MediaID != "MEDIA-B" || entry.MimeType != "image/jpeg" || entry.FileName != "b.jpg" {
		t.Errorf("entry = %+v, 期望最后一次写入的值", entry)
	}

	var count int64
	if err := db.Model(&models.MediaCacheEntry{}).Where("location = ?", location).Count(&count).Error; err != nil {
		t.Fatalf("统计行数失败: %v", err)
	}
	if count != 1 {
		t.Errorf("location 的行数 = %d, 期望恰好 1 行", count)
	}
}

func TestGormMediaCacheInvalidateAllowsReinsert(t *testing.T) {
	db := testDB(t)
	cache := NewGormMediaCache(db)
	ctx := context.Background()
	location := "it-" + uuid.New().String()
	t.Cleanup(func() { _ = cache.Invalidate(ctx, location) })

	if err := cache.Store(ctx, location, "MEDIA-A", "image/png", "a.png"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := cache.Invalidate(ctx, location); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	entry, err := cache.Lookup(ctx, location)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entry != nil {
		t.Errorf("作废后 Lookup = %+v, 期望未命中", entry)
	}

	// 物理删除后同一 location 必须能重新插入（uniqueIndex 不再阻挡）
	if err := cache.Store(ctx, location, "MEDIA-C", "image/png", "a.png"); err != nil {
		t.Fatalf("作废后重新 Store: %v", err)
	}
	entry, err = cache.Lookup(ctx, location)
	if err != nil || entry == nil || entry.MediaID != "MEDIA-C" {
		t.Errorf("重新写入后 Lookup = %+v, err = %v", entry, err)
	}
}
