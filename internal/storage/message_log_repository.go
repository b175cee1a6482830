package storage

import (
	"context"

	"gorm.io/gorm"

	"relay-go/internal/models"
)

// MessageLogRepository 定义了消息日志数据操作的接口。
type MessageLogRepository interface {
	Create(ctx context.Context, entry *models.MessageLog) error
	List(ctx context.Context, limit int, offset int) ([]*models.MessageLog, error)
	ListByJobID(ctx context.Context, jobID string) ([]*models.MessageLog, error)
}

// gormMessageLogRepository 使用 GORM 实现 MessageLogRepository。
type gormMessageLogRepository struct {
	db *gorm.DB
}

// NewGormMessageLogRepository 创建一个新的基于 GORM 的 MessageLogRepository。
func NewGormMessageLogRepository(db *gorm.DB) MessageLogRepository {
	return &gormMessageLogRepository{db: db}
}

// Create 在数据库中创建一条新的消息日志。
func (r *gormMessageLogRepository) Create(ctx context.Context, entry *models.MessageLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List 按创建时间倒序返回消息日志，支持分页。
func (r *gormMessageLogRepository) List(ctx context.Context, limit int, offset int) ([]*models.MessageLog, error) {
	var entries []*models.MessageLog
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	err := query.Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListByJobID 返回某个异步批次任务产生的全部日志。
func (r *gormMessageLogRepository) ListByJobID(ctx context.Context, jobID string) ([]*models.MessageLog, error) {
	var entries []*models.MessageLog
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).Order("created_at ASC").Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
