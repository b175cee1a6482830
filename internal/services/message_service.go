package services

import (
	"context"
	"fmt"
	"log"

	"relay-go/internal/config"
	"relay-go/internal/models"
	"relay-go/internal/relaytypes"
	"relay-go/internal/storage"
)

// TextSender 抽象文本/回执相关的 WhatsApp 客户端调用。
type TextSender interface {
	SendText(ctx context.Context, to, body string, previewURL bool, quotedMessageID string) (string, error)
	MarkRead(ctx context.Context, messageID string) error
}

// MessageService 定义文本发送、已读回执与消息日志查询的接口。
type MessageService interface {
	// SendText 发送一条文本消息，返回 WhatsApp 的消息 ID。
	SendText(ctx context.Context, destination, body string, previewURL bool, quotedMessageID string) (string, error)

	// MarkMessagesRead 把一组入站消息标记为已读。逐条尽力而为，
	// 返回标记失败的消息 ID 列表；单条失败不中断其余。
	MarkMessagesRead(ctx context.Context, messageIDs []string) ([]string, error)

	// ListMessages 按时间倒序返回消息日志。
	ListMessages(ctx context.Context, limit, offset int) ([]*models.MessageLog, error)

	// ListJobMessages 返回某个异步批次任务产生的全部日志。
	ListJobMessages(ctx context.Context, jobID string) ([]*models.MessageLog, error)
}

// messageService 是 MessageService 的实现。
type messageService struct {
	client  TextSender
	cfg     config.Config
	logRepo storage.MessageLogRepository
}

// NewMessageService 创建一个新的 MessageService 实例。
func NewMessageService(client TextSender, cfg config.Config, logRepo storage.MessageLogRepository) MessageService {
	return &messageService{
		client:  client,
		cfg:     cfg,
		logRepo: logRepo,
	}
}

// SendText 发送文本消息并写入消息日志。
func (s *messageService) SendText(ctx context.Context, destination, body string, previewURL bool, quotedMessageID string) (string, error) {
	if err := s.cfg.WhatsApp.Validate(); err != nil {
		return "", err
	}
	if destination == "" {
		return "", fmt.Errorf("目标号码不能为空")
	}
	if body == "" {
		return "", fmt.Errorf("消息内容不能为空")
	}

	entry := &models.MessageLog{
		Direction:   models.DirectionOutbound,
		Destination: destination,
		Type:        string(relaytypes.TextMessageType),
		Content:     body,
	}

	msgID, err := s.client.SendText(ctx, destination, body, previewURL, quotedMessageID)
	if err != nil {
		entry.Status = string(relaytypes.DeliveryFailed)
		entry.ErrorDetail = err.Error()
		s.writeLog(ctx, entry)
		return "", fmt.Errorf("发送文本消息失败: %w", err)
	}

	entry.Status = string(relaytypes.DeliverySent)
	entry.ExternalID = msgID
	s.writeLog(ctx, entry)
	return msgID, nil
}

// MarkMessagesRead 逐条标记已读，收集失败的 ID。
func (s *messageService) MarkMessagesRead(ctx context.Context, messageIDs []string) ([]string, error) {
	if err := s.cfg.WhatsApp.Validate(); err != nil {
		return nil, err
	}

	var failed []string
	for _, id := range messageIDs {
		if err := s.client.MarkRead(ctx, id); err != nil {
			log.Printf("标记消息 %s 已读失败: %v", id, err)
			failed = append(failed, id)
		}
	}
	return failed, nil
}

// ListMessages 返回消息日志。
func (s *messageService) ListMessages(ctx context.Context, limit, offset int) ([]*models.MessageLog, error) {
	if s.logRepo == nil {
		return nil, fmt.Errorf("消息日志未启用")
	}
	return s.logRepo.List(ctx, limit, offset)
}

// ListJobMessages 返回某个异步批次任务的日志，调用方用它查询任务结果。
func (s *messageService) ListJobMessages(ctx context.Context, jobID string) ([]*models.MessageLog, error) {
	if s.logRepo == nil {
		return nil, fmt.Errorf("消息日志未启用")
	}
	return s.logRepo.ListByJobID(ctx, jobID)
}

func (s *messageService) writeLog(ctx context.Context, entry *models.MessageLog) {
	if s.logRepo == nil {
		return
	}
	if err := s.logRepo.Create(ctx, entry); err != nil {
		log.Printf("写入消息日志失败: %v", err)
	}
}
