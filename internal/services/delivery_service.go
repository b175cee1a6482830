package services

import (
	"context"
	"log"

	"relay-go/internal/config"
	"relay-go/internal/models"
	"relay-go/internal/relaytypes"
	"relay-go/internal/sniff"
	"relay-go/internal/storage"
)

// MediaSender 抽象投递流程用到的 WhatsApp 客户端调用，便于用假实现单测。
type MediaSender interface {
	UploadMedia(ctx context.Context, fileName, mimeType string, data []byte) (string, error)
	SendMedia(ctx context.Context, to string, msgType relaytypes.MessageType, mediaID, caption, fileName string) (string, error)
}

// DeliveryService 定义批量媒体投递的接口。
type DeliveryService interface {
	// Deliver 把一批文件投递到同一个目标号码，返回与输入同序的逐项结果。
	// 单个文件的失败被收进它自己的结果里，绝不中断批次的其余文件。
	// 返回 error 仅用于批次级失败（目前只有配置缺失）。
	Deliver(ctx context.Context, destination string, items []relaytypes.MediaItem, caption string) ([]relaytypes.DeliveryResult, error)

	// DeliverJob 执行一个异步批次任务，结果日志带上任务 ID。
	DeliverJob(ctx context.Context, job relaytypes.BatchJob) ([]relaytypes.DeliveryResult, error)
}

// deliveryService 是 DeliveryService 的实现。
type deliveryService struct {
	fetcher relaytypes.SourceFetcher
	cache   relaytypes.MediaCache
	client  MediaSender
	cfg     config.Config
	logRepo storage.MessageLogRepository // 可为 nil（未启用消息日志时）
}

// NewDeliveryService 创建一个新的 DeliveryService 实例。
func NewDeliveryService(fetcher relaytypes.SourceFetcher, cache relaytypes.MediaCache, client MediaSender, cfg config.Config, logRepo storage.MessageLogRepository) DeliveryService {
	return &deliveryService{
		fetcher: fetcher,
		cache:   cache,
		client:  client,
		cfg:     cfg,
		logRepo: logRepo,
	}
}

// Deliver 顺序处理批次中的每个文件。
// 串行是有意的：媒体接口对并发上传很敏感，单 worker 顺序处理可以避免限流退避。
func (s *deliveryService) Deliver(ctx context.Context, destination string, items []relaytypes.MediaItem, caption string) ([]relaytypes.DeliveryResult, error) {
	return s.deliver(ctx, destination, items, caption, "")
}

// DeliverJob 执行一个来自 Kafka 的异步批次任务。
func (s *deliveryService) DeliverJob(ctx context.Context, job relaytypes.BatchJob) ([]relaytypes.DeliveryResult, error) {
	return s.deliver(ctx, job.Destination, job.Items, job.Caption, job.JobID)
}

func (s *deliveryService) deliver(ctx context.Context, destination string, items []relaytypes.MediaItem, caption, jobID string) ([]relaytypes.DeliveryResult, error) {
	// 凭证缺失是批次级错误，在任何文件被处理之前返回
	if err := s.cfg.WhatsApp.Validate(); err != nil {
		return nil, err
	}

	results := make([]relaytypes.DeliveryResult, 0, len(items))
	for _, item := range items {
		res := s.deliverOne(ctx, destination, item, caption)
		results = append(results, res)
		s.logResult(ctx, destination, caption, jobID, res)
	}
	return results, nil
}

// deliverOne 执行单个文件的 fetch → sniff → 句柄解析 → 发送流程。
// 任何一步失败都终结这一个文件，错误细节进入结果，不向外传播。
func (s *deliveryService) deliverOne(ctx context.Context, destination string, item relaytypes.MediaItem, caption string) relaytypes.DeliveryResult {
	res := relaytypes.DeliveryResult{
		FileName: item.FileName,
		Status:   relaytypes.DeliveryFailed,
	}

	// 1. 完整读取源文件字节
	data, err := s.fetcher.Fetch(ctx, item.Location)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	// 2. 嗅探真实格式。声明的类型不可信，嗅探结果从这里起对该文件是权威的。
	format := sniff.Detect(data, item.MimeType, item.FileName)
	res.FileName = format.FileName
	res.MimeType = format.MimeType
	msgType := relaytypes.ClassifyMime(format.MimeType)

	// 3a. 优先使用缓存的媒体句柄，省掉一次上传往返
	entry, err := s.cache.Lookup(ctx, item.Location)
	if err != nil {
		// 缓存读取失败按未命中处理
		log.Printf("媒体缓存查询失败 (location=%s): %v", item.Location, err)
		entry = nil
	}
	if entry != nil {
		msgID, sendErr := s.client.SendMedia(ctx, destination, msgType, entry.MediaID, caption, format.FileName)
		if sendErr == nil {
			res.Status = relaytypes.DeliverySent
			res.MediaID = entry.MediaID
			res.MessageID = msgID
			return res
		}
		// 3b. 缓存句柄被拒绝（多半是句柄过期）。Graph 对失效句柄的报错形态不稳定，
		// 凡缓存句柄发送失败都按句柄失效处理：作废缓存，落回新上传。
		// 每个文件只有这一次重试机会。
		log.Printf("缓存句柄 %s 发送失败，作废后重新上传 (location=%s): %v", entry.MediaID, item.Location, sendErr)
		if invErr := s.cache.Invalidate(ctx, item.Location); invErr != nil {
			log.Printf("作废媒体缓存失败 (location=%s): %v", item.Location, invErr)
		}
	}

	// 3c. 上传字节，取得新句柄
	mediaID, err := s.client.UploadMedia(ctx, format.FileName, format.MimeType, data)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.MediaID = mediaID

	// 3d. 新句柄写入缓存；写入失败不影响本次投递
	if storeErr := s.cache.Store(ctx, item.Location, mediaID, format.MimeType, format.FileName); storeErr != nil {
		log.Printf("写入媒体缓存失败 (location=%s): %v", item.Location, storeErr)
	}

	// 4. 发送引用新句柄的消息
	msgID, err := s.client.SendMedia(ctx, destination, msgType, mediaID, caption, format.FileName)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Status = relaytypes.DeliverySent
	res.MessageID = msgID
	return res
}

// logResult 把单个文件的投递结果写入消息日志。日志失败只记录，不影响投递结果。
func (s *deliveryService) logResult(ctx context.Context, destination, caption, jobID string, res relaytypes.DeliveryResult) {
	if s.logRepo == nil {
		return
	}
	// 嗅探之前就失败的文件（如取源失败）没有权威 MIME 类型，
	// 日志里不猜消息类型，Type 留空。
	msgType := ""
	if res.MimeType != "" {
		msgType = string(relaytypes.ClassifyMime(res.MimeType))
	}
	entry := &models.MessageLog{
		Direction:     models.DirectionOutbound,
		Destination:   destination,
		Type:          msgType,
		Content:       caption,
		MediaID:       res.MediaID,
		MediaName:     res.FileName,
		MediaMimeType: res.MimeType,
		ExternalID:    res.MessageID,
		Status:        string(res.Status),
		ErrorDetail:   res.Error,
		JobID:         jobID,
	}
	if err := s.logRepo.Create(ctx, entry); err != nil {
		log.Printf("写入消息日志失败: %v", err)
	}
}
