// internal/handlers/relayserver/send_handler.go
package relayserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"relay-go/internal/config"
	appKafka "relay-go/internal/kafka"
	"relay-go/internal/relaytypes"
	"relay-go/internal/services"

	"github.com/google/uuid"
)

// SendHandler 封装了媒体批量投递相关的 HTTP 处理器方法。
type SendHandler struct {
	deliveryService services.DeliveryService
	producer        appKafka.MessageProducer // 异步批次入队；可为 nil（未启用 Kafka 时）
	kafkaCfg        config.KafkaConfig
}

// NewSendHandler 创建一个新的 SendHandler 实例。
func NewSendHandler(deliveryService services.DeliveryService, producer appKafka.MessageProducer, kafkaCfg config.KafkaConfig) *SendHandler {
	return &SendHandler{
		deliveryService: deliveryService,
		producer:        producer,
		kafkaCfg:        kafkaCfg,
	}
}

// FileDescriptor 描述请求中的单个文件。
// Location/URL 二选一：URL 是旧版 relay worker 用的字段名，继续兼容。
type FileDescriptor struct {
	Location string `json:"location"`
	URL      string `json:"url,omitempty"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
}

// SendFilesRequest 是批量投递请求的结构体。
// PhoneNumber 是旧版字段名，与 Destination 二选一。
type SendFilesRequest struct {
	Destination string           `json:"destination"`
	PhoneNumber string           `json:"phoneNumber,omitempty"`
	Files       []FileDescriptor `json:"files"`
	Caption     string           `json:"caption,omitempty"`
}

// SendFilesResponse 是批量投递的响应结构体。
// 部分文件失败不是传输层错误：只要批次被处理过就返回 200，
// Success 表示是否全部成功，逐项结果在 Results 里。
type SendFilesResponse struct {
	Success bool                        `json:"success"`
	Results []relaytypes.DeliveryResult `json:"results"`
}

// ErrorResponse 是 API 错误响应的通用结构体。
type ErrorResponse struct {
	Error string `json:"error"`
}

// SendFilesHandler 处理同步批量投递请求。
func (h *SendHandler) SendFilesHandler(w http.ResponseWriter, r *http.Request) {
	destination, items, caption, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}

	results, err := h.deliveryService.Deliver(r.Context(), destination, items, caption)
	if err != nil {
		// 批次级失败只剩配置缺失一种；逐项失败已经收进 results
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			writeJSONError(w, cfgErr.Error(), http.StatusInternalServerError)
			return
		}
		log.Printf("批量投递意外失败: %v", err)
		writeJSONError(w, fmt.Sprintf("批量投递失败: %v", err), http.StatusInternalServerError)
		return
	}

	success := true
	for _, res := range results {
		if res.Status != relaytypes.DeliverySent {
			success = false
			break
		}
	}
	writeJSONResponse(w, http.StatusOK, SendFilesResponse{Success: success, Results: results})
}

// SendFilesAsyncHandler 把批次封装成任务写入 Kafka，立即返回任务 ID。
// 实际投递由 relayworker 完成，结果记录在消息日志里。
func (h *SendHandler) SendFilesAsyncHandler(w http.ResponseWriter, r *http.Request) {
	destination, items, caption, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}
	if h.producer == nil {
		writeJSONError(w, "异步投递未启用 (Kafka 未配置)", http.StatusInternalServerError)
		return
	}

	job := relaytypes.BatchJob{
		JobID:       uuid.New().String(),
		Destination: destination,
		Items:       items,
		Caption:     caption,
		EnqueuedAt:  time.Now(),
	}
	payload, err := json.Marshal(job)
	if err != nil {
		writeJSONError(w, "序列化任务失败", http.StatusInternalServerError)
		return
	}

	if err := h.producer.SendMessage(r.Context(), h.kafkaCfg.BatchJobsTopic, []byte(job.JobID), payload); err != nil {
		log.Printf("任务 %s 入队失败: %v", job.JobID, err)
		writeJSONError(w, "任务入队失败", http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusAccepted, map[string]string{"jobId": job.JobID})
}

// decodeBatch 解析并校验批量投递请求体。校验失败时已写好响应，返回 ok=false。
func (h *SendHandler) decodeBatch(w http.ResponseWriter, r *http.Request) (string, []relaytypes.MediaItem, string, bool) {
	var req SendFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return "", nil, "", false
	}
	defer r.Body.Close()

	destination := req.Destination
	if destination == "" {
		destination = req.PhoneNumber
	}
	if destination == "" {
		writeJSONError(w, "destination 不能为空", http.StatusBadRequest)
		return "", nil, "", false
	}
	if len(req.Files) == 0 {
		writeJSONError(w, "files 不能为空", http.StatusBadRequest)
		return "", nil, "", false
	}

	items := make([]relaytypes.MediaItem, 0, len(req.Files))
	for i, f := range req.Files {
		location := f.Location
		if location == "" {
			location = f.URL
		}
		if location == "" {
			writeJSONError(w, fmt.Sprintf("files[%d] 缺少 location", i), http.StatusBadRequest)
			return "", nil, "", false
		}
		items = append(items, relaytypes.MediaItem{
			Location: location,
			FileName: f.FileName,
			MimeType: f.MimeType,
		})
	}
	return destination, items, req.Caption, true
}

// writeJSONResponse 是一个辅助函数，用于发送 JSON 响应。
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// 头部已经发出，只能记录
			log.Printf("无法编码 JSON 响应: %v", err)
		}
	}
}

// writeJSONError 是一个辅助函数，用于发送 JSON 格式的错误响应。
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, ErrorResponse{Error: message})
}
