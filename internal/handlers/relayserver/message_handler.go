// internal/handlers/relayserver/message_handler.go
package relayserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"relay-go/internal/config"
	"relay-go/internal/services"
)

// MessageHandler 封装了文本消息与消息日志相关的 HTTP 处理器方法。
type MessageHandler struct {
	messageService services.MessageService
}

// NewMessageHandler 创建一个新的 MessageHandler 实例。
func NewMessageHandler(messageService services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// SendTextRequest 是发送文本消息的请求结构体。
type SendTextRequest struct {
	Destination     string `json:"destination"`
	Message         string `json:"message"`
	PreviewURL      bool   `json:"previewUrl,omitempty"`
	QuotedMessageID string `json:"quotedMessageId,omitempty"`
}

// SendTextHandler 处理发送文本消息的请求。
func (h *MessageHandler) SendTextHandler(w http.ResponseWriter, r *http.Request) {
	var req SendTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.Destination == "" {
		writeJSONError(w, "destination 不能为空", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		writeJSONError(w, "message 不能为空", http.StatusBadRequest)
		return
	}

	msgID, err := h.messageService.SendText(r.Context(), req.Destination, req.Message, req.PreviewURL, req.QuotedMessageID)
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			writeJSONError(w, cfgErr.Error(), http.StatusInternalServerError)
			return
		}
		writeJSONError(w, fmt.Sprintf("发送失败: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"messageId": msgID,
	})
}

// MarkReadRequest 是批量已读回执的请求结构体。
type MarkReadRequest struct {
	MessageIDs []string `json:"messageIds"`
}

// MarkReadHandler 处理批量已读回执的请求。逐条尽力而为，失败的 ID 在响应中列出。
func (h *MessageHandler) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "请求体无效", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(req.MessageIDs) == 0 {
		writeJSONError(w, "messageIds 不能为空", http.StatusBadRequest)
		return
	}

	failed, err := h.messageService.MarkMessagesRead(r.Context(), req.MessageIDs)
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			writeJSONError(w, cfgErr.Error(), http.StatusInternalServerError)
			return
		}
		writeJSONError(w, fmt.Sprintf("标记已读失败: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": len(failed) == 0,
		"failed":  failed,
	})
}

// ListMessagesHandler 返回最近的消息日志，支持 limit/offset 分页。
// 带 jobId 查询参数时改为返回该异步批次任务的全部日志。
func (h *MessageHandler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	if jobID := r.URL.Query().Get("jobId"); jobID != "" {
		entries, err := h.messageService.ListJobMessages(r.Context(), jobID)
		if err != nil {
			writeJSONError(w, fmt.Sprintf("获取任务日志失败: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSONResponse(w, http.StatusOK, entries)
		return
	}

	limit := parseQueryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	offset := parseQueryInt(r, "offset", 0)

	entries, err := h.messageService.ListMessages(r.Context(), limit, offset)
	if err != nil {
		writeJSONError(w, fmt.Sprintf("获取消息日志失败: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, entries)
}

// parseQueryInt 解析查询参数中的整数，无效时返回默认值。
func parseQueryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return def
	}
	return val
}
