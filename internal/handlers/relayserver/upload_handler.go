// internal/handlers/relayserver/upload_handler.go
package relayserver

import (
	"fmt"
	"log"
	"net/http"

	"relay-go/internal/config"
	"relay-go/internal/relaytypes"
)

const (
	defaultMaxMemory = 32 << 20 // 32 MB default max memory for multipart forms
)

// UploadHandler 封装了文件上传相关的 HTTP 处理器方法。
// CRM 后端先把文件传进本地仓库，再用返回的 locator 提交投递批次。
type UploadHandler struct {
	fileStore relaytypes.FileStore
	cfg       config.StorageConfig
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(fileStore relaytypes.FileStore, cfg config.StorageConfig) *UploadHandler {
	return &UploadHandler{
		fileStore: fileStore,
		cfg:       cfg,
	}
}

// UploadFileHandler 处理文件上传请求。
func (h *UploadHandler) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	// 1. 限制请求体大小
	maxUploadSize := h.cfg.MaxFileSizeMB << 20 // Convert MB to bytes
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxMemory
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	// 2. 解析 multipart form
	if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
		if err.Error() == "http: request body too large" {
			msg := fmt.Sprintf("上传文件过大，最大允许 %d MB", maxUploadSize>>20)
			writeJSONError(w, msg, http.StatusRequestEntityTooLarge)
		} else {
			writeJSONError(w, fmt.Sprintf("解析表单失败: %v", err), http.StatusBadRequest)
		}
		return
	}

	// 3. 获取文件，"file" 是表单中文件的 key
	file, handler, err := r.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile {
			writeJSONError(w, "请求中缺少 'file' 字段", http.StatusBadRequest)
		} else {
			writeJSONError(w, fmt.Sprintf("获取文件失败: %v", err), http.StatusBadRequest)
		}
		return
	}
	defer file.Close()

	// 4. 声明的类型只做记录；真实类型在投递时由嗅探决定
	mimeType := handler.Header.Get("Content-Type")
	log.Printf("收到上传文件: 名称=%s, 大小=%d, 类型=%s", handler.Filename, handler.Size, mimeType)

	// 5. 再次确认文件大小（MaxBytesReader 针对的是整个请求体）
	if handler.Size > maxUploadSize {
		msg := fmt.Sprintf("上传文件过大，最大允许 %d MB", maxUploadSize>>20)
		writeJSONError(w, msg, http.StatusRequestEntityTooLarge)
		return
	}

	// 6. 保存到本地仓库
	fileInfo, err := h.fileStore.Save(r.Context(), file, handler.Size, handler.Filename, mimeType)
	if err != nil {
		log.Printf("存储文件失败: %v", err)
		writeJSONError(w, "存储文件失败", http.StatusInternalServerError)
		return
	}

	// 7. 返回文件信息，locator 可直接用于投递批次
	writeJSONResponse(w, http.StatusOK, fileInfo)
}
