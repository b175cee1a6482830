// internal/relaytypes/file_store_iface.go
package relaytypes

import (
	"context"
	"io"
)

// FileStore 定义了本地文件仓库的操作接口。
// CRM 后端可以先把文件上传到仓库，再用返回的 locator 提交投递批次。
type FileStore interface {
	// Save 将读取器中的内容保存到仓库，返回文件信息（包含 locator）。
	Save(ctx context.Context, reader io.Reader, fileSize int64, fileName string, mimeType string) (*FileInfo, error)

	// Open 读取 locator 对应文件的完整字节内容。
	Open(ctx context.Context, locator string) ([]byte, error)
}

// FileInfo 包含已保存文件的基本信息。
type FileInfo struct {
	Locator  string `json:"locator"`  // 仓库内的唯一标识，可作为 MediaItem.Location 使用
	Path     string `json:"path"`     // 文件在本地文件系统中的路径
	Size     int64  `json:"size"`     // 文件大小 (字节)
	MimeType string `json:"mimeType"` // 调用方声明的 MIME 类型
	FileName string `json:"fileName"` // 原始文件名
}
