package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"relay-go/internal/config"
	"relay-go/internal/relaytypes"

	"github.com/google/uuid"
)

// LocalFileStore 实现了 relaytypes.FileStore 接口。
// CRM 后端可以先把文件 POST 到本服务，再用返回的 locator 提交投递批次，
// 避免给每个文件签发可公网访问的 URL。
type LocalFileStore struct {
	basePath string // 本地存储的基础路径，例如 "./uploads"
}

// NewLocalFileStore 创建一个新的 LocalFileStore 实例。
// basePath 是文件存储的根目录，不存在时会创建。
func NewLocalFileStore(cfg config.StorageConfig) (relaytypes.FileStore, error) {
	if err := os.MkdirAll(cfg.LocalPath, 0755); err != nil {
		return nil, fmt.Errorf("创建本地存储目录失败 '%s': %w", cfg.LocalPath, err)
	}
	return &LocalFileStore{basePath: cfg.LocalPath}, nil
}

// Save 将文件保存到本地文件系统，返回带 locator 的文件信息。
func (s *LocalFileStore) Save(ctx context.Context, reader io.Reader, fileSize int64, fileName string, mimeType string) (*relaytypes.FileInfo, error) {
	// 生成一个唯一的 locator，保留原始扩展名
	ext := filepath.Ext(fileName)
	if ext == "" {
		// 如果没有扩展名，尝试从 MIME 类型推断
		extensions, _ := mime.ExtensionsByType(mimeType)
		if len(extensions) > 0 {
			ext = extensions[0]
		}
	}
	locator := uuid.New().String() + ext

	dstPath := filepath.Join(s.basePath, locator)

	dst, err := os.Create(dstPath)
	if err != nil {
		return nil, fmt.Errorf("创建目标文件失败 '%s': %w", dstPath, err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, reader)
	if err != nil {
		// 如果复制出错，尝试删除已创建的文件
		os.Remove(dstPath)
		return nil, fmt.Errorf("写入文件失败: %w", err)
	}
	if written != fileSize {
		os.Remove(dstPath)
		return nil, fmt.Errorf("文件大小不匹配: 预期 %d, 实际写入 %d", fileSize, written)
	}

	return &relaytypes.FileInfo{
		Locator:  locator,
		Path:     dstPath,
		Size:     fileSize,
		MimeType: mimeType,
		FileName: fileName,
	}, nil
}

// Open 读取 locator 对应文件的完整字节内容。
// locator 必须是 Save 返回的裸文件名，拒绝任何带路径成分的值。
func (s *LocalFileStore) Open(ctx context.Context, locator string) ([]byte, error) {
	if locator == "" || locator != filepath.Base(locator) || strings.HasPrefix(locator, ".") {
		return nil, fmt.Errorf("无效的 locator: %q", locator)
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, locator))
	if err != nil {
		return nil, fmt.Errorf("读取本地文件失败 '%s': %w", locator, err)
	}
	return data, nil
}
