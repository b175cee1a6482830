// internal/sniff/sniff.go
package sniff

import (
	"path/filepath"
	"strings"

	"relay-go/internal/relaytypes"
)

// sniffLen 是判断文件格式需要的最大头部字节数（WebP 的标记在第 8-11 字节）。
const sniffLen = 12

// signature 描述一种可识别的文件头。
type signature struct {
	mimeType string
	exts     []string // 可接受的扩展名，第一个为规范形式
	match    func(b []byte) bool
}

// 按顺序检查，第一个命中者生效。
var signatures = []signature{
	{
		// PNG: 89 50 4E 47
		mimeType: "image/png",
		exts:     []string{".png"},
		match: func(b []byte) bool {
			return len(b) >= 4 && b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47
		},
	},
	{
		// JPEG: FF D8 FF
		mimeType: "image/jpeg",
		exts:     []string{".jpg", ".jpeg"},
		match: func(b []byte) bool {
			return len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF
		},
	},
	{
		// PDF: 25 50 44 46
		mimeType: "application/pdf",
		exts:     []string{".pdf"},
		match: func(b []byte) bool {
			return len(b) >= 4 && b[0] == 0x25 && b[1] == 0x50 && b[2] == 0x44 && b[3] == 0x46
		},
	},
	{
		// GIF: 47 49 46 38
		mimeType: "image/gif",
		exts:     []string{".gif"},
		match: func(b []byte) bool {
			return len(b) >= 4 && b[0] == 0x47 && b[1] == 0x49 && b[2] == 0x46 && b[3] == 0x38
		},
	},
	{
		// WebP: 52 49 46 46 ?? ?? ?? ?? 57 45 42 50
		mimeType: "image/webp",
		exts:     []string{".webp"},
		match: func(b []byte) bool {
			return len(b) >= 12 && b[0] == 0x52 && b[1] == 0x49 && b[2] == 0x46 && b[3] == 0x46 &&
				b[8] == 0x57 && b[9] == 0x45 && b[10] == 0x42 && b[11] == 0x50
		},
	},
}

// Detect 根据文件头部字节判断真实格式。
// 命中签名时嗅探结果覆盖声明的 MIME 类型，并把扩展名改成与之匹配（保留原始主名）；
// 未命中时声明值原样通过，只有声明值本身为空才退回 application/octet-stream。
// 纯函数，head 可以短于 12 字节（视为未命中，不会越界）。
func Detect(head []byte, declaredMime, declaredName string) relaytypes.DetectedFormat {
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	for _, sig := range signatures {
		if sig.match(head) {
			return relaytypes.DetectedFormat{
				MimeType: sig.mimeType,
				FileName: normalizeName(declaredName, sig.exts),
			}
		}
	}

	mimeType := strings.TrimSpace(declaredMime)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return relaytypes.DetectedFormat{MimeType: mimeType, FileName: declaredName}
}

// normalizeName 把文件名的扩展名修正为与嗅探结果一致。
// 扩展名已经匹配时不动文件名（photo.jpeg 不会被改成 photo.jpg）。
func normalizeName(name string, exts []string) string {
	if name == "" {
		return "file" + exts[0]
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, ok := range exts {
		if ext == ok {
			return name
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + exts[0]
}
