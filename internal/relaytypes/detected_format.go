// internal/relaytypes/detected_format.go
package relaytypes

// DetectedFormat 是根据文件头部字节推断出的权威格式。
// 上游声明的 MIME 类型经常是错的（例如对象存储把所有文件都标成
// application/octet-stream），嗅探结果一旦得出即覆盖声明值。
type DetectedFormat struct {
	MimeType string
	FileName string
}
