// internal/relaytypes/source_fetcher_iface.go
package relaytypes

import "context"

// SourceFetcher 获取源文件的完整字节内容。
// 实现必须一次性读完整个 body 再返回，不允许流式转换——
// 部分读取或隐式文本解码会损坏二进制内容，这是历史上投递失败的主要原因。
type SourceFetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}
