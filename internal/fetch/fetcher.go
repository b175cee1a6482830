// internal/fetch/fetcher.go
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"relay-go/internal/relaytypes"
)

// userAgent 是取源请求携带的客户端标识，方便在对端日志里定位本服务。
const userAgent = "Relay-Go-WhatsApp-Relay/1.0"

// defaultTimeout bounds a single source fetch so a stuck download
// only costs its own slot in the batch, not the whole process.
const defaultTimeout = 30 * time.Second

// minPlausibleFileSize：小于这个字节数的响应有可能是伪装成文件的错误文本。
const minPlausibleFileSize = 100

// errorIndicators 是错误文本里常见的标记。签名 URL 过期时对象存储
// 往往返回 200 + 一小段错误说明，直接转发会把这段文本当成文件发出去。
var errorIndicators = []string{
	"NotFound",
	"not found",
	"Not Found",
	"error",
	"Error",
	"denied",
	"expired",
	"<html",
	"<?xml",
}

// FetchError 表示源文件获取失败。对单个文件是终态，不影响批次里的其他文件。
type FetchError struct {
	Location string
	Reason   string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Location, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Location, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPFetcher 通过 HTTP GET 获取远程文件的完整内容。
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher 创建一个新的 HTTPFetcher。timeout <= 0 时使用默认的 30s。
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch 下载 location 的完整字节内容。
// 必须用 io.ReadAll 一次读完整个 body——流式处理或隐式文本解码
// 会截断/改写二进制内容，这是历史上媒体投递损坏的根源。
func (f *HTTPFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, &FetchError{Location: location, Reason: "invalid source URL", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Location: location, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Location: location, Reason: fmt.Sprintf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Location: location, Reason: "reading body failed", Err: err}
	}

	if err := checkBody(location, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkBody 拒绝空响应和疑似错误文本的小响应。
func checkBody(location string, body []byte) error {
	if len(body) == 0 {
		return &FetchError{Location: location, Reason: "empty response body"}
	}
	if len(body) < minPlausibleFileSize {
		text := string(body)
		for _, indicator := range errorIndicators {
			if strings.Contains(text, indicator) {
				return &FetchError{
					Location: location,
					Reason:   fmt.Sprintf("body looks like an error payload, not a file: %q", text),
				}
			}
		}
	}
	return nil
}

// LocalFetcher 从本地文件仓库读取文件。
type LocalFetcher struct {
	store relaytypes.FileStore
}

// NewLocalFetcher 创建一个新的 LocalFetcher。
func NewLocalFetcher(store relaytypes.FileStore) *LocalFetcher {
	return &LocalFetcher{store: store}
}

// Fetch 读取 locator 对应文件的完整字节内容。
func (f *LocalFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if f.store == nil {
		return nil, &FetchError{Location: location, Reason: "no local file store configured"}
	}
	body, err := f.store.Open(ctx, location)
	if err != nil {
		return nil, &FetchError{Location: location, Reason: "reading from local store failed", Err: err}
	}
	if len(body) == 0 {
		return nil, &FetchError{Location: location, Reason: "empty file in local store"}
	}
	return body, nil
}

// Fetcher 按 location 的形式在 HTTP 与本地仓库之间分派。
// 实现 relaytypes.SourceFetcher。
type Fetcher struct {
	http  *HTTPFetcher
	local *LocalFetcher
}

// NewFetcher 创建一个组合取源器。store 可以为 nil（仅支持 URL 来源）。
func NewFetcher(timeout time.Duration, store relaytypes.FileStore) *Fetcher {
	return &Fetcher{
		http:  NewHTTPFetcher(timeout),
		local: NewLocalFetcher(store),
	}
}

// Fetch 获取 location 的完整字节内容。
func (f *Fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return f.http.Fetch(ctx, location)
	}
	return f.local.Fetch(ctx, location)
}

var _ relaytypes.SourceFetcher = (*Fetcher)(nil)
