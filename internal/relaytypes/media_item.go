// internal/relaytypes/media_item.go
package relaytypes

import "time"

// MediaItem 描述一次中继请求中的单个待投递文件。
// Location 可以是 http(s) URL，也可以是本地文件仓库的 locator。
type MediaItem struct {
	Location string `json:"location"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
}

// BatchJob 是一次批量投递任务。同步接口直接执行它；
// 异步接口将其序列化后写入 Kafka，由 relayworker 消费执行。
type BatchJob struct {
	JobID       string      `json:"jobId"`
	Destination string      `json:"destination"`
	Items       []MediaItem `json:"items"`
	Caption     string      `json:"caption,omitempty"`
	EnqueuedAt  time.Time   `json:"enqueuedAt"`
}
