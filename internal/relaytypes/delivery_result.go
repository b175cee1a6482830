// internal/relaytypes/delivery_result.go
package relaytypes

// DeliveryStatus 是单个文件投递的终态。
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// DeliveryResult 是单个 MediaItem 的投递结果。
// 每个输入文件恰好产生一条结果，顺序与输入一致；
// 无论内部重试了多少次，对外只有一条。
type DeliveryResult struct {
	FileName  string         `json:"fileName"`
	Status    DeliveryStatus `json:"status"`
	MimeType  string         `json:"mimeType,omitempty"` // 嗅探后得到的权威类型
	MediaID   string         `json:"mediaId,omitempty"`
	MessageID string         `json:"messageId,omitempty"`
	Error     string         `json:"error,omitempty"`
}
