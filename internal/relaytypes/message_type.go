// internal/relaytypes/message_type.go
package relaytypes

import "strings"

// MessageType 是 WhatsApp Cloud API 的消息类型。
type MessageType string

const (
	TextMessageType     MessageType = "text"
	ImageMessageType    MessageType = "image"
	VideoMessageType    MessageType = "video"
	AudioMessageType    MessageType = "audio"
	DocumentMessageType MessageType = "document"
)

// ClassifyMime 根据权威 MIME 类型决定消息类型。
// image/* → image，video/* → video，audio/* → audio，其余一律按 document 发送。
func ClassifyMime(mimeType string) MessageType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return ImageMessageType
	case strings.HasPrefix(mimeType, "video/"):
		return VideoMessageType
	case strings.HasPrefix(mimeType, "audio/"):
		return AudioMessageType
	default:
		return DocumentMessageType
	}
}

// SupportsCaption 报告该消息类型是否允许携带 caption。
func (t MessageType) SupportsCaption() bool {
	return t == ImageMessageType || t == VideoMessageType
}
