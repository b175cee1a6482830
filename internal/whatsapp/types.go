// internal/whatsapp/types.go
package whatsapp

// mediaObject 是 image/video/audio/document 载荷的公共形状。
// Caption 只对 image/video 生效；Filename 只对 document 生效（且必填）。
type mediaObject struct {
	ID       string `json:"id"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// textObject 是文本消息的载荷。
type textObject struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

// messageContext 用于引用（回复）某条历史消息。
type messageContext struct {
	MessageID string `json:"message_id"`
}

// messagePayload 是 /messages 接口的请求体。
// Type 决定哪个载荷字段被填充。
type messagePayload struct {
	MessagingProduct string          `json:"messaging_product"`
	RecipientType    string          `json:"recipient_type,omitempty"`
	To               string          `json:"to,omitempty"`
	Type             string          `json:"type,omitempty"`
	Text             *textObject     `json:"text,omitempty"`
	Image            *mediaObject    `json:"image,omitempty"`
	Video            *mediaObject    `json:"video,omitempty"`
	Audio            *mediaObject    `json:"audio,omitempty"`
	Document         *mediaObject    `json:"document,omitempty"`
	Context          *messageContext `json:"context,omitempty"`

	// 已读回执复用同一个接口，只带下面两个字段。
	Status    string `json:"status,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// uploadResponse 是媒体上传接口的返回体。
type uploadResponse struct {
	ID string `json:"id"`
}

// sendResponse 是消息发送接口的返回体。
type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// graphErrorEnvelope 是 Graph API 错误返回的外层结构。
type graphErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
		Subcode int    `json:"error_subcode"`
	} `json:"error"`
}
