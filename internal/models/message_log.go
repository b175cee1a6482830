package models

// MessageDirection 标记消息的方向。
type MessageDirection string

const (
	DirectionOutbound MessageDirection = "outbound"
	DirectionInbound  MessageDirection = "inbound"
)

// MessageLog 是出站消息的审计记录，供 CRM 后端查询发送历史。
// 每次文本/媒体发送（同步接口和 relayworker 都一样）写入一条。
type MessageLog struct {
	BaseModel
	Direction   MessageDirection `gorm:"type:varchar(10);not null" json:"direction"`
	Destination string           `gorm:"index;size:32;not null" json:"destination"`
	Type        string           `gorm:"type:varchar(20);not null" json:"type"` // text/image/video/audio/document
	Content     string           `gorm:"type:text" json:"content,omitempty"`    // 文本内容或媒体 caption

	MediaID       string `gorm:"size:128" json:"mediaId,omitempty"`
	MediaName     string `gorm:"size:256" json:"mediaName,omitempty"`
	MediaMimeType string `gorm:"size:128" json:"mediaMimeType,omitempty"`

	ExternalID  string `gorm:"size:128;index" json:"externalId,omitempty"` // WhatsApp 返回的消息 ID
	Status      string `gorm:"type:varchar(20);not null" json:"status"`    // sent / failed
	ErrorDetail string `gorm:"type:text" json:"errorDetail,omitempty"`
	JobID       string `gorm:"size:64;index" json:"jobId,omitempty"` // 异步批次任务 ID
}

// TableName 指定 MessageLog 模型的表名。
func (MessageLog) TableName() string {
	return "message_logs"
}
