package models

import "time"

// MediaCacheEntry 记录某个源文件成功上传到 WhatsApp 后获得的媒体句柄。
// 同一个 Location 只有一行（唯一索引），重复上传做 upsert 覆盖。
//
// 注意：不嵌入 BaseModel。句柄失效时条目必须物理删除，软删除会让
// 唯一索引挡住后续的重新写入。
type MediaCacheEntry struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Location  string    `gorm:"uniqueIndex;size:512;not null" json:"location"`
	MediaID   string    `gorm:"size:128;not null" json:"mediaId"`
	MimeType  string    `gorm:"size:128;not null" json:"mimeType"`
	FileName  string    `gorm:"size:256" json:"fileName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定 MediaCacheEntry 模型的表名。
func (MediaCacheEntry) TableName() string {
	return "media_cache_entries"
}
