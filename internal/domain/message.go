package domain

import "time"

// UploadStatus 表示 Blob 对象的上传状态。
//
// 元数据的持久化不依赖 Blob 写入成功：上传失败时行仍然落库，
// 状态记为 failed，对应的 key 为空。
type UploadStatus string

const (
	UploadStatusPending  UploadStatus = "pending"
	UploadStatusUploaded UploadStatus = "uploaded"
	UploadStatusFailed   UploadStatus = "failed"
)

// Message 表示一封已接收的邮件。
type Message struct {
	ID        string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MailboxID string  `json:"mailboxId" gorm:"type:varchar(36);index;not null"`
	MessageID *string `json:"messageId,omitempty" gorm:"type:varchar(255)"`

	FromAddress string  `json:"fromAddress" gorm:"type:varchar(255)"`
	ToAddress   string  `json:"toAddress" gorm:"type:varchar(255)"`
	Subject     *string `json:"subject,omitempty" gorm:"type:varchar(500)"`

	TextContent *string `json:"textContent,omitempty" gorm:"type:text"`
	HTMLContent *string `json:"htmlContent,omitempty" gorm:"type:text"`

	// RawPreview 是有界长度的可读摘要，不依赖 Blob 可用性。
	RawPreview      string       `json:"rawPreview" gorm:"type:varchar(2048)"`
	RawBlobKey      *string      `json:"rawBlobKey,omitempty" gorm:"type:varchar(500)"`
	RawBlobStore    *string      `json:"rawBlobStore,omitempty" gorm:"type:varchar(100)"`
	RawUploadStatus UploadStatus `json:"rawUploadStatus" gorm:"type:varchar(16);default:pending"`

	ReceivedAt time.Time `json:"receivedAt" gorm:"index"`
	IsRead     bool      `json:"isRead" gorm:"default:false;index"`
	Size       int64     `json:"size"`

	// 附件列表不落 messages 表，读取时由访问层拼装。
	Attachments []*Attachment `json:"attachments,omitempty" gorm:"-"`
}
