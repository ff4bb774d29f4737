package domain

import "time"

// Attachment 表示邮件附件的元数据，二进制内容存放在 Blob 存储中。
type Attachment struct {
	ID        string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MessageID string `json:"messageId" gorm:"type:varchar(36);index;not null"`

	Filename    *string `json:"filename,omitempty" gorm:"type:varchar(255)"`
	ContentType *string `json:"contentType,omitempty" gorm:"type:varchar(100)"`
	Size        *int64  `json:"size,omitempty"`
	ContentID   *string `json:"contentId,omitempty" gorm:"type:varchar(255)"`
	IsInline    bool    `json:"isInline" gorm:"default:false"`

	BlobKey      *string      `json:"blobKey,omitempty" gorm:"type:varchar(500)"`
	BlobStore    *string      `json:"blobStore,omitempty" gorm:"type:varchar(100)"`
	UploadStatus UploadStatus `json:"uploadStatus" gorm:"type:varchar(16);default:pending"`

	// Position 记录附件在源邮件中的序号，读取时按它排序。
	// 时间戳列在 MySQL 上只有毫秒精度，不能承担同一封邮件内的排序。
	Position int `json:"position" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"createdAt" gorm:"index"`
}
