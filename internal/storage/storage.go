// Package storage 定义三类实体（邮箱 / 邮件 / 附件）的元数据存取契约。
//
// 所有权校验放在查询层完成（message-for-mailbox、attachment-for-mailbox），
// 而不是取出后再比对，避免通过错误差异泄露实体是否存在。
package storage

import (
	"context"
	"time"

	"driftmail/backend/internal/domain"
)

// MessageBlobRef 是级联删除收集阶段使用的 (邮件 ID, 原始 Blob key) 投影。
type MessageBlobRef struct {
	ID         string
	RawBlobKey *string
}

// MailboxRepository 定义邮箱数据存取操作。
type MailboxRepository interface {
	SaveMailbox(ctx context.Context, mailbox *domain.Mailbox) error
	GetMailbox(ctx context.Context, id string) (*domain.Mailbox, error)

	// GetActiveMailboxByAddress 只命中未过期行（expires_at > now），limit 1。
	GetActiveMailboxByAddress(ctx context.Context, address string, now time.Time) (*domain.Mailbox, error)

	ListExpiredMailboxIDs(ctx context.Context, now time.Time) ([]string, error)
	DeleteMailboxes(ctx context.Context, ids []string) error
}

// MessageRepository 定义邮件数据存取操作。
type MessageRepository interface {
	SaveMessage(ctx context.Context, message *domain.Message) error

	// GetMessageForMailbox 的所有权条件在查询里，不属于该邮箱时返回 not found。
	GetMessageForMailbox(ctx context.Context, messageID, mailboxID string) (*domain.Message, error)

	ListMessagesByMailbox(ctx context.Context, mailboxID string, limit int) ([]domain.Message, error)

	// ListMessagesByAddress 通过邮箱表 join，只命中未过期邮箱，按接收时间倒序。
	ListMessagesByAddress(ctx context.Context, address string, now time.Time, limit int) ([]domain.Message, error)

	MarkMessageRead(ctx context.Context, messageID string) error
	CountMessages(ctx context.Context, mailboxID string) (total int64, unread int64, err error)

	ListMessageBlobRefs(ctx context.Context, mailboxIDs []string) ([]MessageBlobRef, error)
	DeleteMessages(ctx context.Context, ids []string) error
}

// AttachmentRepository 定义附件数据存取操作。
type AttachmentRepository interface {
	SaveAttachments(ctx context.Context, attachments []*domain.Attachment) error

	// ListAttachmentsByMessage 按附件在源邮件中的序号（Position）返回。
	ListAttachmentsByMessage(ctx context.Context, messageID string) ([]*domain.Attachment, error)

	// GetAttachmentForMailbox 通过 messages 表 join 完成所有权校验。
	GetAttachmentForMailbox(ctx context.Context, attachmentID, mailboxID string) (*domain.Attachment, error)

	ListAttachmentBlobKeys(ctx context.Context, messageIDs []string) ([]string, error)
	DeleteAttachmentsByMessageIDs(ctx context.Context, messageIDs []string) error
}

// Store 聚合完整的元数据存储接口。
type Store interface {
	MailboxRepository
	MessageRepository
	AttachmentRepository

	Ping(ctx context.Context) error
	Close() error
}
