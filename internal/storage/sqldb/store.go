// Package sqldb 提供基于 GORM 的元数据存储实现，支持 PostgreSQL 与 MySQL。
package sqldb

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"driftmail/backend/internal/domain"
	"driftmail/backend/internal/storage"
)

// Store SQL 存储实现。
type Store struct {
	db *gorm.DB
}

// NewStore 创建 PostgreSQL 存储实例。
func NewStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn))
}

// NewMySQLStore 创建 MySQL 存储实例。
func NewMySQLStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(dsn))
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例。
func NewStoreWithDialector(dialector gorm.Dialector) (*Store, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移数据库表结构。
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.Mailbox{},
		&domain.Message{},
		&domain.Attachment{},
	)
}

// ========== Mailbox Repository ==========

// SaveMailbox 保存邮箱。
func (s *Store) SaveMailbox(ctx context.Context, mailbox *domain.Mailbox) error {
	return s.db.WithContext(ctx).Save(mailbox).Error
}

// GetMailbox 根据 ID 获取邮箱。
func (s *Store) GetMailbox(ctx context.Context, id string) (*domain.Mailbox, error) {
	var mailbox domain.Mailbox
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&mailbox).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrMailboxNotFound
		}
		return nil, err
	}
	return &mailbox, nil
}

// GetActiveMailboxByAddress 返回指定地址的未过期邮箱（limit 1）。
func (s *Store) GetActiveMailboxByAddress(ctx context.Context, address string, now time.Time) (*domain.Mailbox, error) {
	var mailbox domain.Mailbox
	err := s.db.WithContext(ctx).
		Where("address = ? AND expires_at > ?", address, now).
		Order("created_at ASC").
		First(&mailbox).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrMailboxNotFound
		}
		return nil, err
	}
	return &mailbox, nil
}

// ListExpiredMailboxIDs 返回所有已过期邮箱的 ID。
func (s *Store) ListExpiredMailboxIDs(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&domain.Mailbox{}).
		Where("expires_at <= ?", now).
		Pluck("id", &ids).Error
	return ids, err
}

// DeleteMailboxes 按 ID 集合删除邮箱行。
func (s *Store) DeleteMailboxes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.Mailbox{}).Error
}

// ========== Message Repository ==========

// SaveMessage 保存邮件。
func (s *Store) SaveMessage(ctx context.Context, message *domain.Message) error {
	return s.db.WithContext(ctx).Save(message).Error
}

// GetMessageForMailbox 获取属于指定邮箱的邮件，所有权条件在查询内。
func (s *Store) GetMessageForMailbox(ctx context.Context, messageID, mailboxID string) (*domain.Message, error) {
	var message domain.Message
	err := s.db.WithContext(ctx).
		Where("id = ? AND mailbox_id = ?", messageID, mailboxID).
		First(&message).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}

// ListMessagesByMailbox 按接收时间倒序返回邮箱的邮件。
func (s *Store) ListMessagesByMailbox(ctx context.Context, mailboxID string, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	err := s.db.WithContext(ctx).
		Where("mailbox_id = ?", mailboxID).
		Order("received_at DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// ListMessagesByAddress 通过邮箱表 join，只命中未过期邮箱。
func (s *Store) ListMessagesByAddress(ctx context.Context, address string, now time.Time, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	err := s.db.WithContext(ctx).
		Joins("JOIN mailboxes ON mailboxes.id = messages.mailbox_id").
		Where("mailboxes.address = ? AND mailboxes.expires_at > ?", address, now).
		Order("messages.received_at DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// MarkMessageRead 将邮件标记为已读。
func (s *Store) MarkMessageRead(ctx context.Context, messageID string) error {
	return s.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", messageID).
		Update("is_read", true).Error
}

// CountMessages 返回邮箱内的邮件总数与未读数。
func (s *Store) CountMessages(ctx context.Context, mailboxID string) (int64, int64, error) {
	var total, unread int64

	if err := s.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("mailbox_id = ?", mailboxID).
		Count(&total).Error; err != nil {
		return 0, 0, err
	}

	if err := s.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("mailbox_id = ? AND is_read = ?", mailboxID, false).
		Count(&unread).Error; err != nil {
		return 0, 0, err
	}

	return total, unread, nil
}

// ListMessageBlobRefs 返回指定邮箱集合下所有邮件的 (ID, 原始 Blob key)。
func (s *Store) ListMessageBlobRefs(ctx context.Context, mailboxIDs []string) ([]storage.MessageBlobRef, error) {
	if len(mailboxIDs) == 0 {
		return nil, nil
	}

	var refs []storage.MessageBlobRef
	err := s.db.WithContext(ctx).
		Model(&domain.Message{}).
		Select("id", "raw_blob_key").
		Where("mailbox_id IN ?", mailboxIDs).
		Scan(&refs).Error
	return refs, err
}

// DeleteMessages 按 ID 集合删除邮件行。
func (s *Store) DeleteMessages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.Message{}).Error
}

// ========== Attachment Repository ==========

// SaveAttachments 在一个事务里批量保存附件。
func (s *Store) SaveAttachments(ctx context.Context, attachments []*domain.Attachment) error {
	if len(attachments) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, att := range attachments {
			if err := tx.Save(att).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListAttachmentsByMessage 按附件在源邮件中的序号返回。
func (s *Store) ListAttachmentsByMessage(ctx context.Context, messageID string) ([]*domain.Attachment, error) {
	var attachments []*domain.Attachment
	err := s.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("position ASC").
		Find(&attachments).Error
	return attachments, err
}

// GetAttachmentForMailbox 通过 messages 表 join 完成所有权校验。
func (s *Store) GetAttachmentForMailbox(ctx context.Context, attachmentID, mailboxID string) (*domain.Attachment, error) {
	var attachment domain.Attachment
	err := s.db.WithContext(ctx).
		Joins("JOIN messages ON messages.id = attachments.message_id").
		Where("attachments.id = ? AND messages.mailbox_id = ?", attachmentID, mailboxID).
		First(&attachment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrAttachmentNotFound
		}
		return nil, err
	}
	return &attachment, nil
}

// ListAttachmentBlobKeys 返回指定邮件集合下所有非空的附件 Blob key。
func (s *Store) ListAttachmentBlobKeys(ctx context.Context, messageIDs []string) ([]string, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	var keys []string
	err := s.db.WithContext(ctx).
		Model(&domain.Attachment{}).
		Where("message_id IN ? AND blob_key IS NOT NULL AND blob_key <> ''", messageIDs).
		Pluck("blob_key", &keys).Error
	return keys, err
}

// DeleteAttachmentsByMessageIDs 删除指定邮件集合下的全部附件行。
func (s *Store) DeleteAttachmentsByMessageIDs(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("message_id IN ?", messageIDs).Delete(&domain.Attachment{}).Error
}

// ========== 工具方法 ==========

// Ping 测试数据库连接。
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
