// Package memory 提供内存版元数据存储，主要用于开发验证与测试。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"driftmail/backend/internal/domain"
	"driftmail/backend/internal/storage"
)

// Store 使用内存 map 保存邮箱、邮件和附件。
type Store struct {
	mu          sync.RWMutex
	mailboxes   map[string]*domain.Mailbox
	messages    map[string]*domain.Message
	attachments map[string]*domain.Attachment
}

// NewStore 创建内存存储实例。
func NewStore() *Store {
	return &Store{
		mailboxes:   make(map[string]*domain.Mailbox),
		messages:    make(map[string]*domain.Message),
		attachments: make(map[string]*domain.Attachment),
	}
}

// ========== Mailbox Repository ==========

// SaveMailbox 保存邮箱。
func (s *Store) SaveMailbox(ctx context.Context, mailbox *domain.Mailbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *mailbox
	s.mailboxes[mailbox.ID] = &cp
	return nil
}

// GetMailbox 根据 ID 获取邮箱。
func (s *Store) GetMailbox(ctx context.Context, id string) (*domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mb, ok := s.mailboxes[id]
	if !ok {
		return nil, domain.ErrMailboxNotFound
	}
	cp := *mb
	return &cp, nil
}

// GetActiveMailboxByAddress 返回指定地址的活跃邮箱。
//
// 并发首次写入可能产生同地址的多行，读取按创建时间取最早的一行，
// 与查询层 limit 1 的语义保持一致。
func (s *Store) GetActiveMailboxByAddress(ctx context.Context, address string, now time.Time) (*domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *domain.Mailbox
	for _, mb := range s.mailboxes {
		if mb.Address != address || mb.Expired(now) {
			continue
		}
		if found == nil || mb.CreatedAt.Before(found.CreatedAt) {
			found = mb
		}
	}
	if found == nil {
		return nil, domain.ErrMailboxNotFound
	}
	cp := *found
	return &cp, nil
}

// ListExpiredMailboxIDs 返回所有已过期邮箱的 ID。
func (s *Store) ListExpiredMailboxIDs(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for id, mb := range s.mailboxes {
		if mb.Expired(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteMailboxes 按 ID 集合删除邮箱行。
func (s *Store) DeleteMailboxes(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.mailboxes, id)
	}
	return nil
}

// ========== Message Repository ==========

// SaveMessage 保存邮件。
func (s *Store) SaveMessage(ctx context.Context, message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *message
	cp.Attachments = nil
	s.messages[message.ID] = &cp
	return nil
}

// GetMessageForMailbox 获取属于指定邮箱的邮件。
func (s *Store) GetMessageForMailbox(ctx context.Context, messageID, mailboxID string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[messageID]
	if !ok || msg.MailboxID != mailboxID {
		return nil, domain.ErrMessageNotFound
	}
	cp := *msg
	return &cp, nil
}

// ListMessagesByMailbox 按接收时间倒序返回邮箱内的邮件。
func (s *Store) ListMessagesByMailbox(ctx context.Context, mailboxID string, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Message, 0)
	for _, msg := range s.messages {
		if msg.MailboxID == mailboxID {
			result = append(result, *msg)
		}
	}
	sortMessagesDesc(result)
	return truncate(result, limit), nil
}

// ListMessagesByAddress 通过活跃邮箱解析地址后返回其邮件。
func (s *Store) ListMessagesByAddress(ctx context.Context, address string, now time.Time, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make(map[string]struct{})
	for id, mb := range s.mailboxes {
		if mb.Address == address && !mb.Expired(now) {
			active[id] = struct{}{}
		}
	}

	result := make([]domain.Message, 0)
	for _, msg := range s.messages {
		if _, ok := active[msg.MailboxID]; ok {
			result = append(result, *msg)
		}
	}
	sortMessagesDesc(result)
	return truncate(result, limit), nil
}

// MarkMessageRead 将邮件标记为已读。
func (s *Store) MarkMessageRead(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[messageID]
	if !ok {
		return domain.ErrMessageNotFound
	}
	msg.IsRead = true
	return nil
}

// CountMessages 返回邮箱内的邮件总数与未读数。
func (s *Store) CountMessages(ctx context.Context, mailboxID string) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total, unread int64
	for _, msg := range s.messages {
		if msg.MailboxID != mailboxID {
			continue
		}
		total++
		if !msg.IsRead {
			unread++
		}
	}
	return total, unread, nil
}

// ListMessageBlobRefs 返回指定邮箱集合下所有邮件的 (ID, 原始 Blob key)。
func (s *Store) ListMessageBlobRefs(ctx context.Context, mailboxIDs []string) ([]storage.MessageBlobRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idSet := make(map[string]struct{}, len(mailboxIDs))
	for _, id := range mailboxIDs {
		idSet[id] = struct{}{}
	}

	refs := make([]storage.MessageBlobRef, 0)
	for _, msg := range s.messages {
		if _, ok := idSet[msg.MailboxID]; ok {
			refs = append(refs, storage.MessageBlobRef{ID: msg.ID, RawBlobKey: msg.RawBlobKey})
		}
	}
	return refs, nil
}

// DeleteMessages 按 ID 集合删除邮件行。
func (s *Store) DeleteMessages(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.messages, id)
	}
	return nil
}

// ========== Attachment Repository ==========

// SaveAttachments 批量保存附件。
func (s *Store) SaveAttachments(ctx context.Context, attachments []*domain.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, att := range attachments {
		cp := *att
		s.attachments[att.ID] = &cp
	}
	return nil
}

// ListAttachmentsByMessage 按附件在源邮件中的序号返回。
func (s *Store) ListAttachmentsByMessage(ctx context.Context, messageID string) ([]*domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Attachment, 0)
	for _, att := range s.attachments {
		if att.MessageID == messageID {
			cp := *att
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Position < result[j].Position
	})
	return result, nil
}

// GetAttachmentForMailbox 获取属于指定邮箱的附件。
func (s *Store) GetAttachmentForMailbox(ctx context.Context, attachmentID, mailboxID string) (*domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	att, ok := s.attachments[attachmentID]
	if !ok {
		return nil, domain.ErrAttachmentNotFound
	}
	msg, ok := s.messages[att.MessageID]
	if !ok || msg.MailboxID != mailboxID {
		return nil, domain.ErrAttachmentNotFound
	}
	cp := *att
	return &cp, nil
}

// ListAttachmentBlobKeys 返回指定邮件集合下所有已记录的附件 Blob key。
func (s *Store) ListAttachmentBlobKeys(ctx context.Context, messageIDs []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idSet := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		idSet[id] = struct{}{}
	}

	keys := make([]string, 0)
	for _, att := range s.attachments {
		if _, ok := idSet[att.MessageID]; !ok {
			continue
		}
		if att.BlobKey != nil && *att.BlobKey != "" {
			keys = append(keys, *att.BlobKey)
		}
	}
	return keys, nil
}

// DeleteAttachmentsByMessageIDs 删除指定邮件集合下的全部附件行。
func (s *Store) DeleteAttachmentsByMessageIDs(ctx context.Context, messageIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idSet := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		idSet[id] = struct{}{}
	}

	for id, att := range s.attachments {
		if _, ok := idSet[att.MessageID]; ok {
			delete(s.attachments, id)
		}
	}
	return nil
}

// ========== 工具方法 ==========

// Ping 内存存储总是健康的。
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close 关闭存储。
func (s *Store) Close() error {
	return nil
}

func sortMessagesDesc(messages []domain.Message) {
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].ReceivedAt.After(messages[j].ReceivedAt)
	})
}

func truncate(messages []domain.Message, limit int) []domain.Message {
	if limit > 0 && len(messages) > limit {
		return messages[:limit]
	}
	return messages
}
