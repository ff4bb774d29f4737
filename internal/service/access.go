package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"driftmail/backend/internal/blob"
	"driftmail/backend/internal/domain"
	"driftmail/backend/internal/monitoring"
	"driftmail/backend/internal/storage"
)

// defaultInboxLimit 收件箱列表的默认返回条数。
const defaultInboxLimit = 50

// MailboxStats 邮箱的邮件计数投影。
type MailboxStats struct {
	Total  int64 `json:"total"`
	Unread int64 `json:"unread"`
}

// AccessService 中介所有读取操作。
//
// 所有权校验在存储层查询里完成：不属于调用方邮箱的实体一律返回
// not found，不区分"不存在"与"不是你的"。
type AccessService struct {
	store   storage.Store
	blobs   blob.Store
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewAccessService 创建读取访问服务。
func NewAccessService(store storage.Store, blobs blob.Store, logger *zap.Logger, metrics *monitoring.Metrics) *AccessService {
	return &AccessService{
		store:   store,
		blobs:   blobs,
		logger:  logger,
		metrics: metrics,
	}
}

// GetMessage 返回邮件详情（含附件列表），首次查看时置已读。
//
// 已读标记只在第一次详情访问翻转一次，之后的访问对该标记是幂等空操作。
func (s *AccessService) GetMessage(ctx context.Context, mailboxID, messageID string) (*domain.Message, error) {
	message, err := s.store.GetMessageForMailbox(ctx, messageID, mailboxID)
	if err != nil {
		return nil, err
	}

	attachments, err := s.store.ListAttachmentsByMessage(ctx, message.ID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	message.Attachments = attachments

	if !message.IsRead {
		if err := s.store.MarkMessageRead(ctx, message.ID); err != nil {
			// 已读标记失败不影响读取本身
			s.logger.Warn("置已读失败", zap.String("message_id", message.ID), zap.Error(err))
		} else {
			message.IsRead = true
			s.metrics.RecordMessageRead()
		}
	}

	return message, nil
}

// GetAttachment 返回附件元数据与二进制内容。
//
// 上传状态不是 uploaded、或 Blob 实际缺失的附件均按 not found 处理，
// 对应对象可能从未落盘或已被清理。
func (s *AccessService) GetAttachment(ctx context.Context, mailboxID, attachmentID string) (*domain.Attachment, []byte, error) {
	attachment, err := s.store.GetAttachmentForMailbox(ctx, attachmentID, mailboxID)
	if err != nil {
		return nil, nil, err
	}

	if attachment.UploadStatus != domain.UploadStatusUploaded || attachment.BlobKey == nil {
		return nil, nil, domain.ErrAttachmentNotFound
	}

	content, err := s.blobs.Get(ctx, *attachment.BlobKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			s.metrics.RecordBlobFetchMiss()
			s.logger.Warn("附件 Blob 缺失",
				zap.String("attachment_id", attachment.ID),
				zap.String("blob_key", *attachment.BlobKey))
			return nil, nil, domain.ErrAttachmentNotFound
		}
		return nil, nil, fmt.Errorf("fetch attachment blob: %w", err)
	}

	return attachment, content, nil
}

// ListInbox 按地址返回未过期邮箱的邮件，接收时间倒序。
func (s *AccessService) ListInbox(ctx context.Context, address string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	return s.store.ListMessagesByAddress(ctx, normalizeAddress(address), time.Now().UTC(), limit)
}

// Stats 返回邮箱的邮件总数与未读数。
func (s *AccessService) Stats(ctx context.Context, mailboxID string) (MailboxStats, error) {
	total, unread, err := s.store.CountMessages(ctx, mailboxID)
	if err != nil {
		return MailboxStats{}, err
	}
	return MailboxStats{Total: total, Unread: unread}, nil
}

// DeleteMessage 删除单封邮件及其附件，连同对应的 Blob 对象。
//
// Blob 删除为尽力而为，失败只记录；行删除按附件先于邮件的顺序执行。
func (s *AccessService) DeleteMessage(ctx context.Context, mailboxID, messageID string) error {
	message, err := s.store.GetMessageForMailbox(ctx, messageID, mailboxID)
	if err != nil {
		return err
	}

	keys, err := s.store.ListAttachmentBlobKeys(ctx, []string{message.ID})
	if err != nil {
		return fmt.Errorf("collect attachment blob keys: %w", err)
	}
	if message.RawBlobKey != nil {
		keys = append(keys, *message.RawBlobKey)
	}

	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.metrics.RecordBlobDeleteFailure()
			s.logger.Warn("Blob 删除失败", zap.String("blob_key", key), zap.Error(err))
		}
	}

	if err := s.store.DeleteAttachmentsByMessageIDs(ctx, []string{message.ID}); err != nil {
		return fmt.Errorf("delete attachment rows: %w", err)
	}
	if err := s.store.DeleteMessages(ctx, []string{message.ID}); err != nil {
		return fmt.Errorf("delete message row: %w", err)
	}

	s.metrics.RecordMessageDeleted()
	return nil
}
