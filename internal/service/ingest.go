package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"driftmail/backend/internal/blob"
	"driftmail/backend/internal/domain"
	"driftmail/backend/internal/mailparse"
	"driftmail/backend/internal/monitoring"
	"driftmail/backend/internal/security"
	"driftmail/backend/internal/storage"
)

// ErrParseFailure 表示原始字节不是合法 MIME，入库整体失败，不写任何邮件行。
var ErrParseFailure = errors.New("mail parse failure")

// previewMaxLen 摘要字段的长度上限（与数据库列宽一致）。
const previewMaxLen = 2048

// IngestService 负责把一封入站邮件落成持久化的邮件行与附件行。
//
// 核心取舍：元数据的持久化不依赖 Blob 写入成功。Blob 后端故障时
// 邮件仍然入库，只是对应行的上传状态降级为 failed，客户端只能看到摘要。
type IngestService struct {
	mailboxes *MailboxService
	store     storage.Store
	blobs     blob.Store
	scanner   *security.AttachmentScanner
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

// NewIngestService 创建入库服务。
func NewIngestService(mailboxes *MailboxService, store storage.Store, blobs blob.Store, logger *zap.Logger, metrics *monitoring.Metrics) *IngestService {
	return &IngestService{
		mailboxes: mailboxes,
		store:     store,
		blobs:     blobs,
		scanner:   security.NewAttachmentScanner(),
		logger:    logger,
		metrics:   metrics,
	}
}

// Ingest 接收一封原始邮件并返回新建邮件行的 ID。
//
// 流程：解析目标邮箱（不存在则创建）→ 解析 MIME → 上传原始 Blob（容错）
// → 写邮件行 → 逐个上传附件 Blob（容错）→ 写附件行。
// 成功返回后，即使所有 Blob 上传都失败，邮件行与附件行也已可查询。
func (s *IngestService) Ingest(ctx context.Context, address string, raw []byte) (string, error) {
	start := time.Now()

	mailbox, err := s.mailboxes.ResolveOrCreate(ctx, address)
	if err != nil {
		return "", fmt.Errorf("resolve mailbox: %w", err)
	}

	parsed, err := mailparse.Parse(raw)
	if err != nil {
		s.metrics.RecordParseFailure()
		return "", fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	now := time.Now().UTC()
	message := &domain.Message{
		ID:          uuid.NewString(),
		MailboxID:   mailbox.ID,
		MessageID:   strOrNil(parsed.MessageID),
		FromAddress: parsed.From,
		ToAddress:   mailbox.Address,
		Subject:     strOrNil(parsed.Subject),
		TextContent: strOrNil(parsed.Text),
		HTMLContent: strOrNil(parsed.HTML),
		RawPreview:  buildPreview(parsed),
		ReceivedAt:  now,
		Size:        int64(len(raw)),
	}

	// 原始邮件 Blob：上传失败不阻断入库，状态降级为 failed。
	rawKey := blob.RawMessageKey(message.ID)
	if err := s.blobs.Put(ctx, rawKey, raw, "message/rfc822"); err != nil {
		s.logger.Warn("原始邮件 Blob 上传失败，降级为仅元数据",
			zap.String("message_id", message.ID),
			zap.Error(err))
		s.metrics.RecordBlobUploadFailure("raw")
		message.RawUploadStatus = domain.UploadStatusFailed
	} else {
		storeName := s.blobs.Name()
		message.RawBlobKey = &rawKey
		message.RawBlobStore = &storeName
		message.RawUploadStatus = domain.UploadStatusUploaded
	}

	if err := s.store.SaveMessage(ctx, message); err != nil {
		return "", fmt.Errorf("save message: %w", err)
	}

	if len(parsed.Attachments) > 0 {
		attachments := make([]*domain.Attachment, 0, len(parsed.Attachments))
		for i, part := range parsed.Attachments {
			attachments = append(attachments, s.buildAttachment(ctx, message.ID, part, now, i))
		}
		if err := s.store.SaveAttachments(ctx, attachments); err != nil {
			return "", fmt.Errorf("save attachments: %w", err)
		}
	}

	s.metrics.RecordMessageIngested(time.Since(start))
	s.logger.Info("邮件入库完成",
		zap.String("message_id", message.ID),
		zap.String("mailbox", mailbox.Address),
		zap.String("raw_status", string(message.RawUploadStatus)),
		zap.Int("attachments", len(parsed.Attachments)),
		zap.Int("size", len(raw)))

	return message.ID, nil
}

// buildAttachment 上传单个附件 Blob 并构造附件行，上传失败时同样容错降级。
func (s *IngestService) buildAttachment(ctx context.Context, messageID string, part mailparse.ParsedAttachment, receivedAt time.Time, order int) *domain.Attachment {
	size := part.Size
	attachment := &domain.Attachment{
		ID:          uuid.NewString(),
		MessageID:   messageID,
		Filename:    strOrNil(part.Filename),
		ContentType: strOrNil(part.ContentType),
		Size:        &size,
		ContentID:   strOrNil(part.ContentID),
		IsInline:    part.Inline,
		Position:    order,
		CreatedAt:   receivedAt,
	}

	contentType := part.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// 可疑附件只记录不拦截，内容原样保存。
	if reason, detail := s.scanner.Scan(part.Filename, contentType, part.Content); reason != security.ReasonNone {
		s.logger.Warn("附件被标记为可疑",
			zap.String("message_id", messageID),
			zap.String("filename", part.Filename),
			zap.String("reason", string(reason)),
			zap.String("detail", detail))
		s.metrics.RecordAttachmentFlagged(string(reason))
	}

	key := blob.AttachmentKey(part.Filename)
	if err := s.blobs.Put(ctx, key, part.Content, contentType); err != nil {
		s.logger.Warn("附件 Blob 上传失败，仅保留元数据",
			zap.String("message_id", messageID),
			zap.String("attachment_id", attachment.ID),
			zap.Error(err))
		s.metrics.RecordBlobUploadFailure("attachment")
		attachment.UploadStatus = domain.UploadStatusFailed
		return attachment
	}

	storeName := s.blobs.Name()
	attachment.BlobKey = &key
	attachment.BlobStore = &storeName
	attachment.UploadStatus = domain.UploadStatusUploaded
	s.metrics.RecordAttachmentSize(part.Size)

	return attachment
}

// buildPreview 生成有界长度的可读摘要，不依赖 Blob 可用性。
func buildPreview(parsed *mailparse.ParsedMail) string {
	preview := fmt.Sprintf("From: %s | To: %s | Subject: %s | Message-ID: %s | [raw stored out of line]",
		parsed.From, parsed.To, parsed.Subject, parsed.MessageID)
	if runes := []rune(preview); len(runes) > previewMaxLen {
		return string(runes[:previewMaxLen])
	}
	return preview
}

// strOrNil 把空字符串折叠为 nil 指针。
func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
