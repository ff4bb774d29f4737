package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"driftmail/backend/internal/blob"
	"driftmail/backend/internal/monitoring"
	"driftmail/backend/internal/pool"
	"driftmail/backend/internal/storage"
)

// defaultSweepWorkers Blob 删除的默认并发度。
const defaultSweepWorkers = 8

// RetentionService 清理到期邮箱及其全部从属数据。
//
// 清理按三阶段执行：收集 ID 与 Blob key → 尽力删除 Blob →
// 按附件、邮件、邮箱的顺序删行。中途崩溃最多留下孤儿行，
// 不会出现指向已删父行的外键；重跑会自然续完。
type RetentionService struct {
	store   storage.Store
	blobs   blob.Store
	logger  *zap.Logger
	metrics *monitoring.Metrics
	workers int
}

// NewRetentionService 创建到期清理服务。
func NewRetentionService(store storage.Store, blobs blob.Store, logger *zap.Logger, metrics *monitoring.Metrics) *RetentionService {
	return &RetentionService{
		store:   store,
		blobs:   blobs,
		logger:  logger,
		metrics: metrics,
		workers: defaultSweepWorkers,
	}
}

// Sweep 执行一轮清理，没有到期邮箱时为空操作。
func (s *RetentionService) Sweep(ctx context.Context) error {
	start := time.Now()
	now := start.UTC()

	// 阶段一：收集到期邮箱、其邮件的原始 Blob key 与附件 Blob key。
	mailboxIDs, err := s.store.ListExpiredMailboxIDs(ctx, now)
	if err != nil {
		return fmt.Errorf("list expired mailboxes: %w", err)
	}
	if len(mailboxIDs) == 0 {
		s.logger.Debug("无到期邮箱")
		return nil
	}

	refs, err := s.store.ListMessageBlobRefs(ctx, mailboxIDs)
	if err != nil {
		return fmt.Errorf("collect message blob refs: %w", err)
	}

	messageIDs := make([]string, 0, len(refs))
	rawKeys := make([]string, 0, len(refs))
	for _, ref := range refs {
		messageIDs = append(messageIDs, ref.ID)
		if ref.RawBlobKey != nil {
			rawKeys = append(rawKeys, *ref.RawBlobKey)
		}
	}

	attachmentKeys, err := s.store.ListAttachmentBlobKeys(ctx, messageIDs)
	if err != nil {
		return fmt.Errorf("collect attachment blob keys: %w", err)
	}

	// 阶段二：并发删除 Blob，附件在前。单个失败只计数，不中断清理。
	keys := append(attachmentKeys, rawKeys...)
	failedDeletes := s.deleteBlobs(ctx, keys)

	// 阶段三：删行，子表先于父表。
	if err := s.store.DeleteAttachmentsByMessageIDs(ctx, messageIDs); err != nil {
		return fmt.Errorf("delete attachment rows: %w", err)
	}
	if err := s.store.DeleteMessages(ctx, messageIDs); err != nil {
		return fmt.Errorf("delete message rows: %w", err)
	}
	if err := s.store.DeleteMailboxes(ctx, mailboxIDs); err != nil {
		return fmt.Errorf("delete mailbox rows: %w", err)
	}

	s.metrics.RecordMailboxesSwept(len(mailboxIDs))
	s.metrics.RecordSweepDuration(time.Since(start))
	s.logger.Info("到期清理完成",
		zap.Int("mailboxes", len(mailboxIDs)),
		zap.Int("messages", len(messageIDs)),
		zap.Int("blobs", len(keys)),
		zap.Int64("blob_delete_failures", failedDeletes),
		zap.Duration("elapsed", time.Since(start)))

	return nil
}

// deleteBlobs 通过协程池并发删除全部 key，等待所有任务结束后返回失败数。
func (s *RetentionService) deleteBlobs(ctx context.Context, keys []string) int64 {
	if len(keys) == 0 {
		return 0
	}

	var failed atomic.Int64
	workers := pool.NewWorkerPool(s.workers, len(keys), s.logger)
	workers.Start(ctx)

	for _, key := range keys {
		key := key
		workers.Submit(func() {
			if err := s.blobs.Delete(ctx, key); err != nil {
				failed.Add(1)
				s.metrics.RecordBlobDeleteFailure()
				s.logger.Warn("Blob 删除失败", zap.String("blob_key", key), zap.Error(err))
			}
		})
	}
	workers.Stop()

	return failed.Load()
}
