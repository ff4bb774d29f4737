package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftmail/backend/internal/domain"
)

func TestAccessService_GetMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("跨邮箱读取返回 not found", func(t *testing.T) {
		env := newTestEnv(t)

		messageA, err := env.ingest.Ingest(ctx, "a@temp.mail", []byte(rawTestMail))
		require.NoError(t, err)
		_, err = env.ingest.Ingest(ctx, "b@temp.mail", []byte(rawTestMail))
		require.NoError(t, err)

		mailboxB, err := env.mailboxes.ResolveForRead(ctx, "b@temp.mail")
		require.NoError(t, err)

		// 用 B 的邮箱 ID 取 A 的邮件
		message, err := env.access.GetMessage(ctx, mailboxB.ID, messageA)
		assert.Nil(t, message)
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	})

	t.Run("首次查看置已读且幂等", func(t *testing.T) {
		env := newTestEnv(t)

		messageID, err := env.ingest.Ingest(ctx, "b@b.com", []byte(rawTestMail))
		require.NoError(t, err)
		mailbox, err := env.mailboxes.ResolveForRead(ctx, "b@b.com")
		require.NoError(t, err)

		stats, err := env.access.Stats(ctx, mailbox.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.Total)
		assert.Equal(t, int64(1), stats.Unread)

		first, err := env.access.GetMessage(ctx, mailbox.ID, messageID)
		require.NoError(t, err)
		assert.True(t, first.IsRead)

		second, err := env.access.GetMessage(ctx, mailbox.ID, messageID)
		require.NoError(t, err)
		assert.True(t, second.IsRead)

		stats, err = env.access.Stats(ctx, mailbox.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.Total)
		assert.Equal(t, int64(0), stats.Unread)
	})
}

func TestAccessService_GetAttachment(t *testing.T) {
	ctx := context.Background()

	t.Run("返回附件元数据与内容", func(t *testing.T) {
		env := newTestEnv(t)

		messageID, err := env.ingest.Ingest(ctx, "b@b.com", []byte(rawTestMail))
		require.NoError(t, err)
		mailbox, err := env.mailboxes.ResolveForRead(ctx, "b@b.com")
		require.NoError(t, err)
		message, err := env.access.GetMessage(ctx, mailbox.ID, messageID)
		require.NoError(t, err)
		require.Len(t, message.Attachments, 1)

		attachment, content, err := env.access.GetAttachment(ctx, mailbox.ID, message.Attachments[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "note.txt", *attachment.Filename)
		assert.Equal(t, []byte("12345"), content)
	})

	t.Run("跨邮箱读取附件返回 not found", func(t *testing.T) {
		env := newTestEnv(t)

		messageID, err := env.ingest.Ingest(ctx, "a@temp.mail", []byte(rawTestMail))
		require.NoError(t, err)
		mailboxA, err := env.mailboxes.ResolveForRead(ctx, "a@temp.mail")
		require.NoError(t, err)
		message, err := env.access.GetMessage(ctx, mailboxA.ID, messageID)
		require.NoError(t, err)

		other, err := env.mailboxes.ResolveOrCreate(ctx, "b@temp.mail")
		require.NoError(t, err)

		_, _, err = env.access.GetAttachment(ctx, other.ID, message.Attachments[0].ID)
		assert.ErrorIs(t, err, domain.ErrAttachmentNotFound)
	})

	t.Run("上传失败的附件按 not found 处理", func(t *testing.T) {
		env := newTestEnv(t)
		env.blobs.FailPuts = true

		messageID, err := env.ingest.Ingest(ctx, "b@b.com", []byte(rawTestMail))
		require.NoError(t, err)
		mailbox, err := env.mailboxes.ResolveForRead(ctx, "b@b.com")
		require.NoError(t, err)
		message, err := env.access.GetMessage(ctx, mailbox.ID, messageID)
		require.NoError(t, err)

		_, _, err = env.access.GetAttachment(ctx, mailbox.ID, message.Attachments[0].ID)
		assert.ErrorIs(t, err, domain.ErrAttachmentNotFound)
	})

	t.Run("uploaded 状态但 Blob 缺失按 not found 处理", func(t *testing.T) {
		env := newTestEnv(t)

		messageID, err := env.ingest.Ingest(ctx, "b@b.com", []byte(rawTestMail))
		require.NoError(t, err)
		mailbox, err := env.mailboxes.ResolveForRead(ctx, "b@b.com")
		require.NoError(t, err)
		message, err := env.access.GetMessage(ctx, mailbox.ID, messageID)
		require.NoError(t, err)
		attachment := message.Attachments[0]
		require.NotNil(t, attachment.BlobKey)

		// 对象已被外部清掉
		env.blobs.Remove(*attachment.BlobKey)

		_, _, err = env.access.GetAttachment(ctx, mailbox.ID, attachment.ID)
		assert.ErrorIs(t, err, domain.ErrAttachmentNotFound)
	})
}

func TestAccessService_ListInbox(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		raw := fmt.Sprintf("From: a@a.com\r\nTo: b@b.com\r\nSubject: msg-%d\r\n\r\nbody\r\n", i)
		_, err := env.ingest.Ingest(ctx, "b@b.com", []byte(raw))
		require.NoError(t, err)
	}

	t.Run("默认上限返回全部邮件", func(t *testing.T) {
		messages, err := env.access.ListInbox(ctx, "b@b.com", 0)
		require.NoError(t, err)
		assert.Len(t, messages, 3)
	})

	t.Run("limit 生效", func(t *testing.T) {
		messages, err := env.access.ListInbox(ctx, "b@b.com", 2)
		require.NoError(t, err)
		assert.Len(t, messages, 2)
	})

	t.Run("未知地址返回空列表", func(t *testing.T) {
		messages, err := env.access.ListInbox(ctx, "nobody@temp.mail", 0)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})
}

func TestAccessService_DeleteMessage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	messageID, err := env.ingest.Ingest(ctx, "b@b.com", []byte(rawTestMail))
	require.NoError(t, err)
	mailbox, err := env.mailboxes.ResolveForRead(ctx, "b@b.com")
	require.NoError(t, err)

	// 原始邮件 + 1 个附件
	require.Equal(t, 2, env.blobs.Len())

	t.Run("删除邮件连同附件与 Blob", func(t *testing.T) {
		err := env.access.DeleteMessage(ctx, mailbox.ID, messageID)
		require.NoError(t, err)

		_, err = env.access.GetMessage(ctx, mailbox.ID, messageID)
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)
		assert.Equal(t, 0, env.blobs.Len())
	})

	t.Run("重复删除返回 not found", func(t *testing.T) {
		err := env.access.DeleteMessage(ctx, mailbox.ID, messageID)
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	})
}
