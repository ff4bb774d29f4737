package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftmail/backend/internal/domain"
)

func TestIngestService_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("入库后邮件与附件可查询", func(t *testing.T) {
		env := newTestEnv(t)

		messageID, err := env.ingest.Ingest(ctx, "b@b.com", []byte(rawTestMail))
		require.NoError(t, err)
		require.NotEmpty(t, messageID)

		mailbox, err := env.mailboxes.ResolveForRead(ctx, "b@b.com")
		require.NoError(t, err)

		message, err := env.access.GetMessage(ctx, mailbox.ID, messageID)
		require.NoError(t, err)
		assert.Equal(t, "a@a.com", message.FromAddress)
		assert.Equal(t, "b@b.com", message.ToAddress)
		require.NotNil(t, message.Subject)
		assert.Equal(t, "Hi", *message.Subject)
		require.NotNil(t, message.TextContent)
		assert.Equal(t, "hello", *message.TextContent)
		assert.True(t, message.IsRead)
		assert.Equal(t, domain.UploadStatusUploaded, message.RawUploadStatus)
		require.NotNil(t, message.RawBlobKey)

		require.Len(t, message.Attachments, 1)
		attachment := message.Attachments[0]
		require.NotNil(t, attachment.Filename)
		assert.Equal(t, "note.txt", *attachment.Filename)
		require.NotNil(t, attachment.ContentType)
		assert.Equal(t, "text/plain", *attachment.ContentType)
		require.NotNil(t, attachment.Size)
		assert.Equal(t, int64(5), *attachment.Size)
		assert.Equal(t, domain.UploadStatusUploaded, attachment.UploadStatus)
	})

	t.Run("Blob 全部写失败时元数据仍然落库", func(t *testing.T) {
		env := newTestEnv(t)
		env.blobs.FailPuts = true

		messageID, err := env.ingest.Ingest(ctx, "b@b.com", []byte(rawTestMail))
		require.NoError(t, err)

		mailbox, err := env.mailboxes.ResolveForRead(ctx, "b@b.com")
		require.NoError(t, err)

		message, err := env.access.GetMessage(ctx, mailbox.ID, messageID)
		require.NoError(t, err)
		assert.Equal(t, domain.UploadStatusFailed, message.RawUploadStatus)
		assert.Nil(t, message.RawBlobKey)
		assert.Contains(t, message.RawPreview, "From: a@a.com")
		assert.Contains(t, message.RawPreview, "Subject: Hi")

		require.Len(t, message.Attachments, 1)
		assert.Equal(t, domain.UploadStatusFailed, message.Attachments[0].UploadStatus)
		assert.Nil(t, message.Attachments[0].BlobKey)
		assert.Equal(t, 0, env.blobs.Len())
	})

	t.Run("非法 MIME 整体失败且不写邮件行", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.ingest.Ingest(ctx, "b@b.com", []byte("\x00\x01 not mime at all"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrParseFailure)

		mailbox, err := env.mailboxes.ResolveForRead(ctx, "b@b.com")
		require.NoError(t, err)
		messages, err := env.access.ListInbox(ctx, mailbox.Address, 0)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("附件顺序与源邮件一致", func(t *testing.T) {
		env := newTestEnv(t)

		raw := "From: a@a.com\r\n" +
			"To: b@b.com\r\n" +
			"Subject: ordered\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: multipart/mixed; boundary=\"m\"\r\n" +
			"\r\n" +
			"--m\r\nContent-Type: text/plain\r\n\r\nbody\r\n" +
			"--m\r\nContent-Disposition: attachment; filename=\"a.bin\"\r\nContent-Type: application/octet-stream\r\n\r\nAAA\r\n" +
			"--m\r\nContent-Disposition: attachment; filename=\"b.bin\"\r\nContent-Type: application/octet-stream\r\n\r\nBBB\r\n" +
			"--m\r\nContent-Disposition: attachment; filename=\"c.bin\"\r\nContent-Type: application/octet-stream\r\n\r\nCCC\r\n" +
			"--m--\r\n"

		messageID, err := env.ingest.Ingest(ctx, "b@b.com", []byte(raw))
		require.NoError(t, err)

		mailbox, err := env.mailboxes.ResolveForRead(ctx, "b@b.com")
		require.NoError(t, err)
		message, err := env.access.GetMessage(ctx, mailbox.ID, messageID)
		require.NoError(t, err)

		require.Len(t, message.Attachments, 3)
		names := make([]string, 0, 3)
		for i, a := range message.Attachments {
			names = append(names, *a.Filename)
			assert.Equal(t, i, a.Position)
		}
		assert.Equal(t, []string{"a.bin", "b.bin", "c.bin"}, names)
	})

	t.Run("可疑附件照常入库", func(t *testing.T) {
		env := newTestEnv(t)

		raw := "From: a@a.com\r\n" +
			"To: b@b.com\r\n" +
			"Subject: payload\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: multipart/mixed; boundary=\"m\"\r\n" +
			"\r\n" +
			"--m\r\nContent-Type: text/plain\r\n\r\nsee attached\r\n" +
			"--m\r\nContent-Disposition: attachment; filename=\"setup.exe\"\r\nContent-Type: application/octet-stream\r\n\r\nMZfake\r\n" +
			"--m--\r\n"

		messageID, err := env.ingest.Ingest(ctx, "b@b.com", []byte(raw))
		require.NoError(t, err)

		mailbox, err := env.mailboxes.ResolveForRead(ctx, "b@b.com")
		require.NoError(t, err)
		message, err := env.access.GetMessage(ctx, mailbox.ID, messageID)
		require.NoError(t, err)

		// 扫描只产生日志与指标，附件本身照常保存可下载
		require.Len(t, message.Attachments, 1)
		assert.Equal(t, domain.UploadStatusUploaded, message.Attachments[0].UploadStatus)
	})

	t.Run("摘要长度有上界", func(t *testing.T) {
		env := newTestEnv(t)

		longSubject := strings.Repeat("x", 3000)
		raw := "From: a@a.com\r\nTo: b@b.com\r\nSubject: " + longSubject + "\r\n\r\nbody\r\n"

		messageID, err := env.ingest.Ingest(ctx, "b@b.com", []byte(raw))
		require.NoError(t, err)

		mailbox, err := env.mailboxes.ResolveForRead(ctx, "b@b.com")
		require.NoError(t, err)
		message, err := env.access.GetMessage(ctx, mailbox.ID, messageID)
		require.NoError(t, err)
		assert.LessOrEqual(t, len([]rune(message.RawPreview)), previewMaxLen)
	})
}
