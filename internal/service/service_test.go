package service

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	blobmem "driftmail/backend/internal/blob/memory"
	"driftmail/backend/internal/config"
	"driftmail/backend/internal/monitoring"
	storagemem "driftmail/backend/internal/storage/memory"
)

// testEnv 组装一套基于内存存储的完整服务栈。
type testEnv struct {
	store     *storagemem.Store
	blobs     *blobmem.Store
	mailboxes *MailboxService
	ingest    *IngestService
	access    *AccessService
	retention *RetentionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := storagemem.NewStore()
	blobs := blobmem.NewStore()
	cfg := &config.Config{
		Mailbox: config.MailboxConfig{
			AllowedDomains: []string{"temp.mail", "b.com"},
			TTL:            24 * time.Hour,
		},
	}
	logger := zap.NewNop()
	metrics := monitoring.NewMetricsWith(prometheus.NewRegistry())

	mailboxes := NewMailboxService(store, cfg, metrics)

	return &testEnv{
		store:     store,
		blobs:     blobs,
		mailboxes: mailboxes,
		ingest:    NewIngestService(mailboxes, store, blobs, logger, metrics),
		access:    NewAccessService(store, blobs, logger, metrics),
		retention: NewRetentionService(store, blobs, logger, metrics),
	}
}

// rawTestMail 构造一封带 note.txt 附件的简单测试邮件。
const rawTestMail = "From: a@a.com\r\n" +
	"To: b@b.com\r\n" +
	"Subject: Hi\r\n" +
	"Message-Id: <msg-1@a.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"hello\r\n" +
	"--outer\r\n" +
	"Content-Type: text/plain\r\n" +
	"Content-Disposition: attachment; filename=\"note.txt\"\r\n" +
	"\r\n" +
	"12345\r\n" +
	"--outer--\r\n"
