// Package monitoring 提供 Prometheus 指标。
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 邮箱指标
	MailboxesCreated prometheus.Counter
	MailboxesSwept   prometheus.Counter

	// 邮件指标
	MessagesIngested prometheus.Counter
	MessagesRead     prometheus.Counter
	MessagesDeleted  prometheus.Counter
	ParseFailures    prometheus.Counter

	// Blob 指标
	BlobUploadFailures *prometheus.CounterVec
	BlobDeleteFailures prometheus.Counter
	BlobFetchMisses    prometheus.Counter
	AttachmentSize     prometheus.Histogram

	// 安全指标
	AttachmentsFlagged *prometheus.CounterVec

	// 处理耗时
	IngestDuration prometheus.Histogram
	SweepDuration  prometheus.Histogram

	// SMTP 指标
	SMTPConnections prometheus.Counter
	SMTPRejected    *prometheus.CounterVec

	// 错误指标
	PanicsTotal prometheus.Counter
}

// NewMetrics 在默认注册表上创建监控指标。
//
// 进程内只能调用一次；测试使用 NewMetricsWith 搭配独立注册表。
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith 在指定注册表上创建监控指标。
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftmail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "driftmail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		MailboxesCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "driftmail_mailboxes_created_total",
				Help: "Total number of mailboxes created",
			},
		),

		MailboxesSwept: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "driftmail_mailboxes_swept_total",
				Help: "Total number of expired mailboxes removed by retention sweeps",
			},
		),

		MessagesIngested: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "driftmail_messages_ingested_total",
				Help: "Total number of messages ingested",
			},
		),

		MessagesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "driftmail_messages_read_total",
				Help: "Total number of messages marked read",
			},
		),

		MessagesDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "driftmail_messages_deleted_total",
				Help: "Total number of messages deleted",
			},
		),

		ParseFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "driftmail_parse_failures_total",
				Help: "Total number of inbound messages rejected as malformed MIME",
			},
		),

		BlobUploadFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftmail_blob_upload_failures_total",
				Help: "Total number of blob uploads that failed and were degraded to failed status",
			},
			[]string{"object_type"},
		),

		BlobDeleteFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "driftmail_blob_delete_failures_total",
				Help: "Total number of blob deletions that failed during cascades",
			},
		),

		BlobFetchMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "driftmail_blob_fetch_misses_total",
				Help: "Total number of reads where an uploaded blob was missing",
			},
		),

		AttachmentSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "driftmail_attachment_size_bytes",
				Help:    "Attachment size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 2, 16),
			},
		),

		AttachmentsFlagged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftmail_attachments_flagged_total",
				Help: "Total number of attachments flagged as suspicious",
			},
			[]string{"reason"},
		),

		IngestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "driftmail_ingest_duration_seconds",
				Help:    "Ingestion duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		SweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "driftmail_sweep_duration_seconds",
				Help:    "Retention sweep duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),

		SMTPConnections: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "driftmail_smtp_connections_total",
				Help: "Total number of inbound SMTP connections",
			},
		),

		SMTPRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "driftmail_smtp_rejected_total",
				Help: "Total number of rejected SMTP commands",
			},
			[]string{"reason"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "driftmail_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordMailboxCreated 记录邮箱创建
func (m *Metrics) RecordMailboxCreated() {
	m.MailboxesCreated.Inc()
}

// RecordMailboxesSwept 记录清理任务删除的邮箱数量
func (m *Metrics) RecordMailboxesSwept(count int) {
	m.MailboxesSwept.Add(float64(count))
}

// RecordMessageIngested 记录邮件入库
func (m *Metrics) RecordMessageIngested(duration time.Duration) {
	m.MessagesIngested.Inc()
	m.IngestDuration.Observe(duration.Seconds())
}

// RecordMessageRead 记录邮件首次被阅读
func (m *Metrics) RecordMessageRead() {
	m.MessagesRead.Inc()
}

// RecordMessageDeleted 记录单封邮件删除
func (m *Metrics) RecordMessageDeleted() {
	m.MessagesDeleted.Inc()
}

// RecordParseFailure 记录 MIME 解析失败
func (m *Metrics) RecordParseFailure() {
	m.ParseFailures.Inc()
}

// RecordBlobUploadFailure 记录 Blob 上传失败，objectType 为 raw / attachment。
func (m *Metrics) RecordBlobUploadFailure(objectType string) {
	m.BlobUploadFailures.WithLabelValues(objectType).Inc()
}

// RecordBlobDeleteFailure 记录级联清理中的 Blob 删除失败
func (m *Metrics) RecordBlobDeleteFailure() {
	m.BlobDeleteFailures.Inc()
}

// RecordBlobFetchMiss 记录 uploaded 状态下的 Blob 读取缺失
func (m *Metrics) RecordBlobFetchMiss() {
	m.BlobFetchMisses.Inc()
}

// RecordAttachmentSize 记录附件大小
func (m *Metrics) RecordAttachmentSize(size int64) {
	m.AttachmentSize.Observe(float64(size))
}

// RecordAttachmentFlagged 记录被标记为可疑的附件
func (m *Metrics) RecordAttachmentFlagged(reason string) {
	m.AttachmentsFlagged.WithLabelValues(reason).Inc()
}

// RecordSweepDuration 记录一次清理任务的耗时
func (m *Metrics) RecordSweepDuration(duration time.Duration) {
	m.SweepDuration.Observe(duration.Seconds())
}

// RecordSMTPConnection 记录入站 SMTP 连接
func (m *Metrics) RecordSMTPConnection() {
	m.SMTPConnections.Inc()
}

// RecordSMTPRejected 记录被拒绝的 SMTP 命令
func (m *Metrics) RecordSMTPRejected(reason string) {
	m.SMTPRejected.WithLabelValues(reason).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
