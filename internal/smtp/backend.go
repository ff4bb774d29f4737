// Package smtp 实现入站 SMTP 服务。
package smtp

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"driftmail/backend/internal/config"
	"driftmail/backend/internal/monitoring"
	"driftmail/backend/internal/service"
)

// SenderLimiter 按发件来源做滑动窗口计数，由 Redis 实现。
type SenderLimiter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Backend 实现 go-smtp 的 Backend 接口。
//
// 这是一个只接收邮件的 SMTP 服务器：RCPT 阶段校验收件域名在服务
// 域名单内，外部域名一律 550 拒绝，不做任何中继。收件邮箱本身不要求
// 预先存在，第一封邮件到达时由入库流程按地址惰性创建。
type Backend struct {
	mailboxes     *service.MailboxService
	ingest        *service.IngestService
	senderLimiter SenderLimiter // 可选，nil 表示不限流
	connLimiter   *ConnectionLimiter
	cfg           config.SMTPConfig
	logger        *zap.Logger
	metrics       *monitoring.Metrics
}

// NewBackend 创建 SMTP Backend。
func NewBackend(
	mailboxes *service.MailboxService,
	ingest *service.IngestService,
	senderLimiter SenderLimiter,
	connLimiter *ConnectionLimiter,
	cfg config.SMTPConfig,
	logger *zap.Logger,
	metrics *monitoring.Metrics,
) *Backend {
	return &Backend{
		mailboxes:     mailboxes,
		ingest:        ingest,
		senderLimiter: senderLimiter,
		connLimiter:   connLimiter,
		cfg:           cfg,
		logger:        logger,
		metrics:       metrics,
	}
}

// NewSession 创建新的 SMTP 会话。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	if b.connLimiter != nil && !b.connLimiter.Acquire() {
		b.metrics.RecordSMTPRejected("connection_limited")
		return nil, &gosmtp.SMTPError{
			Code:         421,
			EnhancedCode: gosmtp.EnhancedCode{4, 4, 5},
			Message:      "too many connections, try again later",
		}
	}

	b.metrics.RecordSMTPConnection()
	return &session{backend: b}, nil
}

type session struct {
	backend     *Backend
	fromAddress string
	recipients  []string
}

// Mail 处理 MAIL 命令，发件来源在此处过限流。
func (s *session) Mail(from string, opts *gosmtp.MailOptions) error {
	from = normalizeAddress(from)

	if err := s.checkSenderRate(from); err != nil {
		return err
	}

	s.fromAddress = from
	return nil
}

// Rcpt 处理 RCPT 命令。
//
// 只校验收件域名是否由本服务管理；邮箱不存在不算错误，
// 入库时会按地址自动创建。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := normalizeAddress(to)

	if !strings.Contains(addr, "@") {
		s.backend.metrics.RecordSMTPRejected("invalid_recipient")
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}

	if !s.backend.mailboxes.AddressAllowed(addr) {
		s.backend.metrics.RecordSMTPRejected("relay_denied")
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "relay access denied - domain not managed by this server",
		}
	}

	s.recipients = append(s.recipients, addr)
	return nil
}

// Data 读取邮件内容并逐个收件人入库。
func (s *session) Data(r io.Reader) error {
	maxBytes := s.backend.cfg.MaxMessageBytes

	rawBytes, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return err
	}
	if int64(len(rawBytes)) > maxBytes {
		s.backend.metrics.RecordSMTPRejected("message_too_large")
		return &gosmtp.SMTPError{
			Code:         552,
			EnhancedCode: gosmtp.EnhancedCode{5, 3, 4},
			Message:      "message exceeds maximum size",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, rcpt := range s.recipients {
		if _, err := s.backend.ingest.Ingest(ctx, rcpt, rawBytes); err != nil {
			if errors.Is(err, service.ErrParseFailure) {
				s.backend.metrics.RecordSMTPRejected("parse_failure")
				return &gosmtp.SMTPError{
					Code:         554,
					EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
					Message:      "message content rejected - malformed MIME",
				}
			}

			s.backend.logger.Error("邮件入库失败",
				zap.String("from", s.fromAddress),
				zap.String("to", rcpt),
				zap.Error(err))
			return &gosmtp.SMTPError{
				Code:         451,
				EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
				Message:      "temporary failure, try again later",
			}
		}
	}

	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.recipients = nil
}

// Logout 会话结束。
func (s *session) Logout() error {
	if s.backend.connLimiter != nil {
		s.backend.connLimiter.Release()
	}
	return nil
}

// checkSenderRate 对发件来源做窗口计数，超限返回 451。
func (s *session) checkSenderRate(from string) error {
	b := s.backend
	if b.senderLimiter == nil || b.cfg.SenderRateLimit <= 0 || from == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	count, err := b.senderLimiter.Increment(ctx, "smtp:sender:"+from, b.cfg.SenderRateWindow)
	if err != nil {
		// 限流后端不可用时放行，接收邮件优先于限流
		b.logger.Warn("发件限流计数失败", zap.String("from", from), zap.Error(err))
		return nil
	}

	if count > b.cfg.SenderRateLimit {
		b.metrics.RecordSMTPRejected("sender_rate_limited")
		return &gosmtp.SMTPError{
			Code:         451,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 1},
			Message:      "sender rate limit exceeded, try again later",
		}
	}
	return nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return strings.ToLower(addr)
}
