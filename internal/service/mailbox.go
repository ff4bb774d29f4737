// Package service 实现核心业务流程：邮箱解析、邮件入库、读取访问与到期清理。
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"driftmail/backend/internal/config"
	"driftmail/backend/internal/domain"
	"driftmail/backend/internal/monitoring"
	"driftmail/backend/internal/storage"
)

var ErrDomainNotAllowed = errors.New("domain not allowed")

// MailboxService 封装邮箱解析与惰性创建。
//
// 邮箱不提供显式创建接口：第一封邮件或第一次网页访问时按地址创建，
// TTL 固定为配置的保留时长（默认 24h）。
type MailboxService struct {
	repo      storage.MailboxRepository
	cfg       *config.Config
	domainSet map[string]struct{}
	metrics   *monitoring.Metrics
}

// NewMailboxService 创建邮箱业务服务。
func NewMailboxService(repo storage.MailboxRepository, cfg *config.Config, metrics *monitoring.Metrics) *MailboxService {
	domainSet := make(map[string]struct{}, len(cfg.Mailbox.AllowedDomains))
	for _, d := range cfg.Mailbox.AllowedDomains {
		domainSet[d] = struct{}{}
	}

	return &MailboxService{
		repo:      repo,
		cfg:       cfg,
		domainSet: domainSet,
		metrics:   metrics,
	}
}

// AddressAllowed 判断地址的域名部分是否在服务域名单内。
//
// 地址本身在核心层不做格式校验，域名白名单由入口（SMTP RCPT、HTTP 创建）调用。
func (s *MailboxService) AddressAllowed(address string) bool {
	_, domainPart, ok := strings.Cut(normalizeAddress(address), "@")
	if !ok {
		return false
	}
	_, allowed := s.domainSet[domainPart]
	return allowed
}

// ResolveForRead 返回地址当前的活跃邮箱，不存在时返回 ErrMailboxNotFound。
func (s *MailboxService) ResolveForRead(ctx context.Context, address string) (*domain.Mailbox, error) {
	return s.repo.GetActiveMailboxByAddress(ctx, normalizeAddress(address), time.Now().UTC())
}

// ResolveOrCreate 复用地址的活跃邮箱，没有时创建一个新邮箱。
//
// 同一地址并发首次创建可能产生两行，这是可接受的竞态：
// 读取侧 limit-1 查询只会命中其中一行，另一行随自身到期被清理。
func (s *MailboxService) ResolveOrCreate(ctx context.Context, address string) (*domain.Mailbox, error) {
	address = normalizeAddress(address)
	now := time.Now().UTC()

	mailbox, err := s.repo.GetActiveMailboxByAddress(ctx, address, now)
	if err == nil {
		return mailbox, nil
	}
	if !errors.Is(err, domain.ErrMailboxNotFound) {
		return nil, err
	}

	mailbox = &domain.Mailbox{
		ID:        uuid.NewString(),
		Address:   address,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.Mailbox.TTL),
		IsActive:  true,
	}

	if err := s.repo.SaveMailbox(ctx, mailbox); err != nil {
		return nil, err
	}
	s.metrics.RecordMailboxCreated()

	return mailbox, nil
}

// Get 根据 ID 获取邮箱。
func (s *MailboxService) Get(ctx context.Context, id string) (*domain.Mailbox, error) {
	return s.repo.GetMailbox(ctx, id)
}

// normalizeAddress 统一地址的大小写与空白。
func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
