package domain

import (
	"time"
)

// Mailbox 表示一次性临时邮箱的业务实体。
//
// 同一地址在任意时刻最多只有一个活跃（未过期）的邮箱；
// 唯一性由查询条件 expires_at > now 保证，而不是数据库唯一索引，
// 过期行在被清理任务物理删除之前允许与新邮箱共存。
type Mailbox struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Address   string    `json:"address" gorm:"type:varchar(255);index"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"index"`
	IsActive  bool      `json:"isActive" gorm:"default:true"`
}

// Expired 判断邮箱在给定时刻是否已过期。
func (m *Mailbox) Expired(now time.Time) bool {
	return !m.ExpiresAt.After(now)
}
