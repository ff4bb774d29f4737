package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftmail/backend/internal/domain"
)

func TestMailboxService_ResolveOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("重复解析同一地址复用活跃邮箱", func(t *testing.T) {
		env := newTestEnv(t)

		first, err := env.mailboxes.ResolveOrCreate(ctx, "reuse@temp.mail")
		require.NoError(t, err)
		second, err := env.mailboxes.ResolveOrCreate(ctx, "reuse@temp.mail")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.WithinDuration(t, first.CreatedAt.Add(24*time.Hour), first.ExpiresAt, time.Second)
	})

	t.Run("地址大小写与空白归一化", func(t *testing.T) {
		env := newTestEnv(t)

		first, err := env.mailboxes.ResolveOrCreate(ctx, "Case@Temp.Mail")
		require.NoError(t, err)
		second, err := env.mailboxes.ResolveOrCreate(ctx, "  case@temp.mail ")
		require.NoError(t, err)

		assert.Equal(t, "case@temp.mail", first.Address)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("过期后同一地址产生新邮箱", func(t *testing.T) {
		env := newTestEnv(t)

		// 预置一个已过期的旧邮箱行，尚未被清理任务删除
		expired := &domain.Mailbox{
			ID:        "expired-mailbox",
			Address:   "x@temp.mail",
			CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
			ExpiresAt: time.Now().UTC().Add(-24 * time.Hour),
			IsActive:  true,
		}
		require.NoError(t, env.store.SaveMailbox(ctx, expired))

		fresh, err := env.mailboxes.ResolveOrCreate(ctx, "x@temp.mail")
		require.NoError(t, err)
		assert.NotEqual(t, expired.ID, fresh.ID)
		assert.True(t, fresh.ExpiresAt.After(time.Now().UTC()))
	})
}

func TestMailboxService_ResolveForRead(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	t.Run("不存在的地址返回 not found", func(t *testing.T) {
		mailbox, err := env.mailboxes.ResolveForRead(ctx, "ghost@temp.mail")
		assert.Nil(t, mailbox)
		assert.ErrorIs(t, err, domain.ErrMailboxNotFound)
	})

	t.Run("已过期的邮箱不可读", func(t *testing.T) {
		expired := &domain.Mailbox{
			ID:        "old",
			Address:   "old@temp.mail",
			CreatedAt: time.Now().UTC().Add(-30 * time.Hour),
			ExpiresAt: time.Now().UTC().Add(-6 * time.Hour),
			IsActive:  true,
		}
		require.NoError(t, env.store.SaveMailbox(ctx, expired))

		mailbox, err := env.mailboxes.ResolveForRead(ctx, "old@temp.mail")
		assert.Nil(t, mailbox)
		assert.ErrorIs(t, err, domain.ErrMailboxNotFound)
	})
}

func TestMailboxService_AddressAllowed(t *testing.T) {
	env := newTestEnv(t)

	assert.True(t, env.mailboxes.AddressAllowed("user@temp.mail"))
	assert.True(t, env.mailboxes.AddressAllowed("User@TEMP.MAIL"))
	assert.False(t, env.mailboxes.AddressAllowed("user@other.com"))
	assert.False(t, env.mailboxes.AddressAllowed("no-at-sign"))
	assert.False(t, env.mailboxes.AddressAllowed(""))
}
