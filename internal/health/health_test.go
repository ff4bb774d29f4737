package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"driftmail/backend/internal/storage"
	storagemem "driftmail/backend/internal/storage/memory"
)

// failingStore 覆盖 Ping 使其始终失败
type failingStore struct {
	storage.Store
}

func (failingStore) Ping(ctx context.Context) error {
	return errors.New("store down")
}

func TestChecker_Readiness(t *testing.T) {
	t.Run("依赖健康时就绪", func(t *testing.T) {
		checker := NewChecker(storagemem.NewStore(), t.TempDir(), nil, zap.NewNop())

		w := httptest.NewRecorder()
		checker.Handler().ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("存储探活失败时不就绪并记录日志", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		checker := NewChecker(failingStore{}, "", nil, zap.New(core))

		w := httptest.NewRecorder()
		checker.Handler().ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		entries := logs.FilterMessage("readiness check failed").All()
		assert.NotEmpty(t, entries)
	})
}
