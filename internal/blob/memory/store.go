// Package memory 提供内存版 Blob 存储，主要用于开发与测试。
package memory

import (
	"context"
	"errors"
	"sync"

	"driftmail/backend/internal/blob"
)

// Store 使用内存 map 保存对象，并支持注入写入/删除故障。
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// FailPuts / FailDeletes 用于测试存储后端故障时的降级行为。
	FailPuts    bool
	FailDeletes bool
}

// NewStore 创建内存 Blob 存储实例。
func NewStore() *Store {
	return &Store{
		objects: make(map[string][]byte),
	}
}

// Name 返回存储标识。
func (s *Store) Name() string {
	return "memory"
}

// Put 写入对象。
func (s *Store) Put(ctx context.Context, key string, content []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailPuts {
		return errors.New("simulated put failure")
	}

	cp := make([]byte, len(content))
	copy(cp, content)
	s.objects[key] = cp
	return nil
}

// Get 读取对象内容。
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.objects[key]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return content, nil
}

// Delete 删除对象，key 不存在视为成功。
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailDeletes {
		return errors.New("simulated delete failure")
	}

	delete(s.objects, key)
	return nil
}

// Len 返回当前对象数量。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Remove 直接移除对象，绕过故障注入，用于模拟对象丢失。
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
}
