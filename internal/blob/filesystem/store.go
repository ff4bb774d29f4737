// Package filesystem 提供基于本地文件系统的 Blob 存储实现。
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"driftmail/backend/internal/blob"
)

// Store 把 Blob key 映射为基础目录下的文件路径。
type Store struct {
	basePath string
	name     string
}

// NewStore 创建文件系统 Blob 存储实例。
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("blob base path is required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base path: %w", err)
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Store{
		basePath: abs,
		name:     "filesystem",
	}, nil
}

// Name 返回存储标识。
func (s *Store) Name() string {
	return s.name
}

// Put 写入对象。先写临时文件再重命名，读取方不会看到半截内容。
// contentType 不落盘，内容类型由元数据行持有。
func (s *Store) Put(ctx context.Context, key string, content []byte, contentType string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp object: %w", err)
	}

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp object: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to chmod temp object: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to finalize object: %w", err)
	}
	return nil
}

// Get 读取对象内容。
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, blob.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return content, nil
}

// Delete 删除对象，key 不存在视为成功。
func (s *Store) Delete(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// resolve 校验 key 并转换为基础目录下的绝对路径。
func (s *Store) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}

	cleaned := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid blob key: %s", key)
	}

	return filepath.Join(s.basePath, cleaned), nil
}
