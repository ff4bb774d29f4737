// Package blob 定义按 key 寻址的二进制对象存储契约。
//
// 元数据行与 Blob 对象一一对应、永不共享，因此"删行即可删对象"。
// Put 失败不会中止上层的入库流程，由调用方折叠进上传状态字段。
package blob

import (
	"context"
	"errors"
)

// ErrNotFound 表示 key 对应的对象不存在。
var ErrNotFound = errors.New("blob not found")

// Store 定义 Blob 存储操作。
//
// Delete 对已不存在的 key 视为成功，级联清理依赖该语义。
type Store interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error

	// Name 返回存储实例的标识，持久化在元数据行的 blob_store 字段中。
	Name() string
}
