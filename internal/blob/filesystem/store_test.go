package filesystem

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftmail/backend/internal/blob"
)

func TestStore_PutGetDelete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	key := "raw-emails/1700000000000/token/msg-1.eml"
	content := []byte("From: a@a.com\r\n\r\nhello")

	require.NoError(t, store.Put(ctx, key, content, "message/rfc822"))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	require.NoError(t, store.Delete(ctx, key))

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestStore_PutLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	key := "attachments/1700000000000/token/a.bin"
	require.NoError(t, store.Put(ctx, key, []byte("v1"), ""))

	// 覆盖写同一个 key，读到的必须是完整的新内容
	require.NoError(t, store.Put(ctx, key, []byte("v2"), ""))
	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	var files []string
	require.NoError(t, filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, filepath.Base(path))
		}
		return nil
	}))
	assert.Equal(t, []string{"a.bin"}, files, "写入后不残留临时文件")
}

func TestStore_DeleteMissingKeyIsSuccess(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Delete(context.Background(), "attachments/123/token/absent.bin"))
}

func TestStore_RejectsTraversalKeys(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	assert.Error(t, store.Put(ctx, "../outside", []byte("x"), ""))
	_, err = store.Get(ctx, "../../etc/passwd")
	assert.Error(t, err)
}

func TestStore_EmptyKeyRejected(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Put(context.Background(), "", []byte("x"), ""))
}
