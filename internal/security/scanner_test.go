package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttachmentScanner(t *testing.T) {
	scanner := NewAttachmentScanner()

	t.Run("危险扩展名被标记", func(t *testing.T) {
		reason, detail := scanner.Scan("invoice.exe", "application/octet-stream", nil)
		assert.Equal(t, ReasonExtension, reason)
		assert.Equal(t, ".exe", detail)

		reason, _ = scanner.Scan("Setup.EXE", "application/octet-stream", nil)
		assert.Equal(t, ReasonExtension, reason, "扩展名检查不区分大小写")
	})

	t.Run("危险MIME类型被标记", func(t *testing.T) {
		reason, detail := scanner.Scan("file.bin", "application/x-msdownload; name=file.bin", nil)
		assert.Equal(t, ReasonMimeType, reason)
		assert.Equal(t, "application/x-msdownload", detail)
	})

	t.Run("可执行文件魔数被标记", func(t *testing.T) {
		reason, _ := scanner.Scan("data.bin", "application/octet-stream", []byte{0x4D, 0x5A, 0x90, 0x00})
		assert.Equal(t, ReasonMagic, reason)

		reason, _ = scanner.Scan("lib.bin", "application/octet-stream", []byte{0x7F, 0x45, 0x4C, 0x46})
		assert.Equal(t, ReasonMagic, reason)
	})

	t.Run("普通附件不被标记", func(t *testing.T) {
		reason, _ := scanner.Scan("photo.png", "image/png", []byte{0x89, 0x50, 0x4E, 0x47})
		assert.Equal(t, ReasonNone, reason)

		reason, _ = scanner.Scan("note.txt", "text/plain; charset=utf-8", []byte("hello"))
		assert.Equal(t, ReasonNone, reason)

		reason, _ = scanner.Scan("report.pdf", "application/pdf", []byte("%PDF-1.7"))
		assert.Equal(t, ReasonNone, reason)
	})

	t.Run("非法MIME类型不影响其他检查", func(t *testing.T) {
		reason, _ := scanner.Scan("note.txt", ";;;", []byte("hello"))
		assert.Equal(t, ReasonNone, reason)
	})
}
