package blob

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// key 方案：时间戳 + 随机段 + 逻辑路径，无需协调即可保证实际唯一，
// 两次 Put 不会碰撞。key 不做内容寻址。

// RawMessageKey 生成原始邮件的存储 key。
func RawMessageKey(messageID string) string {
	return fmt.Sprintf("raw-emails/%d/%s/%s.eml", time.Now().UnixMilli(), uuid.NewString(), messageID)
}

// AttachmentKey 生成附件的存储 key。
func AttachmentKey(filename string) string {
	return fmt.Sprintf("attachments/%d/%s/%s", time.Now().UnixMilli(), uuid.NewString(), SanitizeFilename(filename))
}

// SanitizeFilename 把文件名压成可安全嵌入 key 的形式。
func SanitizeFilename(filename string) string {
	if filename == "" {
		return "unnamed"
	}

	var b strings.Builder
	var prev rune
	for _, r := range filename {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && prev == '.':
			// 禁止连续的点，避免 key 中出现 ".." 片段
			r = '_'
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			r = '_'
			b.WriteRune(r)
		}
		prev = r
	}

	out := b.String()
	if len(out) > 128 {
		out = out[len(out)-128:]
	}
	if strings.Trim(out, "._") == "" {
		return "unnamed"
	}
	return out
}
