package blob

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRawMessageKey_UniqueAndNamespaced(t *testing.T) {
	k1 := RawMessageKey("msg-1")
	k2 := RawMessageKey("msg-1")

	assert.True(t, strings.HasPrefix(k1, "raw-emails/"))
	assert.True(t, strings.HasSuffix(k1, "/msg-1.eml"))
	assert.NotEqual(t, k1, k2)
}

func TestAttachmentKey_SanitizesFilename(t *testing.T) {
	k := AttachmentKey("../../evil name.txt")

	assert.True(t, strings.HasPrefix(k, "attachments/"))
	assert.NotContains(t, k, "..")
	assert.NotContains(t, k, " ")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "unnamed", SanitizeFilename(""))
	assert.Equal(t, "unnamed", SanitizeFilename("..."))
	assert.Equal(t, "note.txt", SanitizeFilename("note.txt"))
	assert.Equal(t, "my_file_1.pdf", SanitizeFilename("my file®1.pdf"))
}
