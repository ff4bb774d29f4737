package mailparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRaw(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func TestParse_SimpleMessageWithAttachment(t *testing.T) {
	raw := buildRaw(
		"From: a@a.com",
		"To: b@b.com",
		"Subject: Hi",
		"Message-ID: <msg-1@a.com>",
		"MIME-Version: 1.0",
		"Content-Type: multipart/mixed; boundary=\"xyz\"",
		"",
		"--xyz",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"hello",
		"--xyz",
		"Content-Type: text/plain; name=\"note.txt\"",
		"Content-Disposition: attachment; filename=\"note.txt\"",
		"",
		"12345",
		"--xyz--",
	)

	parsed, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "a@a.com", parsed.From)
	assert.Equal(t, "b@b.com", parsed.To)
	assert.Equal(t, "Hi", parsed.Subject)
	assert.Equal(t, "msg-1@a.com", parsed.MessageID)
	assert.Equal(t, "hello", strings.TrimRight(parsed.Text, "\r\n"))
	assert.Empty(t, parsed.HTML)

	require.Len(t, parsed.Attachments, 1)
	att := parsed.Attachments[0]
	assert.Equal(t, "note.txt", att.Filename)
	assert.Equal(t, "text/plain", att.ContentType)
	assert.False(t, att.Inline)
	assert.Equal(t, "12345", strings.TrimRight(string(att.Content), "\r\n"))
}

func TestParse_AttachmentOrderMatchesSource(t *testing.T) {
	raw := buildRaw(
		"From: a@a.com",
		"To: b@b.com",
		"Subject: order",
		"MIME-Version: 1.0",
		"Content-Type: multipart/mixed; boundary=\"xyz\"",
		"",
		"--xyz",
		"Content-Type: text/plain",
		"",
		"body",
		"--xyz",
		"Content-Disposition: attachment; filename=\"a.txt\"",
		"Content-Type: text/plain",
		"",
		"A",
		"--xyz",
		"Content-Disposition: attachment; filename=\"b.txt\"",
		"Content-Type: text/plain",
		"",
		"B",
		"--xyz",
		"Content-Disposition: attachment; filename=\"c.txt\"",
		"Content-Type: text/plain",
		"",
		"C",
		"--xyz--",
	)

	parsed, err := Parse(raw)
	require.NoError(t, err)

	require.Len(t, parsed.Attachments, 3)
	assert.Equal(t, "a.txt", parsed.Attachments[0].Filename)
	assert.Equal(t, "b.txt", parsed.Attachments[1].Filename)
	assert.Equal(t, "c.txt", parsed.Attachments[2].Filename)
}

func TestParse_TextAndHTMLAlternative(t *testing.T) {
	raw := buildRaw(
		"From: a@a.com",
		"To: b@b.com",
		"Subject: alt",
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=\"alt\"",
		"",
		"--alt",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"plain body",
		"--alt",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>html body</p>",
		"--alt--",
	)

	parsed, err := Parse(raw)
	require.NoError(t, err)

	assert.Contains(t, parsed.Text, "plain body")
	assert.Contains(t, parsed.HTML, "<p>html body</p>")
	assert.Empty(t, parsed.Attachments)
}

func TestParse_InlineImageBecomesInlineAttachment(t *testing.T) {
	raw := buildRaw(
		"From: a@a.com",
		"To: b@b.com",
		"Subject: inline",
		"MIME-Version: 1.0",
		"Content-Type: multipart/related; boundary=\"rel\"",
		"",
		"--rel",
		"Content-Type: text/html",
		"",
		"<img src=\"cid:img-1\">",
		"--rel",
		"Content-Type: image/png; name=\"pixel.png\"",
		"Content-Id: <img-1>",
		"Content-Disposition: inline",
		"",
		"PNGDATA",
		"--rel--",
	)

	parsed, err := Parse(raw)
	require.NoError(t, err)

	require.Len(t, parsed.Attachments, 1)
	att := parsed.Attachments[0]
	assert.True(t, att.Inline)
	assert.Equal(t, "img-1", att.ContentID)
	assert.Equal(t, "image/png", att.ContentType)
}

func TestParse_MalformedInputFails(t *testing.T) {
	_, err := Parse([]byte("this is not a mime message at all\r\nno colon here\r\n"))
	assert.Error(t, err)
}

func TestParse_MissingOptionalHeaders(t *testing.T) {
	raw := buildRaw(
		"From: a@a.com",
		"To: b@b.com",
		"Content-Type: text/plain",
		"",
		"bare body",
	)

	parsed, err := Parse(raw)
	require.NoError(t, err)

	assert.Empty(t, parsed.Subject)
	assert.Empty(t, parsed.MessageID)
	assert.Contains(t, parsed.Text, "bare body")
}
