// Package mailparse 将原始 MIME 字节流解码为结构化结果。
//
// 解析本身交给 emersion/go-message，这里只负责把各个 part 归类为
// 正文 / 附件，并保持附件与源邮件一致的稳定顺序。纯函数，无 I/O。
package mailparse

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// ParsedMail 表示解析后的邮件内容，空字符串表示对应字段缺失。
type ParsedMail struct {
	MessageID   string
	From        string
	To          string
	Subject     string
	Text        string
	HTML        string
	Attachments []ParsedAttachment
}

// ParsedAttachment 表示一个附件 part，内容已同步读入内存。
type ParsedAttachment struct {
	Filename    string
	ContentType string
	ContentID   string
	Size        int64
	Inline      bool
	Content     []byte
}

// Parse 解析原始邮件，提取头部、正文和附件。
func Parse(raw []byte) (*ParsedMail, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse mail: %w", err)
	}

	parsed := &ParsedMail{
		Attachments: make([]ParsedAttachment, 0),
	}

	if subject, err := mr.Header.Subject(); err == nil {
		parsed.Subject = subject
	}
	if msgID, err := mr.Header.MessageID(); err == nil {
		parsed.MessageID = msgID
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		parsed.From = from[0].Address
	}
	if to, err := mr.Header.AddressList("To"); err == nil && len(to) > 0 {
		parsed.To = to[0].Address
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read part: %w", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, params, _ := h.ContentType()

			// 文本正文：第一个 text/plain 与第一个 text/html 生效。
			if strings.HasPrefix(contentType, "text/plain") || strings.HasPrefix(contentType, "text/html") {
				body, err := io.ReadAll(part.Body)
				if err != nil {
					continue
				}
				if strings.HasPrefix(contentType, "text/html") {
					if parsed.HTML == "" {
						parsed.HTML = string(body)
					}
				} else if parsed.Text == "" {
					parsed.Text = string(body)
				}
				continue
			}

			// 非文本的 inline part（典型：带 Content-ID 的内嵌图片）按内联附件处理。
			content, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			parsed.Attachments = append(parsed.Attachments, ParsedAttachment{
				Filename:    params["name"],
				ContentType: contentType,
				ContentID:   contentID(h.Get("Content-Id")),
				Size:        int64(len(content)),
				Inline:      true,
				Content:     content,
			})

		case *mail.AttachmentHeader:
			contentType, _, _ := h.ContentType()
			filename, _ := h.Filename()

			content, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			parsed.Attachments = append(parsed.Attachments, ParsedAttachment{
				Filename:    filename,
				ContentType: contentType,
				ContentID:   contentID(h.Get("Content-Id")),
				Size:        int64(len(content)),
				Inline:      false,
				Content:     content,
			})
		}
	}

	return parsed, nil
}

// contentID 去掉 Content-ID 头部两侧的尖括号。
func contentID(value string) string {
	return strings.Trim(strings.TrimSpace(value), "<>")
}
