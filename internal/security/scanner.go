// Package security 提供附件内容的启发式识别。
//
// 扫描结果只用于记录与指标统计，不影响投递：一次性邮箱的职责是
// 原样保存收到的内容，拦截由调用方自行决定。
package security

import (
	"bytes"
	"mime"
	"path/filepath"
	"strings"
)

// 可执行文件魔数
var executableSignatures = [][]byte{
	{0x4D, 0x5A},             // PE
	{0x7F, 0x45, 0x4C, 0x46}, // ELF
	{0xFE, 0xED, 0xFA, 0xCE}, // Mach-O
	{0xCE, 0xFA, 0xED, 0xFE}, // Mach-O (reverse)
}

// FlagReason 可疑原因分类，作为指标标签使用，取值必须有界
type FlagReason string

const (
	ReasonNone      FlagReason = ""
	ReasonExtension FlagReason = "dangerous_extension"
	ReasonMimeType  FlagReason = "dangerous_mime_type"
	ReasonMagic     FlagReason = "executable_signature"
)

// AttachmentScanner 按扩展名、MIME 类型与文件头识别可疑附件
type AttachmentScanner struct {
	dangerousExtensions map[string]bool
	dangerousMimeTypes  map[string]bool
}

// NewAttachmentScanner 创建附件扫描器
func NewAttachmentScanner() *AttachmentScanner {
	return &AttachmentScanner{
		dangerousExtensions: map[string]bool{
			".exe": true,
			".bat": true,
			".cmd": true,
			".scr": true,
			".pif": true,
			".com": true,
			".vbs": true,
			".js":  true,
			".jar": true,
			".msi": true,
			".ps1": true,
		},
		dangerousMimeTypes: map[string]bool{
			"application/x-msdownload":          true,
			"application/x-executable":          true,
			"application/x-dosexec":             true,
			"application/x-ms-shortcut":         true,
			"application/vnd.ms-cab-compressed": true,
		},
	}
}

// Scan 检查单个附件，命中时返回原因分类与细节。
// content 只需要文件头部，调用方可传入完整内容。
func (s *AttachmentScanner) Scan(filename, mimeType string, content []byte) (FlagReason, string) {
	ext := strings.ToLower(filepath.Ext(filename))
	if s.dangerousExtensions[ext] {
		return ReasonExtension, ext
	}

	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		if s.dangerousMimeTypes[mediaType] {
			return ReasonMimeType, mediaType
		}
	}

	for _, sig := range executableSignatures {
		if bytes.HasPrefix(content, sig) {
			return ReasonMagic, "executable file signature"
		}
	}

	return ReasonNone, ""
}
