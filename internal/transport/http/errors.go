package httptransport

import (
	"driftmail/backend/internal/domain"
	"driftmail/backend/internal/service"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	service.ErrDomainNotAllowed: "域名不在服务列表中",

	domain.ErrMailboxNotFound:    "邮箱不存在",
	domain.ErrMessageNotFound:    "邮件不存在",
	domain.ErrAttachmentNotFound: "附件不存在",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	MsgInvalidRequest = "请求参数格式错误"
	MsgAddressMissing = "缺少邮箱地址参数"

	MsgMailboxResolveFailed = "解析邮箱失败"
	MsgStatsFailed          = "获取统计失败"

	MsgMessageListFailed   = "获取邮件列表失败"
	MsgMessageGetFailed    = "获取邮件详情失败"
	MsgMessageNotFound     = "邮件不存在"
	MsgMessageDeleteFailed = "删除邮件失败"

	MsgAttachmentNotFound  = "附件不存在"
	MsgAttachmentGetFailed = "获取附件失败"
)
