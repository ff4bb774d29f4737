package domain

import "errors"

// 读路径上的"不存在"与"不属于调用方"统一为 not found，
// 不向调用方泄露两者的区别。
var (
	ErrMailboxNotFound    = errors.New("mailbox not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
)
