package httptransport

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"driftmail/backend/internal/domain"
	"driftmail/backend/internal/service"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	mailboxes *service.MailboxService
	access    *service.AccessService
	logger    *zap.Logger
}

type resolveMailboxRequest struct {
	Address string `json:"address" binding:"required"`
}

type mailboxResponse struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type messageSummary struct {
	ID              string    `json:"id"`
	FromAddress     string    `json:"fromAddress"`
	Subject         *string   `json:"subject,omitempty"`
	RawPreview      string    `json:"rawPreview"`
	ReceivedAt      time.Time `json:"receivedAt"`
	IsRead          bool      `json:"isRead"`
	Size            int64     `json:"size"`
	RawUploadStatus string    `json:"rawUploadStatus"`
}

type inboxResponse struct {
	Items []messageSummary `json:"items"`
	Count int              `json:"count"`
}

type attachmentResponse struct {
	ID           string  `json:"id"`
	Filename     *string `json:"filename,omitempty"`
	ContentType  *string `json:"contentType,omitempty"`
	Size         *int64  `json:"size,omitempty"`
	ContentID    *string `json:"contentId,omitempty"`
	IsInline     bool    `json:"isInline"`
	UploadStatus string  `json:"uploadStatus"`
}

type messageResponse struct {
	ID              string               `json:"id"`
	MailboxID       string               `json:"mailboxId"`
	MessageID       *string              `json:"messageId,omitempty"`
	FromAddress     string               `json:"fromAddress"`
	ToAddress       string               `json:"toAddress"`
	Subject         *string              `json:"subject,omitempty"`
	TextContent     *string              `json:"textContent,omitempty"`
	HTMLContent     *string              `json:"htmlContent,omitempty"`
	RawPreview      string               `json:"rawPreview"`
	RawUploadStatus string               `json:"rawUploadStatus"`
	ReceivedAt      time.Time            `json:"receivedAt"`
	IsRead          bool                 `json:"isRead"`
	Size            int64                `json:"size"`
	Attachments     []attachmentResponse `json:"attachments"`
}

// resolveOrCreateMailbox 解析地址的活跃邮箱，不存在时创建。
func (h *Handler) resolveOrCreateMailbox(c *gin.Context) {
	var req resolveMailboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if !h.mailboxes.AddressAllowed(req.Address) {
		BadRequest(c, GetErrorMessage(service.ErrDomainNotAllowed))
		return
	}

	mailbox, err := h.mailboxes.ResolveOrCreate(c.Request.Context(), req.Address)
	if err != nil {
		h.logger.Error("解析邮箱失败", zap.String("address", req.Address), zap.Error(err))
		InternalError(c, MsgMailboxResolveFailed)
		return
	}

	Created(c, toMailboxResponse(mailbox))
}

// listInbox 按地址列出收件箱，地址没有活跃邮箱时返回空列表。
func (h *Handler) listInbox(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		BadRequest(c, MsgAddressMissing)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
		limit = parsed
	}

	messages, err := h.access.ListInbox(c.Request.Context(), address, limit)
	if err != nil {
		h.logger.Error("获取邮件列表失败", zap.String("address", address), zap.Error(err))
		InternalError(c, MsgMessageListFailed)
		return
	}

	items := make([]messageSummary, 0, len(messages))
	for i := range messages {
		items = append(items, toMessageSummary(&messages[i]))
	}
	Success(c, inboxResponse{Items: items, Count: len(items)})
}

// getStats 返回邮箱的邮件总数与未读数。
func (h *Handler) getStats(c *gin.Context) {
	stats, err := h.access.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, MsgStatsFailed)
		return
	}
	Success(c, stats)
}

// getMessage 返回邮件详情，首次查看会置已读。
func (h *Handler) getMessage(c *gin.Context) {
	message, err := h.access.GetMessage(c.Request.Context(), c.Param("id"), c.Param("messageId"))
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			NotFound(c, MsgMessageNotFound)
			return
		}
		h.logger.Error("获取邮件详情失败", zap.Error(err))
		InternalError(c, MsgMessageGetFailed)
		return
	}

	Success(c, toMessageResponse(message))
}

// deleteMessage 删除单封邮件及其附件。
func (h *Handler) deleteMessage(c *gin.Context) {
	err := h.access.DeleteMessage(c.Request.Context(), c.Param("id"), c.Param("messageId"))
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			NotFound(c, MsgMessageNotFound)
			return
		}
		h.logger.Error("删除邮件失败", zap.Error(err))
		InternalError(c, MsgMessageDeleteFailed)
		return
	}

	NoContent(c)
}

// downloadAttachment 输出附件二进制内容。
func (h *Handler) downloadAttachment(c *gin.Context) {
	attachment, content, err := h.access.GetAttachment(c.Request.Context(), c.Param("id"), c.Param("attachmentId"))
	if err != nil {
		if errors.Is(err, domain.ErrAttachmentNotFound) {
			NotFound(c, MsgAttachmentNotFound)
			return
		}
		h.logger.Error("获取附件失败", zap.Error(err))
		InternalError(c, MsgAttachmentGetFailed)
		return
	}

	contentType := "application/octet-stream"
	if attachment.ContentType != nil {
		contentType = *attachment.ContentType
	}
	if attachment.Filename != nil {
		c.Header("Content-Disposition", `attachment; filename="`+*attachment.Filename+`"`)
	}
	c.Data(200, contentType, content)
}

func toMailboxResponse(mailbox *domain.Mailbox) mailboxResponse {
	return mailboxResponse{
		ID:        mailbox.ID,
		Address:   mailbox.Address,
		CreatedAt: mailbox.CreatedAt,
		ExpiresAt: mailbox.ExpiresAt,
	}
}

func toMessageSummary(message *domain.Message) messageSummary {
	return messageSummary{
		ID:              message.ID,
		FromAddress:     message.FromAddress,
		Subject:         message.Subject,
		RawPreview:      message.RawPreview,
		ReceivedAt:      message.ReceivedAt,
		IsRead:          message.IsRead,
		Size:            message.Size,
		RawUploadStatus: string(message.RawUploadStatus),
	}
}

func toMessageResponse(message *domain.Message) messageResponse {
	attachments := make([]attachmentResponse, 0, len(message.Attachments))
	for _, a := range message.Attachments {
		attachments = append(attachments, attachmentResponse{
			ID:           a.ID,
			Filename:     a.Filename,
			ContentType:  a.ContentType,
			Size:         a.Size,
			ContentID:    a.ContentID,
			IsInline:     a.IsInline,
			UploadStatus: string(a.UploadStatus),
		})
	}

	return messageResponse{
		ID:              message.ID,
		MailboxID:       message.MailboxID,
		MessageID:       message.MessageID,
		FromAddress:     message.FromAddress,
		ToAddress:       message.ToAddress,
		Subject:         message.Subject,
		TextContent:     message.TextContent,
		HTMLContent:     message.HTMLContent,
		RawPreview:      message.RawPreview,
		RawUploadStatus: string(message.RawUploadStatus),
		ReceivedAt:      message.ReceivedAt,
		IsRead:          message.IsRead,
		Size:            message.Size,
		Attachments:     attachments,
	}
}
