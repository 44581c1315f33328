package dto

import "time"

// SendMessageReq 客服发送消息请求体
type SendMessageReq struct {
	MsgType     string          `json:"msg_type" binding:"required"` // text/image/video/...
	Content     string          `json:"content"`
	ReplyTo     string          `json:"reply_to"` // 被回复消息的 ID
	Mentions    []uint64        `json:"mentions"` // 被 @ 的客服
	Attachments []AttachmentDTO `json:"attachments"`
}

// AttachmentDTO 附件
type AttachmentDTO struct {
	MimeType string  `json:"mime_type"`
	URL      string  `json:"url"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	CoverURL string  `json:"cover_url,omitempty"`
}

// MessageDTO 消息明细响应
type MessageDTO struct {
	ID             string          `json:"id"`
	ConversationID uint64          `json:"conversation_id"`
	Direction      string          `json:"direction"`
	SenderUserID   uint64          `json:"sender_user_id,omitempty"`
	CustomerID     uint64          `json:"customer_id,omitempty"`
	MsgType        string          `json:"msg_type"`
	Content        string          `json:"content"`
	ReplyTo        string          `json:"reply_to,omitempty"`
	Mentions       []uint64        `json:"mentions,omitempty"`
	Edited         bool            `json:"edited,omitempty"`
	Attachments    []AttachmentDTO `json:"attachments,omitempty"`
	Status         string          `json:"status"`
	FailReason     string          `json:"fail_reason,omitempty"`
	Seq            uint64          `json:"seq"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	ReadAt         *time.Time      `json:"read_at,omitempty"`
	IsDeleted      bool            `json:"is_deleted,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// MessageSearchReq 消息搜索请求
type MessageSearchReq struct {
	Query string `form:"q" binding:"required"`
	Limit int    `form:"limit"`
}
