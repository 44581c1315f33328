package kafka

import "time"

// InboundMessage 渠道适配器投递的入站消息 (topic: chat.inbound)
type InboundMessage struct {
	MessageKey     string              `json:"message_key"` // 渠道侧消息标识，用于幂等
	TeamID         uint64              `json:"team_id"`
	ChannelType    string              `json:"channel_type"`
	ChannelThread  string              `json:"channel_thread"`
	ExternalUserID string              `json:"external_user_id"` // 渠道侧客户标识
	CustomerName   string              `json:"customer_name"`
	AvatarURL      string              `json:"avatar_url"`
	MsgType        string              `json:"msg_type"`
	Content        string              `json:"content"`
	ReplyTo        string              `json:"reply_to,omitempty"` // 被回复消息的 ID (渠道侧换算后)
	Edited         bool                `json:"edited,omitempty"`   // 渠道侧编辑后重投的副本
	Attachments    []InboundAttachment `json:"attachments"`
	Timestamp      time.Time           `json:"timestamp"`
}

type InboundAttachment struct {
	MimeType string `json:"mime_type"`
	URL      string `json:"url"`
}

// OutboundMessage 投递给渠道适配器的出站消息 (topic: chat.outbound)
type OutboundMessage struct {
	MessageID      string              `json:"message_id"`
	ConversationID uint64              `json:"conversation_id"`
	ChannelType    string              `json:"channel_type"`
	ChannelThread  string              `json:"channel_thread"`
	ExternalUserID string              `json:"external_user_id"`
	MsgType        string              `json:"msg_type"`
	Content        string              `json:"content"`
	Attachments    []InboundAttachment `json:"attachments"`
}

// DeliveryReceipt 渠道适配器上报的投递回执 (topic: chat.receipts)
type DeliveryReceipt struct {
	MessageID string    `json:"message_id"`
	Status    string    `json:"status"` // sent/delivered/read/failed
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
