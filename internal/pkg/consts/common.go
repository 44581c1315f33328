package consts

const (
	MimePrefixImage = "image"
	MimePrefixAudio = "audio"
	MimePrefixVideo = "video"
)

// 消息方向
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// 消息状态
const (
	MessageStatusSending   = "sending"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

// 消息类型
const (
	MessageTypeText       = "text"
	MessageTypeImage      = "image"
	MessageTypeVideo      = "video"
	MessageTypeAudio      = "audio"
	MessageTypeFile       = "file"
	MessageTypeLocation   = "location"
	MessageTypeSticker    = "sticker"
	MessageTypeTemplate   = "template"
	MessageTypeQuickReply = "quick_reply"
)

// 会话状态
const (
	ConversationStatusOpen    = "open"
	ConversationStatusPending = "pending"
	ConversationStatusClosed  = "closed"
	ConversationStatusSnoozed = "snoozed"
)

// 会话优先级
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// 渠道类型
const (
	ChannelFacebook  = "facebook"
	ChannelInstagram = "instagram"
	ChannelLine      = "line"
	ChannelWhatsapp  = "whatsapp"
	ChannelWebsite   = "website"
	ChannelTiktok    = "tiktok"
	ChannelShopee    = "shopee"
	ChannelLazada    = "lazada"
)

// 会话事件类型
const (
	EventStatusChanged = "status_changed"
	EventAssigned      = "assigned"
	EventTagged        = "tagged"
	EventNoteAdded     = "note_added"
	EventClosed        = "closed"
	EventReopened      = "reopened"
	EventSnoozed       = "snoozed"
)
