package model

import "time"

// Conversation 会话主表，冗余消息计数与最后一条消息摘要
type Conversation struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TeamID         uint64     `gorm:"not null;index:idx_team_status" json:"teamId"`
	CustomerID     uint64     `gorm:"not null;index:idx_customer_channel" json:"customerId"`
	ChannelType    string     `gorm:"type:varchar(32);not null;index:idx_customer_channel" json:"channelType"` // facebook/line/whatsapp/...
	ChannelThread  string     `gorm:"type:varchar(128)" json:"channelThread"`                                  // 渠道侧会话标识
	Status         string     `gorm:"type:varchar(16);not null;default:open;index:idx_team_status" json:"status"`
	Priority       string     `gorm:"type:varchar(16);not null;default:normal" json:"priority"`
	AssignedUserID uint64     `gorm:"not null;default:0;index" json:"assignedUserId"` // 0表示未分配
	Tags           []string   `gorm:"type:json;serializer:json" json:"tags"`
	MaxMsgSeq      uint64     `gorm:"not null;default:0" json:"maxMsgSeq"` // 序列号
	MessagesCount  int        `gorm:"not null;default:0" json:"messagesCount"`
	UnreadCount    int        `gorm:"not null;default:0" json:"unreadCount"` // 未读入站消息数
	LastMsgContent string     `gorm:"type:varchar(255)" json:"lastMsgContent"`
	LastMsgType    string     `gorm:"type:varchar(32)" json:"lastMsgType"`
	LastMsgDir     string     `gorm:"type:varchar(16)" json:"lastMsgDir"`
	LastMessageAt  time.Time  `gorm:"index" json:"lastMessageAt"`
	SnoozedUntil   *time.Time `gorm:"index" json:"snoozedUntil"`
	FirstReplyAt   *time.Time `json:"firstReplyAt"` // 首次客服回复时间，用于响应时长统计
	ClosedAt       *time.Time `json:"closedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	Customer Customer `gorm:"foreignKey:CustomerID;references:ID" json:"customer"`
}

func (Conversation) TableName() string { return "conversations" }

// ConversationEvent 会话审计事件
type ConversationEvent struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64    `gorm:"not null;index:idx_conv_created" json:"conversationId"`
	Type           string    `gorm:"type:varchar(32);not null" json:"type"` // status_changed/assigned/tagged/...
	ActorUserID    uint64    `gorm:"not null;default:0" json:"actorUserId"` // 0表示系统触发
	Detail         string    `gorm:"type:varchar(255)" json:"detail"`
	CreatedAt      time.Time `gorm:"index:idx_conv_created" json:"createdAt"`
}

func (ConversationEvent) TableName() string { return "conversation_events" }
