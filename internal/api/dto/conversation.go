package dto

import "time"

// CustomerDTO 客户摘要
type CustomerDTO struct {
	ID          uint64  `json:"id"`
	Name        string  `json:"name"`
	AvatarURL   string  `json:"avatar_url,omitempty"`
	ChannelType string  `json:"channel_type"`
	Phone       *string `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty"`
}

// ConversationDTO 会话列表项响应
type ConversationDTO struct {
	ID             uint64      `json:"id"`
	CustomerID     uint64      `json:"customer_id"`
	Customer       CustomerDTO `json:"customer"`
	ChannelType    string      `json:"channel_type"`
	Status         string      `json:"status"`
	Priority       string      `json:"priority"`
	AssignedUserID uint64      `json:"assigned_user_id,omitempty"`
	Tags           []string    `json:"tags"`
	MessagesCount  int         `json:"messages_count"`
	UnreadCount    int         `json:"unread_count"`
	LastMsgContent string      `json:"last_msg_content"`
	LastMsgType    string      `json:"last_msg_type"`
	LastMsgDir     string      `json:"last_msg_dir"`
	LastMessageAt  time.Time   `json:"lastMessageAt"`
	SnoozedUntil   *time.Time  `json:"snoozed_until,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// ConversationDetailDTO 会话详情，含备注与审计事件
type ConversationDetailDTO struct {
	ConversationDTO
	Notes  []NoteDTO  `json:"notes"`
	Events []EventDTO `json:"events"`
}

// NoteDTO 内部备注
type NoteDTO struct {
	ID             uint64    `json:"id"`
	ConversationID uint64    `json:"conversation_id"`
	UserID         uint64    `json:"user_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// EventDTO 审计事件
type EventDTO struct {
	ID             uint64    `json:"id"`
	ConversationID uint64    `json:"conversation_id"`
	Type           string    `json:"type"`
	ActorUserID    uint64    `json:"actor_user_id,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AssignReq 分配会话
type AssignReq struct {
	UserID uint64 `json:"user_id" binding:"required"`
}

// TagReq 打标/去标
type TagReq struct {
	Tag string `json:"tag" binding:"required"`
}

// SetStatusReq 状态流转
type SetStatusReq struct {
	Status string `json:"status" binding:"required,oneof=open pending snoozed closed"`
}

// SnoozeReq 延后处理
type SnoozeReq struct {
	Until time.Time `json:"until" binding:"required"`
}

// SetPriorityReq 调整优先级
type SetPriorityReq struct {
	Priority string `json:"priority" binding:"required,oneof=low normal high urgent"`
}

// AddNoteReq 添加备注
type AddNoteReq struct {
	Content string `json:"content" binding:"required,max=2000"`
}
