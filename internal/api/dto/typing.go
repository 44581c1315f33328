package dto

import "time"

// TypingReq 设置输入状态，主体为客服或客户二选一
type TypingReq struct {
	UserID     uint64 `json:"user_id"`
	CustomerID uint64 `json:"customer_id"`
	IsTyping   bool   `json:"is_typing"`
}

// TypingStateDTO 输入状态
type TypingStateDTO struct {
	ConversationID uint64    `json:"conversation_id"`
	UserID         uint64    `json:"user_id,omitempty"`
	CustomerID     uint64    `json:"customer_id,omitempty"`
	IsTyping       bool      `json:"is_typing"`
	Timestamp      time.Time `json:"timestamp"`
}
