package dto

import "time"

// SaveDraftReq 保存草稿，后写覆盖
type SaveDraftReq struct {
	Content string `json:"content" binding:"required"`
}

// DraftDTO 草稿
type DraftDTO struct {
	ConversationID uint64    `json:"conversation_id"`
	UserID         uint64    `json:"user_id"`
	Content        string    `json:"content"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
