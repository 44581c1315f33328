package model

import "time"

// ConversationNote 会话内部备注，仅团队可见
type ConversationNote struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64    `gorm:"not null;index" json:"conversationId"`
	UserID         uint64    `gorm:"not null" json:"userId"`
	Content        string    `gorm:"type:varchar(2000);not null" json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (ConversationNote) TableName() string { return "conversation_notes" }
