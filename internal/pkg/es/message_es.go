package es

import "time"

// MessageES 写入 ES 的消息文档，仅保留检索所需字段
type MessageES struct {
	ID             string    `json:"id"`
	ConversationID uint64    `json:"conversation_id"`
	TeamID         uint64    `json:"team_id"`
	Direction      string    `json:"direction"`
	MsgType        string    `json:"msg_type"`
	Content        string    `json:"content"`
	CustomerName   string    `json:"customer_name"`
	CreatedAt      time.Time `json:"created_at"`
}
