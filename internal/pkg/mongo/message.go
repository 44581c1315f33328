package mongo

import (
	"time"
)

// Message MongoDB 消息明细模型
type Message struct {
	ID             string       `bson:"_id" json:"id"`                         // UUID，业务侧生成
	ConversationID uint64       `bson:"conversation_id" json:"conversationId"` // 关联 MySQL 的会话 ID
	Direction      string       `bson:"direction" json:"direction"`            // incoming / outgoing
	SenderUserID   uint64       `bson:"sender_user_id" json:"senderUserId"`    // 仅出站消息有值
	CustomerID     uint64       `bson:"customer_id" json:"customerId"`         // 仅入站消息有值
	MsgType        string       `bson:"msg_type" json:"msgType"`               // text/image/video/...
	Content        string       `bson:"content" json:"content"`
	ReplyTo        string       `bson:"reply_to,omitempty" json:"replyTo,omitempty"`  // 被回复消息的 ID
	Mentions       []uint64     `bson:"mentions,omitempty" json:"mentions,omitempty"` // 被 @ 的客服
	Edited         bool         `bson:"edited,omitempty" json:"edited,omitempty"`     // 渠道侧编辑过的副本
	Attachments    []Attachment `bson:"attachments,omitempty" json:"attachments"`
	Status         string       `bson:"status" json:"status"`                      // sending/sent/delivered/read/failed
	FailReason     string       `bson:"fail_reason,omitempty" json:"failReason"`   // 仅 failed 状态有值
	Seq            uint64       `bson:"seq" json:"seq"`                            // 该消息在会话中的唯一绝对序号 (来自 MySQL)
	DeliveredAt    *time.Time   `bson:"delivered_at,omitempty" json:"deliveredAt"` // 首次送达时间，写入后不可变
	ReadAt         *time.Time   `bson:"read_at,omitempty" json:"readAt"`           // 首次已读时间，写入后不可变
	IsDeleted      bool         `bson:"is_deleted,omitempty" json:"isDeleted"`     // 软删除墓碑
	CreatedAt      time.Time    `bson:"created_at" json:"createdAt"`               // 定序事务分配的时间，会话内严格递增
}

// Attachment 附件
type Attachment struct {
	MimeType string  `bson:"mime_type" json:"mimeType"`
	MediaURL string  `bson:"url" json:"url"`
	Width    int     `bson:"width,omitempty" json:"width"`
	Height   int     `bson:"height,omitempty" json:"height"`
	Duration float64 `bson:"duration,omitempty" json:"duration"`
	CoverURL string  `bson:"cover_url,omitempty" json:"coverUrl"`
}
