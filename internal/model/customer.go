package model

import "time"

// Customer 渠道客户，首条入站消息时自动建档
type Customer struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	TeamID      uint64    `gorm:"not null;index" json:"teamId"`
	ChannelType string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_channel_identity" json:"channelType"`
	ExternalID  string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_channel_identity" json:"externalId"` // 渠道侧用户标识
	Name        string    `gorm:"type:varchar(128)" json:"name"`
	AvatarURL   string    `gorm:"type:varchar(512)" json:"avatarUrl"`
	Phone       *string   `gorm:"type:varchar(30)" json:"phone"`
	Email       *string   `gorm:"type:varchar(128)" json:"email"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Customer) TableName() string { return "customers" }
