package service

import (
	"Converge/internal/pkg/consts"
	"Converge/internal/pkg/redis"
	"context"
	"strconv"

	"github.com/goccy/go-json"
)

// 推送事件类型，经由 Redis Pub/Sub 送达 WebSocket 层
const (
	EventMessageCreated      = "message.created"
	EventMessageStatus       = "message.status"
	EventMessageDeleted      = "message.deleted"
	EventTyping              = "typing"
	EventConversationUpdated = "conversation.updated"
)

// PushEvent 推送事件信封
type PushEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type EventPublisher interface {
	PublishToConversation(ctx context.Context, convID uint64, event *PushEvent) error
	PublishToTeam(ctx context.Context, teamID uint64, event *PushEvent) error
}

type redisPublisher struct{}

func NewEventPublisher() EventPublisher {
	return &redisPublisher{}
}

func (p *redisPublisher) PublishToConversation(ctx context.Context, convID uint64, event *PushEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	channel := consts.ConversationChanKey + strconv.FormatUint(convID, 10)
	return redis.Publish(ctx, channel, data)
}

func (p *redisPublisher) PublishToTeam(ctx context.Context, teamID uint64, event *PushEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	channel := consts.TeamChannelKey + strconv.FormatUint(teamID, 10)
	return redis.Publish(ctx, channel, data)
}
