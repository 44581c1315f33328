package job

import (
	"Converge/internal/model"
	"Converge/internal/pkg/consts"
	"Converge/internal/pkg/logger"
	"Converge/internal/repository"
	"Converge/internal/service"
	"context"
	log "log/slog"
	"time"

	"github.com/google/uuid"
)

// SnoozeJob 扫描延后到期的会话并自动转回 open
type SnoozeJob struct {
	convRepo  repository.ConversationRepo
	eventRepo repository.EventRepo
	publisher service.EventPublisher
}

func NewSnoozeJob(convRepo repository.ConversationRepo, eventRepo repository.EventRepo, publisher service.EventPublisher) *SnoozeJob {
	return &SnoozeJob{
		convRepo:  convRepo,
		eventRepo: eventRepo,
		publisher: publisher,
	}
}

func (s *SnoozeJob) Run() {
	ctx := logger.NewContext(context.Background(), "job-snooze-"+uuid.NewString())

	convs, err := s.convRepo.ListSnoozeExpired(ctx, time.Now())
	if err != nil {
		log.ErrorContext(ctx, "list snooze expired error", "err", err)
		return
	}
	if len(convs) == 0 {
		return
	}

	woken := 0
	for _, conv := range convs {
		ok, err := s.convRepo.SetStatus(ctx, conv.ID, consts.ConversationStatusSnoozed, consts.ConversationStatusOpen,
			map[string]interface{}{"snoozed_until": nil})
		if err != nil {
			log.ErrorContext(ctx, "wake snoozed conversation error", "conv_id", conv.ID, "err", err)
			continue
		}
		if !ok {
			// 并发期间状态已被人工变更，跳过
			continue
		}

		err = s.eventRepo.CreateEvent(ctx, &model.ConversationEvent{
			ConversationID: conv.ID,
			Type:           consts.EventStatusChanged,
			Detail:         "snoozed -> open",
		})
		if err != nil {
			log.ErrorContext(ctx, "record wake event error", "conv_id", conv.ID, "err", err)
		}

		err = s.publisher.PublishToTeam(ctx, conv.TeamID, &service.PushEvent{
			Type:    service.EventConversationUpdated,
			Payload: map[string]uint64{"conversation_id": conv.ID},
		})
		if err != nil {
			log.ErrorContext(ctx, "publish wake event error", "conv_id", conv.ID, "err", err)
		}
		woken++
	}

	log.InfoContext(ctx, "SnoozeJob finished", "expired", len(convs), "woken", woken)
}
