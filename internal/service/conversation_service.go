package service

import (
	"Converge/internal/api/dto"
	"Converge/internal/model"
	"Converge/internal/pkg/consts"
	"Converge/internal/repository"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"github.com/jinzhu/copier"
	"gorm.io/gorm"
)

// ConversationService 会话登记簿服务：状态机流转、分配、标签、备注与审计
type ConversationService interface {
	Assign(ctx context.Context, actorID, teamID, convID, assigneeID uint64) error
	AddTag(ctx context.Context, actorID, teamID, convID uint64, tag string) error
	RemoveTag(ctx context.Context, actorID, teamID, convID uint64, tag string) error
	SetPriority(ctx context.Context, actorID, teamID, convID uint64, priority string) error
	SetStatus(ctx context.Context, actorID, teamID, convID uint64, status string) error
	Snooze(ctx context.Context, actorID, teamID, convID uint64, until time.Time) error
	Close(ctx context.Context, actorID, teamID, convID uint64) error
	Reopen(ctx context.Context, actorID, teamID, convID uint64) error
	AddNote(ctx context.Context, actorID, teamID, convID uint64, content string) (*dto.NoteDTO, error)
	ListNotes(ctx context.Context, teamID, convID uint64) ([]*dto.NoteDTO, error)
	ListEvents(ctx context.Context, teamID, convID uint64) ([]*dto.EventDTO, error)
}

type conversationServiceImpl struct {
	convRepo  repository.ConversationRepo
	noteRepo  repository.NoteRepo
	eventRepo repository.EventRepo
	publisher EventPublisher
}

func NewConversationService(
	convRepo repository.ConversationRepo,
	noteRepo repository.NoteRepo,
	eventRepo repository.EventRepo,
	publisher EventPublisher,
) ConversationService {
	return &conversationServiceImpl{
		convRepo:  convRepo,
		noteRepo:  noteRepo,
		eventRepo: eventRepo,
		publisher: publisher,
	}
}

// loadOwned 加载会话并校验团队归属，跨团队访问一律视为不存在
func (s *conversationServiceImpl) loadOwned(ctx context.Context, teamID, convID uint64) (*model.Conversation, error) {
	conv, err := s.convRepo.GetConversation(ctx, convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if conv.TeamID != teamID {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

func (s *conversationServiceImpl) Assign(ctx context.Context, actorID, teamID, convID, assigneeID uint64) error {
	conv, err := s.loadOwned(ctx, teamID, convID)
	if err != nil {
		return err
	}
	if conv.AssignedUserID == assigneeID {
		return nil
	}

	if err = s.convRepo.Assign(ctx, convID, assigneeID); err != nil {
		return err
	}

	s.recordEvent(ctx, convID, consts.EventAssigned, actorID, fmt.Sprintf("assigned to %d", assigneeID))
	s.notifyUpdated(conv.TeamID, convID)
	return nil
}

func (s *conversationServiceImpl) AddTag(ctx context.Context, actorID, teamID, convID uint64, tag string) error {
	if tag == "" {
		return ErrParamInvalid
	}
	conv, err := s.loadOwned(ctx, teamID, convID)
	if err != nil {
		return err
	}

	for _, t := range conv.Tags {
		if t == tag {
			return nil
		}
	}

	tags := append(conv.Tags, tag)
	if err = s.convRepo.UpdateTags(ctx, convID, tags); err != nil {
		return err
	}

	s.recordEvent(ctx, convID, consts.EventTagged, actorID, "tag added: "+tag)
	s.notifyUpdated(conv.TeamID, convID)
	return nil
}

func (s *conversationServiceImpl) RemoveTag(ctx context.Context, actorID, teamID, convID uint64, tag string) error {
	conv, err := s.loadOwned(ctx, teamID, convID)
	if err != nil {
		return err
	}

	tags := make([]string, 0, len(conv.Tags))
	found := false
	for _, t := range conv.Tags {
		if t == tag {
			found = true
			continue
		}
		tags = append(tags, t)
	}
	if !found {
		return nil
	}

	if err = s.convRepo.UpdateTags(ctx, convID, tags); err != nil {
		return err
	}

	s.recordEvent(ctx, convID, consts.EventTagged, actorID, "tag removed: "+tag)
	s.notifyUpdated(conv.TeamID, convID)
	return nil
}

func (s *conversationServiceImpl) SetPriority(ctx context.Context, actorID, teamID, convID uint64, priority string) error {
	conv, err := s.loadOwned(ctx, teamID, convID)
	if err != nil {
		return err
	}
	if conv.Priority == priority {
		return nil
	}

	if err = s.convRepo.UpdatePriority(ctx, convID, priority); err != nil {
		return err
	}

	s.recordEvent(ctx, convID, consts.EventStatusChanged, actorID, "priority: "+priority)
	s.notifyUpdated(conv.TeamID, convID)
	return nil
}

// SetStatus open/pending/snoozed 之间自由流转，closed 收口到 Close；closed 只能通过 Reopen 退出
func (s *conversationServiceImpl) SetStatus(ctx context.Context, actorID, teamID, convID uint64, status string) error {
	switch status {
	case consts.ConversationStatusClosed:
		return s.Close(ctx, actorID, teamID, convID)
	case consts.ConversationStatusOpen, consts.ConversationStatusPending, consts.ConversationStatusSnoozed:
	default:
		return ErrParamInvalid
	}

	conv, err := s.loadOwned(ctx, teamID, convID)
	if err != nil {
		return err
	}
	if conv.Status == status {
		return nil
	}
	if conv.Status == consts.ConversationStatusClosed {
		return ErrInvalidTransition
	}

	extra := map[string]interface{}{}
	if status != consts.ConversationStatusSnoozed {
		extra["snoozed_until"] = nil
	}
	ok, err := s.convRepo.SetStatus(ctx, convID, conv.Status, status, extra)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidTransition
	}

	s.recordEvent(ctx, convID, consts.EventStatusChanged, actorID, conv.Status+" -> "+status)
	s.notifyUpdated(conv.TeamID, convID)
	return nil
}

func (s *conversationServiceImpl) Snooze(ctx context.Context, actorID, teamID, convID uint64, until time.Time) error {
	if !until.After(time.Now()) {
		return ErrParamInvalid
	}

	conv, err := s.loadOwned(ctx, teamID, convID)
	if err != nil {
		return err
	}
	if conv.Status == consts.ConversationStatusClosed {
		return ErrInvalidTransition
	}

	ok, err := s.convRepo.SetStatus(ctx, convID, conv.Status, consts.ConversationStatusSnoozed,
		map[string]interface{}{"snoozed_until": until})
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidTransition
	}

	s.recordEvent(ctx, convID, consts.EventSnoozed, actorID, "until "+until.UTC().Format(time.RFC3339))
	s.notifyUpdated(conv.TeamID, convID)
	return nil
}

// Close 重复关闭视为错误，保持操作语义明确
func (s *conversationServiceImpl) Close(ctx context.Context, actorID, teamID, convID uint64) error {
	conv, err := s.loadOwned(ctx, teamID, convID)
	if err != nil {
		return err
	}
	if conv.Status == consts.ConversationStatusClosed {
		return ErrConversationClosed
	}

	ok, err := s.convRepo.SetStatus(ctx, convID, conv.Status, consts.ConversationStatusClosed,
		map[string]interface{}{"closed_at": time.Now(), "snoozed_until": nil})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConversationClosed
	}

	s.recordEvent(ctx, convID, consts.EventClosed, actorID, "")
	s.notifyUpdated(conv.TeamID, convID)
	return nil
}

// Reopen closed 状态唯一的出口
func (s *conversationServiceImpl) Reopen(ctx context.Context, actorID, teamID, convID uint64) error {
	conv, err := s.loadOwned(ctx, teamID, convID)
	if err != nil {
		return err
	}
	if conv.Status != consts.ConversationStatusClosed {
		return ErrConversationNotClosed
	}

	ok, err := s.convRepo.SetStatus(ctx, convID, consts.ConversationStatusClosed, consts.ConversationStatusOpen,
		map[string]interface{}{"closed_at": nil})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConversationNotClosed
	}

	s.recordEvent(ctx, convID, consts.EventReopened, actorID, "")
	s.notifyUpdated(conv.TeamID, convID)
	return nil
}

func (s *conversationServiceImpl) AddNote(ctx context.Context, actorID, teamID, convID uint64, content string) (*dto.NoteDTO, error) {
	conv, err := s.loadOwned(ctx, teamID, convID)
	if err != nil {
		return nil, err
	}

	note := &model.ConversationNote{
		ConversationID: convID,
		UserID:         actorID,
		Content:        content,
	}
	if err = s.noteRepo.CreateNote(ctx, note); err != nil {
		return nil, err
	}

	s.recordEvent(ctx, convID, consts.EventNoteAdded, actorID, "")
	s.notifyUpdated(conv.TeamID, convID)

	d := &dto.NoteDTO{}
	_ = copier.Copy(d, note)
	return d, nil
}

func (s *conversationServiceImpl) ListNotes(ctx context.Context, teamID, convID uint64) ([]*dto.NoteDTO, error) {
	if _, err := s.loadOwned(ctx, teamID, convID); err != nil {
		return nil, err
	}

	notes, err := s.noteRepo.ListByConversation(ctx, convID)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.NoteDTO, 0, len(notes))
	for _, n := range notes {
		d := &dto.NoteDTO{}
		_ = copier.Copy(d, n)
		res = append(res, d)
	}
	return res, nil
}

func (s *conversationServiceImpl) ListEvents(ctx context.Context, teamID, convID uint64) ([]*dto.EventDTO, error) {
	if _, err := s.loadOwned(ctx, teamID, convID); err != nil {
		return nil, err
	}

	events, err := s.eventRepo.ListByConversation(ctx, convID, 100)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.EventDTO, 0, len(events))
	for _, e := range events {
		d := &dto.EventDTO{}
		_ = copier.Copy(d, e)
		res = append(res, d)
	}
	return res, nil
}

// recordEvent 审计事件写入失败不阻断主流程
func (s *conversationServiceImpl) recordEvent(ctx context.Context, convID uint64, eventType string, actorID uint64, detail string) {
	err := s.eventRepo.CreateEvent(ctx, &model.ConversationEvent{
		ConversationID: convID,
		Type:           eventType,
		ActorUserID:    actorID,
		Detail:         detail,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to record conversation event", "conv_id", convID, "type", eventType, "err", err)
	}
}

func (s *conversationServiceImpl) notifyUpdated(teamID, convID uint64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := s.publisher.PublishToTeam(ctx, teamID, &PushEvent{
			Type:    EventConversationUpdated,
			Payload: map[string]uint64{"conversation_id": convID},
		})
		if err != nil {
			log.Error("Failed to publish conversation update", "conv_id", convID, "err", err)
		}
	}()
}
