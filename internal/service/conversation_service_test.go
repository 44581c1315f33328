package service

import (
	"Converge/internal/model"
	"Converge/internal/pkg/consts"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type conversationFixture struct {
	svc       ConversationService
	convRepo  *fakeConversationRepo
	noteRepo  *fakeNoteRepo
	eventRepo *fakeEventRepo
}

func newConversationFixture() *conversationFixture {
	convRepo := newFakeConversationRepo()
	noteRepo := newFakeNoteRepo()
	eventRepo := newFakeEventRepo()
	svc := NewConversationService(convRepo, noteRepo, eventRepo, newFakePublisher())
	return &conversationFixture{svc: svc, convRepo: convRepo, noteRepo: noteRepo, eventRepo: eventRepo}
}

func (f *conversationFixture) seed(teamID uint64, status string) *model.Conversation {
	return f.convRepo.put(&model.Conversation{
		TeamID:      teamID,
		CustomerID:  1,
		ChannelType: consts.ChannelLine,
		Status:      status,
		Priority:    consts.PriorityNormal,
	})
}

func TestConversationCloseAndReopen(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()
	conv := f.seed(10, consts.ConversationStatusOpen)

	require.NoError(t, f.svc.Close(ctx, 1, 10, conv.ID))
	got, _ := f.convRepo.GetConversation(ctx, conv.ID)
	assert.Equal(t, consts.ConversationStatusClosed, got.Status)
	assert.NotNil(t, got.ClosedAt)

	// 重复关闭报错
	assert.ErrorIs(t, f.svc.Close(ctx, 1, 10, conv.ID), ErrConversationClosed)

	require.NoError(t, f.svc.Reopen(ctx, 1, 10, conv.ID))
	got, _ = f.convRepo.GetConversation(ctx, conv.ID)
	assert.Equal(t, consts.ConversationStatusOpen, got.Status)
	assert.Nil(t, got.ClosedAt)

	// 非关闭状态无法重开
	assert.ErrorIs(t, f.svc.Reopen(ctx, 1, 10, conv.ID), ErrConversationNotClosed)
}

func TestConversationStatusFlow(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()
	conv := f.seed(10, consts.ConversationStatusOpen)

	// open/pending/snoozed 自由流转
	require.NoError(t, f.svc.SetStatus(ctx, 1, 10, conv.ID, consts.ConversationStatusPending))
	require.NoError(t, f.svc.SetStatus(ctx, 1, 10, conv.ID, consts.ConversationStatusOpen))

	// 同状态为幂等空操作
	require.NoError(t, f.svc.SetStatus(ctx, 1, 10, conv.ID, consts.ConversationStatusOpen))

	// closed 作为目标收口到 Close，记录关闭时间
	require.NoError(t, f.svc.SetStatus(ctx, 1, 10, conv.ID, consts.ConversationStatusClosed))
	got, _ := f.convRepo.GetConversation(ctx, conv.ID)
	assert.Equal(t, consts.ConversationStatusClosed, got.Status)
	assert.NotNil(t, got.ClosedAt)

	// 已关闭会话重复关闭与其他流转都被拒绝
	assert.ErrorIs(t, f.svc.SetStatus(ctx, 1, 10, conv.ID, consts.ConversationStatusClosed), ErrConversationClosed)
	assert.ErrorIs(t, f.svc.SetStatus(ctx, 1, 10, conv.ID, consts.ConversationStatusPending), ErrInvalidTransition)

	// 未知状态仍拒绝
	assert.ErrorIs(t, f.svc.SetStatus(ctx, 1, 10, conv.ID, "archived"), ErrParamInvalid)
}

func TestConversationSnooze(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()
	conv := f.seed(10, consts.ConversationStatusOpen)

	// 过去时间无效
	assert.ErrorIs(t, f.svc.Snooze(ctx, 1, 10, conv.ID, time.Now().Add(-time.Hour)), ErrParamInvalid)

	until := time.Now().Add(2 * time.Hour)
	require.NoError(t, f.svc.Snooze(ctx, 1, 10, conv.ID, until))
	got, _ := f.convRepo.GetConversation(ctx, conv.ID)
	assert.Equal(t, consts.ConversationStatusSnoozed, got.Status)
	require.NotNil(t, got.SnoozedUntil)

	// 离开 snoozed 时清除期限
	require.NoError(t, f.svc.SetStatus(ctx, 1, 10, conv.ID, consts.ConversationStatusOpen))
	got, _ = f.convRepo.GetConversation(ctx, conv.ID)
	assert.Nil(t, got.SnoozedUntil)
}

func TestConversationAssignIdempotent(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()
	conv := f.seed(10, consts.ConversationStatusOpen)

	require.NoError(t, f.svc.Assign(ctx, 1, 10, conv.ID, 42))
	got, _ := f.convRepo.GetConversation(ctx, conv.ID)
	assert.Equal(t, uint64(42), got.AssignedUserID)
	assert.Equal(t, consts.EventAssigned, f.eventRepo.lastEventType())

	// 重复分配不产生新事件
	before := len(f.eventRepo.events)
	require.NoError(t, f.svc.Assign(ctx, 1, 10, conv.ID, 42))
	assert.Equal(t, before, len(f.eventRepo.events))
}

func TestConversationTags(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()
	conv := f.seed(10, consts.ConversationStatusOpen)

	require.NoError(t, f.svc.AddTag(ctx, 1, 10, conv.ID, "vip"))
	require.NoError(t, f.svc.AddTag(ctx, 1, 10, conv.ID, "refund"))
	// 重复打标为空操作
	require.NoError(t, f.svc.AddTag(ctx, 1, 10, conv.ID, "vip"))

	got, _ := f.convRepo.GetConversation(ctx, conv.ID)
	assert.Equal(t, []string{"vip", "refund"}, got.Tags)

	require.NoError(t, f.svc.RemoveTag(ctx, 1, 10, conv.ID, "vip"))
	got, _ = f.convRepo.GetConversation(ctx, conv.ID)
	assert.Equal(t, []string{"refund"}, got.Tags)

	// 不存在的标签移除为空操作
	require.NoError(t, f.svc.RemoveTag(ctx, 1, 10, conv.ID, "ghost"))

	assert.ErrorIs(t, f.svc.AddTag(ctx, 1, 10, conv.ID, ""), ErrParamInvalid)
}

func TestConversationTeamScoping(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()
	conv := f.seed(10, consts.ConversationStatusOpen)

	// 其它团队访问视为不存在
	assert.ErrorIs(t, f.svc.Close(ctx, 1, 99, conv.ID), ErrConversationNotFound)
	assert.ErrorIs(t, f.svc.Assign(ctx, 1, 99, conv.ID, 5), ErrConversationNotFound)

	_, err := f.svc.ListNotes(ctx, 99, conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationNotesAndEvents(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()
	conv := f.seed(10, consts.ConversationStatusOpen)

	note, err := f.svc.AddNote(ctx, 3, 10, conv.ID, "内部备注：客户要求换货")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), note.UserID)

	notes, err := f.svc.ListNotes(ctx, 10, conv.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	events, err := f.svc.ListEvents(ctx, 10, conv.ID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, consts.EventNoteAdded, events[len(events)-1].Type)
}
