package service

import (
	"Converge/internal/api/dto"
	"Converge/internal/model"
	"Converge/internal/pkg/consts"
	"Converge/internal/pkg/kafka"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inboxFixture struct {
	svc          InboxService
	convRepo     *fakeConversationRepo
	customerRepo *fakeCustomerRepo
	messageRepo  *fakeMessageRepo
	searchRepo   *fakeSearchRepo
	dedup        *fakeDedupStore
	outbound     *fakeOutbound
	publisher    *fakePublisher
}

func newInboxFixture(t *testing.T) *inboxFixture {
	convRepo := newFakeConversationRepo()
	customerRepo := newFakeCustomerRepo()
	messageRepo := newFakeMessageRepo()
	searchRepo := newFakeSearchRepo()
	dedup := newFakeDedupStore()
	outbound := newFakeOutbound()
	publisher := newFakePublisher()

	delivery := NewDeliveryService(messageRepo, publisher)
	svc := NewInboxService(
		convRepo, customerRepo, newFakeNoteRepo(), newFakeEventRepo(),
		messageRepo, searchRepo, dedup,
		outbound, publisher, delivery,
		50,
	)
	t.Cleanup(svc.Close)

	return &inboxFixture{
		svc:          svc,
		convRepo:     convRepo,
		customerRepo: customerRepo,
		messageRepo:  messageRepo,
		searchRepo:   searchRepo,
		dedup:        dedup,
		outbound:     outbound,
		publisher:    publisher,
	}
}

func (f *inboxFixture) seedConversation(teamID uint64, status string) *model.Conversation {
	customer, _ := f.customerRepo.GetOrCreateByChannelIdentity(context.Background(), &model.Customer{
		TeamID:      teamID,
		ChannelType: consts.ChannelLine,
		ExternalID:  "ext-1",
		Name:        "测试客户",
	})
	return f.convRepo.put(&model.Conversation{
		TeamID:        teamID,
		CustomerID:    customer.ID,
		Customer:      *customer,
		ChannelType:   consts.ChannelLine,
		ChannelThread: "thread-1",
		Status:        status,
		Priority:      consts.PriorityNormal,
	})
}

func TestSendMessageAssignsSequence(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()
	conv := f.seedConversation(10, consts.ConversationStatusOpen)

	first, err := f.svc.SendMessage(ctx, 10, 3, conv.ID, &dto.SendMessageReq{MsgType: consts.MessageTypeText, Content: "你好"})
	require.NoError(t, err)
	second, err := f.svc.SendMessage(ctx, 10, 3, conv.ID, &dto.SendMessageReq{MsgType: consts.MessageTypeText, Content: "在吗"})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Equal(t, consts.MessageStatusSending, first.Status)
	assert.Equal(t, consts.DirectionOutgoing, first.Direction)
	assert.True(t, second.CreatedAt.After(first.CreatedAt))

	saved, err := f.messageRepo.GetMessage(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, saved.ConversationID)
	assert.Equal(t, uint64(3), saved.SenderUserID)

	got, _ := f.convRepo.GetConversation(ctx, conv.ID)
	assert.Equal(t, 2, got.MessagesCount)
	assert.Equal(t, 0, got.UnreadCount)
	assert.NotNil(t, got.FirstReplyAt)
	assert.Equal(t, "在吗", got.LastMsgContent)

	// 列表按 seq 升序返回
	msgs, err := f.svc.GetMessages(ctx, 10, conv.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, second.ID, msgs[1].ID)
}

func TestSendMessageValidation(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()

	open := f.seedConversation(10, consts.ConversationStatusOpen)
	closed := f.seedConversation(10, consts.ConversationStatusClosed)

	// 已关闭会话拒绝发送
	_, err := f.svc.SendMessage(ctx, 10, 3, closed.ID, &dto.SendMessageReq{MsgType: consts.MessageTypeText, Content: "hi"})
	assert.ErrorIs(t, err, ErrConversationClosed)

	// 空消息拒绝
	_, err = f.svc.SendMessage(ctx, 10, 3, open.ID, &dto.SendMessageReq{MsgType: consts.MessageTypeText})
	assert.ErrorIs(t, err, ErrInvalidMessage)

	// 纯附件消息允许
	_, err = f.svc.SendMessage(ctx, 10, 3, open.ID, &dto.SendMessageReq{
		MsgType:     consts.MessageTypeImage,
		Attachments: []dto.AttachmentDTO{{MimeType: "image/png", URL: "https://cdn/x.png"}},
	})
	assert.NoError(t, err)

	// 跨团队视为不存在
	_, err = f.svc.SendMessage(ctx, 99, 3, open.ID, &dto.SendMessageReq{MsgType: consts.MessageTypeText, Content: "hi"})
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestReceiveInboundCreatesConversation(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()

	inbound := &kafka.InboundMessage{
		TeamID:         10,
		ChannelType:    consts.ChannelWhatsapp,
		ChannelThread:  "wa-42",
		ExternalUserID: "wa-user-1",
		CustomerName:   "新客户",
		MsgType:        consts.MessageTypeText,
		Content:        "想咨询订单",
	}
	require.NoError(t, f.svc.ReceiveInbound(ctx, inbound))

	// 客户自动建档
	customer, err := f.customerRepo.GetOrCreateByChannelIdentity(ctx, &model.Customer{
		ChannelType: consts.ChannelWhatsapp, ExternalID: "wa-user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "新客户", customer.Name)

	// 自动开启会话并计未读
	conv, err := f.convRepo.GetActiveByCustomerChannel(ctx, customer.ID, consts.ChannelWhatsapp)
	require.NoError(t, err)
	assert.Equal(t, consts.ConversationStatusOpen, conv.Status)
	assert.Equal(t, 1, conv.UnreadCount)
	assert.Equal(t, uint64(1), conv.MaxMsgSeq)

	// 入站消息落库即为 delivered
	msgs, err := f.messageRepo.GetByConversation(ctx, conv.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, consts.MessageStatusDelivered, msgs[0].Status)
	assert.NotNil(t, msgs[0].DeliveredAt)
	assert.Equal(t, consts.DirectionIncoming, msgs[0].Direction)

	// 后续消息沿用同一会话
	require.NoError(t, f.svc.ReceiveInbound(ctx, inbound))
	conv, _ = f.convRepo.GetActiveByCustomerChannel(ctx, customer.ID, consts.ChannelWhatsapp)
	assert.Equal(t, uint64(2), conv.MaxMsgSeq)
	assert.Equal(t, 2, conv.UnreadCount)
}

func TestMarkReadClearsUnreadAndAdvancesMessages(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()
	conv := f.seedConversation(10, consts.ConversationStatusOpen)

	require.NoError(t, f.svc.ReceiveInbound(ctx, &kafka.InboundMessage{
		TeamID:         10,
		ChannelType:    consts.ChannelLine,
		ExternalUserID: "ext-1",
		MsgType:        consts.MessageTypeText,
		Content:        "有人吗",
	}))

	require.NoError(t, f.svc.MarkRead(ctx, 10, conv.ID))

	got, _ := f.convRepo.GetConversation(ctx, conv.ID)
	assert.Equal(t, 0, got.UnreadCount)

	msgs, _ := f.messageRepo.GetByConversation(ctx, conv.ID, 50, 0)
	require.Len(t, msgs, 1)
	assert.Equal(t, consts.MessageStatusRead, msgs[0].Status)

	// 手动标未读至少保留 1
	require.NoError(t, f.svc.MarkUnread(ctx, 10, conv.ID))
	got, _ = f.convRepo.GetConversation(ctx, conv.ID)
	assert.Equal(t, 1, got.UnreadCount)
}

func TestGetInboxReturnsStatsOverFullTeam(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()

	f.seedConversation(10, consts.ConversationStatusOpen)
	f.seedConversation(10, consts.ConversationStatusClosed)
	f.seedConversation(99, consts.ConversationStatusOpen)

	res, err := f.svc.GetInbox(ctx, 10, &dto.InboxQueryReq{})
	require.NoError(t, err)

	assert.Len(t, res.Conversations, 2)
	assert.Equal(t, int64(2), res.Stats.Total)
	assert.Equal(t, int64(1), res.Stats.Open)
	assert.Equal(t, int64(1), res.Stats.Closed)
}

func TestDeleteMessageOwnership(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()

	convA := f.seedConversation(10, consts.ConversationStatusOpen)
	convB := f.seedConversation(10, consts.ConversationStatusOpen)

	msg, err := f.svc.SendMessage(ctx, 10, 3, convA.ID, &dto.SendMessageReq{MsgType: consts.MessageTypeText, Content: "误发"})
	require.NoError(t, err)

	// 归属校验：不能经由其它会话删除
	assert.ErrorIs(t, f.svc.DeleteMessage(ctx, 10, convB.ID, msg.ID), ErrMessageNotFound)

	require.NoError(t, f.svc.DeleteMessage(ctx, 10, convA.ID, msg.ID))
	saved, _ := f.messageRepo.GetMessage(ctx, msg.ID)
	assert.True(t, saved.IsDeleted)

	// 墓碑不再出现在消息列表
	msgs, err := f.svc.GetMessages(ctx, 10, convA.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSearchMessagesValidation(t *testing.T) {
	f := newInboxFixture(t)

	_, err := f.svc.SearchMessages(context.Background(), 10, "", 10)
	assert.ErrorIs(t, err, ErrParamInvalid)
}

func TestMessageCarriesReplyMetadata(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()
	conv := f.seedConversation(10, consts.ConversationStatusOpen)

	first, err := f.svc.SendMessage(ctx, 10, 3, conv.ID, &dto.SendMessageReq{MsgType: consts.MessageTypeText, Content: "订单到哪了"})
	require.NoError(t, err)

	second, err := f.svc.SendMessage(ctx, 10, 3, conv.ID, &dto.SendMessageReq{
		MsgType:  consts.MessageTypeText,
		Content:  "引用回复",
		ReplyTo:  first.ID,
		Mentions: []uint64{7},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ReplyTo)
	assert.Equal(t, []uint64{7}, second.Mentions)

	saved, err := f.messageRepo.GetMessage(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, saved.ReplyTo)
	assert.Equal(t, []uint64{7}, saved.Mentions)

	// 渠道侧编辑后重投的入站副本保留标记
	require.NoError(t, f.svc.ReceiveInbound(ctx, &kafka.InboundMessage{
		TeamID:         10,
		ChannelType:    consts.ChannelLine,
		ExternalUserID: "ext-1",
		MsgType:        consts.MessageTypeText,
		Content:        "改过的内容",
		ReplyTo:        first.ID,
		Edited:         true,
	}))
	msgs, err := f.messageRepo.GetByConversation(ctx, conv.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.True(t, msgs[2].Edited)
	assert.Equal(t, first.ID, msgs[2].ReplyTo)
}

func TestReceiveInboundRetriesAfterTransientFailure(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()

	inbound := &kafka.InboundMessage{
		MessageKey:     "wa-msg-1",
		TeamID:         10,
		ChannelType:    consts.ChannelWhatsapp,
		ExternalUserID: "wa-user-9",
		MsgType:        consts.MessageTypeText,
		Content:        "订单没收到",
	}

	// 首投处理失败时幂等标记必须随之释放
	f.customerRepo.setGetOrCreateErr(assert.AnError)
	require.Error(t, f.svc.ReceiveInbound(ctx, inbound))
	assert.False(t, f.dedup.held("wa-msg-1"))

	// 消费侧重投同一条消息应正常落地，不能当作重复丢弃
	f.customerRepo.setGetOrCreateErr(nil)
	require.NoError(t, f.svc.ReceiveInbound(ctx, inbound))

	customer, err := f.customerRepo.GetOrCreateByChannelIdentity(ctx, &model.Customer{
		ChannelType: consts.ChannelWhatsapp, ExternalID: "wa-user-9",
	})
	require.NoError(t, err)
	conv, err := f.convRepo.GetActiveByCustomerChannel(ctx, customer.ID, consts.ChannelWhatsapp)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), conv.MaxMsgSeq)

	// 处理成功后的真重复仍被拦截
	require.NoError(t, f.svc.ReceiveInbound(ctx, inbound))
	conv, _ = f.convRepo.GetActiveByCustomerChannel(ctx, customer.ID, consts.ChannelWhatsapp)
	assert.Equal(t, uint64(1), conv.MaxMsgSeq)
}

func TestSendMessageFallsBackToRetryQueue(t *testing.T) {
	f := newInboxFixture(t)
	ctx := context.Background()
	conv := f.seedConversation(10, consts.ConversationStatusOpen)

	// 首次写入失败不阻断发送，由校准工作池补偿
	f.messageRepo.setSaveErr(assert.AnError)
	msg, err := f.svc.SendMessage(ctx, 10, 3, conv.ID, &dto.SendMessageReq{MsgType: consts.MessageTypeText, Content: "重试"})
	require.NoError(t, err)
	f.messageRepo.setSaveErr(nil)

	require.Eventually(t, func() bool {
		_, getErr := f.messageRepo.GetMessage(ctx, msg.ID)
		return getErr == nil
	}, 3*time.Second, 50*time.Millisecond)
}

func TestSendMessageMarksFailedWhenRetriesExhausted(t *testing.T) {
	f := newInboxFixture(t)
	f.svc.(*inboxServiceImpl).retryBackoff = time.Millisecond
	ctx := context.Background()
	conv := f.seedConversation(10, consts.ConversationStatusOpen)

	f.messageRepo.setSaveErr(assert.AnError)
	msg, err := f.svc.SendMessage(ctx, 10, 3, conv.ID, &dto.SendMessageReq{MsgType: consts.MessageTypeText, Content: "丢不得"})
	require.NoError(t, err)

	// 补偿重试耗尽后必须推送失败状态，不允许静默消失
	require.Eventually(t, func() bool {
		event := f.publisher.lastEventOfType(EventMessageStatus)
		if event == nil {
			return false
		}
		payload, ok := event.Payload.(map[string]interface{})
		if !ok {
			return false
		}
		return payload["message_id"] == msg.ID && payload["status"] == consts.MessageStatusFailed
	}, 3*time.Second, 20*time.Millisecond)
}
