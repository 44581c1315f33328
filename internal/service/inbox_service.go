package service

import (
	"Converge/internal/api/dto"
	"Converge/internal/model"
	"Converge/internal/pkg/consts"
	"Converge/internal/pkg/es"
	"Converge/internal/pkg/kafka"
	"Converge/internal/pkg/mongo"
	"Converge/internal/pkg/redis"
	"Converge/internal/repository"
	"context"
	"errors"
	log "log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	mongoDB "go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// OutboundPublisher 出站消息投递出口，由 Kafka 生产者实现
type OutboundPublisher interface {
	PublishOutbound(msg *kafka.OutboundMessage) error
}

// InboxService 收件箱门面：组合登记簿、消息存储、投递追踪与检索
type InboxService interface {
	GetInbox(ctx context.Context, teamID uint64, req *dto.InboxQueryReq) (*dto.InboxDTO, error)
	GetConversationDetail(ctx context.Context, teamID, convID uint64) (*dto.ConversationDetailDTO, error)
	GetMessages(ctx context.Context, teamID, convID uint64, limit, offset int) ([]*dto.MessageDTO, error)
	SendMessage(ctx context.Context, teamID, senderID, convID uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error)
	ReceiveInbound(ctx context.Context, inbound *kafka.InboundMessage) error
	MarkRead(ctx context.Context, teamID, convID uint64) error
	MarkUnread(ctx context.Context, teamID, convID uint64) error
	SearchMessages(ctx context.Context, teamID uint64, query string, limit int) ([]*dto.MessageDTO, error)
	DeleteMessage(ctx context.Context, teamID, convID uint64, msgID string) error
	Close()
}

type inboxServiceImpl struct {
	convRepo     repository.ConversationRepo
	customerRepo repository.CustomerRepo
	noteRepo     repository.NoteRepo
	eventRepo    repository.EventRepo
	messageRepo  mongo.MessageRepo
	searchRepo   es.MessageRepo
	dedup        redis.DedupStore
	outbound     OutboundPublisher
	publisher    EventPublisher
	delivery     DeliveryService
	pageSize     int

	retryChan    chan *mongo.Message
	retryBackoff time.Duration
	wg           sync.WaitGroup
	stopChan     chan struct{}
}

// NewInboxService 构造函数：初始化服务并启动异步校准工作池
func NewInboxService(
	convRepo repository.ConversationRepo,
	customerRepo repository.CustomerRepo,
	noteRepo repository.NoteRepo,
	eventRepo repository.EventRepo,
	messageRepo mongo.MessageRepo,
	searchRepo es.MessageRepo,
	dedup redis.DedupStore,
	outbound OutboundPublisher,
	publisher EventPublisher,
	delivery DeliveryService,
	pageSize int,
) InboxService {
	s := &inboxServiceImpl{
		convRepo:     convRepo,
		customerRepo: customerRepo,
		noteRepo:     noteRepo,
		eventRepo:    eventRepo,
		messageRepo:  messageRepo,
		searchRepo:   searchRepo,
		dedup:        dedup,
		outbound:     outbound,
		publisher:    publisher,
		delivery:     delivery,
		pageSize:     pageSize,
		retryChan:    make(chan *mongo.Message, 2048),
		retryBackoff: time.Second,
		stopChan:     make(chan struct{}),
	}

	workerCount := 5
	s.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go s.calibrationWorker()
	}

	return s
}

// GetInbox 会话列表与团队统计并行拉取；统计基于全量团队数据，不受过滤条件影响
func (s *inboxServiceImpl) GetInbox(ctx context.Context, teamID uint64, req *dto.InboxQueryReq) (*dto.InboxDTO, error) {
	filter := &repository.ConversationFilter{
		Statuses:       req.Statuses,
		ChannelTypes:   req.ChannelTypes,
		AssignedUserID: req.AssignedTo,
		Unread:         req.Unread,
		Search:         req.Search,
		Limit:          req.Limit,
		Offset:         req.Offset,
	}
	if filter.Limit <= 0 {
		filter.Limit = s.pageSize
	}

	var (
		convs []*model.Conversation
		stats *repository.ConversationStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		convs, err = s.listConversations(gctx, teamID, filter)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.convRepo.GetStats(gctx, teamID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &dto.InboxDTO{
		Conversations: make([]*dto.ConversationDTO, 0, len(convs)),
		Stats:         &dto.ConversationStatsDTO{},
	}
	_ = copier.Copy(res.Stats, stats)
	for _, conv := range convs {
		res.Conversations = append(res.Conversations, toConversationDTO(conv))
	}
	return res, nil
}

// listConversations 纯未读/纯负责人两种高频视图走专用查询，其余走通用过滤
func (s *inboxServiceImpl) listConversations(ctx context.Context, teamID uint64, filter *repository.ConversationFilter) ([]*model.Conversation, error) {
	plain := len(filter.Statuses) == 0 && len(filter.ChannelTypes) == 0 && filter.Search == ""
	switch {
	case plain && filter.Unread && filter.AssignedUserID == nil:
		return s.convRepo.ListUnread(ctx, teamID, filter.Limit, filter.Offset)
	case plain && !filter.Unread && filter.AssignedUserID != nil:
		return s.convRepo.ListByAssignee(ctx, teamID, *filter.AssignedUserID, filter.Limit, filter.Offset)
	default:
		return s.convRepo.ListByTeam(ctx, teamID, filter)
	}
}

func (s *inboxServiceImpl) GetConversationDetail(ctx context.Context, teamID, convID uint64) (*dto.ConversationDetailDTO, error) {
	conv, err := s.loadOwned(ctx, teamID, convID)
	if err != nil {
		return nil, err
	}

	detail := &dto.ConversationDetailDTO{
		ConversationDTO: *toConversationDTO(conv),
		Notes:           make([]dto.NoteDTO, 0),
		Events:          make([]dto.EventDTO, 0),
	}

	notes, err := s.noteRepo.ListByConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	for _, n := range notes {
		d := dto.NoteDTO{}
		_ = copier.Copy(&d, n)
		detail.Notes = append(detail.Notes, d)
	}

	events, err := s.eventRepo.ListByConversation(ctx, convID, 50)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		d := dto.EventDTO{}
		_ = copier.Copy(&d, e)
		detail.Events = append(detail.Events, d)
	}

	return detail, nil
}

// GetMessages 按 seq 升序分页。新消息只追加更大的 seq，已读页在并发写入下保持稳定。
func (s *inboxServiceImpl) GetMessages(ctx context.Context, teamID, convID uint64, limit, offset int) ([]*dto.MessageDTO, error) {
	if _, err := s.loadOwned(ctx, teamID, convID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = s.pageSize
	}

	messages, err := s.messageRepo.GetByConversation(ctx, convID, limit, offset)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.MessageDTO, 0, len(messages))
	for _, m := range messages {
		res = append(res, toMessageDTO(m))
	}
	return res, nil
}

// SendMessage 客服发送消息：定序事务先行，消息写入随后，发送方立即可见
func (s *inboxServiceImpl) SendMessage(ctx context.Context, teamID, senderID, convID uint64, req *dto.SendMessageReq) (*dto.MessageDTO, error) {
	conv, err := s.loadOwned(ctx, teamID, convID)
	if err != nil {
		return nil, err
	}
	if conv.Status == consts.ConversationStatusClosed {
		return nil, ErrConversationClosed
	}
	if req.Content == "" && len(req.Attachments) == 0 {
		return nil, ErrInvalidMessage
	}

	// MySQL 原子定序 + 计数对账
	meta, err := s.convRepo.AppendMessageMeta(ctx, convID, req.Content, req.MsgType, consts.DirectionOutgoing)
	if err != nil {
		return nil, err
	}

	msgModel := &mongo.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		Direction:      consts.DirectionOutgoing,
		SenderUserID:   senderID,
		MsgType:        req.MsgType,
		Content:        req.Content,
		ReplyTo:        req.ReplyTo,
		Mentions:       req.Mentions,
		Attachments:    toAttachments(req.Attachments),
		Status:         consts.MessageStatusSending,
		Seq:            meta.Seq,
		CreatedAt:      meta.CreatedAt,
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.messageRepo.SaveMessage(writeCtx, msgModel); err != nil {
		if !s.enqueueRetry(msgModel) {
			s.abandonMessage(msgModel, err)
			return toMessageDTO(msgModel), nil
		}
	}

	go s.dispatchOutbound(conv, msgModel)

	return toMessageDTO(msgModel), nil
}

// dispatchOutbound 出站消息的旁路处理：检索索引、渠道投递、实时推送
func (s *inboxServiceImpl) dispatchOutbound(conv *model.Conversation, msg *mongo.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.searchRepo.IndexMessage(ctx, &es.MessageES{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		TeamID:         conv.TeamID,
		Direction:      msg.Direction,
		MsgType:        msg.MsgType,
		Content:        msg.Content,
		CustomerName:   conv.Customer.Name,
		CreatedAt:      msg.CreatedAt,
	}); err != nil {
		log.Error("Failed to index message", "msg_id", msg.ID, "err", err)
	}

	if err := s.outbound.PublishOutbound(&kafka.OutboundMessage{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		ChannelType:    conv.ChannelType,
		ChannelThread:  conv.ChannelThread,
		ExternalUserID: conv.Customer.ExternalID,
		MsgType:        msg.MsgType,
		Content:        msg.Content,
		Attachments:    toInboundAttachments(msg.Attachments),
	}); err != nil {
		log.Error("Failed to publish outbound message", "msg_id", msg.ID, "err", err)
	}

	event := &PushEvent{Type: EventMessageCreated, Payload: toMessageDTO(msg)}
	if err := s.publisher.PublishToConversation(ctx, msg.ConversationID, event); err != nil {
		log.Error("Failed to publish message event", "msg_id", msg.ID, "err", err)
	}
	if err := s.publisher.PublishToTeam(ctx, conv.TeamID, event); err != nil {
		log.Error("Failed to publish team message event", "msg_id", msg.ID, "err", err)
	}
}

// ReceiveInbound 渠道入站消息入口：客户自动建档，无活跃会话时自动开启
func (s *inboxServiceImpl) ReceiveInbound(ctx context.Context, inbound *kafka.InboundMessage) error {
	if inbound.MessageKey == "" {
		return s.processInbound(ctx, inbound)
	}

	acquired, err := s.dedup.Acquire(ctx, inbound.MessageKey, 24*time.Hour)
	if err != nil {
		return err
	}
	if !acquired {
		log.InfoContext(ctx, "duplicate inbound message skipped", "key", inbound.MessageKey)
		return nil
	}

	// 处理失败立即释放幂等标记，消费侧重投时消息才能重新落地
	if err := s.processInbound(ctx, inbound); err != nil {
		if relErr := s.dedup.Release(ctx, inbound.MessageKey); relErr != nil {
			log.ErrorContext(ctx, "Failed to release inbound dedup marker", "key", inbound.MessageKey, "err", relErr)
		}
		return err
	}
	return nil
}

func (s *inboxServiceImpl) processInbound(ctx context.Context, inbound *kafka.InboundMessage) error {
	customer, err := s.customerRepo.GetOrCreateByChannelIdentity(ctx, &model.Customer{
		TeamID:      inbound.TeamID,
		ChannelType: inbound.ChannelType,
		ExternalID:  inbound.ExternalUserID,
		Name:        inbound.CustomerName,
		AvatarURL:   inbound.AvatarURL,
	})
	if err != nil {
		return err
	}

	conv, err := s.convRepo.GetActiveByCustomerChannel(ctx, customer.ID, inbound.ChannelType)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		conv = &model.Conversation{
			TeamID:        inbound.TeamID,
			CustomerID:    customer.ID,
			ChannelType:   inbound.ChannelType,
			ChannelThread: inbound.ChannelThread,
			Status:        consts.ConversationStatusOpen,
			Priority:      consts.PriorityNormal,
			LastMessageAt: time.Now(),
		}
		if err = s.convRepo.CreateConversation(ctx, conv); err != nil {
			return err
		}
	}

	meta, err := s.convRepo.AppendMessageMeta(ctx, conv.ID, inbound.Content, inbound.MsgType, consts.DirectionIncoming)
	if err != nil {
		return err
	}

	deliveredAt := meta.CreatedAt
	msgModel := &mongo.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Direction:      consts.DirectionIncoming,
		CustomerID:     customer.ID,
		MsgType:        inbound.MsgType,
		Content:        inbound.Content,
		ReplyTo:        inbound.ReplyTo,
		Edited:         inbound.Edited,
		Attachments:    fromInboundAttachments(inbound.Attachments),
		Status:         consts.MessageStatusDelivered,
		Seq:            meta.Seq,
		DeliveredAt:    &deliveredAt,
		CreatedAt:      meta.CreatedAt,
	}

	if err := s.messageRepo.SaveMessage(ctx, msgModel); err != nil {
		if !s.enqueueRetry(msgModel) {
			// 定序已提交，重投会重复计数，就地标记失败并告警
			s.abandonMessage(msgModel, err)
			return nil
		}
	}

	conv.Customer = *customer
	go s.dispatchInbound(conv, msgModel)
	return nil
}

func (s *inboxServiceImpl) dispatchInbound(conv *model.Conversation, msg *mongo.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.searchRepo.IndexMessage(ctx, &es.MessageES{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		TeamID:         conv.TeamID,
		Direction:      msg.Direction,
		MsgType:        msg.MsgType,
		Content:        msg.Content,
		CustomerName:   conv.Customer.Name,
		CreatedAt:      msg.CreatedAt,
	}); err != nil {
		log.Error("Failed to index inbound message", "msg_id", msg.ID, "err", err)
	}

	event := &PushEvent{Type: EventMessageCreated, Payload: toMessageDTO(msg)}
	if err := s.publisher.PublishToConversation(ctx, msg.ConversationID, event); err != nil {
		log.Error("Failed to publish inbound message event", "msg_id", msg.ID, "err", err)
	}
	if err := s.publisher.PublishToTeam(ctx, conv.TeamID, event); err != nil {
		log.Error("Failed to publish team inbound event", "msg_id", msg.ID, "err", err)
	}
}

// MarkRead 会话未读清零，同时批量推进入站消息为已读
func (s *inboxServiceImpl) MarkRead(ctx context.Context, teamID, convID uint64) error {
	conv, err := s.loadOwned(ctx, teamID, convID)
	if err != nil {
		return err
	}

	if err = s.convRepo.MarkRead(ctx, convID); err != nil {
		return err
	}
	return s.delivery.MarkConversationMessagesRead(ctx, convID, conv.MaxMsgSeq)
}

func (s *inboxServiceImpl) MarkUnread(ctx context.Context, teamID, convID uint64) error {
	if _, err := s.loadOwned(ctx, teamID, convID); err != nil {
		return err
	}
	return s.convRepo.MarkUnread(ctx, convID)
}

func (s *inboxServiceImpl) SearchMessages(ctx context.Context, teamID uint64, query string, limit int) ([]*dto.MessageDTO, error) {
	if query == "" {
		return nil, ErrParamInvalid
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	hits, err := s.searchRepo.SearchMessages(ctx, teamID, query, limit)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.MessageDTO, 0, len(hits))
	for _, hit := range hits {
		res = append(res, &dto.MessageDTO{
			ID:             hit.ID,
			ConversationID: hit.ConversationID,
			Direction:      hit.Direction,
			MsgType:        hit.MsgType,
			Content:        hit.Content,
			CreatedAt:      hit.CreatedAt,
		})
	}
	return res, nil
}

// DeleteMessage 软删除：打墓碑并摘除检索索引，seq 不回收
func (s *inboxServiceImpl) DeleteMessage(ctx context.Context, teamID, convID uint64, msgID string) error {
	if _, err := s.loadOwned(ctx, teamID, convID); err != nil {
		return err
	}

	msg, err := s.messageRepo.GetMessage(ctx, msgID)
	if err != nil {
		if errors.Is(err, mongoDB.ErrNoDocuments) {
			return ErrMessageNotFound
		}
		return err
	}
	if msg.ConversationID != convID {
		return ErrMessageNotFound
	}

	if err = s.messageRepo.SetDeleted(ctx, msgID); err != nil {
		return err
	}
	if err = s.searchRepo.DeleteMessage(ctx, msgID); err != nil {
		log.ErrorContext(ctx, "Failed to remove message from index", "msg_id", msgID, "err", err)
	}

	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.publisher.PublishToConversation(pubCtx, convID, &PushEvent{
			Type:    EventMessageDeleted,
			Payload: map[string]interface{}{"message_id": msgID, "conversation_id": convID},
		})
	}()
	return nil
}

func (s *inboxServiceImpl) Close() {
	close(s.stopChan)
	s.wg.Wait()
	log.Info("InboxService shut down gracefully")
}

func (s *inboxServiceImpl) calibrationWorker() {
	defer s.wg.Done()
	for {
		select {
		case msg := <-s.retryChan:
			backoff := s.retryBackoff
			var err error
			for i := 0; i < 3; i++ {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err = s.messageRepo.SaveMessage(ctx, msg)
				cancel()
				if err == nil {
					break
				}
				time.Sleep(backoff)
				backoff *= 2
			}
			if err != nil {
				s.abandonMessage(msg, err)
			}
		case <-s.stopChan:
			return
		}
	}
}

// enqueueRetry 拷贝后入队，工作池的改动不影响调用方已返回的消息视图
func (s *inboxServiceImpl) enqueueRetry(msg *mongo.Message) bool {
	cp := *msg
	select {
	case s.retryChan <- &cp:
		return true
	default:
		return false
	}
}

// abandonMessage 存储补偿耗尽的兜底：标记失败、推送状态并留痕，消息不静默消失
func (s *inboxServiceImpl) abandonMessage(msg *mongo.Message, cause error) {
	msg.Status = consts.MessageStatusFailed
	msg.FailReason = "storage write failed"
	log.Error("Message persistence abandoned",
		"msg_id", msg.ID, "conversation_id", msg.ConversationID, "seq", msg.Seq, "err", cause)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	event := &PushEvent{
		Type: EventMessageStatus,
		Payload: map[string]interface{}{
			"message_id":      msg.ID,
			"conversation_id": msg.ConversationID,
			"status":          msg.Status,
			"fail_reason":     msg.FailReason,
		},
	}
	if err := s.publisher.PublishToConversation(ctx, msg.ConversationID, event); err != nil {
		log.Error("Failed to publish message failure", "msg_id", msg.ID, "err", err)
	}
}

func (s *inboxServiceImpl) loadOwned(ctx context.Context, teamID, convID uint64) (*model.Conversation, error) {
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

func toConversationDTO(conv *model.Conversation) *dto.ConversationDTO {
	d := &dto.ConversationDTO{}
	_ = copier.Copy(d, conv)
	if d.Tags == nil {
		d.Tags = make([]string, 0)
	}
	d.Customer = dto.CustomerDTO{
		ID:          conv.Customer.ID,
		Name:        conv.Customer.Name,
		AvatarURL:   conv.Customer.AvatarURL,
		ChannelType: conv.Customer.ChannelType,
		Phone:       conv.Customer.Phone,
		Email:       conv.Customer.Email,
	}
	return d
}

func toMessageDTO(m *mongo.Message) *dto.MessageDTO {
	attachments := make([]dto.AttachmentDTO, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachments = append(attachments, dto.AttachmentDTO{
			MimeType: a.MimeType,
			URL:      a.MediaURL,
			Width:    a.Width,
			Height:   a.Height,
			Duration: a.Duration,
			CoverURL: a.CoverURL,
		})
	}
	return &dto.MessageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Direction:      m.Direction,
		SenderUserID:   m.SenderUserID,
		CustomerID:     m.CustomerID,
		MsgType:        m.MsgType,
		Content:        m.Content,
		ReplyTo:        m.ReplyTo,
		Mentions:       m.Mentions,
		Edited:         m.Edited,
		Attachments:    attachments,
		Status:         m.Status,
		FailReason:     m.FailReason,
		Seq:            m.Seq,
		DeliveredAt:    m.DeliveredAt,
		ReadAt:         m.ReadAt,
		IsDeleted:      m.IsDeleted,
		CreatedAt:      m.CreatedAt,
	}
}

func toAttachments(in []dto.AttachmentDTO) []mongo.Attachment {
	res := make([]mongo.Attachment, 0, len(in))
	for _, a := range in {
		res = append(res, mongo.Attachment{
			MimeType: a.MimeType,
			MediaURL: a.URL,
			Width:    a.Width,
			Height:   a.Height,
			Duration: a.Duration,
			CoverURL: a.CoverURL,
		})
	}
	return res
}

func toInboundAttachments(in []mongo.Attachment) []kafka.InboundAttachment {
	res := make([]kafka.InboundAttachment, 0, len(in))
	for _, a := range in {
		res = append(res, kafka.InboundAttachment{MimeType: a.MimeType, URL: a.MediaURL})
	}
	return res
}

func fromInboundAttachments(in []kafka.InboundAttachment) []mongo.Attachment {
	res := make([]mongo.Attachment, 0, len(in))
	for _, a := range in {
		res = append(res, mongo.Attachment{MimeType: a.MimeType, MediaURL: a.URL})
	}
	return res
}
