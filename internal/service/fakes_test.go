package service

import (
	"Converge/internal/model"
	"Converge/internal/pkg/consts"
	"Converge/internal/pkg/es"
	"Converge/internal/pkg/kafka"
	"Converge/internal/pkg/mongo"
	redisPkg "Converge/internal/pkg/redis"
	"Converge/internal/repository"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongoDB "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ---- 消息存储 ----

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string]*mongo.Message
	saveErr  error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]*mongo.Message)}
}

func (f *fakeMessageRepo) setSaveErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveErr = err
}

func (f *fakeMessageRepo) SaveMessage(_ context.Context, msg *mongo.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *msg
	f.messages[msg.ID] = &cp
	return nil
}

func (f *fakeMessageRepo) GetMessage(_ context.Context, id string) (*mongo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, mongoDB.ErrNoDocuments
	}
	cp := *msg
	return &cp, nil
}

func (f *fakeMessageRepo) GetByConversation(_ context.Context, convID uint64, limit, offset int) ([]*mongo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*mongo.Message
	for _, msg := range f.messages {
		if msg.ConversationID == convID && !msg.IsDeleted {
			cp := *msg
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Seq < res[j].Seq })
	if offset >= len(res) {
		return nil, nil
	}
	res = res[offset:]
	if limit > 0 && limit < len(res) {
		res = res[:limit]
	}
	return res, nil
}

func (f *fakeMessageRepo) UpdateStatusIf(_ context.Context, id string, to string, allowedFrom []string, set bson.M) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, from := range allowedFrom {
		if msg.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	msg.Status = to
	if v, ok := set["delivered_at"].(time.Time); ok {
		msg.DeliveredAt = &v
	}
	if v, ok := set["read_at"].(time.Time); ok {
		msg.ReadAt = &v
	}
	if v, ok := set["fail_reason"].(string); ok {
		msg.FailReason = v
	}
	return true, nil
}

func (f *fakeMessageRepo) MarkConversationRead(_ context.Context, convID, uptoSeq uint64, readAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var modified int64
	for _, msg := range f.messages {
		if msg.ConversationID == convID &&
			msg.Direction == consts.DirectionIncoming &&
			msg.Status != consts.MessageStatusRead &&
			msg.Seq <= uptoSeq {
			msg.Status = consts.MessageStatusRead
			at := readAt
			msg.ReadAt = &at
			modified++
		}
	}
	return modified, nil
}

func (f *fakeMessageRepo) SetDeleted(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := f.messages[id]; ok {
		msg.IsDeleted = true
	}
	return nil
}

// ---- 会话登记簿 ----

type fakeConversationRepo struct {
	mu     sync.Mutex
	convs  map[uint64]*model.Conversation
	nextID uint64
	stats  *repository.ConversationStats
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{convs: make(map[uint64]*model.Conversation), nextID: 1}
}

func (f *fakeConversationRepo) put(conv *model.Conversation) *model.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv.ID == 0 {
		conv.ID = f.nextID
		f.nextID++
	}
	f.convs[conv.ID] = conv
	return conv
}

func (f *fakeConversationRepo) CreateConversation(_ context.Context, conv *model.Conversation) error {
	f.put(conv)
	return nil
}

func (f *fakeConversationRepo) GetConversation(_ context.Context, convID uint64) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[convID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *conv
	return &cp, nil
}

func (f *fakeConversationRepo) GetActiveByCustomerChannel(_ context.Context, customerID uint64, channelType string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conv := range f.convs {
		if conv.CustomerID == customerID && conv.ChannelType == channelType && conv.Status != consts.ConversationStatusClosed {
			cp := *conv
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeConversationRepo) AppendMessageMeta(_ context.Context, convID uint64, content, msgType, direction string) (*repository.AppendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[convID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	createdAt := time.Now()
	if !createdAt.After(conv.LastMessageAt) {
		createdAt = conv.LastMessageAt.Add(time.Millisecond)
	}
	conv.MaxMsgSeq++
	conv.MessagesCount++
	conv.LastMsgContent = content
	conv.LastMsgType = msgType
	conv.LastMsgDir = direction
	conv.LastMessageAt = createdAt
	if direction == consts.DirectionIncoming {
		conv.UnreadCount++
	} else if conv.FirstReplyAt == nil {
		at := createdAt
		conv.FirstReplyAt = &at
	}
	return &repository.AppendResult{Seq: conv.MaxMsgSeq, CreatedAt: createdAt}, nil
}

func (f *fakeConversationRepo) MarkRead(_ context.Context, convID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv, ok := f.convs[convID]; ok {
		conv.UnreadCount = 0
	}
	return nil
}

func (f *fakeConversationRepo) MarkUnread(_ context.Context, convID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv, ok := f.convs[convID]; ok && conv.UnreadCount < 1 {
		conv.UnreadCount = 1
	}
	return nil
}

func (f *fakeConversationRepo) Assign(_ context.Context, convID, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv, ok := f.convs[convID]; ok {
		conv.AssignedUserID = userID
	}
	return nil
}

func (f *fakeConversationRepo) UpdateTags(_ context.Context, convID uint64, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv, ok := f.convs[convID]; ok {
		conv.Tags = tags
	}
	return nil
}

func (f *fakeConversationRepo) UpdatePriority(_ context.Context, convID uint64, priority string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv, ok := f.convs[convID]; ok {
		conv.Priority = priority
	}
	return nil
}

func (f *fakeConversationRepo) SetStatus(_ context.Context, convID uint64, from, to string, extra map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[convID]
	if !ok || conv.Status != from {
		return false, nil
	}
	conv.Status = to
	if v, present := extra["snoozed_until"]; present {
		if at, ok := v.(time.Time); ok {
			conv.SnoozedUntil = &at
		} else {
			conv.SnoozedUntil = nil
		}
	}
	if v, present := extra["closed_at"]; present {
		if at, ok := v.(time.Time); ok {
			conv.ClosedAt = &at
		} else {
			conv.ClosedAt = nil
		}
	}
	return true, nil
}

func (f *fakeConversationRepo) ListByTeam(_ context.Context, teamID uint64, filter *repository.ConversationFilter) ([]*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*model.Conversation
	for _, conv := range f.convs {
		if conv.TeamID != teamID {
			continue
		}
		cp := *conv
		res = append(res, &cp)
	}
	return res, nil
}

func (f *fakeConversationRepo) ListByAssignee(_ context.Context, teamID, userID uint64, limit, offset int) ([]*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*model.Conversation
	for _, conv := range f.convs {
		if conv.TeamID == teamID && conv.AssignedUserID == userID {
			cp := *conv
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (f *fakeConversationRepo) ListUnread(_ context.Context, teamID uint64, limit, offset int) ([]*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*model.Conversation
	for _, conv := range f.convs {
		if conv.TeamID == teamID && conv.UnreadCount > 0 {
			cp := *conv
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (f *fakeConversationRepo) ListSnoozeExpired(_ context.Context, now time.Time) ([]*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*model.Conversation
	for _, conv := range f.convs {
		if conv.Status == consts.ConversationStatusSnoozed && conv.SnoozedUntil != nil && !conv.SnoozedUntil.After(now) {
			cp := *conv
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (f *fakeConversationRepo) GetStats(_ context.Context, teamID uint64) (*repository.ConversationStats, error) {
	if f.stats != nil {
		return f.stats, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repository.ConversationStats{}
	for _, conv := range f.convs {
		if conv.TeamID != teamID {
			continue
		}
		stats.Total++
		switch conv.Status {
		case consts.ConversationStatusOpen:
			stats.Open++
		case consts.ConversationStatusPending:
			stats.Pending++
		case consts.ConversationStatusClosed:
			stats.Closed++
		case consts.ConversationStatusSnoozed:
			stats.Snoozed++
		}
		if conv.AssignedUserID == 0 {
			stats.Unassigned++
		}
	}
	return stats, nil
}

// ---- 备注与审计 ----

type fakeNoteRepo struct {
	mu     sync.Mutex
	notes  []*model.ConversationNote
	nextID uint64
}

func newFakeNoteRepo() *fakeNoteRepo {
	return &fakeNoteRepo{nextID: 1}
}

func (f *fakeNoteRepo) CreateNote(_ context.Context, note *model.ConversationNote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	note.ID = f.nextID
	f.nextID++
	f.notes = append(f.notes, note)
	return nil
}

func (f *fakeNoteRepo) GetNote(_ context.Context, id uint64) (*model.ConversationNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notes {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeNoteRepo) ListByConversation(_ context.Context, convID uint64) ([]*model.ConversationNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*model.ConversationNote
	for _, n := range f.notes {
		if n.ConversationID == convID {
			res = append(res, n)
		}
	}
	return res, nil
}

func (f *fakeNoteRepo) DeleteNote(_ context.Context, id uint64) error {
	return nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []*model.ConversationEvent
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{}
}

func (f *fakeEventRepo) CreateEvent(_ context.Context, event *model.ConversationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event.ID = uint64(len(f.events) + 1)
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventRepo) ListByConversation(_ context.Context, convID uint64, limit int) ([]*model.ConversationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*model.ConversationEvent
	for _, e := range f.events {
		if e.ConversationID == convID {
			res = append(res, e)
		}
	}
	return res, nil
}

func (f *fakeEventRepo) lastEventType() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return ""
	}
	return f.events[len(f.events)-1].Type
}

// ---- 客户档案 ----

type fakeCustomerRepo struct {
	mu             sync.Mutex
	customers      map[uint64]*model.Customer
	nextID         uint64
	getOrCreateErr error
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: make(map[uint64]*model.Customer), nextID: 1}
}

func (f *fakeCustomerRepo) setGetOrCreateErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getOrCreateErr = err
}

func (f *fakeCustomerRepo) GetCustomer(_ context.Context, id uint64) (*model.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	customer, ok := f.customers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return customer, nil
}

func (f *fakeCustomerRepo) GetOrCreateByChannelIdentity(_ context.Context, customer *model.Customer) (*model.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getOrCreateErr != nil {
		return nil, f.getOrCreateErr
	}
	for _, existing := range f.customers {
		if existing.ChannelType == customer.ChannelType && existing.ExternalID == customer.ExternalID {
			return existing, nil
		}
	}
	customer.ID = f.nextID
	f.nextID++
	f.customers[customer.ID] = customer
	return customer, nil
}

func (f *fakeCustomerRepo) UpdateProfile(_ context.Context, id uint64, name, avatarURL string) error {
	return nil
}

// ---- 入站幂等标记 ----

type fakeDedupStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newFakeDedupStore() *fakeDedupStore {
	return &fakeDedupStore{keys: make(map[string]bool)}
}

func (f *fakeDedupStore) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeDedupStore) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	return nil
}

func (f *fakeDedupStore) held(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[key]
}

// ---- 推送与出站 ----

type fakePublisher struct {
	mu     sync.Mutex
	events []*PushEvent
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{}
}

func (f *fakePublisher) PublishToConversation(_ context.Context, _ uint64, event *PushEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) PublishToTeam(_ context.Context, _ uint64, event *PushEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) lastEventOfType(eventType string) *PushEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].Type == eventType {
			return f.events[i]
		}
	}
	return nil
}

type fakeOutbound struct {
	mu       sync.Mutex
	messages []*kafka.OutboundMessage
}

func newFakeOutbound() *fakeOutbound {
	return &fakeOutbound{}
}

func (f *fakeOutbound) PublishOutbound(msg *kafka.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

// ---- 检索 ----

type fakeSearchRepo struct {
	mu      sync.Mutex
	indexed map[string]*es.MessageES
}

func newFakeSearchRepo() *fakeSearchRepo {
	return &fakeSearchRepo{indexed: make(map[string]*es.MessageES)}
}

func (f *fakeSearchRepo) IndexMessage(_ context.Context, msg *es.MessageES) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed[msg.ID] = msg
	return nil
}

func (f *fakeSearchRepo) SearchMessages(_ context.Context, teamID uint64, queryText string, size int) ([]*es.MessageES, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*es.MessageES
	for _, msg := range f.indexed {
		if msg.TeamID == teamID {
			res = append(res, msg)
		}
	}
	return res, nil
}

func (f *fakeSearchRepo) DeleteMessage(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.indexed, id)
	return nil
}

// ---- Redis 存储 ----

type fakeTypingStore struct {
	mu     sync.Mutex
	states map[string]*redisPkg.TypingState
}

func newFakeTypingStore() *fakeTypingStore {
	return &fakeTypingStore{states: make(map[string]*redisPkg.TypingState)}
}

func (f *fakeTypingStore) Set(_ context.Context, state *redisPkg.TypingState, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state.ActorKey()] = state
	return nil
}

func (f *fakeTypingStore) Clear(_ context.Context, _ uint64, actorKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, actorKey)
	return nil
}

func (f *fakeTypingStore) List(_ context.Context, _ uint64) ([]*redisPkg.TypingState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*redisPkg.TypingState
	for _, state := range f.states {
		res = append(res, state)
	}
	return res, nil
}

type fakeDraftStore struct {
	mu     sync.Mutex
	drafts map[string]*redisPkg.Draft
}

func newFakeDraftStore() *fakeDraftStore {
	return &fakeDraftStore{drafts: make(map[string]*redisPkg.Draft)}
}

func draftFakeKey(convID, userID uint64) string {
	return fmt.Sprintf("%d:%d", convID, userID)
}

func (f *fakeDraftStore) Save(_ context.Context, draft *redisPkg.Draft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts[draftFakeKey(draft.ConversationID, draft.UserID)] = draft
	return nil
}

func (f *fakeDraftStore) Get(_ context.Context, convID, userID uint64) (*redisPkg.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drafts[draftFakeKey(convID, userID)], nil
}

func (f *fakeDraftStore) Delete(_ context.Context, convID, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, draftFakeKey(convID, userID))
	return nil
}
