package repository

import (
	"Converge/internal/model"
	"Converge/internal/pkg/consts"
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationFilter 会话列表过滤条件
type ConversationFilter struct {
	Statuses       []string
	ChannelTypes   []string
	AssignedUserID *uint64
	Unread         bool
	Search         string // 匹配客户名称或最后一条消息内容
	Limit          int
	Offset         int
}

// ConversationStats 团队会话统计，基于全量团队数据而非过滤结果
type ConversationStats struct {
	Total                 int64   `json:"total"`
	Open                  int64   `json:"open"`
	Pending               int64   `json:"pending"`
	Closed                int64   `json:"closed"`
	Snoozed               int64   `json:"snoozed"`
	Unassigned            int64   `json:"unassigned"`
	AverageResponseTime   float64 `json:"averageResponseTime"`   // 秒
	AverageResolutionTime float64 `json:"averageResolutionTime"` // 秒
}

// AppendResult 定序结果
type AppendResult struct {
	Seq       uint64
	CreatedAt time.Time
}

type ConversationRepo interface {
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	GetConversation(ctx context.Context, convID uint64) (*model.Conversation, error)
	GetActiveByCustomerChannel(ctx context.Context, customerID uint64, channelType string) (*model.Conversation, error)

	AppendMessageMeta(ctx context.Context, convID uint64, content, msgType, direction string) (*AppendResult, error)
	MarkRead(ctx context.Context, convID uint64) error
	MarkUnread(ctx context.Context, convID uint64) error
	Assign(ctx context.Context, convID uint64, userID uint64) error
	UpdateTags(ctx context.Context, convID uint64, tags []string) error
	UpdatePriority(ctx context.Context, convID uint64, priority string) error
	SetStatus(ctx context.Context, convID uint64, from, to string, extra map[string]interface{}) (bool, error)

	ListByTeam(ctx context.Context, teamID uint64, filter *ConversationFilter) ([]*model.Conversation, error)
	ListByAssignee(ctx context.Context, teamID, userID uint64, limit, offset int) ([]*model.Conversation, error)
	ListUnread(ctx context.Context, teamID uint64, limit, offset int) ([]*model.Conversation, error)
	ListSnoozeExpired(ctx context.Context, now time.Time) ([]*model.Conversation, error)
	GetStats(ctx context.Context, teamID uint64) (*ConversationStats, error)
}

type conversationRepoImpl struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepoImpl{db: db}
}

func (s *conversationRepoImpl) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	return s.db.WithContext(ctx).Create(conv).Error
}

// GetConversation 根据会话 ID 获取会话，附带客户信息
func (s *conversationRepoImpl) GetConversation(ctx context.Context, convID uint64) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Preload("Customer").First(&conv, convID).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetActiveByCustomerChannel 查找客户在某渠道上未关闭的会话，用于入站消息落线
func (s *conversationRepoImpl) GetActiveByCustomerChannel(ctx context.Context, customerID uint64, channelType string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND channel_type = ? AND status <> ?", customerID, channelType, consts.ConversationStatusClosed).
		Order("last_message_at DESC").
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// AppendMessageMeta 核心定序逻辑：利用 MySQL 行锁确保 Seq 绝对递增，
// 同时在同一事务内完成计数与预览的对账，保证消息写入前后状态一致。
// createdAt 取 max(当前时间, 上一条消息时间+1ms)，同一会话内严格递增。
func (s *conversationRepoImpl) AppendMessageMeta(ctx context.Context, convID uint64, content, msgType, direction string) (*AppendResult, error) {
	var result AppendResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv model.Conversation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&conv, convID).Error; err != nil {
			return err
		}

		createdAt := time.Now()
		if !createdAt.After(conv.LastMessageAt) {
			createdAt = conv.LastMessageAt.Add(time.Millisecond)
		}
		result.Seq = conv.MaxMsgSeq + 1
		result.CreatedAt = createdAt

		updates := map[string]interface{}{
			"max_msg_seq":      result.Seq,
			"messages_count":   gorm.Expr("messages_count + 1"),
			"last_msg_content": truncatePreview(content),
			"last_msg_type":    msgType,
			"last_msg_dir":     direction,
			"last_message_at":  createdAt,
		}
		if direction == consts.DirectionIncoming {
			updates["unread_count"] = gorm.Expr("unread_count + 1")
		} else if conv.FirstReplyAt == nil {
			updates["first_reply_at"] = createdAt
		}
		return tx.Model(&model.Conversation{}).Where("id = ?", convID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// MarkRead 清零未读计数
func (s *conversationRepoImpl) MarkRead(ctx context.Context, convID uint64) error {
	return s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", convID).
		Update("unread_count", 0).Error
}

// MarkUnread 手动标记未读，至少保留一条未读计数
func (s *conversationRepoImpl) MarkUnread(ctx context.Context, convID uint64) error {
	return s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", convID).
		Update("unread_count", gorm.Expr("GREATEST(unread_count, 1)")).Error
}

func (s *conversationRepoImpl) Assign(ctx context.Context, convID uint64, userID uint64) error {
	return s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", convID).
		Update("assigned_user_id", userID).Error
}

func (s *conversationRepoImpl) UpdateTags(ctx context.Context, convID uint64, tags []string) error {
	return s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", convID).
		Update("tags", tags).Error
}

func (s *conversationRepoImpl) UpdatePriority(ctx context.Context, convID uint64, priority string) error {
	return s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", convID).
		Update("priority", priority).Error
}

// SetStatus 条件状态迁移，from 不匹配时返回 false，由调用方决定语义
func (s *conversationRepoImpl) SetStatus(ctx context.Context, convID uint64, from, to string, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ? AND status = ?", convID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListByTeam 按团队查询会话列表，搜索词匹配客户名称或最后一条消息内容
func (s *conversationRepoImpl) ListByTeam(ctx context.Context, teamID uint64, filter *ConversationFilter) ([]*model.Conversation, error) {
	query := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Preload("Customer").
		Where("conversations.team_id = ?", teamID)

	if filter != nil {
		if len(filter.Statuses) > 0 {
			query = query.Where("conversations.status IN ?", filter.Statuses)
		}
		if len(filter.ChannelTypes) > 0 {
			query = query.Where("conversations.channel_type IN ?", filter.ChannelTypes)
		}
		if filter.AssignedUserID != nil {
			query = query.Where("conversations.assigned_user_id = ?", *filter.AssignedUserID)
		}
		if filter.Unread {
			query = query.Where("conversations.unread_count > 0")
		}
		if filter.Search != "" {
			like := "%" + filter.Search + "%"
			query = query.Joins("JOIN customers ON customers.id = conversations.customer_id").
				Where("customers.name LIKE ? OR conversations.last_msg_content LIKE ?", like, like)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit).Offset(filter.Offset)
		}
	}

	var convs []*model.Conversation
	err := query.Order("conversations.last_message_at DESC").Find(&convs).Error
	return convs, err
}

func (s *conversationRepoImpl) ListByAssignee(ctx context.Context, teamID, userID uint64, limit, offset int) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	err := s.db.WithContext(ctx).Preload("Customer").
		Where("team_id = ? AND assigned_user_id = ?", teamID, userID).
		Order("last_message_at DESC").
		Limit(limit).Offset(offset).
		Find(&convs).Error
	return convs, err
}

func (s *conversationRepoImpl) ListUnread(ctx context.Context, teamID uint64, limit, offset int) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	err := s.db.WithContext(ctx).Preload("Customer").
		Where("team_id = ? AND unread_count > 0", teamID).
		Order("last_message_at DESC").
		Limit(limit).Offset(offset).
		Find(&convs).Error
	return convs, err
}

// ListSnoozeExpired 查询延后期限已到的会话，由定时任务扫描
func (s *conversationRepoImpl) ListSnoozeExpired(ctx context.Context, now time.Time) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	err := s.db.WithContext(ctx).
		Where("status = ? AND snoozed_until IS NOT NULL AND snoozed_until <= ?", consts.ConversationStatusSnoozed, now).
		Find(&convs).Error
	return convs, err
}

// GetStats 团队维度统计，单次分组查询出各状态计数
func (s *conversationRepoImpl) GetStats(ctx context.Context, teamID uint64) (*ConversationStats, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	err := s.db.WithContext(ctx).Model(&model.Conversation{}).
		Select("status, COUNT(*) AS count").
		Where("team_id = ?", teamID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &ConversationStats{}
	for _, r := range rows {
		stats.Total += r.Count
		switch r.Status {
		case consts.ConversationStatusOpen:
			stats.Open = r.Count
		case consts.ConversationStatusPending:
			stats.Pending = r.Count
		case consts.ConversationStatusClosed:
			stats.Closed = r.Count
		case consts.ConversationStatusSnoozed:
			stats.Snoozed = r.Count
		}
	}

	err = s.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("team_id = ? AND assigned_user_id = 0", teamID).
		Count(&stats.Unassigned).Error
	if err != nil {
		return nil, err
	}

	type avgRow struct {
		AvgResponse   *float64
		AvgResolution *float64
	}
	var avg avgRow
	err = s.db.WithContext(ctx).Model(&model.Conversation{}).
		Select("AVG(TIMESTAMPDIFF(SECOND, created_at, first_reply_at)) AS avg_response, "+
			"AVG(TIMESTAMPDIFF(SECOND, created_at, closed_at)) AS avg_resolution").
		Where("team_id = ?", teamID).
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	if avg.AvgResponse != nil {
		stats.AverageResponseTime = *avg.AvgResponse
	}
	if avg.AvgResolution != nil {
		stats.AverageResolutionTime = *avg.AvgResolution
	}
	return stats, nil
}

// truncatePreview 预览列为 varchar(255)，按字符截断避免写入超长
func truncatePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= 80 {
		return content
	}
	return string(runes[:80])
}
