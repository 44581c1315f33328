package mongo

import (
	"Converge/internal/pkg/consts"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MessageRepo interface {
	SaveMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	GetByConversation(ctx context.Context, convID uint64, limit, offset int) ([]*Message, error)
	UpdateStatusIf(ctx context.Context, id string, to string, allowedFrom []string, set bson.M) (bool, error)
	MarkConversationRead(ctx context.Context, convID uint64, uptoSeq uint64, readAt time.Time) (int64, error)
	SetDeleted(ctx context.Context, id string) error
}

type messageRepoImpl struct {
	col *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) MessageRepo {
	return &messageRepoImpl{
		col: db.Collection("message"),
	}
}

// SaveMessage 将消息存入 MongoDB
func (s *messageRepoImpl) SaveMessage(ctx context.Context, msg *Message) error {
	_, err := s.col.InsertOne(ctx, msg)
	return err
}

// GetMessage 按消息 ID 精确查询
func (s *messageRepoImpl) GetMessage(ctx context.Context, id string) (*Message, error) {
	var msg Message
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetByConversation 分页查询会话消息，按 seq 升序，墓碑消息不返回。
// 新消息只会追加更大的 seq，已返回页在并发写入下保持稳定。
func (s *messageRepoImpl) GetByConversation(ctx context.Context, convID uint64, limit, offset int) ([]*Message, error) {
	filter := bson.M{
		"conversation_id": convID,
		"is_deleted":      bson.M{"$ne": true},
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "seq", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := s.col.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var messages []*Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// UpdateStatusIf 条件状态更新：仅当当前状态在 allowedFrom 内才迁移到 to。
// 返回 false 表示未命中（状态已前进或消息不存在），由调用方判定语义。
// 并发回执场景下靠该过滤条件保证状态单调，不依赖读取后写入。
func (s *messageRepoImpl) UpdateStatusIf(ctx context.Context, id string, to string, allowedFrom []string, set bson.M) (bool, error) {
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": allowedFrom},
	}
	update := bson.M{"status": to}
	for k, v := range set {
		update[k] = v
	}
	res, err := s.col.UpdateOne(ctx, filter, bson.M{"$set": update})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// MarkConversationRead 批量已读：将会话内 seq 不大于 uptoSeq 的未读入站消息置为已读
func (s *messageRepoImpl) MarkConversationRead(ctx context.Context, convID uint64, uptoSeq uint64, readAt time.Time) (int64, error) {
	filter := bson.M{
		"conversation_id": convID,
		"direction":       consts.DirectionIncoming,
		"status":          bson.M{"$ne": consts.MessageStatusRead},
	}
	if uptoSeq > 0 {
		filter["seq"] = bson.M{"$lte": uptoSeq}
	}
	res, err := s.col.UpdateMany(ctx, filter, bson.M{"$set": bson.M{
		"status":  consts.MessageStatusRead,
		"read_at": readAt,
	}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// SetDeleted 软删除，仅打墓碑标记，消息仍占用 seq
func (s *messageRepoImpl) SetDeleted(ctx context.Context, id string) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"is_deleted": true}})
	return err
}
