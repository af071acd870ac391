package repository

import (
	"context"
	"time"

	"github.com/bubasket/marketplace-backend/internal/model"
	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	// ListPage returns messages ascending by (created_at, id) so clients render
	// oldest-first. Callers page with limit/offset.
	ListPage(ctx context.Context, convID uint64, limit, offset int) ([]model.Message, error)
	// MarkRead stamps read_at on every unread message in the conversation that
	// was sent by the other participant. Returns the number of rows updated.
	MarkRead(ctx context.Context, convID uint64, readerUID string, at time.Time) (int64, error)
	CountUnreadForUser(ctx context.Context, uid string) (int64, error)
	CountUnreadForConversation(ctx context.Context, convID uint64, uid string) (int64, error)
	LastByConversations(ctx context.Context, convIDs []uint64) (map[uint64]model.Message, error)
	UnreadByConversations(ctx context.Context, convIDs []uint64, uid string) (map[uint64]int64, error)
	SetDB(db *gorm.DB)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) ListPage(ctx context.Context, convID uint64, limit, offset int) ([]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, convID uint64, readerUID string, at time.Time) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("conversation_id = ? AND sender_uid <> ? AND read_at IS NULL", convID, readerUID).
		Update("read_at", at)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *messageRepository) CountUnreadForUser(ctx context.Context, uid string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.buyer_uid = ? OR conversations.seller_uid = ?", uid, uid).
		Where("messages.sender_uid <> ? AND messages.read_at IS NULL", uid).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

func (r *messageRepository) CountUnreadForConversation(ctx context.Context, convID uint64, uid string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("conversation_id = ? AND sender_uid <> ? AND read_at IS NULL", convID, uid).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

// LastByConversations fetches the newest message per conversation in one
// query. Message ids increase with created_at, so MAX(id) is the last row.
func (r *messageRepository) LastByConversations(ctx context.Context, convIDs []uint64) (map[uint64]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	out := make(map[uint64]model.Message, len(convIDs))
	if len(convIDs) == 0 {
		return out, nil
	}
	sub := r.db.Model(&model.Message{}).
		Select("MAX(id)").
		Where("conversation_id IN ?", convIDs).
		Group("conversation_id")
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Where("id IN (?)", sub).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	for _, m := range msgs {
		out[m.ConversationID] = m
	}
	return out, nil
}

func (r *messageRepository) UnreadByConversations(ctx context.Context, convIDs []uint64, uid string) (map[uint64]int64, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	out := make(map[uint64]int64, len(convIDs))
	if len(convIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ConversationID uint64
		Cnt            int64
	}
	if err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Select("conversation_id, COUNT(*) AS cnt").
		Where("conversation_id IN ? AND sender_uid <> ? AND read_at IS NULL", convIDs, uid).
		Group("conversation_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ConversationID] = row.Cnt
	}
	return out, nil
}
