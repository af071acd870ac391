package repository

import (
	"context"
	"time"

	"github.com/bubasket/marketplace-backend/internal/model"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	// Create inserts a new conversation. A concurrent insert for the same
	// (listing, buyer) pair surfaces as gorm.ErrDuplicatedKey.
	Create(ctx context.Context, cv *model.Conversation) error
	FindByListingAndBuyer(ctx context.Context, listingID uint64, buyerUID string) (*model.Conversation, error)
	FindByID(ctx context.Context, id uint64) (*model.Conversation, error)
	FindByUser(ctx context.Context, uid string) ([]model.Conversation, error)
	Touch(ctx context.Context, id uint64, at time.Time) error
	DeleteCascade(ctx context.Context, id uint64) error
	SetDB(db *gorm.DB)
}

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *conversationRepository) Create(ctx context.Context, cv *model.Conversation) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(cv).Error
}

func (r *conversationRepository) FindByListingAndBuyer(ctx context.Context, listingID uint64, buyerUID string) (*model.Conversation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var cv model.Conversation
	if err := r.db.WithContext(ctx).
		Where("listing_id = ? AND buyer_uid = ?", listingID, buyerUID).
		First(&cv).Error; err != nil {
		return nil, err
	}
	return &cv, nil
}

func (r *conversationRepository) FindByID(ctx context.Context, id uint64) (*model.Conversation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var cv model.Conversation
	if err := r.db.WithContext(ctx).First(&cv, id).Error; err != nil {
		return nil, err
	}
	return &cv, nil
}

func (r *conversationRepository) FindByUser(ctx context.Context, uid string) ([]model.Conversation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Conversation
	if err := r.db.WithContext(ctx).
		Where("seller_uid = ? OR buyer_uid = ?", uid, uid).
		Order("updated_at DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Touch bumps updated_at for inbox ordering. Never moves the timestamp
// backwards so concurrent sends keep it monotonic.
func (r *conversationRepository) Touch(ctx context.Context, id uint64, at time.Time) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ? AND updated_at < ?", id, at).
		Update("updated_at", at).Error
}

// DeleteCascade removes the conversation and all of its messages in one
// transaction. Irreversible.
func (r *conversationRepository) DeleteCascade(ctx context.Context, id uint64) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Conversation{}, id).Error
	})
}
