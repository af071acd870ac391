package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bubasket/marketplace-backend/internal/model"
	"github.com/bubasket/marketplace-backend/internal/repository"
	"gorm.io/gorm"
)

// AccessGuard is the single enforcement point for conversation membership.
// Every read, write and subscription path resolves the conversation through
// it; no other code decides who may touch a conversation.
type AccessGuard interface {
	Authorize(ctx context.Context, convID uint64, uid string) (*model.Conversation, error)
}

type ConversationService interface {
	AccessGuard
	// Resolve returns the one conversation for (listing, buyer), creating it
	// on first contact. Idempotent, including under concurrent callers.
	Resolve(ctx context.Context, listingID uint64, buyerUID string) (*model.Conversation, error)
	// Delete removes the conversation and all its messages. Participant only.
	Delete(ctx context.Context, convID uint64, uid string) error
}

type conversationService struct {
	convRepo    repository.ConversationRepository
	listingRepo repository.ListingRepository
	logger      *slog.Logger
}

func NewConversationService(convRepo repository.ConversationRepository, listingRepo repository.ListingRepository, logger *slog.Logger) ConversationService {
	return &conversationService{convRepo: convRepo, listingRepo: listingRepo, logger: logger}
}

func (s *conversationService) Resolve(ctx context.Context, listingID uint64, buyerUID string) (*model.Conversation, error) {
	cv, err := s.resolve(ctx, listingID, buyerUID)
	if err != nil && transient(err) {
		// Resolve is idempotent, so one retry on a flaky store is safe.
		cv, err = s.resolve(ctx, listingID, buyerUID)
	}
	return cv, err
}

func (s *conversationService) resolve(ctx context.Context, listingID uint64, buyerUID string) (*model.Conversation, error) {
	listing, err := s.listingRepo.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if listing.SellerUID == buyerUID {
		return nil, ErrSelfConversation
	}

	cv, err := s.convRepo.FindByListingAndBuyer(ctx, listingID, buyerUID)
	if err == nil {
		return cv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cv = &model.Conversation{
		ListingID: listingID,
		SellerUID: listing.SellerUID,
		BuyerUID:  buyerUID,
	}
	if err := s.convRepo.Create(ctx, cv); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the creation race to a concurrent caller (e.g. a second
			// browser tab). The winner's row is the conversation.
			return s.convRepo.FindByListingAndBuyer(ctx, listingID, buyerUID)
		}
		return nil, err
	}
	s.logger.Info("conversation created",
		"conversation_id", cv.ID,
		"listing_id", listingID,
		"seller_uid", listing.SellerUID,
		"buyer_uid", buyerUID)
	return cv, nil
}

func (s *conversationService) Authorize(ctx context.Context, convID uint64, uid string) (*model.Conversation, error) {
	cv, err := s.convRepo.FindByID(ctx, convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !cv.Participant(uid) {
		return nil, ErrForbidden
	}
	return cv, nil
}

func (s *conversationService) Delete(ctx context.Context, convID uint64, uid string) error {
	cv, err := s.Authorize(ctx, convID, uid)
	if err != nil {
		return err
	}
	if err := s.convRepo.DeleteCascade(ctx, cv.ID); err != nil {
		return err
	}
	s.logger.Info("conversation deleted", "conversation_id", cv.ID, "by", uid)
	return nil
}
