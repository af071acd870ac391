package service

import (
	"context"
	"log/slog"

	"github.com/bubasket/marketplace-backend/internal/repository"
)

type UnreadService interface {
	// CountForUser sums unread messages across every conversation the user
	// participates in. Zero conversations is zero, not an error.
	CountForUser(ctx context.Context, uid string) (int64, error)
	// CountForConversation is the same predicate scoped to one conversation.
	CountForConversation(ctx context.Context, convID uint64, uid string) (int64, error)
}

type unreadService struct {
	msgRepo repository.MessageRepository
	guard   AccessGuard
	logger  *slog.Logger
}

func NewUnreadService(msgRepo repository.MessageRepository, guard AccessGuard, logger *slog.Logger) UnreadService {
	return &unreadService{msgRepo: msgRepo, guard: guard, logger: logger}
}

func (s *unreadService) CountForUser(ctx context.Context, uid string) (int64, error) {
	if uid == "" {
		return 0, nil
	}
	// A conversation matches the participant predicate once even if a corrupt
	// row lists the user on both sides, so no double counting here.
	return s.msgRepo.CountUnreadForUser(ctx, uid)
}

func (s *unreadService) CountForConversation(ctx context.Context, convID uint64, uid string) (int64, error) {
	cv, err := s.guard.Authorize(ctx, convID, uid)
	if err != nil {
		return 0, err
	}
	if cv.BuyerUID == cv.SellerUID {
		// Creation forbids this; tolerate the row but flag it.
		s.logger.Warn("conversation has identical buyer and seller", "conversation_id", cv.ID, "uid", cv.BuyerUID)
	}
	return s.msgRepo.CountUnreadForConversation(ctx, convID, uid)
}
