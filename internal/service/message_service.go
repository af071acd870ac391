package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bubasket/marketplace-backend/internal/model"
	"github.com/bubasket/marketplace-backend/internal/repository"
	"github.com/bubasket/marketplace-backend/internal/ws"
)

// Publisher mirrors new store commits to connected subscribers. Delivery is
// best-effort; the hub satisfies this.
type Publisher interface {
	Publish(conversationID uint64, ev ws.Event)
}

// MessagePolicy bounds what a single message may carry.
type MessagePolicy struct {
	MaxLength       int
	DefaultPageSize int
	MaxPageSize     int
}

func (p MessagePolicy) withDefaults() MessagePolicy {
	if p.MaxLength <= 0 {
		p.MaxLength = 2000
	}
	if p.DefaultPageSize <= 0 {
		p.DefaultPageSize = 50
	}
	if p.MaxPageSize <= 0 {
		p.MaxPageSize = 200
	}
	return p
}

type MessageService interface {
	Send(ctx context.Context, convID uint64, senderUID, body string) (*model.Message, error)
	List(ctx context.Context, convID uint64, uid string, limit, offset int) ([]model.Message, error)
	// MarkRead stamps read_at on all unread messages from the other
	// participant. Idempotent; returns the number of messages updated.
	MarkRead(ctx context.Context, convID uint64, readerUID string) (int64, error)
}

type messageService struct {
	msgRepo   repository.MessageRepository
	convRepo  repository.ConversationRepository
	guard     AccessGuard
	publisher Publisher
	policy    MessagePolicy
	logger    *slog.Logger
}

func NewMessageService(msgRepo repository.MessageRepository, convRepo repository.ConversationRepository, guard AccessGuard, publisher Publisher, policy MessagePolicy, logger *slog.Logger) MessageService {
	return &messageService{
		msgRepo:   msgRepo,
		convRepo:  convRepo,
		guard:     guard,
		publisher: publisher,
		policy:    policy.withDefaults(),
		logger:    logger,
	}
}

func (s *messageService) Send(ctx context.Context, convID uint64, senderUID, body string) (*model.Message, error) {
	if _, err := s.guard.Authorize(ctx, convID, senderUID); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(body) > s.policy.MaxLength {
		return nil, ErrContentTooLong
	}

	msg := &model.Message{
		ConversationID: convID,
		SenderUID:      senderUID,
		Body:           body,
	}
	// Not retried: a duplicate send is worse than asking the user to resubmit.
	if err := s.msgRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	at := msg.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	// updated_at only drives inbox sorting; a failed bump must not fail a
	// message that is already committed.
	if err := s.convRepo.Touch(ctx, convID, at); err != nil {
		s.logger.Warn("failed to bump conversation updated_at", "conversation_id", convID, "error", err)
	}

	s.publisher.Publish(convID, ws.Event{
		Type:           ws.EventMessageCreated,
		ConversationID: convID,
		Data:           msg,
	})
	return msg, nil
}

func (s *messageService) List(ctx context.Context, convID uint64, uid string, limit, offset int) ([]model.Message, error) {
	if _, err := s.guard.Authorize(ctx, convID, uid); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.policy.DefaultPageSize
	}
	if limit > s.policy.MaxPageSize {
		limit = s.policy.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.msgRepo.ListPage(ctx, convID, limit, offset)
}

func (s *messageService) MarkRead(ctx context.Context, convID uint64, readerUID string) (int64, error) {
	n, err := s.markRead(ctx, convID, readerUID)
	if err != nil && transient(err) {
		// Idempotent batch update; the retry re-stamps nothing already stamped.
		n, err = s.markRead(ctx, convID, readerUID)
	}
	return n, err
}

func (s *messageService) markRead(ctx context.Context, convID uint64, readerUID string) (int64, error) {
	if _, err := s.guard.Authorize(ctx, convID, readerUID); err != nil {
		return 0, err
	}
	now := time.Now()
	n, err := s.msgRepo.MarkRead(ctx, convID, readerUID, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publisher.Publish(convID, ws.Event{
			Type:           ws.EventMessagesRead,
			ConversationID: convID,
			Data: ws.ReadReceipt{
				ReaderUID: readerUID,
				ReadAt:    now,
				Updated:   n,
			},
		})
	}
	return n, nil
}
