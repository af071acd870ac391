package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/bubasket/marketplace-backend/internal/model"
	"github.com/bubasket/marketplace-backend/internal/repository"
)

// Placeholders for rows whose collaborator lookups failed; a broken listing
// or profile degrades one row, never the whole inbox.
const (
	placeholderListingTitle = "Unknown Item"
	placeholderDisplayName  = "Anonymous User"
)

// ConversationSummary is one inbox row.
type ConversationSummary struct {
	ConversationID  uint64     `json:"conversationId"`
	ListingID       uint64     `json:"listingId"`
	BuyerUID        string     `json:"buyerUid"`
	SellerUID       string     `json:"sellerUid"`
	ListingTitle    string     `json:"listingTitle"`
	ListingPrice    uint       `json:"listingPrice"`
	ListingImageURL *string    `json:"listingImageUrl,omitempty"`
	OtherUserUID    string     `json:"otherUserUid"`
	OtherUserName   string     `json:"otherUserName"`
	LastMessage     string     `json:"lastMessage,omitempty"`
	LastMessageAt   *time.Time `json:"lastMessageAt,omitempty"`
	LastSenderUID   string     `json:"lastSenderUid,omitempty"`
	UnreadCount     int64      `json:"unreadCount"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type InboxService interface {
	// ListForUser composes the per-user inbox, newest activity first.
	ListForUser(ctx context.Context, uid string) ([]ConversationSummary, error)
}

type inboxService struct {
	convRepo    repository.ConversationRepository
	msgRepo     repository.MessageRepository
	listingRepo repository.ListingRepository
	profileRepo repository.ProfileRepository
	logger      *slog.Logger
}

func NewInboxService(convRepo repository.ConversationRepository, msgRepo repository.MessageRepository, listingRepo repository.ListingRepository, profileRepo repository.ProfileRepository, logger *slog.Logger) InboxService {
	return &inboxService{
		convRepo:    convRepo,
		msgRepo:     msgRepo,
		listingRepo: listingRepo,
		profileRepo: profileRepo,
		logger:      logger,
	}
}

func (s *inboxService) ListForUser(ctx context.Context, uid string) ([]ConversationSummary, error) {
	convs, err := s.convRepo.FindByUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return []ConversationSummary{}, nil
	}

	convIDs := make([]uint64, 0, len(convs))
	listingIDs := make([]uint64, 0, len(convs))
	otherUIDs := make([]string, 0, len(convs))
	seenListing := map[uint64]bool{}
	seenUID := map[string]bool{}
	for i := range convs {
		cv := &convs[i]
		convIDs = append(convIDs, cv.ID)
		if !seenListing[cv.ListingID] {
			seenListing[cv.ListingID] = true
			listingIDs = append(listingIDs, cv.ListingID)
		}
		if cv.BuyerUID == cv.SellerUID {
			s.logger.Warn("conversation has identical buyer and seller", "conversation_id", cv.ID, "uid", cv.BuyerUID)
		}
		other := cv.Counterpart(uid)
		if !seenUID[other] {
			seenUID[other] = true
			otherUIDs = append(otherUIDs, other)
		}
	}

	// One query per collaborator instead of one per row. Collaborator
	// failures degrade to placeholders; unread and last-message come from our
	// own store and stay fatal.
	listings, err := s.listingRepo.FindByIDs(ctx, listingIDs)
	if err != nil {
		s.logger.Warn("inbox listing lookup failed", "uid", uid, "error", err)
		listings = map[uint64]model.Listing{}
	}
	names, err := s.profileRepo.DisplayNames(ctx, otherUIDs, uid)
	if err != nil {
		s.logger.Warn("inbox profile lookup failed", "uid", uid, "error", err)
		names = map[string]string{}
	}
	lasts, err := s.msgRepo.LastByConversations(ctx, convIDs)
	if err != nil {
		return nil, err
	}
	unreads, err := s.msgRepo.UnreadByConversations(ctx, convIDs, uid)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, 0, len(convs))
	for i := range convs {
		cv := &convs[i]
		row := ConversationSummary{
			ConversationID: cv.ID,
			ListingID:      cv.ListingID,
			BuyerUID:       cv.BuyerUID,
			SellerUID:      cv.SellerUID,
			ListingTitle:   placeholderListingTitle,
			OtherUserUID:   cv.Counterpart(uid),
			OtherUserName:  placeholderDisplayName,
			UnreadCount:    unreads[cv.ID],
			UpdatedAt:      cv.UpdatedAt,
		}
		if l, ok := listings[cv.ListingID]; ok {
			row.ListingTitle = l.Title
			row.ListingPrice = l.Price
			row.ListingImageURL = l.ImageURL
		}
		if name, ok := names[row.OtherUserUID]; ok && name != "" {
			row.OtherUserName = name
		}
		if last, ok := lasts[cv.ID]; ok {
			row.LastMessage = last.Body
			at := last.CreatedAt
			row.LastMessageAt = &at
			row.LastSenderUID = last.SenderUID
		}
		out = append(out, row)
	}
	return out, nil
}
