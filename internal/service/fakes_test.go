package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bubasket/marketplace-backend/internal/model"
	"github.com/bubasket/marketplace-backend/internal/ws"
	"gorm.io/gorm"
)

// In-memory stand-ins for the gorm repositories. They mimic the store
// contracts the services rely on: unique (listing_id, buyer_uid), ascending
// (created_at, id) message order, and null -> timestamp read_at transitions.

type memStore struct {
	mu       sync.Mutex
	convs    map[uint64]*model.Conversation
	msgs     []*model.Message
	listings map[uint64]*model.Listing
	names    map[string]string
	nextConv uint64
	nextMsg  uint64
	now      time.Time
}

func newMemStore() *memStore {
	return &memStore{
		convs:    map[uint64]*model.Conversation{},
		listings: map[uint64]*model.Listing{},
		names:    map[string]string{},
		now:      time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) tick() time.Time {
	s.now = s.now.Add(time.Second)
	return s.now
}

func (s *memStore) addListing(id uint64, sellerUID, title string, price uint) {
	s.listings[id] = &model.Listing{ID: id, SellerUID: sellerUID, Title: title, Price: price}
}

type memConvRepo struct {
	s *memStore
	// beforeCreate runs inside Create before the uniqueness check; tests use
	// it to lose the creation race deliberately.
	beforeCreate func()
	// failNext, when set, is returned by the next call and then cleared.
	failNext error
}

func (r *memConvRepo) takeErr() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *memConvRepo) Create(ctx context.Context, cv *model.Conversation) error {
	if err := r.takeErr(); err != nil {
		return err
	}
	if r.beforeCreate != nil {
		hook := r.beforeCreate
		r.beforeCreate = nil
		hook()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.convs {
		if existing.ListingID == cv.ListingID && existing.BuyerUID == cv.BuyerUID {
			return gorm.ErrDuplicatedKey
		}
	}
	r.s.nextConv++
	cv.ID = r.s.nextConv
	cv.CreatedAt = r.s.tick()
	cv.UpdatedAt = cv.CreatedAt
	cp := *cv
	r.s.convs[cv.ID] = &cp
	return nil
}

func (r *memConvRepo) FindByListingAndBuyer(ctx context.Context, listingID uint64, buyerUID string) (*model.Conversation, error) {
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cv := range r.s.convs {
		if cv.ListingID == listingID && cv.BuyerUID == buyerUID {
			cp := *cv
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memConvRepo) FindByID(ctx context.Context, id uint64) (*model.Conversation, error) {
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cv, ok := r.s.convs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *cv
	return &cp, nil
}

func (r *memConvRepo) FindByUser(ctx context.Context, uid string) ([]model.Conversation, error) {
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Conversation
	for _, cv := range r.s.convs {
		if cv.BuyerUID == uid || cv.SellerUID == uid {
			out = append(out, *cv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *memConvRepo) Touch(ctx context.Context, id uint64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if cv, ok := r.s.convs[id]; ok && cv.UpdatedAt.Before(at) {
		cv.UpdatedAt = at
	}
	return nil
}

func (r *memConvRepo) DeleteCascade(ctx context.Context, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.convs, id)
	kept := r.s.msgs[:0]
	for _, m := range r.s.msgs {
		if m.ConversationID != id {
			kept = append(kept, m)
		}
	}
	r.s.msgs = kept
	return nil
}

func (r *memConvRepo) SetDB(db *gorm.DB) {}

type memMsgRepo struct {
	s        *memStore
	failNext error
}

func (r *memMsgRepo) takeErr() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *memMsgRepo) Create(ctx context.Context, msg *model.Message) error {
	if err := r.takeErr(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextMsg++
	msg.ID = r.s.nextMsg
	msg.CreatedAt = r.s.tick()
	cp := *msg
	r.s.msgs = append(r.s.msgs, &cp)
	return nil
}

func (r *memMsgRepo) ListPage(ctx context.Context, convID uint64, limit, offset int) ([]model.Message, error) {
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []model.Message
	for _, m := range r.s.msgs {
		if m.ConversationID == convID {
			all = append(all, *m)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return []model.Message{}, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *memMsgRepo) MarkRead(ctx context.Context, convID uint64, readerUID string, at time.Time) (int64, error) {
	if err := r.takeErr(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, m := range r.s.msgs {
		if m.ConversationID == convID && m.SenderUID != readerUID && m.ReadAt == nil {
			t := at
			m.ReadAt = &t
			n++
		}
	}
	return n, nil
}

func (r *memMsgRepo) CountUnreadForUser(ctx context.Context, uid string) (int64, error) {
	if err := r.takeErr(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, m := range r.s.msgs {
		cv, ok := r.s.convs[m.ConversationID]
		if !ok || !cv.Participant(uid) {
			continue
		}
		if m.SenderUID != uid && m.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

func (r *memMsgRepo) CountUnreadForConversation(ctx context.Context, convID uint64, uid string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, m := range r.s.msgs {
		if m.ConversationID == convID && m.SenderUID != uid && m.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

func (r *memMsgRepo) LastByConversations(ctx context.Context, convIDs []uint64) (map[uint64]model.Message, error) {
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := map[uint64]bool{}
	for _, id := range convIDs {
		want[id] = true
	}
	out := map[uint64]model.Message{}
	for _, m := range r.s.msgs {
		if !want[m.ConversationID] {
			continue
		}
		if last, ok := out[m.ConversationID]; !ok || m.ID > last.ID {
			out[m.ConversationID] = *m
		}
	}
	return out, nil
}

func (r *memMsgRepo) UnreadByConversations(ctx context.Context, convIDs []uint64, uid string) (map[uint64]int64, error) {
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	out := map[uint64]int64{}
	for _, id := range convIDs {
		n, _ := r.CountUnreadForConversation(ctx, id, uid)
		if n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

func (r *memMsgRepo) SetDB(db *gorm.DB) {}

type memListingRepo struct {
	s        *memStore
	failNext error
}

func (r *memListingRepo) takeErr() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *memListingRepo) FindByID(ctx context.Context, id uint64) (*model.Listing, error) {
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.listings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *memListingRepo) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Listing, error) {
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[uint64]model.Listing{}
	for _, id := range ids {
		if l, ok := r.s.listings[id]; ok {
			out[id] = *l
		}
	}
	return out, nil
}

func (r *memListingRepo) SetDB(db *gorm.DB) {}

type memProfileRepo struct {
	s        *memStore
	failNext error
}

func (r *memProfileRepo) takeErr() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *memProfileRepo) DisplayName(ctx context.Context, uid, requestingUID string) (string, error) {
	if err := r.takeErr(); err != nil {
		return "", err
	}
	return r.s.names[uid], nil
}

func (r *memProfileRepo) DisplayNames(ctx context.Context, uids []string, requestingUID string) (map[string]string, error) {
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, uid := range uids {
		if name, ok := r.s.names[uid]; ok {
			out[uid] = name
		}
	}
	return out, nil
}

func (r *memProfileRepo) SetDB(db *gorm.DB) {}

func modelConv(listingID uint64, sellerUID, buyerUID string) *model.Conversation {
	return &model.Conversation{ListingID: listingID, SellerUID: sellerUID, BuyerUID: buyerUID}
}

// recordingPublisher captures fan-out events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []ws.Event
}

func (p *recordingPublisher) Publish(conversationID uint64, ev ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) byType(typ string) []ws.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ws.Event
	for _, ev := range p.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
