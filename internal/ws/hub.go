package ws

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const sendBuffer = 64

// Subscriber is one live subscription to a single conversation. Events arrive
// on C until Close is called, after which C is closed.
type Subscriber struct {
	ID             uuid.UUID
	ConversationID uint64
	UserUID        string
	C              chan Event

	hub  *Hub
	once sync.Once
}

// Close unregisters the subscriber and closes C. Safe to call more than once;
// a leaked Close from a dying connection must never panic a second caller.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub fans out store commits to the subscribers of each conversation. It is
// delivery only: it never reads or writes the stores.
type Hub struct {
	mu     sync.Mutex
	rooms  map[uint64]map[*Subscriber]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[uint64]map[*Subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers a new subscriber for the conversation. Authorization is
// the caller's job; the hub assumes it has already happened.
func (h *Hub) Subscribe(conversationID uint64, userUID string) *Subscriber {
	s := &Subscriber{
		ID:             uuid.New(),
		ConversationID: conversationID,
		UserUID:        userUID,
		C:              make(chan Event, sendBuffer),
		hub:            h,
	}

	h.mu.Lock()
	if h.rooms[conversationID] == nil {
		h.rooms[conversationID] = map[*Subscriber]struct{}{}
	}
	h.rooms[conversationID][s] = struct{}{}
	h.mu.Unlock()

	return s
}

// Publish delivers ev to every current subscriber of the conversation.
// Best-effort: a subscriber whose buffer is full is skipped; it reconciles by
// re-listing messages on reconnect.
func (h *Hub) Publish(conversationID uint64, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.rooms[conversationID] {
		select {
		case s.C <- ev:
		default:
			if h.logger != nil {
				h.logger.Warn("dropping event for slow subscriber",
					"subscriber", s.ID.String(),
					"conversation_id", conversationID,
					"type", ev.Type)
			}
		}
	}
}

// SubscriberCount reports how many live subscribers a conversation has.
func (h *Hub) SubscriberCount(conversationID uint64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[conversationID])
}

func (h *Hub) remove(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.rooms[s.ConversationID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.rooms, s.ConversationID)
		}
	}
	// Closed under the hub lock, so Publish can never race a send on a
	// closed channel.
	close(s.C)
}
