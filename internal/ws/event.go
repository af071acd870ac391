package ws

import "time"

const (
	EventMessageCreated = "message.created"
	EventMessagesRead   = "messages.read"
)

// Event is what subscribers of a conversation receive. Data carries the new
// message row for message.created; read events carry the reader and count.
type Event struct {
	Type           string      `json:"type"`
	ConversationID uint64      `json:"conversationId"`
	Data           interface{} `json:"data,omitempty"`
}

// ReadReceipt is the payload of a messages.read event.
type ReadReceipt struct {
	ReaderUID string    `json:"readerUid"`
	ReadAt    time.Time `json:"readAt"`
	Updated   int64     `json:"updated"`
}
