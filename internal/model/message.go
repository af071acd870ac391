package model

import "time"

// Message is an append-only row. Body is immutable after creation; ReadAt is
// the only mutable column and transitions null -> timestamp exactly once.
type Message struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64     `gorm:"column:conversation_id;index:idx_conv_created" json:"conversationId"`
	SenderUID      string     `gorm:"column:sender_uid;size:128;index" json:"senderUid"`
	Body           string     `gorm:"type:text;not null" json:"body"`
	ReadAt         *time.Time `gorm:"column:read_at" json:"readAt,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index:idx_conv_created" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}

// UnreadBy reports whether the message counts as unread for viewer: sent by
// the other participant and not yet marked read.
func (m *Message) UnreadBy(viewerUID string) bool {
	return m.ReadAt == nil && m.SenderUID != viewerUID
}
