package domain

import "time"

// Message is a persisted chat message as returned by storage.
type Message struct {
	ID        int64     `json:"id"`
	RoomID    RoomID    `json:"room"`
	UserID    UserID    `json:"userId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Moderation event actions recorded for the audit trail.
const (
	ActionFilteredMessage = "FILTERED_MESSAGE"
	ActionSendMessage     = "SEND_MESSAGE"
	ActionBannedConnect   = "BANNED_CONNECT"
)

// ModerationEvent is an auditable record of a moderation decision. For
// filtered messages Detail carries the original text so moderators can
// review what was blocked.
type ModerationEvent struct {
	Action string
	RoomID RoomID
	UserID UserID
	Detail string
	At     time.Time
}
