package notification

import (
	"time"

	"github.com/google/uuid"
)

// Notification types.
const (
	TypeSOS          = "sos"
	TypePrescription = "prescription"
	TypeInfo         = "info"
)

// Notification maps to the notifications table. A nil UserID addresses every
// user of a role and is only visible through the REST inbox of that role.
type Notification struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	Title     string     `db:"title" json:"title"`
	Message   string     `db:"message" json:"message"`
	Type      string     `db:"type" json:"type"`
	IsRead    bool       `db:"is_read" json:"is_read"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Inbox is one page of a user's notifications.
type Inbox struct {
	Notifications []*Notification `json:"notifications"`
	UnreadCount   int             `json:"unreadCount"`
	Total         int             `json:"total"`
}
