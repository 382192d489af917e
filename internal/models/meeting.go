package models

import (
	"time"

	"github.com/google/uuid"
)

// Meeting maps a vendor meeting id to its host user and block context.
// The vendor meeting id is the stable identity: it never changes once created.
type Meeting struct {
	MeetingID         string    `json:"meeting_id"`
	UserID            uuid.UUID `json:"user_id"`
	Title             string    `json:"title"`
	CourseID          string    `json:"course_id"`
	BlockID           string    `json:"block_id"`
	RestrictedAccess  bool      `json:"restricted_access"`
	EmailNotification bool      `json:"email_notification"`
	BroadcastEnabled  bool      `json:"broadcast_enabled"`
	BroadcastID       string    `json:"broadcast_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Registrant is a per-student personalized join link for a restricted meeting.
type Registrant struct {
	MeetingID string    `json:"meeting_id"`
	Email     string    `json:"email"`
	JoinURL   string    `json:"join_url"`
	CreatedAt time.Time `json:"created_at"`
}

// EmailLog records one delivered (or failed) meeting-start notification.
type EmailLog struct {
	ID        int64     `json:"id"`
	MeetingID string    `json:"meeting_id"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}
