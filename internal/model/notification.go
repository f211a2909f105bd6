package model

import "time"

// Notification is one entry of the operator inbox: a profile awaiting review.
type Notification struct {
	ID        uint64    `json:"id"`
	ProfileID uint64    `json:"profile_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationEntry is a Notification joined with enough of the profile to
// triage it.
type NotificationEntry struct {
	Notification
	Email     string  `json:"email"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}
