// Package queue carries outbound mail over RabbitMQ so request handlers do
// not wait on SMTP.
package queue

import "time"

// MailRequested is published for every verification or reset mail.
type MailRequested struct {
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Kind        string    `json:"kind"` // verification | reset
	ProfileID   uint64    `json:"profile_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}
