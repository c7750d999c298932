package domain

import "time"

// Notification is a message queued for a caller about the outcome of a
// verification or bulk job.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
