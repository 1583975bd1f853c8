package mailbox

import "time"

// EmailRef identifies one candidate email returned by a search.
type EmailRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id,omitempty"`
}

// Email is one fetched message with its decoded plain-text body.
type Email struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	Subject string    `json:"subject"`
	Date    time.Time `json:"date"`
	Snippet string    `json:"snippet,omitempty"`
	Body    string    `json:"body"`
}
