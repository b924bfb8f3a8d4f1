package redis

import "time"

// ChatMessage represents a message in the room chat. A non-empty To makes it
// a whisper.
type ChatMessage struct {
	Room      string    `json:"room"`
	Message   string    `json:"message"`
	From      string    `json:"from"`
	FromName  string    `json:"from_name"`
	To        string    `json:"to,omitempty"`
	Round     int       `json:"round"`
	Timestamp time.Time `json:"timestamp"`
}
