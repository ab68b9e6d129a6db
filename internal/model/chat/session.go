package chat

import "time"

// Session scopes a multi-turn conversation's server-side context.
type Session struct {
	ID         string    `json:"id"`
	Persistent bool      `json:"persistent"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
}
