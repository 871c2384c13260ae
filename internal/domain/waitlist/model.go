package waitlist

import (
	"time"

	"github.com/google/uuid"
)

const DefaultSource = "landing"

// Signup is one waitlist entry. Email is stored normalized.
type Signup struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Source    string    `json:"source"`
	UserAgent string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// JoinedEvent is published once per new signup.
type JoinedEvent struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Signup) event() JoinedEvent {
	return JoinedEvent{
		ID:        s.ID.String(),
		Email:     s.Email,
		Source:    s.Source,
		CreatedAt: s.CreatedAt,
	}
}
