package models

import "time"

// Source tags who authored a question.
type Source string

const (
	SourceUser  Source = "user"
	SourceAgent Source = "agent"
)

type Question struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	Source    Source    `json:"source"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
