package models

import "time"

// Context holds the personal profile used to personalize AI questions.
// At most one row per user, upserted as a whole.
type Context struct {
	UserID    int64     `json:"user_id"`
	AboutMe   string    `json:"about_me"`
	Goals     string    `json:"goals"`
	Areas     string    `json:"areas"`
	UpdatedAt time.Time `json:"updated_at"`
}
