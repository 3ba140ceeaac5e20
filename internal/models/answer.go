package models

import "time"

// Answer is a user's free-text reply to one question.
type Answer struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	QuestionID   int64     `json:"question_id"`
	Text         string    `json:"text"`
	QuestionText string    `json:"question_text,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
