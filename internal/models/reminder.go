package models

import "time"

// ReminderTime is a user-chosen time of day (HH:MM, server clock) at which
// daily questions are dispatched. Removed reminders are deactivated, not
// deleted, so re-adding the same time reactivates the existing row.
type ReminderTime struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Time      string    `json:"time"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserReminder pairs a user with one of their active reminder times,
// as returned by the scheduler scan.
type UserReminder struct {
	UserID     int64
	TelegramID int64
	Username   string
	Time       string
}
