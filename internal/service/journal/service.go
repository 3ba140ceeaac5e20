package journal

import (
	"database/sql"
	"errors"
	"strings"
)

// Caps enforced on user-managed records.
const (
	MaxActiveReminders     = 3
	MaxActiveUserQuestions = 3
)

var (
	// ErrNotFound reports a missing user, question, or reminder.
	ErrNotFound = errors.New("record not found")
	// ErrNotOwner reports an operation on a record the user does not own.
	ErrNotOwner = errors.New("record belongs to another user")
	// ErrReminderLimit reports the active-reminder cap being hit.
	ErrReminderLimit = errors.New("active reminder limit reached")
	// ErrQuestionLimit reports the user-authored question cap being hit.
	ErrQuestionLimit = errors.New("active question limit reached")
)

// Service persists users, reminder times, questions, answers, and contexts.
// Upsert statements differ per driver, so the service keeps the driver name
// it was opened with.
type Service struct {
	db    *sql.DB
	mysql bool
}

// NewService builds a journal service over the given driver's connection.
func NewService(db *sql.DB, driver string) *Service {
	return &Service{db: db, mysql: strings.ToLower(driver) == "mysql"}
}

// userUpsertSQL inserts a user or refreshes the username of an existing one.
func (s *Service) userUpsertSQL() string {
	if s.mysql {
		return `INSERT INTO users (telegram_id, username, created_at) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE username = VALUES(username)`
	}
	return `INSERT INTO users (telegram_id, username, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(telegram_id) DO UPDATE SET username = excluded.username`
}

// reminderUpsertSQL inserts a reminder time or reactivates a removed one.
func (s *Service) reminderUpsertSQL() string {
	if s.mysql {
		return `INSERT INTO reminder_times (user_id, time, active, created_at) VALUES (?, ?, 1, ?)
		 ON DUPLICATE KEY UPDATE active = 1`
	}
	return `INSERT INTO reminder_times (user_id, time, active, created_at) VALUES (?, ?, 1, ?)
		 ON CONFLICT(user_id, time) DO UPDATE SET active = 1`
}

// contextUpsertSQL inserts or replaces the user's personal context.
func (s *Service) contextUpsertSQL() string {
	if s.mysql {
		return `INSERT INTO contexts (user_id, about_me, goals, areas, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
			about_me = VALUES(about_me),
			goals = VALUES(goals),
			areas = VALUES(areas),
			updated_at = VALUES(updated_at)`
	}
	return `INSERT INTO contexts (user_id, about_me, goals, areas, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			about_me = excluded.about_me,
			goals = excluded.goals,
			areas = excluded.areas,
			updated_at = excluded.updated_at`
}
