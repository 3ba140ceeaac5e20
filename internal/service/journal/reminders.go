package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"kaizenbot/internal/models"
)

// timePattern accepts zero-padded 24-hour HH:MM values only.
var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidTime reports whether value is a well-formed HH:MM time of day.
func ValidTime(value string) bool {
	return timePattern.MatchString(value)
}

// AddReminder creates a reminder at the given time of day, or reactivates a
// previously removed one at the same time. The active cap is checked first;
// reactivating counts against it like a fresh row.
func (s *Service) AddReminder(ctx context.Context, userID int64, timeOfDay string) (*models.ReminderTime, error) {
	if userID <= 0 {
		return nil, errors.New("invalid user id")
	}
	if !ValidTime(timeOfDay) {
		return nil, fmt.Errorf("invalid time of day %q", timeOfDay)
	}

	count, err := s.ActiveReminderCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	// A reactivation of an already-active row never raises the count, so the
	// cap only blocks genuinely new (or reactivating) times.
	var activeAtTime bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM reminder_times WHERE user_id = ? AND time = ? AND active = 1)`,
		userID, timeOfDay,
	).Scan(&activeAtTime); err != nil {
		return nil, fmt.Errorf("check reminder: %w", err)
	}
	if !activeAtTime && count >= MaxActiveReminders {
		return nil, ErrReminderLimit
	}

	_, err = s.db.ExecContext(ctx, s.reminderUpsertSQL(), userID, timeOfDay, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("add reminder: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, time, active, created_at FROM reminder_times WHERE user_id = ? AND time = ?`,
		userID, timeOfDay,
	)
	return scanReminder(row)
}

// ActiveReminders returns the user's active reminders ordered by time.
func (s *Service) ActiveReminders(ctx context.Context, userID int64) ([]*models.ReminderTime, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, time, active, created_at FROM reminder_times
		 WHERE user_id = ? AND active = 1 ORDER BY time ASC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*models.ReminderTime
	for rows.Next() {
		var r models.ReminderTime
		if err := rows.Scan(&r.ID, &r.UserID, &r.Time, &r.Active, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, &r)
	}
	return reminders, rows.Err()
}

// ActiveReminderCount counts the user's active reminders.
func (s *Service) ActiveReminderCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reminder_times WHERE user_id = ? AND active = 1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count reminders: %w", err)
	}
	return count, nil
}

// ReminderByID fetches one reminder row regardless of active flag.
func (s *Service) ReminderByID(ctx context.Context, id int64) (*models.ReminderTime, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, time, active, created_at FROM reminder_times WHERE id = ?`, id,
	)
	return scanReminder(row)
}

// DeactivateReminder soft-deletes one reminder after verifying ownership.
func (s *Service) DeactivateReminder(ctx context.Context, userID, reminderID int64) error {
	reminder, err := s.ReminderByID(ctx, reminderID)
	if err != nil {
		return err
	}
	if reminder.UserID != userID {
		return ErrNotOwner
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE reminder_times SET active = 0 WHERE id = ?`, reminderID,
	); err != nil {
		return fmt.Errorf("deactivate reminder: %w", err)
	}
	return nil
}

// DeactivateAllReminders soft-deletes every active reminder of the user.
func (s *Service) DeactivateAllReminders(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE reminder_times SET active = 0 WHERE user_id = ? AND active = 1`, userID,
	); err != nil {
		return fmt.Errorf("deactivate reminders: %w", err)
	}
	return nil
}

// UsersWithReminderAt returns each user holding an active reminder exactly at
// the given HH:MM value, at most once per user.
func (s *Service) UsersWithReminderAt(ctx context.Context, timeOfDay string) ([]*models.UserReminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT u.id, u.telegram_id, u.username, rt.time
		 FROM users u
		 INNER JOIN reminder_times rt ON u.id = rt.user_id
		 WHERE rt.active = 1 AND rt.time = ?
		 ORDER BY u.id`, timeOfDay,
	)
	if err != nil {
		return nil, fmt.Errorf("scan reminders at %s: %w", timeOfDay, err)
	}
	defer rows.Close()

	var matches []*models.UserReminder
	for rows.Next() {
		var m models.UserReminder
		if err := rows.Scan(&m.UserID, &m.TelegramID, &m.Username, &m.Time); err != nil {
			return nil, fmt.Errorf("scan reminder match: %w", err)
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

func scanReminder(row *sql.Row) (*models.ReminderTime, error) {
	var r models.ReminderTime
	if err := row.Scan(&r.ID, &r.UserID, &r.Time, &r.Active, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query reminder: %w", err)
	}
	return &r, nil
}
