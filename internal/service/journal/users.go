package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"kaizenbot/internal/models"
)

// EnsureUser creates the user on first registration or refreshes the display
// name of an existing one.
func (s *Service) EnsureUser(ctx context.Context, telegramID int64, username string) (*models.User, error) {
	if telegramID == 0 {
		return nil, errors.New("telegram id is required")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = fmt.Sprintf("user_%d", telegramID)
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.userUpsertSQL(), telegramID, username, now)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.UserByTelegramID(ctx, telegramID)
}

// UserByTelegramID looks a user up by the external Telegram identity.
func (s *Service) UserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, telegram_id, username, created_at FROM users WHERE telegram_id = ?`, telegramID,
	)
	return scanUser(row)
}

// UserByID looks a user up by internal id.
func (s *Service) UserByID(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, telegram_id, username, created_at FROM users WHERE id = ?`, id,
	)
	return scanUser(row)
}

// ListUsers returns all registered users, newest first.
func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, telegram_id, username, created_at FROM users ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.TelegramID, &u.Username, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}
