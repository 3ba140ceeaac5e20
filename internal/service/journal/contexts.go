package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kaizenbot/internal/models"
)

// UpsertContext stores the user's personal context, replacing any previous one.
func (s *Service) UpsertContext(ctx context.Context, userID int64, aboutMe, goals, areas string) (*models.Context, error) {
	if userID <= 0 {
		return nil, errors.New("invalid user id")
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.contextUpsertSQL(), userID, aboutMe, goals, areas, now)
	if err != nil {
		return nil, fmt.Errorf("upsert context: %w", err)
	}
	return &models.Context{UserID: userID, AboutMe: aboutMe, Goals: goals, Areas: areas, UpdatedAt: now}, nil
}

// ContextByUserID fetches the user's context, or ErrNotFound when never set.
func (s *Service) ContextByUserID(ctx context.Context, userID int64) (*models.Context, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, about_me, goals, areas, updated_at FROM contexts WHERE user_id = ?`, userID,
	)
	var c models.Context
	if err := row.Scan(&c.UserID, &c.AboutMe, &c.Goals, &c.Areas, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query context: %w", err)
	}
	return &c, nil
}
