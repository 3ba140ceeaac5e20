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

// AddQuestion stores a new question. User-authored questions count against
// the active cap; agent-authored ones are uncapped.
func (s *Service) AddQuestion(ctx context.Context, userID int64, text string, source models.Source) (*models.Question, error) {
	if userID <= 0 {
		return nil, errors.New("invalid user id")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("question text cannot be empty")
	}
	if source != models.SourceUser && source != models.SourceAgent {
		return nil, fmt.Errorf("unknown question source %q", source)
	}

	if source == models.SourceUser {
		count, err := s.ActiveUserQuestionCount(ctx, userID)
		if err != nil {
			return nil, err
		}
		if count >= MaxActiveUserQuestions {
			return nil, ErrQuestionLimit
		}
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (user_id, text, source, active, created_at) VALUES (?, ?, ?, 1, ?)`,
		userID, text, string(source), now,
	)
	if err != nil {
		return nil, fmt.Errorf("add question: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("question id: %w", err)
	}
	return &models.Question{ID: id, UserID: userID, Text: text, Source: source, Active: true, CreatedAt: now}, nil
}

// ActiveQuestions returns the user's active questions, newest first.
func (s *Service) ActiveQuestions(ctx context.Context, userID int64) ([]*models.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, text, source, active, created_at FROM questions
		 WHERE user_id = ? AND active = 1 ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []*models.Question
	for rows.Next() {
		q, err := scanQuestionRow(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ActiveUserQuestionCount counts active user-authored questions only.
func (s *Service) ActiveUserQuestionCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM questions WHERE user_id = ? AND active = 1 AND source = ?`,
		userID, string(models.SourceUser),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

// QuestionByID fetches one question row.
func (s *Service) QuestionByID(ctx context.Context, id int64) (*models.Question, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, text, source, active, created_at FROM questions WHERE id = ?`, id,
	)
	var q models.Question
	var source string
	if err := row.Scan(&q.ID, &q.UserID, &q.Text, &source, &q.Active, &q.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query question: %w", err)
	}
	q.Source = models.Source(source)
	return &q, nil
}

// DeactivateQuestion soft-deletes a question owned by the user.
func (s *Service) DeactivateQuestion(ctx context.Context, userID, questionID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE questions SET active = 0 WHERE id = ? AND user_id = ? AND active = 1`, questionID, userID,
	)
	if err != nil {
		return fmt.Errorf("deactivate question: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestionRow(row rowScanner) (*models.Question, error) {
	var q models.Question
	var source string
	if err := row.Scan(&q.ID, &q.UserID, &q.Text, &source, &q.Active, &q.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan question: %w", err)
	}
	q.Source = models.Source(source)
	return &q, nil
}
