package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kaizenbot/internal/models"
)

// AddAnswer stores an answer referencing one question. The question must
// exist and belong to the answering user.
func (s *Service) AddAnswer(ctx context.Context, userID, questionID int64, text string) (*models.Answer, error) {
	if userID <= 0 {
		return nil, errors.New("invalid user id")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("answer text cannot be empty")
	}

	question, err := s.QuestionByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if question.UserID != userID {
		return nil, ErrNotOwner
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO answers (user_id, question_id, text, created_at) VALUES (?, ?, ?, ?)`,
		userID, questionID, text, now,
	)
	if err != nil {
		return nil, fmt.Errorf("add answer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("answer id: %w", err)
	}
	return &models.Answer{
		ID:           id,
		UserID:       userID,
		QuestionID:   questionID,
		Text:         text,
		QuestionText: question.Text,
		CreatedAt:    now,
	}, nil
}

// RecentAnswers returns the user's latest answers with their question text.
func (s *Service) RecentAnswers(ctx context.Context, userID int64, limit int) ([]*models.Answer, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.user_id, a.question_id, a.text, q.text, a.created_at
		 FROM answers a
		 INNER JOIN questions q ON a.question_id = q.id
		 WHERE a.user_id = ?
		 ORDER BY a.created_at DESC, a.id DESC
		 LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var answers []*models.Answer
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuestionID, &a.Text, &a.QuestionText, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, &a)
	}
	return answers, rows.Err()
}
